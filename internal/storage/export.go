package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"newshunter/internal/domain"
)

// articleJSON is the export wire shape. Field names match the database
// columns so dumps stay readable next to the schema.
type articleJSON struct {
	ID          string   `json:"id"`
	Source      string   `json:"source"`
	SourceName  string   `json:"source_name"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	Author      string   `json:"author,omitempty"`
	ContentText string   `json:"content_text,omitempty"`
	ContentHTML string   `json:"content_html,omitempty"`
	Images      []string `json:"images,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	CapturedAt  string   `json:"captured_at"`
	Status      int      `json:"status"`
	LinkAlive   bool     `json:"link_alive"`
	Category    string   `json:"category,omitempty"`
}

func toJSON(a domain.Article) articleJSON {
	return articleJSON{
		ID:          a.ID,
		Source:      a.Source,
		SourceName:  a.SourceName,
		URL:         a.URL,
		Title:       a.Title,
		Summary:     a.Summary,
		Author:      a.Author,
		ContentText: a.ContentText,
		ContentHTML: a.ContentHTML,
		Images:      a.Images,
		PublishedAt: a.PublishedAt,
		CapturedAt:  a.CapturedAt.UTC().Format(timeLayout),
		Status:      int(a.Status),
		LinkAlive:   a.LinkAlive,
		Category:    a.Category,
	}
}

func fromJSON(j articleJSON) domain.Article {
	a := domain.Article{
		ID:          j.ID,
		Source:      j.Source,
		SourceName:  j.SourceName,
		URL:         j.URL,
		Title:       j.Title,
		Summary:     j.Summary,
		Author:      j.Author,
		ContentText: j.ContentText,
		ContentHTML: j.ContentHTML,
		Images:      j.Images,
		PublishedAt: j.PublishedAt,
		Status:      domain.Status(j.Status),
		LinkAlive:   j.LinkAlive,
		Category:    j.Category,
	}
	if t, err := time.Parse(timeLayout, j.CapturedAt); err == nil {
		a.CapturedAt = t
	}
	return a
}

// ExportJSON writes articles to path as a JSON array. A nil status
// exports everything; otherwise only that triage state. Returns the
// number of articles written.
func (s *Store) ExportJSON(ctx context.Context, path string, status *domain.Status) (int, error) {
	var (
		articles []domain.Article
		err      error
	)
	if status == nil {
		articles, err = s.ListAll(ctx)
	} else {
		articles, err = s.ListByStatus(ctx, *status, 0)
	}
	if err != nil {
		return 0, err
	}

	out := make([]articleJSON, 0, len(articles))
	for _, a := range articles {
		out = append(out, toJSON(a))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("storage: encode export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("storage: write export: %w", err)
	}

	s.logger.Info("exported articles", "count", len(out), "path", path)
	return len(out), nil
}

// Backup copies the database file to destPath. The WAL is checkpointed
// first so the copy is a complete, self-contained snapshot.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("storage: checkpoint before backup: %w", err)
	}

	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("storage: open database for backup: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("storage: create backup dir: %w", err)
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("storage: create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("storage: copy backup: %w", err)
	}
	s.logger.Info("backup written", "path", destPath)
	return nil
}

// ImportResult reports what an import brought in.
type ImportResult struct {
	Articles int
	Images   int
}

// Import loads articles from path. A .db file is read as another store
// database; anything else is parsed as a JSON export. In merge mode
// incoming rows replace same-id rows and new rows are added; in replace
// mode the store is cleared first.
func (s *Store) Import(ctx context.Context, path string, merge bool) (ImportResult, error) {
	if !merge {
		if err := s.Clear(ctx); err != nil {
			return ImportResult{}, err
		}
	}
	if strings.HasSuffix(strings.ToLower(path), ".db") {
		return s.importDB(ctx, path)
	}
	return s.importJSON(ctx, path)
}

// importDB walks the source database through its own connection and
// upserts row by row. Avoids ATTACH so the source file never has to
// share the main connection's journal mode.
func (s *Store) importDB(ctx context.Context, path string) (ImportResult, error) {
	var res ImportResult

	src, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return res, fmt.Errorf("storage: open import database: %w", err)
	}
	defer src.Close()

	rows, err := src.QueryContext(ctx, "SELECT "+strings.Join(articleColumns, ", ")+" FROM articles")
	if err != nil {
		return res, fmt.Errorf("storage: read import articles: %w", err)
	}
	var imported []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			rows.Close()
			return res, fmt.Errorf("storage: scan import article: %w", err)
		}
		imported = append(imported, *a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("storage: iterate import articles: %w", err)
	}

	for _, a := range imported {
		if err := s.SaveArticle(ctx, a); err != nil {
			return res, err
		}
		res.Articles++
	}

	imgRows, err := src.QueryContext(ctx,
		"SELECT id, article_id, url, local_path, downloaded, created_at FROM images")
	if err != nil {
		// Older dumps may predate the images table.
		s.logger.Info("import has no images table", "path", path)
		return res, nil
	}
	defer imgRows.Close()
	for imgRows.Next() {
		var (
			rec        domain.ImageRecord
			localPath  sql.NullString
			downloaded int
			createdAt  string
		)
		if err := imgRows.Scan(&rec.ID, &rec.ArticleID, &rec.URL, &localPath, &downloaded, &createdAt); err != nil {
			return res, fmt.Errorf("storage: scan import image: %w", err)
		}
		rec.LocalPath = localPath.String
		rec.Downloaded = downloaded != 0
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			rec.CreatedAt = t
		}
		if err := s.SaveImage(ctx, rec); err != nil {
			return res, err
		}
		res.Images++
	}
	if err := imgRows.Err(); err != nil {
		return res, fmt.Errorf("storage: iterate import images: %w", err)
	}

	s.logger.Info("import complete", "articles", res.Articles, "images", res.Images, "path", path)
	return res, nil
}

func (s *Store) importJSON(ctx context.Context, path string) (ImportResult, error) {
	var res ImportResult

	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("storage: read import file: %w", err)
	}
	var entries []articleJSON
	if err := json.Unmarshal(data, &entries); err != nil {
		return res, fmt.Errorf("storage: parse import file: %w", err)
	}

	for _, j := range entries {
		a := fromJSON(j)
		if a.ID == "" || a.URL == "" {
			continue
		}
		if err := s.SaveArticle(ctx, a); err != nil {
			return res, err
		}
		res.Articles++
	}

	s.logger.Info("import complete", "articles", res.Articles, "path", path)
	return res, nil
}
