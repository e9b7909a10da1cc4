package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"newshunter/internal/domain"
	"newshunter/internal/ports"
)

const timeLayout = "2006-01-02T15:04:05Z"

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	source_name TEXT NOT NULL,
	url TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL,
	summary TEXT,
	author TEXT,
	content_text TEXT,
	content_html TEXT,
	images TEXT,
	published_at TEXT,
	captured_at TEXT NOT NULL,
	status INTEGER DEFAULT 0,
	link_alive INTEGER DEFAULT 1,
	category TEXT
);

CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
CREATE INDEX IF NOT EXISTS idx_articles_captured ON articles(captured_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source_name);

CREATE TABLE IF NOT EXISTS seen_urls (
	url TEXT PRIMARY KEY,
	article_id TEXT,
	source_name TEXT,
	first_seen_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	article_id TEXT NOT NULL,
	url TEXT NOT NULL,
	local_path TEXT,
	downloaded INTEGER DEFAULT 0,
	created_at TEXT NOT NULL,
	FOREIGN KEY (article_id) REFERENCES articles(id)
);

CREATE INDEX IF NOT EXISTS idx_images_article ON images(article_id);

CREATE TABLE IF NOT EXISTS scan_state (
	source_name TEXT PRIMARY KEY,
	last_article_id TEXT,
	last_article_url TEXT,
	last_scan_time TEXT,
	articles_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS error_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_name TEXT,
	error_type TEXT,
	error_message TEXT,
	url TEXT,
	timestamp TEXT
);
`

var articleColumns = []string{
	"id", "source", "source_name", "url", "title", "summary", "author",
	"content_text", "content_html", "images", "published_at", "captured_at",
	"status", "link_alive", "category",
}

// Options tunes store construction.
type Options struct {
	ImagesDir string // on-disk image root, removed with pruned articles
	Index     *Index // optional full-text index; nil falls back to LIKE
	Logger    *slog.Logger
}

// Store is the durable triage state machine. It exclusively owns the
// persisted Article/SeenURL/ImageRecord/ScanState data; every mutation
// goes through SQLite, which serializes conflicting writes to a key.
type Store struct {
	db       *sql.DB
	sb       sq.StatementBuilderType
	path     string
	images   string
	index    *Index
	logger   *slog.Logger
	timeFunc func() time.Time
}

var _ ports.Store = (*Store)(nil)

// Open creates or opens the store file, enabling WAL so the capture
// loop and a reader can share the database.
func Open(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: set synchronous: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		db:       db,
		sb:       sq.StatementBuilder.PlaceholderFormat(sq.Question),
		path:     path,
		images:   opts.ImagesDir,
		index:    opts.Index,
		logger:   logger,
		timeFunc: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the database and the search index.
func (s *Store) Close() error {
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Warn("close search index", "error", err)
		}
	}
	return s.db.Close()
}

func (s *Store) now() string {
	return s.timeFunc().Format(timeLayout)
}

// SaveArticle upserts the article and records its seen_urls entry in
// one transaction, so a reader can never observe the article without
// its dedup record.
func (s *Store) SaveArticle(ctx context.Context, a domain.Article) error {
	imagesJSON, err := json.Marshal(a.Images)
	if err != nil {
		return fmt.Errorf("storage: encode images: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin save: %w", err)
	}
	defer tx.Rollback()

	capturedAt := a.CapturedAt.UTC().Format(timeLayout)

	query, args, err := s.sb.Insert("articles").
		Options("OR REPLACE").
		Columns(articleColumns...).
		Values(a.ID, a.Source, a.SourceName, a.URL, a.Title, a.Summary, a.Author,
			a.ContentText, a.ContentHTML, string(imagesJSON), a.PublishedAt, capturedAt,
			int(a.Status), boolInt(a.LinkAlive), a.Category).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build article insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: insert article: %w", err)
	}

	query, args, err = s.sb.Insert("seen_urls").
		Options("OR IGNORE").
		Columns("url", "article_id", "source_name", "first_seen_at").
		Values(a.URL, a.ID, a.SourceName, capturedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build seen insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: insert seen url: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit save: %w", err)
	}

	if s.index != nil {
		if err := s.index.IndexArticle(a); err != nil {
			s.logger.Warn("index article", "id", a.ID, "error", err)
		}
	}
	return nil
}

// MarkSeen records a URL as attempted without a saved article, so a
// permanently unfetchable page is never re-fetched.
func (s *Store) MarkSeen(ctx context.Context, url, articleID, sourceName string) error {
	query, args, err := s.sb.Insert("seen_urls").
		Options("OR IGNORE").
		Columns("url", "article_id", "source_name", "first_seen_at").
		Values(url, articleID, sourceName, s.now()).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build mark seen: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: mark seen: %w", err)
	}
	return nil
}

// IsSeen reports whether the URL has ever been attempted.
func (s *Store) IsSeen(ctx context.Context, url string) (bool, error) {
	query, args, err := s.sb.Select("1").From("seen_urls").
		Where(sq.Eq{"url": url}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("storage: build seen query: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: query seen: %w", err)
	}
	return true, nil
}

// FilterNew returns the subset of urls with no seen_urls record,
// preserving input order. Stable between calls absent inserts.
func (s *Store) FilterNew(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	query, args, err := s.sb.Select("url").From("seen_urls").
		Where(sq.Eq{"url": urls}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build filter query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query seen urls: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("storage: scan seen url: %w", err)
		}
		seen[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate seen urls: %w", err)
	}

	fresh := make([]string, 0, len(urls))
	for _, url := range urls {
		if _, ok := seen[url]; !ok {
			fresh = append(fresh, url)
		}
	}
	return fresh, nil
}

// Transition moves an article to the given status if the triage graph
// allows it from the article's current state. Unknown ids and invalid
// source states both report false with no error.
func (s *Store) Transition(ctx context.Context, id string, to domain.Status) (bool, error) {
	sources := domain.TransitionSources(to)
	if len(sources) == 0 {
		return false, nil
	}
	from := make([]int, len(sources))
	for i, st := range sources {
		from[i] = int(st)
	}

	query, args, err := s.sb.Update("articles").
		Set("status", int(to)).
		Where(sq.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("storage: build transition: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("storage: transition %s -> %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: transition rows: %w", err)
	}
	return n > 0, nil
}

// Pick promotes a NEW article into the reading box.
func (s *Store) Pick(ctx context.Context, id string) (bool, error) {
	return s.Transition(ctx, id, domain.StatusPicked)
}

// Unpick returns a picked article to the stream.
func (s *Store) Unpick(ctx context.Context, id string) (bool, error) {
	return s.Transition(ctx, id, domain.StatusNew)
}

// Archive moves a picked article to its terminal kept state.
func (s *Store) Archive(ctx context.Context, id string) (bool, error) {
	return s.Transition(ctx, id, domain.StatusArchived)
}

// Discard moves a picked article to its terminal discarded state.
func (s *Store) Discard(ctx context.Context, id string) (bool, error) {
	return s.Transition(ctx, id, domain.StatusDiscarded)
}

// UpdateLinkAlive flips the link-health flag by URL. Independent of the
// triage status and never blocks a transition.
func (s *Store) UpdateLinkAlive(ctx context.Context, url string, alive bool) error {
	query, args, err := s.sb.Update("articles").
		Set("link_alive", boolInt(alive)).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build link update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: update link status: %w", err)
	}
	return nil
}

// Get fetches one article by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Article, error) {
	return s.one(ctx, sq.Eq{"id": id})
}

// GetByURL fetches one article by canonical URL.
func (s *Store) GetByURL(ctx context.Context, url string) (*domain.Article, error) {
	return s.one(ctx, sq.Eq{"url": url})
}

func (s *Store) one(ctx context.Context, pred interface{}) (*domain.Article, error) {
	query, args, err := s.sb.Select(articleColumns...).From("articles").
		Where(pred).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build article query: %w", err)
	}
	a, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: query article: %w", err)
	}
	return a, nil
}

// ListByStatus returns articles in one triage state, newest capture
// first. limit <= 0 means no limit.
func (s *Store) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Article, error) {
	b := s.sb.Select(articleColumns...).From("articles").
		Where(sq.Eq{"status": int(status)}).
		OrderBy("captured_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return s.list(ctx, b)
}

// ListAll returns every article, newest capture first.
func (s *Store) ListAll(ctx context.Context) ([]domain.Article, error) {
	return s.list(ctx, s.sb.Select(articleColumns...).From("articles").OrderBy("captured_at DESC"))
}

func (s *Store) list(ctx context.Context, b sq.SelectBuilder) ([]domain.Article, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list articles: %w", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan article: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate articles: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var (
		a          domain.Article
		imagesJSON sql.NullString
		summary    sql.NullString
		author     sql.NullString
		text       sql.NullString
		html       sql.NullString
		published  sql.NullString
		category   sql.NullString
		captured   string
		status     int
		alive      int
	)
	err := row.Scan(&a.ID, &a.Source, &a.SourceName, &a.URL, &a.Title, &summary, &author,
		&text, &html, &imagesJSON, &published, &captured, &status, &alive, &category)
	if err != nil {
		return nil, err
	}

	a.Summary = summary.String
	a.Author = author.String
	a.ContentText = text.String
	a.ContentHTML = html.String
	a.PublishedAt = published.String
	a.Category = category.String
	a.Status = domain.Status(status)
	a.LinkAlive = alive != 0
	if imagesJSON.Valid && imagesJSON.String != "" {
		if err := json.Unmarshal([]byte(imagesJSON.String), &a.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
	}
	if t, err := time.Parse(timeLayout, captured); err == nil {
		a.CapturedAt = t
	}
	return &a, nil
}

// UpdateCheckpoint advances the per-source scan_state row. Observability
// only; seen_urls remains the dedup authority.
func (s *Store) UpdateCheckpoint(ctx context.Context, sourceName, articleID, url string) error {
	query, args, err := s.sb.Insert("scan_state").
		Columns("source_name", "last_article_id", "last_article_url", "last_scan_time", "articles_count").
		Values(sourceName, articleID, url, s.now(), 1).
		Suffix(`ON CONFLICT(source_name) DO UPDATE SET
			last_article_id = excluded.last_article_id,
			last_article_url = excluded.last_article_url,
			last_scan_time = excluded.last_scan_time,
			articles_count = articles_count + 1`).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build checkpoint: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: update checkpoint: %w", err)
	}
	return nil
}

// Checkpoint reads the last recorded scan state for a source.
func (s *Store) Checkpoint(ctx context.Context, sourceName string) (*domain.ScanState, error) {
	query, args, err := s.sb.Select("source_name", "last_article_id", "last_article_url", "last_scan_time", "articles_count").
		From("scan_state").Where(sq.Eq{"source_name": sourceName}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build checkpoint query: %w", err)
	}

	var (
		st       domain.ScanState
		id, url  sql.NullString
		lastScan sql.NullString
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&st.SourceName, &id, &url, &lastScan, &st.Count)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: query checkpoint: %w", err)
	}
	st.LastArticleID = id.String
	st.LastURL = url.String
	if t, err := time.Parse(timeLayout, lastScan.String); err == nil {
		st.LastScan = t
	}
	return &st, nil
}

// SaveImage upserts an image record for an article.
func (s *Store) SaveImage(ctx context.Context, rec domain.ImageRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.timeFunc()
	}
	query, args, err := s.sb.Insert("images").
		Options("OR REPLACE").
		Columns("id", "article_id", "url", "local_path", "downloaded", "created_at").
		Values(rec.ID, rec.ArticleID, rec.URL, rec.LocalPath, boolInt(rec.Downloaded), createdAt.UTC().Format(timeLayout)).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build image insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: save image: %w", err)
	}
	return nil
}

// MarkImageDownloaded records the local path of a fetched image.
func (s *Store) MarkImageDownloaded(ctx context.Context, imageID, localPath string) error {
	query, args, err := s.sb.Update("images").
		Set("downloaded", 1).
		Set("local_path", localPath).
		Where(sq.Eq{"id": imageID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build image update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: mark image downloaded: %w", err)
	}
	return nil
}

// ArticleImages lists the image records of one article.
func (s *Store) ArticleImages(ctx context.Context, articleID string) ([]domain.ImageRecord, error) {
	query, args, err := s.sb.Select("id", "article_id", "url", "local_path", "downloaded", "created_at").
		From("images").Where(sq.Eq{"article_id": articleID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build images query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query images: %w", err)
	}
	defer rows.Close()

	var out []domain.ImageRecord
	for rows.Next() {
		var (
			rec        domain.ImageRecord
			localPath  sql.NullString
			downloaded int
			createdAt  string
		)
		if err := rows.Scan(&rec.ID, &rec.ArticleID, &rec.URL, &localPath, &downloaded, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan image: %w", err)
		}
		rec.LocalPath = localPath.String
		rec.Downloaded = downloaded != 0
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LogError appends a row to the error log.
func (s *Store) LogError(ctx context.Context, sourceName, errType, message, url string) error {
	query, args, err := s.sb.Insert("error_log").
		Columns("source_name", "error_type", "error_message", "url", "timestamp").
		Values(sourceName, errType, message, url, s.now()).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build error log: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: log error: %w", err)
	}
	return nil
}

// Stats aggregates store-wide counters.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats

	counts := []struct {
		dest *int64
		pred interface{}
	}{
		{&st.Total, nil},
		{&st.New, sq.Eq{"status": int(domain.StatusNew)}},
		{&st.Picked, sq.Eq{"status": int(domain.StatusPicked)}},
		{&st.Archived, sq.Eq{"status": int(domain.StatusArchived)}},
		{&st.Discarded, sq.Eq{"status": int(domain.StatusDiscarded)}},
		{&st.DeadLinks, sq.Eq{"link_alive": 0}},
		{&st.Today, sq.Like{"captured_at": s.timeFunc().Format("2006-01-02") + "%"}},
	}
	for _, c := range counts {
		b := s.sb.Select("COUNT(*)").From("articles")
		if c.pred != nil {
			b = b.Where(c.pred)
		}
		query, args, err := b.ToSql()
		if err != nil {
			return st, fmt.Errorf("storage: build stats query: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(c.dest); err != nil {
			return st, fmt.Errorf("storage: stats count: %w", err)
		}
	}

	if info, err := os.Stat(s.path); err == nil {
		st.SizeBytes = info.Size()
	}
	return st, nil
}

// Prune deletes DISCARDED articles whose capture is older than the
// retention window, together with their image records and on-disk image
// directories. Articles in any other status are untouched regardless of
// age. Returns the number of articles removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.timeFunc().Add(-retention).Format(timeLayout)

	query, args, err := s.sb.Select("id").From("articles").
		Where(sq.Eq{"status": int(domain.StatusDiscarded)}).
		Where(sq.Lt{"captured_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("storage: build prune query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("storage: query prunable: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("storage: scan prunable id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("storage: iterate prunable: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if s.images != "" {
		for _, id := range ids {
			os.RemoveAll(filepath.Join(s.images, id))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage: begin prune: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"images", "seen_urls"} {
		col := "article_id"
		query, args, err := s.sb.Delete(table).Where(sq.Eq{col: ids}).ToSql()
		if err != nil {
			return 0, fmt.Errorf("storage: build %s prune: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("storage: prune %s: %w", table, err)
		}
	}
	query, args, err = s.sb.Delete("articles").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("storage: build article prune: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("storage: prune articles: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: commit prune: %w", err)
	}

	if s.index != nil {
		for _, id := range ids {
			if err := s.index.Delete(id); err != nil {
				s.logger.Warn("unindex pruned article", "id", id, "error", err)
			}
		}
	}

	s.logger.Info("pruned discarded articles", "count", len(ids))
	return len(ids), nil
}

// Clear wipes every table. Used by replace-mode import.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"articles", "images", "seen_urls", "scan_state", "error_log"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("storage: clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit clear: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
