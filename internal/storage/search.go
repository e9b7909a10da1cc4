package storage

import (
	"context"
	"fmt"
	"os"

	sq "github.com/Masterminds/squirrel"
	"github.com/blevesearch/bleve/v2"

	"newshunter/internal/domain"
)

// searchDoc is the indexed projection of an article. Only the text
// fields worth querying go in; the store row stays the source of truth.
type searchDoc struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Body    string `json:"body"`
	Source  string `json:"source"`
}

// Index is a bleve full-text index over captured articles.
type Index struct {
	idx bleve.Index
}

// OpenIndex opens the index at path, creating it on first use.
func OpenIndex(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist || os.IsNotExist(err) {
		mapping := bleve.NewIndexMapping()
		doc := bleve.NewDocumentMapping()

		text := bleve.NewTextFieldMapping()
		doc.AddFieldMappingsAt("title", text)
		doc.AddFieldMappingsAt("summary", text)
		doc.AddFieldMappingsAt("body", text)

		source := bleve.NewKeywordFieldMapping()
		doc.AddFieldMappingsAt("source", source)

		mapping.DefaultMapping = doc
		idx, err = bleve.New(path, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// IndexArticle adds or replaces the article's document.
func (i *Index) IndexArticle(a domain.Article) error {
	return i.idx.Index(a.ID, searchDoc{
		Title:   a.Title,
		Summary: a.Summary,
		Body:    a.ContentText,
		Source:  a.SourceName,
	})
}

// Delete removes the article's document. Missing ids are not an error.
func (i *Index) Delete(id string) error {
	return i.idx.Delete(id)
}

// Search returns matching article ids, best first.
func (i *Index) Search(query string, limit int) ([]string, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("storage: search index: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close flushes and closes the index.
func (i *Index) Close() error {
	return i.idx.Close()
}

// Search finds articles matching the query. With a full-text index
// attached, results come ranked from bleve; without one, it degrades to
// a substring match over title, summary and body.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		limit = 50
	}
	if s.index == nil {
		return s.searchSubstring(ctx, query, limit)
	}

	ids, err := s.index.Search(query, limit)
	if err != nil {
		s.logger.Warn("index search failed, using substring match", "error", err)
		return s.searchSubstring(ctx, query, limit)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	articles, err := s.list(ctx, s.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"id": ids}))
	if err != nil {
		return nil, err
	}

	// Preserve bleve's rank order.
	byID := make(map[string]domain.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}
	out := make([]domain.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) searchSubstring(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	pattern := "%" + query + "%"
	return s.list(ctx, s.sb.Select(articleColumns...).From("articles").
		Where(sq.Or{
			sq.Like{"title": pattern},
			sq.Like{"summary": pattern},
			sq.Like{"content_text": pattern},
		}).
		OrderBy("captured_at DESC").
		Limit(uint64(limit)))
}

// Reindex rebuilds the full-text index from the article table. No-op
// without an attached index.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	articles, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	for n, a := range articles {
		if err := s.index.IndexArticle(a); err != nil {
			return n, fmt.Errorf("storage: reindex %s: %w", a.ID, err)
		}
	}
	return len(articles), nil
}
