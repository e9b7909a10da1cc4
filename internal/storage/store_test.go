package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"newshunter/internal/domain"
	"newshunter/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"), Options{
		ImagesDir: filepath.Join(dir, "images"),
		Logger:    logging.NewWithWriter(io.Discard, "error"),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testArticle(id, url string) domain.Article {
	return domain.Article{
		ID:          id,
		Source:      "https://example.com/news.xml",
		SourceName:  "Example",
		URL:         url,
		Title:       "Title " + id,
		Summary:     "Summary " + id,
		ContentText: "Body of " + id,
		Images:      []string{"https://example.com/img/" + id + ".jpg"},
		CapturedAt:  time.Now().UTC(),
		Status:      domain.StatusNew,
		LinkAlive:   true,
	}
}

func TestSaveAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	a := testArticle("12345", "https://example.com/news-12345.htm")
	a.Author = "Reporter"
	a.Category = "World"
	if err := s.SaveArticle(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Get(ctx, "12345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected article, got nil")
	}
	if got.Title != a.Title || got.Author != "Reporter" || got.Category != "World" {
		t.Errorf("fields not round-tripped: %+v", got)
	}
	if len(got.Images) != 1 || got.Images[0] != a.Images[0] {
		t.Errorf("images = %v, want %v", got.Images, a.Images)
	}
	if got.Status != domain.StatusNew || !got.LinkAlive {
		t.Errorf("status = %v alive = %v", got.Status, got.LinkAlive)
	}

	// Saving an article must atomically record its URL as seen.
	seen, err := s.IsSeen(ctx, a.URL)
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if !seen {
		t.Error("saved article URL not marked seen")
	}

	byURL, err := s.GetByURL(ctx, a.URL)
	if err != nil {
		t.Fatalf("get by url: %v", err)
	}
	if byURL == nil || byURL.ID != "12345" {
		t.Errorf("get by url = %+v", byURL)
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	got, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing id, got %+v", got)
	}
}

func TestFilterNew(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveArticle(ctx, testArticle("1", "https://example.com/a-1.htm")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.MarkSeen(ctx, "https://example.com/a-2.htm", "", "Example"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	fresh, err := s.FilterNew(ctx, []string{
		"https://example.com/a-3.htm",
		"https://example.com/a-1.htm",
		"https://example.com/a-2.htm",
		"https://example.com/a-4.htm",
	})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	want := []string{"https://example.com/a-3.htm", "https://example.com/a-4.htm"}
	if len(fresh) != len(want) {
		t.Fatalf("fresh = %v, want %v", fresh, want)
	}
	for i := range want {
		if fresh[i] != want[i] {
			t.Errorf("fresh[%d] = %q, want %q", i, fresh[i], want[i])
		}
	}
}

func TestTransitions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveArticle(ctx, testArticle("7", "https://example.com/n-7.htm")); err != nil {
		t.Fatalf("save: %v", err)
	}

	// NEW cannot be discarded directly.
	ok, err := s.Discard(ctx, "7")
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	if ok {
		t.Error("discard from NEW unexpectedly applied")
	}

	ok, err = s.Pick(ctx, "7")
	if err != nil || !ok {
		t.Fatalf("pick: ok=%v err=%v", ok, err)
	}

	ok, err = s.Unpick(ctx, "7")
	if err != nil || !ok {
		t.Fatalf("unpick: ok=%v err=%v", ok, err)
	}

	if ok, _ = s.Pick(ctx, "7"); !ok {
		t.Fatal("re-pick failed")
	}
	if ok, _ = s.Archive(ctx, "7"); !ok {
		t.Fatal("archive failed")
	}

	// Terminal states are sticky.
	if ok, _ = s.Pick(ctx, "7"); ok {
		t.Error("pick applied on archived article")
	}
	got, err := s.Get(ctx, "7")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusArchived {
		t.Errorf("status = %v, want archived", got.Status)
	}

	// Unknown id is a no-op, not an error.
	ok, err = s.Pick(ctx, "missing")
	if err != nil {
		t.Fatalf("pick missing: %v", err)
	}
	if ok {
		t.Error("pick applied on missing id")
	}
}

func TestListByStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := s.SaveArticle(ctx, testArticle(id, "https://example.com/p-"+id+".htm")); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if ok, _ := s.Pick(ctx, "2"); !ok {
		t.Fatal("pick failed")
	}

	fresh, err := s.ListByStatus(ctx, domain.StatusNew, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(fresh) != 2 {
		t.Errorf("new count = %d, want 2", len(fresh))
	}
	picked, err := s.ListByStatus(ctx, domain.StatusPicked, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(picked) != 1 || picked[0].ID != "2" {
		t.Errorf("picked = %+v", picked)
	}
}

func TestLinkAliveAndStats(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	a := testArticle("9", "https://example.com/dead-9.htm")
	if err := s.SaveArticle(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveArticle(ctx, testArticle("10", "https://example.com/live-10.htm")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.UpdateLinkAlive(ctx, a.URL, false); err != nil {
		t.Fatalf("update link: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 2 || st.New != 2 || st.DeadLinks != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Today != 2 {
		t.Errorf("today = %d, want 2", st.Today)
	}
	if st.SizeBytes == 0 {
		t.Error("size bytes not reported")
	}
}

func TestCheckpoint(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if st, err := s.Checkpoint(ctx, "Example"); err != nil || st != nil {
		t.Fatalf("empty checkpoint = %+v, err %v", st, err)
	}

	if err := s.UpdateCheckpoint(ctx, "Example", "1", "https://example.com/c-1.htm"); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if err := s.UpdateCheckpoint(ctx, "Example", "2", "https://example.com/c-2.htm"); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	st, err := s.Checkpoint(ctx, "Example")
	if err != nil {
		t.Fatalf("read checkpoint: %v", err)
	}
	if st == nil || st.LastArticleID != "2" || st.Count != 2 {
		t.Errorf("checkpoint = %+v", st)
	}
}

func TestImages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveArticle(ctx, testArticle("img1", "https://example.com/i-1.htm")); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec := domain.ImageRecord{
		ID:        "imgrec1",
		ArticleID: "img1",
		URL:       "https://example.com/photo.jpg",
	}
	if err := s.SaveImage(ctx, rec); err != nil {
		t.Fatalf("save image: %v", err)
	}
	if err := s.MarkImageDownloaded(ctx, "imgrec1", "/data/images/img1/0.jpg"); err != nil {
		t.Fatalf("mark downloaded: %v", err)
	}

	recs, err := s.ArticleImages(ctx, "img1")
	if err != nil {
		t.Fatalf("list images: %v", err)
	}
	if len(recs) != 1 || !recs[0].Downloaded || recs[0].LocalPath != "/data/images/img1/0.jpg" {
		t.Errorf("images = %+v", recs)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	old := testArticle("old", "https://example.com/old-1.htm")
	old.CapturedAt = time.Now().UTC().Add(-30 * 24 * time.Hour)
	recent := testArticle("recent", "https://example.com/rec-1.htm")
	oldKept := testArticle("oldnew", "https://example.com/oldnew-1.htm")
	oldKept.CapturedAt = old.CapturedAt

	for _, a := range []domain.Article{old, recent, oldKept} {
		if err := s.SaveArticle(ctx, a); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	for _, id := range []string{"old", "recent"} {
		if ok, _ := s.Pick(ctx, id); !ok {
			t.Fatalf("pick %s failed", id)
		}
		if ok, _ := s.Discard(ctx, id); !ok {
			t.Fatalf("discard %s failed", id)
		}
	}
	if err := s.SaveImage(ctx, domain.ImageRecord{ID: "pi", ArticleID: "old", URL: "https://example.com/p.jpg"}); err != nil {
		t.Fatalf("save image: %v", err)
	}
	imgDir := filepath.Join(s.images, "old")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	n, err := s.Prune(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	if got, _ := s.Get(ctx, "old"); got != nil {
		t.Error("old discarded article survived prune")
	}
	if got, _ := s.Get(ctx, "recent"); got == nil {
		t.Error("recent discarded article pruned too early")
	}
	if got, _ := s.Get(ctx, "oldnew"); got == nil {
		t.Error("aged NEW article pruned")
	}
	if recs, _ := s.ArticleImages(ctx, "old"); len(recs) != 0 {
		t.Error("image records survived prune")
	}
	if _, err := os.Stat(imgDir); !os.IsNotExist(err) {
		t.Error("image directory survived prune")
	}
	// Pruned URL is re-capturable.
	if seen, _ := s.IsSeen(ctx, old.URL); seen {
		t.Error("pruned URL still marked seen")
	}
}

func TestSearchSubstring(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	a := testArticle("s1", "https://example.com/s-1.htm")
	a.Title = "Storm warning issued for coastal region"
	b := testArticle("s2", "https://example.com/s-2.htm")
	b.Title = "Market opens flat"
	b.ContentText = "A late storm of selling hit the exchange."
	c := testArticle("s3", "https://example.com/s-3.htm")
	c.Title = "Quiet day in parliament"
	for _, art := range []domain.Article{a, b, c} {
		if err := s.SaveArticle(ctx, art); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := s.Search(ctx, "storm", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2", len(got))
	}
}

func TestExportImportJSON(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := s.SaveArticle(ctx, testArticle(id, "https://example.com/e-"+id+".htm")); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if ok, _ := s.Pick(ctx, "2"); !ok {
		t.Fatal("pick failed")
	}

	path := filepath.Join(t.TempDir(), "picked.json")
	picked := domain.StatusPicked
	n, err := s.ExportJSON(ctx, path, &picked)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 1 {
		t.Errorf("exported = %d, want 1", n)
	}

	dst := newTestStore(t)
	res, err := dst.Import(ctx, path, true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Articles != 1 {
		t.Errorf("imported = %d, want 1", res.Articles)
	}
	got, err := dst.Get(ctx, "2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Status != domain.StatusPicked {
		t.Errorf("imported article = %+v", got)
	}
}

func TestBackupAndImportDB(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveArticle(ctx, testArticle("b1", "https://example.com/b-1.htm")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveImage(ctx, domain.ImageRecord{ID: "bimg", ArticleID: "b1", URL: "https://example.com/b.jpg"}); err != nil {
		t.Fatalf("save image: %v", err)
	}

	backup := filepath.Join(t.TempDir(), "backup.db")
	if err := s.Backup(ctx, backup); err != nil {
		t.Fatalf("backup: %v", err)
	}

	dst := newTestStore(t)
	if err := dst.SaveArticle(ctx, testArticle("b2", "https://example.com/b-2.htm")); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := dst.Import(ctx, backup, true)
	if err != nil {
		t.Fatalf("import db: %v", err)
	}
	if res.Articles != 1 || res.Images != 1 {
		t.Errorf("import result = %+v", res)
	}
	// Merge keeps what was already there.
	if got, _ := dst.Get(ctx, "b2"); got == nil {
		t.Error("merge import dropped existing article")
	}
	if got, _ := dst.Get(ctx, "b1"); got == nil {
		t.Error("merge import missed backup article")
	}
}

func TestImportReplace(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveArticle(ctx, testArticle("keep", "https://example.com/k-1.htm")); err != nil {
		t.Fatalf("save: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dump.json")
	if _, err := s.ExportJSON(ctx, path, nil); err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newTestStore(t)
	if err := dst.SaveArticle(ctx, testArticle("gone", "https://example.com/g-1.htm")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := dst.Import(ctx, path, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got, _ := dst.Get(ctx, "gone"); got != nil {
		t.Error("replace import kept old article")
	}
	if got, _ := dst.Get(ctx, "keep"); got == nil {
		t.Error("replace import missed dump article")
	}
}
