package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"newshunter/internal/domain"
	"newshunter/internal/ports"
)

const (
	maxImagesPerArticle = 10
	maxImageSize        = 10 << 20
)

// ImageFetcher downloads article images in the background. Downloads
// never block the capture path; Wait drains them at shutdown.
type ImageFetcher struct {
	store   ports.Store
	client  *http.Client
	headers map[string]string
	dir     string
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewImageFetcher stores images under dir/<articleID>/.
func NewImageFetcher(store ports.Store, dir string, client *http.Client, headers map[string]string, logger *slog.Logger) *ImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageFetcher{
		store:   store,
		client:  client,
		headers: headers,
		dir:     dir,
		logger:  logger.With("component", "images"),
	}
}

// Fetch schedules the article's images for download, at most
// maxImagesPerArticle of them.
func (f *ImageFetcher) Fetch(ctx context.Context, a domain.Article) {
	urls := a.Images
	if len(urls) > maxImagesPerArticle {
		urls = urls[:maxImagesPerArticle]
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.download(ctx, a.ID, a.SourceName, urls)
	}()
}

// Wait blocks until every scheduled download has finished.
func (f *ImageFetcher) Wait() {
	f.wg.Wait()
}

func (f *ImageFetcher) download(ctx context.Context, articleID, sourceName string, urls []string) {
	dir := filepath.Join(f.dir, articleID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.logger.Error("create image dir", "article", articleID, "error", err)
		return
	}

	for n, url := range urls {
		if ctx.Err() != nil {
			return
		}
		rec := domain.ImageRecord{
			ID:        domain.DeriveImageID(articleID, url),
			ArticleID: articleID,
			URL:       url,
		}
		if err := f.store.SaveImage(ctx, rec); err != nil {
			f.logger.Warn("record image", "article", articleID, "url", url, "error", err)
			continue
		}

		local := filepath.Join(dir, fmt.Sprintf("%d%s", n, imageExt(url)))
		if err := f.fetchOne(ctx, url, local); err != nil {
			f.logger.Warn("download image", "article", articleID, "url", url, "error", err)
			continue
		}
		if err := f.store.MarkImageDownloaded(ctx, rec.ID, local); err != nil {
			f.logger.Warn("mark image downloaded", "article", articleID, "error", err)
		}
	}
}

func (f *ImageFetcher) fetchOne(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(resp.Body, maxImageSize)); err != nil {
		os.Remove(dest)
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func imageExt(url string) string {
	ext := strings.ToLower(path.Ext(url))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".jpg"
}
