package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newshunter/internal/domain"
	"newshunter/internal/ports"
)

const maxBodySize = 5 << 20

// RateLimitError marks a fetch the source refused with 429 or 403. The
// URL stays unseen so a later attempt can capture it.
type RateLimitError struct {
	URL        string
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%d): %s", e.StatusCode, e.URL)
}

// ErrTransient marks failures worth retrying: network errors and 5xx.
var ErrTransient = errors.New("transient capture failure")

// Options configures an Engine.
type Options struct {
	Client     *http.Client
	Headers    map[string]string
	FetchLimit int // concurrent fetches per batch
	Images     *ImageFetcher
	Alerter    ports.Alerter
	Listener   ports.Listener
	Logger     *slog.Logger
}

// Engine turns candidate links into stored articles. Each capture is
// fetch, extract, persist; the batch path bounds fetch concurrency and
// dedups against the store exactly once per batch.
type Engine struct {
	store     ports.Store
	extractor ports.Extractor
	client    *http.Client
	headers   map[string]string
	limit     int
	images    *ImageFetcher
	alerter   ports.Alerter
	listener  ports.Listener
	logger    *slog.Logger
}

// New builds an Engine over the given store and extractor.
func New(store ports.Store, extractor ports.Extractor, opts Options) *Engine {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	limit := opts.FetchLimit
	if limit <= 0 {
		limit = 5
	}
	alerter := opts.Alerter
	if alerter == nil {
		alerter = ports.NopAlerter{}
	}
	listener := opts.Listener
	if listener == nil {
		listener = ports.NopListener{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		extractor: extractor,
		client:    client,
		headers:   opts.Headers,
		limit:     limit,
		images:    opts.Images,
		alerter:   alerter,
		listener:  listener,
		logger:    logger.With("component", "capture"),
	}
}

// BatchResult summarizes one CaptureBatch call. Transient holds links
// worth retrying; Failed holds links that are done for good.
type BatchResult struct {
	Captured    []domain.Article
	Duplicates  int
	RateLimited []domain.CandidateLink
	Transient   []domain.CandidateLink
	Failed      []domain.CandidateLink
}

// Capture fetches one candidate and stores the resulting article. It
// returns (nil, nil) when the URL is already seen. Rate-limited and
// transient failures leave the URL unseen; a hard failure records it so
// the link is never fetched again.
func (e *Engine) Capture(ctx context.Context, link domain.CandidateLink) (*domain.Article, error) {
	seen, err := e.store.IsSeen(ctx, link.URL)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, nil
	}
	return e.capture(ctx, link)
}

func (e *Engine) capture(ctx context.Context, link domain.CandidateLink) (*domain.Article, error) {
	body, err := e.fetch(ctx, link.URL)
	if err != nil {
		var rle *RateLimitError
		switch {
		case errors.As(err, &rle):
			e.alerter.ReportError(ctx, link.SourceName, "rate_limit", err.Error(), link.URL)
			e.logger.Warn("fetch rate limited", "url", link.URL, "status", rle.StatusCode)
		case errors.Is(err, ErrTransient):
			e.alerter.ReportError(ctx, link.SourceName, "fetch", err.Error(), link.URL)
			e.logger.Warn("fetch failed", "url", link.URL, "error", err)
		default:
			// Permanent: never come back to this URL.
			if markErr := e.store.MarkSeen(ctx, link.URL, "", link.SourceName); markErr != nil {
				e.logger.Error("mark failed url seen", "url", link.URL, "error", markErr)
			}
			e.alerter.ReportError(ctx, link.SourceName, "fetch", err.Error(), link.URL)
			e.logger.Warn("fetch failed permanently", "url", link.URL, "error", err)
		}
		return nil, err
	}

	fields, err := e.extractor.Extract(body, link.URL, link.SiteKey)
	if err != nil {
		// Unparseable pages are recorded so they are not refetched
		// every cycle.
		if markErr := e.store.MarkSeen(ctx, link.URL, "", link.SourceName); markErr != nil {
			e.logger.Error("mark unparseable url seen", "url", link.URL, "error", markErr)
		}
		e.alerter.ReportError(ctx, link.SourceName, "parse", err.Error(), link.URL)
		return nil, fmt.Errorf("extract %s: %w", link.URL, err)
	}

	a := domain.Article{
		ID:          domain.DeriveID(link.URL),
		Source:      hostOf(link.URL),
		SourceName:  link.SourceName,
		URL:         link.URL,
		Title:       fields.Title,
		Summary:     fields.Summary,
		Author:      fields.Author,
		ContentText: fields.ContentText,
		ContentHTML: fields.ContentHTML,
		Images:      fields.Images,
		PublishedAt: fields.PublishedAt,
		CapturedAt:  time.Now().UTC(),
		Status:      domain.StatusNew,
		LinkAlive:   true,
		Category:    fields.Category,
	}
	// Extract guarantees a title; the publish date it does not, so the
	// feed's timestamp fills the gap.
	if a.PublishedAt == "" {
		a.PublishedAt = link.Published
	}

	if err := e.store.SaveArticle(ctx, a); err != nil {
		return nil, fmt.Errorf("save %s: %w", a.ID, err)
	}
	if err := e.store.UpdateCheckpoint(ctx, link.SourceName, a.ID, a.URL); err != nil {
		e.logger.Warn("update checkpoint", "source", link.SourceName, "error", err)
	}

	if e.images != nil && len(a.Images) > 0 {
		e.images.Fetch(ctx, a)
	}

	e.alerter.ReportSuccess(link.SourceName)
	e.listener.ArticleCaptured(a)
	e.logger.Info("captured article", "id", a.ID, "title", a.Title, "source", link.SourceName)
	return &a, nil
}

// CaptureBatch dedups the candidates against the store in one query,
// then fetches the remainder with bounded concurrency. Failures of
// individual candidates do not abort the batch.
func (e *Engine) CaptureBatch(ctx context.Context, links []domain.CandidateLink) (BatchResult, error) {
	var res BatchResult
	if len(links) == 0 {
		return res, nil
	}

	urls := make([]string, 0, len(links))
	byURL := make(map[string]domain.CandidateLink, len(links))
	for _, l := range links {
		if _, dup := byURL[l.URL]; dup {
			res.Duplicates++
			continue
		}
		byURL[l.URL] = l
		urls = append(urls, l.URL)
	}

	fresh, err := e.store.FilterNew(ctx, urls)
	if err != nil {
		return res, err
	}
	res.Duplicates += len(urls) - len(fresh)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for _, url := range fresh {
		link := byURL[url]
		g.Go(func() error {
			a, err := e.capture(gctx, link)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && a != nil:
				res.Captured = append(res.Captured, *a)
			case err != nil:
				var rle *RateLimitError
				switch {
				case errors.As(err, &rle):
					res.RateLimited = append(res.RateLimited, link)
				case errors.Is(err, ErrTransient):
					res.Transient = append(res.Transient, link)
				default:
					res.Failed = append(res.Failed, link)
				}
			}
			// Per-link failures are collected, not propagated; only
			// context cancellation stops the batch.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

// CheckLinkAlive probes the article URL with HEAD and persists the
// result. Returns the probed liveness.
func (e *Engine) CheckLinkAlive(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("build probe request: %w", err)
	}
	e.setHeaders(req)

	alive := false
	resp, err := e.client.Do(req)
	if err == nil {
		resp.Body.Close()
		alive = resp.StatusCode < 400
	}

	if err := e.store.UpdateLinkAlive(ctx, url, alive); err != nil {
		return alive, err
	}
	return alive, nil
}

func (e *Engine) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	e.setHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrTransient, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		return nil, &RateLimitError{URL: url, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrTransient, url, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrTransient, url, err)
	}
	return body, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func (e *Engine) setHeaders(req *http.Request) {
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
}
