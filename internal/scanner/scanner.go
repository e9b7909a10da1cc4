package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"newshunter/internal/config"
	"newshunter/internal/domain"
	"newshunter/internal/ports"
)

// maxBodyBytes caps discovery document reads.
const maxBodyBytes = 10 * 1024 * 1024

// scrapeSelectors are tried in order against a homepage to find
// headline links. Site-agnostic, broadest patterns last.
var scrapeSelectors = []string{
	"a.box-category-link-title",
	"h3 a",
	"h2 a",
	".article-title a",
	".news-title a",
}

// Scanner discovers candidate article links for one source. Scan fails
// soft: any network or parse error yields an empty list, and the error
// class goes to the alerter for the caller to act on.
type Scanner struct {
	source  config.SourceConfig
	headers map[string]string
	client  *http.Client
	feed    *gofeed.Parser
	logger  *slog.Logger
	alerter ports.Alerter

	mu           sync.Mutex
	lastModified string
	etag         string
}

// New builds a scanner for a source. A nil client gets a default with a
// discovery timeout a little above the article-fetch timeout, since feed
// documents run larger than article pages.
func New(source config.SourceConfig, headers map[string]string, client *http.Client, alerter ports.Alerter, logger *slog.Logger) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if alerter == nil {
		alerter = ports.NopAlerter{}
	}
	return &Scanner{
		source:  source,
		headers: headers,
		client:  client,
		feed:    gofeed.NewParser(),
		logger:  logger,
		alerter: alerter,
	}
}

// Source returns the descriptor this scanner was built from.
func (s *Scanner) Source() config.SourceConfig {
	return s.source
}

// Scan returns the candidate links currently visible at the source.
func (s *Scanner) Scan(ctx context.Context) []domain.CandidateLink {
	switch s.source.Mode {
	case config.ModeScrape:
		return s.scanPage(ctx)
	default:
		return s.scanXML(ctx)
	}
}

// scanXML fetches the feed/sitemap endpoint with conditional headers and
// dispatches on document shape: a parseable feed wins, anything else is
// tried as a sitemap.
func (s *Scanner) scanXML(ctx context.Context) []domain.CandidateLink {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source.URL, nil)
	if err != nil {
		s.fail("network", fmt.Sprintf("build request: %v", err))
		return nil
	}
	s.applyHeaders(req)

	s.mu.Lock()
	if s.lastModified != "" {
		req.Header.Set("If-Modified-Since", s.lastModified)
	}
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		s.fail("network", fmt.Sprintf("fetch feed: %v", err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		s.logger.Debug("feed not modified", "source", s.source.Name)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		s.fail("network", fmt.Sprintf("feed status %s", resp.Status))
		return nil
	}

	s.mu.Lock()
	s.lastModified = resp.Header.Get("Last-Modified")
	s.etag = resp.Header.Get("ETag")
	s.mu.Unlock()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		s.fail("network", fmt.Sprintf("read feed body: %v", err))
		return nil
	}

	if feed, err := s.feed.Parse(bytes.NewReader(body)); err == nil && len(feed.Items) > 0 {
		links := s.fromFeed(feed)
		s.succeed(len(links), "feed")
		return links
	}

	links, err := parseSitemap(body)
	if err != nil {
		s.fail("parse", fmt.Sprintf("parse xml: %v", err))
		return nil
	}
	for i := range links {
		links[i].SourceName = s.source.Name
		links[i].SiteKey = s.source.SiteKey
	}
	s.succeed(len(links), "sitemap")
	return links
}

func (s *Scanner) fromFeed(feed *gofeed.Feed) []domain.CandidateLink {
	links := make([]domain.CandidateLink, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		links = append(links, domain.CandidateLink{
			URL:        item.Link,
			Title:      item.Title,
			SourceID:   domain.DeriveID(item.Link),
			SourceName: s.source.Name,
			SiteKey:    s.source.SiteKey,
			Published:  item.Published,
		})
	}
	return links
}

// scanPage scrapes the source homepage for headline links.
func (s *Scanner) scanPage(ctx context.Context) []domain.CandidateLink {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source.URL, nil)
	if err != nil {
		s.fail("network", fmt.Sprintf("build request: %v", err))
		return nil
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		s.fail("network", fmt.Sprintf("fetch page: %v", err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.fail("network", fmt.Sprintf("page status %s", resp.Status))
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		s.fail("parse", fmt.Sprintf("parse page: %v", err))
		return nil
	}

	base, err := url.Parse(s.source.URL)
	if err != nil {
		s.fail("parse", fmt.Sprintf("bad source url: %v", err))
		return nil
	}

	seen := map[string]struct{}{}
	var links []domain.CandidateLink

	for _, selector := range scrapeSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok || href == "" {
				return
			}
			abs := absolutize(base, href)
			if abs == "" {
				return
			}
			if _, dup := seen[abs]; dup {
				return
			}
			seen[abs] = struct{}{}
			if !IsArticleURL(abs) {
				return
			}
			links = append(links, domain.CandidateLink{
				URL:        abs,
				Title:      trimText(sel),
				SourceID:   domain.DeriveID(abs),
				SourceName: s.source.Name,
				SiteKey:    s.source.SiteKey,
			})
		})
	}

	s.succeed(len(links), "page")
	return links
}

// CheckExists probes a URL for liveness, following redirects.
func (s *Scanner) CheckExists(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (s *Scanner) applyHeaders(req *http.Request) {
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "newshunter/1.0")
	}
}

func (s *Scanner) fail(errType, msg string) {
	s.logger.Warn("scan failed", "source", s.source.Name, "type", errType, "error", msg)
	s.alerter.ReportError(context.Background(), s.source.Name, errType, msg, s.source.URL)
}

func (s *Scanner) succeed(count int, mode string) {
	s.logger.Debug("scan complete", "source", s.source.Name, "mode", mode, "links", count)
	s.alerter.ReportSuccess(s.source.Name)
}

func absolutize(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

func trimText(sel *goquery.Selection) string {
	return collapseSpace(sel.Text())
}
