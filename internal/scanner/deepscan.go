package scanner

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newshunter/internal/domain"
)

// DeepScanOptions configures the historical backfill walk for one source.
// Listing markup varies per site, so the selectors and date format come
// from the caller.
type DeepScanOptions struct {
	ListURL      string // paginated listing endpoint
	PageParam    string // query parameter carrying the page number
	ItemSelector string // one listing entry
	DateSelector string // date element inside an entry
	DateFormat   string // time.Parse layout for the date text
	MaxPages     int    // absolute ceiling on pages walked
}

func (o *DeepScanOptions) fill() {
	if o.PageParam == "" {
		o.PageParam = "page"
	}
	if o.ItemSelector == "" {
		o.ItemSelector = ".list-news li"
	}
	if o.DateSelector == "" {
		o.DateSelector = ".time"
	}
	if o.DateFormat == "" {
		o.DateFormat = "02/01/2006"
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 50
	}
}

// DeepScan walks a source's listing pages backward to find articles
// published on the target day. It assumes per-page dates decrease
// monotonically: once the newest date on a page is older than the
// target, later pages cannot contain it and the walk stops. MaxPages
// bounds the worst case when that assumption breaks.
func (s *Scanner) DeepScan(ctx context.Context, target time.Time, opts DeepScanOptions) ([]domain.CandidateLink, error) {
	opts.fill()
	targetDay := target.UTC().Truncate(24 * time.Hour)

	base, err := url.Parse(opts.ListURL)
	if err != nil {
		return nil, fmt.Errorf("deep scan: invalid list url: %w", err)
	}

	seen := map[string]struct{}{}
	var results []domain.CandidateLink

	for page := 1; page <= opts.MaxPages; page++ {
		doc, err := s.fetchListing(ctx, buildListingURL(base, opts.PageParam, page))
		if err != nil {
			return results, fmt.Errorf("deep scan page %d: %w", page, err)
		}

		links, maxDay, found := extractListing(doc, base, opts, targetDay)
		for _, l := range links {
			if _, dup := seen[l.URL]; dup {
				continue
			}
			seen[l.URL] = struct{}{}
			l.SourceName = s.source.Name
			l.SiteKey = s.source.SiteKey
			results = append(results, l)
		}

		if !found || maxDay.Before(targetDay) {
			break
		}
	}

	return results, nil
}

func (s *Scanner) fetchListing(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return doc, nil
}

// extractListing collects target-day candidates from a listing page and
// reports the newest item date seen, for the early-termination check.
func extractListing(doc *goquery.Document, base *url.URL, opts DeepScanOptions, targetDay time.Time) ([]domain.CandidateLink, time.Time, bool) {
	var (
		links   []domain.CandidateLink
		maxDay  time.Time
		anyDate bool
	)

	doc.Find(opts.ItemSelector).Each(func(_ int, item *goquery.Selection) {
		dateText := collapseSpace(item.Find(opts.DateSelector).First().Text())
		day, err := time.Parse(opts.DateFormat, dateText)
		if err != nil {
			return
		}
		day = day.UTC().Truncate(24 * time.Hour)
		anyDate = true
		if day.After(maxDay) {
			maxDay = day
		}
		if !day.Equal(targetDay) {
			return
		}

		link := item.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		abs := absolutize(base, href)
		if abs == "" || !IsArticleURL(abs) {
			return
		}
		links = append(links, domain.CandidateLink{
			URL:       abs,
			Title:     trimText(link),
			SourceID:  domain.DeriveID(abs),
			Published: dateText,
		})
	})

	return links, maxDay, anyDate
}

func buildListingURL(base *url.URL, param string, page int) string {
	u := *base
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
