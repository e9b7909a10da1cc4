package scanner

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"newshunter/internal/domain"
)

var (
	xmlnsAttr = regexp.MustCompile(`\sxmlns[^=]*="[^"]*"`)
	nsPrefix  = regexp.MustCompile(`<(/?)(\w+):`)
)

// stripNamespaces removes xmlns declarations and element prefixes so
// Google News sitemaps and vanilla ones parse through the same struct.
func stripNamespaces(body []byte) []byte {
	body = xmlnsAttr.ReplaceAll(body, nil)
	return nsPrefix.ReplaceAll(body, []byte("<$1"))
}

type sitemapDoc struct {
	URLs []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
	Title   string `xml:"news>title"`
}

// parseSitemap extracts article candidates from a sitemap document,
// applying the article-URL shape filter to each entry.
func parseSitemap(body []byte) ([]domain.CandidateLink, error) {
	var doc sitemapDoc
	if err := xml.Unmarshal(stripNamespaces(body), &doc); err != nil {
		return nil, fmt.Errorf("sitemap: %w", err)
	}

	var links []domain.CandidateLink
	for _, entry := range doc.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" || !IsArticleURL(loc) {
			continue
		}
		links = append(links, domain.CandidateLink{
			URL:       loc,
			Title:     strings.TrimSpace(entry.Title),
			SourceID:  domain.DeriveID(loc),
			Published: strings.TrimSpace(entry.LastMod),
		})
	}
	return links, nil
}

// Patterns that mark a URL as a listing, utility or asset path rather
// than an article.
var skipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/tag/`),
	regexp.MustCompile(`(?i)/category/`),
	regexp.MustCompile(`(?i)/author/`),
	regexp.MustCompile(`(?i)/page/`),
	regexp.MustCompile(`(?i)/search/`),
	regexp.MustCompile(`(?i)/login/`),
	regexp.MustCompile(`(?i)/register/`),
	regexp.MustCompile(`(?i)\.(css|js|png|jpg|gif|ico|svg)$`),
}

var (
	articleExt  = regexp.MustCompile(`(?i)\.(htm|html|aspx)$`)
	numericTail = regexp.MustCompile(`/\d+/?$`)
)

// IsArticleURL reports whether a URL looks like an article page: not a
// known listing/asset shape, and ending in an article extension or a
// numeric path segment.
func IsArticleURL(u string) bool {
	for _, p := range skipPatterns {
		if p.MatchString(u) {
			return false
		}
	}
	return articleExt.MatchString(u) || numericTail.MatchString(u)
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
