package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newshunter/internal/config"
	"newshunter/internal/ports"
)

// ErrNoTitle marks a page the selectors could not pull a title from.
// Retrying will not fix a structurally unparsable page, so callers treat
// this as a hard parse failure.
var ErrNoTitle = fmt.Errorf("extract: no title found")

// removeTags are stripped from article bodies wholesale.
var removeTags = []string{
	"script", "style", "iframe", "noscript", "svg",
	"button", "input", "form", "nav", "footer", "aside",
}

// junkClass matches class names of ad/social/related blocks.
var junkClass = regexp.MustCompile(`(?i)(ads?|advert|banner|promo|sponsor|social|share|related|comment)`)

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Extractor implements the field-extraction contract with per-site CSS
// selector sets from configuration.
type Extractor struct {
	selectors func(siteKey string) config.SelectorSet
}

var _ ports.Extractor = (*Extractor)(nil)

// New builds an extractor around a selector-set resolver, normally
// config.Config.SelectorsFor.
func New(selectors func(siteKey string) config.SelectorSet) *Extractor {
	return &Extractor{selectors: selectors}
}

// Extract pulls structured fields out of raw article markup. Only the
// title is required; every other field defaults to empty.
func (e *Extractor) Extract(html []byte, pageURL, siteKey string) (ports.Fields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ports.Fields{}, fmt.Errorf("extract: parse html: %w", err)
	}

	sel := e.selectors(siteKey)

	fields := ports.Fields{
		Title:       text(doc, sel.Title),
		Summary:     text(doc, sel.Summary),
		Author:      text(doc, sel.Author),
		PublishedAt: publishedAt(doc, sel.Time),
		Category:    category(doc),
	}
	if fields.Title == "" {
		return ports.Fields{}, ErrNoTitle
	}

	content := findContent(doc, sel.Content)
	if content != nil {
		cleaned := clean(content)
		fields.ContentHTML, _ = goquery.OuterHtml(cleaned)
		fields.ContentText = flattenText(cleaned)
		fields.Images = images(cleaned, pageURL)
	}

	return fields, nil
}

func text(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// publishedAt prefers the configured time selector, then standard meta
// tags, then any <time datetime> attribute. The raw string is kept;
// formats are source-dependent.
func publishedAt(doc *goquery.Document, selector string) string {
	if v := text(doc, selector); v != "" {
		return v
	}
	if v, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok && v != "" {
		return v
	}
	if v, ok := doc.Find("time").First().Attr("datetime"); ok && v != "" {
		return v
	}
	return ""
}

func category(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="article:section"]`).First().Attr("content"); ok && v != "" {
		return v
	}
	return strings.TrimSpace(doc.Find(".breadcrumb a:last-child").First().Text())
}

func findContent(doc *goquery.Document, selector string) *goquery.Selection {
	candidates := []string{selector, "article", ".article-body", ".post-content", "main"}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if sel := doc.Find(c).First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// clean removes non-content markup from the body selection in place.
func clean(content *goquery.Selection) *goquery.Selection {
	for _, tag := range removeTags {
		content.Find(tag).Remove()
	}
	content.Find("[class]").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		if junkClass.MatchString(class) {
			sel.Remove()
		}
	})
	return content
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

func flattenText(content *goquery.Selection) string {
	var b strings.Builder
	content.Find("p, h1, h2, h3, h4, li, blockquote").Each(func(_ int, sel *goquery.Selection) {
		line := strings.TrimSpace(sel.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	})
	out := b.String()
	if out == "" {
		out = strings.TrimSpace(content.Text())
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(out, "\n\n"))
}

func images(content *goquery.Selection, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var out []string
	content.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("data-src")
		if !ok || src == "" {
			src, _ = img.Attr("src")
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}
		lower := strings.ToLower(src)
		for _, ext := range imageExts {
			if strings.Contains(lower, ext) {
				out = append(out, src)
				break
			}
		}
	})
	return out
}
