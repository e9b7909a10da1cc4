package domain

import (
	"fmt"
	"hash/fnv"
	"regexp"
)

// idPatterns is an ordered ladder of URL-id extraction strategies; the
// first match wins. The order matters: the long numeric suffix must be
// tried before shorter ones so sites with 15+ digit ids do not lose
// precision to the generic rules.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`-(\d{15,20})\.htm`),
	regexp.MustCompile(`-(\d{6,10})\.htm`),
	regexp.MustCompile(`/(\d{6,12})\.html?`),
	regexp.MustCompile(`-(\d+)\.html?`),
}

var lastSegment = regexp.MustCompile(`/([^/]+?)(?:\.htm|\.html)?/?$`)

// DeriveID maps a URL to a stable article id. Every path through the
// system derives ids with this one function so that capture stays
// idempotent for a given URL regardless of which component saw it first.
func DeriveID(url string) string {
	for _, p := range idPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	if m := lastSegment.FindStringSubmatch(url); m != nil {
		seg := m[1]
		if len(seg) > 50 {
			seg = seg[:50]
		}
		if seg != "" {
			return seg
		}
	}
	h := fnv.New64a()
	h.Write([]byte(url))
	return fmt.Sprintf("u%x", h.Sum64())
}

// DeriveImageID gives an image record a deterministic id from its owning
// article and remote URL.
func DeriveImageID(articleID, imageURL string) string {
	h := fnv.New64a()
	h.Write([]byte(articleID))
	h.Write([]byte{0})
	h.Write([]byte(imageURL))
	return fmt.Sprintf("i%x", h.Sum64())
}
