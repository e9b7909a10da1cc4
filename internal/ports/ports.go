package ports

import (
	"context"

	"newshunter/internal/domain"
)

// Fields is the result of the field-extraction contract.
type Fields struct {
	Title       string
	Summary     string
	Author      string
	PublishedAt string
	ContentHTML string
	ContentText string
	Images      []string
	Category    string
}

// Extractor turns raw article markup into structured fields. A missing
// title is an extraction failure; every other field may come back empty.
type Extractor interface {
	Extract(html []byte, pageURL, siteKey string) (Fields, error)
}

// Alerter receives every per-source failure and success. Threshold and
// cooldown logic live behind this interface, not in the pipeline.
type Alerter interface {
	ReportError(ctx context.Context, source, errType, message, url string)
	ReportSuccess(source string)
}

// Listener observes pipeline lifecycle events. Implementations must not
// block; the capture path calls ArticleCaptured synchronously.
type Listener interface {
	ArticleCaptured(a domain.Article)
	Log(msg, level string)
}

// Store is the persistence surface the ingestion side depends on. The
// storage package implements it; tests substitute in-memory fakes.
type Store interface {
	IsSeen(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, url, articleID, sourceName string) error
	FilterNew(ctx context.Context, urls []string) ([]string, error)
	SaveArticle(ctx context.Context, a domain.Article) error
	UpdateLinkAlive(ctx context.Context, url string, alive bool) error
	UpdateCheckpoint(ctx context.Context, sourceName, articleID, url string) error
	SaveImage(ctx context.Context, rec domain.ImageRecord) error
	MarkImageDownloaded(ctx context.Context, imageID, localPath string) error
}

// NopAlerter discards every report.
type NopAlerter struct{}

var _ Alerter = NopAlerter{}

func (NopAlerter) ReportError(context.Context, string, string, string, string) {}
func (NopAlerter) ReportSuccess(string)                                        {}

// NopListener ignores every event.
type NopListener struct{}

var _ Listener = NopListener{}

func (NopListener) ArticleCaptured(domain.Article) {}
func (NopListener) Log(string, string)             {}
