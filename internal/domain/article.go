package domain

import "time"

// Status is the triage state of a captured article.
type Status int

const (
	StatusDiscarded Status = -1
	StatusNew       Status = 0
	StatusPicked    Status = 1
	StatusArchived  Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusPicked:
		return "picked"
	case StatusArchived:
		return "archived"
	case StatusDiscarded:
		return "discarded"
	}
	return "unknown"
}

// transitions lists the reachable states from each non-terminal state.
// Archived and Discarded are terminal.
var transitions = map[Status][]Status{
	StatusNew:    {StatusPicked},
	StatusPicked: {StatusNew, StatusArchived, StatusDiscarded},
}

// CanTransition reports whether from -> to is a valid triage move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionSources returns every state from which to is reachable.
func TransitionSources(to Status) []Status {
	var from []Status
	for src, dsts := range transitions {
		for _, dst := range dsts {
			if dst == to {
				from = append(from, src)
			}
		}
	}
	return from
}

// Article is the durable unit produced by the capture engine.
type Article struct {
	ID          string
	Source      string // host of the canonical URL
	SourceName  string // configured source name
	URL         string
	Title       string
	Summary     string
	Author      string
	ContentText string
	ContentHTML string
	Images      []string
	PublishedAt string // source-dependent format, stored verbatim
	CapturedAt  time.Time
	Status      Status
	LinkAlive   bool
	Category    string
}

// CandidateLink is a transient discovery result. It either becomes an
// Article or is dropped; it is never persisted.
type CandidateLink struct {
	URL        string
	Title      string
	SourceID   string // source-local article id, advisory only
	SourceName string
	SiteKey    string
	Published  string
}

// SeenURL is the dedup gate record, written at most once per URL.
type SeenURL struct {
	URL        string
	ArticleID  string
	SourceName string
	FirstSeen  time.Time
}

// ScanState is the per-source capture checkpoint. Advisory only;
// seen_urls stays the dedup authority.
type ScanState struct {
	SourceName    string
	LastArticleID string
	LastURL       string
	LastScan      time.Time
	Count         int64
}

// ImageRecord tracks one remote image of an article. Its lifecycle is
// independent of the article status.
type ImageRecord struct {
	ID         string
	ArticleID  string
	URL        string
	LocalPath  string
	Downloaded bool
	CreatedAt  time.Time
}

// Stats is a point-in-time aggregate over the store.
type Stats struct {
	Total     int64
	New       int64
	Picked    int64
	Archived  int64
	Discarded int64
	DeadLinks int64
	Today     int64
	SizeBytes int64
}
