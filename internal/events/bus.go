package events

import (
	"log/slog"
	"sync"

	"newshunter/internal/domain"
	"newshunter/internal/ports"
)

// Event is one pipeline occurrence delivered to subscribers.
type Event struct {
	Kind    string // "article" or "log"
	Article *domain.Article
	Message string
	Level   string
}

// Bus fans pipeline events out to subscribers over bounded channels.
// Publishing never blocks: a subscriber that stops draining loses
// events rather than stalling the capture path.
type Bus struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	size    int
	dropped int64
	logger  *slog.Logger
}

var _ ports.Listener = (*Bus)(nil)

// NewBus builds a Bus whose subscriber channels buffer size events.
func NewBus(size int, logger *slog.Logger) *Bus {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[chan Event]struct{}),
		size:   size,
		logger: logger.With("component", "events"),
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function that closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.size)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// ArticleCaptured publishes a capture event.
func (b *Bus) ArticleCaptured(a domain.Article) {
	b.publish(Event{Kind: "article", Article: &a})
}

// Log publishes a log event.
func (b *Bus) Log(msg, level string) {
	b.publish(Event{Kind: "log", Message: msg, Level: level})
}

// Dropped reports how many events were lost to full subscriber buffers.
func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
}
