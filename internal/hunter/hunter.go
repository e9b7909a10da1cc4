package hunter

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newshunter/internal/capture"
	"newshunter/internal/config"
	"newshunter/internal/domain"
	"newshunter/internal/ports"
	"newshunter/internal/scanner"
	"newshunter/internal/worker"
)

const (
	// rateLimitBackoff pauses a source after a batch saw 429/403.
	rateLimitBackoff = 2 * time.Minute
	// sweepInterval spaces the dead-link probes over stored articles.
	sweepInterval = time.Hour
	sweepBatch    = 50
)

// Store is the slice of the storage surface the orchestrator itself
// touches. Capture-path persistence goes through the Engine.
type Store interface {
	Prune(ctx context.Context, retention time.Duration) (int, error)
	Stats(ctx context.Context) (domain.Stats, error)
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Article, error)
}

// Options wires a Hunter.
type Options struct {
	Client   *http.Client // discovery client handed to the scanners
	Pool     *worker.Pool
	Alerter  ports.Alerter
	Listener ports.Listener
	Updates  <-chan config.Config // optional live-reload feed
	Logger   *slog.Logger
}

// Hunter drives the scan/capture cycle: every poll interval it scans
// each due source, captures whatever is new, hands transient failures
// to the retry pool, and backs off sources that rate limit.
type Hunter struct {
	store    Store
	engine   *capture.Engine
	client   *http.Client
	pool     *worker.Pool
	alerter  ports.Alerter
	listener ports.Listener
	updates  <-chan config.Config
	logger   *slog.Logger
	rng      *rand.Rand

	mu       sync.Mutex
	cfg      config.Config
	scanners []*scanner.Scanner

	lastScan  map[string]time.Time
	pausedTo  map[string]time.Time
	lastSweep time.Time
}

// New builds a Hunter over the given engine and store.
func New(cfg config.Config, store Store, engine *capture.Engine, opts Options) *Hunter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	alerter := opts.Alerter
	if alerter == nil {
		alerter = ports.NopAlerter{}
	}
	listener := opts.Listener
	if listener == nil {
		listener = ports.NopListener{}
	}
	h := &Hunter{
		store:    store,
		engine:   engine,
		client:   opts.Client,
		pool:     opts.Pool,
		alerter:  alerter,
		listener: listener,
		updates:  opts.Updates,
		logger:   logger.With("component", "hunter"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		lastScan: make(map[string]time.Time),
		pausedTo: make(map[string]time.Time),
	}
	h.apply(cfg)
	return h
}

// Reload swaps in a new configuration, rebuilding the per-source
// scanners. In-flight work keeps the old settings until it finishes.
func (h *Hunter) Reload(cfg config.Config) {
	h.apply(cfg)
	h.logger.Info("configuration reloaded", "sources", len(cfg.EnabledSources()))
	h.listener.Log("configuration reloaded", "info")
}

func (h *Hunter) apply(cfg config.Config) {
	scanners := make([]*scanner.Scanner, 0, len(cfg.EnabledSources()))
	for _, src := range cfg.EnabledSources() {
		scanners = append(scanners, scanner.New(src, cfg.Headers, h.client, h.alerter, h.logger))
	}
	h.mu.Lock()
	h.cfg = cfg
	h.scanners = scanners
	h.mu.Unlock()
}

// Run executes cycles until ctx is canceled. It blocks.
func (h *Hunter) Run(ctx context.Context) error {
	h.mu.Lock()
	cleanup := h.cfg.Hunter.Cleanup
	h.mu.Unlock()

	if cleanup.RunOnStart && cleanup.RetentionDays > 0 {
		retention := time.Duration(cleanup.RetentionDays) * 24 * time.Hour
		if n, err := h.store.Prune(ctx, retention); err != nil {
			h.logger.Warn("startup prune", "error", err)
		} else if n > 0 {
			h.logger.Info("startup prune removed articles", "count", n)
		}
	}

	h.logger.Info("hunt started")
	for {
		if ctx.Err() != nil {
			h.logger.Info("hunt stopped")
			return ctx.Err()
		}
		h.tick(ctx)

		h.mu.Lock()
		interval := h.cfg.Hunter.PollInterval()
		h.mu.Unlock()
		if !h.sleep(ctx, interval+h.jitter()) {
			h.logger.Info("hunt stopped")
			return ctx.Err()
		}
	}
}

// tick runs one cycle: scan every due source concurrently and capture
// what turned up.
func (h *Hunter) tick(ctx context.Context) {
	h.mu.Lock()
	scanners := h.scanners
	h.mu.Unlock()

	now := time.Now()
	var due []*scanner.Scanner
	for _, sc := range scanners {
		name := sc.Source().Name
		if until, paused := h.pausedTo[name]; paused && now.Before(until) {
			continue
		}
		freq := time.Duration(sc.Source().Frequency) * time.Second
		if freq > 0 && now.Sub(h.lastScan[name]) < freq {
			continue
		}
		due = append(due, sc)
	}
	if len(due) == 0 {
		return
	}

	var (
		mu       sync.Mutex
		captured int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, sc := range due {
		sc := sc
		g.Go(func() error {
			name := sc.Source().Name
			links := sc.Scan(gctx)
			mu.Lock()
			h.lastScan[name] = time.Now()
			mu.Unlock()
			if len(links) == 0 {
				return nil
			}

			res, err := h.engine.CaptureBatch(gctx, links)
			if err != nil {
				return err
			}

			mu.Lock()
			captured += len(res.Captured)
			if len(res.RateLimited) > 0 {
				h.pausedTo[name] = time.Now().Add(rateLimitBackoff)
			}
			mu.Unlock()

			if len(res.RateLimited) > 0 {
				h.logger.Warn("source rate limited, backing off",
					"source", name, "urls", len(res.RateLimited), "backoff", rateLimitBackoff)
			}
			if h.pool != nil {
				for _, link := range res.Transient {
					h.pool.Submit(link, 0)
				}
			}
			h.logger.Info("cycle source done",
				"source", name,
				"found", len(links),
				"captured", len(res.Captured),
				"duplicates", res.Duplicates,
				"failed", len(res.Failed))
			return nil
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		h.logger.Error("cycle aborted", "error", err)
		return
	}

	if captured > 0 {
		h.logStats(ctx, captured)
	}
	h.maybeSweep(ctx)
}

func (h *Hunter) logStats(ctx context.Context, captured int) {
	st, err := h.store.Stats(ctx)
	if err != nil {
		h.logger.Warn("read stats", "error", err)
		return
	}
	pending := 0
	if h.pool != nil {
		pending = h.pool.Pending()
	}
	h.logger.Info("cycle complete",
		"captured", captured,
		"total", st.Total,
		"new", st.New,
		"picked", st.Picked,
		"today", st.Today,
		"retry_pending", pending)
}

// maybeSweep probes link health of picked and archived articles, at
// most sweepBatch per pass and one pass per sweepInterval.
func (h *Hunter) maybeSweep(ctx context.Context) {
	if time.Since(h.lastSweep) < sweepInterval {
		return
	}
	h.lastSweep = time.Now()

	checked := 0
	for _, status := range []domain.Status{domain.StatusPicked, domain.StatusArchived} {
		articles, err := h.store.ListByStatus(ctx, status, sweepBatch-checked)
		if err != nil {
			h.logger.Warn("list for link sweep", "error", err)
			return
		}
		for _, a := range articles {
			if ctx.Err() != nil {
				return
			}
			alive, err := h.engine.CheckLinkAlive(ctx, a.URL)
			if err != nil {
				h.logger.Warn("link probe", "url", a.URL, "error", err)
				continue
			}
			if !alive && a.LinkAlive {
				h.logger.Info("link went dead", "id", a.ID, "url", a.URL)
			}
			checked++
		}
		if checked >= sweepBatch {
			break
		}
	}
	if checked > 0 {
		h.logger.Info("link sweep done", "checked", checked)
	}
}

// jitter spreads cycles by 0.5 to 2 seconds so sources never see a
// metronome.
func (h *Hunter) jitter() time.Duration {
	return time.Duration((0.5 + h.rng.Float64()*1.5) * float64(time.Second))
}

// sleep waits for d in one-second slices, applying config updates as
// they arrive. Returns false when ctx is canceled.
func (h *Hunter) sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return true
		}
		step := time.Second
		if remain < step {
			step = remain
		}
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case cfg, ok := <-h.updates:
			timer.Stop()
			if !ok {
				h.updates = nil
				continue
			}
			h.Reload(cfg)
		case <-timer.C:
		}
	}
}
