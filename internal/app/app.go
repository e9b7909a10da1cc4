package app

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"newshunter/internal/alert"
	"newshunter/internal/capture"
	"newshunter/internal/config"
	"newshunter/internal/domain"
	"newshunter/internal/events"
	"newshunter/internal/extract"
	"newshunter/internal/hunter"
	"newshunter/internal/logging"
	"newshunter/internal/storage"
	"newshunter/internal/worker"
)

// App owns the wired pipeline: store, scanners, capture engine, retry
// pool and the orchestrator, built once from the config file.
type App struct {
	cfg     config.Config
	store   *storage.Store
	watcher *config.Watcher
	images  *capture.ImageFetcher
	pool    *worker.Pool
	hunter  *hunter.Hunter
}

// New loads the config at path and builds the full pipeline. It fails
// only on the two things the process cannot run without: configuration
// and the store.
func New(path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateRunnable(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare data directories: %w", err)
	}

	logger := logging.New(cfg.System.LogLevel)

	index, err := storage.OpenIndex(cfg.Storage.IndexPath())
	if err != nil {
		// Search degrades to substring matching; everything else works.
		logger.Warn("full-text index unavailable", "error", err)
		index = nil
	}

	store, err := storage.Open(cfg.Storage.DBPath(), storage.Options{
		ImagesDir: cfg.Storage.ImagesPath(),
		Index:     index,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: cfg.Worker.ConnTimeout()}).DialContext,
	}
	client := &http.Client{
		Timeout:   cfg.Worker.Timeout(),
		Transport: transport,
	}
	// Discovery documents run larger than article pages, so the
	// scanners get a client with more headroom.
	scanClient := &http.Client{
		Timeout:   cfg.Worker.DiscoveryTimeout(),
		Transport: transport,
	}

	alerter := alert.New(cfg.Alerting, store, logger)
	bus := events.NewBus(0, logger)
	extractor := extract.New(cfg.SelectorsFor)

	var images *capture.ImageFetcher
	if cfg.Storage.SaveImages {
		images = capture.NewImageFetcher(store, cfg.Storage.ImagesPath(), client, cfg.Headers, logger)
	}

	engine := capture.New(store, extractor, capture.Options{
		Client:     client,
		Headers:    cfg.Headers,
		FetchLimit: cfg.Worker.FetchLimit,
		Images:     images,
		Alerter:    alerter,
		Listener:   bus,
		Logger:     logger,
	})

	pool := worker.New(
		func(ctx context.Context, link domain.CandidateLink) error {
			_, err := engine.Capture(ctx, link)
			return err
		},
		worker.Options{
			Workers:     cfg.Worker.Count,
			MaxRetries:  cfg.Worker.MaxRetries,
			TaskTimeout: cfg.Worker.Timeout(),
			OnDrop: func(link domain.CandidateLink, lastErr error) {
				alerter.ReportError(context.Background(), link.SourceName,
					"retry_exhausted", lastErr.Error(), link.URL)
			},
			Logger: logger,
		})

	watcher, err := config.NewWatcher(path, logger)
	if err != nil {
		logger.Warn("config hot reload disabled", "error", err)
		watcher = nil
	}

	var updates <-chan config.Config
	if watcher != nil {
		updates = watcher.Changes()
	}

	h := hunter.New(cfg, store, engine, hunter.Options{
		Client:   scanClient,
		Pool:     pool,
		Alerter:  alerter,
		Listener: bus,
		Updates:  updates,
		Logger:   logger,
	})

	return &App{
		cfg:     cfg,
		store:   store,
		watcher: watcher,
		images:  images,
		pool:    pool,
		hunter:  h,
	}, nil
}

// Run drives the pipeline until ctx is canceled, then drains image
// downloads and closes the store.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.watcher != nil {
		g.Go(func() error {
			a.watcher.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		a.pool.Run(gctx)
		return nil
	})
	g.Go(func() error {
		err := a.hunter.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	err := g.Wait()

	if a.images != nil {
		a.images.Wait()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
