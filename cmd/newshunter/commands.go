package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newshunter/internal/capture"
	"newshunter/internal/config"
	"newshunter/internal/domain"
	"newshunter/internal/extract"
	"newshunter/internal/logging"
	"newshunter/internal/scanner"
	"newshunter/internal/storage"
)

// runCommand executes one maintenance command against the store and
// exits. Runs with the pipeline stopped or alongside it; WAL keeps the
// two from blocking each other.
func runCommand(configPath string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New("warn")

	index, err := storage.OpenIndex(cfg.Storage.IndexPath())
	if err != nil {
		index = nil
	}
	store, err := storage.Open(cfg.Storage.DBPath(), storage.Options{
		ImagesDir: cfg.Storage.ImagesPath(),
		Index:     index,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "stats":
		return showStats(ctx, store)
	case "list":
		return listArticles(ctx, store, rest)
	case "pick", "unpick", "archive", "discard":
		return transition(ctx, store, cmd, rest)
	case "search":
		return searchArticles(ctx, store, rest)
	case "export":
		return exportArticles(ctx, store, rest)
	case "import":
		return importArticles(ctx, store, rest)
	case "backup":
		if len(rest) != 1 {
			return fmt.Errorf("backup needs a destination file")
		}
		return store.Backup(ctx, rest[0])
	case "deepscan":
		return deepScan(ctx, store, cfg, logger, rest)
	case "prune":
		return prune(ctx, store, cfg, rest)
	case "reindex":
		n, err := store.Reindex(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("reindexed %d articles\n", n)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func showStats(ctx context.Context, store *storage.Store) error {
	st, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("total      %d\n", st.Total)
	fmt.Printf("new        %d\n", st.New)
	fmt.Printf("picked     %d\n", st.Picked)
	fmt.Printf("archived   %d\n", st.Archived)
	fmt.Printf("discarded  %d\n", st.Discarded)
	fmt.Printf("dead links %d\n", st.DeadLinks)
	fmt.Printf("today      %d\n", st.Today)
	fmt.Printf("db size    %.1f MB\n", float64(st.SizeBytes)/(1<<20))
	return nil
}

func parseStatus(name string) (domain.Status, error) {
	switch name {
	case "new":
		return domain.StatusNew, nil
	case "picked":
		return domain.StatusPicked, nil
	case "archived":
		return domain.StatusArchived, nil
	case "discarded":
		return domain.StatusDiscarded, nil
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

func listArticles(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("list needs a status")
	}
	status, err := parseStatus(args[0])
	if err != nil {
		return err
	}
	limit := 20
	if len(args) > 1 {
		if limit, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("bad limit %q", args[1])
		}
	}

	articles, err := store.ListByStatus(ctx, status, limit)
	if err != nil {
		return err
	}
	printArticles(articles)
	return nil
}

// resolveID accepts an article id or its URL and returns the id.
func resolveID(ctx context.Context, store *storage.Store, arg string) (string, error) {
	if !strings.Contains(arg, "://") {
		return arg, nil
	}
	a, err := store.GetByURL(ctx, arg)
	if err != nil {
		return "", err
	}
	if a == nil {
		return "", fmt.Errorf("no article with url %s", arg)
	}
	return a.ID, nil
}

func transition(ctx context.Context, store *storage.Store, cmd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s needs an article id or url", cmd)
	}
	id, err := resolveID(ctx, store, args[0])
	if err != nil {
		return err
	}

	var ok bool
	switch cmd {
	case "pick":
		ok, err = store.Pick(ctx, id)
	case "unpick":
		ok, err = store.Unpick(ctx, id)
	case "archive":
		ok, err = store.Archive(ctx, id)
	case "discard":
		ok, err = store.Discard(ctx, id)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: article missing or not in a state that allows it", cmd, id)
	}
	fmt.Printf("%s %s\n", cmd, id)
	return nil
}

func searchArticles(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("search needs a query")
	}
	limit := 20
	if len(args) > 1 {
		var err error
		if limit, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("bad limit %q", args[1])
		}
	}

	articles, err := store.Search(ctx, args[0], limit)
	if err != nil {
		return err
	}
	printArticles(articles)
	return nil
}

func exportArticles(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("export needs a destination file")
	}
	var status *domain.Status
	if len(args) > 1 {
		st, err := parseStatus(args[1])
		if err != nil {
			return err
		}
		status = &st
	}

	n, err := store.ExportJSON(ctx, args[0], status)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d articles to %s\n", n, args[0])
	return nil
}

func importArticles(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("import needs a source file")
	}
	merge := true
	if len(args) > 1 && args[1] == "--replace" {
		merge = false
	}

	res, err := store.Import(ctx, args[0], merge)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d articles, %d images\n", res.Articles, res.Images)
	return nil
}

// deepScan backfills one source for a single day: it walks the source's
// paginated listing for articles published then and captures them. Works
// on disabled sources too, so a source can be backfilled before it is
// turned on.
func deepScan(ctx context.Context, store *storage.Store, cfg config.Config, logger *slog.Logger, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("deepscan needs a source name and a date (YYYY-MM-DD)")
	}
	var src *config.SourceConfig
	for i := range cfg.Sources {
		if cfg.Sources[i].Name == args[0] {
			src = &cfg.Sources[i]
			break
		}
	}
	if src == nil {
		return fmt.Errorf("unknown source %q", args[0])
	}
	if src.DeepScan.ListURL == "" {
		return fmt.Errorf("source %s has no deepScan listing configured", src.Name)
	}
	day, err := time.Parse("2006-01-02", args[1])
	if err != nil {
		return fmt.Errorf("bad date %q, want YYYY-MM-DD", args[1])
	}

	sc := scanner.New(*src, cfg.Headers,
		&http.Client{Timeout: cfg.Worker.DiscoveryTimeout()}, nil, logger)
	links, err := sc.DeepScan(ctx, day, scanner.DeepScanOptions{
		ListURL:      src.DeepScan.ListURL,
		PageParam:    src.DeepScan.PageParam,
		ItemSelector: src.DeepScan.ItemSelector,
		DateSelector: src.DeepScan.DateSelector,
		DateFormat:   src.DeepScan.DateFormat,
		MaxPages:     src.DeepScan.MaxPages,
	})
	if err != nil {
		return err
	}
	if len(links) == 0 {
		fmt.Println("no articles found for that day")
		return nil
	}

	eng := capture.New(store, extract.New(cfg.SelectorsFor), capture.Options{
		Client:     &http.Client{Timeout: cfg.Worker.Timeout()},
		Headers:    cfg.Headers,
		FetchLimit: cfg.Worker.FetchLimit,
		Logger:     logger,
	})
	res, err := eng.CaptureBatch(ctx, links)
	if err != nil {
		return err
	}
	failed := len(res.RateLimited) + len(res.Transient) + len(res.Failed)
	fmt.Printf("found %d links: captured %d, duplicates %d, failed %d\n",
		len(links), len(res.Captured), res.Duplicates, failed)
	return nil
}

func prune(ctx context.Context, store *storage.Store, cfg config.Config, args []string) error {
	days := cfg.Hunter.Cleanup.RetentionDays
	if len(args) > 0 {
		var err error
		if days, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("bad day count %q", args[0])
		}
	}
	if days <= 0 {
		return fmt.Errorf("retention days must be positive")
	}

	n, err := store.Prune(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d articles\n", n)
	return nil
}

func printArticles(articles []domain.Article) {
	if len(articles) == 0 {
		fmt.Println("no articles")
		return
	}
	for _, a := range articles {
		mark := " "
		if !a.LinkAlive {
			mark = "!"
		}
		fmt.Printf("%s %-20s %-10s %s\n", mark, a.ID, a.Status, a.Title)
		fmt.Printf("  %s\n", a.URL)
	}
}
