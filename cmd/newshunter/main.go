package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"newshunter/internal/app"
	"newshunter/internal/logging"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Usage = usage
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		if err := runCommand(*configPath, args); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(*configPath)
	if err != nil {
		logger := logging.New("info")
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	if err := application.Run(ctx); err != nil {
		logger := logging.New("info")
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: newshunter [-config path] [command]

Without a command the capture pipeline runs until interrupted.

Commands:
  stats                      show store counters
  list <status> [limit]      list articles (new, picked, archived, discarded)
  pick <id|url>              move a new article into the reading box
  unpick <id|url>            return a picked article to the stream
  archive <id|url>           keep a picked article
  discard <id|url>           drop a picked article
  search <query> [limit]     search captured articles
  export <file> [status]     write articles to a JSON file
  import <file> [--replace]  load articles from a JSON or .db file
  backup <file>              copy the database to a snapshot file
  deepscan <source> <date>   backfill a source for one day (YYYY-MM-DD)
  prune [days]               remove old discarded articles
  reindex                    rebuild the full-text index
`)
}
