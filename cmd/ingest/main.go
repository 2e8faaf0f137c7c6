// Ingestion server: accepts readings from the bridge, stores them and serves
// latest, history, CSV export and a websocket live feed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"SolarFeed/internal/app"
	"SolarFeed/internal/metrics"
	"SolarFeed/internal/model"
	"SolarFeed/internal/util"
)

var version = "dev"

func main() {
	cfgPath := flag.String("c", util.DefaultConfigPath, "path to configuration file")
	addr := flag.String("addr", "", "listen address")
	db := flag.String("db", "", "BoltDB file")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, logger, err := util.Setup(os.Stderr, *cfgPath, set["c"], "ingest", version, func(c *model.Config) {
		if set["addr"] {
			c.Ingest.Addr = *addr
		}
		if set["db"] {
			c.Ingest.DBPath = *db
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg.Ingest, logger, metrics.New())
	if err != nil {
		logger.Error("start ingest server", "error", err)
		os.Exit(1)
	}
	err = a.Run(ctx)
	if cerr := a.Close(); cerr != nil {
		logger.Warn("close store", "error", cerr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingest server failed", "error", err)
		os.Exit(1)
	}
}
