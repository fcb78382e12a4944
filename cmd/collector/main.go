package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samirrijal/rentalscope/internal/app"
	"github.com/samirrijal/rentalscope/internal/collector"
	"github.com/samirrijal/rentalscope/internal/pkg/config"
	"github.com/samirrijal/rentalscope/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("rentalscope-collector")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	out := flag.String("out", cfg.Collector.OutputDir, "output directory")
	parallel := flag.Int("parallel", cfg.Collector.Parallelism, "addresses looked up concurrently")
	only := flag.String("only", "", "comma-separated entry names to collect")
	flag.Parse()

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	manifestPath := "manifest.json"
	if flag.NArg() > 0 {
		manifestPath = flag.Arg(0)
	}
	manifest, err := collector.LoadManifest(manifestPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	filter := map[string]bool{}
	if *only != "" {
		for _, s := range strings.Split(*only, ",") {
			filter[strings.TrimSpace(s)] = true
		}
	}

	// Reports are returned to the collector, not published or stored.
	listings, err := app.NewListingService(cfg, nil, nil)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("collector starting", "addresses", len(manifest.Addresses), "source", manifest.Source, "parallel", *parallel)
	results, err := collector.Run(ctx, listings, manifest, collector.Options{
		OutputDir:      *out,
		Parallelism:    *parallel,
		DefaultTimeout: cfg.RequestTimeout(),
		Only:           filter,
	})
	if err != nil {
		log.Fatalf("collect: %v", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	slog.Info("collection complete", "total", len(results), "failed", failed, "out", *out)
	if failed > 0 {
		os.Exit(1)
	}
}
