package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/rentalscope/internal/adapters/nats"
	"github.com/samirrijal/rentalscope/internal/adapters/postgres"
	"github.com/samirrijal/rentalscope/internal/adapters/valkey"
	"github.com/samirrijal/rentalscope/internal/app"
	"github.com/samirrijal/rentalscope/internal/core/ports"
	"github.com/samirrijal/rentalscope/internal/core/usecases"
	"github.com/samirrijal/rentalscope/internal/pkg/config"
	"github.com/samirrijal/rentalscope/internal/pkg/logging"
	"github.com/samirrijal/rentalscope/internal/pkg/telemetry"
	"github.com/samirrijal/rentalscope/internal/workflows"
)

func main() {
	cfg, err := config.Load("rentalscope-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	jobStore, err := valkey.New(cfg.Valkey.Addr, time.Duration(cfg.Valkey.JobTTLSecs)*time.Second)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer jobStore.Close()

	var (
		publisher ports.EventPublisher
		listings  ports.ListingRepository
	)
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		// Without a broker the worker records reports itself.
		slog.Warn("nats unavailable", "error", err)
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		listings = postgres.NewListingRepo(db)
	} else {
		defer pub.Close()
		publisher = pub
	}

	listingSvc, err := app.NewListingService(cfg, listings, publisher)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Collector.Parallelism,
	})

	w.RegisterWorkflow(workflows.ListingsWorkflow)
	w.RegisterActivity(&workflows.ListingsActivities{
		Listings: listingSvc,
		Jobs:     usecases.NewJobService(jobStore, nil, publisher),
	})

	slog.Info("listings worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
