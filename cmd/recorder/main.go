package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/rentalscope/internal/adapters/nats"
	"github.com/samirrijal/rentalscope/internal/adapters/postgres"
	"github.com/samirrijal/rentalscope/internal/core/usecases"
	"github.com/samirrijal/rentalscope/internal/pkg/config"
	"github.com/samirrijal/rentalscope/internal/pkg/logging"
)

// recorder persists listings-fetched events to Postgres.
func main() {
	cfg, err := config.Load("rentalscope-recorder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	// Only the repository side of the service is used here.
	listings := usecases.NewListingService(nil, nil, postgres.NewListingRepo(db), nil)
	if err := sub.SubscribeListingsFetched(ctx, listings.Record); err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	slog.Info("recorder started", "subject", natsadapter.SubjectListingsFetched)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received signal, shutting down recorder", "signal", sig.String())
}
