package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/rentalscope/internal/adapters/http"
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
	cfg, err := config.Load("rentalscope-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
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

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Without a broker, reports are written to Postgres directly.
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, recording listings directly", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	listingRepo := postgres.NewListingRepo(db)
	listingSvc, err := app.NewListingService(cfg, listingRepo, publisher)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	deps := &http.Dependencies{
		Listings:    listingSvc,
		NATS:        natsConn,
		DB:          db,
		CallTimeout: cfg.RequestTimeout(),
	}

	// Asynchronous jobs need both the job store and Temporal.
	jobStore, err := valkey.New(cfg.Valkey.Addr, time.Duration(cfg.Valkey.JobTTLSecs)*time.Second)
	if err != nil {
		slog.Warn("valkey unavailable, async jobs disabled", "error", err)
	} else {
		defer jobStore.Close()
		deps.JobStore = jobStore

		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    slog.Default(),
		})
		if err != nil {
			slog.Warn("temporal unavailable, async jobs disabled", "error", err)
		} else {
			defer tc.Close()
			deps.Jobs = usecases.NewJobService(jobStore, workflows.NewStarter(tc, cfg.Temporal.TaskQueue), publisher)
		}
	}

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "rentalscope API",
	})
	fiberApp.Use(recover.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(fiberApp, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := fiberApp.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
