package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"github.com/samirrijal/rentalscope/internal/adapters/postgres"
	"github.com/samirrijal/rentalscope/internal/pkg/config"
	"github.com/samirrijal/rentalscope/internal/pkg/logging"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding NNN_name.{up,down}.sql files")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: migrate [-dir migrations] <up|down>")
	}

	cfg, err := config.Load("rentalscope-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 1)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx, *dir, flag.Arg(0))
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	slog.Info("migrations applied", "direction", flag.Arg(0), "count", len(applied))
}
