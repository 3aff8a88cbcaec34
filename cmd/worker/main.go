package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eventpipeline/internal/config"
	"eventpipeline/internal/kv"
	"eventpipeline/internal/queue"
	"eventpipeline/internal/store"
	"eventpipeline/internal/worker"
)

// main boots the batch worker: config → Postgres → Redis → drain loop.
// The loop runs until SIGINT/SIGTERM; an in-flight batch finishes first.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// The API applies the schema too, but the worker may boot first.
	if err := db.EnsureSchema(); err != nil {
		log.Fatal(err)
	}

	shared, err := kv.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal(err)
	}
	defer shared.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.New(queue.New(shared), db, cfg.BatchSize, cfg.IdlePollInterval, logger)
	w.Run(ctx)
}

func logLevel(level string) slog.Leveler {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	lv := new(slog.LevelVar)
	lv.Set(lvl)
	return lv
}
