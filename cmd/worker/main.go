package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"emargement/internal/config"
	"emargement/internal/metrics"
	"emargement/internal/queue"
	"emargement/internal/stats"
	"emargement/internal/store"
	"emargement/internal/worker"
)

// Worker consumes domain events from Redis and keeps statistics warm.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis; with %q the API drains its own queue", cfg.QueueBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.Options{Driver: cfg.DBDriver, DSN: cfg.DSN(), SlowThreshold: cfg.SlowQuery})
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("bootstrap schema: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	w := &worker.Worker{
		Queue:    queue.NewRedisQueue(redisClient.Client, cfg.QueueKey),
		Stats:    stats.NewService(db.Gorm, stats.NewRedisCache(redisClient.Client, "", cfg.StatsCacheTTL)),
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
		Schedule: cfg.StatsRefreshCron,
	}

	log.Println("worker started, waiting for events...")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("worker stopped: %v", err)
		return
	}
	log.Println("worker stopped")
}
