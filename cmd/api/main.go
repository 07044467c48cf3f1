package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"emargement/internal/attendance"
	"emargement/internal/cloudinary"
	"emargement/internal/config"
	"emargement/internal/events"
	"emargement/internal/httpapi"
	"emargement/internal/httpmiddleware"
	"emargement/internal/live"
	"emargement/internal/metrics"
	"emargement/internal/queue"
	"emargement/internal/roster"
	"emargement/internal/sheet"
	"emargement/internal/signin"
	"emargement/internal/stats"
	"emargement/internal/store"
	"emargement/internal/worker"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, store.Options{Driver: cfg.DBDriver, DSN: cfg.DSN(), SlowThreshold: cfg.SlowQuery})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	if err := db.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()
	redisUp := redisClient.Healthy(ctx)
	if !redisUp {
		log.Printf("warning: redis not reachable at %s", cfg.RedisAddr)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(256)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	var cache stats.Cache = stats.NopCache{}
	if redisUp {
		cache = stats.NewRedisCache(redisClient.Client, "", cfg.StatsCacheTTL)
	}
	statsSvc := stats.NewService(db.Gorm, cache)

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := live.NewHub(originChecker(cfg.AllowedOrigins))
	go hub.Run(ctx)

	bus := events.NewBus()
	bus.Attach("metrics", m.EventCounter())
	bus.Attach("stats-cache", statsSvc.Invalidator())
	bus.Attach("live", hub)
	bus.Attach("queue", events.ToQueue(q))

	if cfg.QueueBackend == "memory" {
		// nothing outside this process can drain an in-memory queue
		w := &worker.Worker{Queue: q, Stats: statsSvc, Metrics: m, Schedule: cfg.StatsRefreshCron}
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("in-process worker stopped: %v", err)
			}
		}()
	}

	var uploader cloudinary.Uploader
	if cdn := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder); cdn.Configured() {
		uploader = cdn
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured; signatures are stored inline")
	}

	var limiter httpmiddleware.Limiter
	switch cfg.RateLimitBackend {
	case "redis":
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	case "memory":
		limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	classifier := attendance.NewClassifier(cfg.GracePeriod, loc)
	router := httpapi.NewRouter(httpapi.Options{
		Students: roster.NewService(roster.NewRepository(db.Gorm), bus),
		Sheets:   sheet.NewService(sheet.NewRepository(db.Gorm), classifier, bus),
		SignIns:  signin.NewService(signin.NewRepository(db.Gorm), uploader, bus, loc),
		Stats:    statsSvc,

		Hub:            hub,
		Metrics:        m,
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Location:       loc,
		Health: func(ctx context.Context) map[string]bool {
			h := map[string]bool{"db": db.Healthy(ctx)}
			if cfg.QueueBackend == "redis" || cfg.RateLimitBackend == "redis" {
				h["redis"] = redisClient.Healthy(ctx)
			}
			return h
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s (grace %s, tz %s)", cfg.HTTPPort, classifier.Grace, loc)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// originChecker mirrors the CORS list for websocket upgrades.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := map[string]bool{}
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[o] = true
	}
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
