package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/example/restaurant-matching/internal/config"
	"github.com/example/restaurant-matching/internal/dispatch"
	httpapi "github.com/example/restaurant-matching/internal/http"
	"github.com/example/restaurant-matching/internal/ingest"
	"github.com/example/restaurant-matching/internal/logging"
	"github.com/example/restaurant-matching/internal/notify"
	"github.com/example/restaurant-matching/internal/registry"
	"github.com/example/restaurant-matching/internal/search"
	"github.com/example/restaurant-matching/internal/session"
	"github.com/example/restaurant-matching/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		panic(err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		runMigrations(cfg.PGDSN, logger)
	}

	yelp := search.NewYelpClient(cfg.YelpBaseURL, cfg.YelpAPIKey, cfg.FetchTimeout)
	geocoder := search.NewOpenCageClient(cfg.OpenCageURL, cfg.OpenCageAPIKey, cfg.GeocodeTimeout)

	var cache search.Cache
	if cfg.RedisAddr != "" {
		cache = search.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.SearchCacheTTL)
	} else {
		cache = search.NewMemoryCache(cfg.SearchCacheTTL)
	}
	searcher := &search.Service{
		Client: yelp,
		Cache:  cache,
		Limit:  cfg.CandidateLimit,
		Logger: logging.Component(logger, "search"),
	}

	repo := registry.NewInMemory()
	wsreg := dispatch.NewWSRegistry(logging.Component(logger, "dispatch"))

	svc := &session.Service{
		Repo:          repo,
		Search:        searcher,
		Dispatch:      wsreg,
		Logger:        logging.Component(logger, "session"),
		InviteBaseURL: cfg.PublicBaseURL,
		FetchTimeout:  cfg.FetchTimeout,
		SoloAutoStart: cfg.SoloAutoStart,
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		svc.Events = producer
	}

	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			svc.History = ps
		} else {
			logger.Warn("postgres unavailable, session history disabled", "error", err)
		}
	}

	if cfg.WebhookURL != "" {
		svc.Notify = notify.NewWebhookNotifier(cfg.WebhookURL, logging.Component(logger, "notify"))
	}

	if cfg.SessionTTL > 0 {
		go sweepLoop(repo, cfg.SessionTTL, logger)
	}

	handler := httpapi.NewServer(svc, geocoder, wsreg, logging.Component(logger, "http"))
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}

func sweepLoop(repo *registry.InMemory, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for range ticker.C {
		if n := repo.SweepIdle(ttl); n > 0 {
			logger.Info("swept idle sessions", "count", n)
		}
	}
}

func runMigrations(dsn string, logger *slog.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open", "error", err)
		return
	}
	defer db.Close()

	b, err := os.ReadFile(filepath.Join("migrations", "001_create_session_history.sql"))
	if err != nil {
		logger.Error("migration read", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_session_history.sql")
}
