package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "vsauth/internal/http"
	"vsauth/internal/platform/config"
	"vsauth/internal/platform/httpserver"
	"vsauth/internal/platform/logger"
	platformredis "vsauth/internal/platform/redis"
	"vsauth/internal/qr"
	"vsauth/internal/ratelimit"
	"vsauth/internal/registry"
	"vsauth/internal/registry/events"
	"vsauth/internal/registry/metrics"
	"vsauth/internal/registry/store"
	"vsauth/internal/source"
	"vsauth/internal/verify"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	st, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	handlerOpts := []httpapi.HandlerOption{}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	var bucketStore ratelimit.BucketStore = ratelimit.NewInMemoryBucketStore()
	if redisClient != nil {
		defer redisClient.Close()
		bucketStore = ratelimit.NewRedisBucketStore(redisClient.Client)
		handlerOpts = append(handlerOpts, httpapi.WithHealthCheck("redis", redisClient.Health))
		log.Info("rate limiting backed by redis")
	}
	limiter := ratelimit.NewLimiter(bucketStore,
		ratelimit.WithLimit(cfg.RateLimit, cfg.RateLimitWindow),
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(m))

	var catalog source.Client
	if cfg.SourceURL != "" {
		catalog = source.NewHTTPClient(cfg.SourceURL, source.WithTimeout(cfg.SourceTimeout))
		log.Info("using external product source", "url", cfg.SourceURL)
	} else {
		catalog = source.NewMockClient()
		log.Warn("no product source configured, using built-in mock")
	}

	svcOpts := []registry.Option{
		registry.WithLogger(log),
		registry.WithMetrics(m),
		registry.WithCodeLength(cfg.CodeLength),
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer publisher.Close()

		sink := events.NewAsyncSink(0, log)
		worker := events.NewWorker(publisher, sink.Inbox(), log)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event worker stopped", "error", err)
			}
		}()
		svcOpts = append(svcOpts, registry.WithEventSink(sink))
		log.Info("publishing verification events to kafka", "topic", cfg.KafkaTopic)
	}

	svc := registry.New(st, svcOpts...)

	engine := verify.New(svc, catalog,
		verify.WithLogger(log),
		verify.WithMetrics(m),
		verify.WithMinCodeLength(cfg.MinCodeLength),
		verify.WithSourceTimeout(cfg.SourceTimeout))

	handler := httpapi.NewHandler(svc, engine, qr.New(cfg.PublicVerifyBaseURL), log, handlerOpts...)

	router := httpapi.NewRouter(handler, limiter, httpapi.RouterConfig{
		AdminToken:    cfg.AdminToken,
		JWTSigningKey: cfg.JWTSigningKey,
		CORSOrigins:   cfg.CORSOrigins,
	}, log)

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting vsauth", "addr", cfg.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildStore selects the persistence backend from the configuration. The
// returned cleanup closes backend resources and is safe to call always.
func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("using postgres store")
		return pg, func() { _ = db.Close() }, nil
	case config.StoreFile:
		log.Info("using file store", "path", cfg.CodesFile)
		return store.NewFile(cfg.CodesFile), func() {}, nil
	default:
		log.Info("using in-memory store")
		return store.NewInMemory(), func() {}, nil
	}
}
