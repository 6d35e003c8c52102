package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"safepilgrim/internal/digitalid/handler"
	dmetrics "safepilgrim/internal/digitalid/metrics"
	"safepilgrim/internal/digitalid/service"
	"safepilgrim/internal/digitalid/store"
	"safepilgrim/internal/platform/config"
	"safepilgrim/internal/platform/httpserver"
	"safepilgrim/internal/platform/kafka"
	"safepilgrim/internal/platform/logger"
	"safepilgrim/internal/platform/metrics"
	"safepilgrim/internal/platform/postgres"
	redisplatform "safepilgrim/internal/platform/redis"
	httptransport "safepilgrim/internal/transport/http"
	audit "safepilgrim/pkg/platform/audit"
	"safepilgrim/pkg/platform/audit/publisher"
	kafkastore "safepilgrim/pkg/platform/audit/store/kafka"
	auditmemory "safepilgrim/pkg/platform/audit/store/memory"
	auditpostgres "safepilgrim/pkg/platform/audit/store/postgres"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

type recordStore interface {
	service.Store
	Ping(ctx context.Context) error
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		log.Warn("configuration issues", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		records recordStore
		db      *sql.DB
		checks  []handler.ReadinessCheck
	)
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := redisplatform.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		if client == nil {
			return errors.New("STORE_BACKEND=redis requires REDIS_URL")
		}
		defer client.Close()
		records = store.NewRedisStore(client.Client, cfg.Redis.RecordTTL)
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: client.Health})
	case config.BackendPostgres:
		var err error
		db, err = postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		records = pg
		checks = append(checks, handler.ReadinessCheck{Name: "postgres", Check: pg.Ping})
	default:
		records = store.NewInMemoryStore(
			store.WithTTL(cfg.Memory.RecordTTL),
			store.WithCapacity(cfg.Memory.MaxRecords),
		)
	}
	log.Info("record store ready", "backend", cfg.StoreBackend)

	auditStore, closeAudit, auditCheck, err := buildAuditStore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeAudit()
	if auditCheck != nil {
		checks = append(checks, *auditCheck)
	}

	pub := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics()),
	)

	svc, err := service.New(records,
		service.WithAuditor(pub),
		service.WithMetrics(dmetrics.New()),
		service.WithLogger(log),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(log, httptransport.Options{
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Metrics:        metrics.New(),
	}, handler.New(svc, log, checks...))

	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting digital id service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		pub.Close()
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// buildAuditStore prefers Kafka, then the Postgres database already opened for
// records, then process memory.
func buildAuditStore(ctx context.Context, cfg config.Server, db *sql.DB, log *slog.Logger) (audit.Store, func(), *handler.ReadinessCheck, error) {
	switch {
	case cfg.Kafka.Enabled():
		client, err := kafka.New(cfg.Kafka)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := client.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 3, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		log.Info("audit events publish to kafka", "topic", cfg.Kafka.AuditTopic)
		return kafkastore.New(client, cfg.Kafka.AuditTopic, kafkastore.WithLogger(log)),
			client.Close,
			&handler.ReadinessCheck{Name: "kafka", Check: client.Health},
			nil
	case db != nil:
		st := auditpostgres.New(db)
		if err := st.Migrate(ctx); err != nil {
			return nil, nil, nil, err
		}
		return st, func() {}, nil, nil
	default:
		return auditmemory.NewInMemoryStore(auditmemory.WithLimit(cfg.Audit.MemoryLimit)), func() {}, nil, nil
	}
}
