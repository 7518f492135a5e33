package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/storm-alert-triage/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-alert-triage/internal/adapter/kafka"
	"github.com/couchcryptid/storm-alert-triage/internal/config"
	"github.com/couchcryptid/storm-alert-triage/internal/dedup"
	"github.com/couchcryptid/storm-alert-triage/internal/notify"
	"github.com/couchcryptid/storm-alert-triage/internal/observability"
	"github.com/couchcryptid/storm-alert-triage/internal/pipeline"
	"github.com/couchcryptid/storm-alert-triage/internal/priority"
	"github.com/couchcryptid/storm-alert-triage/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Fingerprint stores: Redis when configured, with the in-process store
	// as fallback; in-process only otherwise.
	memStore := dedup.NewMemoryStore(clock)
	var shared dedup.Store
	var redisStore *dedup.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = dedup.NewRedisStoreFromURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable at startup, dedup will fall back per call", "error", err)
		} else {
			logger.Info("shared fingerprint store connected")
		}
		cancel()
		shared = redisStore
	} else {
		logger.Info("no shared fingerprint store configured, dedup is in-process only")
	}

	deduper := dedup.New(shared, memStore, logger)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RequestsPerMinute,
		BurstSize:         cfg.BurstSize,
		BlockDuration:     cfg.BlockDuration,
	}, clock)

	registry := notify.NewRegistry()
	registry.Register(notify.NewEmailChannel(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, logger))
	registry.Register(notify.NewSMSChannel(cfg.SMSFromNumber, logger))
	registry.Register(notify.NewWebhookChannel(cfg.WebhookDefaultURL, cfg.WebhookTimeout, logger))

	coordinator := notify.NewCoordinator(registry, logger, metrics)

	p := pipeline.New(pipeline.Config{
		BatchSize:      cfg.BatchSize,
		FlushInterval:  cfg.BatchFlushInterval,
		GridResolution: cfg.GridResolution,
		Routes:         cfg.Routes,
	}, deduper, priority.NewScorer(), limiter, coordinator, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, deduper, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// The delivery consumer outlives the main context so tasks flushed at
	// shutdown still go out; it is stopped explicitly after the drain.
	deliveryCtx, deliveryCancel := context.WithCancel(context.Background())
	defer deliveryCancel()
	coordinatorDone := make(chan struct{})
	go func() {
		coordinator.Run(deliveryCtx)
		close(coordinatorDone)
	}()

	// Start Kafka ingestion when brokers are configured.
	var reader *kafkaadapter.Reader
	if len(cfg.KafkaBrokers) > 0 {
		reader = kafkaadapter.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
		go func() {
			if err := reader.Run(ctx, p); err != nil {
				logger.Error("kafka reader error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka ingestion disabled, no brokers configured")
	}

	// Janitor: bound the in-process caches.
	go func() {
		ticker := clock.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				expired := memStore.Sweep()
				idle := limiter.SweepIdle(cfg.SweepInterval)
				stale := p.SweepIndex(cfg.IndexRetention)
				logger.Debug("janitor sweep",
					"fingerprints_expired", expired,
					"limiter_keys_evicted", idle,
					"index_entries_aged_out", stale,
				)
			}
		}
	}()

	metrics.PipelineRunning.Set(1)
	logger.Info("alert triage service started",
		"http_addr", cfg.HTTPAddr,
		"routes", len(cfg.Routes),
		"batch_size", cfg.BatchSize,
	)

	<-ctx.Done()
	metrics.PipelineRunning.Set(0)
	logger.Info("shutting down")

	// Push buffered alerts into the delivery queue; the consumer drains the
	// backlog before its Run returns, so shutdown waits on that instead of
	// polling the queue depth.
	p.Flush()
	deliveryCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-coordinatorDone:
	case <-shutdownCtx.Done():
		logger.Warn("delivery consumer did not drain in time")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
