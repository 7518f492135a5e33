// Package pipeline wires deduplication, scoring, spatial indexing,
// batching, rate limiting, and delivery dispatch into the alert triage
// flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-alert-triage/internal/batch"
	"github.com/couchcryptid/storm-alert-triage/internal/domain"
	"github.com/couchcryptid/storm-alert-triage/internal/notify"
	"github.com/couchcryptid/storm-alert-triage/internal/observability"
	"github.com/couchcryptid/storm-alert-triage/internal/priority"
	"github.com/couchcryptid/storm-alert-triage/internal/ratelimit"
	"github.com/couchcryptid/storm-alert-triage/internal/spatial"
)

// Deduplicator classifies records as fresh or duplicate.
type Deduplicator interface {
	IsDuplicate(ctx context.Context, rec domain.AlertRecord) bool
}

// Scorer computes a priority assessment for a record.
type Scorer interface {
	Calculate(alert domain.AlertRecord) priority.Assessment
}

// Limiter throttles deliveries per recipient.
type Limiter interface {
	Check(key string) ratelimit.Result
}

// Dispatcher accepts delivery tasks for asynchronous processing.
type Dispatcher interface {
	Enqueue(task *notify.Task)
}

// Route sends alerts at or above MinTier to one recipient on one channel.
type Route struct {
	Channel   string
	Recipient string
	MinTier   priority.Tier
}

// ScoredAlert pairs a record with its assessment through the batcher.
type ScoredAlert struct {
	Record     domain.AlertRecord
	Assessment priority.Assessment
}

// Config tunes the pipeline's batching and spatial resolution.
type Config struct {
	BatchSize      int
	FlushInterval  time.Duration
	GridResolution float64
	Routes         []Route
}

// Pipeline is the alert triage flow: dedup -> score -> index -> batch;
// flushed batches are routed, rate-limited per recipient, and enqueued for
// delivery.
type Pipeline struct {
	dedup      Deduplicator
	scorer     Scorer
	index      *spatial.Index[domain.AlertRecord]
	batcher    *batch.Batcher[ScoredAlert]
	limiter    Limiter
	dispatcher Dispatcher
	routes     []Route
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Pipeline.
func New(
	cfg Config,
	dedup Deduplicator,
	scorer Scorer,
	limiter Limiter,
	dispatcher Dispatcher,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	p := &Pipeline{
		dedup:      dedup,
		scorer:     scorer,
		index:      spatial.NewIndex[domain.AlertRecord](cfg.GridResolution, clock),
		limiter:    limiter,
		dispatcher: dispatcher,
		routes:     cfg.Routes,
		logger:     logger,
		metrics:    metrics,
	}
	p.batcher = batch.New(cfg.BatchSize, cfg.FlushInterval, clock, p.dispatch)
	return p
}

// Process runs one record through the triage flow. Duplicates are dropped
// silently; the caller only sees an error for records that fail the
// construction contract.
func (p *Pipeline) Process(ctx context.Context, rec domain.AlertRecord) error {
	if err := rec.Validate(); err != nil {
		p.metrics.AlertsRejected.Inc()
		return fmt.Errorf("process alert: %w", err)
	}

	p.metrics.AlertsProcessed.Inc()
	p.ready.Store(true)

	if p.dedup.IsDuplicate(ctx, rec) {
		p.metrics.AlertsDuplicate.Inc()
		p.logger.Debug("duplicate alert dropped", "alert_id", rec.ID, "type", rec.Type)
		return nil
	}

	assessment := p.scorer.Calculate(rec)
	p.index.Insert(rec, rec.Latitude, rec.Longitude)

	p.logger.Info("alert triaged",
		"alert_id", rec.ID,
		"type", rec.Type,
		"severity", rec.Severity,
		"score", assessment.Score,
		"tier", assessment.Tier,
	)

	p.batcher.Add(ScoredAlert{Record: rec, Assessment: assessment})
	return nil
}

// Flush forces out any buffered alerts, used at shutdown.
func (p *Pipeline) Flush() {
	p.batcher.Flush()
}

// Nearby returns indexed alerts within radius grid cells of a point.
func (p *Pipeline) Nearby(lat, lon float64, radius int) []domain.AlertRecord {
	return p.index.QueryRadius(lat, lon, radius)
}

// SweepIndex ages alerts older than maxAge out of the spatial index,
// returning the number removed. The janitor calls this periodically so the
// index tracks recent activity instead of growing with total history.
func (p *Pipeline) SweepIndex(maxAge time.Duration) int {
	return p.index.Sweep(maxAge)
}

// CheckReadiness returns nil once the pipeline has accepted at least one
// record.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any alerts yet")
	}
	return nil
}

// dispatch fans a flushed batch out to the configured routes. Runs inside
// the batcher's critical section, so flushes never interleave.
func (p *Pipeline) dispatch(items []ScoredAlert) {
	p.metrics.BatchSize.Observe(float64(len(items)))

	for _, item := range items {
		for _, route := range p.routes {
			if item.Assessment.Tier.Rank() < route.MinTier.Rank() {
				continue
			}

			res := p.limiter.Check(route.Recipient)
			if !res.Allowed {
				p.metrics.RateLimitDenied.Inc()
				p.logger.Warn("delivery rate limited",
					"alert_id", item.Record.ID,
					"recipient", route.Recipient,
					"retry_after", res.RetryAfter,
					"reset_at", res.ResetAt,
				)
				continue
			}

			p.dispatcher.Enqueue(notify.NewTask(buildPayload(item, route.Recipient), []string{route.Channel}))
		}
	}
}

// buildPayload renders the notification content for one alert.
func buildPayload(item ScoredAlert, recipient string) notify.Payload {
	rec := item.Record
	return notify.Payload{
		Title:    fmt.Sprintf("%s %s alert", rec.Severity, rec.Type),
		Message:  fmt.Sprintf("%s reported near (%.2f, %.2f) affecting ~%d people", rec.Type, rec.Latitude, rec.Longitude, rec.PopulationAffected),
		Priority: item.Assessment.Tier,
		Data: map[string]any{
			"alert_id": rec.ID,
			"score":    item.Assessment.Score,
			"factors":  item.Assessment.Factors,
		},
		Recipient: recipient,
	}
}
