package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-alert-triage/internal/domain"
)

// RecordSink is where parsed alert records are pushed; the triage pipeline
// implements it.
type RecordSink interface {
	Process(ctx context.Context, rec domain.AlertRecord) error
}

// Reader consumes raw alert payloads from a Kafka topic and pushes them
// into the pipeline. It is the feed edge of the system: the pipeline never
// fetches data itself.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a Kafka consumer for the raw alerts topic.
func NewReader(brokers []string, topic, groupID string, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, logger: logger}
}

// Run consumes messages until the context is cancelled. Malformed payloads
// are logged and skipped; their offsets are still committed so one bad
// producer cannot wedge the partition.
func (r *Reader) Run(ctx context.Context, sink RecordSink) error {
	r.logger.Info("kafka reader started", "topic", r.reader.Config().Topic)

	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				r.logger.Info("kafka reader stopping", "reason", err)
				return nil
			}
			return err
		}

		r.handleMessage(ctx, msg, sink)

		if err := r.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("commit offset failed", "error", err,
				"partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

// handleMessage parses one message and hands it to the sink. Failures are
// logged, never returned: the consume loop commits regardless.
func (r *Reader) handleMessage(ctx context.Context, msg kafkago.Message, sink RecordSink) {
	rec, err := domain.ParseAlertRecord(msg.Value)
	if err != nil {
		r.logger.Warn("malformed alert payload, skipping",
			"error", err,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		return
	}

	if err := sink.Process(ctx, rec); err != nil {
		r.logger.Warn("alert rejected by pipeline", "error", err, "alert_id", rec.ID)
	}
}

// Close shuts the underlying consumer down.
func (r *Reader) Close() error {
	return r.reader.Close()
}
