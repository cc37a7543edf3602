// Package relay publishes envelopes left in the outbox to Kafka.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/port"
)

const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
	HeaderAggregateID   = "aggregate_id"
)

// MessageWriter is the subset of *kafka.Writer used by the relay.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds the writer the relay publishes through.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

type OutboxRelay struct {
	outbox port.Outbox
	writer MessageWriter
	logger *zap.Logger
}

func NewOutboxRelay(outbox port.Outbox, writer MessageWriter, logger *zap.Logger) *OutboxRelay {
	return &OutboxRelay{outbox: outbox, writer: writer, logger: logger}
}

// RunOnce publishes every pending envelope and deletes the ones Kafka
// acknowledged. Envelopes are keyed by aggregate id so one product's events
// stay ordered within a partition.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	envs, err := r.outbox.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("read outbox: %w", err)
	}
	if len(envs) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(envs))
	ids := make([]uuid.UUID, 0, len(envs))
	for _, env := range envs {
		msgs = append(msgs, toMessage(ctx, env))
		ids = append(ids, env.ID)
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish envelopes: %w", err)
	}

	if err := r.outbox.Delete(ctx, ids...); err != nil {
		return len(envs), fmt.Errorf("delete published envelopes: %w", err)
	}

	r.logger.Info("relayed outbox envelopes", zap.Int("envelope_count", len(envs)))
	return len(envs), nil
}

// LogCleanupMode reports which envelopes the relay can expect. When the
// server deletes envelopes after commit, only those left by a failed cleanup
// or a crash between commit and cleanup reach the outbox.
func LogCleanupMode(logger *zap.Logger, keepEnvelopes bool) {
	if keepEnvelopes {
		logger.Info("relaying every committed envelope")
		return
	}
	logger.Warn("server deletes envelopes after commit; relaying only envelopes left by a failed cleanup or a crash",
		zap.Bool("keep_envelopes", keepEnvelopes))
}

// Run calls RunOnce every interval until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("outbox relay failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func toMessage(ctx context.Context, env domain.Envelope) kafka.Message {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(env.ID.String())},
		{Key: HeaderEventType, Value: []byte(env.Type)},
		{Key: HeaderAggregateType, Value: []byte(env.AggregateType)},
		{Key: HeaderAggregateID, Value: []byte(env.AggregateID)},
	}
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Key:     []byte(env.AggregateID),
		Value:   env.Payload,
		Headers: headers,
		Time:    env.Timestamp,
	}
}
