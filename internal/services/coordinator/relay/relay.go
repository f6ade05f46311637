// Package relay publishes journaled audit events from the outbox to Kafka.
//
// Every audit row is enqueued in the same SQL transaction that appended it.
// The relay leases due outbox entries, writes them keyed by transaction id so
// a partition sees one transaction's events in order, and marks each entry
// published or reschedules it with exponential backoff. Delivery is
// at-least-once; consumers deduplicate on (transaction_id, seq).
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/louisbranch/assetflow/internal/services/coordinator/observability/metrics"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
)

const (
	defaultPollInterval   = time.Second
	defaultLease          = 30 * time.Second
	defaultBatchSize      = 100
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 5 * time.Minute
)

// ErrStoreRequired indicates a missing outbox store.
var ErrStoreRequired = errors.New("outbox store is required")

// ErrWriterRequired indicates a missing broker writer.
var ErrWriterRequired = errors.New("broker writer is required")

// Writer is the subset of *kafka.Writer the relay uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Config controls polling and retry behavior.
type Config struct {
	PollInterval   time.Duration
	Lease          time.Duration
	BatchSize      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Lease <= 0 {
		c.Lease = defaultLease
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// Relay moves outbox entries to the broker.
type Relay struct {
	store   storage.OutboxStore
	writer  Writer
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	encode  func(storage.AuditEvent) (kafka.Message, error)
}

// Option customizes a Relay.
type Option func(*Relay)

// WithClock overrides the relay time source.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

// WithEncoder overrides how audit events become broker messages.
func WithEncoder(encode func(storage.AuditEvent) (kafka.Message, error)) Option {
	return func(r *Relay) {
		if encode != nil {
			r.encode = encode
		}
	}
}

// New builds a relay.
func New(store storage.OutboxStore, writer Writer, cfg Config, m *metrics.Metrics, logger *zap.Logger, opts ...Option) (*Relay, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Relay{
		store:   store,
		writer:  writer,
		cfg:     cfg.normalized(),
		metrics: m,
		logger:  logger.With(zap.String("component", "audit-relay")),
		now:     time.Now,
		encode:  Encode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewKafkaWriter returns a synchronous writer that hashes keys to partitions.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	r.logger.Info("audit relay started", zap.Duration("poll_interval", r.cfg.PollInterval))
	for {
		if _, err := r.PublishOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("audit relay poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("audit relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PublishOnce claims one batch, writes it and records the outcome of each
// entry. It returns how many entries were published.
func (r *Relay) PublishOnce(ctx context.Context) (int, error) {
	now := r.now().UTC()
	entries, err := r.store.ClaimOutbox(ctx, now, r.cfg.Lease, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox: %w", err)
	}
	r.metrics.RelayBatch(len(entries))
	if len(entries) == 0 {
		return 0, nil
	}

	published, failed := 0, 0
	batch := make([]storage.OutboxEntry, 0, len(entries))
	msgs := make([]kafka.Message, 0, len(entries))
	for _, entry := range entries {
		msg, err := r.encode(entry.Event)
		if err != nil {
			failed++
			if err := r.markFailed(ctx, entry, now, fmt.Errorf("encode: %w", err)); err != nil {
				return published, err
			}
			continue
		}
		batch = append(batch, entry)
		msgs = append(msgs, msg)
	}
	if len(batch) == 0 {
		r.metrics.RelayFailed(failed)
		return 0, nil
	}

	writeErr := r.writer.WriteMessages(ctx, msgs...)
	var perMessage kafka.WriteErrors
	if !errors.As(writeErr, &perMessage) || len(perMessage) != len(batch) {
		perMessage = nil
	}

	for i, entry := range batch {
		entryErr := writeErr
		if perMessage != nil {
			entryErr = perMessage[i]
		}
		if entryErr == nil {
			if err := r.store.MarkOutboxPublished(ctx, entry.ID, now); err != nil {
				return published, fmt.Errorf("mark outbox %d published: %w", entry.ID, err)
			}
			published++
			continue
		}
		failed++
		if err := r.markFailed(ctx, entry, now, entryErr); err != nil {
			return published, err
		}
	}
	r.metrics.RelayPublished(published)
	r.metrics.RelayFailed(failed)
	return published, nil
}

// markFailed schedules entry for another attempt after its backoff.
func (r *Relay) markFailed(ctx context.Context, entry storage.OutboxEntry, now time.Time, cause error) error {
	next := now.Add(r.retryDelay(entry.Attempts))
	if err := r.store.MarkOutboxFailed(ctx, entry.ID, next, cause.Error()); err != nil {
		return fmt.Errorf("mark outbox %d failed: %w", entry.ID, err)
	}
	r.logger.Warn("audit event publish failed",
		zap.Int64("outbox_id", entry.ID),
		zap.String("transaction_id", entry.Event.TransactionID),
		zap.Int64("seq", entry.Event.Seq),
		zap.Int("attempts", entry.Attempts+1),
		zap.Time("next_attempt_at", next),
		zap.Error(cause),
	)
	return nil
}

// retryDelay grows exponentially with the attempts already made.
func (r *Relay) retryDelay(attempts int) time.Duration {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialBackoff
	policy.MaxInterval = r.cfg.MaxBackoff
	policy.RandomizationFactor = 0.2
	delay := policy.NextBackOff()
	for i := 0; i < attempts; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}

// Message is the broker payload of one audit event.
type Message struct {
	TransactionID  string          `json:"transaction_id"`
	Seq            int64           `json:"seq"`
	Type           string          `json:"type"`
	ActorID        string          `json:"actor_id"`
	FromStatus     string          `json:"from_status"`
	ToStatus       string          `json:"to_status"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	EventHash      string          `json:"event_hash"`
	PrevHash       string          `json:"prev_hash,omitempty"`
	ChainHash      string          `json:"chain_hash"`
	SignatureKeyID string          `json:"signature_key_id"`
	Signature      string          `json:"signature"`
}

// Encode renders an audit event as a Kafka message keyed by transaction id.
func Encode(evt storage.AuditEvent) (kafka.Message, error) {
	value, err := json.Marshal(Message{
		TransactionID:  evt.TransactionID,
		Seq:            evt.Seq,
		Type:           string(evt.Type),
		ActorID:        evt.ActorID,
		FromStatus:     string(evt.From),
		ToStatus:       string(evt.To),
		Timestamp:      evt.Timestamp.UTC(),
		Payload:        evt.PayloadJSON,
		EventHash:      evt.EventHash,
		PrevHash:       evt.PrevHash,
		ChainHash:      evt.ChainHash,
		SignatureKeyID: evt.SignatureKeyID,
		Signature:      evt.Signature,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(evt.TransactionID),
		Value: value,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "seq", Value: []byte(strconv.FormatInt(evt.Seq, 10))},
		},
	}, nil
}
