// Package emitter forwards analytics hits to a third-party sink. Sinks are
// fire-and-forget: the engine never depends on them for its own state.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Hit is a Google-Analytics-style event.
type Hit struct {
	Category string    `json:"category"`
	Action   string    `json:"action"`
	Label    string    `json:"label,omitempty"`
	Value    float64   `json:"value,omitempty"`
	ClientID string    `json:"client_id,omitempty"`
	Time     time.Time `json:"time"`
}

type Emitter interface {
	Emit(ctx context.Context, hit Hit) error
	Close() error
}

const (
	KindNone  = "none"
	KindLog   = "log"
	KindKafka = "kafka"
)

type Options struct {
	Kind    string
	Brokers []string
	Topic   string
}

// New builds the emitter named by opts.Kind.
func New(opts Options, logger *zap.Logger) (Emitter, error) {
	switch opts.Kind {
	case "", KindNone:
		return Nop{}, nil
	case KindLog:
		return NewLog(logger), nil
	case KindKafka:
		if len(opts.Brokers) == 0 || opts.Topic == "" {
			return nil, fmt.Errorf("kafka emitter needs brokers and a topic")
		}
		return NewKafka(opts.Brokers, opts.Topic, logger), nil
	default:
		return nil, fmt.Errorf("unknown emitter kind %q", opts.Kind)
	}
}

type Nop struct{}

func (Nop) Emit(context.Context, Hit) error { return nil }
func (Nop) Close() error                    { return nil }

// Log writes hits to the structured logger at info level.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("emitter")}
}

func (l *Log) Emit(_ context.Context, hit Hit) error {
	l.logger.Info("analytics hit",
		zap.String("category", hit.Category),
		zap.String("action", hit.Action),
		zap.String("label", hit.Label),
		zap.Float64("value", hit.Value),
		zap.String("client_id", hit.ClientID))
	return nil
}

func (l *Log) Close() error { return nil }

// Kafka publishes hits as JSON messages keyed by client id. The writer is
// async, so Emit returns before the broker acknowledges.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 100 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Debug("kafka emitter dropped hits", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return &Kafka{writer: w}
}

func (k *Kafka) Emit(ctx context.Context, hit Hit) error {
	payload, err := json.Marshal(hit)
	if err != nil {
		return fmt.Errorf("failed to encode hit: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(hit.ClientID),
		Value: payload,
		Time:  hit.Time,
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
