package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/podologia/agenda/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Inbox interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Consumer struct {
	reader     MessageReader
	logger     *slog.Logger
	inbox      Inbox
	handler    Handler
	attempts   int
	retryDelay time.Duration
}

type Config struct {
	Brokers     string
	GroupID     string
	Topics      []string
	MaxAttempts int
	RetryDelay  time.Duration
}

func New(logger *slog.Logger, inboxRepo Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewWithReader(reader, logger, inboxRepo, cfg, handler)
}

func NewWithReader(reader MessageReader, logger *slog.Logger, inboxRepo Inbox, cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Consumer{
		reader:     reader,
		logger:     logger,
		inbox:      inboxRepo,
		handler:    handler,
		attempts:   cfg.MaxAttempts,
		retryDelay: cfg.RetryDelay,
	}
}

// Run fetches until ctx is cancelled. Offsets are committed once a message is
// handled, found to be a duplicate, or given up on after MaxAttempts.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !sleep(ctx, c.retryDelay) {
				return
			}
			continue
		}

		if err := c.Process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("event dropped", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit error", "err", err)
		}
	}
}

// Process handles one message: it claims the event id in the inbox, runs the
// handler with retries and releases the claim when every attempt failed.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	span.SetAttributes(attribute.String("messaging.message_id", meta.EventID))

	ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("inbox record: %w", err)
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	var handleErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if handleErr = c.handler(ctxSpan, msg); handleErr == nil {
			return nil
		}
		c.logger.Warn("handler error", "err", handleErr, "event_id", meta.EventID, "attempt", attempt)
		if attempt < c.attempts && !sleep(ctx, c.retryDelay) {
			break
		}
	}

	span.RecordError(handleErr)
	span.SetStatus(codes.Error, "handler failed")
	if err := c.inbox.Release(context.WithoutCancel(ctxSpan), meta.EventID); err != nil {
		c.logger.Error("inbox release failed", "err", err, "event_id", meta.EventID)
	}
	return fmt.Errorf("handle %s: %w", meta.EventID, handleErr)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
