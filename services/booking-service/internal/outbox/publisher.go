package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/podologia/agenda/libs/db"
	"github.com/podologia/agenda/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is implemented by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Observer receives publish outcomes, typically for metrics.
type Observer interface {
	ObserveOutboxPublished(n int)
	ObserveOutboxFailure()
}

type Publisher struct {
	db        db.Beginner
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
	observer  Observer
	retention time.Duration
	pruner    Execer
	lastPrune time.Time
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	Observer  Observer
	// Retention keeps published rows this long; zero disables pruning.
	Retention time.Duration
	Pruner    Execer
}

func NewPublisher(b db.Beginner, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		db:        b,
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		observer:  cfg.Observer,
		retention: cfg.Retention,
		pruner:    cfg.Pruner,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx, writer)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				if p.observer != nil {
					p.observer.ObserveOutboxFailure()
				}
				continue
			}
			if n > 0 && p.observer != nil {
				p.observer.ObserveOutboxPublished(n)
			}
			p.maybePrune(ctx, time.Now())
		}
	}
}

// PublishBatch sends one batch of pending events and marks them published.
// Nothing is marked when a write fails, so the batch is retried.
func (p *Publisher) PublishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	var sent int
	err := db.InTx(ctx, p.db, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			meta := kafkax.EventMeta{EventID: r.EventID, EventType: r.Event.EventType}
			msgs = append(msgs, kafka.Message{
				Topic:   r.Event.EventType,
				Key:     []byte(r.Event.AggregateID),
				Value:   r.Event.Payload,
				Headers: kafkax.InjectTraceHeaders(r.Trace.Context(ctx), meta.Headers()),
			})
			ids = append(ids, r.ID)
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
			return err
		}
		sent = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

func (p *Publisher) maybePrune(ctx context.Context, now time.Time) {
	if p.retention <= 0 || p.pruner == nil || now.Sub(p.lastPrune) < time.Hour {
		return
	}
	p.lastPrune = now
	n, err := p.repo.Prune(ctx, p.pruner, now.Add(-p.retention))
	if err != nil {
		p.logger.Warn("outbox prune failed", "err", err)
		return
	}
	if n > 0 {
		p.logger.Info("outbox pruned", "rows", n)
	}
}
