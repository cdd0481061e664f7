package reminders

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/podologia/agenda/libs/db"
)

// Deliver sends the reminder for one job.
type Deliver func(ctx context.Context, job Job) error

type Worker struct {
	db        db.Beginner
	repo      *Repository
	deliver   Deliver
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
	now       func() time.Time
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(b db.Beginner, repo *Repository, deliver Deliver, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Minute
	}
	return &Worker{
		db:        b,
		repo:      repo,
		deliver:   deliver,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
		now:       time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.ProcessBatch(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			} else if n > 0 {
				w.logger.Info("reminders sent", "count", n)
			}
		}
	}
}

// ProcessBatch delivers due reminders and returns how many succeeded.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	var sent int
	err := db.InTx(ctx, w.db, func(tx pgx.Tx) error {
		jobs, err := w.repo.FetchDue(ctx, tx, w.now().UTC(), w.batchSize)
		if err != nil || len(jobs) == 0 {
			return err
		}

		var ids []int64
		for _, job := range jobs {
			jobCtx := job.Trace.Context(ctx)
			if err := w.deliver(jobCtx, job); err != nil {
				attempts := job.Attempts + 1
				w.logger.Warn("reminder delivery failed", "err", err, "appointment_id", job.AppointmentID, "attempt", attempts)
				if err := w.repo.MarkFailed(ctx, tx, job, attempts, w.now().UTC().Add(w.backoff), err.Error()); err != nil {
					return err
				}
				continue
			}
			ids = append(ids, job.ID)
		}
		if err := w.repo.MarkSent(ctx, tx, ids); err != nil {
			return err
		}
		sent = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}
