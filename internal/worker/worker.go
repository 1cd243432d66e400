// Package worker is the notify worker: it consumes job events from RabbitMQ
// and runs the candidate search and notification fan-out off the request
// path. It also sweeps pending jobs past their expiry deadline.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/engine"
	"github.com/nordtolk/booking-be/internal/booking/storage"
	"github.com/nordtolk/booking-be/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Engine        *engine.Engine
	Storage       *storage.Storage
	Concurrency   int
	PrefetchCount int
	EventTimeout  time.Duration
	SweepInterval time.Duration
}

// eventMessage pairs a decoded event with its broker delivery tag.
type eventMessage struct {
	Event       domain.Event
	DeliveryTag uint64
}

// Worker consumes job events and runs notification fan-out.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	engine        *engine.Engine
	storage       *storage.Storage
	concurrency   int
	prefetchCount int
	eventTimeout  time.Duration
	sweepInterval time.Duration
	workerID      string
	eventsChan    chan *eventMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}

	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		engine:        cfg.Engine,
		storage:       cfg.Storage,
		concurrency:   cfg.Concurrency,
		prefetchCount: prefetch,
		eventTimeout:  cfg.EventTimeout,
		sweepInterval: cfg.SweepInterval,
		workerID:      "notify-worker-" + uuid.New().String()[:8],
		eventsChan:    make(chan *eventMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming events. It blocks until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting notify worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("event_timeout", w.eventTimeout),
		slog.Duration("sweep_interval", w.sweepInterval),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go w.expirySweepLoop(ctx)

	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping notify worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Notify worker stopped")
}

// expirySweepLoop periodically expires pending jobs whose deadline passed and
// tells the owner no interpreter accepted.
func (w *Worker) expirySweepLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepExpired(ctx)
		}
	}
}

func (w *Worker) sweepExpired(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, w.eventTimeout)
	defer cancel()

	now := time.Now()
	jobs, err := w.storage.ExpiredPendingJobs(sweepCtx, now)
	if err != nil {
		w.logger.Error("Expiry sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}

	for i := range jobs {
		job := &jobs[i]

		expired, err := w.storage.MarkTimedOut(sweepCtx, job.ID, now)
		if err != nil {
			w.logger.Error("Failed to expire job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !expired {
			// Lost to a concurrent accept; nothing to announce.
			continue
		}

		w.logger.Info("Job expired",
			slog.String("job_id", job.ID),
			slog.Time("will_expire_at", job.WillExpireAt),
		)

		if err := w.engine.NotifyExpired(sweepCtx, job.ID); err != nil {
			w.logger.Error("Failed to notify job owner of expiry",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
