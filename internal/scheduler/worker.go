package scheduler

import (
	"context"
	"fmt"

	"interior_portal_backend/platform/config"
	"interior_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// PaymentLinkExpirer withdraws a payment link whose token has lapsed.
type PaymentLinkExpirer interface {
	ExpirePaymentLink(ctx context.Context, inspectionRequestID uuid.UUID) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	expirer PaymentLinkExpirer
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, expirer PaymentLinkExpirer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(expirer, log)
	w.server = server
	return w, nil
}

func newWorker(expirer PaymentLinkExpirer, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{mux: mux, expirer: expirer, log: log}
	mux.HandleFunc(TaskPaymentLinkExpiry, w.handlePaymentLinkExpiry)
	return w
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start scheduler worker: %w", err)
	}
	w.log.Info("scheduler worker started")

	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("scheduler worker stopped")
	return nil
}

func (w *Worker) handlePaymentLinkExpiry(ctx context.Context, task *asynq.Task) error {
	id, err := ParsePaymentLinkExpiryPayload(task)
	if err != nil {
		// A malformed payload never becomes valid; do not retry it.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.expirer.ExpirePaymentLink(ctx, id)
}
