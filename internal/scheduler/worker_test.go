package scheduler

import (
	"context"
	"errors"
	"testing"

	"interior_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeExpirer struct {
	ids []uuid.UUID
	err error
}

func (f *fakeExpirer) ExpirePaymentLink(_ context.Context, id uuid.UUID) error {
	f.ids = append(f.ids, id)
	return f.err
}

func TestPaymentLinkExpiryTask(t *testing.T) {
	expirer := &fakeExpirer{}
	w := newWorker(expirer, logger.Nop())

	id := uuid.New()
	task, err := NewPaymentLinkExpiryTask(id)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if task.Type() != TaskPaymentLinkExpiry {
		t.Fatalf("task type = %q", task.Type())
	}
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(expirer.ids) != 1 || expirer.ids[0] != id {
		t.Fatalf("expirer called with %v", expirer.ids)
	}
}

func TestPaymentLinkExpiryErrors(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("db down")}
	w := newWorker(expirer, logger.Nop())

	task, _ := NewPaymentLinkExpiryTask(uuid.New())
	if err := w.mux.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected repository error to be retried")
	}

	bad := asynq.NewTask(TaskPaymentLinkExpiry, []byte(`{"inspectionRequestId":"nope"}`))
	if err := w.mux.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("redis://:pw@localhost:6379/3", true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opt.Addr != "localhost:6379" || opt.DB != 3 || opt.Password != "pw" {
		t.Fatalf("unexpected opts %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config")
	}
}
