package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"interior_portal_backend/internal/events"
	inspectionrepo "interior_portal_backend/internal/inspections/repository"
	inspectionsvc "interior_portal_backend/internal/inspections/service"
	"interior_portal_backend/internal/scheduler"
	"interior_portal_backend/platform/config"
	"interior_portal_backend/platform/db"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/phone"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	// Expiry never creates payment links, so no provider is wired here.
	inspections := inspectionsvc.New(inspectionrepo.New(pool), nil, phone.NewNormalizer(cfg.GetPhoneDefaultRegion()), cfg, eventBus, log)

	worker, err := scheduler.NewWorker(cfg, inspections, log)
	if err != nil {
		return fmt.Errorf("initialize scheduler worker: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	err = g.Wait()
	eventBus.Wait()
	return err
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
