package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"interior_portal_backend/internal/adapters"
	"interior_portal_backend/internal/adapters/mercadopago"
	"interior_portal_backend/internal/adapters/storage"
	"interior_portal_backend/internal/assignments"
	"interior_portal_backend/internal/auth"
	"interior_portal_backend/internal/boards"
	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/forms"
	apphttp "interior_portal_backend/internal/http"
	"interior_portal_backend/internal/http/router"
	"interior_portal_backend/internal/inspections"
	"interior_portal_backend/internal/notification"
	"interior_portal_backend/internal/notification/fanout"
	"interior_portal_backend/internal/notification/sse"
	"interior_portal_backend/internal/payments"
	"interior_portal_backend/internal/pdf"
	"interior_portal_backend/internal/projects"
	"interior_portal_backend/internal/scheduler"
	"interior_portal_backend/migrations"
	"interior_portal_backend/platform/config"
	"interior_portal_backend/platform/db"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/phone"
	"interior_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if err := db.RunMigrations(ctx, pool, migrations.FS); err != nil {
		return fmt.Errorf("run database migrations: %w", err)
	}
	log.Info("database migrations complete")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	phones := phone.NewNormalizer(cfg.GetPhoneDefaultRegion())

	storageSvc, err := storage.NewMinIO(cfg)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	for name, bucket := range map[string]string{
		"payment-receipts":   cfg.GetMinioBucketPaymentReceipts(),
		"inspection-photos":  cfg.GetMinioBucketInspectionPhotos(),
		"inspection-reports": cfg.GetMinioBucketInspectionReports(),
	} {
		if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucket(ctx, bucket)
		}); err != nil {
			return fmt.Errorf("ensure storage bucket %s: %w", bucket, err)
		}
	}
	log.Info("storage service initialized",
		"receiptsBucket", cfg.GetMinioBucketPaymentReceipts(),
		"photosBucket", cfg.GetMinioBucketInspectionPhotos(),
		"reportsBucket", cfg.GetMinioBucketInspectionReports(),
	)

	// Without Gotenberg, report generation fails with 500 and the rest works.
	gotenberg, err := pdf.New(cfg)
	if err != nil {
		log.Warn("gotenberg not configured; inspection reports disabled")
	} else {
		log.Info("gotenberg PDF generator initialized", "url", cfg.GetGotenbergURL())
	}

	paymentLinks, err := mercadopago.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize payment links: %w", err)
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(pool, cfg, phones, eventBus, log, val)
	inspectionsModule := inspections.NewModule(pool, paymentLinks, phones, cfg, eventBus, log, val)

	if cfg.GetRedisURL() != "" {
		expiryClient, err := scheduler.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("initialize scheduler client: %w", err)
		}
		defer func() { _ = expiryClient.Close() }()
		inspectionsModule.Service().SetExpiryScheduler(expiryClient)
	} else {
		log.Warn("REDIS_URL not configured; payment links expire on read only")
	}

	paymentsModule := payments.NewModule(pool,
		adapters.NewReceiptStore(storageSvc, cfg.GetMinioBucketPaymentReceipts()),
		adapters.NewPaymentTokenResolver(inspectionsModule.Service()),
		eventBus, log, val)
	assignmentsModule := assignments.NewModule(pool, eventBus, log, val)
	formsModule := forms.NewModule(pool,
		adapters.NewFormPhotoStore(storageSvc, cfg.GetMinioBucketInspectionPhotos()),
		adapters.NewFormReportStore(storageSvc, cfg.GetMinioBucketInspectionReports()),
		adapters.NewReportRenderer(gotenberg),
		eventBus, log, val)
	projectsModule := projects.NewModule(pool, eventBus, log, val)
	boardsModule := boards.NewModule(pool, eventBus, log, val)

	hub := sse.New(log)
	defer hub.Close()
	var realtime *fanout.Redis
	var relay notification.Fanout
	if cfg.GetRedisURL() != "" {
		realtime, err = fanout.NewRedis(cfg, cfg.GetRedisTLSInsecure(), hub, log)
		if err != nil {
			return fmt.Errorf("initialize realtime fan-out: %w", err)
		}
		defer func() { _ = realtime.Close() }()
		relay = realtime
	}
	notificationModule := notification.NewModule(eventBus, hub, relay, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			inspectionsModule,
			paymentsModule,
			assignmentsModule,
			formsModule,
			projectsModule,
			boardsModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		// Open event streams never finish on their own.
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if realtime != nil {
		g.Go(func() error {
			return realtime.Run(gctx)
		})
	}

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
