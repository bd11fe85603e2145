// cmd/notifier/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront-notifier/internal/common/config"
	"storefront-notifier/internal/common/database"
	apperrors "storefront-notifier/internal/common/errors"
	"storefront-notifier/internal/common/logger"
	"storefront-notifier/internal/common/observability"
	"storefront-notifier/internal/coupons"
	"storefront-notifier/internal/dispatch"
	"storefront-notifier/internal/runlock"
	"storefront-notifier/internal/store"

	pt "storefront-notifier/internal/workers/notifications/process-templates"
	rs "storefront-notifier/internal/workers/notifications/reminder-sweep"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type app struct {
	cfg       *config.Config
	log       logger.Logger
	obs       *observability.Observability
	lock      *runlock.Lock
	processor *pt.Handler
	sweeper   *rs.Handler
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notifier...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("notifier")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Wire application components ---
	stores := store.New(pg.DB)
	provisioner := coupons.NewProvisioner(stores.Coupons)

	dispatcher, err := dispatch.New(dispatch.Config{
		EmailEnabled: cfg.Notifications.EmailEnabled,
		SMSEnabled:   cfg.Notifications.SMSEnabled,
		FromEmail:    cfg.Notifications.FromEmail,
		AWSRegion:    cfg.Notifications.AWSRegion,
		BaseURL:      cfg.Notifications.BaseURL,
	}, log)
	if err != nil {
		zapLog.Fatal("dispatcher init failed", zap.Error(err))
	}

	runTimeout := time.Duration(cfg.Scheduler.TimeoutSeconds) * time.Second

	processor := pt.NewHandler(
		&pt.Config{Timeout: runTimeout},
		stores.Templates, stores.Users, stores.SendLogs, stores.Notifications,
		provisioner, dispatcher, log,
	)

	sweeper := rs.NewHandler(
		&rs.Config{
			Timeout: runTimeout,
			Window:  time.Duration(cfg.Scheduler.ReminderWindowHours) * time.Hour,
		},
		stores.Notifications, stores.Coupons, stores.Users, dispatcher, log,
	)

	a := &app{
		cfg:       cfg,
		log:       log,
		obs:       obs,
		lock:      runlock.New(redis.Client),
		processor: processor,
		sweeper:   sweeper,
	}

	rootCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Daily run loop ---
	go a.runDaily(rootCtx)

	// --- Ops HTTP Server ---
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: a.router(),
	}
	go func() {
		zapLog.Info("Ops server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Ops server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()

	zapLog.Info("Shutdown signal received, stopping notifier...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down ops server", zap.Error(err))
	}

	zapLog.Info("Notifier stopped gracefully")
}

// runDaily fires both passes once per day at the configured UTC hour. Missed
// or duplicate invocations are harmless: the Redis lease skips overlap and
// the send log keeps delivery exactly-once per cycle.
func (a *app) runDaily(ctx context.Context) {
	for {
		next := nextRunAt(time.Now().UTC(), a.cfg.Scheduler.RunHourUTC)
		a.log.Info("next scheduled run", map[string]interface{}{"at": next.Format(time.RFC3339)})

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		a.runTemplates(ctx)
		a.runReminders(ctx)
	}
}

// nextRunAt returns the first instant strictly after now at the given UTC hour.
func nextRunAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (a *app) runTemplates(ctx context.Context) *pt.Output {
	out := &pt.Output{Errors: []string{}}
	a.runGuarded(ctx, pt.TaskType, func(runCtx context.Context) int {
		out = a.processor.Execute(runCtx)
		return len(out.Errors)
	})
	return out
}

func (a *app) runReminders(ctx context.Context) *rs.Output {
	out := &rs.Output{Errors: []string{}}
	a.runGuarded(ctx, rs.TaskType, func(runCtx context.Context) int {
		out = a.sweeper.Execute(runCtx)
		return len(out.Errors)
	})
	return out
}

// runGuarded wraps one pass in the Redis lease, the per-run timeout, and the
// OTel run metrics.
func (a *app) runGuarded(ctx context.Context, name string, run func(context.Context) int) {
	ttl := time.Duration(a.cfg.Scheduler.RunLeaseMinutes) * time.Minute
	ok, err := a.lock.Acquire(ctx, name, ttl)
	if err != nil {
		a.log.Error("run lease acquisition failed", map[string]interface{}{
			"pass":  name,
			"error": err,
		})
		return
	}
	if !ok {
		a.log.Warn("run lease held elsewhere, skipping pass", map[string]interface{}{"pass": name})
		return
	}
	defer func() {
		if err := a.lock.Release(ctx, name); err != nil {
			a.log.Warn("run lease release failed", map[string]interface{}{
				"pass":  name,
				"error": err,
			})
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Scheduler.TimeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	errCount := run(runCtx)
	a.obs.RecordRunDuration(ctx, name, time.Since(start))

	status := "ok"
	if errCount > 0 {
		status = "partial"
	}
	a.obs.RecordRun(ctx, name, status)
}

// ==========================
// Ops HTTP surface
// ==========================

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/debug", middleware.Profiler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs/templates", a.handleRunTemplates)
		r.Post("/runs/reminders", a.handleRunReminders)
		r.Post("/templates/{templateID}/test-send", a.handleTestSend)
	})

	return r
}

func (a *app) handleRunTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.runTemplates(r.Context()))
}

func (a *app) handleRunReminders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.runReminders(r.Context()))
}

type testSendRequest struct {
	UserID string `json:"userId"`
}

func (a *app) handleTestSend(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateID")

	var req testSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	out, err := a.processor.TestSend(r.Context(), templateID, req.UserID)
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) &&
			(stdErr.Code == apperrors.ErrCodeTemplateNotFound || stdErr.Code == apperrors.ErrCodeUserNotFound) {
			writeJSON(w, http.StatusNotFound, stdErr)
			return
		}
		a.log.Error("test send failed", map[string]interface{}{
			"templateId": templateID,
			"userId":     req.UserID,
			"error":      err,
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "test send failed"})
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
