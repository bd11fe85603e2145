// internal/workers/notifications/process-templates/handler.go
package processtemplates

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront-notifier/internal/calendar"
	"storefront-notifier/internal/common/errors"
	"storefront-notifier/internal/common/logger"
	"storefront-notifier/internal/common/metrics"
	"storefront-notifier/internal/models"
	"storefront-notifier/internal/store"
	"storefront-notifier/internal/templating"
)

// Persistence surfaces the processor needs, satisfied by internal/store.
type TemplateStore interface {
	ListActive(ctx context.Context) ([]models.NotificationTemplate, error)
	GetByID(ctx context.Context, id string) (*models.NotificationTemplate, error)
	UpdateLastRun(ctx context.Context, id string, at time.Time, count int) error
}

type UserStore interface {
	ListAll(ctx context.Context) ([]models.User, error)
	ListWithBirthDate(ctx context.Context) ([]models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type SendLogStore interface {
	ExistsAnyYear(ctx context.Context, templateID string) (bool, error)
	ListUserIDsForYear(ctx context.Context, templateID string, year int) (map[string]bool, error)
	Create(ctx context.Context, l *models.TemplateSendLog) error
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

type CouponProvisioner interface {
	Provision(ctx context.Context, tmpl *models.NotificationTemplate, user models.User, year int, testSend bool) (*models.Coupon, bool, error)
}

// Dispatcher pushes a created notification out on external channels.
type Dispatcher interface {
	NotifyEmail(ctx context.Context, user models.User, n *models.Notification)
}

type Handler struct {
	config        *Config
	templates     TemplateStore
	users         UserStore
	sendLogs      SendLogStore
	notifications NotificationStore
	provisioner   CouponProvisioner
	dispatcher    Dispatcher
	logger        logger.Logger
	now           func() time.Time
}

func NewHandler(config *Config, templates TemplateStore, users UserStore, sendLogs SendLogStore,
	notifications NotificationStore, provisioner CouponProvisioner, dispatcher Dispatcher, log logger.Logger) *Handler {
	return &Handler{
		config:        config,
		templates:     templates,
		users:         users,
		sendLogs:      sendLogs,
		notifications: notifications,
		provisioner:   provisioner,
		dispatcher:    dispatcher,
		logger:        log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:           time.Now,
	}
}

// Execute runs one delivery pass over all active templates. Per-item failures
// are collected into the output, never propagated: re-invocation is always
// safe because the send log is the correctness mechanism.
func (h *Handler) Execute(ctx context.Context) *Output {
	start := time.Now()
	defer func() {
		metrics.RunDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()
	metrics.SchedulerRuns.WithLabelValues(TaskType).Inc()

	out := &Output{Errors: []string{}}
	now := h.now().UTC()

	templates, err := h.templates.ListActive(ctx)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("list templates: %v", err))
		metrics.RunErrors.WithLabelValues(TaskType).Inc()
		return out
	}

	for i := range templates {
		tmpl := &templates[i]
		if !tmpl.Active {
			continue
		}

		sent, couponsCreated, errs := h.processTemplate(ctx, tmpl, now)
		out.Processed++
		out.Sent += sent
		out.CouponsCreated += couponsCreated
		out.Errors = append(out.Errors, errs...)
	}

	for range out.Errors {
		metrics.RunErrors.WithLabelValues(TaskType).Inc()
	}

	h.logger.Info("delivery pass complete", map[string]interface{}{
		"processed":      out.Processed,
		"sent":           out.Sent,
		"couponsCreated": out.CouponsCreated,
		"errors":         len(out.Errors),
	})
	return out
}

// processTemplate handles one template end to end. An error before the
// per-user loop aborts only this template; per-user errors abort only that
// user.
func (h *Handler) processTemplate(ctx context.Context, tmpl *models.NotificationTemplate, now time.Time) (sent, couponsCreated int, errs []string) {
	log := h.logger.WithFields(map[string]interface{}{"template": tmpl.Name})
	target := calendar.TargetDate(now, tmpl.DaysBefore)
	year := now.Year()

	// Non-recurring custom-date templates fire at most once, ever.
	if !tmpl.Recurring && tmpl.Trigger == models.TriggerCustomDate {
		fired, err := h.sendLogs.ExistsAnyYear(ctx, tmpl.ID)
		if err != nil {
			return 0, 0, []string{fmt.Sprintf("template %s: check history: %v", tmpl.Name, err)}
		}
		if fired {
			log.Debug("non-recurring template already fired, skipping", nil)
			return 0, 0, nil
		}
	}

	candidates, err := h.matchUsers(ctx, tmpl, target)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("template %s: match users: %v", tmpl.Name, err)}
	}

	if len(candidates) == 0 {
		if err := h.templates.UpdateLastRun(ctx, tmpl.ID, now, 0); err != nil {
			errs = append(errs, fmt.Sprintf("template %s: record run: %v", tmpl.Name, err))
		}
		return 0, 0, errs
	}

	alreadySent, err := h.sendLogs.ListUserIDsForYear(ctx, tmpl.ID, year)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("template %s: load send log: %v", tmpl.Name, err)}
	}

	pending := candidates[:0]
	for _, u := range candidates {
		if !alreadySent[u.ID] {
			pending = append(pending, u)
		}
	}

	if len(pending) == 0 {
		if err := h.templates.UpdateLastRun(ctx, tmpl.ID, now, 0); err != nil {
			errs = append(errs, fmt.Sprintf("template %s: record run: %v", tmpl.Name, err))
		}
		return 0, 0, errs
	}

	for _, user := range pending {
		created, err := h.sendToUser(ctx, tmpl, user, year, now)
		if err != nil {
			errs = append(errs, fmt.Sprintf("template %s, user %s: %v", tmpl.Name, user.ID, err))
			continue
		}
		sent++
		if created {
			couponsCreated++
			metrics.CouponsCreated.Inc()
		}
		metrics.NotificationsSent.WithLabelValues(string(tmpl.Trigger)).Inc()
	}

	if err := h.templates.UpdateLastRun(ctx, tmpl.ID, now, sent); err != nil {
		errs = append(errs, fmt.Sprintf("template %s: record run: %v", tmpl.Name, err))
	}
	return sent, couponsCreated, errs
}

// sendToUser provisions the coupon when configured, renders the localized
// text, creates the notification, and commits the dedup marker. The marker
// is written immediately after the notification so a crash mid-run resumes
// safely.
func (h *Handler) sendToUser(ctx context.Context, tmpl *models.NotificationTemplate, user models.User, year int, now time.Time) (couponCreated bool, err error) {
	var coupon *models.Coupon
	if tmpl.Discount != nil {
		coupon, couponCreated, err = h.provisioner.Provision(ctx, tmpl, user, year, false)
		if err != nil {
			return false, fmt.Errorf("provision coupon: %w", err)
		}
	}

	n, err := h.createNotification(ctx, tmpl, user, coupon, now)
	if err != nil {
		return couponCreated, err
	}

	var couponID *string
	if coupon != nil {
		couponID = &coupon.ID
	}
	logEntry := &models.TemplateSendLog{
		ID:         uuid.New().String(),
		TemplateID: tmpl.ID,
		UserID:     user.ID,
		Year:       year,
		CouponID:   couponID,
		SentAt:     now,
	}
	if err := h.sendLogs.Create(ctx, logEntry); err != nil {
		if err == store.ErrDuplicate {
			// An overlapping invocation logged this user first; our
			// delivery stands, theirs holds the marker.
			h.logger.Warn("send log already present", map[string]interface{}{
				"template": tmpl.Name,
				"userId":   user.ID,
			})
			return couponCreated, nil
		}
		return couponCreated, fmt.Errorf("record send log: %w", err)
	}

	h.dispatcher.NotifyEmail(ctx, user, n)
	return couponCreated, nil
}

func (h *Handler) createNotification(ctx context.Context, tmpl *models.NotificationTemplate, user models.User, coupon *models.Coupon, now time.Time) (*models.Notification, error) {
	data := templating.DataForCoupon(user, coupon)

	var couponID *string
	if coupon != nil {
		couponID = &coupon.ID
	}

	n := &models.Notification{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Type:      string(tmpl.Trigger),
		Title:     templating.RenderLocalized(tmpl.Title, data),
		Message:   templating.RenderLocalized(tmpl.Message, data),
		LinkURL:   tmpl.LinkURL,
		CouponID:  couponID,
		CreatedAt: now,
	}
	if err := h.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// TestSend delivers one template to one user, bypassing the dedup gate so
// operators can preview real output. The provisioned coupon code carries a
// trailing T and no send-log row is written.
func (h *Handler) TestSend(ctx context.Context, templateID, userID string) (*TestSendOutput, error) {
	tmpl, err := h.templates.GetByID(ctx, templateID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, errors.NewTemplateNotFoundError(templateID)
		}
		return nil, err
	}

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, errors.NewUserNotFoundError(userID)
		}
		return nil, err
	}

	now := h.now().UTC()
	year := now.Year()

	var coupon *models.Coupon
	if tmpl.Discount != nil {
		coupon, _, err = h.provisioner.Provision(ctx, tmpl, *user, year, true)
		if err != nil {
			return nil, fmt.Errorf("provision test coupon: %w", err)
		}
	}

	n, err := h.createNotification(ctx, tmpl, *user, coupon, now)
	if err != nil {
		return nil, err
	}

	h.dispatcher.NotifyEmail(ctx, *user, n)

	out := &TestSendOutput{NotificationID: n.ID}
	if coupon != nil {
		out.CouponID = &coupon.ID
	}
	return out, nil
}
