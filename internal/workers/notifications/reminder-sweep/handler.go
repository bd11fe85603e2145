// internal/workers/notifications/reminder-sweep/handler.go
package remindersweep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront-notifier/internal/common/logger"
	"storefront-notifier/internal/common/metrics"
	"storefront-notifier/internal/models"
	"storefront-notifier/internal/store"
	"storefront-notifier/internal/templating"
)

// sweepTypes lists the notification types the sweeper scans: the auto-trigger
// kinds plus the storefront's manually-sent coupon notifications, which share
// the notifications table. Reminder rows themselves are excluded so a reminder
// never triggers another reminder.
var sweepTypes = []string{
	string(models.TriggerBirthday),
	string(models.TriggerChristmas),
	string(models.TriggerNewYear),
	string(models.TriggerOrthodoxEaster),
	string(models.TriggerCustomDate),
	models.NotificationTypeCoupon,
}

type NotificationStore interface {
	ListReminderCandidates(ctx context.Context, types []string) ([]models.Notification, error)
	Create(ctx context.Context, n *models.Notification) error
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

type CouponStore interface {
	GetByID(ctx context.Context, id string) (*models.Coupon, error)
	HasUsage(ctx context.Context, couponID, email string) (bool, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type Dispatcher interface {
	NotifyEmail(ctx context.Context, user models.User, n *models.Notification)
	NotifySMS(ctx context.Context, user models.User, n *models.Notification)
}

type Handler struct {
	config        *Config
	notifications NotificationStore
	coupons       CouponStore
	users         UserStore
	dispatcher    Dispatcher
	logger        logger.Logger
	now           func() time.Time
}

func NewHandler(config *Config, notifications NotificationStore, coupons CouponStore,
	users UserStore, dispatcher Dispatcher, log logger.Logger) *Handler {
	return &Handler{
		config:        config,
		notifications: notifications,
		coupons:       coupons,
		users:         users,
		dispatcher:    dispatcher,
		logger:        log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:           time.Now,
	}
}

// Execute runs one sweep over coupon-bearing notifications whose user read
// them but has not redeemed the coupon, escalating the ones whose coupon
// expires within the window. Marking reminder_sent_at makes each escalation
// exactly-once; per-item failures leave the row unmarked for the next sweep.
func (h *Handler) Execute(ctx context.Context) *Output {
	start := time.Now()
	defer func() {
		metrics.RunDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()
	metrics.SchedulerRuns.WithLabelValues(TaskType).Inc()

	out := &Output{Errors: []string{}}
	now := h.now().UTC()

	candidates, err := h.notifications.ListReminderCandidates(ctx, sweepTypes)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("list candidates: %v", err))
		metrics.RunErrors.WithLabelValues(TaskType).Inc()
		return out
	}

	for i := range candidates {
		n := &candidates[i]
		out.Scanned++

		sent, err := h.sweepOne(ctx, n, now)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("notification %s: %v", n.ID, err))
			metrics.RunErrors.WithLabelValues(TaskType).Inc()
			continue
		}
		if sent {
			out.Sent++
			metrics.NotificationsSent.WithLabelValues(models.NotificationTypeCouponReminder).Inc()
		}
	}

	h.logger.Info("reminder sweep complete", map[string]interface{}{
		"scanned": out.Scanned,
		"sent":    out.Sent,
		"errors":  len(out.Errors),
	})
	return out
}

func (h *Handler) sweepOne(ctx context.Context, n *models.Notification, now time.Time) (bool, error) {
	coupon, err := h.coupons.GetByID(ctx, *n.CouponID)
	if err != nil {
		if err == store.ErrNotFound {
			h.logger.Warn("coupon missing for notification, skipping", map[string]interface{}{
				"notificationId": n.ID,
				"couponId":       *n.CouponID,
			})
			return false, nil
		}
		return false, fmt.Errorf("load coupon: %w", err)
	}

	// Only coupons expiring inside (now, now+window] qualify: already expired
	// ones get no reminder, ones further out wait for a later sweep.
	if coupon.ExpiresAt == nil {
		return false, nil
	}
	if !coupon.ExpiresAt.After(now) || coupon.ExpiresAt.After(now.Add(h.config.Window)) {
		return false, nil
	}

	user, err := h.users.GetByID(ctx, n.UserID)
	if err != nil {
		if err == store.ErrNotFound {
			h.logger.Warn("user missing for notification, skipping", map[string]interface{}{
				"notificationId": n.ID,
				"userId":         n.UserID,
			})
			return false, nil
		}
		return false, fmt.Errorf("load user: %w", err)
	}

	if user.Email != "" {
		used, err := h.coupons.HasUsage(ctx, coupon.ID, user.Email)
		if err != nil {
			return false, fmt.Errorf("check coupon usage: %w", err)
		}
		if used {
			return false, nil
		}
	}

	reminder := h.buildReminder(*user, n, coupon, now)
	if err := h.notifications.Create(ctx, reminder); err != nil {
		return false, fmt.Errorf("create reminder: %w", err)
	}
	if err := h.notifications.MarkReminderSent(ctx, n.ID, now); err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}

	// Expiry reminders are urgent enough to escalate on both channels.
	h.dispatcher.NotifyEmail(ctx, *user, reminder)
	h.dispatcher.NotifySMS(ctx, *user, reminder)
	return true, nil
}

func (h *Handler) buildReminder(user models.User, n *models.Notification, coupon *models.Coupon, now time.Time) *models.Notification {
	value := templating.FormatCouponValue(coupon)
	expires := templating.FormatExpiry(coupon.ExpiresAt)

	return &models.Notification{
		ID:     uuid.New().String(),
		UserID: user.ID,
		Type:   models.NotificationTypeCouponReminder,
		Title: models.LocalizedText{
			EN: "Your coupon is about to expire!",
			EL: "Το κουπόνι σας λήγει σύντομα!",
			RU: "Ваш купон скоро истекает!",
		},
		Message: models.LocalizedText{
			EN: fmt.Sprintf("Coupon %s for %s is valid until %s. Use it before it expires!", coupon.Code, value, expires),
			EL: fmt.Sprintf("Το κουπόνι %s για %s ισχύει έως %s. Χρησιμοποιήστε το πριν λήξει!", coupon.Code, value, expires),
			RU: fmt.Sprintf("Купон %s на %s действует до %s. Используйте его до истечения срока!", coupon.Code, value, expires),
		},
		LinkURL:   n.LinkURL,
		CouponID:  &coupon.ID,
		CreatedAt: now,
	}
}
