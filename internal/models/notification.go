// internal/models/notification.go
package models

import "time"

// Notification types mirror the template trigger kinds, plus the storefront's
// manually-sent coupon notifications and the reminder escalation type produced
// by the sweeper.
const (
	NotificationTypeCoupon         = "coupon"
	NotificationTypeCouponReminder = "coupon_reminder"
)

// LocalizedText holds the three storefront locales. Persisted as JSON.
type LocalizedText struct {
	EN string `json:"en"`
	EL string `json:"el"`
	RU string `json:"ru"`
}

// ForLocale returns the text for the given locale, falling back to English.
func (t LocalizedText) ForLocale(locale string) string {
	switch locale {
	case "el":
		if t.EL != "" {
			return t.EL
		}
	case "ru":
		if t.RU != "" {
			return t.RU
		}
	}
	return t.EN
}

// Notification is one delivered message instance in a user's inbox.
type Notification struct {
	ID             string
	UserID         string
	Type           string // trigger kind or "coupon_reminder"
	Title          LocalizedText
	Message        LocalizedText
	LinkURL        *string
	CouponID       *string
	Read           bool
	ReadAt         *time.Time
	ReminderSentAt *time.Time
	CreatedAt      time.Time
}

// TemplateSendLog is the idempotence ledger: one row per (template, user,
// calendar year) that has been delivered. The storage layer enforces the
// uniqueness, not the application.
type TemplateSendLog struct {
	ID         string
	TemplateID string
	UserID     string
	Year       int
	CouponID   *string
	SentAt     time.Time
}
