// internal/models/template.go
package models

import "time"

// TriggerType identifies the calendar event a notification template fires on.
type TriggerType string

const (
	TriggerBirthday       TriggerType = "birthday"
	TriggerChristmas      TriggerType = "christmas"
	TriggerNewYear        TriggerType = "new_year"
	TriggerOrthodoxEaster TriggerType = "orthodox_easter"
	TriggerCustomDate     TriggerType = "custom_date"
)

// DiscountType is the kind of discount an auto-provisioned coupon grants.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// ExpiryMode selects how a provisioned coupon's expiry is computed.
type ExpiryMode string

const (
	ExpiryDuration ExpiryMode = "duration" // now + DurationDays
	ExpiryFixed    ExpiryMode = "fixed"    // absolute ExpiresAt
)

// DiscountConfig is the optional coupon-provisioning section of a template.
// Value and MinPurchase are kept as raw strings as entered by the operator;
// parsing happens at provisioning time and unparseable values persist as null.
type DiscountConfig struct {
	Type           DiscountType `json:"type"`
	Value          string       `json:"value"`
	Currency       string       `json:"currency"`
	MinPurchase    string       `json:"minPurchase,omitempty"`
	ExpiryMode     ExpiryMode   `json:"expiryMode"`
	DurationDays   int          `json:"durationDays,omitempty"`
	ExpiresAt      *time.Time   `json:"expiresAt,omitempty"`
	MaxUsesPerUser int          `json:"maxUsesPerUser"`
	ProductIDs     []string     `json:"productIds,omitempty"`
	AllowOnSale    bool         `json:"allowOnSale"`
}

// NotificationTemplate is an operator-authored rule describing when and what
// to send. The scheduler treats it as read-only except for the last-run fields.
type NotificationTemplate struct {
	ID           string
	Name         string
	Trigger      TriggerType
	DaysBefore   int
	CustomMonth  *int // custom_date only
	CustomDay    *int // custom_date only
	Recurring    bool
	Title        LocalizedText
	Message      LocalizedText
	LinkURL      *string
	Discount     *DiscountConfig
	Active       bool
	LastRunAt    *time.Time
	LastRunCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
