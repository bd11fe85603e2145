// internal/models/coupon.go
package models

import "time"

// Coupon is a redeemable discount code. Auto-provisioned coupons carry a
// deterministic code derived from (trigger prefix, user suffix, year) so that
// repeated provisioning for the same user and year converges on one row.
type Coupon struct {
	ID             string
	Code           string
	Type           DiscountType
	Value          *float64
	Currency       string
	MinPurchase    *float64
	MaxUses        int
	MaxUsesPerUser int
	ProductIDs     []string
	AllowOnSale    bool
	ShowOnProduct  bool // promo badge on product pages; always false for auto-provisioned codes
	Active         bool
	StartsAt       time.Time
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CouponUsage records one redemption of a coupon at checkout.
type CouponUsage struct {
	ID       string
	CouponID string
	Email    string
	OrderID  string
	UsedAt   time.Time
}
