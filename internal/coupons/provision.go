// internal/coupons/provision.go
// Package coupons provisions per-user discount codes for notification
// templates. Codes are deterministic over (trigger, user, year) so repeated
// runs converge on a single coupon row: lookup-or-create, refresh-in-place.
package coupons

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront-notifier/internal/models"
	"storefront-notifier/internal/store"
)

// triggerPrefixes maps template trigger kinds to coupon code prefixes.
var triggerPrefixes = map[models.TriggerType]string{
	models.TriggerBirthday:       "BDAY",
	models.TriggerChristmas:      "XMAS",
	models.TriggerNewYear:        "NEWYEAR",
	models.TriggerOrthodoxEaster: "EASTER",
	models.TriggerCustomDate:     "TMPL",
}

// CouponStore is the persistence surface provisioning needs.
type CouponStore interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	Create(ctx context.Context, c *models.Coupon) error
	UpdateTerms(ctx context.Context, c *models.Coupon) error
}

// Code derives the deterministic coupon code for (trigger, user, year).
// Test sends carry a trailing T so they never collide with production codes.
func Code(trigger models.TriggerType, userID string, year int, testSend bool) string {
	prefix, ok := triggerPrefixes[trigger]
	if !ok {
		prefix = "TMPL"
	}

	suffix := userID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	code := fmt.Sprintf("%s-%s-%d", prefix, strings.ToUpper(suffix), year)
	if testSend {
		code += "T"
	}
	return code
}

// Provisioner creates or refreshes auto-provisioned coupons.
type Provisioner struct {
	store CouponStore
	now   func() time.Time
}

func NewProvisioner(s CouponStore) *Provisioner {
	return &Provisioner{store: s, now: time.Now}
}

// Provision ensures exactly one coupon exists for (user, year, trigger) and
// that its terms match the template's current discount configuration. It
// returns the coupon and whether it was newly created.
func (p *Provisioner) Provision(ctx context.Context, tmpl *models.NotificationTemplate, user models.User, year int, testSend bool) (*models.Coupon, bool, error) {
	cfg := tmpl.Discount
	if cfg == nil {
		return nil, false, nil
	}

	now := p.now().UTC()
	code := Code(tmpl.Trigger, user.ID, year, testSend)

	existing, err := p.store.GetByCode(ctx, code)
	if err != nil && err != store.ErrNotFound {
		return nil, false, fmt.Errorf("lookup coupon %s: %w", code, err)
	}

	if existing != nil {
		// Already provisioned: refresh terms from the template, which may
		// have been edited since the coupon was first created. Usage
		// history is untouched.
		applyConfig(existing, cfg, now)
		existing.UpdatedAt = now
		if err := p.store.UpdateTerms(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	c := &models.Coupon{
		ID:            uuid.New().String(),
		Code:          code,
		MaxUses:       1,
		ShowOnProduct: false,
		Active:        true,
		StartsAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyConfig(c, cfg, now)

	if err := p.store.Create(ctx, c); err != nil {
		if err == store.ErrDuplicate {
			// Lost a race with an overlapping invocation; the other
			// writer's coupon is authoritative.
			winner, lookupErr := p.store.GetByCode(ctx, code)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return winner, false, nil
		}
		return nil, false, err
	}
	return c, true, nil
}

// applyConfig copies the template's discount terms onto the coupon.
func applyConfig(c *models.Coupon, cfg *models.DiscountConfig, now time.Time) {
	c.Type = cfg.Type
	c.Value = parseAmount(cfg.Value)
	c.Currency = cfg.Currency
	c.MinPurchase = parseAmount(cfg.MinPurchase)
	c.MaxUsesPerUser = cfg.MaxUsesPerUser
	c.ProductIDs = cfg.ProductIDs
	c.AllowOnSale = cfg.AllowOnSale
	c.ExpiresAt = expiryFor(cfg, now)
}

// expiryFor computes the coupon expiry per the template's expiry mode.
func expiryFor(cfg *models.DiscountConfig, now time.Time) *time.Time {
	switch cfg.ExpiryMode {
	case models.ExpiryFixed:
		return cfg.ExpiresAt
	case models.ExpiryDuration:
		if cfg.DurationDays > 0 {
			t := now.AddDate(0, 0, cfg.DurationDays)
			return &t
		}
	}
	return nil
}

// parseAmount parses an operator-entered amount. Unparseable input persists
// as null rather than NaN.
func parseAmount(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
