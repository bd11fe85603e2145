// internal/store/coupons.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"storefront-notifier/internal/models"
)

type CouponStore struct {
	db *sql.DB
}

const couponColumns = `id, code, discount_type, value, currency, min_purchase, max_uses,
	max_uses_per_user, product_ids, allow_on_sale, show_on_product, active, starts_at,
	expires_at, created_at, updated_at`

// GetByCode returns the coupon with the given code or ErrNotFound.
func (s *CouponStore) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)

	c, err := scanCoupon(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

// GetByID returns one coupon or ErrNotFound.
func (s *CouponStore) GetByID(ctx context.Context, id string) (*models.Coupon, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id)

	c, err := scanCoupon(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

// Create inserts a coupon. A concurrent insert of the same code surfaces as
// ErrDuplicate via the unique index on coupons.code.
func (s *CouponStore) Create(ctx context.Context, c *models.Coupon) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coupons (`+couponColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.Code, c.Type, c.Value, c.Currency, c.MinPurchase, c.MaxUses,
		c.MaxUsesPerUser, pq.Array(c.ProductIDs), c.AllowOnSale, c.ShowOnProduct, c.Active,
		c.StartsAt, c.ExpiresAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create coupon %s: %w", c.Code, err)
	}
	return nil
}

// UpdateTerms refreshes a coupon's terms from the current template
// configuration without touching its usage history.
func (s *CouponStore) UpdateTerms(ctx context.Context, c *models.Coupon) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE coupons
		SET discount_type = $2, value = $3, currency = $4, min_purchase = $5,
		    max_uses_per_user = $6, product_ids = $7, allow_on_sale = $8,
		    expires_at = $9, updated_at = $10
		WHERE id = $1`,
		c.ID, c.Type, c.Value, c.Currency, c.MinPurchase,
		c.MaxUsesPerUser, pq.Array(c.ProductIDs), c.AllowOnSale,
		c.ExpiresAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update coupon %s: %w", c.Code, err)
	}
	return nil
}

// HasUsage reports whether the given email has redeemed the coupon.
func (s *CouponStore) HasUsage(ctx context.Context, couponID, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND email = $2
		)`, couponID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check coupon usage: %w", err)
	}
	return exists, nil
}

func scanCoupon(r rowScanner) (*models.Coupon, error) {
	var (
		c           models.Coupon
		value       sql.NullFloat64
		minPurchase sql.NullFloat64
		expiresAt   sql.NullTime
		productIDs  pq.StringArray
	)

	err := r.Scan(&c.ID, &c.Code, &c.Type, &value, &c.Currency, &minPurchase, &c.MaxUses,
		&c.MaxUsesPerUser, &productIDs, &c.AllowOnSale, &c.ShowOnProduct, &c.Active,
		&c.StartsAt, &expiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if value.Valid {
		v := value.Float64
		c.Value = &v
	}
	if minPurchase.Valid {
		v := minPurchase.Float64
		c.MinPurchase = &v
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	c.ProductIDs = productIDs
	return &c, nil
}
