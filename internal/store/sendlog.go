// internal/store/sendlog.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-notifier/internal/models"
)

type SendLogStore struct {
	db *sql.DB
}

// Exists reports whether a send-log row exists for (template, user, year).
// This is the per-cycle dedup gate for recurring templates.
func (s *SendLogStore) Exists(ctx context.Context, templateID, userID string, year int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM template_send_logs
			WHERE template_id = $1 AND user_id = $2 AND year = $3
		)`, templateID, userID, year).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check send log: %w", err)
	}
	return exists, nil
}

// ExistsAnyYear reports whether the template has ever fired, across all
// years. Non-recurring templates fire at most once in their lifetime.
func (s *SendLogStore) ExistsAnyYear(ctx context.Context, templateID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM template_send_logs WHERE template_id = $1
		)`, templateID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check send log history: %w", err)
	}
	return exists, nil
}

// ListUserIDsForYear returns the users already logged for (template, year).
func (s *SendLogStore) ListUserIDsForYear(ctx context.Context, templateID string, year int) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM template_send_logs
		WHERE template_id = $1 AND year = $2`, templateID, year)
	if err != nil {
		return nil, fmt.Errorf("list send log users: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		out[userID] = true
	}
	return out, rows.Err()
}

// Create inserts the dedup marker for one delivery. A concurrent invocation
// inserting the same (template, user, year) surfaces as ErrDuplicate through
// the unique constraint, which callers treat as "already sent".
func (s *SendLogStore) Create(ctx context.Context, l *models.TemplateSendLog) error {
	var couponID sql.NullString
	if l.CouponID != nil {
		couponID = sql.NullString{String: *l.CouponID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO template_send_logs (id, template_id, user_id, year, coupon_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.TemplateID, l.UserID, l.Year, couponID, l.SentAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create send log: %w", err)
	}
	return nil
}
