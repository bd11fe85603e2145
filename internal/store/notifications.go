// internal/store/notifications.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"storefront-notifier/internal/models"
)

type NotificationStore struct {
	db *sql.DB
}

// Create inserts a delivered notification row.
func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	titleJSON, err := json.Marshal(n.Title)
	if err != nil {
		return fmt.Errorf("marshal notification title: %w", err)
	}
	messageJSON, err := json.Marshal(n.Message)
	if err != nil {
		return fmt.Errorf("marshal notification message: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, link_url, coupon_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`,
		n.ID, n.UserID, n.Type, titleJSON, messageJSON, n.LinkURL, n.CouponID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification for user %s: %w", n.UserID, err)
	}
	return nil
}

// ListReminderCandidates returns notifications eligible for the expiry
// reminder sweep: coupon-bearing, read, with no reminder escalated yet, of a
// type this scheduler manages.
func (s *NotificationStore) ListReminderCandidates(ctx context.Context, types []string) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, link_url, coupon_id, read, read_at, reminder_sent_at, created_at
		FROM notifications
		WHERE coupon_id IS NOT NULL
		  AND read = true
		  AND reminder_sent_at IS NULL
		  AND type = ANY($1)
		ORDER BY created_at`, pq.Array(types))
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n              models.Notification
			titleJSON      []byte
			messageJSON    []byte
			linkURL        sql.NullString
			couponID       sql.NullString
			readAt         sql.NullTime
			reminderSentAt sql.NullTime
		)
		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &titleJSON, &messageJSON,
			&linkURL, &couponID, &n.Read, &readAt, &reminderSentAt, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(titleJSON, &n.Title); err != nil {
			return nil, fmt.Errorf("notification %s title: %w", n.ID, err)
		}
		if err := json.Unmarshal(messageJSON, &n.Message); err != nil {
			return nil, fmt.Errorf("notification %s message: %w", n.ID, err)
		}
		if linkURL.Valid {
			n.LinkURL = &linkURL.String
		}
		if couponID.Valid {
			n.CouponID = &couponID.String
		}
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		if reminderSentAt.Valid {
			t := reminderSentAt.Time
			n.ReminderSentAt = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkReminderSent stamps reminder_sent_at so the notification is never
// reconsidered by a later sweep.
func (s *NotificationStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminder sent for notification %s: %w", id, err)
	}
	return nil
}
