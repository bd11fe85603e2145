// internal/store/templates.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"storefront-notifier/internal/common/validation"
	"storefront-notifier/internal/models"
)

type TemplateStore struct {
	db *sql.DB
}

const templateColumns = `id, name, trigger_type, days_before, custom_month, custom_day,
	recurring, title, message, link_url, discount_config, active, last_run_at, last_run_count,
	created_at, updated_at`

// ListActive returns all active notification templates.
func (s *TemplateStore) ListActive(ctx context.Context) ([]models.NotificationTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM notification_templates
		WHERE active = true
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tmpl)
	}
	return out, rows.Err()
}

// GetByID returns one template or ErrNotFound.
func (s *TemplateStore) GetByID(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM notification_templates
		WHERE id = $1`, id)

	tmpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return tmpl, err
}

// UpdateLastRun records the outcome of a processing pass for one template.
func (s *TemplateStore) UpdateLastRun(ctx context.Context, id string, at time.Time, count int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_templates
		SET last_run_at = $2, last_run_count = $3, updated_at = $2
		WHERE id = $1`, id, at, count)
	if err != nil {
		return fmt.Errorf("update last run for template %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(r rowScanner) (*models.NotificationTemplate, error) {
	var (
		tmpl        models.NotificationTemplate
		titleJSON   []byte
		messageJSON []byte
		discount    sql.NullString
		linkURL     sql.NullString
		customMonth sql.NullInt64
		customDay   sql.NullInt64
		lastRunAt   sql.NullTime
	)

	err := r.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Trigger, &tmpl.DaysBefore, &customMonth, &customDay,
		&tmpl.Recurring, &titleJSON, &messageJSON, &linkURL, &discount, &tmpl.Active,
		&lastRunAt, &tmpl.LastRunCount, &tmpl.CreatedAt, &tmpl.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(titleJSON, &tmpl.Title); err != nil {
		return nil, fmt.Errorf("template %s title: %w", tmpl.ID, err)
	}
	if err := json.Unmarshal(messageJSON, &tmpl.Message); err != nil {
		return nil, fmt.Errorf("template %s message: %w", tmpl.ID, err)
	}

	if customMonth.Valid {
		m := int(customMonth.Int64)
		tmpl.CustomMonth = &m
	}
	if customDay.Valid {
		d := int(customDay.Int64)
		tmpl.CustomDay = &d
	}
	if linkURL.Valid {
		tmpl.LinkURL = &linkURL.String
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time
		tmpl.LastRunAt = &t
	}

	// A discount config that fails schema validation degrades to "no
	// discount" so one bad row cannot poison a whole run.
	if discount.Valid && discount.String != "" {
		raw := []byte(discount.String)
		if validation.ValidateDiscountConfig(raw) == nil {
			var cfg models.DiscountConfig
			if json.Unmarshal(raw, &cfg) == nil {
				tmpl.Discount = &cfg
			}
		}
	}

	return &tmpl, nil
}
