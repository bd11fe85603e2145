// internal/store/store.go
// Package store provides the scheduler's persistence layer over PostgreSQL.
// Uniqueness of coupon codes and send-log rows is enforced by database
// constraints (see migrations/001_init.sql); the repositories surface those
// violations as ErrDuplicate so callers can treat them as idempotent no-ops.
package store

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store bundles the per-aggregate repositories over one connection pool.
type Store struct {
	Templates     *TemplateStore
	Users         *UserStore
	Coupons       *CouponStore
	Notifications *NotificationStore
	SendLogs      *SendLogStore
}

func New(db *sql.DB) *Store {
	return &Store{
		Templates:     &TemplateStore{db: db},
		Users:         &UserStore{db: db},
		Coupons:       &CouponStore{db: db},
		Notifications: &NotificationStore{db: db},
		SendLogs:      &SendLogStore{db: db},
	}
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
