// internal/store/users.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-notifier/internal/models"
)

type UserStore struct {
	db *sql.DB
}

const userColumns = `id, name, email, COALESCE(phone, ''), COALESCE(locale, 'en'), birth_date`

// ListAll returns every registered user.
func (s *UserStore) ListAll(ctx context.Context) ([]models.User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// ListWithBirthDate returns users that have a recorded birth date.
func (s *UserStore) ListWithBirthDate(ctx context.Context) ([]models.User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users WHERE birth_date IS NOT NULL ORDER BY id`)
}

// GetByID returns one user or ErrNotFound.
func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *UserStore) list(ctx context.Context, query string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func scanUser(r rowScanner) (*models.User, error) {
	var (
		u         models.User
		birthDate sql.NullTime
	)
	if err := r.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Locale, &birthDate); err != nil {
		return nil, err
	}
	if birthDate.Valid {
		t := birthDate.Time
		u.BirthDate = &t
	}
	return &u, nil
}
