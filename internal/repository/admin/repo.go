package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
)

var ErrPasswordNotSet = errors.New("admin password not set")

// Repository provides read access to the admin_settings table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new admin settings repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// GetPasswordHash retrieves the stored bcrypt hash of the admin password.
func (r *Repository) GetPasswordHash(ctx context.Context) (string, error) {
	query := `
		SELECT password_hash
		FROM admin_settings
		LIMIT 1;
    `

	var hash string
	err := r.db.QueryRowContext(ctx, query).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPasswordNotSet
		}

		return "", fmt.Errorf("failed to get admin password hash: %w", err)
	}

	return hash, nil
}
