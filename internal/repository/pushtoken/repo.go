package pushtoken

import (
	"context"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"questionbox/internal/model"
)

var ErrTokenNotFound = errors.New("push token not found")

// Repository provides methods to interact with the push_tokens table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new push token repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// UpsertToken registers a device token, keyed on the token value.
// Re-registering an existing token updates its metadata and never
// creates a duplicate row.
func (r *Repository) UpsertToken(ctx context.Context, token model.PushToken) error {
	query := `
		INSERT INTO push_tokens (token, device_type)
		VALUES ($1, $2)
		ON CONFLICT (token) DO UPDATE
		SET device_type = EXCLUDED.device_type, updated_at = now();
    `

	_, err := r.db.ExecContext(ctx, query, token.Token, token.DeviceType)
	if err != nil {
		return fmt.Errorf("failed to upsert push token: %w", err)
	}

	return nil
}

// GetAdminTokens retrieves all tokens flagged as admin recipients.
func (r *Repository) GetAdminTokens(ctx context.Context) ([]model.PushToken, error) {
	query := `
		SELECT token, device_type
		FROM push_tokens
		WHERE is_admin = true;
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.PushToken
	for rows.Next() {
		var t model.PushToken
		if err := rows.Scan(&t.Token, &t.DeviceType); err != nil {
			return nil, err
		}

		tokens = append(tokens, t)
	}

	return tokens, nil
}

// GetAllTokens retrieves every registered token, newest first.
func (r *Repository) GetAllTokens(ctx context.Context) ([]model.PushToken, error) {
	query := `
		SELECT id, token, device_type, is_admin, created_at, updated_at
		FROM push_tokens
		ORDER BY created_at DESC;
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.PushToken
	for rows.Next() {
		var t model.PushToken
		if err := rows.Scan(&t.ID, &t.Token, &t.DeviceType, &t.IsAdmin, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}

		tokens = append(tokens, t)
	}

	return tokens, nil
}

// SetAdmin flags the given token as an admin recipient.
func (r *Repository) SetAdmin(ctx context.Context, token string) error {
	query := `
		UPDATE push_tokens
		SET is_admin = true, updated_at = now()
		WHERE token = $1;
    `

	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrTokenNotFound
	}

	return nil
}
