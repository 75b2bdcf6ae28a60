package postgres

import (
	"context"
	"fmt"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/pkg/crypto"
	"github.com/prn-tf/pantry/internal/repository"
)

// tokenRepository implements repository.TokenRepository for PostgreSQL.
type tokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new PostgreSQL token repository.
func NewTokenRepository(db *DB) repository.TokenRepository {
	return &tokenRepository{db: db}
}

// Replace stores tokenHash as the user's only token.
func (r *tokenRepository) Replace(ctx context.Context, userID int64, tokenHash string) error {
	if !crypto.ValidateSHA256(tokenHash) {
		return repository.ErrMalformedTokenHash
	}
	query := `
		INSERT INTO auth_tokens (user_id, token_hash, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash, created_at = EXCLUDED.created_at
	`

	if _, err := r.db.Pool.Exec(ctx, query, userID, tokenHash); err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// GetUserID resolves a token hash to its owner.
func (r *tokenRepository) GetUserID(ctx context.Context, tokenHash string) (int64, error) {
	if !crypto.ValidateSHA256(tokenHash) {
		return 0, domain.ErrTokenNotFound
	}
	var userID int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id FROM auth_tokens WHERE token_hash = $1`, tokenHash,
	).Scan(&userID)
	if err != nil {
		if isNoRows(err) {
			return 0, domain.ErrTokenNotFound
		}
		return 0, fmt.Errorf("failed to get token: %w", err)
	}
	return userID, nil
}

// Delete removes the user's token.
func (r *tokenRepository) Delete(ctx context.Context, userID int64) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

var _ repository.TokenRepository = (*tokenRepository)(nil)
