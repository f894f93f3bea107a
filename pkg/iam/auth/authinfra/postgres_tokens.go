package authinfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/kernel"
)

// PostgresTokenRepository is the PostgreSQL implementation of
// auth.TokenRepository.
type PostgresTokenRepository struct {
	db *sqlx.DB
}

// NewPostgresTokenRepository creates a new token repository.
func NewPostgresTokenRepository(db *sqlx.DB) auth.TokenRepository {
	return &PostgresTokenRepository{db: db}
}

// Rotate revokes the user's live tokens and inserts the new one in a
// single transaction.
func (r *PostgresTokenRepository) Rotate(ctx context.Context, token auth.RefreshToken) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin token rotation", errx.TypeInternal)
	}
	defer tx.Rollback()

	revoke := `UPDATE refresh_tokens SET is_revoked = true WHERE user_id = $1 AND is_revoked = false`
	if _, err := tx.ExecContext(ctx, revoke, token.UserID.String()); err != nil {
		return errx.Wrap(err, "failed to revoke prior refresh tokens", errx.TypeInternal)
	}

	insert := `
		INSERT INTO refresh_tokens (id, token, user_id, expires_at, created_at, is_revoked)
		VALUES (:id, :token, :user_id, :expires_at, :created_at, :is_revoked)`
	if _, err := tx.NamedExecContext(ctx, insert, token); err != nil {
		return errx.Wrap(err, "failed to store refresh token", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit token rotation", errx.TypeInternal)
	}
	return nil
}

// FindRefreshToken looks up a token by its opaque value, returning nil
// when absent.
func (r *PostgresTokenRepository) FindRefreshToken(ctx context.Context, tokenValue string) (*auth.RefreshToken, error) {
	var token auth.RefreshToken
	query := `SELECT * FROM refresh_tokens WHERE token = $1`
	if err := r.db.GetContext(ctx, &token, query, tokenValue); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to find refresh token", errx.TypeInternal)
	}
	return &token, nil
}

// RevokeRefreshToken revokes a single token by value.
func (r *PostgresTokenRepository) RevokeRefreshToken(ctx context.Context, tokenValue string) error {
	query := `UPDATE refresh_tokens SET is_revoked = true WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, tokenValue); err != nil {
		return errx.Wrap(err, "failed to revoke refresh token", errx.TypeInternal)
	}
	return nil
}

// RevokeAllUserTokens revokes every token of a user.
func (r *PostgresTokenRepository) RevokeAllUserTokens(ctx context.Context, userID kernel.UserID) error {
	query := `UPDATE refresh_tokens SET is_revoked = true WHERE user_id = $1 AND is_revoked = false`
	if _, err := r.db.ExecContext(ctx, query, userID.String()); err != nil {
		return errx.Wrap(err, "failed to revoke user tokens", errx.TypeInternal).
			WithDetail("user_id", userID.String())
	}
	return nil
}

// CleanExpiredTokens deletes tokens past their expiry along with
// revoked ones, which are dead weight once rotation has replaced them.
func (r *PostgresTokenRepository) CleanExpiredTokens(ctx context.Context) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < NOW() OR is_revoked = true`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, errx.Wrap(err, "failed to clean expired tokens", errx.TypeInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "failed to get rows affected on token cleanup", errx.TypeInternal)
	}
	return rows, nil
}
