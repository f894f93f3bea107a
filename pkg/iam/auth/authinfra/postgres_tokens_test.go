package authinfra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/kernel"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestRotateRevokesBeforeInserting(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresTokenRepository(db)

	userID := kernel.NewUserID()
	token := auth.RefreshToken{
		ID:        "tok-1",
		Token:     "opaque-value",
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE refresh_tokens SET is_revoked = true WHERE user_id = \$1 AND is_revoked = false`).
		WithArgs(userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(token.ID, token.Token, string(userID), sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Rotate(context.Background(), token); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRotateRollsBackWhenInsertFails(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresTokenRepository(db)

	userID := kernel.NewUserID()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE refresh_tokens SET is_revoked = true`).
		WithArgs(userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), auth.RefreshToken{
		ID: "tok-1", Token: "v", UserID: userID,
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindRefreshTokenMissingReturnsNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresTokenRepository(db)

	mock.ExpectQuery(`SELECT \* FROM refresh_tokens WHERE token = \$1`).
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "user_id", "expires_at", "created_at", "is_revoked"}))

	token, err := repo.FindRefreshToken(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("FindRefreshToken: %v", err)
	}
	if token != nil {
		t.Fatalf("expected nil for unknown token, got %+v", token)
	}
}

func TestCleanExpiredTokensReportsCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresTokenRepository(db)

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at < NOW\(\) OR is_revoked = true`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.CleanExpiredTokens(context.Background())
	if err != nil {
		t.Fatalf("CleanExpiredTokens: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 deleted, got %d", n)
	}
}
