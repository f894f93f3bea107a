package projectinfra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/xtown/projecthub/pkg/iam/project"
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

func testGrant(userID kernel.UserID) *project.UserProject {
	return &project.UserProject{
		ID: "g-1", UserID: userID, ProjectID: kernel.NewProjectID(),
		Role: kernel.ProjectRoleMember, IsActive: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
}

func TestReplaceForUserDeactivatesThenInserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresGrantRepository(db)

	userID := kernel.NewUserID()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE user_projects SET is_active = false, updated_at = NOW\(\) WHERE user_id = \$1 AND is_active = true`).
		WithArgs(userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO user_projects`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReplaceForUser(context.Background(), userID, []*project.UserProject{testGrant(userID)})
	if err != nil {
		t.Fatalf("ReplaceForUser: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReplaceForUserRollsBackWhenInsertFails(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresGrantRepository(db)

	userID := kernel.NewUserID()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE user_projects SET is_active = false`).
		WithArgs(userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_projects`).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.ReplaceForUser(context.Background(), userID, []*project.UserProject{testGrant(userID)})
	if err == nil {
		t.Fatal("expected error when an insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
