package userinfra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/iam/user"
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

func testUser(role kernel.SystemRole) *user.User {
	return &user.User{
		ID:           kernel.NewUserID(),
		Email:        "a@example.com",
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestCreateMapsSingleSuperAdminViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_single_super_admin"})

	err := repo.Create(context.Background(), testUser(kernel.RoleSuperAdmin))
	if !errx.IsCode(err, user.CodeSuperAdminExists) {
		t.Fatalf("expected SUPER_ADMIN_EXISTS, got %v", err)
	}
}

func TestCreateMapsDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), testUser(kernel.RoleAdmin))
	if !errx.IsCode(err, user.CodeDuplicateEmail) {
		t.Fatalf("expected DUPLICATE_EMAIL, got %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	id := kernel.NewUserID()
	mock.ExpectQuery(`SELECT \* FROM users WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), id)
	if !errx.IsCode(err, user.CodeUserNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCreateWithGrantsCommitsUserAndGrants(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	u := testUser(kernel.RoleAdmin)
	grantedBy := kernel.NewUserID()
	grants := []*project.UserProject{
		{
			ID: "g-1", UserID: u.ID, ProjectID: kernel.NewProjectID(),
			Role: kernel.ProjectRoleAdmin, IsActive: true, GrantedBy: grantedBy,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		},
		{
			ID: "g-2", UserID: u.ID, ProjectID: kernel.NewProjectID(),
			Role: kernel.ProjectRoleMember, IsActive: true, GrantedBy: grantedBy,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO user_projects`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO user_projects`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.CreateWithGrants(context.Background(), u, grants); err != nil {
		t.Fatalf("CreateWithGrants: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateWithGrantsRollsBackWhenGrantInsertFails(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	u := testUser(kernel.RoleAdmin)
	grants := []*project.UserProject{
		{
			ID: "g-1", UserID: u.ID, ProjectID: kernel.NewProjectID(),
			Role: kernel.ProjectRoleAdmin, IsActive: true,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO user_projects`).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	if err := repo.CreateWithGrants(context.Background(), u, grants); err == nil {
		t.Fatal("expected error when a grant insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
