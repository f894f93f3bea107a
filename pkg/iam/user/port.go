package user

import (
	"context"

	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/kernel"
)

// ListFilter narrows List queries. Zero values mean no filtering.
type ListFilter struct {
	Role kernel.SystemRole
	// CreatedBy restricts results to sub users owned by the given admin.
	CreatedBy kernel.UserID
	// IncludeSuspended keeps suspended accounts in the result.
	IncludeSuspended bool
}

// Repository persists user accounts.
type Repository interface {
	Create(ctx context.Context, u *User) error
	// CreateWithGrants inserts the user together with their initial
	// project grants in one transaction, so an account without its
	// grants is never observable.
	CreateWithGrants(ctx context.Context, u *User, grants []*project.UserProject) error
	GetByID(ctx context.Context, id kernel.UserID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]*User, error)
	Update(ctx context.Context, u *User) error
	// DeleteCascade removes the user and everything hanging off the
	// account: owned sub users, grants, refresh tokens, OTPs and audit
	// rows, all in one transaction.
	DeleteCascade(ctx context.Context, id kernel.UserID) error
	SuperAdminExists(ctx context.Context) (bool, error)
	CountSubUsers(ctx context.Context, adminID kernel.UserID) (int, error)
	CountByRole(ctx context.Context, role kernel.SystemRole) (int, error)
	UpdateLastLogin(ctx context.Context, id kernel.UserID) error
}

// PasswordService hashes and verifies passwords.
type PasswordService interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}
