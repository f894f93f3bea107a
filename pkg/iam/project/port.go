package project

import (
	"context"

	"github.com/xtown/projecthub/pkg/kernel"
)

// GrantView is a grant joined with its project, as most read paths need
// both sides.
type GrantView struct {
	Grant   UserProject
	Project Project
}

// Repository persists projects.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id kernel.ProjectID) (*Project, error)
	GetByCustomID(ctx context.Context, customID string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, p *Project) error
	// Delete removes the project and, in the same transaction, all grants
	// pointing at it.
	Delete(ctx context.Context, id kernel.ProjectID) error
	Count(ctx context.Context) (int, error)
}

// GrantRepository persists user-project access grants.
type GrantRepository interface {
	// Upsert inserts the grant or, when one exists for the same user and
	// project, reactivates it with the new role and URL override.
	Upsert(ctx context.Context, g *UserProject) error
	// GetActive returns the live grant for a user on a project, or nil.
	GetActive(ctx context.Context, userID kernel.UserID, projectID kernel.ProjectID) (*UserProject, error)
	// ListActiveByUser returns the user's live grants with their projects.
	ListActiveByUser(ctx context.Context, userID kernel.UserID) ([]GrantView, error)
	ListByProject(ctx context.Context, projectID kernel.ProjectID) ([]*UserProject, error)
	// DeactivateAllForUser soft-deactivates every live grant of a user.
	DeactivateAllForUser(ctx context.Context, userID kernel.UserID) error
	// ReplaceForUser swaps the user's grant set in one transaction: every
	// live grant is deactivated and the given grants inserted, so a
	// partial replacement is never observable.
	ReplaceForUser(ctx context.Context, userID kernel.UserID, grants []*UserProject) error
	// TouchLastAccessed records project access, best effort.
	TouchLastAccessed(ctx context.Context, grantID string) error
	CountActiveByProject(ctx context.Context, projectID kernel.ProjectID) (int, error)
}
