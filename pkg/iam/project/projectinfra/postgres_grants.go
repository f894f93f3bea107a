package projectinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/kernel"
)

// PostgresGrantRepository is the PostgreSQL implementation of
// project.GrantRepository.
type PostgresGrantRepository struct {
	db *sqlx.DB
}

// NewPostgresGrantRepository creates a new grant repository.
func NewPostgresGrantRepository(db *sqlx.DB) project.GrantRepository {
	return &PostgresGrantRepository{db: db}
}

// Upsert inserts a grant, reactivating the existing row for the same user
// and project when there is one.
func (r *PostgresGrantRepository) Upsert(ctx context.Context, g *project.UserProject) error {
	query := `
		INSERT INTO user_projects (id, user_id, project_id, role, is_active, project_url, granted_by, created_at, updated_at)
		VALUES (:id, :user_id, :project_id, :role, :is_active, :project_url, :granted_by, :created_at, :updated_at)
		ON CONFLICT (user_id, project_id) DO UPDATE SET
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			project_url = EXCLUDED.project_url,
			granted_by = EXCLUDED.granted_by,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.NamedExecContext(ctx, query, toGrantPersistence(g))
	if err != nil {
		return errx.Wrap(err, "failed to upsert project grant", errx.TypeInternal).
			WithDetail("user_id", g.UserID.String()).
			WithDetail("project_id", g.ProjectID.String())
	}
	return nil
}

// GetActive returns the live grant for a user on a project, or nil.
func (r *PostgresGrantRepository) GetActive(ctx context.Context, userID kernel.UserID, projectID kernel.ProjectID) (*project.UserProject, error) {
	var p grantPersistence
	query := `SELECT * FROM user_projects WHERE user_id = $1 AND project_id = $2 AND is_active = true`
	if err := r.db.GetContext(ctx, &p, query, userID.String(), projectID.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to find project grant", errx.TypeInternal)
	}
	d := toGrantDomain(p)
	return &d, nil
}

// ListActiveByUser returns the user's live grants joined with their
// projects, skipping inactive projects.
func (r *PostgresGrantRepository) ListActiveByUser(ctx context.Context, userID kernel.UserID) ([]project.GrantView, error) {
	var rows []grantViewPersistence
	query := `
		SELECT
			up.id AS grant_id, up.user_id, up.project_id, up.role, up.is_active AS grant_active,
			up.project_url, up.last_accessed, up.granted_by, up.created_at AS grant_created_at,
			up.updated_at AS grant_updated_at,
			p.custom_id, p.name, p.icon, p.description, p.url, p.is_active AS project_active,
			p.created_at AS project_created_at, p.updated_at AS project_updated_at
		FROM user_projects up
		JOIN projects p ON p.id = up.project_id
		WHERE up.user_id = $1 AND up.is_active = true AND p.is_active = true
		ORDER BY p.name`

	if err := r.db.SelectContext(ctx, &rows, query, userID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list user project grants", errx.TypeInternal)
	}

	out := make([]project.GrantView, len(rows))
	for i, row := range rows {
		out[i] = toGrantView(row)
	}
	return out, nil
}

// ListByProject returns every grant on a project, live or not.
func (r *PostgresGrantRepository) ListByProject(ctx context.Context, projectID kernel.ProjectID) ([]*project.UserProject, error) {
	var rows []grantPersistence
	query := `SELECT * FROM user_projects WHERE project_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, projectID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list project grants", errx.TypeInternal)
	}
	out := make([]*project.UserProject, len(rows))
	for i, p := range rows {
		d := toGrantDomain(p)
		out[i] = &d
	}
	return out, nil
}

// DeactivateAllForUser soft-deactivates every live grant of a user.
func (r *PostgresGrantRepository) DeactivateAllForUser(ctx context.Context, userID kernel.UserID) error {
	query := `UPDATE user_projects SET is_active = false, updated_at = NOW() WHERE user_id = $1 AND is_active = true`
	if _, err := r.db.ExecContext(ctx, query, userID.String()); err != nil {
		return errx.Wrap(err, "failed to deactivate user grants", errx.TypeInternal).
			WithDetail("user_id", userID.String())
	}
	return nil
}

// ReplaceForUser deactivates the user's live grants and inserts the new
// set in a single transaction.
func (r *PostgresGrantRepository) ReplaceForUser(ctx context.Context, userID kernel.UserID, grants []*project.UserProject) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin grant replacement", errx.TypeInternal)
	}
	defer tx.Rollback()

	deactivate := `UPDATE user_projects SET is_active = false, updated_at = NOW() WHERE user_id = $1 AND is_active = true`
	if _, err := tx.ExecContext(ctx, deactivate, userID.String()); err != nil {
		return errx.Wrap(err, "failed to deactivate user grants", errx.TypeInternal).
			WithDetail("user_id", userID.String())
	}

	insert := `
		INSERT INTO user_projects (id, user_id, project_id, role, is_active, project_url, granted_by, created_at, updated_at)
		VALUES (:id, :user_id, :project_id, :role, :is_active, :project_url, :granted_by, :created_at, :updated_at)
		ON CONFLICT (user_id, project_id) DO UPDATE SET
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			project_url = EXCLUDED.project_url,
			granted_by = EXCLUDED.granted_by,
			updated_at = EXCLUDED.updated_at`
	for _, g := range grants {
		if _, err := tx.NamedExecContext(ctx, insert, toGrantPersistence(g)); err != nil {
			return errx.Wrap(err, "failed to insert replacement grant", errx.TypeInternal).
				WithDetail("project_id", g.ProjectID.String())
		}
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit grant replacement", errx.TypeInternal)
	}
	return nil
}

// TouchLastAccessed records project access on a grant.
func (r *PostgresGrantRepository) TouchLastAccessed(ctx context.Context, grantID string) error {
	query := `UPDATE user_projects SET last_accessed = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, grantID); err != nil {
		return errx.Wrap(err, "failed to record project access", errx.TypeInternal)
	}
	return nil
}

// CountActiveByProject counts live grants on a project.
func (r *PostgresGrantRepository) CountActiveByProject(ctx context.Context, projectID kernel.ProjectID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM user_projects WHERE project_id = $1 AND is_active = true`
	if err := r.db.GetContext(ctx, &n, query, projectID.String()); err != nil {
		return 0, errx.Wrap(err, "failed to count project grants", errx.TypeInternal)
	}
	return n, nil
}

type grantPersistence struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	ProjectID    string         `db:"project_id"`
	Role         string         `db:"role"`
	IsActive     bool           `db:"is_active"`
	ProjectURL   sql.NullString `db:"project_url"`
	LastAccessed *time.Time     `db:"last_accessed"`
	GrantedBy    sql.NullString `db:"granted_by"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

type grantViewPersistence struct {
	GrantID        string         `db:"grant_id"`
	UserID         string         `db:"user_id"`
	ProjectID      string         `db:"project_id"`
	Role           string         `db:"role"`
	GrantActive    bool           `db:"grant_active"`
	ProjectURL     sql.NullString `db:"project_url"`
	LastAccessed   *time.Time     `db:"last_accessed"`
	GrantedBy      sql.NullString `db:"granted_by"`
	GrantCreatedAt time.Time      `db:"grant_created_at"`
	GrantUpdatedAt time.Time      `db:"grant_updated_at"`

	CustomID         string         `db:"custom_id"`
	Name             string         `db:"name"`
	Icon             sql.NullString `db:"icon"`
	Description      sql.NullString `db:"description"`
	URL              sql.NullString `db:"url"`
	ProjectActive    bool           `db:"project_active"`
	ProjectCreatedAt time.Time      `db:"project_created_at"`
	ProjectUpdatedAt time.Time      `db:"project_updated_at"`
}

func toGrantPersistence(g *project.UserProject) grantPersistence {
	return grantPersistence{
		ID:           g.ID,
		UserID:       g.UserID.String(),
		ProjectID:    g.ProjectID.String(),
		Role:         string(g.Role),
		IsActive:     g.IsActive,
		ProjectURL:   sql.NullString{String: g.ProjectURL, Valid: g.ProjectURL != ""},
		LastAccessed: g.LastAccessed,
		GrantedBy:    sql.NullString{String: g.GrantedBy.String(), Valid: !g.GrantedBy.IsEmpty()},
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func toGrantDomain(p grantPersistence) project.UserProject {
	return project.UserProject{
		ID:           p.ID,
		UserID:       kernel.UserID(p.UserID),
		ProjectID:    kernel.ProjectID(p.ProjectID),
		Role:         kernel.ProjectRole(p.Role),
		IsActive:     p.IsActive,
		ProjectURL:   p.ProjectURL.String,
		LastAccessed: p.LastAccessed,
		GrantedBy:    kernel.UserID(p.GrantedBy.String),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toGrantView(row grantViewPersistence) project.GrantView {
	return project.GrantView{
		Grant: project.UserProject{
			ID:           row.GrantID,
			UserID:       kernel.UserID(row.UserID),
			ProjectID:    kernel.ProjectID(row.ProjectID),
			Role:         kernel.ProjectRole(row.Role),
			IsActive:     row.GrantActive,
			ProjectURL:   row.ProjectURL.String,
			LastAccessed: row.LastAccessed,
			GrantedBy:    kernel.UserID(row.GrantedBy.String),
			CreatedAt:    row.GrantCreatedAt,
			UpdatedAt:    row.GrantUpdatedAt,
		},
		Project: project.Project{
			ID:          kernel.ProjectID(row.ProjectID),
			CustomID:    row.CustomID,
			Name:        row.Name,
			Icon:        row.Icon.String,
			Description: row.Description.String,
			URL:         row.URL.String,
			IsActive:    row.ProjectActive,
			CreatedAt:   row.ProjectCreatedAt,
			UpdatedAt:   row.ProjectUpdatedAt,
		},
	}
}
