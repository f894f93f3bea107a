package projectinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/kernel"
)

// PostgresProjectRepository is the PostgreSQL implementation of
// project.Repository.
type PostgresProjectRepository struct {
	db *sqlx.DB
}

// NewPostgresProjectRepository creates a new project repository.
func NewPostgresProjectRepository(db *sqlx.DB) project.Repository {
	return &PostgresProjectRepository{db: db}
}

// Create inserts a new project.
func (r *PostgresProjectRepository) Create(ctx context.Context, p *project.Project) error {
	query := `
		INSERT INTO projects (id, custom_id, name, icon, description, url, is_active, created_at, updated_at)
		VALUES (:id, :custom_id, :name, :icon, :description, :url, :is_active, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, toProjectPersistence(p))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return project.ErrDuplicateProject().WithDetail("custom_id", p.CustomID)
		}
		return errx.Wrap(err, "failed to create project", errx.TypeInternal).
			WithDetail("custom_id", p.CustomID)
	}
	return nil
}

// GetByID fetches a project by its internal ID.
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id kernel.ProjectID) (*project.Project, error) {
	var p projectPersistence
	query := `SELECT * FROM projects WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, project.ErrProjectNotFound()
		}
		return nil, errx.Wrap(err, "failed to find project by ID", errx.TypeInternal)
	}
	d := toProjectDomain(p)
	return &d, nil
}

// GetByCustomID fetches a project by its human-chosen identifier.
func (r *PostgresProjectRepository) GetByCustomID(ctx context.Context, customID string) (*project.Project, error) {
	var p projectPersistence
	query := `SELECT * FROM projects WHERE custom_id = $1`
	if err := r.db.GetContext(ctx, &p, query, customID); err != nil {
		if err == sql.ErrNoRows {
			return nil, project.ErrProjectNotFound().WithDetail("custom_id", customID)
		}
		return nil, errx.Wrap(err, "failed to find project by custom ID", errx.TypeInternal)
	}
	d := toProjectDomain(p)
	return &d, nil
}

// List returns all projects, newest first.
func (r *PostgresProjectRepository) List(ctx context.Context) ([]*project.Project, error) {
	var rows []projectPersistence
	query := `SELECT * FROM projects ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errx.Wrap(err, "failed to list projects", errx.TypeInternal)
	}
	out := make([]*project.Project, len(rows))
	for i, p := range rows {
		d := toProjectDomain(p)
		out[i] = &d
	}
	return out, nil
}

// Update rewrites the mutable fields of a project.
func (r *PostgresProjectRepository) Update(ctx context.Context, p *project.Project) error {
	query := `
		UPDATE projects SET
			name = :name,
			icon = :icon,
			description = :description,
			url = :url,
			is_active = :is_active,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, toProjectPersistence(p))
	if err != nil {
		return errx.Wrap(err, "failed to update project", errx.TypeInternal).
			WithDetail("project_id", p.ID.String())
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on project update", errx.TypeInternal)
	}
	if rows == 0 {
		return project.ErrProjectNotFound()
	}
	return nil
}

// Delete removes the project and its grants in one transaction.
func (r *PostgresProjectRepository) Delete(ctx context.Context, id kernel.ProjectID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin project delete", errx.TypeInternal)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_projects WHERE project_id = $1`, id.String()); err != nil {
		return errx.Wrap(err, "failed to delete project grants", errx.TypeInternal)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM audit_logs WHERE project_id = $1`, id.String()); err != nil {
		return errx.Wrap(err, "failed to delete project audit rows", errx.TypeInternal)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete project", errx.TypeInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on project delete", errx.TypeInternal)
	}
	if rows == 0 {
		return project.ErrProjectNotFound()
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit project delete", errx.TypeInternal)
	}
	return nil
}

// Count returns the total number of projects.
func (r *PostgresProjectRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM projects`); err != nil {
		return 0, errx.Wrap(err, "failed to count projects", errx.TypeInternal)
	}
	return n, nil
}

type projectPersistence struct {
	ID          string         `db:"id"`
	CustomID    string         `db:"custom_id"`
	Name        string         `db:"name"`
	Icon        sql.NullString `db:"icon"`
	Description sql.NullString `db:"description"`
	URL         sql.NullString `db:"url"`
	IsActive    bool           `db:"is_active"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toProjectPersistence(p *project.Project) projectPersistence {
	return projectPersistence{
		ID:          p.ID.String(),
		CustomID:    p.CustomID,
		Name:        p.Name,
		Icon:        sql.NullString{String: p.Icon, Valid: p.Icon != ""},
		Description: sql.NullString{String: p.Description, Valid: p.Description != ""},
		URL:         sql.NullString{String: p.URL, Valid: p.URL != ""},
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProjectDomain(p projectPersistence) project.Project {
	return project.Project{
		ID:          kernel.ProjectID(p.ID),
		CustomID:    p.CustomID,
		Name:        p.Name,
		Icon:        p.Icon.String,
		Description: p.Description.String,
		URL:         p.URL.String,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
