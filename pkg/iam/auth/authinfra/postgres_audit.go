package authinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/kernel"
)

// PostgresAuditRepository stores authentication and access events in the
// audit_logs table.
type PostgresAuditRepository struct {
	db *sqlx.DB
}

// NewPostgresAuditRepository creates a new audit repository.
func NewPostgresAuditRepository(db *sqlx.DB) auth.AuditRepository {
	return &PostgresAuditRepository{db: db}
}

// Record inserts one audit row.
func (r *PostgresAuditRepository) Record(ctx context.Context, entry auth.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, project_id, success, ip, user_agent, detail, created_at)
		VALUES (:id, :user_id, :action, :project_id, :success, :ip, :user_agent, :detail, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, toAuditPersistence(entry)); err != nil {
		return errx.Wrap(err, "failed to record audit entry", errx.TypeInternal).
			WithDetail("action", entry.Action)
	}
	return nil
}

// ListByUser returns a user's newest audit entries.
func (r *PostgresAuditRepository) ListByUser(ctx context.Context, userID kernel.UserID, limit int) ([]auth.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []auditPersistence
	query := `SELECT * FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, userID.String(), limit); err != nil {
		return nil, errx.Wrap(err, "failed to list audit entries", errx.TypeInternal)
	}

	out := make([]auth.AuditEntry, len(rows))
	for i, p := range rows {
		out[i] = toAuditDomain(p)
	}
	return out, nil
}

type auditPersistence struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Action    string         `db:"action"`
	ProjectID sql.NullString `db:"project_id"`
	Success   bool           `db:"success"`
	IP        sql.NullString `db:"ip"`
	UserAgent sql.NullString `db:"user_agent"`
	Detail    sql.NullString `db:"detail"`
	CreatedAt time.Time      `db:"created_at"`
}

func toAuditPersistence(e auth.AuditEntry) auditPersistence {
	p := auditPersistence{
		ID:        e.ID,
		UserID:    e.UserID.String(),
		Action:    e.Action,
		Success:   e.Success,
		IP:        sql.NullString{String: e.IP, Valid: e.IP != ""},
		UserAgent: sql.NullString{String: e.UserAgent, Valid: e.UserAgent != ""},
		Detail:    sql.NullString{String: e.Detail, Valid: e.Detail != ""},
		CreatedAt: e.CreatedAt,
	}
	if e.ProjectID != nil {
		p.ProjectID = sql.NullString{String: e.ProjectID.String(), Valid: true}
	}
	return p
}

func toAuditDomain(p auditPersistence) auth.AuditEntry {
	e := auth.AuditEntry{
		ID:        p.ID,
		UserID:    kernel.UserID(p.UserID),
		Action:    p.Action,
		Success:   p.Success,
		IP:        p.IP.String,
		UserAgent: p.UserAgent.String,
		Detail:    p.Detail.String,
		CreatedAt: p.CreatedAt,
	}
	if p.ProjectID.Valid {
		id := kernel.ProjectID(p.ProjectID.String)
		e.ProjectID = &id
	}
	return e
}
