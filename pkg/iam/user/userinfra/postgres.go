package userinfra

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
)

// PostgresUserRepository is the PostgreSQL implementation of
// user.Repository.
type PostgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository creates a new user repository.
func NewPostgresUserRepository(db *sqlx.DB) user.Repository {
	return &PostgresUserRepository{db: db}
}

const insertUserQuery = `
	INSERT INTO users (
		id, email, password_hash, first_name, last_name, phone,
		company, company_address, company_phone,
		role, custom_role, is_active, is_suspended, suspended_reason,
		suspended_at, suspended_by, sub_user_limit, created_by,
		last_login_at, created_at, updated_at
	) VALUES (
		:id, :email, :password_hash, :first_name, :last_name, :phone,
		:company, :company_address, :company_phone,
		:role, :custom_role, :is_active, :is_suspended, :suspended_reason,
		:suspended_at, :suspended_by, :sub_user_limit, :created_by,
		:last_login_at, :created_at, :updated_at
	)`

// mapCreateError translates the unique violations a user insert can hit.
// The partial unique index on role catches a concurrent second
// SUPER_ADMIN insert.
func mapCreateError(err error, email string) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
		if pqErr.Constraint == "users_single_super_admin" {
			return user.ErrSuperAdminExists()
		}
		return user.ErrDuplicateEmail().WithDetail("email", email)
	}
	return errx.Wrap(err, "failed to create user", errx.TypeInternal).
		WithDetail("email", email)
}

// Create inserts a new user.
func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	if _, err := r.db.NamedExecContext(ctx, insertUserQuery, toPersistence(u)); err != nil {
		return mapCreateError(err, u.Email)
	}
	return nil
}

// CreateWithGrants inserts the user and their initial project grants in
// one transaction.
func (r *PostgresUserRepository) CreateWithGrants(ctx context.Context, u *user.User, grants []*project.UserProject) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin user creation", errx.TypeInternal)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertUserQuery, toPersistence(u)); err != nil {
		return mapCreateError(err, u.Email)
	}

	insertGrant := `
		INSERT INTO user_projects (id, user_id, project_id, role, is_active, project_url, granted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, g := range grants {
		_, err := tx.ExecContext(ctx, insertGrant,
			g.ID, g.UserID.String(), g.ProjectID.String(), string(g.Role), g.IsActive,
			sql.NullString{String: g.ProjectURL, Valid: g.ProjectURL != ""},
			sql.NullString{String: g.GrantedBy.String(), Valid: !g.GrantedBy.IsEmpty()},
			g.CreatedAt, g.UpdatedAt)
		if err != nil {
			return errx.Wrap(err, "failed to insert initial grant", errx.TypeInternal).
				WithDetail("project_id", g.ProjectID.String())
		}
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit user creation", errx.TypeInternal)
	}
	return nil
}

// GetByID fetches a user by ID.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	var p userPersistence
	query := `SELECT * FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by ID", errx.TypeInternal)
	}
	d := toDomain(p)
	return &d, nil
}

// GetByEmail fetches a user by normalized email.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var p userPersistence
	query := `SELECT * FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &p, query, user.NormalizeEmail(email)); err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by email", errx.TypeInternal)
	}
	d := toDomain(p)
	return &d, nil
}

// List returns users matching the filter, newest first.
func (r *PostgresUserRepository) List(ctx context.Context, filter user.ListFilter) ([]*user.User, error) {
	query := `SELECT * FROM users WHERE 1=1`
	args := []interface{}{}

	if filter.Role != "" {
		args = append(args, string(filter.Role))
		query += ` AND role = $` + strconv.Itoa(len(args))
	}
	if !filter.CreatedBy.IsEmpty() {
		args = append(args, filter.CreatedBy.String())
		query += ` AND created_by = $` + strconv.Itoa(len(args))
	}
	if !filter.IncludeSuspended {
		query += ` AND is_suspended = false`
	}
	query += ` ORDER BY created_at DESC`

	var rows []userPersistence
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errx.Wrap(err, "failed to list users", errx.TypeInternal)
	}
	out := make([]*user.User, len(rows))
	for i, p := range rows {
		d := toDomain(p)
		out[i] = &d
	}
	return out, nil
}

// Update rewrites the mutable fields of a user.
func (r *PostgresUserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users SET
			email = :email,
			password_hash = :password_hash,
			first_name = :first_name,
			last_name = :last_name,
			phone = :phone,
			company = :company,
			company_address = :company_address,
			company_phone = :company_phone,
			custom_role = :custom_role,
			is_active = :is_active,
			is_suspended = :is_suspended,
			suspended_reason = :suspended_reason,
			suspended_at = :suspended_at,
			suspended_by = :suspended_by,
			sub_user_limit = :sub_user_limit,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, toPersistence(u))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return user.ErrDuplicateEmail().WithDetail("email", u.Email)
		}
		return errx.Wrap(err, "failed to update user", errx.TypeInternal).
			WithDetail("user_id", u.ID.String())
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on user update", errx.TypeInternal)
	}
	if rows == 0 {
		return user.ErrUserNotFound()
	}
	return nil
}

// DeleteCascade removes the user and all dependent rows in one
// transaction. For admins the cascade first runs over each owned sub
// user.
func (r *PostgresUserRepository) DeleteCascade(ctx context.Context, id kernel.UserID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin user delete", errx.TypeInternal)
	}
	defer tx.Rollback()

	var target userPersistence
	if err := tx.GetContext(ctx, &target, `SELECT * FROM users WHERE id = $1`, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return user.ErrUserNotFound()
		}
		return errx.Wrap(err, "failed to load user for delete", errx.TypeInternal)
	}

	ids := []string{id.String()}
	if target.Role == string(kernel.RoleAdmin) {
		var subIDs []string
		if err := tx.SelectContext(ctx, &subIDs, `SELECT id FROM users WHERE created_by = $1`, id.String()); err != nil {
			return errx.Wrap(err, "failed to list sub users for delete", errx.TypeInternal)
		}
		ids = append(ids, subIDs...)
	}

	dependents := []string{
		`DELETE FROM user_projects WHERE user_id = ANY($1)`,
		`DELETE FROM refresh_tokens WHERE user_id = ANY($1)`,
		`DELETE FROM otp_requests WHERE email IN (SELECT email FROM users WHERE id = ANY($1))`,
		`DELETE FROM audit_logs WHERE user_id = ANY($1)`,
	}
	for _, q := range dependents {
		if _, err := tx.ExecContext(ctx, q, pq.Array(ids)); err != nil {
			return errx.Wrap(err, "failed to delete dependent rows", errx.TypeInternal)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errx.Wrap(err, "failed to delete user", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit user delete", errx.TypeInternal)
	}
	return nil
}

// SuperAdminExists reports whether a SUPER_ADMIN account exists.
func (r *PostgresUserRepository) SuperAdminExists(ctx context.Context) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE role = $1)`
	if err := r.db.GetContext(ctx, &exists, query, string(kernel.RoleSuperAdmin)); err != nil {
		return false, errx.Wrap(err, "failed to check super admin existence", errx.TypeInternal)
	}
	return exists, nil
}

// CountSubUsers counts the sub users owned by an admin.
func (r *PostgresUserRepository) CountSubUsers(ctx context.Context, adminID kernel.UserID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM users WHERE created_by = $1 AND role = $2`
	if err := r.db.GetContext(ctx, &n, query, adminID.String(), string(kernel.RoleSubUser)); err != nil {
		return 0, errx.Wrap(err, "failed to count sub users", errx.TypeInternal)
	}
	return n, nil
}

// CountByRole counts accounts holding a system role.
func (r *PostgresUserRepository) CountByRole(ctx context.Context, role kernel.SystemRole) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM users WHERE role = $1`
	if err := r.db.GetContext(ctx, &n, query, string(role)); err != nil {
		return 0, errx.Wrap(err, "failed to count users by role", errx.TypeInternal)
	}
	return n, nil
}

// UpdateLastLogin stamps the last successful login time.
func (r *PostgresUserRepository) UpdateLastLogin(ctx context.Context, id kernel.UserID) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return errx.Wrap(err, "failed to update last login", errx.TypeInternal)
	}
	return nil
}

type userPersistence struct {
	ID              string         `db:"id"`
	Email           string         `db:"email"`
	PasswordHash    string         `db:"password_hash"`
	FirstName       string         `db:"first_name"`
	LastName        string         `db:"last_name"`
	Phone           sql.NullString `db:"phone"`
	Company         sql.NullString `db:"company"`
	CompanyAddress  sql.NullString `db:"company_address"`
	CompanyPhone    sql.NullString `db:"company_phone"`
	Role            string         `db:"role"`
	CustomRole      sql.NullString `db:"custom_role"`
	IsActive        bool           `db:"is_active"`
	IsSuspended     bool           `db:"is_suspended"`
	SuspendedReason sql.NullString `db:"suspended_reason"`
	SuspendedAt     *time.Time     `db:"suspended_at"`
	SuspendedBy     sql.NullString `db:"suspended_by"`
	SubUserLimit    int            `db:"sub_user_limit"`
	CreatedBy       sql.NullString `db:"created_by"`
	LastLoginAt     *time.Time     `db:"last_login_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func toPersistence(u *user.User) userPersistence {
	p := userPersistence{
		ID:              u.ID.String(),
		Email:           u.Email,
		PasswordHash:    u.PasswordHash,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Phone:           sql.NullString{String: u.Phone, Valid: u.Phone != ""},
		Company:         sql.NullString{String: u.Company, Valid: u.Company != ""},
		CompanyAddress:  sql.NullString{String: u.CompanyAddress, Valid: u.CompanyAddress != ""},
		CompanyPhone:    sql.NullString{String: u.CompanyPhone, Valid: u.CompanyPhone != ""},
		Role:            string(u.Role),
		CustomRole:      sql.NullString{String: u.CustomRole, Valid: u.CustomRole != ""},
		IsActive:        u.IsActive,
		IsSuspended:     u.IsSuspended,
		SuspendedReason: sql.NullString{String: u.SuspendedReason, Valid: u.SuspendedReason != ""},
		SuspendedAt:     u.SuspendedAt,
		SubUserLimit:    u.SubUserLimit,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	if u.SuspendedBy != nil {
		p.SuspendedBy = sql.NullString{String: u.SuspendedBy.String(), Valid: true}
	}
	if u.CreatedBy != nil {
		p.CreatedBy = sql.NullString{String: u.CreatedBy.String(), Valid: true}
	}
	return p
}

func toDomain(p userPersistence) user.User {
	u := user.User{
		ID:              kernel.UserID(p.ID),
		Email:           p.Email,
		PasswordHash:    p.PasswordHash,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Phone:           p.Phone.String,
		Company:         p.Company.String,
		CompanyAddress:  p.CompanyAddress.String,
		CompanyPhone:    p.CompanyPhone.String,
		Role:            kernel.SystemRole(p.Role),
		CustomRole:      p.CustomRole.String,
		IsActive:        p.IsActive,
		IsSuspended:     p.IsSuspended,
		SuspendedReason: p.SuspendedReason.String,
		SuspendedAt:     p.SuspendedAt,
		SubUserLimit:    p.SubUserLimit,
		LastLoginAt:     p.LastLoginAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.SuspendedBy.Valid {
		id := kernel.UserID(p.SuspendedBy.String)
		u.SuspendedBy = &id
	}
	if p.CreatedBy.Valid {
		id := kernel.UserID(p.CreatedBy.String)
		u.CreatedBy = &id
	}
	return u
}
