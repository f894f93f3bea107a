package otpinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/otp"
)

// PostgresOTPRepository is the PostgreSQL implementation of otp.Repository.
type PostgresOTPRepository struct {
	db *sqlx.DB
}

// NewPostgresOTPRepository creates a new OTP repository.
func NewPostgresOTPRepository(db *sqlx.DB) otp.Repository {
	return &PostgresOTPRepository{db: db}
}

// Create inserts a new OTP row.
func (r *PostgresOTPRepository) Create(ctx context.Context, o *otp.OTP) error {
	query := `
		INSERT INTO otp_requests (id, email, code, purpose, used, expires_at, created_at)
		VALUES (:id, :email, :code, :purpose, :used, :expires_at, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(o))
	if err != nil {
		return errx.Wrap(err, "failed to create OTP", errx.TypeInternal).
			WithDetail("email", o.Email)
	}
	return nil
}

// DeleteUnused removes all unused codes for an email and purpose.
func (r *PostgresOTPRepository) DeleteUnused(ctx context.Context, email string, purpose otp.Purpose) error {
	query := `DELETE FROM otp_requests WHERE email = $1 AND purpose = $2 AND used = false`
	if _, err := r.db.ExecContext(ctx, query, email, string(purpose)); err != nil {
		return errx.Wrap(err, "failed to delete unused OTPs", errx.TypeInternal).
			WithDetail("email", email)
	}
	return nil
}

// GetUsable returns the matching unused, unexpired code, or nil.
func (r *PostgresOTPRepository) GetUsable(ctx context.Context, email, code string, purpose otp.Purpose) (*otp.OTP, error) {
	var p otpPersistence
	query := `
		SELECT * FROM otp_requests
		WHERE email = $1 AND code = $2 AND purpose = $3 AND used = false AND expires_at > NOW()
		ORDER BY created_at DESC LIMIT 1`

	err := r.db.GetContext(ctx, &p, query, email, code, string(purpose))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to look up OTP", errx.TypeInternal)
	}
	d := toDomain(p)
	return &d, nil
}

// GetLatest returns the newest code for an email and purpose, or nil.
func (r *PostgresOTPRepository) GetLatest(ctx context.Context, email string, purpose otp.Purpose) (*otp.OTP, error) {
	var p otpPersistence
	query := `
		SELECT * FROM otp_requests
		WHERE email = $1 AND purpose = $2
		ORDER BY created_at DESC LIMIT 1`

	err := r.db.GetContext(ctx, &p, query, email, string(purpose))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to look up latest OTP", errx.TypeInternal)
	}
	d := toDomain(p)
	return &d, nil
}

// MarkUsed flags a code as consumed.
func (r *PostgresOTPRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE otp_requests SET used = true WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errx.Wrap(err, "failed to mark OTP used", errx.TypeInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on OTP update", errx.TypeInternal)
	}
	if rows == 0 {
		return otp.ErrInvalidOTP()
	}
	return nil
}

// DeleteExpired removes codes that expired before the given time.
func (r *PostgresOTPRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM otp_requests WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, errx.Wrap(err, "failed to delete expired OTPs", errx.TypeInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "failed to get rows affected on OTP cleanup", errx.TypeInternal)
	}
	return rows, nil
}

type otpPersistence struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Code      string    `db:"code"`
	Purpose   string    `db:"purpose"`
	Used      bool      `db:"used"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func toPersistence(o *otp.OTP) otpPersistence {
	return otpPersistence{
		ID:        o.ID,
		Email:     o.Email,
		Code:      o.Code,
		Purpose:   string(o.Purpose),
		Used:      o.Used,
		ExpiresAt: o.ExpiresAt,
		CreatedAt: o.CreatedAt,
	}
}

func toDomain(p otpPersistence) otp.OTP {
	return otp.OTP{
		ID:        p.ID,
		Email:     p.Email,
		Code:      p.Code,
		Purpose:   otp.Purpose(p.Purpose),
		Used:      p.Used,
		ExpiresAt: p.ExpiresAt,
		CreatedAt: p.CreatedAt,
	}
}
