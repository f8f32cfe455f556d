package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"wapulse/internal/models"
)

// OTPRepository stores one-time codes and the pending registrations that
// signup codes point at.
type OTPRepository interface {
	Create(ctx context.Context, c *models.OneTimeCode) error
	// FindLatest returns the newest record for identifier+purpose, expired or not.
	FindLatest(ctx context.Context, identifier string, purpose models.OTPPurpose) (*models.OneTimeCode, error)
	// FindByHash looks a record up by its stored hash. Used for reset tokens.
	FindByHash(ctx context.Context, purpose models.OTPPurpose, codeHash string) (*models.OneTimeCode, error)
	IncrementAttempts(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteFor(ctx context.Context, purpose models.OTPPurpose, identifiers ...string) error

	CreatePending(ctx context.Context, p *models.PendingRegistration) error
	GetPending(ctx context.Context, id string) (*models.PendingRegistration, error)
	// DeletePendingFor removes pending registrations matching any of the
	// identifiers by email or mobile. Their codes go with them.
	DeletePendingFor(ctx context.Context, identifiers ...string) error

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type otpRepository struct {
	db *sqlx.DB
}

func NewOTPRepository(db *sqlx.DB) OTPRepository {
	return &otpRepository{db: db}
}

const otpColumns = `
	id, identifier, purpose, code_hash, method, attempts,
	expires_at, pending_registration_id, created_at`

func (r *otpRepository) Create(ctx context.Context, c *models.OneTimeCode) error {
	const q = `
		INSERT INTO one_time_codes (
			id, identifier, purpose, code_hash, method, attempts,
			expires_at, pending_registration_id, created_at
		)
		VALUES (
			:id, :identifier, :purpose, :code_hash, :method, :attempts,
			:expires_at, :pending_registration_id, :created_at
		)`
	if _, err := r.db.NamedExecContext(ctx, q, c); err != nil {
		return fmt.Errorf("insert one_time_code: %w", mapErr(err))
	}
	return nil
}

func (r *otpRepository) FindLatest(ctx context.Context, identifier string, purpose models.OTPPurpose) (*models.OneTimeCode, error) {
	q := `SELECT ` + otpColumns + `
		FROM one_time_codes
		WHERE identifier = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1`
	var c models.OneTimeCode
	if err := r.db.GetContext(ctx, &c, q, identifier, purpose); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *otpRepository) FindByHash(ctx context.Context, purpose models.OTPPurpose, codeHash string) (*models.OneTimeCode, error) {
	q := `SELECT ` + otpColumns + `
		FROM one_time_codes
		WHERE purpose = $1 AND code_hash = $2
		LIMIT 1`
	var c models.OneTimeCode
	if err := r.db.GetContext(ctx, &c, q, purpose, codeHash); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *otpRepository) IncrementAttempts(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE one_time_codes SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment attempts: %w", err)
	}
	return expectAffected(res)
}

func (r *otpRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE id = $1`, id)
	return err
}

func (r *otpRepository) DeleteFor(ctx context.Context, purpose models.OTPPurpose, identifiers ...string) error {
	const q = `DELETE FROM one_time_codes WHERE purpose = $1 AND identifier = ANY($2)`
	_, err := r.db.ExecContext(ctx, q, purpose, pq.Array(identifiers))
	return err
}

func (r *otpRepository) CreatePending(ctx context.Context, p *models.PendingRegistration) error {
	const q = `
		INSERT INTO pending_registrations (id, name, email, mobile, password_hash, expires_at, created_at)
		VALUES (:id, :name, :email, :mobile, :password_hash, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, p); err != nil {
		return fmt.Errorf("insert pending_registration: %w", mapErr(err))
	}
	return nil
}

func (r *otpRepository) GetPending(ctx context.Context, id string) (*models.PendingRegistration, error) {
	const q = `
		SELECT id, name, email, mobile, password_hash, expires_at, created_at
		FROM pending_registrations
		WHERE id = $1`
	var p models.PendingRegistration
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *otpRepository) DeletePendingFor(ctx context.Context, identifiers ...string) error {
	const q = `DELETE FROM pending_registrations WHERE email = ANY($1) OR mobile = ANY($1)`
	_, err := r.db.ExecContext(ctx, q, pq.Array(identifiers))
	return err
}

func (r *otpRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM one_time_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("reap codes: %w", err)
	}
	codes, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM pending_registrations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("reap pending registrations: %w", err)
	}
	pending, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return codes + pending, nil
}
