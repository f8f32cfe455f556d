package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"wapulse/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, a *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByMobile(ctx context.Context, mobile string) (*models.Account, error)
	// FindByEmailOrMobile returns the first account matching either field.
	FindByEmailOrMobile(ctx context.Context, email, mobile string) (*models.Account, error)
	Update(ctx context.Context, a *models.Account) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `
	id, name, email, mobile, password_hash,
	email_verified, mobile_verified, whatsapp_verified,
	company, avatar_url, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, a *models.Account) error {
	const q = `
		INSERT INTO accounts (
			id, name, email, mobile, password_hash,
			email_verified, mobile_verified, whatsapp_verified,
			company, avatar_url, created_at, updated_at
		)
		VALUES (
			:id, :name, :email, :mobile, :password_hash,
			:email_verified, :mobile_verified, :whatsapp_verified,
			:company, :avatar_url, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, q, a); err != nil {
		return fmt.Errorf("insert account: %w", mapErr(err))
	}
	return nil
}

func (r *accountRepository) get(ctx context.Context, where string, args ...any) (*models.Account, error) {
	var a models.Account
	if err := r.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE `+where, args...); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.get(ctx, `email = $1`, email)
}

func (r *accountRepository) GetByMobile(ctx context.Context, mobile string) (*models.Account, error) {
	return r.get(ctx, `mobile = $1`, mobile)
}

func (r *accountRepository) FindByEmailOrMobile(ctx context.Context, email, mobile string) (*models.Account, error) {
	return r.get(ctx, `email = $1 OR mobile = $2 LIMIT 1`, email, mobile)
}

func (r *accountRepository) Update(ctx context.Context, a *models.Account) error {
	const q = `
		UPDATE accounts SET
			name = :name,
			company = :company,
			avatar_url = :avatar_url,
			email_verified = :email_verified,
			mobile_verified = :mobile_verified,
			whatsapp_verified = :whatsapp_verified,
			updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, a)
	if err != nil {
		return fmt.Errorf("update account: %w", mapErr(err))
	}
	return expectAffected(res)
}

func (r *accountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `UPDATE accounts SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, q, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectAffected(res)
}
