package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"wapulse/internal/models"
)

type PlanRepository interface {
	ListActive(ctx context.Context) ([]*models.Plan, error)
	GetByID(ctx context.Context, id string) (*models.Plan, error)
	// Upsert inserts or refreshes a plan keyed by name.
	Upsert(ctx context.Context, p *models.Plan) error
}

type SubscriptionRepository interface {
	Create(ctx context.Context, s *models.Subscription) error
	// GetActive returns the ACTIVE subscription with the latest end date
	// strictly after now.
	GetActive(ctx context.Context, accountID string, now time.Time) (*models.Subscription, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	// MarkPaid and MarkFailed leave a PAID payment untouched and report
	// ErrNotFound, so only one caller can settle an order.
	MarkPaid(ctx context.Context, id, gatewayPaymentID string, paidAt time.Time) error
	MarkFailed(ctx context.Context, id string) error
}

type planRepository struct{ db *sqlx.DB }

func NewPlanRepository(db *sqlx.DB) PlanRepository { return &planRepository{db: db} }

const planColumns = `
	id, name, description, price_cents, currency, duration_days,
	contact_limit, monthly_message_limit, is_active, created_at`

func (r *planRepository) ListActive(ctx context.Context) ([]*models.Plan, error) {
	var out []*models.Plan
	q := `SELECT ` + planColumns + ` FROM plans WHERE is_active ORDER BY price_cents ASC`
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *planRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	var p models.Plan
	if err := r.db.GetContext(ctx, &p, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *planRepository) Upsert(ctx context.Context, p *models.Plan) error {
	const q = `
		INSERT INTO plans (
			id, name, description, price_cents, currency, duration_days,
			contact_limit, monthly_message_limit, is_active, created_at
		)
		VALUES (
			:id, :name, :description, :price_cents, :currency, :duration_days,
			:contact_limit, :monthly_message_limit, :is_active, :created_at
		)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			duration_days = EXCLUDED.duration_days,
			contact_limit = EXCLUDED.contact_limit,
			monthly_message_limit = EXCLUDED.monthly_message_limit,
			is_active = EXCLUDED.is_active`
	if _, err := r.db.NamedExecContext(ctx, q, p); err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

type subscriptionRepository struct{ db *sqlx.DB }

func NewSubscriptionRepository(db *sqlx.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, s *models.Subscription) error {
	const q = `
		INSERT INTO subscriptions (id, account_id, plan_id, status, start_date, end_date, payment_id, created_at)
		VALUES (:id, :account_id, :plan_id, :status, :start_date, :end_date, :payment_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, s); err != nil {
		return fmt.Errorf("insert subscription: %w", mapErr(err))
	}
	return nil
}

func (r *subscriptionRepository) GetActive(ctx context.Context, accountID string, now time.Time) (*models.Subscription, error) {
	const q = `
		SELECT id, account_id, plan_id, status, start_date, end_date, payment_id, created_at
		FROM subscriptions
		WHERE account_id = $1 AND status = $2 AND end_date > $3
		ORDER BY end_date DESC
		LIMIT 1`
	var s models.Subscription
	if err := r.db.GetContext(ctx, &s, q, accountID, models.SubscriptionActive, now); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

type paymentRepository struct{ db *sqlx.DB }

func NewPaymentRepository(db *sqlx.DB) PaymentRepository { return &paymentRepository{db: db} }

const paymentColumns = `
	id, account_id, plan_id, order_id, gateway_payment_id,
	amount_cents, currency, status, created_at, paid_at`

func (r *paymentRepository) Create(ctx context.Context, p *models.Payment) error {
	const q = `
		INSERT INTO payments (
			id, account_id, plan_id, order_id, gateway_payment_id,
			amount_cents, currency, status, created_at, paid_at
		)
		VALUES (
			:id, :account_id, :plan_id, :order_id, :gateway_payment_id,
			:amount_cents, :currency, :status, :created_at, :paid_at
		)`
	if _, err := r.db.NamedExecContext(ctx, q, p); err != nil {
		return fmt.Errorf("insert payment: %w", mapErr(err))
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *paymentRepository) MarkPaid(ctx context.Context, id, gatewayPaymentID string, paidAt time.Time) error {
	const q = `
		UPDATE payments SET status = $1, gateway_payment_id = $2, paid_at = $3
		WHERE id = $4 AND status <> $1`
	res, err := r.db.ExecContext(ctx, q, models.PaymentPaid, gatewayPaymentID, paidAt, id)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	return expectAffected(res)
}

func (r *paymentRepository) MarkFailed(ctx context.Context, id string) error {
	const q = `UPDATE payments SET status = $1 WHERE id = $2 AND status <> $3`
	res, err := r.db.ExecContext(ctx, q, models.PaymentFailed, id, models.PaymentPaid)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
