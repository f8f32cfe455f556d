package models

import "time"

type Plan struct {
	ID                  string    `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	Description         string    `db:"description" json:"description"`
	PriceCents          int64     `db:"price_cents" json:"price_cents"`
	Currency            string    `db:"currency" json:"currency"`
	DurationDays        int       `db:"duration_days" json:"duration_days"`
	ContactLimit        int       `db:"contact_limit" json:"contact_limit"` // 0 = unlimited
	MonthlyMessageLimit int       `db:"monthly_message_limit" json:"monthly_message_limit"`
	IsActive            bool      `db:"is_active" json:"is_active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
)

type Subscription struct {
	ID        string             `db:"id" json:"id"`
	AccountID string             `db:"account_id" json:"account_id"`
	PlanID    string             `db:"plan_id" json:"plan_id"`
	Status    SubscriptionStatus `db:"status" json:"status"`
	StartDate time.Time          `db:"start_date" json:"start_date"`
	EndDate   time.Time          `db:"end_date" json:"end_date"`
	PaymentID *string            `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "CREATED"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

type Payment struct {
	ID               string        `db:"id" json:"id"`
	AccountID        string        `db:"account_id" json:"account_id"`
	PlanID           string        `db:"plan_id" json:"plan_id"`
	OrderID          string        `db:"order_id" json:"order_id"`
	GatewayPaymentID *string       `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	AmountCents      int64         `db:"amount_cents" json:"amount_cents"`
	Currency         string        `db:"currency" json:"currency"`
	Status           PaymentStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	PaidAt           *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
}
