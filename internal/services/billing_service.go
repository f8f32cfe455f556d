package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"wapulse/internal/models"
	"wapulse/internal/pdf"
	"wapulse/internal/repositories"
)

type OrderResult struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	KeyID       string `json:"key_id"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	PlanName    string `json:"plan_name"`
}

type BillingService interface {
	Plans(ctx context.Context) ([]*models.Plan, error)
	CreateOrder(ctx context.Context, accountID, planID string) (*OrderResult, error)
	VerifyPayment(ctx context.Context, accountID, orderID, paymentID, signature string) (*models.Subscription, error)
	// ActiveSubscription returns ErrNoSubscription when nothing is active.
	ActiveSubscription(ctx context.Context, accountID string) (*models.Subscription, *models.Plan, error)
	Invoice(ctx context.Context, accountID, paymentID string) ([]byte, string, error)
	SeedPlans(ctx context.Context) error
}

type billingService struct {
	plans         repositories.PlanRepository
	subscriptions repositories.SubscriptionRepository
	payments      repositories.PaymentRepository
	accounts      repositories.AccountRepository
	gateway       PaymentGateway
	invoices      pdf.Generator
	ops           OpsNotifier
	now           func() time.Time
}

func NewBillingService(
	plans repositories.PlanRepository,
	subscriptions repositories.SubscriptionRepository,
	payments repositories.PaymentRepository,
	accounts repositories.AccountRepository,
	gateway PaymentGateway,
	invoices pdf.Generator,
	ops OpsNotifier,
) BillingService {
	return &billingService{
		plans:         plans,
		subscriptions: subscriptions,
		payments:      payments,
		accounts:      accounts,
		gateway:       gateway,
		invoices:      invoices,
		ops:           ops,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *billingService) Plans(ctx context.Context) ([]*models.Plan, error) {
	return s.plans.ListActive(ctx)
}

func (s *billingService) CreateOrder(ctx context.Context, accountID, planID string) (*OrderResult, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: plan not found", ErrNotFound)
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, validationf("plan is not available")
	}

	paymentID := uuid.NewString()
	orderID, err := s.gateway.CreateOrder(ctx, plan.PriceCents, plan.Currency, paymentID)
	if err != nil {
		return nil, err
	}
	p := &models.Payment{
		ID:          paymentID,
		AccountID:   accountID,
		PlanID:      plan.ID,
		OrderID:     orderID,
		AmountCents: plan.PriceCents,
		Currency:    plan.Currency,
		Status:      models.PaymentCreated,
		CreatedAt:   s.now(),
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("[billing][order] created", "account_id", accountID, "order_id", orderID, "plan", plan.Name)
	return &OrderResult{
		OrderID:     orderID,
		PaymentID:   p.ID,
		KeyID:       s.gateway.KeyID(),
		AmountCents: plan.PriceCents,
		Currency:    plan.Currency,
		PlanName:    plan.Name,
	}, nil
}

func (s *billingService) VerifyPayment(ctx context.Context, accountID, orderID, gatewayPaymentID, signature string) (*models.Subscription, error) {
	p, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: order not found", ErrNotFound)
		}
		return nil, err
	}
	if p.AccountID != accountID {
		return nil, fmt.Errorf("%w: order not found", ErrNotFound)
	}
	if p.Status == models.PaymentPaid {
		return nil, fmt.Errorf("%w: order already paid", ErrConflict)
	}
	if !s.gateway.VerifySignature(orderID, gatewayPaymentID, signature) {
		if err := s.payments.MarkFailed(ctx, p.ID); err != nil {
			slog.Warn("[billing][verify] mark failed", "payment_id", p.ID, "err", err)
		}
		return nil, ErrInvalidSignature
	}

	plan, err := s.plans.GetByID(ctx, p.PlanID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	now := s.now()
	if err := s.payments.MarkPaid(ctx, p.ID, gatewayPaymentID, now); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// settled by a concurrent verify
			return nil, fmt.Errorf("%w: order already paid", ErrConflict)
		}
		return nil, err
	}

	sub := &models.Subscription{
		ID:        uuid.NewString(),
		AccountID: accountID,
		PlanID:    plan.ID,
		Status:    models.SubscriptionActive,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, plan.DurationDays),
		PaymentID: &p.ID,
		CreatedAt: now,
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, err
	}

	email := accountID
	if acct, err := s.accounts.GetByID(ctx, accountID); err == nil {
		email = acct.Email
	}
	s.ops.Notify(paymentAlert(email, plan.Name, p.AmountCents, p.Currency))
	slog.Info("[billing][verify] subscription activated", "account_id", accountID, "subscription_id", sub.ID)
	return sub, nil
}

func (s *billingService) ActiveSubscription(ctx context.Context, accountID string) (*models.Subscription, *models.Plan, error) {
	sub, err := s.subscriptions.GetActive(ctx, accountID, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, ErrNoSubscription
		}
		return nil, nil, err
	}
	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, mapRepoErr(err)
	}
	return sub, plan, nil
}

func (s *billingService) Invoice(ctx context.Context, accountID, paymentID string) ([]byte, string, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil || p.AccountID != accountID {
		if err == nil || errors.Is(err, repositories.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: payment not found", ErrNotFound)
		}
		return nil, "", err
	}
	if p.Status != models.PaymentPaid || p.PaidAt == nil {
		return nil, "", validationf("payment is not paid")
	}
	plan, err := s.plans.GetByID(ctx, p.PlanID)
	if err != nil {
		return nil, "", mapRepoErr(err)
	}
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, "", mapRepoErr(err)
	}

	gatewayID := ""
	if p.GatewayPaymentID != nil {
		gatewayID = *p.GatewayPaymentID
	}
	number := "INV-" + strings.ToUpper(strings.ReplaceAll(p.ID, "-", "")[:10])
	out, err := s.invoices.GenerateInvoice(pdf.InvoiceData{
		Number:        number,
		IssuedAt:      *p.PaidAt,
		CustomerName:  acct.Name,
		CustomerEmail: acct.Email,
		Company:       acct.Company,
		PlanName:      plan.Name,
		PeriodStart:   *p.PaidAt,
		PeriodEnd:     p.PaidAt.AddDate(0, 0, plan.DurationDays),
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		OrderID:       p.OrderID,
		PaymentID:     gatewayID,
	})
	if err != nil {
		return nil, "", err
	}
	return out, number + ".pdf", nil
}

// DefaultPlans is the catalogue written by `migrate --seed`.
var DefaultPlans = []models.Plan{
	{Name: "Starter", Description: "Up to 1,000 contacts", PriceCents: 99900, Currency: "INR", DurationDays: 30, ContactLimit: 1000, MonthlyMessageLimit: 5000},
	{Name: "Growth", Description: "Up to 10,000 contacts", PriceCents: 249900, Currency: "INR", DurationDays: 30, ContactLimit: 10000, MonthlyMessageLimit: 50000},
	{Name: "Scale", Description: "Unlimited contacts", PriceCents: 599900, Currency: "INR", DurationDays: 30, ContactLimit: 0, MonthlyMessageLimit: 0},
}

func (s *billingService) SeedPlans(ctx context.Context) error {
	now := s.now()
	for _, p := range DefaultPlans {
		plan := p
		plan.ID = uuid.NewString()
		plan.IsActive = true
		plan.CreatedAt = now
		if err := s.plans.Upsert(ctx, &plan); err != nil {
			return err
		}
	}
	slog.Info("[billing][seed] plans upserted", "count", len(DefaultPlans))
	return nil
}
