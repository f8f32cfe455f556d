package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wapulse/internal/models"
)

type billingFixture struct {
	clock    *clock
	svc      *billingService
	payments *memPayments
	subs     *memSubscriptions
	invoices *stubInvoices
	ops      *recordingOps
}

func newBillingFixture() *billingFixture {
	f := &billingFixture{
		clock:    &clock{t: testNow},
		payments: &memPayments{byID: map[string]*models.Payment{}},
		subs:     &memSubscriptions{},
		invoices: &stubInvoices{},
		ops:      &recordingOps{},
	}
	plans := &memPlans{byID: map[string]*models.Plan{
		"starter": {ID: "starter", Name: "Starter", PriceCents: 99900, Currency: "INR", DurationDays: 30, IsActive: true},
		"legacy":  {ID: "legacy", Name: "Legacy", PriceCents: 49900, Currency: "INR", DurationDays: 30},
	}}
	accounts := newMemAccounts(&models.Account{ID: "a1", Name: "Ada", Email: "ada@example.com", Mobile: "+919876543210"})
	f.svc = &billingService{
		plans:         plans,
		subscriptions: f.subs,
		payments:      f.payments,
		accounts:      accounts,
		gateway:       stubGateway{},
		invoices:      f.invoices,
		ops:           f.ops,
		now:           f.clock.now,
	}
	return f
}

func TestCreateOrder(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, "a1", "starter")
	require.NoError(t, err)
	assert.Equal(t, "order_"+res.PaymentID, res.OrderID)
	assert.Equal(t, "rzp_test_key", res.KeyID)
	assert.Equal(t, int64(99900), res.AmountCents)
	assert.Equal(t, models.PaymentCreated, f.payments.status(res.PaymentID))

	_, err = f.svc.CreateOrder(ctx, "a1", "legacy")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateOrder(ctx, "a1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyPaymentActivatesSubscription(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, "a1", "starter")
	require.NoError(t, err)

	sub, err := f.svc.VerifyPayment(ctx, "a1", order.OrderID, "pay_1", "good")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, testNow, sub.StartDate)
	assert.Equal(t, testNow.AddDate(0, 0, 30), sub.EndDate)
	require.NotNil(t, sub.PaymentID)
	assert.Equal(t, order.PaymentID, *sub.PaymentID)
	assert.Equal(t, models.PaymentPaid, f.payments.status(order.PaymentID))
	require.Len(t, f.ops.texts, 1)
	assert.Contains(t, f.ops.texts[0], "ada@example.com")

	active, plan, err := f.svc.ActiveSubscription(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, active.ID)
	assert.Equal(t, "Starter", plan.Name)

	_, err = f.svc.VerifyPayment(ctx, "a1", order.OrderID, "pay_1", "good")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, f.subs.subs, 1)
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, "a1", "starter")
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, "a1", order.OrderID, "pay_1", "forged")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, models.PaymentFailed, f.payments.status(order.PaymentID))
	assert.Empty(t, f.subs.subs)
	assert.Empty(t, f.ops.texts)
}

func TestVerifyPaymentOtherAccountsOrder(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, "a1", "starter")
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, "a2", order.OrderID, "pay_1", "good")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, models.PaymentCreated, f.payments.status(order.PaymentID))
}

func TestVerifyPaymentSettlesOnce(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, "a1", "starter")
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(ctx, "a1", order.OrderID, "pay_1", "good")
	require.NoError(t, err)

	// A verify that read the order before the first one committed.
	f.payments.stale = true
	_, err = f.svc.VerifyPayment(ctx, "a1", order.OrderID, "pay_1", "good")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, f.subs.subs, 1)
	assert.Len(t, f.ops.texts, 1)

	_, err = f.svc.VerifyPayment(ctx, "a1", order.OrderID, "pay_1", "forged")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	f.payments.stale = false
	assert.Equal(t, models.PaymentPaid, f.payments.status(order.PaymentID))
}

func TestActiveSubscriptionNone(t *testing.T) {
	f := newBillingFixture()
	_, _, err := f.svc.ActiveSubscription(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrNoSubscription)

	f.subs.subs = append(f.subs.subs, &models.Subscription{
		ID: "s-old", AccountID: "a1", PlanID: "starter", Status: models.SubscriptionActive,
		StartDate: testNow.AddDate(0, 0, -40), EndDate: testNow.AddDate(0, 0, -10),
	})
	_, _, err = f.svc.ActiveSubscription(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestInvoiceRequiresPaidPayment(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, "a1", "starter")
	require.NoError(t, err)

	_, _, err = f.svc.Invoice(ctx, "a1", order.PaymentID)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.VerifyPayment(ctx, "a1", order.OrderID, "pay_1", "good")
	require.NoError(t, err)

	out, name, err := f.svc.Invoice(ctx, "a1", order.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.3"), out)
	assert.Regexp(t, `^INV-[0-9A-F]{10}\.pdf$`, name)
	assert.Equal(t, "Ada", f.invoices.last.CustomerName)
	assert.Equal(t, "pay_1", f.invoices.last.PaymentID)
	assert.Equal(t, testNow.AddDate(0, 0, 30), f.invoices.last.PeriodEnd)

	_, _, err = f.svc.Invoice(ctx, "a2", order.PaymentID)
	assert.ErrorIs(t, err, ErrNotFound)
}
