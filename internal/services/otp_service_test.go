package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wapulse/internal/authz"
	"wapulse/internal/models"
)

type otpFixture struct {
	svc        *otpService
	clock      *clock
	accounts   *memAccounts
	codes      *memCodes
	workspaces *memWorkspaces
	emails     *recordingEmails
	sms        *recordingSMS
	ops        *recordingOps
	auth       *authService
}

func newOTPFixture(accounts ...*models.Account) *otpFixture {
	f := &otpFixture{
		clock:      &clock{t: testNow},
		accounts:   newMemAccounts(accounts...),
		codes:      newMemCodes(),
		workspaces: newMemWorkspaces(),
		emails:     &recordingEmails{},
		sms:        &recordingSMS{},
		ops:        &recordingOps{},
	}
	f.auth = newTestAuth(f.clock)
	ws := NewWorkspaceService(f.workspaces, f.accounts, &memRoles{}, f.emails)
	f.svc = &otpService{
		accounts:   f.accounts,
		codes:      f.codes,
		workspaces: ws,
		auth:       f.auth,
		emails:     f.emails,
		sms:        f.sms,
		ops:        f.ops,
		ttl:        defaultOTPTTL,
		now:        f.clock.now,
	}
	return f
}

var adaSignup = SignupInput{
	Name:     "Ada",
	Email:    " Ada@Example.com ",
	Mobile:   "+91 98765 43210",
	Password: "correct-horse",
}

func TestInitiateSignupIssuesLinkedCodes(t *testing.T) {
	f := newOTPFixture()
	require.NoError(t, f.svc.InitiateSignup(context.Background(), adaSignup))

	codes := f.codes.all(models.PurposeSignup)
	require.Len(t, codes, 2)
	require.NotNil(t, codes[0].PendingRegistrationID)
	require.NotNil(t, codes[1].PendingRegistrationID)
	assert.Equal(t, *codes[0].PendingRegistrationID, *codes[1].PendingRegistrationID)
	assert.Equal(t, "ada@example.com", codes[0].Identifier)
	assert.Equal(t, models.MethodEmail, codes[0].Method)
	assert.Equal(t, "+919876543210", codes[1].Identifier)
	assert.Equal(t, models.MethodSMS, codes[1].Method)
	assert.Equal(t, testNow.Add(defaultOTPTTL), codes[0].ExpiresAt)

	pending, err := f.codes.GetPending(context.Background(), *codes[0].PendingRegistrationID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", pending.Name)
	assert.True(t, f.auth.Compare(pending.PasswordHash, adaSignup.Password))

	assert.Len(t, f.emails.lastCode(), otpDigits)
	assert.Len(t, f.sms.lastCode(), otpDigits)
	assert.True(t, f.auth.Compare(codes[1].CodeHash, f.sms.lastCode()))
}

func TestInitiateSignupValidation(t *testing.T) {
	f := newOTPFixture()
	in := adaSignup
	in.Password = "short"
	assert.ErrorIs(t, f.svc.InitiateSignup(context.Background(), in), ErrValidation)

	in = adaSignup
	in.Mobile = ""
	assert.ErrorIs(t, f.svc.InitiateSignup(context.Background(), in), ErrValidation)
}

func TestInitiateSignupRejectsExistingAccount(t *testing.T) {
	f := newOTPFixture(&models.Account{ID: "a1", Email: "ada@example.com", Mobile: "+10000000000"})
	assert.ErrorIs(t, f.svc.InitiateSignup(context.Background(), adaSignup), ErrEmailTaken)

	f = newOTPFixture(&models.Account{ID: "a1", Email: "other@example.com", Mobile: "+919876543210"})
	assert.ErrorIs(t, f.svc.InitiateSignup(context.Background(), adaSignup), ErrMobileTaken)
	assert.Empty(t, f.codes.all(models.PurposeSignup))
}

func TestInitiateSignupReissueReplacesCodes(t *testing.T) {
	f := newOTPFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.InitiateSignup(ctx, adaSignup))
	first := f.codes.all(models.PurposeSignup)
	firstCode := f.sms.lastCode()

	require.NoError(t, f.svc.InitiateSignup(ctx, adaSignup))
	second := f.codes.all(models.PurposeSignup)
	require.Len(t, second, 2)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, *first[0].PendingRegistrationID, *second[0].PendingRegistrationID)

	_, err := f.codes.GetPending(ctx, *first[0].PendingRegistrationID)
	assert.Error(t, err)

	// Random draws can repeat; only a different code proves replacement.
	if firstCode != f.sms.lastCode() {
		_, err = f.svc.VerifySignup(ctx, "+919876543210", firstCode)
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
	res, err := f.svc.VerifySignup(ctx, "+919876543210", f.sms.lastCode())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestVerifySignupCreatesAccountAndWorkspace(t *testing.T) {
	f := newOTPFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.InitiateSignup(ctx, adaSignup))

	res, err := f.svc.VerifySignup(ctx, "+919876543210", f.sms.lastCode())
	require.NoError(t, err)
	require.NotNil(t, res.Account)
	require.NotNil(t, res.Workspace)

	assert.Equal(t, "ada@example.com", res.Account.Email)
	assert.True(t, res.Account.MobileVerified)
	assert.False(t, res.Account.EmailVerified)
	assert.Equal(t, "Ada's Workspace", res.Workspace.Name)
	assert.Equal(t, res.Account.ID, res.Workspace.OwnerID)
	require.Len(t, res.Workspace.Team, 1)
	assert.Equal(t, authz.RoleOwner, res.Workspace.Team[0].Role)

	claims, err := f.auth.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, claims.AccountID)

	assert.Empty(t, f.codes.all(models.PurposeSignup))
	assert.Equal(t, []string{"ada@example.com"}, f.emails.welcome)
	assert.Len(t, f.ops.texts, 1)
}

func TestVerifySignupMobileTakenMeanwhile(t *testing.T) {
	f := newOTPFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.InitiateSignup(ctx, adaSignup))
	require.NoError(t, f.accounts.Create(ctx, &models.Account{ID: "a9", Email: "else@example.com", Mobile: "+919876543210"}))

	_, err := f.svc.VerifySignup(ctx, "+919876543210", f.sms.lastCode())
	assert.ErrorIs(t, err, ErrMobileTaken)

	f = newOTPFixture()
	require.NoError(t, f.svc.InitiateSignup(ctx, adaSignup))
	require.NoError(t, f.accounts.Create(ctx, &models.Account{ID: "a9", Email: "ada@example.com", Mobile: "+10000000000"}))

	_, err = f.svc.VerifySignup(ctx, "+919876543210", f.sms.lastCode())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestVerifySignupWrongCodeKeepsRecord(t *testing.T) {
	f := newOTPFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.InitiateSignup(ctx, adaSignup))

	_, err := f.svc.VerifySignup(ctx, "+919876543210", "not-a-code")
	assert.ErrorIs(t, err, ErrInvalidCode)

	codes := f.codes.all(models.PurposeSignup)
	require.Len(t, codes, 2)
	assert.Equal(t, 1, codes[1].Attempts)

	res, err := f.svc.VerifySignup(ctx, "+919876543210", f.sms.lastCode())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestVerifySignupExpiredCode(t *testing.T) {
	f := newOTPFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.InitiateSignup(ctx, adaSignup))

	f.clock.advance(defaultOTPTTL)
	_, err := f.svc.VerifySignup(ctx, "+919876543210", f.sms.lastCode())
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
	assert.Len(t, f.codes.all(models.PurposeSignup), 2)
}

func TestVerifySignupLocksAfterMaxAttempts(t *testing.T) {
	f := newOTPFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.InitiateSignup(ctx, adaSignup))

	for i := 0; i < maxConfirmAttempts; i++ {
		_, err := f.svc.VerifySignup(ctx, "+919876543210", "000000x")
		require.ErrorIs(t, err, ErrInvalidCode)
	}
	_, err := f.svc.VerifySignup(ctx, "+919876543210", f.sms.lastCode())
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestVerifySignupWithoutPendingRegistration(t *testing.T) {
	f := newOTPFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.InitiateSignup(ctx, adaSignup))
	require.NoError(t, f.codes.DeletePendingFor(ctx, "ada@example.com"))

	_, err := f.svc.VerifySignup(ctx, "+919876543210", f.sms.lastCode())
	assert.ErrorIs(t, err, ErrMissingContext)
}

func TestRequestLoginCodeUnknownMobileIsSilent(t *testing.T) {
	f := newOTPFixture()
	require.NoError(t, f.svc.RequestLoginCode(context.Background(), "+15550000000"))
	assert.Empty(t, f.sms.sent)
	assert.Empty(t, f.codes.all(models.PurposeLogin2FA))
}

func TestLoginCodeRepairsMissingWorkspace(t *testing.T) {
	acct := &models.Account{ID: "acct-1", Name: "Grace", Email: "grace@example.com", Mobile: "+15551234567"}
	f := newOTPFixture(acct)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestLoginCode(ctx, acct.Mobile))
	require.Len(t, f.codes.all(models.PurposeLogin2FA), 1)

	res, err := f.svc.VerifyLoginCode(ctx, acct.Mobile, f.sms.lastCode())
	require.NoError(t, err)
	assert.Equal(t, acct.ID, res.Account.ID)
	assert.Empty(t, f.codes.all(models.PurposeLogin2FA))

	n, err := f.workspaces.CountOwnedBy(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.VerifyLoginCode(ctx, acct.Mobile, f.sms.lastCode())
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestEmailVerification(t *testing.T) {
	acct := &models.Account{ID: "acct-1", Name: "Grace", Email: "grace@example.com", Mobile: "+15551234567"}
	f := newOTPFixture(acct)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestEmailVerification(ctx, acct.ID))
	require.Len(t, f.emails.otps, 1)
	assert.Equal(t, models.PurposeVerifyContact, f.emails.otps[0].purpose)

	got, err := f.svc.ConfirmEmailVerification(ctx, acct.ID, f.emails.lastCode())
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)

	err = f.svc.RequestEmailVerification(ctx, acct.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSessionTokenExpires(t *testing.T) {
	c := &clock{t: testNow}
	auth := newTestAuth(c)
	token, err := auth.IssueToken("acct-1")
	require.NoError(t, err)

	claims, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.True(t, testNow.Add(SessionTTL).Equal(claims.ExpiresAt.Time))

	c.advance(SessionTTL + time.Second)
	_, err = auth.ParseToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := &authService{secret: []byte("other"), cost: auth.cost, now: c.now}
	c.t = testNow
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
