package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"wapulse/internal/metrics"
	"wapulse/internal/models"
	"wapulse/internal/repositories"
	"wapulse/internal/utils"
)

const (
	otpDigits          = 6
	defaultOTPTTL      = 5 * time.Minute
	maxConfirmAttempts = 5
)

// SMSSender is the SMS delivery collaborator. utils.Client satisfies it.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) (*utils.SendSMSResponse, error)
}

type SignupInput struct {
	Name     string
	Email    string
	Mobile   string
	Password string
}

type SessionResult struct {
	Token     string            `json:"token"`
	Account   *models.Account   `json:"account"`
	Workspace *models.Workspace `json:"workspace,omitempty"`
}

type OTPService interface {
	InitiateSignup(ctx context.Context, in SignupInput) error
	VerifySignup(ctx context.Context, mobile, code string) (*SessionResult, error)
	RequestLoginCode(ctx context.Context, mobile string) error
	VerifyLoginCode(ctx context.Context, mobile, code string) (*SessionResult, error)
	RequestEmailVerification(ctx context.Context, accountID string) error
	ConfirmEmailVerification(ctx context.Context, accountID, code string) (*models.Account, error)
}

type otpService struct {
	accounts   repositories.AccountRepository
	codes      repositories.OTPRepository
	workspaces WorkspaceService
	auth       AuthService
	emails     EmailService
	sms        SMSSender
	ops        OpsNotifier
	ttl        time.Duration
	now        func() time.Time
}

func NewOTPService(
	accounts repositories.AccountRepository,
	codes repositories.OTPRepository,
	workspaces WorkspaceService,
	auth AuthService,
	emails EmailService,
	sms SMSSender,
	ops OpsNotifier,
) OTPService {
	return &otpService{
		accounts:   accounts,
		codes:      codes,
		workspaces: workspaces,
		auth:       auth,
		emails:     emails,
		sms:        sms,
		ops:        ops,
		ttl:        defaultOTPTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *otpService) InitiateSignup(ctx context.Context, in SignupInput) error {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	mobile := normalizeMobile(in.Mobile)
	if name == "" || email == "" || mobile == "" || in.Password == "" {
		return validationf("name, email, mobile and password are required")
	}
	if len(in.Password) < minPasswordLength {
		return validationf("password must be at least %d characters", minPasswordLength)
	}

	existing, err := s.accounts.FindByEmailOrMobile(ctx, email, mobile)
	switch {
	case err == nil:
		if existing.Email == email {
			return ErrEmailTaken
		}
		return ErrMobileTaken
	case !errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("check existing account: %w", err)
	}

	emailCode, err := utils.NumericCode(otpDigits)
	if err != nil {
		return err
	}
	mobileCode, err := utils.NumericCode(otpDigits)
	if err != nil {
		return err
	}
	passwordHash, err := s.auth.Hash(in.Password)
	if err != nil {
		return err
	}
	emailHash, err := s.auth.Hash(emailCode)
	if err != nil {
		return err
	}
	mobileHash, err := s.auth.Hash(mobileCode)
	if err != nil {
		return err
	}

	if err := s.codes.DeleteFor(ctx, models.PurposeSignup, email, mobile); err != nil {
		return fmt.Errorf("clear previous signup codes: %w", err)
	}
	if err := s.codes.DeletePendingFor(ctx, email, mobile); err != nil {
		return fmt.Errorf("clear previous pending registrations: %w", err)
	}

	now := s.now()
	expires := now.Add(s.ttl)
	pending := &models.PendingRegistration{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Mobile:       mobile,
		PasswordHash: passwordHash,
		ExpiresAt:    expires,
		CreatedAt:    now,
	}
	if err := s.codes.CreatePending(ctx, pending); err != nil {
		return err
	}

	records := []*models.OneTimeCode{
		{Identifier: email, CodeHash: emailHash, Method: models.MethodEmail},
		{Identifier: mobile, CodeHash: mobileHash, Method: models.MethodSMS},
	}
	for _, rec := range records {
		rec.ID = uuid.NewString()
		rec.Purpose = models.PurposeSignup
		rec.ExpiresAt = expires
		rec.PendingRegistrationID = &pending.ID
		rec.CreatedAt = now
		if err := s.codes.Create(ctx, rec); err != nil {
			return err
		}
	}
	metrics.OTPIssued.WithLabelValues(string(models.PurposeSignup)).Add(2)

	s.deliverEmail(ctx, email, emailCode, models.PurposeSignup)
	s.deliverSMS(ctx, mobile, mobileCode)
	slog.Info("[otp][signup] codes issued", "pending_registration_id", pending.ID)
	return nil
}

func (s *otpService) VerifySignup(ctx context.Context, mobile, code string) (*SessionResult, error) {
	mobile = normalizeMobile(mobile)
	rec, err := s.check(ctx, mobile, models.PurposeSignup, code)
	if err != nil {
		return nil, err
	}
	if rec.PendingRegistrationID == nil {
		slog.Error("[otp][signup] code record without pending registration", "code_id", rec.ID)
		return nil, ErrMissingContext
	}
	pending, err := s.codes.GetPending(ctx, *rec.PendingRegistrationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMissingContext
		}
		return nil, err
	}

	now := s.now()
	acct := &models.Account{
		ID:             uuid.NewString(),
		Name:           pending.Name,
		Email:          pending.Email,
		Mobile:         pending.Mobile,
		PasswordHash:   pending.PasswordHash,
		MobileVerified: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			if strings.Contains(repositories.ConstraintName(err), "mobile") {
				return nil, ErrMobileTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	// Not atomic with account creation; EnsureWorkspace on login repairs a gap.
	ws, err := s.workspaces.Bootstrap(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("bootstrap workspace: %w", err)
	}

	if err := s.codes.DeleteFor(ctx, models.PurposeSignup, pending.Email, pending.Mobile); err != nil {
		slog.Warn("[otp][signup] cleanup codes failed", "account_id", acct.ID, "err", err)
	}
	if err := s.codes.DeletePendingFor(ctx, pending.Email, pending.Mobile); err != nil {
		slog.Warn("[otp][signup] cleanup pending registration failed", "account_id", acct.ID, "err", err)
	}

	token, err := s.auth.IssueToken(acct.ID)
	if err != nil {
		return nil, err
	}

	if err := s.emails.SendWelcomeEmail(ctx, acct.Email, acct.Name); err != nil {
		metrics.DeliveryFailures.WithLabelValues("email").Inc()
		slog.Warn("[otp][signup] welcome email failed", "account_id", acct.ID, "err", err)
	}
	s.ops.Notify(signupAlert(acct.Name, acct.Email))
	slog.Info("[otp][signup] account created", "account_id", acct.ID, "workspace_id", ws.ID)
	return &SessionResult{Token: token, Account: acct, Workspace: ws.Redacted()}, nil
}

func (s *otpService) RequestLoginCode(ctx context.Context, mobile string) error {
	mobile = normalizeMobile(mobile)
	if mobile == "" {
		return validationf("mobile is required")
	}
	if _, err := s.accounts.GetByMobile(ctx, mobile); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			slog.Info("[otp][login] code requested for unknown mobile")
			return nil
		}
		return err
	}
	code, err := s.issue(ctx, mobile, models.PurposeLogin2FA, models.MethodSMS)
	if err != nil {
		return err
	}
	s.deliverSMS(ctx, mobile, code)
	return nil
}

func (s *otpService) VerifyLoginCode(ctx context.Context, mobile, code string) (*SessionResult, error) {
	mobile = normalizeMobile(mobile)
	rec, err := s.check(ctx, mobile, models.PurposeLogin2FA, code)
	if err != nil {
		return nil, err
	}
	acct, err := s.accounts.GetByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidOrExpired
		}
		return nil, err
	}
	if err := s.codes.Delete(ctx, rec.ID); err != nil {
		slog.Warn("[otp][login] delete consumed code failed", "account_id", acct.ID, "err", err)
	}
	if err := s.workspaces.EnsureWorkspace(ctx, acct); err != nil {
		return nil, err
	}
	token, err := s.auth.IssueToken(acct.ID)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Token: token, Account: acct}, nil
}

func (s *otpService) RequestEmailVerification(ctx context.Context, accountID string) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return mapRepoErr(err)
	}
	if acct.EmailVerified {
		return fmt.Errorf("%w: email already verified", ErrConflict)
	}
	code, err := s.issue(ctx, acct.Email, models.PurposeVerifyContact, models.MethodEmail)
	if err != nil {
		return err
	}
	s.deliverEmail(ctx, acct.Email, code, models.PurposeVerifyContact)
	return nil
}

func (s *otpService) ConfirmEmailVerification(ctx context.Context, accountID, code string) (*models.Account, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	rec, err := s.check(ctx, acct.Email, models.PurposeVerifyContact, code)
	if err != nil {
		return nil, err
	}
	acct.EmailVerified = true
	acct.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, mapRepoErr(err)
	}
	if err := s.codes.Delete(ctx, rec.ID); err != nil {
		slog.Warn("[otp][verify-email] delete consumed code failed", "account_id", acct.ID, "err", err)
	}
	return acct, nil
}

// issue replaces any outstanding code for identifier+purpose and returns the
// plaintext of the new one.
func (s *otpService) issue(ctx context.Context, identifier string, purpose models.OTPPurpose, method models.DeliveryMethod) (string, error) {
	code, err := utils.NumericCode(otpDigits)
	if err != nil {
		return "", err
	}
	hash, err := s.auth.Hash(code)
	if err != nil {
		return "", err
	}
	if err := s.codes.DeleteFor(ctx, purpose, identifier); err != nil {
		return "", fmt.Errorf("clear previous codes: %w", err)
	}
	now := s.now()
	rec := &models.OneTimeCode{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Purpose:    purpose,
		CodeHash:   hash,
		Method:     method,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.codes.Create(ctx, rec); err != nil {
		return "", err
	}
	metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()
	return code, nil
}

// check validates code against the newest record for identifier+purpose.
// Failed checks never delete the record.
func (s *otpService) check(ctx context.Context, identifier string, purpose models.OTPPurpose, code string) (*models.OneTimeCode, error) {
	label := string(purpose)
	rec, err := s.codes.FindLatest(ctx, identifier, purpose)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.OTPVerified.WithLabelValues(label, "expired").Inc()
			return nil, ErrInvalidOrExpired
		}
		return nil, err
	}
	if rec.Expired(s.now()) {
		metrics.OTPVerified.WithLabelValues(label, "expired").Inc()
		return nil, ErrInvalidOrExpired
	}
	if rec.Attempts >= maxConfirmAttempts {
		metrics.OTPVerified.WithLabelValues(label, "locked").Inc()
		return nil, ErrTooManyAttempts
	}
	if !s.auth.Compare(rec.CodeHash, strings.TrimSpace(code)) {
		if err := s.codes.IncrementAttempts(ctx, rec.ID); err != nil {
			slog.Warn("[otp] increment attempts failed", "code_id", rec.ID, "err", err)
		}
		metrics.OTPVerified.WithLabelValues(label, "invalid").Inc()
		return nil, ErrInvalidCode
	}
	metrics.OTPVerified.WithLabelValues(label, "ok").Inc()
	return rec, nil
}

func (s *otpService) deliverEmail(ctx context.Context, to, code string, purpose models.OTPPurpose) {
	if err := s.emails.SendOTPEmail(ctx, to, code, purpose); err != nil {
		metrics.DeliveryFailures.WithLabelValues("email").Inc()
		slog.Warn("[otp] email delivery failed", "purpose", purpose, "err", err)
	}
}

func (s *otpService) deliverSMS(ctx context.Context, to, code string) {
	text := fmt.Sprintf("WaPulse code: %s. Valid for %d minutes.", code, int(s.ttl.Minutes()))
	if _, err := s.sms.SendSMS(ctx, to, text); err != nil {
		metrics.DeliveryFailures.WithLabelValues("sms").Inc()
		slog.Warn("[otp] sms delivery failed", "err", err)
	}
}
