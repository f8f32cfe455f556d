package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"wapulse/internal/metrics"
	"wapulse/internal/models"
	"wapulse/internal/repositories"
	"wapulse/internal/utils"
)

const (
	resetTokenTTL     = 15 * time.Minute
	minPasswordLength = 8
)

type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Reset tokens are stored as an unsalted SHA-256 digest so the record can be
// found from the raw token alone. Passwords and OTP codes keep bcrypt.
type passwordResetService struct {
	accounts repositories.AccountRepository
	codes    repositories.OTPRepository
	emails   EmailService
	auth     AuthService
	baseURL  string
	now      func() time.Time
}

func NewPasswordResetService(
	accounts repositories.AccountRepository,
	codes repositories.OTPRepository,
	emails EmailService,
	auth AuthService,
	publicBaseURL string,
) PasswordResetService {
	return &passwordResetService{
		accounts: accounts,
		codes:    codes,
		emails:   emails,
		auth:     auth,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return validationf("email is required")
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: no account with this email", ErrNotFound)
		}
		return err
	}

	token, err := utils.NewToken(32)
	if err != nil {
		return err
	}
	if err := s.codes.DeleteFor(ctx, models.PurposePasswordReset, email); err != nil {
		return fmt.Errorf("clear previous reset tokens: %w", err)
	}
	now := s.now()
	rec := &models.OneTimeCode{
		ID:         uuid.NewString(),
		Identifier: email,
		Purpose:    models.PurposePasswordReset,
		CodeHash:   utils.Digest(token),
		Method:     models.MethodEmail,
		ExpiresAt:  now.Add(resetTokenTTL),
		CreatedAt:  now,
	}
	if err := s.codes.Create(ctx, rec); err != nil {
		return err
	}
	metrics.OTPIssued.WithLabelValues(string(models.PurposePasswordReset)).Inc()

	link := s.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.emails.SendPasswordResetEmail(ctx, acct.Email, link); err != nil {
		metrics.DeliveryFailures.WithLabelValues("email").Inc()
		slog.Warn("[password-reset] email delivery failed", "account_id", acct.ID, "err", err)
	}
	return nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return validationf("token and password are required")
	}
	if len(newPassword) < minPasswordLength {
		return validationf("password must be at least %d characters", minPasswordLength)
	}

	rec, err := s.codes.FindByHash(ctx, models.PurposePasswordReset, utils.Digest(token))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return err
	}
	if rec.Expired(s.now()) {
		return ErrInvalidOrExpired
	}

	acct, err := s.accounts.GetByEmail(ctx, rec.Identifier)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return err
	}
	hash, err := s.auth.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return mapRepoErr(err)
	}
	if err := s.codes.Delete(ctx, rec.ID); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	slog.Info("[password-reset] password updated", "account_id", acct.ID)
	return nil
}
