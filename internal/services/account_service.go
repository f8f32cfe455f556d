package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"wapulse/internal/models"
	"wapulse/internal/repositories"
)

type ProfileUpdate struct {
	Name      *string
	Company   *string
	AvatarURL *string
}

type AccountService interface {
	Login(ctx context.Context, email, password string) (*SessionResult, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.Account, error)
}

type accountService struct {
	accounts   repositories.AccountRepository
	workspaces WorkspaceService
	auth       AuthService
	now        func() time.Time
}

func NewAccountService(accounts repositories.AccountRepository, workspaces WorkspaceService, auth AuthService) AccountService {
	return &accountService{
		accounts:   accounts,
		workspaces: workspaces,
		auth:       auth,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *accountService) Login(ctx context.Context, email, password string) (*SessionResult, error) {
	acct, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			slog.Info("[auth][login] unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if acct.PasswordHash == "" || !s.auth.Compare(acct.PasswordHash, password) {
		slog.Info("[auth][login] password mismatch", "account_id", acct.ID)
		return nil, ErrInvalidCredentials
	}
	if err := s.workspaces.EnsureWorkspace(ctx, acct); err != nil {
		return nil, err
	}
	token, err := s.auth.IssueToken(acct.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("[auth][login] success", "account_id", acct.ID)
	return &SessionResult{Token: token, Account: acct}, nil
}

func (s *accountService) GetByID(ctx context.Context, id string) (*models.Account, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return acct, nil
}

func (s *accountService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.Account, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, validationf("name cannot be empty")
		}
		acct.Name = name
	}
	if upd.Company != nil {
		acct.Company = strings.TrimSpace(*upd.Company)
	}
	if upd.AvatarURL != nil {
		acct.AvatarURL = strings.TrimSpace(*upd.AvatarURL)
	}
	acct.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, mapRepoErr(err)
	}
	return acct, nil
}
