package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"wapulse/internal/authz"
	"wapulse/internal/models"
	"wapulse/internal/repositories"
)

const defaultTimezone = "UTC"

type TeamMemberView struct {
	models.TeamMember
	Name  string `json:"name"`
	Email string `json:"email"`
	Owner bool   `json:"owner"`
}

type WorkspaceService interface {
	// Bootstrap creates the first workspace of a new account.
	Bootstrap(ctx context.Context, acct *models.Account) (*models.Workspace, error)
	// EnsureWorkspace bootstraps a workspace when the account owns none.
	EnsureWorkspace(ctx context.Context, acct *models.Account) error
	Create(ctx context.Context, ownerID, name, timezone string) (*models.Workspace, error)
	ListForAccount(ctx context.Context, accountID string) ([]*models.Workspace, error)
	// Resolve loads the workspace and the account's role name in it.
	Resolve(ctx context.Context, workspaceID, accountID string) (*models.Workspace, string, error)
	UpdateSettings(ctx context.Context, ws *models.Workspace, name, timezone *string) (*models.Workspace, error)

	ListTeam(ctx context.Context, ws *models.Workspace) ([]TeamMemberView, error)
	AddMember(ctx context.Context, ws *models.Workspace, email, role string) (*models.TeamMember, error)
	UpdateMember(ctx context.Context, ws *models.Workspace, accountID string, role *string, status *models.MemberStatus) (*models.TeamMember, error)
	RemoveMember(ctx context.Context, ws *models.Workspace, accountID string) error

	GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Workspace, error)
	SetWhatsApp(ctx context.Context, workspaceID string, conn models.WhatsAppConnection) error
	ClearWhatsApp(ctx context.Context, workspaceID string) error
}

type workspaceService struct {
	workspaces repositories.WorkspaceRepository
	accounts   repositories.AccountRepository
	roles      repositories.RoleRepository
	emails     EmailService
	now        func() time.Time
}

func NewWorkspaceService(
	workspaces repositories.WorkspaceRepository,
	accounts repositories.AccountRepository,
	roles repositories.RoleRepository,
	emails EmailService,
) WorkspaceService {
	return &workspaceService{
		workspaces: workspaces,
		accounts:   accounts,
		roles:      roles,
		emails:     emails,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func BootstrapName(accountName string) string {
	return fmt.Sprintf("%s's Workspace", strings.TrimSpace(accountName))
}

func (s *workspaceService) Bootstrap(ctx context.Context, acct *models.Account) (*models.Workspace, error) {
	return s.Create(ctx, acct.ID, BootstrapName(acct.Name), defaultTimezone)
}

func (s *workspaceService) EnsureWorkspace(ctx context.Context, acct *models.Account) error {
	n, err := s.workspaces.CountOwnedBy(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("count owned workspaces: %w", err)
	}
	if n > 0 {
		return nil
	}
	ws, err := s.Bootstrap(ctx, acct)
	if err != nil {
		return err
	}
	slog.Warn("[workspace][repair] bootstrapped missing workspace", "account_id", acct.ID, "workspace_id", ws.ID)
	return nil
}

func (s *workspaceService) Create(ctx context.Context, ownerID, name, timezone string) (*models.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name is required")
	}
	if timezone == "" {
		timezone = defaultTimezone
	}
	if !validTimezone(timezone) {
		return nil, validationf("unknown timezone %q", timezone)
	}
	now := s.now()
	ws := &models.Workspace{
		ID:       uuid.NewString(),
		Name:     name,
		Timezone: timezone,
		OwnerID:  ownerID,
		Team: models.TeamMembers{{
			AccountID: ownerID,
			Role:      authz.RoleOwner,
			Status:    models.MemberActive,
			AddedAt:   now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.workspaces.Create(ctx, ws); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

func (s *workspaceService) ListForAccount(ctx context.Context, accountID string) ([]*models.Workspace, error) {
	list, err := s.workspaces.ListForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i, ws := range list {
		list[i] = ws.Redacted()
	}
	return list, nil
}

func (s *workspaceService) Resolve(ctx context.Context, workspaceID, accountID string) (*models.Workspace, string, error) {
	ws, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: workspace not found", ErrNotFound)
		}
		return nil, "", err
	}
	role, ok := ws.RoleOf(accountID, authz.RoleOwner)
	if !ok {
		return nil, "", fmt.Errorf("%w: not a member of this workspace", ErrForbidden)
	}
	return ws, role, nil
}

func (s *workspaceService) UpdateSettings(ctx context.Context, ws *models.Workspace, name, timezone *string) (*models.Workspace, error) {
	upd := *ws
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, validationf("name cannot be empty")
		}
		upd.Name = n
	}
	if timezone != nil {
		if !validTimezone(*timezone) {
			return nil, validationf("unknown timezone %q", *timezone)
		}
		upd.Timezone = *timezone
	}
	upd.UpdatedAt = s.now()
	if err := s.workspaces.UpdateSettings(ctx, &upd); err != nil {
		return nil, mapRepoErr(err)
	}
	return upd.Redacted(), nil
}

func (s *workspaceService) ListTeam(ctx context.Context, ws *models.Workspace) ([]TeamMemberView, error) {
	out := make([]TeamMemberView, 0, len(ws.Team))
	for _, m := range ws.Team {
		v := TeamMemberView{TeamMember: m, Owner: m.AccountID == ws.OwnerID}
		acct, err := s.accounts.GetByID(ctx, m.AccountID)
		switch {
		case err == nil:
			v.Name, v.Email = acct.Name, acct.Email
		case errors.Is(err, repositories.ErrNotFound):
			slog.Warn("[workspace][team] member account missing", "workspace_id", ws.ID, "account_id", m.AccountID)
		default:
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// checkAssignableRole accepts the legacy Admin name or any role document of
// the workspace. Owner is never assignable.
func (s *workspaceService) checkAssignableRole(ctx context.Context, workspaceID, role string) error {
	switch {
	case role == "":
		return validationf("role is required")
	case strings.EqualFold(role, authz.RoleOwner):
		return validationf("the %s role cannot be assigned", authz.RoleOwner)
	case role == authz.RoleAdmin:
		return nil
	}
	if _, err := s.roles.GetByName(ctx, workspaceID, role); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return validationf("role %q does not exist", role)
		}
		return err
	}
	return nil
}

func (s *workspaceService) AddMember(ctx context.Context, ws *models.Workspace, email, role string) (*models.TeamMember, error) {
	role = strings.TrimSpace(role)
	if err := s.checkAssignableRole(ctx, ws.ID, role); err != nil {
		return nil, err
	}
	acct, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: no account with this email", ErrNotFound)
		}
		return nil, err
	}
	if ws.IsMember(acct.ID) {
		return nil, fmt.Errorf("%w: account is already a member", ErrConflict)
	}

	member := models.TeamMember{
		AccountID: acct.ID,
		Role:      role,
		Status:    models.MemberActive,
		AddedAt:   s.now(),
	}
	team := append(append(models.TeamMembers{}, ws.Team...), member)
	if err := s.workspaces.UpdateTeam(ctx, ws.ID, team); err != nil {
		return nil, mapRepoErr(err)
	}
	ws.Team = team

	if err := s.emails.SendTeamInviteEmail(ctx, acct.Email, ws.Name, role); err != nil {
		slog.Warn("[workspace][team] invite email failed", "workspace_id", ws.ID, "err", err)
	}
	return &member, nil
}

func (s *workspaceService) UpdateMember(ctx context.Context, ws *models.Workspace, accountID string, role *string, status *models.MemberStatus) (*models.TeamMember, error) {
	if accountID == ws.OwnerID {
		return nil, fmt.Errorf("%w: the owner entry cannot be changed", ErrForbidden)
	}
	team := append(models.TeamMembers{}, ws.Team...)
	idx := -1
	for i, m := range team {
		if m.AccountID == accountID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: member not found", ErrNotFound)
	}
	if role != nil {
		r := strings.TrimSpace(*role)
		if err := s.checkAssignableRole(ctx, ws.ID, r); err != nil {
			return nil, err
		}
		team[idx].Role = r
	}
	if status != nil {
		if *status != models.MemberActive && *status != models.MemberInactive {
			return nil, validationf("unknown status %q", *status)
		}
		team[idx].Status = *status
	}
	if err := s.workspaces.UpdateTeam(ctx, ws.ID, team); err != nil {
		return nil, mapRepoErr(err)
	}
	ws.Team = team
	m := team[idx]
	return &m, nil
}

func (s *workspaceService) RemoveMember(ctx context.Context, ws *models.Workspace, accountID string) error {
	if accountID == ws.OwnerID {
		return fmt.Errorf("%w: the owner cannot be removed", ErrForbidden)
	}
	team := make(models.TeamMembers, 0, len(ws.Team))
	found := false
	for _, m := range ws.Team {
		if m.AccountID == accountID {
			found = true
			continue
		}
		team = append(team, m)
	}
	if !found {
		return fmt.Errorf("%w: member not found", ErrNotFound)
	}
	if err := s.workspaces.UpdateTeam(ctx, ws.ID, team); err != nil {
		return mapRepoErr(err)
	}
	ws.Team = team
	return nil
}

func (s *workspaceService) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Workspace, error) {
	ws, err := s.workspaces.GetByPhoneNumberID(ctx, phoneNumberID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return ws, nil
}

func (s *workspaceService) SetWhatsApp(ctx context.Context, workspaceID string, conn models.WhatsAppConnection) error {
	return mapRepoErr(s.workspaces.UpdateWhatsApp(ctx, workspaceID, conn))
}

func (s *workspaceService) ClearWhatsApp(ctx context.Context, workspaceID string) error {
	return mapRepoErr(s.workspaces.UpdateWhatsApp(ctx, workspaceID, models.WhatsAppConnection{}))
}
