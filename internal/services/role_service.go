package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wapulse/internal/authz"
	"wapulse/internal/models"
	"wapulse/internal/repositories"
)

type RoleUpdate struct {
	Name        *string
	Status      *models.RoleStatus
	Permissions models.Permissions
}

type RoleService interface {
	List(ctx context.Context, workspaceID string) ([]*models.Role, error)
	GetByName(ctx context.Context, workspaceID, name string) (*models.Role, error)
	Create(ctx context.Context, workspaceID, name string, perms models.Permissions) (*models.Role, error)
	Update(ctx context.Context, workspaceID, id string, upd RoleUpdate) (*models.Role, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

type roleService struct {
	roles repositories.RoleRepository
	now   func() time.Time
}

func NewRoleService(roles repositories.RoleRepository) RoleService {
	return &roleService{roles: roles, now: func() time.Time { return time.Now().UTC() }}
}

func (s *roleService) List(ctx context.Context, workspaceID string) ([]*models.Role, error) {
	return s.roles.List(ctx, workspaceID)
}

func (s *roleService) GetByName(ctx context.Context, workspaceID, name string) (*models.Role, error) {
	role, err := s.roles.GetByName(ctx, workspaceID, name)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return role, nil
}

func checkRoleName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationf("role name is required")
	}
	if strings.EqualFold(name, authz.RoleOwner) {
		return "", validationf("role name %q is reserved", authz.RoleOwner)
	}
	return name, nil
}

func checkPermissions(perms models.Permissions) error {
	for c := range perms {
		if !c.Valid() {
			return validationf("unknown capability %q", c)
		}
	}
	return nil
}

func (s *roleService) Create(ctx context.Context, workspaceID, name string, perms models.Permissions) (*models.Role, error) {
	name, err := checkRoleName(name)
	if err != nil {
		return nil, err
	}
	if err := checkPermissions(perms); err != nil {
		return nil, err
	}
	if perms == nil {
		perms = models.Permissions{}
	}
	now := s.now()
	role := &models.Role{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        name,
		Status:      models.RoleActive,
		Permissions: perms,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: role %q already exists", ErrConflict, name)
		}
		return nil, err
	}
	return role, nil
}

func (s *roleService) Update(ctx context.Context, workspaceID, id string, upd RoleUpdate) (*models.Role, error) {
	role, err := s.roles.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if upd.Name != nil {
		name, err := checkRoleName(*upd.Name)
		if err != nil {
			return nil, err
		}
		role.Name = name
	}
	if upd.Status != nil {
		if *upd.Status != models.RoleActive && *upd.Status != models.RoleDeactivated {
			return nil, validationf("unknown status %q", *upd.Status)
		}
		role.Status = *upd.Status
	}
	if upd.Permissions != nil {
		if err := checkPermissions(upd.Permissions); err != nil {
			return nil, err
		}
		role.Permissions = upd.Permissions
	}
	role.UpdatedAt = s.now()
	if err := s.roles.Update(ctx, role); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: role %q already exists", ErrConflict, role.Name)
		}
		return nil, mapRepoErr(err)
	}
	return role, nil
}

func (s *roleService) Delete(ctx context.Context, workspaceID, id string) error {
	return mapRepoErr(s.roles.Delete(ctx, workspaceID, id))
}
