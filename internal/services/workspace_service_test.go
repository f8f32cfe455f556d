package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wapulse/internal/authz"
	"wapulse/internal/models"
)

func newWorkspaceFixture() (WorkspaceService, *memWorkspaces, *recordingEmails) {
	ws := &models.Workspace{
		ID:      "ws-1",
		Name:    "Acme",
		OwnerID: "owner",
		Team: models.TeamMembers{
			{AccountID: "owner", Role: authz.RoleOwner, Status: models.MemberActive},
			{AccountID: "editor", Role: "Editor", Status: models.MemberActive},
		},
	}
	store := newMemWorkspaces(ws)
	accounts := newMemAccounts(
		&models.Account{ID: "owner", Name: "Olu", Email: "olu@example.com", Mobile: "+1"},
		&models.Account{ID: "editor", Name: "Eda", Email: "eda@example.com", Mobile: "+2"},
		&models.Account{ID: "newbie", Name: "Nia", Email: "nia@example.com", Mobile: "+3"},
	)
	roles := &memRoles{roles: []*models.Role{{ID: "r1", WorkspaceID: "ws-1", Name: "Editor", Status: models.RoleActive}}}
	emails := &recordingEmails{}
	return NewWorkspaceService(store, accounts, roles, emails), store, emails
}

func TestResolveReturnsRoleVerbatim(t *testing.T) {
	svc, _, _ := newWorkspaceFixture()
	ctx := context.Background()

	_, role, err := svc.Resolve(ctx, "ws-1", "owner")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleOwner, role)

	_, role, err = svc.Resolve(ctx, "ws-1", "editor")
	require.NoError(t, err)
	assert.Equal(t, "Editor", role)

	_, _, err = svc.Resolve(ctx, "ws-1", "stranger")
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = svc.Resolve(ctx, "ws-404", "owner")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateWorkspaceValidation(t *testing.T) {
	svc, _, _ := newWorkspaceFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner", "  ", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(ctx, "owner", "Second", "Mars/Olympus")
	assert.ErrorIs(t, err, ErrValidation)

	ws, err := svc.Create(ctx, "owner", "Second", "")
	require.NoError(t, err)
	assert.Equal(t, "UTC", ws.Timezone)
	assert.Equal(t, authz.RoleOwner, ws.Team[0].Role)
}

func TestAddMember(t *testing.T) {
	svc, store, emails := newWorkspaceFixture()
	ctx := context.Background()
	ws, _, err := svc.Resolve(ctx, "ws-1", "owner")
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, ws, "nia@example.com", authz.RoleOwner)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddMember(ctx, ws, "nia@example.com", "Ghost")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddMember(ctx, ws, "missing@example.com", "Editor")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddMember(ctx, ws, "eda@example.com", "Editor")
	assert.ErrorIs(t, err, ErrConflict)

	m, err := svc.AddMember(ctx, ws, "NIA@example.com", authz.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "newbie", m.AccountID)
	assert.Equal(t, models.MemberActive, m.Status)
	assert.Len(t, store.byID["ws-1"].Team, 3)
	assert.Equal(t, []string{"nia@example.com"}, emails.invites)
}

func TestInactiveMemberLosesAccess(t *testing.T) {
	svc, _, _ := newWorkspaceFixture()
	ctx := context.Background()
	ws, _, err := svc.Resolve(ctx, "ws-1", "owner")
	require.NoError(t, err)

	inactive := models.MemberInactive
	_, err = svc.UpdateMember(ctx, ws, "editor", nil, &inactive)
	require.NoError(t, err)

	_, _, err = svc.Resolve(ctx, "ws-1", "editor")
	assert.ErrorIs(t, err, ErrForbidden)
	list, err := svc.ListForAccount(ctx, "editor")
	require.NoError(t, err)
	assert.Empty(t, list)

	ws, _, err = svc.Resolve(ctx, "ws-1", "owner")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, ws, "eda@example.com", "Editor")
	assert.ErrorIs(t, err, ErrConflict)

	active := models.MemberActive
	_, err = svc.UpdateMember(ctx, ws, "editor", nil, &active)
	require.NoError(t, err)
	_, role, err := svc.Resolve(ctx, "ws-1", "editor")
	require.NoError(t, err)
	assert.Equal(t, "Editor", role)
}

func TestOwnerCannotBeChangedOrRemoved(t *testing.T) {
	svc, _, _ := newWorkspaceFixture()
	ctx := context.Background()
	ws, _, err := svc.Resolve(ctx, "ws-1", "owner")
	require.NoError(t, err)

	role := "Editor"
	_, err = svc.UpdateMember(ctx, ws, "owner", &role, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.RemoveMember(ctx, ws, "owner"), ErrForbidden)

	inactive := models.MemberInactive
	m, err := svc.UpdateMember(ctx, ws, "editor", nil, &inactive)
	require.NoError(t, err)
	assert.Equal(t, models.MemberInactive, m.Status)

	require.NoError(t, svc.RemoveMember(ctx, ws, "editor"))
	assert.ErrorIs(t, svc.RemoveMember(ctx, ws, "editor"), ErrNotFound)
}

func TestListTeamMarksOwner(t *testing.T) {
	svc, _, _ := newWorkspaceFixture()
	ctx := context.Background()
	ws, _, err := svc.Resolve(ctx, "ws-1", "owner")
	require.NoError(t, err)

	team, err := svc.ListTeam(ctx, ws)
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.True(t, team[0].Owner)
	assert.Equal(t, "olu@example.com", team[0].Email)
	assert.False(t, team[1].Owner)
}

func TestBootstrapName(t *testing.T) {
	assert.Equal(t, "Ada's Workspace", BootstrapName(" Ada "))
}
