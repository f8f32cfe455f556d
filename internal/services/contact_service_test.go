package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wapulse/internal/models"
)

func TestCleanTags(t *testing.T) {
	assert.Equal(t, []string{"vip", "lead"}, cleanTags([]string{" VIP", "lead", "", "vip "}))
	assert.Empty(t, cleanTags(nil))
}

func TestCreateContactEnforcesPlanLimit(t *testing.T) {
	store := &memContacts{}
	svc := NewContactService(store)
	ctx := context.Background()
	plan := &models.Plan{Name: "Starter", ContactLimit: 1}

	c, err := svc.Create(ctx, "ws-1", plan, ContactInput{Name: "Ravi", Phone: "+91 98765 43210", Tags: []string{"VIP"}})
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", c.Phone)
	assert.True(t, c.OptedIn)
	assert.Equal(t, []string{"vip"}, []string(c.Tags))

	_, err = svc.Create(ctx, "ws-1", plan, ContactInput{Phone: "+15550000000"})
	assert.ErrorIs(t, err, ErrPlanLimit)

	_, err = svc.Create(ctx, "ws-2", plan, ContactInput{Phone: "+15550000000"})
	assert.NoError(t, err)
}

func TestCreateContactDuplicatePhone(t *testing.T) {
	svc := NewContactService(&memContacts{})
	ctx := context.Background()
	_, err := svc.Create(ctx, "ws-1", nil, ContactInput{Phone: "+15550000000"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "ws-1", nil, ContactInput{Phone: "+1 555 000 0000"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(ctx, "ws-1", nil, ContactInput{Phone: "  "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertInboundReusesContact(t *testing.T) {
	store := &memContacts{}
	svc := NewContactService(store)
	ctx := context.Background()

	a, err := svc.UpsertInbound(ctx, "ws-1", "15550000000", "Sam")
	require.NoError(t, err)
	b, err := svc.UpsertInbound(ctx, "ws-1", "+15550000000", "Someone else")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Sam", b.Name)
	assert.Len(t, store.list, 1)
}
