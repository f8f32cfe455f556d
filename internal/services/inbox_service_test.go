package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wapulse/internal/models"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	header := sign("app-secret", body)

	assert.True(t, VerifyWebhookSignature("app-secret", body, header))
	assert.False(t, VerifyWebhookSignature("other-secret", body, header))
	assert.False(t, VerifyWebhookSignature("app-secret", []byte(`{}`), header))
	assert.False(t, VerifyWebhookSignature("app-secret", body, header[len("sha256="):]))
	assert.False(t, VerifyWebhookSignature("app-secret", body, "sha256=zz"))
	assert.False(t, VerifyWebhookSignature("", body, header))
}

type inboxFixture struct {
	svc      *inboxService
	chats    *memChats
	contacts *memContacts
	events   *recordingEvents
	client   *stubWhatsApp
	ws       *models.Workspace
}

func newInboxFixture() *inboxFixture {
	ws := &models.Workspace{
		ID:      "ws-1",
		OwnerID: "owner",
		Team:    models.TeamMembers{{AccountID: "agent", Role: "Agent", Status: models.MemberActive}},
		WhatsApp: models.WhatsAppConnection{
			Connected:     true,
			PhoneNumberID: "pn-1",
			AccessToken:   "token",
		},
	}
	f := &inboxFixture{
		chats:    newMemChats(),
		contacts: &memContacts{},
		events:   &recordingEvents{},
		client:   &stubWhatsApp{},
		ws:       ws,
	}
	workspaces := NewWorkspaceService(newMemWorkspaces(ws), newMemAccounts(), &memRoles{}, &recordingEmails{})
	f.svc = NewInboxService(f.chats, NewContactService(f.contacts), workspaces, f.client, f.events).(*inboxService)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func inboundPayload(phoneNumberID, waID string) *models.WebhookPayload {
	return &models.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []models.WebhookEntry{{
			Changes: []models.WebhookChange{{
				Field: "messages",
				Value: models.WebhookValue{
					Metadata: models.WebhookMetadata{PhoneNumberID: phoneNumberID},
					Contacts: []models.WebhookContact{{WaID: "919876543210", Profile: models.WebhookProfile{Name: "Ravi"}}},
					Messages: []models.WebhookMessage{{
						ID:        waID,
						From:      "919876543210",
						Timestamp: "1772366400",
						Type:      "text",
						Text:      &models.WebhookText{Body: "hello"},
					}},
				},
			}},
		}},
	}
}

func TestHandleWebhookStoresInboundMessage(t *testing.T) {
	f := newInboxFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.HandleWebhook(ctx, inboundPayload("pn-1", "wamid.1")))

	require.Len(t, f.contacts.list, 1)
	assert.Equal(t, "+919876543210", f.contacts.list[0].Phone)
	assert.Equal(t, "Ravi", f.contacts.list[0].Name)

	require.Len(t, f.chats.messages, 1)
	msg := f.chats.messages[0]
	assert.Equal(t, models.DirectionIn, msg.Direction)
	assert.Equal(t, models.MessageReceived, msg.Status)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, int64(1772366400), msg.CreatedAt.Unix())

	conv := f.chats.convs[msg.ConversationID]
	assert.Equal(t, 1, conv.UnreadCount)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "ws-1", f.events.events[0].workspaceID)
	assert.Equal(t, EventMessage, f.events.events[0].eventType)
}

func TestHandleWebhookIgnoresRedelivery(t *testing.T) {
	f := newInboxFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.HandleWebhook(ctx, inboundPayload("pn-1", "wamid.1")))
	require.NoError(t, f.svc.HandleWebhook(ctx, inboundPayload("pn-1", "wamid.1")))

	assert.Len(t, f.chats.messages, 1)
	assert.Len(t, f.events.events, 1)
}

func TestHandleWebhookUnknownNumber(t *testing.T) {
	f := newInboxFixture()
	require.NoError(t, f.svc.HandleWebhook(context.Background(), inboundPayload("pn-unknown", "wamid.1")))
	assert.Empty(t, f.chats.messages)
	assert.Empty(t, f.contacts.list)
}

func TestHandleWebhookRejectsOtherObjects(t *testing.T) {
	f := newInboxFixture()
	err := f.svc.HandleWebhook(context.Background(), &models.WebhookPayload{Object: "page"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHandleWebhookAppliesStatuses(t *testing.T) {
	f := newInboxFixture()
	ctx := context.Background()
	require.NoError(t, f.chats.CreateMessage(ctx, &models.Message{ID: "m1", WAMessageID: "wamid.out", Status: models.MessageSent}))

	payload := &models.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []models.WebhookEntry{{
			Changes: []models.WebhookChange{{
				Field: "messages",
				Value: models.WebhookValue{Statuses: []models.WebhookStatus{
					{ID: "wamid.out", Status: "read"},
					{ID: "wamid.out", Status: "deleted"},
				}},
			}},
		}},
	}
	require.NoError(t, f.svc.HandleWebhook(ctx, payload))
	assert.Equal(t, models.MessageRead, f.chats.messages[0].Status)
}

func TestReplySendsAndPublishes(t *testing.T) {
	f := newInboxFixture()
	ctx := context.Background()
	conv, err := f.chats.OpenConversation(ctx, "ws-1", "contact-1")
	require.NoError(t, err)
	f.chats.convs[conv.ID].ContactPhone = "+919876543210"

	msg, err := f.svc.Reply(ctx, f.ws, conv.ID, "agent", "  thanks  ")
	require.NoError(t, err)
	assert.Equal(t, "thanks", msg.Body)
	assert.Equal(t, models.MessageSent, msg.Status)
	assert.Equal(t, "wamid.+919876543210", msg.WAMessageID)
	assert.Equal(t, models.MessageSent, f.chats.messages[0].Status)
	assert.Len(t, f.events.events, 1)
}

func TestReplyFailureMarksMessageFailed(t *testing.T) {
	f := newInboxFixture()
	ctx := context.Background()
	conv, err := f.chats.OpenConversation(ctx, "ws-1", "contact-1")
	require.NoError(t, err)
	f.client.sendErr = errors.Join(ErrUpstream, errors.New("graph down"))

	_, err = f.svc.Reply(ctx, f.ws, conv.ID, "agent", "thanks")
	assert.ErrorIs(t, err, ErrUpstream)
	require.Len(t, f.chats.messages, 1)
	assert.Equal(t, models.MessageFailed, f.chats.messages[0].Status)
	assert.Empty(t, f.events.events)
}

func TestReplyRequiresConnection(t *testing.T) {
	f := newInboxFixture()
	f.ws.WhatsApp.Connected = false
	_, err := f.svc.Reply(context.Background(), f.ws, "conv-1", "agent", "hi")
	assert.ErrorIs(t, err, ErrWhatsAppNotConnected)
}

func TestAssignChecksMembership(t *testing.T) {
	f := newInboxFixture()
	ctx := context.Background()
	conv, err := f.chats.OpenConversation(ctx, "ws-1", "contact-1")
	require.NoError(t, err)

	stranger := "stranger"
	_, err = f.svc.Assign(ctx, f.ws, conv.ID, &stranger)
	assert.ErrorIs(t, err, ErrValidation)

	agent := "agent"
	got, err := f.svc.Assign(ctx, f.ws, conv.ID, &agent)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "agent", *got.AssignedTo)

	empty := ""
	got, err = f.svc.Assign(ctx, f.ws, conv.ID, &empty)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedTo)
}
