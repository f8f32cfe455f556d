package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"wapulse/internal/authz"
	"wapulse/internal/models"
	"wapulse/internal/repositories"
)

const (
	EventMessage      = "message"
	EventStatus       = "status"
	EventConversation = "conversation"

	defaultMessagePage = 50
	maxMessagePage     = 200
)

// EventPublisher pushes inbox events to connected clients.
type EventPublisher interface {
	Publish(workspaceID, eventType string, data any)
}

type InboxService interface {
	ListConversations(ctx context.Context, workspaceID string, status models.ConversationStatus) ([]*models.Conversation, error)
	Messages(ctx context.Context, workspaceID, conversationID string, limit, offset int) ([]*models.Message, error)
	Reply(ctx context.Context, ws *models.Workspace, conversationID, senderID, body string) (*models.Message, error)
	Assign(ctx context.Context, ws *models.Workspace, conversationID string, accountID *string) (*models.Conversation, error)
	Close(ctx context.Context, workspaceID, conversationID string) (*models.Conversation, error)
	HandleWebhook(ctx context.Context, payload *models.WebhookPayload) error
}

type inboxService struct {
	chats      repositories.ChatRepository
	contacts   ContactService
	workspaces WorkspaceService
	client     WhatsAppClient
	events     EventPublisher
	now        func() time.Time
}

func NewInboxService(chats repositories.ChatRepository, contacts ContactService, workspaces WorkspaceService, client WhatsAppClient, events EventPublisher) InboxService {
	return &inboxService{
		chats:      chats,
		contacts:   contacts,
		workspaces: workspaces,
		client:     client,
		events:     events,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// VerifyWebhookSignature checks an X-Hub-Signature-256 header against the
// raw request body.
func VerifyWebhookSignature(appSecret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok || appSecret == "" {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (s *inboxService) ListConversations(ctx context.Context, workspaceID string, status models.ConversationStatus) ([]*models.Conversation, error) {
	switch status {
	case "", models.ConversationOpen, models.ConversationClosed:
	default:
		return nil, validationf("unknown status %q", status)
	}
	return s.chats.ListConversations(ctx, workspaceID, status)
}

func (s *inboxService) Messages(ctx context.Context, workspaceID, conversationID string, limit, offset int) ([]*models.Message, error) {
	conv, err := s.chats.GetConversation(ctx, workspaceID, conversationID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}
	if offset < 0 {
		offset = 0
	}
	msgs, err := s.chats.ListMessages(ctx, conv.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	if conv.UnreadCount > 0 {
		if err := s.chats.ResetUnread(ctx, conv.ID); err != nil {
			slog.Warn("[inbox][messages] reset unread failed", "conversation_id", conv.ID, "err", err)
		}
	}
	return msgs, nil
}

func (s *inboxService) Reply(ctx context.Context, ws *models.Workspace, conversationID, senderID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validationf("message body is required")
	}
	if !ws.WhatsApp.Connected {
		return nil, ErrWhatsAppNotConnected
	}
	conv, err := s.chats.GetConversation(ctx, ws.ID, conversationID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		WorkspaceID:    ws.ID,
		Direction:      models.DirectionOut,
		Body:           body,
		Status:         models.MessageQueued,
		SenderID:       &senderID,
		CreatedAt:      s.now(),
	}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	waID, sendErr := s.client.SendText(ctx, ws.WhatsApp, conv.ContactPhone, body)
	if sendErr != nil {
		msg.Status = models.MessageFailed
	} else {
		msg.Status = models.MessageSent
		msg.WAMessageID = waID
	}
	if err := s.chats.UpdateMessageDelivery(ctx, msg.ID, msg.WAMessageID, msg.Status); err != nil {
		slog.Error("[inbox][reply] update delivery", "message_id", msg.ID, "err", err)
	}
	if sendErr != nil {
		slog.Warn("[inbox][reply] send failed", "conversation_id", conv.ID, "err", sendErr)
		return nil, sendErr
	}

	if err := s.chats.Touch(ctx, conv.ID, msg.CreatedAt, false); err != nil {
		slog.Warn("[inbox][reply] touch conversation", "conversation_id", conv.ID, "err", err)
	}
	s.events.Publish(ws.ID, EventMessage, msg)
	return msg, nil
}

func (s *inboxService) Assign(ctx context.Context, ws *models.Workspace, conversationID string, accountID *string) (*models.Conversation, error) {
	if accountID != nil {
		if *accountID == "" {
			accountID = nil
		} else if _, ok := ws.RoleOf(*accountID, authz.RoleOwner); !ok {
			return nil, validationf("account is not a member of this workspace")
		}
	}
	if err := s.chats.Assign(ctx, ws.ID, conversationID, accountID); err != nil {
		return nil, mapRepoErr(err)
	}
	conv, err := s.chats.GetConversation(ctx, ws.ID, conversationID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.events.Publish(ws.ID, EventConversation, conv)
	return conv, nil
}

func (s *inboxService) Close(ctx context.Context, workspaceID, conversationID string) (*models.Conversation, error) {
	if err := s.chats.Close(ctx, workspaceID, conversationID); err != nil {
		return nil, mapRepoErr(err)
	}
	conv, err := s.chats.GetConversation(ctx, workspaceID, conversationID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.events.Publish(workspaceID, EventConversation, conv)
	return conv, nil
}

// HandleWebhook stores inbound messages and delivery receipts. Changes for
// numbers that no workspace owns are skipped.
func (s *inboxService) HandleWebhook(ctx context.Context, payload *models.WebhookPayload) error {
	if payload.Object != "whatsapp_business_account" {
		return validationf("unexpected object %q", payload.Object)
	}
	var errs []error
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			if err := s.handleChange(ctx, change.Value); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *inboxService) handleChange(ctx context.Context, v models.WebhookValue) error {
	for _, st := range v.Statuses {
		status, ok := deliveryStatus(st.Status)
		if !ok {
			continue
		}
		n, err := s.chats.UpdateStatusByWAID(ctx, st.ID, status)
		if err != nil {
			return fmt.Errorf("update status %s: %w", st.ID, err)
		}
		if n == 0 {
			slog.Debug("[inbox][webhook] status for unknown message", "wa_message_id", st.ID)
		}
	}
	if len(v.Messages) == 0 {
		return nil
	}

	ws, err := s.workspaces.GetByPhoneNumberID(ctx, v.Metadata.PhoneNumberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("[inbox][webhook] no workspace for number", "phone_number_id", v.Metadata.PhoneNumberID)
			return nil
		}
		return err
	}

	names := make(map[string]string, len(v.Contacts))
	for _, c := range v.Contacts {
		names[c.WaID] = c.Profile.Name
	}
	for _, m := range v.Messages {
		if err := s.storeInbound(ctx, ws.ID, m, names[m.From]); err != nil {
			return err
		}
	}
	return nil
}

func (s *inboxService) storeInbound(ctx context.Context, workspaceID string, m models.WebhookMessage, name string) error {
	body := ""
	if m.Text != nil {
		body = m.Text.Body
	} else {
		body = "[" + m.Type + "]"
	}

	contact, err := s.contacts.UpsertInbound(ctx, workspaceID, m.From, name)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	conv, err := s.chats.OpenConversation(ctx, workspaceID, contact.ID)
	if err != nil {
		return err
	}

	at := s.now()
	if sec, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		at = time.Unix(sec, 0).UTC()
	}
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Direction:      models.DirectionIn,
		Body:           body,
		WAMessageID:    m.ID,
		Status:         models.MessageReceived,
		CreatedAt:      at,
	}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// Meta redelivers webhooks it considers unacknowledged.
			return nil
		}
		return err
	}
	if err := s.chats.Touch(ctx, conv.ID, at, true); err != nil {
		slog.Warn("[inbox][webhook] touch conversation", "conversation_id", conv.ID, "err", err)
	}
	s.events.Publish(workspaceID, EventMessage, msg)
	return nil
}

func deliveryStatus(s string) (models.MessageStatus, bool) {
	switch s {
	case "sent":
		return models.MessageSent, true
	case "delivered":
		return models.MessageDelivered, true
	case "read":
		return models.MessageRead, true
	case "failed":
		return models.MessageFailed, true
	}
	return "", false
}
