package models

import "time"

type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "OPEN"
	ConversationClosed ConversationStatus = "CLOSED"
)

// Conversation is one contact's thread in a workspace inbox.
type Conversation struct {
	ID            string             `db:"id" json:"id"`
	WorkspaceID   string             `db:"workspace_id" json:"workspace_id"`
	ContactID     string             `db:"contact_id" json:"contact_id"`
	ContactName   string             `db:"contact_name" json:"contact_name"`
	ContactPhone  string             `db:"contact_phone" json:"contact_phone"`
	Status        ConversationStatus `db:"status" json:"status"`
	AssignedTo    *string            `db:"assigned_to" json:"assigned_to,omitempty"`
	UnreadCount   int                `db:"unread_count" json:"unread_count"`
	LastMessageAt *time.Time         `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}

type MessageDirection string

const (
	DirectionIn  MessageDirection = "IN"
	DirectionOut MessageDirection = "OUT"
)

type MessageStatus string

const (
	MessageQueued    MessageStatus = "QUEUED"
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
	MessageFailed    MessageStatus = "FAILED"
	MessageReceived  MessageStatus = "RECEIVED"
)

type Message struct {
	ID             string           `db:"id" json:"id"`
	ConversationID string           `db:"conversation_id" json:"conversation_id"`
	WorkspaceID    string           `db:"workspace_id" json:"workspace_id"`
	Direction      MessageDirection `db:"direction" json:"direction"`
	Body           string           `db:"body" json:"body"`
	WAMessageID    string           `db:"wa_message_id" json:"wa_message_id,omitempty"`
	Status         MessageStatus    `db:"status" json:"status"`
	SenderID       *string          `db:"sender_id" json:"sender_id,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}
