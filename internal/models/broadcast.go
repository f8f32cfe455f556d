package models

import (
	"time"

	"github.com/lib/pq"
)

type BroadcastStatus string

const (
	BroadcastQueued    BroadcastStatus = "QUEUED"
	BroadcastSending   BroadcastStatus = "SENDING"
	BroadcastCompleted BroadcastStatus = "COMPLETED"
	BroadcastCancelled BroadcastStatus = "CANCELLED"
	BroadcastFailed    BroadcastStatus = "FAILED"
)

type Broadcast struct {
	ID           string          `db:"id" json:"id"`
	WorkspaceID  string          `db:"workspace_id" json:"workspace_id"`
	Name         string          `db:"name" json:"name"`
	TemplateID   string          `db:"template_id" json:"template_id"`
	AudienceTags pq.StringArray  `db:"audience_tags" json:"audience_tags"`
	Status       BroadcastStatus `db:"status" json:"status"`
	Total        int             `db:"total" json:"total"`
	Sent         int             `db:"sent" json:"sent"`
	Failed       int             `db:"failed" json:"failed"`
	LastError    string          `db:"last_error" json:"last_error,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	StartedAt    *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// Running reports whether the dispatcher may still be working on it.
func (b *Broadcast) Running() bool {
	return b.Status == BroadcastQueued || b.Status == BroadcastSending
}
