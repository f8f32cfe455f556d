package models

import "time"

type TemplateStatus string

const (
	TemplateDraft     TemplateStatus = "DRAFT"
	TemplateSubmitted TemplateStatus = "SUBMITTED"
	TemplateApproved  TemplateStatus = "APPROVED"
	TemplateRejected  TemplateStatus = "REJECTED"
)

// Template is a WhatsApp message template registered for a workspace.
type Template struct {
	ID          string         `db:"id" json:"id"`
	WorkspaceID string         `db:"workspace_id" json:"workspace_id"`
	Name        string         `db:"name" json:"name"`
	Language    string         `db:"language" json:"language"`
	Category    string         `db:"category" json:"category"`
	Body        string         `db:"body" json:"body"`
	Status      TemplateStatus `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
