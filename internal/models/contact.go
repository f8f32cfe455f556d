package models

import (
	"time"

	"github.com/lib/pq"
)

// Contact is a WhatsApp recipient inside one workspace.
type Contact struct {
	ID          string         `db:"id" json:"id"`
	WorkspaceID string         `db:"workspace_id" json:"workspace_id"`
	Name        string         `db:"name" json:"name"`
	Phone       string         `db:"phone" json:"phone"`
	Email       string         `db:"email" json:"email"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	Attributes  Attributes     `db:"attributes" json:"attributes"`
	OptedIn     bool           `db:"opted_in" json:"opted_in"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

type ContactFilter struct {
	Tag    string
	Query  string
	Limit  int
	Offset int
}
