package models

import (
	"database/sql/driver"
	"time"
)

type MemberStatus string

const (
	MemberActive   MemberStatus = "Active"
	MemberInactive MemberStatus = "Inactive"
)

type TeamMember struct {
	AccountID string       `json:"account_id"`
	Role      string       `json:"role"`
	Status    MemberStatus `json:"status"`
	AddedAt   time.Time    `json:"added_at"`
}

// TeamMembers is the ordered team list stored as JSONB.
type TeamMembers []TeamMember

func (t TeamMembers) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return jsonValue([]TeamMember(t))
}

func (t *TeamMembers) Scan(src any) error {
	return scanJSON(src, (*[]TeamMember)(t))
}

// Find returns the team entry for accountID.
func (t TeamMembers) Find(accountID string) (TeamMember, bool) {
	for _, m := range t {
		if m.AccountID == accountID {
			return m, true
		}
	}
	return TeamMember{}, false
}

// WhatsAppConnection is the per-workspace WhatsApp Cloud API binding.
type WhatsAppConnection struct {
	Connected         bool       `json:"connected"`
	BusinessAccountID string     `json:"business_account_id,omitempty"`
	PhoneNumberID     string     `json:"phone_number_id,omitempty"`
	DisplayPhone      string     `json:"display_phone,omitempty"`
	AccessToken       string     `json:"access_token,omitempty"`
	ConnectedAt       *time.Time `json:"connected_at,omitempty"`
}

func (w WhatsAppConnection) Value() (driver.Value, error) {
	return jsonValue(w)
}

func (w *WhatsAppConnection) Scan(src any) error {
	return scanJSON(src, w)
}

type Workspace struct {
	ID        string             `db:"id" json:"id"`
	Name      string             `db:"name" json:"name"`
	Timezone  string             `db:"timezone" json:"timezone"`
	OwnerID   string             `db:"owner_id" json:"owner_id"`
	Team      TeamMembers        `db:"team" json:"team"`
	WhatsApp  WhatsAppConnection `db:"whatsapp" json:"whatsapp"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

// Redacted returns a copy safe to send to clients (no access token).
func (w *Workspace) Redacted() *Workspace {
	if w == nil {
		return nil
	}
	cp := *w
	cp.WhatsApp.AccessToken = ""
	return &cp
}

// RoleOf resolves the role name of accountID in this workspace. The owner
// always resolves to "Owner" regardless of team entries. Inactive members
// resolve to nothing until reactivated.
func (w *Workspace) RoleOf(accountID string, ownerRole string) (string, bool) {
	if w.OwnerID == accountID {
		return ownerRole, true
	}
	if m, ok := w.Team.Find(accountID); ok && m.Status != MemberInactive {
		return m.Role, true
	}
	return "", false
}

// IsMember reports whether accountID owns or has any team entry, active or not.
func (w *Workspace) IsMember(accountID string) bool {
	if w.OwnerID == accountID {
		return true
	}
	_, ok := w.Team.Find(accountID)
	return ok
}
