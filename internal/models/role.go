package models

import (
	"database/sql/driver"
	"time"

	"wapulse/internal/authz"
)

type RoleStatus string

const (
	RoleActive      RoleStatus = "ACTIVE"
	RoleDeactivated RoleStatus = "DEACTIVATED"
)

// Permissions maps a capability to its grant. Missing keys are denials.
type Permissions map[authz.Capability]bool

func (p Permissions) Allows(c authz.Capability) bool {
	return p[c]
}

func (p Permissions) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return jsonValue(map[authz.Capability]bool(p))
}

func (p *Permissions) Scan(src any) error {
	return scanJSON(src, (*map[authz.Capability]bool)(p))
}

type Role struct {
	ID          string      `db:"id" json:"id"`
	WorkspaceID string      `db:"workspace_id" json:"workspace_id"`
	Name        string      `db:"name" json:"name"`
	Status      RoleStatus  `db:"status" json:"status"`
	Permissions Permissions `db:"permissions" json:"permissions"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}
