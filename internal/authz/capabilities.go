// Package authz holds the closed set of workspace capabilities and the role
// names that bypass or short-circuit role documents.
package authz

// Capability is a single named permission flag inside a workspace.
type Capability string

const (
	// module access
	ViewDashboard    Capability = "view_dashboard"
	AccessContacts   Capability = "access_contacts"
	AccessChats      Capability = "access_chats"
	AccessBroadcasts Capability = "access_broadcasts"
	AccessTemplates  Capability = "access_templates"
	AccessTeam       Capability = "access_team"
	AccessSettings   Capability = "access_settings"
	AccessBilling    Capability = "access_billing"

	// contacts
	ViewContacts   Capability = "view_contacts"
	CreateContacts Capability = "create_contacts"
	EditContacts   Capability = "edit_contacts"
	DeleteContacts Capability = "delete_contacts"
	ImportContacts Capability = "import_contacts"
	ExportContacts Capability = "export_contacts"
	ManageTags     Capability = "manage_tags"

	// chats
	ViewChats   Capability = "view_chats"
	ReplyChats  Capability = "reply_chats"
	AssignChats Capability = "assign_chats"
	CloseChats  Capability = "close_chats"

	// broadcasts
	ViewBroadcasts   Capability = "view_broadcasts"
	CreateBroadcasts Capability = "create_broadcasts"
	SendBroadcasts   Capability = "send_broadcasts"
	CancelBroadcasts Capability = "cancel_broadcasts"
	DeleteBroadcasts Capability = "delete_broadcasts"

	// templates
	ViewTemplates   Capability = "view_templates"
	CreateTemplates Capability = "create_templates"
	EditTemplates   Capability = "edit_templates"
	DeleteTemplates Capability = "delete_templates"

	// team
	ViewTeam          Capability = "view_team"
	InviteTeamMembers Capability = "invite_team_members"
	EditTeamMembers   Capability = "edit_team_members"
	RemoveTeamMembers Capability = "remove_team_members"
	ManageRoles       Capability = "manage_roles"

	// settings
	ManageWhatsAppConnection Capability = "manage_whatsapp_connection"
	ManageWorkspaceSettings  Capability = "manage_workspace_settings"
)

const (
	// RoleOwner is granted every capability without consulting a role document.
	RoleOwner = "Owner"
	// RoleAdmin is allowed when its role document is missing (legacy workspaces
	// created before roles were stored per workspace).
	RoleAdmin = "Admin"
)

var all = []Capability{
	ViewDashboard, AccessContacts, AccessChats, AccessBroadcasts, AccessTemplates,
	AccessTeam, AccessSettings, AccessBilling,
	ViewContacts, CreateContacts, EditContacts, DeleteContacts, ImportContacts,
	ExportContacts, ManageTags,
	ViewChats, ReplyChats, AssignChats, CloseChats,
	ViewBroadcasts, CreateBroadcasts, SendBroadcasts, CancelBroadcasts, DeleteBroadcasts,
	ViewTemplates, CreateTemplates, EditTemplates, DeleteTemplates,
	ViewTeam, InviteTeamMembers, EditTeamMembers, RemoveTeamMembers, ManageRoles,
	ManageWhatsAppConnection, ManageWorkspaceSettings,
}

var known = func() map[Capability]struct{} {
	m := make(map[Capability]struct{}, len(all))
	for _, c := range all {
		m[c] = struct{}{}
	}
	return m
}()

// All returns a copy of every known capability in declaration order.
func All() []Capability {
	out := make([]Capability, len(all))
	copy(out, all)
	return out
}

func (c Capability) Valid() bool {
	_, ok := known[c]
	return ok
}

func ParseCapability(s string) (Capability, bool) {
	c := Capability(s)
	return c, c.Valid()
}

// IsOwner reports whether roleName is the owner bypass.
func IsOwner(roleName string) bool {
	return roleName == RoleOwner
}
