package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/authz"
	"wapulse/internal/models"
	"wapulse/internal/services"
)

type RoleLookup interface {
	GetByName(ctx context.Context, workspaceID, name string) (*models.Role, error)
}

// RequireCapability admits the request when the caller's role grants cap.
// The owner is always admitted. A role name without a role document is
// denied, except "Admin" which predates role documents.
func RequireCapability(roles RoleLookup, capability authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if authz.IsOwner(role) {
			c.Next()
			return
		}

		ws := Workspace(c)
		if ws == nil || role == "" {
			abort(c, http.StatusForbidden, "workspace context missing")
			return
		}

		doc, err := roles.GetByName(c.Request.Context(), ws.ID, role)
		if err != nil {
			if !errors.Is(err, services.ErrNotFound) {
				slog.Error("[middleware][permission] role lookup", "workspace_id", ws.ID, "role", role, "err", err)
				abort(c, http.StatusInternalServerError, "internal server error")
				return
			}
			if role == authz.RoleAdmin {
				c.Next()
				return
			}
			abort(c, http.StatusForbidden, fmt.Sprintf("role %q is not defined in this workspace", role))
			return
		}

		// TODO: deactivated roles still grant their permissions; decide whether
		// RoleDeactivated should deny before enforcing it here.
		if !doc.Permissions.Allows(capability) {
			abort(c, http.StatusForbidden, fmt.Sprintf("missing permission: %s", capability))
			return
		}
		c.Next()
	}
}
