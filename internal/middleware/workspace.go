package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wapulse/internal/models"
	"wapulse/internal/services"
)

type WorkspaceResolver interface {
	Resolve(ctx context.Context, workspaceID, accountID string) (*models.Workspace, string, error)
}

// WorkspaceMiddleware loads the workspace named by the x-workspace-id header
// and the caller's role in it. It must run after AuthMiddleware and is
// evaluated on every request.
func WorkspaceMiddleware(resolver WorkspaceResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := AccountID(c)
		if accountID == "" {
			abort(c, http.StatusUnauthorized, "not authenticated")
			return
		}

		wsID := strings.TrimSpace(c.GetHeader(WorkspaceHeader))
		if wsID == "" && isWebsocket(c) {
			wsID = strings.TrimSpace(c.Query("workspace_id"))
		}
		if wsID == "" {
			abort(c, http.StatusBadRequest, "x-workspace-id header is required")
			return
		}

		ws, role, err := resolver.Resolve(c.Request.Context(), wsID, accountID)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrNotFound):
			abort(c, http.StatusNotFound, "workspace not found")
			return
		case errors.Is(err, services.ErrForbidden):
			abort(c, http.StatusForbidden, "you are not a member of this workspace")
			return
		default:
			slog.Error("[middleware][workspace] resolve", "workspace_id", wsID, "err", err)
			abort(c, http.StatusInternalServerError, "internal server error")
			return
		}

		c.Set(ctxWorkspace, ws)
		c.Set(ctxRole, role)
		c.Next()
	}
}
