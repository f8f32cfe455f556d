package middleware

import (
	"github.com/gin-gonic/gin"

	"wapulse/internal/models"
)

const (
	ctxAccountID    = "account_id"
	ctxWorkspace    = "workspace"
	ctxRole         = "role"
	ctxSubscription = "subscription"
	ctxPlan         = "plan"

	WorkspaceHeader = "x-workspace-id"
)

func AccountID(c *gin.Context) string {
	return c.GetString(ctxAccountID)
}

func Workspace(c *gin.Context) *models.Workspace {
	v, ok := c.Get(ctxWorkspace)
	if !ok {
		return nil
	}
	ws, _ := v.(*models.Workspace)
	return ws
}

func Role(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func Subscription(c *gin.Context) *models.Subscription {
	v, ok := c.Get(ctxSubscription)
	if !ok {
		return nil
	}
	sub, _ := v.(*models.Subscription)
	return sub
}

func Plan(c *gin.Context) *models.Plan {
	v, ok := c.Get(ctxPlan)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Plan)
	return p
}

func isWebsocket(c *gin.Context) bool {
	return c.GetHeader("Upgrade") != ""
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"msg": msg})
}
