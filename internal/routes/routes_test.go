package routes

import (
	"regexp"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"

	_ "wapulse/docs"
	"wapulse/internal/handlers"
)

var pathParam = regexp.MustCompile(`:(\w+)`)

func TestEveryRouteIsDocumented(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRoutes(gin.New(), Handlers{
		Auth:       &handlers.AuthHandler{},
		Workspaces: &handlers.WorkspaceHandler{},
		Roles:      &handlers.RoleHandler{},
		Billing:    &handlers.BillingHandler{},
		Contacts:   &handlers.ContactHandler{},
		Templates:  &handlers.TemplateHandler{},
		Broadcasts: &handlers.BroadcastHandler{},
		Chats:      &handlers.ChatHandler{},
		WhatsApp:   &handlers.WhatsAppHandler{},
	}, Guards{})

	raw, err := swag.ReadDoc()
	require.NoError(t, err)
	var doc struct {
		Paths map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, sonic.UnmarshalString(raw, &doc))

	undocumented := map[string]bool{"/healthz": true, "/metrics": true, "/swagger/*any": true}
	for _, route := range r.Routes() {
		if undocumented[route.Path] {
			continue
		}
		path := pathParam.ReplaceAllString(route.Path, "{$1}")
		ops, ok := doc.Paths[path]
		if !assert.True(t, ok, "no swagger path for %s", path) {
			continue
		}
		assert.Contains(t, ops, strings.ToLower(route.Method), "%s %s", route.Method, path)
	}
}
