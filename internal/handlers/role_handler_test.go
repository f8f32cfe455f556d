package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wapulse/internal/authz"
	"wapulse/internal/models"
	"wapulse/internal/services"
)

type countingRoles struct {
	services.RoleService
	creates int
}

func (r *countingRoles) Create(context.Context, string, string, models.Permissions) (*models.Role, error) {
	r.creates++
	return &models.Role{}, nil
}

func TestListCapabilities(t *testing.T) {
	r := gin.New()
	r.GET("/roles/capabilities", NewRoleHandler(nil).Capabilities)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/roles/capabilities", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got []string
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, len(authz.All()))
	assert.Contains(t, got, string(authz.ViewTemplates))
	for _, name := range got {
		_, ok := authz.ParseCapability(name)
		assert.True(t, ok, name)
	}
}

func TestCreateRoleRejectsUnknownCapability(t *testing.T) {
	roles := &countingRoles{}
	r := gin.New()
	r.POST("/roles", NewRoleHandler(roles).Create)

	body := `{"name":"Support","permissions":{"view_templates":true,"launch_rockets":true}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/roles", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request", decodeError(t, w).Msg)
	assert.Zero(t, roles.creates)
}
