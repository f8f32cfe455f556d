package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wapulse/internal/authz"
	"wapulse/internal/models"
	"wapulse/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTokens map[string]string

func (s stubTokens) ParseToken(raw string) (*services.Claims, error) {
	id, ok := s[raw]
	if !ok {
		return nil, services.ErrUnauthorized
	}
	return &services.Claims{AccountID: id}, nil
}

type stubResolver struct {
	ws      *models.Workspace
	members map[string]string
	err     error
}

func (s stubResolver) Resolve(_ context.Context, workspaceID, accountID string) (*models.Workspace, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	if s.ws == nil || s.ws.ID != workspaceID {
		return nil, "", services.ErrNotFound
	}
	role, ok := s.members[accountID]
	if !ok {
		return nil, "", services.ErrForbidden
	}
	return s.ws, role, nil
}

type stubRoles struct {
	roles map[string]*models.Role
	err   error
}

func (s stubRoles) GetByName(_ context.Context, _, name string) (*models.Role, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.roles[name]
	if !ok {
		return nil, services.ErrNotFound
	}
	return r, nil
}

type stubSubs struct {
	plan *models.Plan
	err  error
}

func (s stubSubs) ActiveSubscription(context.Context, string) (*models.Subscription, *models.Plan, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return &models.Subscription{ID: "sub-1"}, s.plan, nil
}

var testWorkspace = &models.Workspace{ID: "ws-1", OwnerID: "owner"}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account": AccountID(c), "role": Role(c)})
	})
	r.GET("/x", chain...)
	return r
}

func do(r http.Handler, header map[string]string, target string) *httptest.ResponseRecorder {
	if target == "" {
		target = "/x"
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(stubTokens{"good": "acct-1"}))

	w := do(r, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing or invalid Authorization header")

	w = do(r, map[string]string{"Authorization": "Basic good"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, map[string]string{"Authorization": "Bearer bad"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid or expired token")

	w = do(r, map[string]string{"Authorization": "Bearer good"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"account":"acct-1"`)
}

func TestAuthMiddlewareQueryTokenOnlyForWebsocket(t *testing.T) {
	r := newRouter(AuthMiddleware(stubTokens{"good": "acct-1"}))

	w := do(r, nil, "/x?token=good")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, map[string]string{"Upgrade": "websocket", "Connection": "Upgrade"}, "/x?token=good")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWorkspaceMiddleware(t *testing.T) {
	resolver := stubResolver{ws: testWorkspace, members: map[string]string{"owner": authz.RoleOwner, "ed": "Editor"}}
	r := newRouter(AuthMiddleware(stubTokens{"o": "owner", "e": "ed", "s": "stranger"}), WorkspaceMiddleware(resolver))

	cases := []struct {
		name   string
		header map[string]string
		code   int
		body   string
	}{
		{"missing header", map[string]string{"Authorization": "Bearer o"}, http.StatusBadRequest, "x-workspace-id header is required"},
		{"unknown workspace", map[string]string{"Authorization": "Bearer o", WorkspaceHeader: "ws-404"}, http.StatusNotFound, "workspace not found"},
		{"not a member", map[string]string{"Authorization": "Bearer s", WorkspaceHeader: "ws-1"}, http.StatusForbidden, "not a member"},
		{"owner", map[string]string{"Authorization": "Bearer o", WorkspaceHeader: "ws-1"}, http.StatusOK, `"role":"Owner"`},
		{"member role verbatim", map[string]string{"Authorization": "Bearer e", WorkspaceHeader: "ws-1"}, http.StatusOK, `"role":"Editor"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.header, "")
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}

func TestWorkspaceMiddlewareResolverFailure(t *testing.T) {
	r := newRouter(AuthMiddleware(stubTokens{"o": "owner"}), WorkspaceMiddleware(stubResolver{err: errors.New("db down")}))
	w := do(r, map[string]string{"Authorization": "Bearer o", WorkspaceHeader: "ws-1"}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func withRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxAccountID, "acct-1")
		c.Set(ctxWorkspace, testWorkspace)
		c.Set(ctxRole, role)
		c.Next()
	}
}

func TestRequireCapability(t *testing.T) {
	roles := stubRoles{roles: map[string]*models.Role{
		"Editor": {Name: "Editor", Permissions: models.Permissions{
			authz.ViewTemplates:   true,
			authz.CreateTemplates: false,
		}},
	}}

	cases := []struct {
		name string
		role string
		cap  authz.Capability
		code int
		body string
	}{
		{"owner bypasses documents", authz.RoleOwner, authz.ManageRoles, http.StatusOK, ""},
		{"admin without document", authz.RoleAdmin, authz.ManageRoles, http.StatusOK, ""},
		{"undefined role", "Support", authz.ViewTemplates, http.StatusForbidden, `role \"Support\" is not defined`},
		{"granted", "Editor", authz.ViewTemplates, http.StatusOK, ""},
		{"explicitly denied", "Editor", authz.CreateTemplates, http.StatusForbidden, "missing permission: create_templates"},
		{"absent key denies", "Editor", authz.DeleteTemplates, http.StatusForbidden, "missing permission: delete_templates"},
		{"owner match is exact", "owner", authz.ViewTemplates, http.StatusForbidden, "not defined"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(withRole(tc.role), RequireCapability(roles, tc.cap))
			w := do(r, nil, "")
			assert.Equal(t, tc.code, w.Code)
			if tc.body != "" {
				assert.Contains(t, w.Body.String(), tc.body)
			}
		})
	}
}

func TestRequireCapabilityAdminWithDocument(t *testing.T) {
	roles := stubRoles{roles: map[string]*models.Role{
		authz.RoleAdmin: {Name: authz.RoleAdmin, Permissions: models.Permissions{authz.ViewChats: true}},
	}}
	r := newRouter(withRole(authz.RoleAdmin), RequireCapability(roles, authz.ManageRoles))
	w := do(r, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "missing permission: manage_roles")
}

func TestRequireCapabilityWithoutWorkspace(t *testing.T) {
	r := newRouter(RequireCapability(stubRoles{}, authz.ViewChats))
	w := do(r, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "workspace context missing")
}

func TestRequireCapabilityLookupFailure(t *testing.T) {
	r := newRouter(withRole("Editor"), RequireCapability(stubRoles{err: errors.New("db down")}, authz.ViewChats))
	w := do(r, nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireSubscription(t *testing.T) {
	plan := &models.Plan{ID: "plan-1", Name: "Growth"}
	var gotPlan *models.Plan
	r := gin.New()
	r.GET("/x", withRole(authz.RoleOwner), RequireSubscription(stubSubs{plan: plan}), func(c *gin.Context) {
		gotPlan = Plan(c)
		require.NotNil(t, Subscription(c))
		c.Status(http.StatusNoContent)
	})
	w := do(r, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Same(t, plan, gotPlan)

	r = newRouter(withRole(authz.RoleOwner), RequireSubscription(stubSubs{err: services.ErrNoSubscription}))
	w = do(r, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "upgrade your plan")

	r = newRouter(RequireSubscription(stubSubs{plan: plan}))
	w = do(r, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitWithoutRedisPassesThrough(t *testing.T) {
	r := newRouter(RateLimit(nil, 1, time.Minute))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, nil, "").Code)
	}
}
