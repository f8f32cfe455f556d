package services

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"wapulse/internal/models"
)

func newConnectFixture(t *testing.T) (*whatsAppConnectService, *memWorkspaces, *clock) {
	t.Helper()
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"user-token","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenSrv.Close)

	ws := newMemWorkspaces(&models.Workspace{ID: "ws-1", OwnerID: "owner"})
	client := &stubWhatsApp{biz: &WhatsAppBusiness{BusinessAccountID: "waba-1", PhoneNumberID: "pn-1", DisplayPhone: "+1 555 0100"}}
	svc := NewWhatsAppConnectService(WhatsAppConnectConfig{
		AppID:       "app-1",
		AppSecret:   "app-secret",
		RedirectURL: "https://api.example.com/whatsapp/callback",
		ConfigID:    "cfg-1",
		StateSecret: "state-secret",
	}, client, NewWorkspaceService(ws, newMemAccounts(), &memRoles{}, &recordingEmails{})).(*whatsAppConnectService)

	c := &clock{t: testNow}
	svc.now = c.now
	svc.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:   tokenSrv.URL + "/dialog/oauth",
		TokenURL:  tokenSrv.URL + "/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return svc, ws, c
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestAuthURLCarriesSignedState(t *testing.T) {
	svc, _, _ := newConnectFixture(t)
	raw, err := svc.AuthURL("ws-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "app-1", q.Get("client_id"))
	assert.Equal(t, "cfg-1", q.Get("config_id"))
	assert.Contains(t, q.Get("scope"), "whatsapp_business_messaging")

	st, err := svc.verifyState(q.Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "ws-1", st.WorkspaceID)
	assert.NotEmpty(t, st.CSRF)
	assert.Equal(t, testNow.Add(oauthStateTTL).Unix(), st.ExpiresAt)
}

func TestVerifyStateRejectsTampering(t *testing.T) {
	svc, _, _ := newConnectFixture(t)
	raw, err := svc.AuthURL("ws-1")
	require.NoError(t, err)
	state := stateFrom(t, raw)

	decoded, err := base64.RawURLEncoding.DecodeString(state)
	require.NoError(t, err)
	decoded[2] ^= 0xff
	_, err = svc.verifyState(base64.RawURLEncoding.EncodeToString(decoded))
	assert.ErrorIs(t, err, errInvalidState)

	_, err = svc.verifyState("not-base64!")
	assert.ErrorIs(t, err, errInvalidState)

	other := *svc
	other.stateSecret = []byte("different")
	_, err = other.verifyState(state)
	assert.ErrorIs(t, err, errInvalidState)
}

func TestVerifyStateExpires(t *testing.T) {
	svc, _, c := newConnectFixture(t)
	raw, err := svc.AuthURL("ws-1")
	require.NoError(t, err)

	c.advance(oauthStateTTL + time.Second)
	_, err = svc.verifyState(stateFrom(t, raw))
	assert.Error(t, err)
}

func TestCallbackStoresConnection(t *testing.T) {
	svc, ws, _ := newConnectFixture(t)
	ctx := context.Background()
	raw, err := svc.AuthURL("ws-1")
	require.NoError(t, err)

	id, err := svc.Callback(ctx, "auth-code", stateFrom(t, raw))
	require.NoError(t, err)
	assert.Equal(t, "ws-1", id)

	got, err := ws.GetByID(ctx, "ws-1")
	require.NoError(t, err)
	assert.True(t, got.WhatsApp.Connected)
	assert.Equal(t, "pn-1", got.WhatsApp.PhoneNumberID)
	assert.Equal(t, "user-token", got.WhatsApp.AccessToken)
	require.NotNil(t, got.WhatsApp.ConnectedAt)

	require.NoError(t, svc.Disconnect(ctx, "ws-1"))
	got, err = ws.GetByID(ctx, "ws-1")
	require.NoError(t, err)
	assert.False(t, got.WhatsApp.Connected)
	assert.Empty(t, got.WhatsApp.AccessToken)
}

func TestCallbackRejectsBadState(t *testing.T) {
	svc, _, _ := newConnectFixture(t)
	_, err := svc.Callback(context.Background(), "auth-code", "garbage")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthURLRequiresApp(t *testing.T) {
	svc, _, _ := newConnectFixture(t)
	svc.oauth.ClientID = ""
	_, err := svc.AuthURL("ws-1")
	assert.ErrorIs(t, err, ErrUpstream)
}
