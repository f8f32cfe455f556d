package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"wapulse/internal/models"
)

const oauthStateTTL = 10 * time.Minute

var errInvalidState = errors.New("invalid oauth state")

type OAuthState struct {
	WorkspaceID string `json:"workspace_id"`
	CSRF        string `json:"csrf"`
	IssuedAt    int64  `json:"iat"`
	ExpiresAt   int64  `json:"exp"`
}

type WhatsAppConnectConfig struct {
	AppID       string
	AppSecret   string
	RedirectURL string
	ConfigID    string
	StateSecret string
}

// WhatsAppConnectService runs the Facebook embedded-signup OAuth flow that
// binds a WhatsApp number to a workspace.
type WhatsAppConnectService interface {
	AuthURL(workspaceID string) (string, error)
	Callback(ctx context.Context, code, state string) (string, error)
	Disconnect(ctx context.Context, workspaceID string) error
}

type whatsAppConnectService struct {
	oauth       oauth2.Config
	configID    string
	stateSecret []byte
	client      WhatsAppClient
	workspaces  WorkspaceService
	now         func() time.Time
}

func NewWhatsAppConnectService(cfg WhatsAppConnectConfig, client WhatsAppClient, workspaces WorkspaceService) WhatsAppConnectService {
	return &whatsAppConnectService{
		oauth: oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"whatsapp_business_management", "whatsapp_business_messaging"},
		},
		configID:    cfg.ConfigID,
		stateSecret: []byte(cfg.StateSecret),
		client:      client,
		workspaces:  workspaces,
		now:         time.Now,
	}
}

func (s *whatsAppConnectService) AuthURL(workspaceID string) (string, error) {
	if s.oauth.ClientID == "" {
		return "", fmt.Errorf("%w: whatsapp app is not configured", ErrUpstream)
	}
	now := s.now()
	state, err := s.signState(OAuthState{
		WorkspaceID: workspaceID,
		CSRF:        uuid.NewString(),
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(oauthStateTTL).Unix(),
	})
	if err != nil {
		return "", err
	}
	var opts []oauth2.AuthCodeOption
	if s.configID != "" {
		opts = append(opts, oauth2.SetAuthURLParam("config_id", s.configID))
	}
	return s.oauth.AuthCodeURL(state, opts...), nil
}

func (s *whatsAppConnectService) Callback(ctx context.Context, code, state string) (string, error) {
	st, err := s.verifyState(state)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if code == "" {
		return "", validationf("code is required")
	}
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: exchange code: %v", ErrUpstream, err)
	}
	biz, err := s.client.DescribeBusiness(ctx, token.AccessToken)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	conn := models.WhatsAppConnection{
		Connected:         true,
		BusinessAccountID: biz.BusinessAccountID,
		PhoneNumberID:     biz.PhoneNumberID,
		DisplayPhone:      biz.DisplayPhone,
		AccessToken:       token.AccessToken,
		ConnectedAt:       &now,
	}
	if err := s.workspaces.SetWhatsApp(ctx, st.WorkspaceID, conn); err != nil {
		return "", err
	}
	slog.Info("[whatsapp][connect] connected", "workspace_id", st.WorkspaceID, "phone_number_id", biz.PhoneNumberID)
	return st.WorkspaceID, nil
}

func (s *whatsAppConnectService) Disconnect(ctx context.Context, workspaceID string) error {
	if err := s.workspaces.ClearWhatsApp(ctx, workspaceID); err != nil {
		return err
	}
	slog.Info("[whatsapp][connect] disconnected", "workspace_id", workspaceID)
	return nil
}

func (s *whatsAppConnectService) signState(state OAuthState) (string, error) {
	payload, err := sonic.Marshal(state)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.stateSecret)
	mac.Write(payload)
	combined := append(payload, mac.Sum(nil)...)
	return base64.RawURLEncoding.EncodeToString(combined), nil
}

func (s *whatsAppConnectService) verifyState(encoded string) (*OAuthState, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) < sha256.Size {
		return nil, errInvalidState
	}
	payload, sig := raw[:len(raw)-sha256.Size], raw[len(raw)-sha256.Size:]

	mac := hmac.New(sha256.New, s.stateSecret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, errInvalidState
	}
	var st OAuthState
	if err := sonic.Unmarshal(payload, &st); err != nil {
		return nil, errInvalidState
	}
	if s.now().Unix() > st.ExpiresAt {
		return nil, errors.New("oauth state expired")
	}
	return &st, nil
}
