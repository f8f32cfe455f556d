package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"wapulse/internal/models"
)

const graphBaseURL = "https://graph.facebook.com"

// WhatsAppBusiness identifies the account and number granted during
// embedded signup.
type WhatsAppBusiness struct {
	BusinessAccountID string
	PhoneNumberID     string
	DisplayPhone      string
}

// WhatsAppClient talks to the WhatsApp Cloud API on behalf of a workspace.
type WhatsAppClient interface {
	SendText(ctx context.Context, conn models.WhatsAppConnection, to, body string) (string, error)
	SendTemplate(ctx context.Context, conn models.WhatsAppConnection, to, name, language string) (string, error)
	DescribeBusiness(ctx context.Context, accessToken string) (*WhatsAppBusiness, error)
}

type graphClient struct {
	baseURL   string
	version   string
	appID     string
	appSecret string
	http      *http.Client
}

func NewWhatsAppClient(apiVersion, appID, appSecret string) WhatsAppClient {
	return &graphClient{
		baseURL:   graphBaseURL,
		version:   apiVersion,
		appID:     appID,
		appSecret: appSecret,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

type sendMessageResponse struct {
	graphError
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (c *graphClient) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, strings.TrimLeft(path, "/"))
}

func (c *graphClient) do(ctx context.Context, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: whatsapp api: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 300 {
		var ge graphError
		_ = sonic.Unmarshal(raw, &ge)
		if ge.Error != nil {
			return fmt.Errorf("%w: whatsapp api status=%d code=%d %s", ErrUpstream, resp.StatusCode, ge.Error.Code, ge.Error.Message)
		}
		return fmt.Errorf("%w: whatsapp api status=%d", ErrUpstream, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode whatsapp response: %v", ErrUpstream, err)
	}
	return nil
}

func (c *graphClient) send(ctx context.Context, conn models.WhatsAppConnection, payload map[string]any) (string, error) {
	if !conn.Connected || conn.PhoneNumberID == "" || conn.AccessToken == "" {
		return "", ErrWhatsAppNotConnected
	}
	payload["messaging_product"] = "whatsapp"
	var out sendMessageResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint(conn.PhoneNumberID+"/messages"), conn.AccessToken, payload, &out); err != nil {
		return "", err
	}
	if len(out.Messages) == 0 {
		return "", fmt.Errorf("%w: whatsapp api returned no message id", ErrUpstream)
	}
	return out.Messages[0].ID, nil
}

func (c *graphClient) SendText(ctx context.Context, conn models.WhatsAppConnection, to, body string) (string, error) {
	return c.send(ctx, conn, map[string]any{
		"to":   strings.TrimPrefix(to, "+"),
		"type": "text",
		"text": map[string]any{"body": body},
	})
}

func (c *graphClient) SendTemplate(ctx context.Context, conn models.WhatsAppConnection, to, name, language string) (string, error) {
	return c.send(ctx, conn, map[string]any{
		"to":   strings.TrimPrefix(to, "+"),
		"type": "template",
		"template": map[string]any{
			"name":     name,
			"language": map[string]any{"code": language},
		},
	})
}

type debugTokenResponse struct {
	Data struct {
		IsValid        bool `json:"is_valid"`
		GranularScopes []struct {
			Scope     string   `json:"scope"`
			TargetIDs []string `json:"target_ids"`
		} `json:"granular_scopes"`
	} `json:"data"`
}

type phoneNumbersResponse struct {
	Data []struct {
		ID                 string `json:"id"`
		DisplayPhoneNumber string `json:"display_phone_number"`
	} `json:"data"`
}

func (c *graphClient) DescribeBusiness(ctx context.Context, accessToken string) (*WhatsAppBusiness, error) {
	q := url.Values{
		"input_token":  {accessToken},
		"access_token": {c.appID + "|" + c.appSecret},
	}
	var dbg debugTokenResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint("debug_token")+"?"+q.Encode(), "", nil, &dbg); err != nil {
		return nil, err
	}
	if !dbg.Data.IsValid {
		return nil, fmt.Errorf("%w: access token is not valid", ErrUpstream)
	}
	var wabaID string
	for _, s := range dbg.Data.GranularScopes {
		if s.Scope == "whatsapp_business_management" && len(s.TargetIDs) > 0 {
			wabaID = s.TargetIDs[0]
			break
		}
	}
	if wabaID == "" {
		return nil, validationf("no WhatsApp Business account was shared")
	}

	var phones phoneNumbersResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(wabaID+"/phone_numbers"), accessToken, nil, &phones); err != nil {
		return nil, err
	}
	if len(phones.Data) == 0 {
		return nil, validationf("the WhatsApp Business account has no phone numbers")
	}
	return &WhatsAppBusiness{
		BusinessAccountID: wabaID,
		PhoneNumberID:     phones.Data[0].ID,
		DisplayPhone:      phones.Data[0].DisplayPhoneNumber,
	}, nil
}
