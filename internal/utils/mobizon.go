package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const mobizonSendURL = "https://api.mobizon.kz/service/message/sendsmsmessage"

// Client sends SMS through Mobizon. With DryRun or an empty key it only logs.
type Client struct {
	APIKey     string
	Sender     string
	DryRun     bool
	Endpoint   string
	HTTPClient *http.Client
}

type SendSMSResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
}

func NewClientWithOptions(apiKey, sender string, dryRun bool) *Client {
	return &Client{
		APIKey:     apiKey,
		Sender:     sender,
		DryRun:     dryRun,
		Endpoint:   mobizonSendURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SendSMS(ctx context.Context, to, text string) (*SendSMSResponse, error) {
	if c.DryRun || c.APIKey == "" || c.APIKey == "dry-run" {
		slog.Info("[mobizon][dry-run] sms", "to", to, "sender", c.Sender, "len", len(text))
		return &SendSMSResponse{Code: 0}, nil
	}

	form := url.Values{
		"apiKey":    {c.APIKey},
		"recipient": {strings.TrimPrefix(to, "+")},
		"text":      {text},
	}
	if c.Sender != "" {
		form.Set("from", c.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read sms response: %w", err)
	}

	var result SendSMSResponse
	if err := sonic.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse sms response: %w", err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("mobizon returned code %d: %s", result.Code, result.Message)
	}
	slog.Debug("[mobizon] sms sent", "to", to, "message_id", result.Data.MessageID)
	return &result, nil
}
