package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// PaymentGateway creates checkout orders and verifies client-side payment
// signatures (Razorpay contract).
type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amountCents int64, currency, receipt string) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type razorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	dryRun    bool
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string, dryRun bool) PaymentGateway {
	return &razorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		dryRun:    dryRun || keyID == "",
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *razorpayGateway) KeyID() string { return g.keyID }

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrderResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

func (g *razorpayGateway) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string) (string, error) {
	if g.dryRun {
		id := "order_dry_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
		slog.Info("[billing][dry-run] order created", "order_id", id, "amount", amountCents)
		return id, nil
	}

	body, err := sonic.Marshal(razorpayOrderRequest{Amount: amountCents, Currency: currency, Receipt: receipt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: create order: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var out razorpayOrderResponse
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode order: %v", ErrUpstream, err)
	}
	if resp.StatusCode >= 300 || out.ID == "" {
		desc := http.StatusText(resp.StatusCode)
		if out.Error != nil {
			desc = out.Error.Description
		}
		return "", fmt.Errorf("%w: create order: status=%d %s", ErrUpstream, resp.StatusCode, desc)
	}
	return out.ID, nil
}

func (g *razorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(g.keySecret, orderID, paymentID, signature)
}

// VerifyPaymentSignature checks hex(HMAC-SHA256(order_id|payment_id, secret)).
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := mac.Sum(nil)
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}
