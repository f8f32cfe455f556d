package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPaymentSignature(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("key-secret"))
	mac.Write([]byte("order_1|pay_1"))
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifyPaymentSignature("key-secret", "order_1", "pay_1", sig))
	assert.False(t, VerifyPaymentSignature("key-secret", "order_1", "pay_2", sig))
	assert.False(t, VerifyPaymentSignature("other", "order_1", "pay_1", sig))
	assert.False(t, VerifyPaymentSignature("key-secret", "order_1", "pay_1", "not-hex"))

	g := NewRazorpayGateway("rzp_key", "key-secret", "", true)
	assert.True(t, g.VerifySignature("order_1", "pay_1", sig))
}

func TestRazorpayDryRunOrder(t *testing.T) {
	g := NewRazorpayGateway("", "", "http://127.0.0.1:1", false)
	id, err := g.CreateOrder(context.Background(), 99900, "INR", "p-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "order_dry_"))
}

func TestRazorpayCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_key" || pass != "key-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
			return
		}
		var req razorpayOrderRequest
		raw, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(raw, &req); err != nil || req.Amount != 99900 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"id":"order_abc"}`))
	}))
	defer srv.Close()

	id, err := NewRazorpayGateway("rzp_key", "key-secret", srv.URL+"/", false).CreateOrder(context.Background(), 99900, "INR", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", id)

	_, err = NewRazorpayGateway("rzp_key", "wrong", srv.URL, false).CreateOrder(context.Background(), 99900, "INR", "p-1")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorContains(t, err, "Authentication failed")
}
