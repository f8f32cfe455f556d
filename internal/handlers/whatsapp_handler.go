package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"wapulse/internal/middleware"
	"wapulse/internal/models"
	"wapulse/internal/services"
)

const (
	codeConnected    = "WA_CONNECTED"
	codeNotConnected = "WA_NOT_CONNECTED"

	maxWebhookBody = 1 << 20
)

type WhatsAppHandler struct {
	connect     services.WhatsAppConnectService
	inbox       services.InboxService
	appSecret   string
	verifyToken string
	// frontend page the OAuth callback redirects to
	returnURL string
}

func NewWhatsAppHandler(connect services.WhatsAppConnectService, inbox services.InboxService, appSecret, verifyToken, returnURL string) *WhatsAppHandler {
	return &WhatsAppHandler{
		connect:     connect,
		inbox:       inbox,
		appSecret:   appSecret,
		verifyToken: verifyToken,
		returnURL:   returnURL,
	}
}

type whatsAppStatusResponse struct {
	Connected    bool   `json:"connected"`
	Code         string `json:"code"`
	DisplayPhone string `json:"display_phone,omitempty"`
}

// @Summary      Start WhatsApp connection
// @Description  Returns the Facebook login URL for embedded signup
// @Tags         WhatsApp
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string  true  "Workspace id"
// @Success      200             {object}  map[string]string
// @Router       /whatsapp/connect [get]
func (h *WhatsAppHandler) Connect(c *gin.Context) {
	url, err := h.connect.AuthURL(middleware.Workspace(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// @Summary      WhatsApp OAuth callback
// @Tags         WhatsApp
// @Param        code   query  string  true  "Authorization code"
// @Param        state  query  string  true  "Signed state"
// @Success      302
// @Failure      400  {object}  map[string]string
// @Router       /whatsapp/callback [get]
func (h *WhatsAppHandler) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		slog.Warn("[whatsapp][callback] denied", "error", e, "reason", c.Query("error_reason"))
		h.finish(c, "", "denied")
		return
	}
	wsID, err := h.connect.Callback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		if h.returnURL == "" {
			respondError(c, err)
			return
		}
		slog.Warn("[whatsapp][callback] failed", "err", err)
		h.finish(c, "", "failed")
		return
	}
	h.finish(c, wsID, "connected")
}

func (h *WhatsAppHandler) finish(c *gin.Context, workspaceID, result string) {
	if h.returnURL == "" {
		status := http.StatusOK
		if result != "connected" {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"msg": "whatsapp " + result, "workspace_id": workspaceID})
		return
	}
	c.Redirect(http.StatusFound, h.returnURL+"?whatsapp="+result)
}

// @Summary      WhatsApp connection status
// @Tags         WhatsApp
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string  true  "Workspace id"
// @Success      200             {object}  whatsAppStatusResponse
// @Router       /whatsapp/status [get]
func (h *WhatsAppHandler) Status(c *gin.Context) {
	ws := middleware.Workspace(c)
	if !ws.WhatsApp.Connected {
		c.JSON(http.StatusOK, whatsAppStatusResponse{Code: codeNotConnected})
		return
	}
	c.JSON(http.StatusOK, whatsAppStatusResponse{
		Connected:    true,
		Code:         codeConnected,
		DisplayPhone: ws.WhatsApp.DisplayPhone,
	})
}

// @Summary      Disconnect WhatsApp
// @Tags         WhatsApp
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Success      204
// @Router       /whatsapp [delete]
func (h *WhatsAppHandler) Disconnect(c *gin.Context) {
	if err := h.connect.Disconnect(c.Request.Context(), middleware.Workspace(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Webhook verification
// @Tags         Webhooks
// @Param        hub.mode          query  string  true  "subscribe"
// @Param        hub.verify_token  query  string  true  "Verify token"
// @Param        hub.challenge     query  string  true  "Challenge"
// @Success      200  {string}  string
// @Failure      403  {object}  map[string]string
// @Router       /webhooks/whatsapp [get]
func (h *WhatsAppHandler) VerifyWebhook(c *gin.Context) {
	if c.Query("hub.mode") != "subscribe" || h.verifyToken == "" || c.Query("hub.verify_token") != h.verifyToken {
		c.JSON(http.StatusForbidden, gin.H{"msg": "verification failed"})
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// @Summary      Webhook events
// @Description  Inbound messages and delivery statuses signed with X-Hub-Signature-256
// @Tags         Webhooks
// @Accept       json
// @Success      200
// @Failure      401  {object}  map[string]string
// @Router       /webhooks/whatsapp [post]
func (h *WhatsAppHandler) ReceiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request body"})
		return
	}
	if !services.VerifyWebhookSignature(h.appSecret, body, c.GetHeader("X-Hub-Signature-256")) {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "invalid signature"})
		return
	}

	var payload models.WebhookPayload
	if err := sonic.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request body"})
		return
	}
	if err := h.inbox.HandleWebhook(c.Request.Context(), &payload); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
