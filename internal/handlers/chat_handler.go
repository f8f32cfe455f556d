package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/middleware"
	"wapulse/internal/models"
	"wapulse/internal/realtime"
	"wapulse/internal/services"
)

type ChatHandler struct {
	inbox services.InboxService
	hub   *realtime.Hub
}

func NewChatHandler(inbox services.InboxService, hub *realtime.Hub) *ChatHandler {
	return &ChatHandler{inbox: inbox, hub: hub}
}

type replyRequest struct {
	Body string `json:"body" binding:"required,max=4096"`
}

type assignRequest struct {
	AccountID *string `json:"account_id" binding:"omitempty,uuid"`
}

// @Summary      List conversations
// @Tags         Chats
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true   "Workspace id"
// @Param        status          query   string  false  "OPEN or CLOSED"
// @Success      200             {array}  models.Conversation
// @Router       /chats [get]
func (h *ChatHandler) ListConversations(c *gin.Context) {
	list, err := h.inbox.ListConversations(c.Request.Context(), middleware.Workspace(c).ID, models.ConversationStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Conversation messages
// @Description  Newest first; marks the conversation as read
// @Tags         Chats
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true   "Workspace id"
// @Param        id              path    string  true   "Conversation id"
// @Param        limit           query   int     false  "Page size"
// @Param        offset          query   int     false  "Offset"
// @Success      200             {array}  models.Message
// @Router       /chats/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	msgs, err := h.inbox.Messages(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id"), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// @Summary      Reply in a conversation
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string        true  "Workspace id"
// @Param        id              path      string        true  "Conversation id"
// @Param        body            body      replyRequest  true  "Message"
// @Success      201             {object}  models.Message
// @Failure      400             {object}  map[string]string
// @Failure      502             {object}  map[string]string
// @Router       /chats/{id}/messages [post]
func (h *ChatHandler) Reply(c *gin.Context) {
	var req replyRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.inbox.Reply(c.Request.Context(), middleware.Workspace(c), c.Param("id"), middleware.AccountID(c), req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// @Summary      Assign conversation
// @Description  A null account_id unassigns
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string         true  "Workspace id"
// @Param        id              path      string         true  "Conversation id"
// @Param        body            body      assignRequest  true  "Assignee"
// @Success      200             {object}  models.Conversation
// @Router       /chats/{id}/assign [post]
func (h *ChatHandler) Assign(c *gin.Context) {
	var req assignRequest
	if !bindJSON(c, &req) {
		return
	}
	conv, err := h.inbox.Assign(c.Request.Context(), middleware.Workspace(c), c.Param("id"), req.AccountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// @Summary      Close conversation
// @Tags         Chats
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string  true  "Workspace id"
// @Param        id              path      string  true  "Conversation id"
// @Success      200             {object}  models.Conversation
// @Router       /chats/{id}/close [post]
func (h *ChatHandler) Close(c *gin.Context) {
	conv, err := h.inbox.Close(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Stream upgrades to a websocket that receives every inbox event of the
// workspace until the client disconnects.
//
// @Summary      Inbox event stream
// @Description  Websocket upgrade; browsers may pass token and workspace_id as query parameters
// @Tags         Chats
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  false  "Workspace id"
// @Param        token           query   string  false  "Session token"
// @Param        workspace_id    query   string  false  "Workspace id"
// @Success      101
// @Router       /chats/ws [get]
func (h *ChatHandler) Stream(c *gin.Context) {
	ws := middleware.Workspace(c)
	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		slog.Debug("[chat][ws] upgrade failed", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"msg": "websocket upgrade required"})
		return
	}
	h.hub.Register(ws.ID, conn)
	defer h.hub.Unregister(ws.ID, conn)
	slog.Debug("[chat][ws] connected", "workspace_id", ws.ID, "account_id", middleware.AccountID(c))

	for {
		var incoming map[string]any
		if err := conn.ReadJSON(&incoming); err != nil {
			break
		}
	}
}
