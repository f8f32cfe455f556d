package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/middleware"
	"wapulse/internal/services"
)

type BroadcastHandler struct {
	broadcasts services.BroadcastService
}

func NewBroadcastHandler(broadcasts services.BroadcastService) *BroadcastHandler {
	return &BroadcastHandler{broadcasts: broadcasts}
}

// @Summary      List broadcasts
// @Tags         Broadcasts
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Success      200             {array}  models.Broadcast
// @Router       /broadcasts [get]
func (h *BroadcastHandler) List(c *gin.Context) {
	list, err := h.broadcasts.List(c.Request.Context(), middleware.Workspace(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Get broadcast
// @Tags         Broadcasts
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string  true  "Workspace id"
// @Param        id              path      string  true  "Broadcast id"
// @Success      200             {object}  models.Broadcast
// @Router       /broadcasts/{id} [get]
func (h *BroadcastHandler) Get(c *gin.Context) {
	b, err := h.broadcasts.Get(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// @Summary      Send broadcast
// @Description  Queues an approved template for every opted-in contact matching the audience tags
// @Tags         Broadcasts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string                   true  "Workspace id"
// @Param        body            body      services.BroadcastInput  true  "Broadcast"
// @Success      202             {object}  models.Broadcast
// @Failure      400             {object}  map[string]string
// @Failure      503             {object}  map[string]string
// @Router       /broadcasts [post]
func (h *BroadcastHandler) Create(c *gin.Context) {
	var req services.BroadcastInput
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.broadcasts.Create(c.Request.Context(), middleware.Workspace(c), middleware.AccountID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, b)
}

// @Summary      Cancel broadcast
// @Tags         Broadcasts
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string  true  "Workspace id"
// @Param        id              path      string  true  "Broadcast id"
// @Success      200             {object}  models.Broadcast
// @Router       /broadcasts/{id}/cancel [post]
func (h *BroadcastHandler) Cancel(c *gin.Context) {
	b, err := h.broadcasts.Cancel(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// @Summary      Delete broadcast
// @Tags         Broadcasts
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Param        id              path    string  true  "Broadcast id"
// @Success      204
// @Failure      409  {object}  map[string]string
// @Router       /broadcasts/{id} [delete]
func (h *BroadcastHandler) Delete(c *gin.Context) {
	if err := h.broadcasts.Delete(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
