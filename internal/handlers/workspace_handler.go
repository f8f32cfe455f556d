package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/middleware"
	"wapulse/internal/models"
	"wapulse/internal/services"
)

type WorkspaceHandler struct {
	workspaces services.WorkspaceService
}

func NewWorkspaceHandler(workspaces services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces}
}

type createWorkspaceRequest struct {
	Name     string `json:"name" binding:"required,max=120"`
	Timezone string `json:"timezone" binding:"omitempty,timezone"`
}

type updateWorkspaceRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=120"`
	Timezone *string `json:"timezone" binding:"omitempty,timezone"`
}

type addMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,max=60"`
}

type updateMemberRequest struct {
	Role   *string              `json:"role" binding:"omitempty,min=1,max=60"`
	Status *models.MemberStatus `json:"status" binding:"omitempty,oneof=Active Inactive"`
}

type currentWorkspaceResponse struct {
	Workspace *models.Workspace `json:"workspace"`
	Role      string            `json:"role"`
}

// @Summary      List workspaces
// @Description  Workspaces the caller owns or belongs to
// @Tags         Workspaces
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.Workspace
// @Router       /workspaces [get]
func (h *WorkspaceHandler) List(c *gin.Context) {
	list, err := h.workspaces.ListForAccount(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Create workspace
// @Tags         Workspaces
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createWorkspaceRequest  true  "Workspace"
// @Success      201   {object}  models.Workspace
// @Router       /workspaces [post]
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req createWorkspaceRequest
	if !bindJSON(c, &req) {
		return
	}
	ws, err := h.workspaces.Create(c.Request.Context(), middleware.AccountID(c), req.Name, req.Timezone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws.Redacted())
}

// @Summary      Current workspace
// @Description  The workspace selected by x-workspace-id and the caller's role in it
// @Tags         Workspaces
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string  true  "Workspace id"
// @Success      200             {object}  currentWorkspaceResponse
// @Router       /workspace [get]
func (h *WorkspaceHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, currentWorkspaceResponse{
		Workspace: middleware.Workspace(c).Redacted(),
		Role:      middleware.Role(c),
	})
}

// @Summary      Update workspace settings
// @Tags         Workspaces
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string                  true  "Workspace id"
// @Param        body            body      updateWorkspaceRequest  true  "Settings"
// @Success      200             {object}  models.Workspace
// @Router       /workspace [put]
func (h *WorkspaceHandler) Update(c *gin.Context) {
	var req updateWorkspaceRequest
	if !bindJSON(c, &req) {
		return
	}
	ws, err := h.workspaces.UpdateSettings(c.Request.Context(), middleware.Workspace(c), req.Name, req.Timezone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.Redacted())
}

// @Summary      List team
// @Tags         Team
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Success      200             {array}  services.TeamMemberView
// @Router       /team [get]
func (h *WorkspaceHandler) ListTeam(c *gin.Context) {
	team, err := h.workspaces.ListTeam(c.Request.Context(), middleware.Workspace(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

// @Summary      Add team member
// @Description  Adds an existing account with the Admin role or a workspace role
// @Tags         Team
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string            true  "Workspace id"
// @Param        body            body      addMemberRequest  true  "Member"
// @Success      201             {object}  models.TeamMember
// @Failure      409             {object}  map[string]string
// @Router       /team [post]
func (h *WorkspaceHandler) AddMember(c *gin.Context) {
	var req addMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.workspaces.AddMember(c.Request.Context(), middleware.Workspace(c), req.Email, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// @Summary      Update team member
// @Tags         Team
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string               true  "Workspace id"
// @Param        accountId       path      string               true  "Account id"
// @Param        body            body      updateMemberRequest  true  "Changes"
// @Success      200             {object}  models.TeamMember
// @Router       /team/{accountId} [put]
func (h *WorkspaceHandler) UpdateMember(c *gin.Context) {
	var req updateMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.workspaces.UpdateMember(c.Request.Context(), middleware.Workspace(c), c.Param("accountId"), req.Role, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// @Summary      Remove team member
// @Tags         Team
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Param        accountId       path    string  true  "Account id"
// @Success      204
// @Router       /team/{accountId} [delete]
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	if err := h.workspaces.RemoveMember(c.Request.Context(), middleware.Workspace(c), c.Param("accountId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
