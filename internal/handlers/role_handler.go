package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/authz"
	"wapulse/internal/middleware"
	"wapulse/internal/models"
	"wapulse/internal/services"
)

type RoleHandler struct {
	roles services.RoleService
}

func NewRoleHandler(roles services.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

type createRoleRequest struct {
	Name        string             `json:"name" binding:"required,max=60"`
	Permissions models.Permissions `json:"permissions" binding:"required,dive,keys,capability,endkeys"`
}

type updateRoleRequest struct {
	Name        *string            `json:"name" binding:"omitempty,min=1,max=60"`
	Status      *models.RoleStatus `json:"status" binding:"omitempty,oneof=ACTIVE DEACTIVATED"`
	Permissions models.Permissions `json:"permissions" binding:"omitempty,dive,keys,capability,endkeys"`
}

// @Summary      List roles
// @Tags         Roles
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Success      200             {array}  models.Role
// @Router       /roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context(), middleware.Workspace(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// @Summary      List capabilities
// @Description  The closed set of permission keys a role document may grant
// @Tags         Roles
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Success      200             {array}  string
// @Router       /roles/capabilities [get]
func (h *RoleHandler) Capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, authz.All())
}

// @Summary      Create role
// @Description  Permission keys must be known capabilities; the name Owner is reserved
// @Tags         Roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string             true  "Workspace id"
// @Param        body            body      createRoleRequest  true  "Role"
// @Success      201             {object}  models.Role
// @Failure      400             {object}  map[string]string
// @Failure      409             {object}  map[string]string
// @Router       /roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	var req createRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.roles.Create(c.Request.Context(), middleware.Workspace(c).ID, req.Name, req.Permissions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// @Summary      Update role
// @Tags         Roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string             true  "Workspace id"
// @Param        id              path      string             true  "Role id"
// @Param        body            body      updateRoleRequest  true  "Changes"
// @Success      200             {object}  models.Role
// @Router       /roles/{id} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	var req updateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.roles.Update(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id"), services.RoleUpdate{
		Name:        req.Name,
		Status:      req.Status,
		Permissions: req.Permissions,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// @Summary      Delete role
// @Tags         Roles
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Param        id              path    string  true  "Role id"
// @Success      204
// @Router       /roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.roles.Delete(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
