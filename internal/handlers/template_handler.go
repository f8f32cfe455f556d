package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/middleware"
	"wapulse/internal/models"
	"wapulse/internal/services"
)

type TemplateHandler struct {
	templates services.TemplateService
}

func NewTemplateHandler(templates services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

type templateRequest struct {
	Name     string                `json:"name" binding:"omitempty,max=512"`
	Language string                `json:"language" binding:"omitempty,max=15"`
	Category string                `json:"category" binding:"omitempty,oneof=MARKETING UTILITY AUTHENTICATION marketing utility authentication"`
	Body     string                `json:"body" binding:"omitempty,max=1024"`
	Status   models.TemplateStatus `json:"status" binding:"omitempty,oneof=DRAFT SUBMITTED APPROVED REJECTED"`
}

func (r templateRequest) input() services.TemplateInput {
	return services.TemplateInput{
		Name:     r.Name,
		Language: r.Language,
		Category: r.Category,
		Body:     r.Body,
		Status:   r.Status,
	}
}

// @Summary      List templates
// @Tags         Templates
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Success      200             {array}  models.Template
// @Router       /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	list, err := h.templates.List(c.Request.Context(), middleware.Workspace(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Get template
// @Tags         Templates
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string  true  "Workspace id"
// @Param        id              path      string  true  "Template id"
// @Success      200             {object}  models.Template
// @Router       /templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	t, err := h.templates.Get(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Create template
// @Tags         Templates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string           true  "Workspace id"
// @Param        body            body      templateRequest  true  "Template"
// @Success      201             {object}  models.Template
// @Router       /templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req templateRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.templates.Create(c.Request.Context(), middleware.Workspace(c).ID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// @Summary      Update template
// @Tags         Templates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string           true  "Workspace id"
// @Param        id              path      string           true  "Template id"
// @Param        body            body      templateRequest  true  "Changes"
// @Success      200             {object}  models.Template
// @Router       /templates/{id} [put]
func (h *TemplateHandler) Update(c *gin.Context) {
	var req templateRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.templates.Update(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id"), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Delete template
// @Tags         Templates
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Param        id              path    string  true  "Template id"
// @Success      204
// @Router       /templates/{id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.templates.Delete(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
