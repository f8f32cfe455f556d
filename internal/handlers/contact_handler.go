package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/middleware"
	"wapulse/internal/models"
	"wapulse/internal/services"
)

type ContactHandler struct {
	contacts services.ContactService
}

func NewContactHandler(contacts services.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

type contactRequest struct {
	Name       string            `json:"name" binding:"max=120"`
	Phone      string            `json:"phone" binding:"omitempty,mobile"`
	Email      string            `json:"email" binding:"omitempty,email"`
	Tags       []string          `json:"tags" binding:"omitempty,max=50,dive,min=1,max=40"`
	Attributes map[string]string `json:"attributes"`
	OptedIn    *bool             `json:"opted_in"`
}

func (r contactRequest) input() services.ContactInput {
	return services.ContactInput{
		Name:       r.Name,
		Phone:      r.Phone,
		Email:      r.Email,
		Tags:       r.Tags,
		Attributes: r.Attributes,
		OptedIn:    r.OptedIn,
	}
}

type tagsRequest struct {
	ContactIDs []string `json:"contact_ids" binding:"required,min=1,dive,uuid"`
	Tags       []string `json:"tags" binding:"required,min=1,dive,min=1,max=40"`
}

// @Summary      List contacts
// @Tags         Contacts
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true   "Workspace id"
// @Param        tag             query   string  false  "Tag filter"
// @Param        q               query   string  false  "Name, phone or email search"
// @Param        limit           query   int     false  "Page size"
// @Param        offset          query   int     false  "Offset"
// @Success      200             {array}  models.Contact
// @Router       /contacts [get]
func (h *ContactHandler) List(c *gin.Context) {
	list, err := h.contacts.List(c.Request.Context(), middleware.Workspace(c).ID, models.ContactFilter{
		Tag:    c.Query("tag"),
		Query:  c.Query("q"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Get contact
// @Tags         Contacts
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string  true  "Workspace id"
// @Param        id              path      string  true  "Contact id"
// @Success      200             {object}  models.Contact
// @Router       /contacts/{id} [get]
func (h *ContactHandler) Get(c *gin.Context) {
	ct, err := h.contacts.Get(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

// @Summary      Create contact
// @Description  Requires an active subscription; the plan's contact limit applies
// @Tags         Contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string          true  "Workspace id"
// @Param        body            body      contactRequest  true  "Contact"
// @Success      201             {object}  models.Contact
// @Failure      403             {object}  map[string]string
// @Failure      409             {object}  map[string]string
// @Router       /contacts [post]
func (h *ContactHandler) Create(c *gin.Context) {
	var req contactRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := h.contacts.Create(c.Request.Context(), middleware.Workspace(c).ID, middleware.Plan(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ct)
}

// @Summary      Update contact
// @Tags         Contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string          true  "Workspace id"
// @Param        id              path      string          true  "Contact id"
// @Param        body            body      contactRequest  true  "Changes"
// @Success      200             {object}  models.Contact
// @Router       /contacts/{id} [put]
func (h *ContactHandler) Update(c *gin.Context) {
	var req contactRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := h.contacts.Update(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id"), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

// @Summary      Delete contact
// @Tags         Contacts
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Param        id              path    string  true  "Contact id"
// @Success      204
// @Router       /contacts/{id} [delete]
func (h *ContactHandler) Delete(c *gin.Context) {
	if err := h.contacts.Delete(c.Request.Context(), middleware.Workspace(c).ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      List tags
// @Tags         Contacts
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header  string  true  "Workspace id"
// @Success      200             {array}  string
// @Router       /contacts/tags [get]
func (h *ContactHandler) Tags(c *gin.Context) {
	tags, err := h.contacts.Tags(c.Request.Context(), middleware.Workspace(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// @Summary      Tag contacts
// @Tags         Contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string       true  "Workspace id"
// @Param        body            body      tagsRequest  true  "Contacts and tags"
// @Success      200             {object}  map[string]int64
// @Router       /contacts/tags [post]
func (h *ContactHandler) AddTags(c *gin.Context) {
	var req tagsRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.contacts.AddTags(c.Request.Context(), middleware.Workspace(c).ID, req.ContactIDs, req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// @Summary      Untag contacts
// @Tags         Contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        x-workspace-id  header    string       true  "Workspace id"
// @Param        body            body      tagsRequest  true  "Contacts and tags"
// @Success      200             {object}  map[string]int64
// @Router       /contacts/tags [delete]
func (h *ContactHandler) RemoveTags(c *gin.Context) {
	var req tagsRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.contacts.RemoveTags(c.Request.Context(), middleware.Workspace(c).ID, req.ContactIDs, req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
