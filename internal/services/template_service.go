package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"wapulse/internal/models"
	"wapulse/internal/repositories"
)

var templateNameRe = regexp.MustCompile(`^[a-z0-9_]{1,512}$`)

var templateCategories = map[string]struct{}{
	"MARKETING":      {},
	"UTILITY":        {},
	"AUTHENTICATION": {},
}

type TemplateInput struct {
	Name     string
	Language string
	Category string
	Body     string
	Status   models.TemplateStatus
}

type TemplateService interface {
	List(ctx context.Context, workspaceID string) ([]*models.Template, error)
	Get(ctx context.Context, workspaceID, id string) (*models.Template, error)
	Create(ctx context.Context, workspaceID string, in TemplateInput) (*models.Template, error)
	Update(ctx context.Context, workspaceID, id string, in TemplateInput) (*models.Template, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

type templateService struct {
	templates repositories.TemplateRepository
	now       func() time.Time
}

func NewTemplateService(templates repositories.TemplateRepository) TemplateService {
	return &templateService{templates: templates, now: func() time.Time { return time.Now().UTC() }}
}

func (s *templateService) List(ctx context.Context, workspaceID string) ([]*models.Template, error) {
	return s.templates.List(ctx, workspaceID)
}

func (s *templateService) Get(ctx context.Context, workspaceID, id string) (*models.Template, error) {
	t, err := s.templates.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return t, nil
}

func validateTemplate(t *models.Template) error {
	if !templateNameRe.MatchString(t.Name) {
		return validationf("template name must be lowercase letters, digits or underscores")
	}
	if t.Language == "" {
		return validationf("language is required")
	}
	if _, ok := templateCategories[t.Category]; !ok {
		return validationf("category must be MARKETING, UTILITY or AUTHENTICATION")
	}
	if strings.TrimSpace(t.Body) == "" {
		return validationf("body is required")
	}
	switch t.Status {
	case models.TemplateDraft, models.TemplateSubmitted, models.TemplateApproved, models.TemplateRejected:
	default:
		return validationf("unknown status %q", t.Status)
	}
	return nil
}

func (s *templateService) Create(ctx context.Context, workspaceID string, in TemplateInput) (*models.Template, error) {
	t := &models.Template{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        strings.TrimSpace(in.Name),
		Language:    strings.TrimSpace(in.Language),
		Category:    strings.ToUpper(strings.TrimSpace(in.Category)),
		Body:        in.Body,
		Status:      models.TemplateDraft,
		CreatedAt:   s.now(),
	}
	if in.Status != "" {
		t.Status = in.Status
	}
	if err := validateTemplate(t); err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: template %s/%s already exists", ErrConflict, t.Name, t.Language)
		}
		return nil, err
	}
	return t, nil
}

func (s *templateService) Update(ctx context.Context, workspaceID, id string, in TemplateInput) (*models.Template, error) {
	t, err := s.templates.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if in.Name != "" {
		t.Name = strings.TrimSpace(in.Name)
	}
	if in.Language != "" {
		t.Language = strings.TrimSpace(in.Language)
	}
	if in.Category != "" {
		t.Category = strings.ToUpper(strings.TrimSpace(in.Category))
	}
	if in.Body != "" {
		t.Body = in.Body
	}
	if in.Status != "" {
		t.Status = in.Status
	}
	if err := validateTemplate(t); err != nil {
		return nil, err
	}
	if err := s.templates.Update(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: template %s/%s already exists", ErrConflict, t.Name, t.Language)
		}
		return nil, mapRepoErr(err)
	}
	return t, nil
}

func (s *templateService) Delete(ctx context.Context, workspaceID, id string) error {
	return mapRepoErr(s.templates.Delete(ctx, workspaceID, id))
}
