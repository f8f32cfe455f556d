package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"wapulse/internal/models"
	"wapulse/internal/repositories"
)

// BroadcastQueue hands broadcasts to the background dispatcher.
type BroadcastQueue interface {
	Enqueue(broadcastID string) bool
	Cancel(broadcastID string) bool
}

type BroadcastInput struct {
	Name         string   `json:"name" binding:"required"`
	TemplateID   string   `json:"template_id" binding:"required"`
	AudienceTags []string `json:"audience_tags"`
}

type BroadcastService interface {
	List(ctx context.Context, workspaceID string) ([]*models.Broadcast, error)
	Get(ctx context.Context, workspaceID, id string) (*models.Broadcast, error)
	Create(ctx context.Context, ws *models.Workspace, createdBy string, in BroadcastInput) (*models.Broadcast, error)
	Cancel(ctx context.Context, workspaceID, id string) (*models.Broadcast, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

type broadcastService struct {
	broadcasts repositories.BroadcastRepository
	templates  repositories.TemplateRepository
	contacts   repositories.ContactRepository
	queue      BroadcastQueue
	now        func() time.Time
}

func NewBroadcastService(broadcasts repositories.BroadcastRepository, templates repositories.TemplateRepository, contacts repositories.ContactRepository, queue BroadcastQueue) BroadcastService {
	return &broadcastService{
		broadcasts: broadcasts,
		templates:  templates,
		contacts:   contacts,
		queue:      queue,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *broadcastService) List(ctx context.Context, workspaceID string) ([]*models.Broadcast, error) {
	return s.broadcasts.List(ctx, workspaceID)
}

func (s *broadcastService) Get(ctx context.Context, workspaceID, id string) (*models.Broadcast, error) {
	b, err := s.broadcasts.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return b, nil
}

func (s *broadcastService) Create(ctx context.Context, ws *models.Workspace, createdBy string, in BroadcastInput) (*models.Broadcast, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("name is required")
	}
	if !ws.WhatsApp.Connected {
		return nil, ErrWhatsAppNotConnected
	}

	tpl, err := s.templates.GetByID(ctx, ws.ID, in.TemplateID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, validationf("template not found")
		}
		return nil, err
	}
	if tpl.Status != models.TemplateApproved {
		return nil, validationf("template %q is not approved", tpl.Name)
	}

	tags := cleanTags(in.AudienceTags)
	audience, err := s.contacts.Audience(ctx, ws.ID, tags)
	if err != nil {
		return nil, err
	}
	if len(audience) == 0 {
		return nil, validationf("audience is empty")
	}

	b := &models.Broadcast{
		ID:           uuid.NewString(),
		WorkspaceID:  ws.ID,
		Name:         name,
		TemplateID:   tpl.ID,
		AudienceTags: tags,
		Status:       models.BroadcastQueued,
		Total:        len(audience),
		CreatedBy:    createdBy,
		CreatedAt:    s.now(),
	}
	if err := s.broadcasts.Create(ctx, b); err != nil {
		return nil, mapRepoErr(err)
	}

	if !s.queue.Enqueue(b.ID) {
		at := s.now()
		if err := s.broadcasts.Finish(ctx, b.ID, models.BroadcastFailed, "dispatcher queue is full", at); err != nil {
			slog.Error("[broadcast][create] mark failed", "broadcast_id", b.ID, "err", err)
		}
		return nil, ErrDispatcherUnavailable
	}
	slog.Info("[broadcast][create] queued", "broadcast_id", b.ID, "workspace_id", ws.ID, "total", b.Total)
	return b, nil
}

func (s *broadcastService) Cancel(ctx context.Context, workspaceID, id string) (*models.Broadcast, error) {
	b, err := s.broadcasts.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !b.Running() {
		return nil, validationf("broadcast is already %s", strings.ToLower(string(b.Status)))
	}

	s.queue.Cancel(b.ID)
	at := s.now()
	if err := s.broadcasts.Finish(ctx, b.ID, models.BroadcastCancelled, "", at); err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		// the dispatcher finished it first
		cur, gerr := s.broadcasts.GetByID(ctx, workspaceID, id)
		if gerr != nil {
			return nil, mapRepoErr(gerr)
		}
		return nil, validationf("broadcast is already %s", strings.ToLower(string(cur.Status)))
	}
	b.Status = models.BroadcastCancelled
	b.CompletedAt = &at
	slog.Info("[broadcast][cancel] cancelled", "broadcast_id", b.ID, "workspace_id", workspaceID)
	return b, nil
}

func (s *broadcastService) Delete(ctx context.Context, workspaceID, id string) error {
	b, err := s.broadcasts.GetByID(ctx, workspaceID, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if b.Running() {
		return ErrBroadcastRunning
	}
	return mapRepoErr(s.broadcasts.Delete(ctx, workspaceID, id))
}
