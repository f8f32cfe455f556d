package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"wapulse/internal/models"
	"wapulse/internal/repositories"
)

type ContactInput struct {
	Name       string
	Phone      string
	Email      string
	Tags       []string
	Attributes map[string]string
	OptedIn    *bool
}

type ContactService interface {
	List(ctx context.Context, workspaceID string, f models.ContactFilter) ([]*models.Contact, error)
	Get(ctx context.Context, workspaceID, id string) (*models.Contact, error)
	// Create enforces the plan's contact limit; a zero limit is unlimited.
	Create(ctx context.Context, workspaceID string, plan *models.Plan, in ContactInput) (*models.Contact, error)
	Update(ctx context.Context, workspaceID, id string, in ContactInput) (*models.Contact, error)
	Delete(ctx context.Context, workspaceID, id string) error
	Tags(ctx context.Context, workspaceID string) ([]string, error)
	AddTags(ctx context.Context, workspaceID string, ids, tags []string) (int64, error)
	RemoveTags(ctx context.Context, workspaceID string, ids, tags []string) (int64, error)
	// UpsertInbound finds or creates the contact for an inbound WhatsApp sender.
	UpsertInbound(ctx context.Context, workspaceID, phone, name string) (*models.Contact, error)
}

type contactService struct {
	contacts repositories.ContactRepository
	now      func() time.Time
}

func NewContactService(contacts repositories.ContactRepository) ContactService {
	return &contactService{contacts: contacts, now: func() time.Time { return time.Now().UTC() }}
}

func cleanTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (s *contactService) List(ctx context.Context, workspaceID string, f models.ContactFilter) ([]*models.Contact, error) {
	f.Tag = strings.ToLower(strings.TrimSpace(f.Tag))
	return s.contacts.List(ctx, workspaceID, f)
}

func (s *contactService) Get(ctx context.Context, workspaceID, id string) (*models.Contact, error) {
	c, err := s.contacts.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return c, nil
}

func (s *contactService) Create(ctx context.Context, workspaceID string, plan *models.Plan, in ContactInput) (*models.Contact, error) {
	phone := normalizeMobile(in.Phone)
	if phone == "" {
		return nil, validationf("phone is required")
	}
	if plan != nil && plan.ContactLimit > 0 {
		n, err := s.contacts.Count(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		if n >= plan.ContactLimit {
			return nil, fmt.Errorf("%w: %s allows %d contacts", ErrPlanLimit, plan.Name, plan.ContactLimit)
		}
	}
	optedIn := true
	if in.OptedIn != nil {
		optedIn = *in.OptedIn
	}
	now := s.now()
	c := &models.Contact{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        strings.TrimSpace(in.Name),
		Phone:       phone,
		Email:       normalizeEmail(in.Email),
		Tags:        pq.StringArray(cleanTags(in.Tags)),
		Attributes:  models.Attributes(in.Attributes),
		OptedIn:     optedIn,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.contacts.Create(ctx, c); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a contact with this phone already exists", ErrConflict)
		}
		return nil, err
	}
	return c, nil
}

func (s *contactService) Update(ctx context.Context, workspaceID, id string, in ContactInput) (*models.Contact, error) {
	c, err := s.contacts.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if in.Name != "" {
		c.Name = strings.TrimSpace(in.Name)
	}
	if in.Phone != "" {
		c.Phone = normalizeMobile(in.Phone)
	}
	if in.Email != "" {
		c.Email = normalizeEmail(in.Email)
	}
	if in.Tags != nil {
		c.Tags = pq.StringArray(cleanTags(in.Tags))
	}
	if in.Attributes != nil {
		c.Attributes = models.Attributes(in.Attributes)
	}
	if in.OptedIn != nil {
		c.OptedIn = *in.OptedIn
	}
	c.UpdatedAt = s.now()
	if err := s.contacts.Update(ctx, c); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a contact with this phone already exists", ErrConflict)
		}
		return nil, mapRepoErr(err)
	}
	return c, nil
}

func (s *contactService) Delete(ctx context.Context, workspaceID, id string) error {
	return mapRepoErr(s.contacts.Delete(ctx, workspaceID, id))
}

func (s *contactService) Tags(ctx context.Context, workspaceID string) ([]string, error) {
	return s.contacts.Tags(ctx, workspaceID)
}

func (s *contactService) AddTags(ctx context.Context, workspaceID string, ids, tags []string) (int64, error) {
	tags = cleanTags(tags)
	if len(ids) == 0 || len(tags) == 0 {
		return 0, validationf("contact_ids and tags are required")
	}
	return s.contacts.AddTags(ctx, workspaceID, ids, tags)
}

func (s *contactService) RemoveTags(ctx context.Context, workspaceID string, ids, tags []string) (int64, error) {
	tags = cleanTags(tags)
	if len(ids) == 0 || len(tags) == 0 {
		return 0, validationf("contact_ids and tags are required")
	}
	return s.contacts.RemoveTags(ctx, workspaceID, ids, tags)
}

func (s *contactService) UpsertInbound(ctx context.Context, workspaceID, phone, name string) (*models.Contact, error) {
	phone = normalizeMobile(phone)
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	c, err := s.contacts.GetByPhone(ctx, workspaceID, phone)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	c, err = s.Create(ctx, workspaceID, nil, ContactInput{Name: name, Phone: phone})
	if errors.Is(err, ErrConflict) {
		return s.contacts.GetByPhone(ctx, workspaceID, phone)
	}
	return c, err
}
