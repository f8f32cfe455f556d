package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"wapulse/internal/models"
)

type ContactRepository interface {
	Create(ctx context.Context, c *models.Contact) error
	GetByID(ctx context.Context, workspaceID, id string) (*models.Contact, error)
	GetByPhone(ctx context.Context, workspaceID, phone string) (*models.Contact, error)
	List(ctx context.Context, workspaceID string, f models.ContactFilter) ([]*models.Contact, error)
	Count(ctx context.Context, workspaceID string) (int, error)
	Update(ctx context.Context, c *models.Contact) error
	Delete(ctx context.Context, workspaceID, id string) error
	Tags(ctx context.Context, workspaceID string) ([]string, error)
	AddTags(ctx context.Context, workspaceID string, ids, tags []string) (int64, error)
	RemoveTags(ctx context.Context, workspaceID string, ids, tags []string) (int64, error)
	// Audience returns opted-in contacts carrying any of tags, or every
	// opted-in contact when tags is empty.
	Audience(ctx context.Context, workspaceID string, tags []string) ([]*models.Contact, error)
}

type contactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepository{db: db}
}

const contactColumns = `
	id, workspace_id, name, phone, email, tags, attributes, opted_in, created_at, updated_at`

func (r *contactRepository) Create(ctx context.Context, c *models.Contact) error {
	const q = `
		INSERT INTO contacts (
			id, workspace_id, name, phone, email, tags, attributes, opted_in, created_at, updated_at
		)
		VALUES (
			:id, :workspace_id, :name, :phone, :email, :tags, :attributes, :opted_in, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, q, c); err != nil {
		return fmt.Errorf("insert contact: %w", mapErr(err))
	}
	return nil
}

func (r *contactRepository) GetByID(ctx context.Context, workspaceID, id string) (*models.Contact, error) {
	var c models.Contact
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE workspace_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &c, q, workspaceID, id); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *contactRepository) GetByPhone(ctx context.Context, workspaceID, phone string) (*models.Contact, error) {
	var c models.Contact
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE workspace_id = $1 AND phone = $2`
	if err := r.db.GetContext(ctx, &c, q, workspaceID, phone); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *contactRepository) List(ctx context.Context, workspaceID string, f models.ContactFilter) ([]*models.Contact, error) {
	var (
		where = []string{"workspace_id = $1"}
		args  = []any{workspaceID}
	)
	if f.Tag != "" {
		args = append(args, f.Tag)
		where = append(where, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	q := fmt.Sprintf(`SELECT %s FROM contacts WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		contactColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	var out []*models.Contact
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contactRepository) Count(ctx context.Context, workspaceID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM contacts WHERE workspace_id = $1`, workspaceID); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *contactRepository) Update(ctx context.Context, c *models.Contact) error {
	const q = `
		UPDATE contacts SET
			name = :name,
			phone = :phone,
			email = :email,
			tags = :tags,
			attributes = :attributes,
			opted_in = :opted_in,
			updated_at = :updated_at
		WHERE workspace_id = :workspace_id AND id = :id`
	res, err := r.db.NamedExecContext(ctx, q, c)
	if err != nil {
		return fmt.Errorf("update contact: %w", mapErr(err))
	}
	return expectAffected(res)
}

func (r *contactRepository) Delete(ctx context.Context, workspaceID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *contactRepository) Tags(ctx context.Context, workspaceID string) ([]string, error) {
	const q = `
		SELECT DISTINCT t
		FROM contacts, unnest(tags) AS t
		WHERE workspace_id = $1
		ORDER BY t`
	var out []string
	if err := r.db.SelectContext(ctx, &out, q, workspaceID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contactRepository) AddTags(ctx context.Context, workspaceID string, ids, tags []string) (int64, error) {
	const q = `
		UPDATE contacts
		SET tags = ARRAY(SELECT DISTINCT unnest(tags || $3::text[])), updated_at = NOW()
		WHERE workspace_id = $1 AND id = ANY($2)`
	res, err := r.db.ExecContext(ctx, q, workspaceID, pq.Array(ids), pq.Array(tags))
	if err != nil {
		return 0, fmt.Errorf("add tags: %w", err)
	}
	return res.RowsAffected()
}

func (r *contactRepository) RemoveTags(ctx context.Context, workspaceID string, ids, tags []string) (int64, error) {
	const q = `
		UPDATE contacts
		SET tags = ARRAY(SELECT t FROM unnest(tags) AS t WHERE NOT t = ANY($3::text[])), updated_at = NOW()
		WHERE workspace_id = $1 AND id = ANY($2)`
	res, err := r.db.ExecContext(ctx, q, workspaceID, pq.Array(ids), pq.Array(tags))
	if err != nil {
		return 0, fmt.Errorf("remove tags: %w", err)
	}
	return res.RowsAffected()
}

func (r *contactRepository) Audience(ctx context.Context, workspaceID string, tags []string) ([]*models.Contact, error) {
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE workspace_id = $1 AND opted_in`
	args := []any{workspaceID}
	if len(tags) > 0 {
		q += ` AND tags && $2::text[]`
		args = append(args, pq.Array(tags))
	}
	q += ` ORDER BY created_at ASC, id ASC`

	var out []*models.Contact
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}
