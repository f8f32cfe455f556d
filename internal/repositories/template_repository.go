package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"wapulse/internal/models"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *models.Template) error
	GetByID(ctx context.Context, workspaceID, id string) (*models.Template, error)
	List(ctx context.Context, workspaceID string) ([]*models.Template, error)
	Update(ctx context.Context, t *models.Template) error
	Delete(ctx context.Context, workspaceID, id string) error
}

type templateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) TemplateRepository {
	return &templateRepository{db: db}
}

const templateColumns = `id, workspace_id, name, language, category, body, status, created_at`

func (r *templateRepository) Create(ctx context.Context, t *models.Template) error {
	const q = `
		INSERT INTO templates (id, workspace_id, name, language, category, body, status, created_at)
		VALUES (:id, :workspace_id, :name, :language, :category, :body, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, t); err != nil {
		return fmt.Errorf("insert template: %w", mapErr(err))
	}
	return nil
}

func (r *templateRepository) GetByID(ctx context.Context, workspaceID, id string) (*models.Template, error) {
	var t models.Template
	q := `SELECT ` + templateColumns + ` FROM templates WHERE workspace_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &t, q, workspaceID, id); err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *templateRepository) List(ctx context.Context, workspaceID string) ([]*models.Template, error) {
	var out []*models.Template
	q := `SELECT ` + templateColumns + ` FROM templates WHERE workspace_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &out, q, workspaceID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *templateRepository) Update(ctx context.Context, t *models.Template) error {
	const q = `
		UPDATE templates
		SET name = :name, language = :language, category = :category, body = :body, status = :status
		WHERE workspace_id = :workspace_id AND id = :id`
	res, err := r.db.NamedExecContext(ctx, q, t)
	if err != nil {
		return fmt.Errorf("update template: %w", mapErr(err))
	}
	return expectAffected(res)
}

func (r *templateRepository) Delete(ctx context.Context, workspaceID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
