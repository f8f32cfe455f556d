package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"wapulse/internal/models"
)

type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, workspaceID, id string) (*models.Role, error)
	GetByName(ctx context.Context, workspaceID, name string) (*models.Role, error)
	List(ctx context.Context, workspaceID string) ([]*models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, workspaceID, id string) error
}

type roleRepository struct {
	db *sqlx.DB
}

func NewRoleRepository(db *sqlx.DB) RoleRepository {
	return &roleRepository{db: db}
}

const roleColumns = `id, workspace_id, name, status, permissions, created_at, updated_at`

func (r *roleRepository) Create(ctx context.Context, role *models.Role) error {
	const q = `
		INSERT INTO roles (id, workspace_id, name, status, permissions, created_at, updated_at)
		VALUES (:id, :workspace_id, :name, :status, :permissions, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, role); err != nil {
		return fmt.Errorf("insert role: %w", mapErr(err))
	}
	return nil
}

func (r *roleRepository) GetByID(ctx context.Context, workspaceID, id string) (*models.Role, error) {
	var role models.Role
	q := `SELECT ` + roleColumns + ` FROM roles WHERE workspace_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &role, q, workspaceID, id); err != nil {
		return nil, mapErr(err)
	}
	return &role, nil
}

func (r *roleRepository) GetByName(ctx context.Context, workspaceID, name string) (*models.Role, error) {
	var role models.Role
	q := `SELECT ` + roleColumns + ` FROM roles WHERE workspace_id = $1 AND name = $2`
	if err := r.db.GetContext(ctx, &role, q, workspaceID, name); err != nil {
		return nil, mapErr(err)
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context, workspaceID string) ([]*models.Role, error) {
	var out []*models.Role
	q := `SELECT ` + roleColumns + ` FROM roles WHERE workspace_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &out, q, workspaceID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *roleRepository) Update(ctx context.Context, role *models.Role) error {
	const q = `
		UPDATE roles
		SET name = :name, status = :status, permissions = :permissions, updated_at = :updated_at
		WHERE id = :id AND workspace_id = :workspace_id`
	res, err := r.db.NamedExecContext(ctx, q, role)
	if err != nil {
		return fmt.Errorf("update role: %w", mapErr(err))
	}
	return expectAffected(res)
}

func (r *roleRepository) Delete(ctx context.Context, workspaceID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
