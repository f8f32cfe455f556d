package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"wapulse/internal/models"
)

// WorkspaceRepository never exposes a lookup without an explicit id or
// member filter.
type WorkspaceRepository interface {
	Create(ctx context.Context, w *models.Workspace) error
	GetByID(ctx context.Context, id string) (*models.Workspace, error)
	GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Workspace, error)
	// ListForAccount returns workspaces the account owns or is an active member of.
	ListForAccount(ctx context.Context, accountID string) ([]*models.Workspace, error)
	CountOwnedBy(ctx context.Context, accountID string) (int, error)
	UpdateSettings(ctx context.Context, w *models.Workspace) error
	UpdateTeam(ctx context.Context, id string, team models.TeamMembers) error
	UpdateWhatsApp(ctx context.Context, id string, conn models.WhatsAppConnection) error
}

type workspaceRepository struct {
	db *sqlx.DB
}

func NewWorkspaceRepository(db *sqlx.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

const workspaceColumns = `id, name, timezone, owner_id, team, whatsapp, created_at, updated_at`

func (r *workspaceRepository) Create(ctx context.Context, w *models.Workspace) error {
	const q = `
		INSERT INTO workspaces (id, name, timezone, owner_id, team, whatsapp, created_at, updated_at)
		VALUES (:id, :name, :timezone, :owner_id, :team, :whatsapp, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, w); err != nil {
		return fmt.Errorf("insert workspace: %w", mapErr(err))
	}
	return nil
}

func (r *workspaceRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	var w models.Workspace
	if err := r.db.GetContext(ctx, &w, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id); err != nil {
		return nil, mapErr(err)
	}
	return &w, nil
}

func (r *workspaceRepository) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Workspace, error) {
	q := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE whatsapp->>'phone_number_id' = $1 LIMIT 1`
	var w models.Workspace
	if err := r.db.GetContext(ctx, &w, q, phoneNumberID); err != nil {
		return nil, mapErr(err)
	}
	return &w, nil
}

func (r *workspaceRepository) ListForAccount(ctx context.Context, accountID string) ([]*models.Workspace, error) {
	member, err := json.Marshal([]map[string]string{{
		"account_id": accountID,
		"status":     string(models.MemberActive),
	}})
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + workspaceColumns + `
		FROM workspaces
		WHERE owner_id = $1 OR team @> $2::jsonb
		ORDER BY created_at ASC`
	var out []*models.Workspace
	if err := r.db.SelectContext(ctx, &out, q, accountID, string(member)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workspaceRepository) CountOwnedBy(ctx context.Context, accountID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM workspaces WHERE owner_id = $1`, accountID); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *workspaceRepository) UpdateSettings(ctx context.Context, w *models.Workspace) error {
	const q = `UPDATE workspaces SET name = :name, timezone = :timezone, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, w)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return expectAffected(res)
}

func (r *workspaceRepository) UpdateTeam(ctx context.Context, id string, team models.TeamMembers) error {
	res, err := r.db.ExecContext(ctx, `UPDATE workspaces SET team = $1, updated_at = $2 WHERE id = $3`, team, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	return expectAffected(res)
}

func (r *workspaceRepository) UpdateWhatsApp(ctx context.Context, id string, conn models.WhatsAppConnection) error {
	res, err := r.db.ExecContext(ctx, `UPDATE workspaces SET whatsapp = $1, updated_at = $2 WHERE id = $3`, conn, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update whatsapp: %w", err)
	}
	return expectAffected(res)
}
