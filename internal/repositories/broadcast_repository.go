package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"wapulse/internal/models"
)

type BroadcastRepository interface {
	Create(ctx context.Context, b *models.Broadcast) error
	Get(ctx context.Context, id string) (*models.Broadcast, error)
	GetByID(ctx context.Context, workspaceID, id string) (*models.Broadcast, error)
	List(ctx context.Context, workspaceID string) ([]*models.Broadcast, error)
	ListByStatus(ctx context.Context, statuses ...models.BroadcastStatus) ([]*models.Broadcast, error)
	// MarkStarted and Finish only move a QUEUED or SENDING broadcast and
	// report ErrNotFound once it has reached a final status.
	MarkStarted(ctx context.Context, id string, at time.Time) error
	AddProgress(ctx context.Context, id string, sent, failed int) error
	Finish(ctx context.Context, id string, status models.BroadcastStatus, lastError string, at time.Time) error
	Delete(ctx context.Context, workspaceID, id string) error
}

type broadcastRepository struct {
	db *sqlx.DB
}

func NewBroadcastRepository(db *sqlx.DB) BroadcastRepository {
	return &broadcastRepository{db: db}
}

const broadcastColumns = `
	id, workspace_id, name, template_id, audience_tags, status, total, sent, failed,
	last_error, created_by, created_at, started_at, completed_at`

func (r *broadcastRepository) Create(ctx context.Context, b *models.Broadcast) error {
	const q = `
		INSERT INTO broadcasts (
			id, workspace_id, name, template_id, audience_tags, status, total, sent, failed,
			last_error, created_by, created_at
		)
		VALUES (
			:id, :workspace_id, :name, :template_id, :audience_tags, :status, :total, :sent, :failed,
			:last_error, :created_by, :created_at
		)`
	if _, err := r.db.NamedExecContext(ctx, q, b); err != nil {
		return fmt.Errorf("insert broadcast: %w", mapErr(err))
	}
	return nil
}

func (r *broadcastRepository) Get(ctx context.Context, id string) (*models.Broadcast, error) {
	var b models.Broadcast
	if err := r.db.GetContext(ctx, &b, `SELECT `+broadcastColumns+` FROM broadcasts WHERE id = $1`, id); err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (r *broadcastRepository) GetByID(ctx context.Context, workspaceID, id string) (*models.Broadcast, error) {
	var b models.Broadcast
	q := `SELECT ` + broadcastColumns + ` FROM broadcasts WHERE workspace_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &b, q, workspaceID, id); err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (r *broadcastRepository) List(ctx context.Context, workspaceID string) ([]*models.Broadcast, error) {
	var out []*models.Broadcast
	q := `SELECT ` + broadcastColumns + ` FROM broadcasts WHERE workspace_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &out, q, workspaceID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *broadcastRepository) ListByStatus(ctx context.Context, statuses ...models.BroadcastStatus) ([]*models.Broadcast, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	var out []*models.Broadcast
	q := `SELECT ` + broadcastColumns + ` FROM broadcasts WHERE status = ANY($1) ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &out, q, pq.Array(names)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *broadcastRepository) MarkStarted(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE broadcasts
		SET status = $1, started_at = COALESCE(started_at, $2)
		WHERE id = $3 AND status IN ($4, $1)`
	res, err := r.db.ExecContext(ctx, q, models.BroadcastSending, at, id, models.BroadcastQueued)
	if err != nil {
		return fmt.Errorf("mark broadcast started: %w", err)
	}
	return expectAffected(res)
}

func (r *broadcastRepository) AddProgress(ctx context.Context, id string, sent, failed int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE broadcasts SET sent = sent + $1, failed = failed + $2 WHERE id = $3`, sent, failed, id)
	return err
}

func (r *broadcastRepository) Finish(ctx context.Context, id string, status models.BroadcastStatus, lastError string, at time.Time) error {
	const q = `
		UPDATE broadcasts SET status = $1, last_error = $2, completed_at = $3
		WHERE id = $4 AND status IN ($5, $6)`
	res, err := r.db.ExecContext(ctx, q, status, lastError, at, id, models.BroadcastQueued, models.BroadcastSending)
	if err != nil {
		return fmt.Errorf("finish broadcast: %w", err)
	}
	return expectAffected(res)
}

func (r *broadcastRepository) Delete(ctx context.Context, workspaceID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM broadcasts WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
