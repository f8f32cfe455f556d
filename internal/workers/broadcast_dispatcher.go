package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wapulse/internal/metrics"
	"wapulse/internal/models"
	"wapulse/internal/repositories"
	"wapulse/internal/services"
)

// DispatcherStores are the repositories a dispatcher reads and writes.
type DispatcherStores struct {
	Broadcasts repositories.BroadcastRepository
	Templates  repositories.TemplateRepository
	Contacts   repositories.ContactRepository
	Workspaces repositories.WorkspaceRepository
	Chats      repositories.ChatRepository
}

// Dispatcher sends queued broadcasts on a fixed pool of workers. Every
// broadcast runs under its own cancellable context so it can be stopped
// individually or together with the server.
type Dispatcher struct {
	stores  DispatcherStores
	client  services.WhatsAppClient
	workers int
	queue   chan string

	mu      sync.Mutex
	running map[string]context.CancelFunc
	// queued holds ids waiting in the channel; true marks a cancel that
	// arrived before a worker picked the id up.
	queued map[string]bool

	now func() time.Time
}

func NewDispatcher(stores DispatcherStores, client services.WhatsAppClient, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		stores:    stores,
		client:    client,
		workers:   workers,
		queue:     make(chan string, queueSize),
		running: make(map[string]context.CancelFunc),
		queued:  make(map[string]bool),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue never blocks; it reports false when the queue is full.
func (d *Dispatcher) Enqueue(broadcastID string) bool {
	d.markQueued(broadcastID)
	select {
	case d.queue <- broadcastID:
		return true
	default:
		d.mu.Lock()
		delete(d.queued, broadcastID)
		d.mu.Unlock()
		return false
	}
}

func (d *Dispatcher) markQueued(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.queued[id]; !ok {
		d.queued[id] = false
	}
}

// Cancel stops a running broadcast, or marks a queued one so a worker skips
// it. It reports whether a running task was interrupted.
func (d *Dispatcher) Cancel(broadcastID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cancel, ok := d.running[broadcastID]; ok {
		cancel()
		return true
	}
	if _, ok := d.queued[broadcastID]; ok {
		d.queued[broadcastID] = true
	}
	return false
}

// Run blocks until ctx is done. Broadcasts left QUEUED or SENDING by a
// previous process are queued again first.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("[broadcast][dispatcher] started", "workers", d.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			d.work(gctx)
			return nil
		})
	}
	g.Go(func() error {
		d.requeue(gctx)
		return nil
	})
	err := g.Wait()
	slog.Info("[broadcast][dispatcher] stopped")
	return err
}

func (d *Dispatcher) requeue(ctx context.Context) {
	pending, err := d.stores.Broadcasts.ListByStatus(ctx, models.BroadcastQueued, models.BroadcastSending)
	if err != nil {
		slog.Error("[broadcast][dispatcher] list pending", "err", err)
		return
	}
	for _, b := range pending {
		d.markQueued(b.ID)
		select {
		case d.queue <- b.ID:
			slog.Info("[broadcast][dispatcher] requeued", "broadcast_id", b.ID, "status", b.Status)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.queue:
			d.process(ctx, id)
		}
	}
}

func (d *Dispatcher) begin(ctx context.Context, id string) (context.Context, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cancelled := d.queued[id]
	delete(d.queued, id)
	if cancelled {
		return nil, false
	}
	bctx, cancel := context.WithCancel(ctx)
	d.running[id] = cancel
	return bctx, true
}

func (d *Dispatcher) end(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cancel, ok := d.running[id]; ok {
		cancel()
		delete(d.running, id)
	}
}

func (d *Dispatcher) process(ctx context.Context, id string) {
	bctx, ok := d.begin(ctx, id)
	if !ok {
		slog.Info("[broadcast][dispatcher] skipped cancelled", "broadcast_id", id)
		return
	}
	defer d.end(id)

	b, err := d.stores.Broadcasts.Get(bctx, id)
	if err != nil {
		slog.Error("[broadcast][dispatcher] load", "broadcast_id", id, "err", err)
		return
	}
	if !b.Running() {
		return
	}

	ws, err := d.stores.Workspaces.GetByID(bctx, b.WorkspaceID)
	if err != nil {
		d.fail(ctx, b, err)
		return
	}
	if !ws.WhatsApp.Connected {
		d.fail(ctx, b, services.ErrWhatsAppNotConnected)
		return
	}
	tpl, err := d.stores.Templates.GetByID(bctx, ws.ID, b.TemplateID)
	if err != nil {
		d.fail(ctx, b, err)
		return
	}
	audience, err := d.stores.Contacts.Audience(bctx, ws.ID, b.AudienceTags)
	if err != nil {
		d.fail(ctx, b, err)
		return
	}
	if err := d.stores.Broadcasts.MarkStarted(bctx, b.ID, d.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			slog.Info("[broadcast][dispatcher] no longer pending", "broadcast_id", b.ID)
			return
		}
		d.fail(ctx, b, err)
		return
	}

	// Recipients before the recorded progress were handled by an earlier run.
	done := b.Sent + b.Failed
	if done > len(audience) {
		done = len(audience)
	}
	sent, failed := b.Sent, b.Failed
	var lastErr string

	for _, c := range audience[done:] {
		if bctx.Err() != nil {
			break
		}
		waID, err := d.client.SendTemplate(bctx, ws.WhatsApp, c.Phone, tpl.Name, tpl.Language)
		if err != nil {
			if bctx.Err() != nil {
				break
			}
			failed++
			lastErr = err.Error()
			metrics.BroadcastMessages.WithLabelValues("failed").Inc()
			slog.Warn("[broadcast][dispatcher] send failed", "broadcast_id", b.ID, "contact_id", c.ID, "err", err)
			if err := d.stores.Broadcasts.AddProgress(ctx, b.ID, 0, 1); err != nil {
				slog.Error("[broadcast][dispatcher] progress", "broadcast_id", b.ID, "err", err)
			}
			continue
		}
		sent++
		metrics.BroadcastMessages.WithLabelValues("sent").Inc()
		if err := d.stores.Broadcasts.AddProgress(ctx, b.ID, 1, 0); err != nil {
			slog.Error("[broadcast][dispatcher] progress", "broadcast_id", b.ID, "err", err)
		}
		d.record(ctx, ws.ID, c, tpl, waID)
	}

	switch {
	case ctx.Err() != nil:
		// shutdown: stays SENDING and resumes on next start
		slog.Info("[broadcast][dispatcher] interrupted", "broadcast_id", b.ID, "sent", sent, "failed", failed)
		return
	case bctx.Err() != nil:
		d.finish(ctx, b.ID, models.BroadcastCancelled, "")
	case sent == 0 && failed > 0:
		d.finish(ctx, b.ID, models.BroadcastFailed, lastErr)
	default:
		d.finish(ctx, b.ID, models.BroadcastCompleted, lastErr)
	}
	slog.Info("[broadcast][dispatcher] finished", "broadcast_id", b.ID, "sent", sent, "failed", failed)
}

// record stores the outbound template message in the contact's conversation.
func (d *Dispatcher) record(ctx context.Context, workspaceID string, c *models.Contact, tpl *models.Template, waID string) {
	conv, err := d.stores.Chats.OpenConversation(ctx, workspaceID, c.ID)
	if err != nil {
		slog.Warn("[broadcast][dispatcher] open conversation", "contact_id", c.ID, "err", err)
		return
	}
	at := d.now()
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Direction:      models.DirectionOut,
		Body:           tpl.Body,
		WAMessageID:    waID,
		Status:         models.MessageSent,
		CreatedAt:      at,
	}
	if err := d.stores.Chats.CreateMessage(ctx, msg); err != nil {
		slog.Warn("[broadcast][dispatcher] record message", "contact_id", c.ID, "err", err)
		return
	}
	_ = d.stores.Chats.Touch(ctx, conv.ID, at, false)
}

func (d *Dispatcher) fail(ctx context.Context, b *models.Broadcast, cause error) {
	if ctx.Err() != nil {
		return
	}
	if errors.Is(cause, context.Canceled) {
		d.finish(ctx, b.ID, models.BroadcastCancelled, "")
		return
	}
	slog.Error("[broadcast][dispatcher] failed", "broadcast_id", b.ID, "err", cause)
	d.finish(ctx, b.ID, models.BroadcastFailed, cause.Error())
}

func (d *Dispatcher) finish(ctx context.Context, id string, status models.BroadcastStatus, lastError string) {
	err := d.stores.Broadcasts.Finish(ctx, id, status, lastError, d.now())
	if errors.Is(err, repositories.ErrNotFound) {
		slog.Info("[broadcast][dispatcher] already finished elsewhere", "broadcast_id", id, "status", status)
		return
	}
	if err != nil {
		slog.Error("[broadcast][dispatcher] finish", "broadcast_id", id, "status", status, "err", err)
	}
}
