package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"wapulse/internal/models"
	"wapulse/internal/pdf"
	"wapulse/internal/repositories"
	"wapulse/internal/utils"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time         { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAuth(c *clock) *authService {
	return &authService{secret: []byte("test-secret"), cost: bcrypt.MinCost, now: c.now}
}

type memAccounts struct {
	repositories.AccountRepository
	mu   sync.Mutex
	byID map[string]*models.Account
}

func newMemAccounts(list ...*models.Account) *memAccounts {
	m := &memAccounts{byID: map[string]*models.Account{}}
	for _, a := range list {
		m.byID[a.ID] = a
	}
	return m
}

func (m *memAccounts) find(match func(*models.Account) bool) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if match(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// uniqueViolation mirrors what the account repository returns for a
// Postgres unique violation on the named constraint.
func uniqueViolation(constraint string) error {
	return fmt.Errorf("%w: %w", repositories.ErrDuplicate, &pq.Error{Code: "23505", Constraint: constraint})
}

func (m *memAccounts) Create(_ context.Context, a *models.Account) error {
	if _, err := m.find(func(x *models.Account) bool { return x.Email == a.Email }); err == nil {
		return uniqueViolation("accounts_email_key")
	}
	if _, err := m.find(func(x *models.Account) bool { return x.Mobile == a.Mobile }); err == nil {
		return uniqueViolation("accounts_mobile_key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.ID == id })
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Email == email })
}

func (m *memAccounts) GetByMobile(_ context.Context, mobile string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Mobile == mobile })
}

func (m *memAccounts) FindByEmailOrMobile(_ context.Context, email, mobile string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Email == email || a.Mobile == mobile })
}

func (m *memAccounts) Update(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[a.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memAccounts) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

// memCodes keeps codes in insertion order so "latest" is the last match.
type memCodes struct {
	repositories.OTPRepository
	mu      sync.Mutex
	codes   []*models.OneTimeCode
	pending map[string]*models.PendingRegistration
}

func newMemCodes() *memCodes {
	return &memCodes{pending: map[string]*models.PendingRegistration{}}
}

func (m *memCodes) Create(_ context.Context, c *models.OneTimeCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.codes = append(m.codes, &cp)
	return nil
}

func (m *memCodes) FindLatest(_ context.Context, identifier string, purpose models.OTPPurpose) (*models.OneTimeCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		c := m.codes[i]
		if c.Identifier == identifier && c.Purpose == purpose {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memCodes) FindByHash(_ context.Context, purpose models.OTPPurpose, hash string) (*models.OneTimeCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Purpose == purpose && c.CodeHash == hash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memCodes) IncrementAttempts(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.ID == id {
			c.Attempts++
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memCodes) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = m.filter(func(c *models.OneTimeCode) bool { return c.ID == id })
	return nil
}

func (m *memCodes) DeleteFor(_ context.Context, purpose models.OTPPurpose, identifiers ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = m.filter(func(c *models.OneTimeCode) bool {
		return c.Purpose == purpose && contains(identifiers, c.Identifier)
	})
	return nil
}

func (m *memCodes) CreatePending(_ context.Context, p *models.PendingRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.pending[p.ID] = &cp
	return nil
}

func (m *memCodes) GetPending(_ context.Context, id string) (*models.PendingRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memCodes) DeletePendingFor(_ context.Context, identifiers ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.pending {
		if contains(identifiers, p.Email) || contains(identifiers, p.Mobile) {
			delete(m.pending, id)
		}
	}
	return nil
}

func (m *memCodes) filter(drop func(*models.OneTimeCode) bool) []*models.OneTimeCode {
	kept := m.codes[:0]
	for _, c := range m.codes {
		if !drop(c) {
			kept = append(kept, c)
		}
	}
	return kept
}

func (m *memCodes) all(purpose models.OTPPurpose) []*models.OneTimeCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.OneTimeCode
	for _, c := range m.codes {
		if c.Purpose == purpose {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

type memWorkspaces struct {
	repositories.WorkspaceRepository
	mu   sync.Mutex
	byID map[string]*models.Workspace
}

func newMemWorkspaces(list ...*models.Workspace) *memWorkspaces {
	m := &memWorkspaces{byID: map[string]*models.Workspace{}}
	for _, w := range list {
		m.byID[w.ID] = w
	}
	return m
}

func (m *memWorkspaces) Create(_ context.Context, w *models.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.byID[w.ID] = &cp
	return nil
}

func (m *memWorkspaces) GetByID(_ context.Context, id string) (*models.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memWorkspaces) GetByPhoneNumberID(_ context.Context, phoneNumberID string) (*models.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.byID {
		if w.WhatsApp.Connected && w.WhatsApp.PhoneNumberID == phoneNumberID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memWorkspaces) CountOwnedBy(_ context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.byID {
		if w.OwnerID == accountID {
			n++
		}
	}
	return n, nil
}

func (m *memWorkspaces) ListForAccount(_ context.Context, accountID string) ([]*models.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Workspace
	for _, w := range m.byID {
		if _, ok := w.RoleOf(accountID, "Owner"); ok {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memWorkspaces) UpdateTeam(_ context.Context, id string, team models.TeamMembers) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	w.Team = team
	return nil
}

func (m *memWorkspaces) UpdateWhatsApp(_ context.Context, id string, conn models.WhatsAppConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	w.WhatsApp = conn
	return nil
}

type memRoles struct {
	repositories.RoleRepository
	roles []*models.Role
}

func (m *memRoles) GetByName(_ context.Context, workspaceID, name string) (*models.Role, error) {
	for _, r := range m.roles {
		if r.WorkspaceID == workspaceID && r.Name == name {
			return r, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memRoles) GetByID(_ context.Context, workspaceID, id string) (*models.Role, error) {
	for _, r := range m.roles {
		if r.WorkspaceID == workspaceID && r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memRoles) Create(_ context.Context, role *models.Role) error {
	if _, err := m.GetByName(context.Background(), role.WorkspaceID, role.Name); err == nil {
		return uniqueViolation("roles_workspace_id_name_key")
	}
	cp := *role
	m.roles = append(m.roles, &cp)
	return nil
}

func (m *memRoles) Update(_ context.Context, role *models.Role) error {
	for _, r := range m.roles {
		if r.WorkspaceID == role.WorkspaceID && r.Name == role.Name && r.ID != role.ID {
			return uniqueViolation("roles_workspace_id_name_key")
		}
	}
	for i, r := range m.roles {
		if r.ID == role.ID {
			cp := *role
			m.roles[i] = &cp
			return nil
		}
	}
	return repositories.ErrNotFound
}

var codePattern = regexp.MustCompile(`\d{6}`)

type sentEmail struct {
	to, code string
	purpose  models.OTPPurpose
}

type recordingEmails struct {
	mu      sync.Mutex
	otps    []sentEmail
	resets  []string
	welcome []string
	invites []string
}

func (r *recordingEmails) SendOTPEmail(_ context.Context, to, code string, purpose models.OTPPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otps = append(r.otps, sentEmail{to: to, code: code, purpose: purpose})
	return nil
}

func (r *recordingEmails) SendPasswordResetEmail(_ context.Context, _, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, link)
	return nil
}

func (r *recordingEmails) SendWelcomeEmail(_ context.Context, to, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcome = append(r.welcome, to)
	return nil
}

func (r *recordingEmails) SendTeamInviteEmail(_ context.Context, to, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invites = append(r.invites, to)
	return nil
}

func (r *recordingEmails) lastCode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.otps) == 0 {
		return ""
	}
	return r.otps[len(r.otps)-1].code
}

type recordingSMS struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSMS) SendSMS(_ context.Context, to, text string) (*utils.SendSMSResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return &utils.SendSMSResponse{}, nil
}

func (r *recordingSMS) lastCode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return codePattern.FindString(r.sent[len(r.sent)-1])
}

type recordingOps struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingOps) Notify(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memContacts struct {
	repositories.ContactRepository
	mu   sync.Mutex
	list []*models.Contact
}

func (m *memContacts) Create(_ context.Context, c *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.list {
		if x.WorkspaceID == c.WorkspaceID && x.Phone == c.Phone {
			return repositories.ErrDuplicate
		}
	}
	cp := *c
	m.list = append(m.list, &cp)
	return nil
}

func (m *memContacts) GetByPhone(_ context.Context, workspaceID, phone string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.list {
		if x.WorkspaceID == workspaceID && x.Phone == phone {
			cp := *x
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memContacts) Count(_ context.Context, workspaceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, x := range m.list {
		if x.WorkspaceID == workspaceID {
			n++
		}
	}
	return n, nil
}

func (m *memContacts) Audience(_ context.Context, workspaceID string, tags []string) ([]*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Contact
	for _, x := range m.list {
		if x.WorkspaceID != workspaceID || !x.OptedIn {
			continue
		}
		if len(tags) > 0 && !overlaps(x.Tags, tags) {
			continue
		}
		out = append(out, x)
	}
	return out, nil
}

type memChats struct {
	repositories.ChatRepository
	mu       sync.Mutex
	convs    map[string]*models.Conversation
	messages []*models.Message
	seq      int
}

func newMemChats() *memChats {
	return &memChats{convs: map[string]*models.Conversation{}}
}

func (m *memChats) OpenConversation(_ context.Context, workspaceID, contactID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.WorkspaceID == workspaceID && c.ContactID == contactID && c.Status == models.ConversationOpen {
			cp := *c
			return &cp, nil
		}
	}
	m.seq++
	c := &models.Conversation{
		ID:          fmt.Sprintf("conv-%d", m.seq),
		WorkspaceID: workspaceID,
		ContactID:   contactID,
		Status:      models.ConversationOpen,
	}
	m.convs[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *memChats) GetConversation(_ context.Context, workspaceID, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || c.WorkspaceID != workspaceID {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memChats) Touch(_ context.Context, id string, at time.Time, unread bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.LastMessageAt = &at
	if unread {
		c.UnreadCount++
	}
	return nil
}

func (m *memChats) Assign(_ context.Context, workspaceID, id string, accountID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || c.WorkspaceID != workspaceID {
		return repositories.ErrNotFound
	}
	c.AssignedTo = accountID
	return nil
}

func (m *memChats) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.WAMessageID != "" {
		for _, x := range m.messages {
			if x.WAMessageID == msg.WAMessageID {
				return repositories.ErrDuplicate
			}
		}
	}
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memChats) UpdateMessageDelivery(_ context.Context, id, waMessageID string, status models.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.messages {
		if x.ID == id {
			x.WAMessageID = waMessageID
			x.Status = status
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memChats) UpdateStatusByWAID(_ context.Context, waMessageID string, status models.MessageStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, x := range m.messages {
		if x.WAMessageID == waMessageID {
			x.Status = status
			n++
		}
	}
	return n, nil
}

type published struct {
	workspaceID, eventType string
	data                   any
}

type recordingEvents struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingEvents) Publish(workspaceID, eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{workspaceID, eventType, data})
}

type stubWhatsApp struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
	biz     *WhatsAppBusiness
}

func (s *stubWhatsApp) SendText(_ context.Context, _ models.WhatsAppConnection, to, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sent = append(s.sent, to)
	return "wamid." + to, nil
}

func (s *stubWhatsApp) SendTemplate(ctx context.Context, conn models.WhatsAppConnection, to, _, _ string) (string, error) {
	return s.SendText(ctx, conn, to, "")
}

func (s *stubWhatsApp) DescribeBusiness(context.Context, string) (*WhatsAppBusiness, error) {
	return s.biz, nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}

type memPlans struct {
	repositories.PlanRepository
	byID map[string]*models.Plan
}

func (m *memPlans) GetByID(_ context.Context, id string) (*models.Plan, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type memSubscriptions struct {
	repositories.SubscriptionRepository
	mu   sync.Mutex
	subs []*models.Subscription
}

func (m *memSubscriptions) Create(_ context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs = append(m.subs, &cp)
	return nil
}

func (m *memSubscriptions) GetActive(_ context.Context, accountID string, now time.Time) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.Subscription
	for _, sub := range m.subs {
		if sub.AccountID != accountID || sub.Status != models.SubscriptionActive || !sub.EndDate.After(now) {
			continue
		}
		if best == nil || sub.EndDate.After(best.EndDate) {
			best = sub
		}
	}
	if best == nil {
		return nil, repositories.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// memPayments settles a payment at most once, like the guarded UPDATE.
// With stale set, reads report the payment as still CREATED, the view a
// concurrent verify has before the other one commits.
type memPayments struct {
	repositories.PaymentRepository
	mu    sync.Mutex
	byID  map[string]*models.Payment
	stale bool
}

func (m *memPayments) Create(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPayments) read(match func(*models.Payment) bool) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if match(p) {
			cp := *p
			if m.stale {
				cp.Status = models.PaymentCreated
			}
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memPayments) GetByID(_ context.Context, id string) (*models.Payment, error) {
	return m.read(func(p *models.Payment) bool { return p.ID == id })
}

func (m *memPayments) GetByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	return m.read(func(p *models.Payment) bool { return p.OrderID == orderID })
}

func (m *memPayments) MarkPaid(_ context.Context, id, gatewayPaymentID string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status == models.PaymentPaid {
		return repositories.ErrNotFound
	}
	p.Status, p.GatewayPaymentID, p.PaidAt = models.PaymentPaid, &gatewayPaymentID, &paidAt
	return nil
}

func (m *memPayments) MarkFailed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status == models.PaymentPaid {
		return repositories.ErrNotFound
	}
	p.Status = models.PaymentFailed
	return nil
}

func (m *memPayments) status(id string) models.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Status
}

// stubGateway accepts the signature "good" only.
type stubGateway struct{}

func (stubGateway) KeyID() string { return "rzp_test_key" }

func (stubGateway) CreateOrder(_ context.Context, _ int64, _, receipt string) (string, error) {
	return "order_" + receipt, nil
}

func (stubGateway) VerifySignature(_, _, signature string) bool { return signature == "good" }

type stubInvoices struct{ last pdf.InvoiceData }

func (s *stubInvoices) GenerateInvoice(data pdf.InvoiceData) ([]byte, error) {
	s.last = data
	return []byte("%PDF-1.3"), nil
}
