package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/printing"
	"github.com/erp/sourcing/internal/infrastructure/spreadsheet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// In-memory record store
// =============================================================================

type lineKey struct {
	inquiryID uuid.UUID
	direction sourcing.Direction
}

// memStore implements every repository the service reads and writes
type memStore struct {
	mu          sync.Mutex
	inquiries   map[uuid.UUID]sourcing.Inquiry
	batches     map[uuid.UUID]sourcing.DispatchBatch
	links       map[lineKey]uuid.UUID
	attachments []sourcing.Attachment
	history     []sourcing.ResendHistoryEntry
	suppliers   map[uuid.UUID]string
	customers   map[uuid.UUID]string
	staff       map[uuid.UUID]sourcing.StaffMember

	updateFlagsErr error
}

func newMemStore() *memStore {
	return &memStore{
		inquiries: make(map[uuid.UUID]sourcing.Inquiry),
		batches:   make(map[uuid.UUID]sourcing.DispatchBatch),
		links:     make(map[lineKey]uuid.UUID),
		suppliers: make(map[uuid.UUID]string),
		customers: make(map[uuid.UUID]string),
		staff:     make(map[uuid.UUID]sourcing.StaffMember),
	}
}

// snapshot copies the mutable state so a failed transaction can be undone
func (m *memStore) snapshot() func() {
	inquiries := make(map[uuid.UUID]sourcing.Inquiry, len(m.inquiries))
	for k, v := range m.inquiries {
		inquiries[k] = v
	}
	batches := make(map[uuid.UUID]sourcing.DispatchBatch, len(m.batches))
	for k, v := range m.batches {
		batches[k] = v
	}
	links := make(map[lineKey]uuid.UUID, len(m.links))
	for k, v := range m.links {
		links[k] = v
	}
	return func() {
		m.inquiries, m.batches, m.links = inquiries, batches, links
	}
}

func (m *memStore) isLinked(id uuid.UUID, direction sourcing.Direction) bool {
	_, ok := m.links[lineKey{id, direction}]
	return ok
}

func (m *memStore) sortedInquiries() []sourcing.Inquiry {
	all := make([]sourcing.Inquiry, 0, len(m.inquiries))
	for _, inq := range m.inquiries {
		all = append(all, inq)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return all
}

func (m *memStore) eligible(query sourcing.EligibilityQuery) []sourcing.Inquiry {
	wanted := make(map[uuid.UUID]bool, len(query.InquiryIDs))
	for _, id := range query.InquiryIDs {
		wanted[id] = true
	}
	var out []sourcing.Inquiry
	for _, inq := range m.sortedInquiries() {
		if len(wanted) > 0 && !wanted[inq.ID] {
			continue
		}
		if inq.EligibleFor(query.Direction, query.CounterpartyID, m.isLinked(inq.ID, query.Direction)) {
			out = append(out, inq)
		}
	}
	return out
}

func (m *memStore) FindEligible(_ context.Context, query sourcing.EligibilityQuery) ([]sourcing.Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eligible(query), nil
}

func (m *memStore) CountEligibleByCounterparty(_ context.Context, direction sourcing.Direction) ([]sourcing.CounterpartyCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[uuid.UUID]int64{}
	var order []uuid.UUID
	for _, inq := range m.sortedInquiries() {
		cp, ok := inq.CounterpartyFor(direction)
		if !ok || !inq.EligibleFor(direction, cp, m.isLinked(inq.ID, direction)) {
			continue
		}
		if counts[cp] == 0 {
			order = append(order, cp)
		}
		counts[cp]++
	}
	out := make([]sourcing.CounterpartyCount, len(order))
	for i, id := range order {
		out[i] = sourcing.CounterpartyCount{CounterpartyID: id, Count: counts[id]}
	}
	return out, nil
}

func (m *memStore) FindByIDs(_ context.Context, ids []uuid.UUID) ([]sourcing.Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sourcing.Inquiry
	for _, id := range ids {
		if inq, ok := m.inquiries[id]; ok {
			out = append(out, inq)
		}
	}
	return out, nil
}

// MarkDispatched is called inside memScope.Execute, which holds the lock
func (m *memStore) MarkDispatched(_ context.Context, query sourcing.EligibilityQuery, at time.Time) (int64, error) {
	var n int64
	for _, inq := range m.eligible(query) {
		var err error
		if query.Direction == sourcing.DirectionToCustomer {
			err = inq.MarkSubmittedToCustomer(at)
		} else {
			err = inq.MarkSentToSupplier(at)
		}
		if err != nil {
			continue
		}
		m.inquiries[inq.ID] = inq
		n++
	}
	return n, nil
}

// Create is called inside memScope.Execute, which holds the lock
func (m *memStore) Create(_ context.Context, batch *sourcing.DispatchBatch) error {
	for _, line := range batch.Lines {
		key := lineKey{line.InquiryID, line.Direction}
		if _, dup := m.links[key]; dup {
			return fmt.Errorf("%w: duplicate line", sourcing.ErrTransactionConflict)
		}
		m.links[key] = batch.ID
	}
	stored := *batch
	stored.Lines = append([]sourcing.BatchLine(nil), batch.Lines...)
	m.batches[batch.ID] = stored
	return nil
}

func (m *memStore) FindByID(_ context.Context, id uuid.UUID) (*sourcing.DispatchBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	batch.Lines = append([]sourcing.BatchLine(nil), batch.Lines...)
	return &batch, nil
}

func (m *memStore) UpdateDeliveryFlags(_ context.Context, id uuid.UUID, emailSent, messageSent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateFlagsErr != nil {
		return m.updateFlagsErr
	}
	batch, ok := m.batches[id]
	if !ok {
		return shared.ErrNotFound
	}
	batch.RecordDelivery(emailSent, messageSent, batch.UpdatedAt)
	m.batches[id] = batch
	return nil
}

func (m *memStore) FindResendHistory(_ context.Context, batchID uuid.UUID) ([]sourcing.ResendHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sourcing.ResendHistoryEntry
	for _, h := range m.history {
		if h.BatchID == batchID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) AppendResend(_ context.Context, entry *sourcing.ResendHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[entry.BatchID]
	if !ok {
		return shared.ErrNotFound
	}
	batch.RecordResend(entry.CreatedBy, entry.CreatedAt)
	m.batches[entry.BatchID] = batch
	m.history = append(m.history, *entry)
	return nil
}

func (m *memStore) Save(_ context.Context, a *sourcing.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments = append(m.attachments, *a)
	return nil
}

func (m *memStore) FindByBatch(_ context.Context, batchID uuid.UUID) ([]sourcing.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sourcing.Attachment
	for _, a := range m.attachments {
		if a.BatchID != nil && *a.BatchID == batchID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FindUnreferencedOlderThan(_ context.Context, cutoff time.Time, limit int) ([]sourcing.Attachment, error) {
	return nil, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	return nil
}

func (m *memStore) previewAttachments() []sourcing.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sourcing.Attachment
	for _, a := range m.attachments {
		if a.IsPreview() {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStore) FindCounterparty(_ context.Context, direction sourcing.Direction, id uuid.UUID) (*sourcing.Counterparty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := m.suppliers
	if direction == sourcing.DirectionToCustomer {
		names = m.customers
	}
	name, ok := names[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &sourcing.Counterparty{ID: id, Kind: direction.CounterpartyKind(), Name: name}, nil
}

func (m *memStore) FindNames(_ context.Context, direction sourcing.Direction, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := m.suppliers
	if direction == sourcing.DirectionToCustomer {
		names = m.customers
	}
	out := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// memStaff adapts the store's staff map to StaffRepository
type memStaff struct{ store *memStore }

func (s memStaff) FindByIDs(_ context.Context, ids []uuid.UUID) ([]sourcing.StaffMember, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	var out []sourcing.StaffMember
	for _, id := range ids {
		if m, ok := s.store.staff[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// memScope runs transactions against memStore, restoring state on error
type memScope struct {
	store *memStore
	// beforeRun simulates a concurrent writer that commits first
	beforeRun func(store *memStore)
	calls     int
}

func (s *memScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	s.calls++
	if s.beforeRun != nil {
		s.beforeRun(s.store)
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	restore := s.store.snapshot()
	if err := fn(memTx{s.store}); err != nil {
		restore()
		return err
	}
	return nil
}

type memTx struct{ store *memStore }

func (t memTx) Inquiries() sourcing.InquiryWriter { return t.store }
func (t memTx) Batches() sourcing.BatchWriter     { return t.store }

// =============================================================================
// Fixture helpers
// =============================================================================

type fixture struct {
	store    *memStore
	scope    *memScope
	storage  *memObjectStorage
	pdf      *fakeConverter
	mail     *MockMailSender
	messages *MockMessageSender
	metrics  *recordingMetrics
	base     time.Time
	seq      int
}

func newFixture() *fixture {
	store := newMemStore()
	return &fixture{
		store:    store,
		scope:    &memScope{store: store},
		storage:  newMemObjectStorage(),
		pdf:      &fakeConverter{},
		mail:     new(MockMailSender),
		messages: new(MockMessageSender),
		metrics:  &recordingMetrics{},
		base:     time.Date(2026, 4, 6, 1, 30, 0, 0, time.UTC),
	}
}

func (f *fixture) deps(idem shared.IdempotencyStore) Dependencies {
	return Dependencies{
		Inquiries:      f.store,
		Batches:        f.store,
		Attachments:    f.store,
		Counterparties: f.store,
		Staff:          memStaff{f.store},
		Scope:          f.scope,
		Storage:        f.storage,
		Renderer:       printing.NewTemplateEngine(),
		Converter:      f.pdf,
		Sheets:         spreadsheet.NewXLSXWriter(),
		Mail:           f.mail,
		Messages:       f.messages,
		Idempotency:    idem,
		Metrics:        f.metrics,
	}
}

func (f *fixture) supplier(name string) uuid.UUID {
	id := uuid.New()
	f.store.suppliers[id] = name
	return id
}

func (f *fixture) customer(name string) uuid.UUID {
	id := uuid.New()
	f.store.customers[id] = name
	return id
}

func (f *fixture) staffMember(name, email, mobile string) uuid.UUID {
	id := uuid.New()
	f.store.staff[id] = sourcing.StaffMember{ID: id, Name: name, Email: email, Mobile: mobile}
	return id
}

// inquiry adds an open inquiry; each one is a minute newer than the last
func (f *fixture) inquiry(supplierID *uuid.UUID, customerID uuid.UUID, mutate ...func(*sourcing.Inquiry)) sourcing.Inquiry {
	f.seq++
	created := f.base.Add(time.Duration(f.seq) * time.Minute)
	inq := sourcing.Inquiry{
		BaseEntity:    shared.NewBaseEntity(created),
		InquiryNumber: fmt.Sprintf("INQ-%03d", f.seq),
		Status:        sourcing.StatusOpen,
		SupplierID:    supplierID,
		CustomerID:    customerID,
		Site:          "Jurong",
		PRNumber:      "PR-7",
		ProductName:   "Gate valve",
		Quantity:      decimal.NewFromInt(3),
		Unit:          "pcs",
	}
	for _, m := range mutate {
		m(&inq)
	}
	f.store.inquiries[inq.ID] = inq
	return inq
}

func withRepresentative(id uuid.UUID) func(*sourcing.Inquiry) {
	return func(i *sourcing.Inquiry) { i.RepresentativeID = &id }
}

func withCustomerPrice(price string, at time.Time) func(*sourcing.Inquiry) {
	return func(i *sourcing.Inquiry) {
		sp := decimal.RequireFromString("1.00")
		cp := decimal.RequireFromString(price)
		margin := cp.Sub(sp)
		i.ToSupplierDate = &at
		i.SupplierOfferDate = &at
		i.SupplierPrice = &sp
		i.CustomerPrice = &cp
		i.Margin = &margin
	}
}

func ids(inquiries ...sourcing.Inquiry) []uuid.UUID {
	out := make([]uuid.UUID, len(inquiries))
	for i, inq := range inquiries {
		out[i] = inq.ID
	}
	return out
}

// =============================================================================
// Collaborator fakes
// =============================================================================

type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
	putErr  error
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (s *memObjectStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memObjectStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, shared.ErrNotFound)
	}
	return data, nil
}

func (s *memObjectStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memObjectStorage) URL(_ context.Context, key string) (string, error) {
	return "https://files.example/" + key, nil
}

func (s *memObjectStorage) keysWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// fakeConverter returns the HTML wrapped in a fake PDF header
type fakeConverter struct {
	mu       sync.Mutex
	requests []*printing.RenderRequest
	err      error
}

func (c *fakeConverter) Render(_ context.Context, req *printing.RenderRequest) (*printing.RenderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return &printing.RenderResult{PDFData: []byte("%PDF-1.7\n" + req.HTML), PageCount: 1}, nil
}

func (c *fakeConverter) lastHTML() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return ""
	}
	return c.requests[len(c.requests)-1].HTML
}

// MockMailSender is a testify mock of MailSender
type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) Send(ctx context.Context, msg *MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockMessageSender is a testify mock of MessageSender
type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) Send(ctx context.Context, recipient string, payload *MessagePayload) error {
	args := m.Called(ctx, recipient, payload)
	return args.Error(0)
}

type sendRecord struct {
	channel   string
	delivered bool
	attempts  int
}

type recordingMetrics struct {
	mu         sync.Mutex
	dispatches []string
	lines      map[string]int
	sends      []sendRecord
	renders    []string
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, operation, direction, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, operation+"/"+direction+"/"+outcome)
}

func (m *recordingMetrics) RecordLines(_ context.Context, direction string, lines int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines == nil {
		m.lines = make(map[string]int)
	}
	m.lines[direction] += lines
}

func (m *recordingMetrics) RecordSend(_ context.Context, channel string, delivered bool, attempts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, sendRecord{channel: channel, delivered: delivered, attempts: attempts})
}

func (m *recordingMetrics) RecordRender(_ context.Context, kind string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders = append(m.renders, kind)
}
