package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/ports"
)

type fakeIntegrationRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Integration
	next  int
}

func newFakeIntegrationRepo(integrations ...*domain.Integration) *fakeIntegrationRepo {
	r := &fakeIntegrationRepo{items: make(map[string]*domain.Integration)}
	for _, i := range integrations {
		r.items[i.ID] = clone(i)
	}
	return r
}

func clone(i *domain.Integration) *domain.Integration {
	c := *i
	return &c
}

func (r *fakeIntegrationRepo) Upsert(_ context.Context, integration *domain.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.items {
		if existing.OrganizationID == integration.OrganizationID &&
			existing.Platform == integration.Platform &&
			existing.Credentials.Shop == integration.Credentials.Shop {
			integration.ID = id
			r.items[id] = clone(integration)
			return nil
		}
	}
	r.next++
	integration.ID = "int_" + strconv.Itoa(r.next)
	r.items[integration.ID] = clone(integration)
	return nil
}

func (r *fakeIntegrationRepo) GetByID(_ context.Context, id string) (*domain.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.items[id]; ok {
		return clone(i), nil
	}
	return nil, nil
}

func (r *fakeIntegrationRepo) ListActiveByShop(_ context.Context, platform domain.Platform, shop string) ([]*domain.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Integration
	for _, i := range r.items {
		if i.Platform == platform && i.Credentials.Shop == shop && i.IsActive() {
			out = append(out, clone(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (r *fakeIntegrationRepo) ListByStatus(_ context.Context, platform domain.Platform, status domain.IntegrationStatus) ([]*domain.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Integration
	for _, i := range r.items {
		if i.Platform == platform && i.Status == status {
			out = append(out, clone(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (r *fakeIntegrationRepo) Update(_ context.Context, integration *domain.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[integration.ID]; !ok {
		return fmt.Errorf("integration %s not found", integration.ID)
	}
	r.items[integration.ID] = clone(integration)
	return nil
}

// fakeTransactionRepo keeps rows keyed by integration and external id with the
// same ordering guard as the storage implementations
type fakeTransactionRepo struct {
	mu      sync.Mutex
	rows    map[string]*domain.Transaction
	failFor map[string]error
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{
		rows:    make(map[string]*domain.Transaction),
		failFor: make(map[string]error),
	}
}

func txKey(integrationID, externalID string) string {
	return integrationID + "/" + externalID
}

func (r *fakeTransactionRepo) isStale(existing, tx *domain.Transaction) bool {
	return !domain.AcceptsSourceUpdate(existing.SourceUpdatedAt, existing.Status, tx.SourceUpdatedAt)
}

func (r *fakeTransactionRepo) Upsert(_ context.Context, tx *domain.Transaction) (domain.WriteOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[tx.ExternalID]; err != nil {
		return "", err
	}
	key := txKey(tx.IntegrationID, tx.ExternalID)
	existing, ok := r.rows[key]
	if !ok {
		row := *tx
		row.ID = "tx_" + tx.ExternalID
		r.rows[key] = &row
		tx.ID = row.ID
		return domain.OutcomeCreated, nil
	}
	if r.isStale(existing, tx) {
		return domain.OutcomeStale, nil
	}
	row := *tx
	row.ID = existing.ID
	row.Refunds = existing.Refunds
	r.rows[key] = &row
	return domain.OutcomeUpdated, nil
}

func (r *fakeTransactionRepo) Update(_ context.Context, tx *domain.Transaction) (domain.WriteOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := txKey(tx.IntegrationID, tx.ExternalID)
	existing, ok := r.rows[key]
	if !ok {
		return domain.OutcomeNotFound, nil
	}
	if r.isStale(existing, tx) {
		return domain.OutcomeStale, nil
	}
	row := *tx
	row.ID = existing.ID
	row.Refunds = existing.Refunds
	r.rows[key] = &row
	return domain.OutcomeUpdated, nil
}

func (r *fakeTransactionRepo) SetStatus(_ context.Context, integrationID, externalID string, status domain.TransactionStatus, sourceUpdatedAt *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[txKey(integrationID, externalID)]
	if !ok {
		return 0, nil
	}
	row.Status = status
	row.SourceUpdatedAt = domain.LaterSource(row.SourceUpdatedAt, sourceUpdatedAt)
	return 1, nil
}

func (r *fakeTransactionRepo) ApplyRefund(_ context.Context, integrationID, externalID string, refund domain.Refund) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[txKey(integrationID, externalID)]
	if !ok {
		return false, nil
	}
	row.Status = domain.TransactionStatusRefunded
	row.UpsertRefund(refund)
	row.SourceUpdatedAt = domain.LaterSource(row.SourceUpdatedAt, refund.CreatedAt)
	return true, nil
}

func (r *fakeTransactionRepo) GetByExternalID(_ context.Context, integrationID, externalID string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[txKey(integrationID, externalID)]
	if !ok {
		return nil, nil
	}
	c := *row
	return &c, nil
}

func (r *fakeTransactionRepo) ListByIntegration(_ context.Context, integrationID string, limit int) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, row := range r.rows {
		if row.IntegrationID == integrationID {
			c := *row
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ExternalID < out[b].ExternalID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTransactionRepo) DeleteByIntegration(_ context.Context, integrationID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, row := range r.rows {
		if row.IntegrationID == integrationID {
			delete(r.rows, key)
			n++
		}
	}
	return n, nil
}

// fakeShopify is an in-memory platform with per-shop subscriptions and orders
type fakeShopify struct {
	mu         sync.Mutex
	subs       []domain.WebhookSubscription
	nextID     int
	listErr    error
	createErr  map[string]error
	created    []string
	deleted    []string
	tokensSeen []string
	shopInfo   *domain.ShopInfo
	shopErr    error
	pages      [][]domain.ShopifyOrder
	failures   map[int][]ports.OrderFailure
	listOrders error
}

func newFakeShopify() *fakeShopify {
	return &fakeShopify{createErr: make(map[string]error), nextID: 1000}
}

func (f *fakeShopify) List(_ context.Context, _, token string) ([]domain.WebhookSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensSeen = append(f.tokensSeen, token)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.WebhookSubscription(nil), f.subs...), nil
}

func (f *fakeShopify) Create(_ context.Context, _, _, topic, address string) (*domain.WebhookSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[topic]; err != nil {
		return nil, err
	}
	f.nextID++
	sub := domain.WebhookSubscription{ID: strconv.Itoa(f.nextID), Topic: topic, Address: address, Format: "json"}
	f.subs = append(f.subs, sub)
	f.created = append(f.created, topic)
	return &sub, nil
}

func (f *fakeShopify) Delete(_ context.Context, _, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sub := range f.subs {
		if sub.ID == id {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			break
		}
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeShopify) GetShop(_ context.Context, shop, _ string) (*domain.ShopInfo, error) {
	if f.shopErr != nil {
		return nil, f.shopErr
	}
	if f.shopInfo != nil {
		return f.shopInfo, nil
	}
	return &domain.ShopInfo{Domain: shop, Email: "owner@example.com"}, nil
}

func (f *fakeShopify) CountOrders(context.Context, string, string, ports.OrderQuery) (int, error) {
	n := 0
	for i, p := range f.pages {
		n += len(p) + len(f.failures[i])
	}
	return n, nil
}

func (f *fakeShopify) ListOrders(_ context.Context, _, _ string, query ports.OrderQuery) (*ports.OrderPage, error) {
	if f.listOrders != nil {
		return nil, f.listOrders
	}
	idx := 0
	if query.Cursor != "" {
		idx, _ = strconv.Atoi(query.Cursor)
	}
	if idx >= len(f.pages) {
		return &ports.OrderPage{}, nil
	}
	page := &ports.OrderPage{Orders: f.pages[idx], Failures: f.failures[idx]}
	if idx+1 < len(f.pages) {
		page.NextCursor = strconv.Itoa(idx + 1)
	}
	return page, nil
}

type fakeCipher struct{}

func (fakeCipher) EncryptToken(token string) (string, error) {
	return "enc:" + token, nil
}

func (fakeCipher) DecryptToken(token string) (string, error) {
	if !strings.HasPrefix(token, "enc:") {
		return "", errors.New("not encrypted")
	}
	return strings.TrimPrefix(token, "enc:"), nil
}

type fakeHealthStore struct {
	mu       sync.Mutex
	failures map[string]int64
	records  map[string]*domain.HealthRecord
}

func newFakeHealthStore() *fakeHealthStore {
	return &fakeHealthStore{
		failures: make(map[string]int64),
		records:  make(map[string]*domain.HealthRecord),
	}
}

func (s *fakeHealthStore) IncrementFailures(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id]++
	return s.failures[id], nil
}

func (s *fakeHealthStore) ResetFailures(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, id)
	return nil
}

func (s *fakeHealthStore) SaveRecord(_ context.Context, record *domain.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.IntegrationID] = record
	return nil
}

func (s *fakeHealthStore) GetRecord(_ context.Context, id string) (*domain.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id], nil
}

type fakeProgressStore struct {
	mu    sync.Mutex
	saves int
	last  map[string]domain.ImportProgress
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{last: make(map[string]domain.ImportProgress)}
}

func (s *fakeProgressStore) Save(_ context.Context, p *domain.ImportProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.last[p.IntegrationID] = *p
	return nil
}

func (s *fakeProgressStore) Get(_ context.Context, id string) (*domain.ImportProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.last[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type fakeEventLog struct {
	mu     sync.Mutex
	events []*domain.WebhookEvent
}

func (l *fakeEventLog) LogWebhook(_ context.Context, event *domain.WebhookEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func connectedIntegration(id, shop string) *domain.Integration {
	return &domain.Integration{
		ID:             id,
		OrganizationID: "org_1",
		Platform:       domain.PlatformShopify,
		Status:         domain.IntegrationStatusConnected,
		Credentials:    domain.Credentials{Shop: shop, AccessToken: "enc:shpat_test"},
		SyncStatus:     domain.SyncStatusIdle,
	}
}
