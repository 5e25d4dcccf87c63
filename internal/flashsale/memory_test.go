package flashsale

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kuma-mall/kuma-admin/internal/shared"
)

type memoryRepo struct {
	mu           sync.Mutex
	sales        map[int64]FlashSale
	stock        map[string]int
	keys         map[string]bool
	nextID       int64
	statusWrites int
	failStatus   map[int64]error
	listErr      error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		sales:      make(map[int64]FlashSale),
		stock:      make(map[string]int),
		keys:       make(map[string]bool),
		failStatus: make(map[int64]error),
	}
}

func (r *memoryRepo) addProduct(sku string, stock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[sku] = stock
}

func (r *memoryRepo) seed(sale FlashSale) FlashSale {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stock[sale.SKU]; !ok {
		r.stock[sale.SKU] = 100
	}
	r.nextID++
	sale.ID = r.nextID
	r.sales[sale.ID] = sale
	return sale
}

func (r *memoryRepo) snapshot(id int64) FlashSale {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sales[id]
}

func (r *memoryRepo) writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusWrites
}

func (r *memoryRepo) productStock(sku string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[sku]
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]FlashSale, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	var matched []FlashSale
	for _, sale := range r.sales {
		if filter.Search != "" && !strings.Contains(strings.ToLower(sale.SKU), strings.ToLower(filter.Search)) {
			continue
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				if sale.Status == s {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		matched = append(matched, sale)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	offset := shared.Offset(filter.Page, filter.Limit)
	if offset >= len(matched) {
		return nil, len(matched), nil
	}
	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], len(matched), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (FlashSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sale, ok := r.sales[id]
	if !ok {
		return FlashSale{}, ErrNotFound
	}
	return sale, nil
}

func (r *memoryRepo) GetBySKU(ctx context.Context, sku string) (FlashSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sale := range r.sales {
		if sale.SKU == sku {
			return sale, nil
		}
	}
	return FlashSale{}, ErrNotFound
}

func (r *memoryRepo) ProductExists(ctx context.Context, sku string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stock[sku]
	return ok, nil
}

func (r *memoryRepo) Insert(ctx context.Context, sale FlashSale) (FlashSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sales {
		if existing.SKU == sale.SKU {
			return FlashSale{}, ErrConflict
		}
	}
	r.nextID++
	sale.ID = r.nextID
	r.sales[sale.ID] = sale
	return sale, nil
}

func (r *memoryRepo) Save(ctx context.Context, sale FlashSale, expectedUpdatedAt time.Time) (FlashSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sales[sale.ID]
	if !ok {
		return FlashSale{}, ErrNotFound
	}
	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return FlashSale{}, ErrConcurrentUpdate
	}
	r.sales[sale.ID] = sale
	return sale, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sales[id]; !ok {
		return ErrNotFound
	}
	delete(r.sales, id)
	return nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failStatus[id]; err != nil {
		return false, err
	}
	sale, ok := r.sales[id]
	if !ok || sale.Status != from {
		return false, nil
	}
	sale.Status = to
	sale.UpdatedAt = at
	r.sales[id] = sale
	r.statusWrites++
	return true, nil
}

func (r *memoryRepo) ListAll(ctx context.Context) ([]FlashSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.sorted(func(FlashSale) bool { return true }), nil
}

func (r *memoryRepo) ListSoldOutCandidates(ctx context.Context) ([]FlashSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(s FlashSale) bool { return s.Quantity <= 0 && s.Status != StatusSoldOut }), nil
}

func (r *memoryRepo) sorted(keep func(FlashSale) bool) []FlashSale {
	var out []FlashSale
	for _, sale := range r.sales {
		if keep(sale) {
			out = append(out, sale)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithTx serialises transactions and rolls every change back on error.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sales := make(map[int64]FlashSale, len(r.sales))
	for k, v := range r.sales {
		sales[k] = v
	}
	stock := make(map[string]int, len(r.stock))
	for k, v := range r.stock {
		stock[k] = v
	}
	keys := make(map[string]bool, len(r.keys))
	for k, v := range r.keys {
		keys[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.sales, r.stock, r.keys = sales, stock, keys
		return err
	}
	return nil
}

func (tx *memoryTx) ClaimIdempotencyKey(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if tx.repo.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	tx.repo.keys[key] = true
	return nil
}

func (tx *memoryTx) DecrementForPurchase(ctx context.Context, id int64, quantity int, now time.Time) (FlashSale, error) {
	sale, ok := tx.repo.sales[id]
	if !ok || sale.Status != StatusActive || sale.Quantity < quantity || now.Before(sale.StartAt) || now.After(sale.EndAt) {
		return FlashSale{}, errNotPurchasable
	}
	sale.Quantity -= quantity
	if sale.Quantity <= 0 {
		sale.Status = StatusSoldOut
	}
	sale.UpdatedAt = now
	tx.repo.sales[id] = sale
	return sale, nil
}

func (tx *memoryTx) DecrementProductStock(ctx context.Context, sku string, quantity int, at time.Time) error {
	if _, ok := tx.repo.stock[sku]; !ok {
		return ErrProductNotFound
	}
	tx.repo.stock[sku] -= quantity
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []StatusChanged
	err    error
}

func (p *recordingPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) all() []StatusChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StatusChanged(nil), p.events...)
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) AddTransitions(to string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[to] += count
}

var errStore = errors.New("store unavailable")

// fixture wires a service around an in-memory store with a fixed clock.
type fixture struct {
	repo    *memoryRepo
	events  *recordingPublisher
	audit   *recordingAudit
	metrics *countingMetrics
	svc     *Service
	now     time.Time
}

func newFixture() *fixture {
	f := &fixture{
		repo:    newMemoryRepo(),
		events:  &recordingPublisher{},
		audit:   &recordingAudit{},
		metrics: &countingMetrics{},
		now:     time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.repo, f.audit, f.events, ServiceConfig{
		Metrics: f.metrics,
		Clock:   func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) sale(sku string, start, end time.Duration, qty int, stored Status) FlashSale {
	return f.repo.seed(FlashSale{
		SKU:             sku,
		StartAt:         f.now.Add(start),
		EndAt:           f.now.Add(end),
		OriginPrice:     decimal.NewFromInt(100000),
		SalePrice:       decimal.NewFromInt(75000),
		DiscountPercent: decimal.NewFromInt(25),
		Quantity:        qty,
		Status:          stored,
		CreatedAt:       f.now.Add(-24 * time.Hour),
		UpdatedAt:       f.now.Add(-24 * time.Hour),
	})
}
