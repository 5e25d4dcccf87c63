package products

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
	"github.com/kuma-mall/kuma-admin/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	rows       map[int64]Product
	categories map[int64]string
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]Product), categories: map[int64]string{1: "Beverages"}}
}

func (m *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for _, p := range m.rows {
		if filters.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filters.CategoryID) {
			continue
		}
		if filters.IsActive != nil && p.IsActive != *filters.IsActive {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.SKU), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if filters.SortBy == "price" {
			if filters.SortDir == shared.SortDesc {
				return out[i].Price.GreaterThan(out[j].Price)
			}
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].Name < out[j].Name
	})
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) check(p Product) error {
	for _, existing := range m.rows {
		if existing.SKU == p.SKU && existing.ID != p.ID {
			return ErrDuplicateSKU
		}
	}
	if p.CategoryID != nil {
		if _, ok := m.categories[*p.CategoryID]; !ok {
			return ErrCategoryNotFound
		}
	}
	return nil
}

func (m *memoryRepo) Create(ctx context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(p); err != nil {
		return Product{}, err
	}
	m.nextID++
	p.ID = m.nextID
	if p.CategoryID != nil {
		p.CategoryName = m.categories[*p.CategoryID]
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.rows[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(ctx context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; !ok {
		return Product{}, ErrNotFound
	}
	if err := m.check(p); err != nil {
		return Product{}, err
	}
	m.rows[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestNormalizeRejectsBadTerms(t *testing.T) {
	cases := map[string]ProductInput{
		"blank sku":      {SKU: " ", Name: "Tea"},
		"blank name":     {SKU: "TEA-1"},
		"negative price": {SKU: "TEA-1", Name: "Tea", Price: decimal.NewFromInt(-1)},
		"sub-cent price": {SKU: "TEA-1", Name: "Tea", Price: decimal.RequireFromString("1.005")},
		"negative stock": {SKU: "TEA-1", Name: "Tea", StockQuantity: -1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := normalize(in)
			assert.ErrorIs(t, err, httpx.ErrValidation)
		})
	}

	p, err := normalize(ProductInput{SKU: " TEA-1 ", Name: "Tea", Price: decimal.RequireFromString("12500.50")})
	require.NoError(t, err)
	assert.Equal(t, "TEA-1", p.SKU)
	assert.True(t, p.IsActive)
}

func TestServiceLifecycle(t *testing.T) {
	audit := &recordingAudit{}
	svc := NewService(newMemoryRepo(), audit, nil)
	ctx := context.Background()
	category := int64(1)

	created, err := svc.Create(ctx, ProductInput{SKU: "TEA-1", Name: "Green Tea", CategoryID: &category,
		Price: decimal.NewFromInt(25000), StockQuantity: 40})
	require.NoError(t, err)
	assert.Equal(t, "Beverages", created.CategoryName)

	_, err = svc.Create(ctx, ProductInput{SKU: "TEA-1", Name: "Copy"})
	assert.ErrorIs(t, err, ErrDuplicateSKU)

	missing := int64(99)
	_, err = svc.Create(ctx, ProductInput{SKU: "TEA-2", Name: "Tea", CategoryID: &missing})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	updated, err := svc.Update(ctx, created.ID, ProductInput{SKU: "TEA-1B", Name: "Green Tea", Price: decimal.NewFromInt(20000)})
	require.NoError(t, err)
	assert.Equal(t, "TEA-1B", updated.SKU)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), ErrNotFound)

	require.Len(t, audit.logs, 3)
	assert.Equal(t, "product.update", audit.logs[1].Action)
	assert.Equal(t, "TEA-1", audit.logs[1].Meta["previous_sku"])
}

func TestHandlerListFiltersAndSort(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	category := int64(1)
	inactive := false
	for _, in := range []ProductInput{
		{SKU: "A", Name: "Apple Juice", CategoryID: &category, Price: decimal.NewFromInt(15000)},
		{SKU: "B", Name: "Black Coffee", CategoryID: &category, Price: decimal.NewFromInt(30000)},
		{SKU: "C", Name: "Cookies", Price: decimal.NewFromInt(10000), IsActive: &inactive},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	r := chi.NewRouter()
	r.Route("/products", NewHandler(nil, svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?category_id=1&sort=price&dir=desc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "B", body.Data[0].SKU)
	assert.Equal(t, 2, body.Pagination.Total)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?is_active=false", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "C", body.Data[0].SKU)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?is_active=perhaps", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerCreateAndConflict(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/products", NewHandler(nil, NewService(newMemoryRepo(), nil, nil)).MountRoutes)

	body := `{"sku":"TEA-1","name":"Green Tea","price":"25000.00","stock_quantity":12}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Price.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, 12, created.StockQuantity)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"sku":"X","name":"Y","stock_quantity":-3}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
