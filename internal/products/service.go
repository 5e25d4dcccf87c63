package products

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/kuma-mall/kuma-admin/internal/shared"
)

type Service struct {
	repo   Repository
	audit  shared.AuditPort
	logger *slog.Logger
}

// NewService builds Service. audit and logger may be nil.
func NewService(repo Repository, audit shared.AuditPort, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, shared.Pagination, error) {
	filters.Page, filters.Limit = shared.NormalizePage(filters.Page, filters.Limit)
	products, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in ProductInput) (Product, error) {
	product, err := normalize(in)
	if err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, "product.create", created, nil)
	return created, nil
}

// Update replaces every editable field. A SKU change carries over to the
// product's flash sale.
func (s *Service) Update(ctx context.Context, id int64, in ProductInput) (Product, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	product, err := normalize(in)
	if err != nil {
		return Product{}, err
	}
	product.ID = id
	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return Product{}, err
	}
	var extra map[string]any
	if current.SKU != updated.SKU {
		extra = map[string]any{"previous_sku": current.SKU}
	}
	s.record(ctx, "product.update", updated, extra)
	return updated, nil
}

// Delete removes a product together with its flash sale.
func (s *Service) Delete(ctx context.Context, id int64) error {
	product, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "product.delete", product, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, p Product, extra map[string]any) {
	meta := map[string]any{
		"sku":            p.SKU,
		"price":          p.Price.String(),
		"stock_quantity": p.StockQuantity,
	}
	for k, v := range extra {
		meta[k] = v
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit product", slog.String("action", action), slog.Any("error", err))
	}
}
