package categories

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Category, shared.Pagination, error) {
	filters.Page, filters.Limit = shared.NormalizePage(filters.Page, filters.Limit)
	categories, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return categories, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (Category, error) {
	category, err := normalize(in)
	if err != nil {
		return Category{}, err
	}
	created, err := s.repo.Create(ctx, category)
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, "category.create", created)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (Category, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return Category{}, err
	}
	category, err := normalize(in)
	if err != nil {
		return Category{}, err
	}
	category.ID = id
	updated, err := s.repo.Update(ctx, category)
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, "category.update", updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	category, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "category.delete", category)
	return nil
}

func (s *Service) record(ctx context.Context, action string, c Category) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "category",
		EntityID: strconv.FormatInt(c.ID, 10),
		Meta:     map[string]any{"code": c.Code},
	})
	if err != nil {
		s.logger.Warn("audit category", slog.String("action", action), slog.Any("error", err))
	}
}
