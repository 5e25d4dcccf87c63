package audit

import (
	"context"
	"errors"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// exportLimit caps a single CSV export.
	exportLimit = 10000
)

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService builds an audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	filters = normalize(filters)
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching entry without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.All(ctx, normalize(filters), exportLimit)
}

func normalize(filters TimelineFilters) TimelineFilters {
	filters.Entity = strings.TrimSpace(filters.Entity)
	filters.EntityID = strings.TrimSpace(filters.EntityID)
	filters.Action = strings.TrimSpace(filters.Action)
	return filters
}
