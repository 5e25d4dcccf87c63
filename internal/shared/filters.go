package shared

import (
	"net/url"
	"strconv"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilters represents standard catalogue list filters.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string

	IsActive   *bool
	CategoryID *int64
}

// ParseListFilters reads page, limit, search, sort, dir, is_active and
// category_id from q. Page and limit are normalised; malformed optional
// filters are validation errors.
func ParseListFilters(q url.Values) (ListFilters, error) {
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, limit = NormalizePage(page, limit)

	filters := ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	if filters.SortDir != SortDesc {
		filters.SortDir = SortAsc
	}
	if raw := q.Get("is_active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilters{}, httpx.Validation("is_active must be true or false")
		}
		filters.IsActive = &v
	}
	if raw := q.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return ListFilters{}, httpx.Validation("category_id must be a positive integer")
		}
		filters.CategoryID = &id
	}
	return filters, nil
}
