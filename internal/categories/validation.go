package categories

import (
	"strings"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

func normalize(in Input) (Category, error) {
	c := Category{
		Code:        strings.ToUpper(strings.TrimSpace(in.Code)),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if c.Code == "" {
		return Category{}, httpx.Validation("category code is required")
	}
	if strings.ContainsAny(c.Code, " \t") {
		return Category{}, httpx.Validation("category code must not contain spaces")
	}
	if c.Name == "" {
		return Category{}, httpx.Validation("category name is required")
	}
	return c, nil
}
