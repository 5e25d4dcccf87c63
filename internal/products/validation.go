package products

import (
	"strings"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

func normalize(in ProductInput) (Product, error) {
	p := Product{
		SKU:           strings.TrimSpace(in.SKU),
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		CategoryID:    in.CategoryID,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		IsActive:      true,
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if p.SKU == "" {
		return Product{}, httpx.Validation("product sku is required")
	}
	if p.Name == "" {
		return Product{}, httpx.Validation("product name is required")
	}
	if p.Price.IsNegative() {
		return Product{}, httpx.Validation("price must be zero or more")
	}
	if !p.Price.Equal(p.Price.Round(2)) {
		return Product{}, httpx.Validation("price allows at most two decimal places")
	}
	if p.StockQuantity < 0 {
		return Product{}, httpx.Validation("stock_quantity must be zero or more")
	}
	return p, nil
}
