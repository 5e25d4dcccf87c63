// Package products manages the sellable catalogue that flash sales draw from.
package products

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

// Product represents a catalogue item identified by SKU.
type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CategoryID    *int64          `json:"category_id"`
	CategoryName  string          `json:"category_name,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ProductInput is the create and update payload.
type ProductInput struct {
	SKU           string          `json:"sku" validate:"required,max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=2000"`
	CategoryID    *int64          `json:"category_id" validate:"omitempty,gt=0"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	IsActive      *bool           `json:"is_active"`
}

var (
	ErrNotFound         = fmt.Errorf("%w: product not found", httpx.ErrNotFound)
	ErrDuplicateSKU     = fmt.Errorf("%w: product sku already exists", httpx.ErrDuplicate)
	ErrCategoryNotFound = fmt.Errorf("%w: category does not exist", httpx.ErrValidation)
)
