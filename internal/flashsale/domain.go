// Package flashsale manages time-boxed, quantity-limited discount campaigns
// and keeps their stored status in step with their schedule and inventory.
package flashsale

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status labels a flash sale's position in its lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusSoldOut Status = "sold_out"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpired, StatusSoldOut:
		return true
	}
	return false
}

// Retired reports whether a sale in this status may be overwritten by a new
// campaign for the same SKU.
func (s Status) Retired() bool {
	return s == StatusExpired || s == StatusSoldOut
}

// ParseStatus validates a raw status label.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// CalculateStatus derives the status of a sale at now. Exhausted inventory
// wins over the schedule: sold_out, then pending, then expired, then active.
func CalculateStatus(start, end time.Time, quantity int, now time.Time) Status {
	switch {
	case quantity <= 0:
		return StatusSoldOut
	case now.Before(start):
		return StatusPending
	case now.After(end):
		return StatusExpired
	default:
		return StatusActive
	}
}

// FlashSale is one campaign row. A SKU has at most one row.
type FlashSale struct {
	ID              int64           `json:"id"`
	SKU             string          `json:"sku"`
	ProductName     string          `json:"product_name,omitempty"`
	StartAt         time.Time       `json:"start_at"`
	EndAt           time.Time       `json:"end_at"`
	OriginPrice     decimal.Decimal `json:"origin_price"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Quantity        int             `json:"quantity"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Derive computes the status the sale should carry at now.
func (f FlashSale) Derive(now time.Time) Status {
	return CalculateStatus(f.StartAt, f.EndAt, f.Quantity, now)
}

// ListFilter narrows List. Statuses match the stored status.
type ListFilter struct {
	Page     int
	Limit    int
	Search   string
	Statuses []Status
}

// CreateInput schedules a new sale.
type CreateInput struct {
	SKU             string          `json:"sku" validate:"required,max=64"`
	StartAt         time.Time       `json:"start_at" validate:"required"`
	EndAt           time.Time       `json:"end_at" validate:"required"`
	OriginPrice     decimal.Decimal `json:"origin_price"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Quantity        int             `json:"quantity" validate:"gte=0"`
}

// UpdateInput carries the fields an admin may change. Nil fields are kept.
type UpdateInput struct {
	StartAt         *time.Time       `json:"start_at"`
	EndAt           *time.Time       `json:"end_at"`
	OriginPrice     *decimal.Decimal `json:"origin_price"`
	SalePrice       *decimal.Decimal `json:"sale_price"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	Quantity        *int             `json:"quantity" validate:"omitempty,gte=0"`
}

// PurchaseInput decrements a sale's inventory.
type PurchaseInput struct {
	Quantity       int    `json:"quantity" validate:"gte=0"`
	IdempotencyKey string `json:"-"`
}

// PurchaseResult reports the sale after a purchase.
type PurchaseResult struct {
	ID       int64  `json:"id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Status   Status `json:"status"`
}

// TimeResult tallies the time-based reconciliation pass.
type TimeResult struct {
	Total           int `json:"total"`
	PendingToActive int `json:"pendingToActive"`
	ActiveToExpired int `json:"activeToExpired"`
	NoChange        int `json:"noChange"`
	Errors          int `json:"errors"`
}

// SoldOutResult tallies the quantity-based reconciliation pass.
type SoldOutResult struct {
	Total            int `json:"total"`
	UpdatedToSoldOut int `json:"updatedToSoldOut"`
	Errors           int `json:"errors"`
}

// ReconcileResult combines both passes.
type ReconcileResult struct {
	Time    TimeResult    `json:"time"`
	SoldOut SoldOutResult `json:"soldOut"`
}

// Source names what caused a status change.
type Source string

const (
	SourceRead      Source = "read"
	SourceReconcile Source = "reconcile"
	SourcePurchase  Source = "purchase"
	SourceAdmin     Source = "admin"
)
