// Package categories manages the product category catalogue.
package categories

import (
	"fmt"
	"time"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

// Category represents a product category.
type Category struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input is the create and update payload.
type Input struct {
	Code        string `json:"code" validate:"required,max=32"`
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=500"`
	IsActive    *bool  `json:"is_active"`
}

var (
	ErrNotFound      = fmt.Errorf("%w: category not found", httpx.ErrNotFound)
	ErrDuplicateCode = fmt.Errorf("%w: category code already exists", httpx.ErrDuplicate)
)
