// Package users manages admin accounts.
package users

import (
	"fmt"
	"time"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

// User represents an admin account. The password hash never leaves the
// repository.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput registers a new admin.
type CreateInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// PasswordInput replaces an admin's password.
type PasswordInput struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

var (
	ErrNotFound       = fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	ErrDuplicateEmail = fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	ErrSelfDeactivate = fmt.Errorf("%w: you cannot deactivate your own account", httpx.ErrValidation)
	ErrWeakPassword   = fmt.Errorf("%w: password must be 8 to 72 characters", httpx.ErrValidation)
)
