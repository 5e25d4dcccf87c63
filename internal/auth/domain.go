package auth

import "time"

// User represents an authenticated admin account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionView is returned by GET /auth/session.
type SessionView struct {
	Authenticated bool   `json:"authenticated"`
	UserID        int64  `json:"user_id,omitempty"`
	CSRFToken     string `json:"csrf_token"`
}
