package shared

import (
	"errors"
	"fmt"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = fmt.Errorf("%w: csrf token missing", httpx.ErrForbidden)
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = fmt.Errorf("%w: csrf token mismatch", httpx.ErrForbidden)
	// ErrLockNotAcquired is returned when another holder owns a lock.
	ErrLockNotAcquired = errors.New("lock held by another owner")
)
