package flashsale

import (
	"errors"
	"fmt"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

var (
	// ErrNotFound indicates the flash sale does not exist.
	ErrNotFound = fmt.Errorf("%w: flash sale not found", httpx.ErrNotFound)
	// ErrProductNotFound indicates no product carries the requested SKU.
	ErrProductNotFound = fmt.Errorf("%w: product not found for sku", httpx.ErrNotFound)
	// ErrConflict indicates the SKU already has a pending or active sale.
	ErrConflict = fmt.Errorf("%w: sku already has a pending or active flash sale", httpx.ErrConflict)
	// ErrConcurrentUpdate indicates the row changed since it was read.
	ErrConcurrentUpdate = fmt.Errorf("%w: flash sale was modified concurrently", httpx.ErrConflict)
	// ErrInvalidState indicates the sale is not purchasable in its current status.
	ErrInvalidState = fmt.Errorf("%w: flash sale is not active", httpx.ErrInvalidState)
	// ErrInsufficientInventory indicates the purchase exceeds remaining quantity.
	ErrInsufficientInventory = fmt.Errorf("%w: flash sale quantity exhausted", httpx.ErrInsufficientInventory)
	// ErrInvalidWindow indicates start_at is not before end_at.
	ErrInvalidWindow = fmt.Errorf("%w: start_at must be before end_at", httpx.ErrValidation)
	// ErrSKURequired indicates a create request without a SKU.
	ErrSKURequired = fmt.Errorf("%w: sku is required", httpx.ErrValidation)
	// ErrInvalidQuantity indicates a negative stock or non-positive purchase quantity.
	ErrInvalidQuantity = fmt.Errorf("%w: invalid quantity", httpx.ErrValidation)
	// ErrInvalidPrice indicates a negative price or a discount outside 0..100.
	ErrInvalidPrice = fmt.Errorf("%w: invalid price", httpx.ErrValidation)
	// ErrReconcileRunning indicates another process holds the reconcile lock.
	ErrReconcileRunning = fmt.Errorf("%w: reconciliation already running", httpx.ErrConflict)
	// ErrUnknownStatus indicates an unrecognised status label.
	ErrUnknownStatus = fmt.Errorf("%w: unknown status", httpx.ErrValidation)

	// errNotPurchasable is returned by the conditional decrement when no row
	// satisfied its guard.
	errNotPurchasable = errors.New("flash sale not purchasable")
)

func invalidState(status Status) error {
	return fmt.Errorf("%w (status %s)", ErrInvalidState, status)
}

func insufficient(remaining, requested int) error {
	return fmt.Errorf("%w: requested %d, remaining %d", ErrInsufficientInventory, requested, remaining)
}
