package flashsale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kuma-mall/kuma-admin/internal/shared"
)

const publishTimeout = 3 * time.Second

var hundred = decimal.NewFromInt(100)

// TransitionRecorder counts status transitions.
type TransitionRecorder interface {
	AddTransitions(to string, count int)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Logger  *slog.Logger
	Metrics TransitionRecorder
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service coordinates flash sale operations. Every path that derives a status
// goes through CalculateStatus.
type Service struct {
	repo    RepositoryPort
	audit   shared.AuditPort
	events  EventPublisher
	metrics TransitionRecorder
	log     *slog.Logger
	clock   func() time.Time
}

// NewService builds Service. audit and events may be nil.
func NewService(repo RepositoryPort, audit shared.AuditPort, events EventPublisher, cfg ServiceConfig) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if events == nil {
		events = NopPublisher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:    repo,
		audit:   audit,
		events:  events,
		metrics: cfg.Metrics,
		log:     logger,
		clock:   clock,
	}
}

// now is truncated to the store's timestamp precision so values written and
// read back compare equal.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

// Get returns one sale with its status brought up to date.
func (s *Service) Get(ctx context.Context, id int64) (FlashSale, error) {
	if id <= 0 {
		return FlashSale{}, ErrNotFound
	}
	sale, err := s.repo.Get(ctx, id)
	if err != nil {
		return FlashSale{}, err
	}
	s.refresh(ctx, &sale, s.now())
	return sale, nil
}

// List returns a page of sales, each with its status brought up to date.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]FlashSale, shared.Pagination, error) {
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	sales, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	now := s.now()
	for i := range sales {
		s.refresh(ctx, &sales[i], now)
	}
	return sales, shared.NewPagination(filter.Page, filter.Limit, total), nil
}

// refresh persists the derived status when it differs from the stored one. A
// failed write is logged and the derived status is still returned.
func (s *Service) refresh(ctx context.Context, sale *FlashSale, now time.Time) {
	derived := sale.Derive(now)
	if derived == sale.Status {
		return
	}
	from := sale.Status
	sale.Status = derived
	ok, err := s.repo.UpdateStatus(ctx, sale.ID, from, derived, now)
	if err != nil {
		s.log.Warn("flash sale status refresh failed",
			slog.Int64("flash_sale_id", sale.ID),
			slog.String("from", string(from)),
			slog.String("to", string(derived)),
			slog.Any("error", err))
		return
	}
	if !ok {
		return
	}
	sale.UpdatedAt = now
	s.transitioned(ctx, *sale, from, derived, SourceRead, now)
}

// Create schedules a sale. A SKU whose previous sale is expired or sold out
// has that row overwritten in place.
func (s *Service) Create(ctx context.Context, input CreateInput) (FlashSale, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	if input.SKU == "" {
		return FlashSale{}, ErrSKURequired
	}
	if err := validateTerms(input.StartAt, input.EndAt, input.Quantity, input.OriginPrice, input.SalePrice, input.DiscountPercent); err != nil {
		return FlashSale{}, err
	}
	exists, err := s.repo.ProductExists(ctx, input.SKU)
	if err != nil {
		return FlashSale{}, err
	}
	if !exists {
		return FlashSale{}, ErrProductNotFound
	}

	now := s.now()
	sale := FlashSale{
		SKU:             input.SKU,
		StartAt:         input.StartAt.UTC(),
		EndAt:           input.EndAt.UTC(),
		OriginPrice:     input.OriginPrice,
		SalePrice:       input.SalePrice,
		DiscountPercent: input.DiscountPercent,
		Quantity:        input.Quantity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	sale.Status = sale.Derive(now)

	existing, err := s.repo.GetBySKU(ctx, input.SKU)
	switch {
	case errors.Is(err, ErrNotFound):
		created, err := s.repo.Insert(ctx, sale)
		if err != nil {
			return FlashSale{}, err
		}
		s.record(ctx, "flashsale.create", created, nil)
		return created, nil
	case err != nil:
		return FlashSale{}, err
	}

	if !existing.Derive(now).Retired() {
		return FlashSale{}, ErrConflict
	}
	sale.ID = existing.ID
	sale.ProductName = existing.ProductName
	sale.CreatedAt = existing.CreatedAt
	saved, err := s.repo.Save(ctx, sale, existing.UpdatedAt)
	if err != nil {
		return FlashSale{}, err
	}
	if saved.Status != existing.Status {
		s.transitioned(ctx, saved, existing.Status, saved.Status, SourceAdmin, now)
	}
	s.record(ctx, "flashsale.reuse", saved, map[string]any{"previous_status": string(existing.Status)})
	return saved, nil
}

// Update applies an admin edit. SKU cannot change. The status is recomputed
// from the merged fields and written by the save itself, so a stale stored
// status yields one write and one admin event.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (FlashSale, error) {
	if id <= 0 {
		return FlashSale{}, ErrNotFound
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return FlashSale{}, err
	}
	next := current
	if input.StartAt != nil {
		next.StartAt = input.StartAt.UTC()
	}
	if input.EndAt != nil {
		next.EndAt = input.EndAt.UTC()
	}
	if input.OriginPrice != nil {
		next.OriginPrice = *input.OriginPrice
	}
	if input.SalePrice != nil {
		next.SalePrice = *input.SalePrice
	}
	if input.DiscountPercent != nil {
		next.DiscountPercent = *input.DiscountPercent
	}
	if input.Quantity != nil {
		next.Quantity = *input.Quantity
	}
	if err := validateTerms(next.StartAt, next.EndAt, next.Quantity, next.OriginPrice, next.SalePrice, next.DiscountPercent); err != nil {
		return FlashSale{}, err
	}

	now := s.now()
	next.Status = next.Derive(now)
	next.UpdatedAt = now
	saved, err := s.repo.Save(ctx, next, current.UpdatedAt)
	if err != nil {
		return FlashSale{}, err
	}
	if saved.Status != current.Status {
		s.transitioned(ctx, saved, current.Status, saved.Status, SourceAdmin, now)
	}
	s.record(ctx, "flashsale.update", saved, nil)
	return saved, nil
}

// Delete removes a sale.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	sale, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "flashsale.delete", sale, nil)
	return nil
}

// Purchase takes quantity units from an active sale and the linked product's
// stock in one transaction. A zero quantity means one unit.
func (s *Service) Purchase(ctx context.Context, id int64, input PurchaseInput) (PurchaseResult, error) {
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 {
		return PurchaseResult{}, fmt.Errorf("%w: purchase quantity must be at least 1", ErrInvalidQuantity)
	}

	sale, err := s.Get(ctx, id)
	if err != nil {
		return PurchaseResult{}, err
	}
	if err := checkPurchasable(sale, qty); err != nil {
		return PurchaseResult{}, err
	}

	now := s.now()
	var updated FlashSale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ClaimIdempotencyKey(ctx, input.IdempotencyKey); err != nil {
			return err
		}
		var err error
		updated, err = tx.DecrementForPurchase(ctx, id, qty, now)
		if err != nil {
			return err
		}
		return tx.DecrementProductStock(ctx, updated.SKU, qty, now)
	})
	if errors.Is(err, errNotPurchasable) {
		// Lost a race since the read above: report whichever precondition fails now.
		current, gerr := s.Get(ctx, id)
		if gerr != nil {
			return PurchaseResult{}, gerr
		}
		if perr := checkPurchasable(current, qty); perr != nil {
			return PurchaseResult{}, perr
		}
		return PurchaseResult{}, ErrConcurrentUpdate
	}
	if err != nil {
		return PurchaseResult{}, err
	}

	if updated.Status != sale.Status {
		s.transitioned(ctx, updated, sale.Status, updated.Status, SourcePurchase, now)
	}
	s.record(ctx, "flashsale.purchase", updated, map[string]any{"quantity": qty})
	return PurchaseResult{ID: updated.ID, SKU: updated.SKU, Quantity: updated.Quantity, Status: updated.Status}, nil
}

func checkPurchasable(sale FlashSale, qty int) error {
	if sale.Status != StatusActive {
		return invalidState(sale.Status)
	}
	if qty > sale.Quantity {
		return insufficient(sale.Quantity, qty)
	}
	return nil
}

func validateTerms(start, end time.Time, qty int, origin, sale, discount decimal.Decimal) error {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return ErrInvalidWindow
	}
	if qty < 0 {
		return fmt.Errorf("%w: quantity must be zero or more", ErrInvalidQuantity)
	}
	if origin.IsNegative() || sale.IsNegative() {
		return fmt.Errorf("%w: prices must be zero or more", ErrInvalidPrice)
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return fmt.Errorf("%w: discount_percent must be within 0..100", ErrInvalidPrice)
	}
	return nil
}

// transitioned publishes and counts a status change. Publishing is best effort.
func (s *Service) transitioned(ctx context.Context, sale FlashSale, from, to Status, source Source, at time.Time) {
	if s.metrics != nil {
		s.metrics.AddTransitions(string(to), 1)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.PublishStatusChanged(pctx, newStatusChanged(sale, from, to, source, at)); err != nil {
		s.log.Warn("publish flash sale status change",
			slog.Int64("flash_sale_id", sale.ID),
			slog.String("source", string(source)),
			slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action string, sale FlashSale, extra map[string]any) {
	meta := map[string]any{
		"sku":      sale.SKU,
		"status":   string(sale.Status),
		"quantity": sale.Quantity,
	}
	for k, v := range extra {
		meta[k] = v
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "flash_sale",
		EntityID: strconv.FormatInt(sale.ID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.log.Warn("audit flash sale", slog.String("action", action), slog.Any("error", err))
	}
}
