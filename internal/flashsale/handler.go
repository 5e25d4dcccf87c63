package flashsale

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
	"github.com/kuma-mall/kuma-admin/internal/shared"
)

const (
	idempotencyHeader = "Idempotency-Key"
	triggerTimeout    = 2 * time.Minute
)

// HandlerConfig carries the HTTP-facing settings.
type HandlerConfig struct {
	CronAPIKey string
	// PurchaseRateLimit is requests per minute per client IP.
	PurchaseRateLimit int
	// Locker, when set, makes HTTP triggers share the worker's reconcile lock.
	Locker *shared.Locker
}

// Handler exposes flash sale endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	cfg       HandlerConfig
	validator *validator.Validate
	triggers  singleflight.Group
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PurchaseRateLimit <= 0 {
		cfg.PurchaseRateLimit = 30
	}
	return &Handler{
		logger:    logger,
		service:   service,
		cfg:       cfg,
		validator: validator.New(),
	}
}

// MountRoutes registers the session-protected routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/manual-update", h.manualUpdate)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.With(httprate.LimitByIP(h.cfg.PurchaseRateLimit, time.Minute)).Post("/{id}/purchase", h.purchase)
}

// MountCronRoutes registers the API-key routes used by external schedulers.
func (h *Handler) MountCronRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey)
		r.Get("/update-status", h.updateStatusByTime)
		r.Get("/update-status/sold-out", h.updateStatusSoldOut)
	})
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shared.APIKeyMatches(h.cfg.CronAPIKey, r.URL.Query().Get("api_key")) {
			h.logger.Warn("flash sale cron trigger rejected", slog.String("remote", r.RemoteAddr))
			httpx.RespondError(w, r, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type listResponse struct {
	Data       []FlashSale       `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := ListFilter{Page: page, Limit: limit, Search: q.Get("search")}

	raw := append(append([]string{}, q["status[]"]...), q["status"]...)
	for _, v := range raw {
		if v == "" {
			continue
		}
		status, err := ParseStatus(v)
		if err != nil {
			httpx.RespondError(w, r, err)
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	sales, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list flash sales", err)
		return
	}
	if sales == nil {
		sales = []FlashSale{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: sales, Pagination: pagination})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get flash sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, input); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	sale, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, "create flash sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, input); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	sale, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.fail(w, r, "update flash sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete flash sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var input PurchaseInput
	if err := httpx.DecodeOptionalJSON(r, &input); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, input); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	input.IdempotencyKey = r.Header.Get(idempotencyHeader)
	res, err := h.service.Purchase(r.Context(), id, input)
	if err != nil {
		h.fail(w, r, "purchase flash sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) manualUpdate(w http.ResponseWriter, r *http.Request) {
	res, err := h.trigger(r.Context(), "reconcile", func(ctx context.Context) (any, error) {
		return h.service.Reconcile(ctx, h.service.Now())
	})
	h.respondTrigger(w, r, "manual reconcile", res, err)
}

func (h *Handler) updateStatusByTime(w http.ResponseWriter, r *http.Request) {
	res, err := h.trigger(r.Context(), "time", func(ctx context.Context) (any, error) {
		return h.service.ReconcileTime(ctx, h.service.Now())
	})
	h.respondTrigger(w, r, "cron time reconcile", res, err)
}

func (h *Handler) updateStatusSoldOut(w http.ResponseWriter, r *http.Request) {
	res, err := h.trigger(r.Context(), "sold_out", func(ctx context.Context) (any, error) {
		return h.service.ReconcileSoldOut(ctx, h.service.Now())
	})
	h.respondTrigger(w, r, "cron sold-out reconcile", res, err)
}

// trigger coalesces concurrent runs of the same pass in this process into one
// and holds the reconcile lock so it never overlaps a worker tick. The run is
// detached from the caller so a dropped client does not cancel it for the
// others waiting on it.
func (h *Handler) trigger(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	v, err, _ := h.triggers.Do(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), triggerTimeout)
		defer cancel()
		if h.cfg.Locker == nil {
			return fn(runCtx)
		}
		lock, err := h.cfg.Locker.Acquire(runCtx, shared.ReconcileLockKey, triggerTimeout)
		if errors.Is(err, shared.ErrLockNotAcquired) {
			return nil, ErrReconcileRunning
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if rerr := lock.Release(context.WithoutCancel(runCtx)); rerr != nil {
				h.logger.Warn("release reconcile lock", slog.Any("error", rerr))
			}
		}()
		return fn(runCtx)
	})
	return v, err
}

func (h *Handler) respondTrigger(w http.ResponseWriter, r *http.Request, op string, res any, err error) {
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, r, httpx.Validation("invalid flash sale id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}
