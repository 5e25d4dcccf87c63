package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
	"github.com/kuma-mall/kuma-admin/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Post("/", h.createUser)
	r.Post("/{id}/activate", h.setActive(true))
	r.Post("/{id}/deactivate", h.setActive(false))
	r.Put("/{id}/password", h.changePassword)
}

type listResponse struct {
	Data       []User            `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filters, err := shared.ParseListFilters(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	users, pagination, err := h.service.ListUsers(r.Context(), filters)
	if err != nil {
		h.fail(w, r, "list users", err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: users, Pagination: pagination})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, in); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		user, err := h.service.SetActive(r.Context(), id, active)
		if err != nil {
			h.fail(w, r, "set user active", err)
			return
		}
		httpx.JSON(w, http.StatusOK, user)
	}
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in PasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, in); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), id, in); err != nil {
		h.fail(w, r, "change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, r, httpx.Validation("invalid user id"))
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
