package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kuma-mall/kuma-admin/internal/audit"
	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

const (
	dateLayout       = "2006-01-02"
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
)

// TimelineService is the read side the handler needs.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the audit log timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds an audit timeline handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.fail(w, r, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, r, "export audit timeline", err)
		return
	}
	body, err := audit.WriteCSV(rows)
	if err != nil {
		h.fail(w, r, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.csv"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters reads from/to as dates. "to" is inclusive, so the upper bound
// handed to the repository is the start of the following day.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()

	toDay := now.Truncate(24 * time.Hour)
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return audit.TimelineFilters{}, httpx.Validation("to must be YYYY-MM-DD")
		}
		toDay = parsed
	}
	fromDay := toDay.Add(-defaultDateRange)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return audit.TimelineFilters{}, httpx.Validation("from must be YYYY-MM-DD")
		}
		fromDay = parsed
	}
	if fromDay.After(toDay) {
		return audit.TimelineFilters{}, httpx.Validation("from must not be after to")
	}
	if toDay.Sub(fromDay) > maxDateRange {
		return audit.TimelineFilters{}, httpx.Validation("date range must not exceed 90 days")
	}

	filters := audit.TimelineFilters{
		From:     fromDay,
		To:       toDay.Add(24 * time.Hour),
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Action:   q.Get("action"),
	}
	var err error
	if filters.ActorID, err = positiveInt(q.Get("actor_id"), "actor_id"); err != nil {
		return audit.TimelineFilters{}, err
	}
	page, err := positiveInt(q.Get("page"), "page")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	limit, err := positiveInt(q.Get("limit"), "limit")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	filters.Page = int(page)
	filters.PageSize = int(limit)
	return filters, nil
}

func positiveInt(raw, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, httpx.Validation(field + " must be a positive integer")
	}
	return v, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}
