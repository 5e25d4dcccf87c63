package auth

import (
	"log/slog"
	"net/http"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
	"github.com/kuma-mall/kuma-admin/internal/shared"
)

// RequireSession rejects requests whose session carries no user.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.SessionFromContext(r.Context()).UserID(); !ok {
			httpx.RespondError(w, r, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActiveUser ends sessions whose user was deactivated or removed after
// login. Mount it after RequireSession.
func (h *Handler) RequireActiveUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		id, ok := sess.UserID()
		if !ok {
			httpx.RespondError(w, r, httpx.ErrUnauthorized)
			return
		}
		active, err := h.service.ActiveUser(r.Context(), id)
		if err != nil {
			h.logger.Error("check session user", slog.Int64("user_id", id), slog.Any("error", err))
			httpx.RespondError(w, r, err)
			return
		}
		if !active {
			h.logger.Info("revoking session of inactive user", slog.Int64("user_id", id))
			if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
			h.sessionManager.Destroy(sess)
			httpx.RespondError(w, r, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
