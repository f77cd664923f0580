package audithandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leavehub/internal/domain/audit"
	"leavehub/internal/domain/auth"
	"leavehub/internal/transport/http/api"
	"leavehub/internal/transport/http/middleware"
	"leavehub/internal/transport/http/shared"
)

// Lister pages through recorded audit events, newest first.
type Lister interface {
	List(ctx context.Context, limit, offset int) ([]audit.Event, error)
}

type Handler struct {
	Audit Lister
	Perms middleware.PermissionStore
}

func NewHandler(auditSvc Lister, perms middleware.PermissionStore) *Handler {
	return &Handler{Audit: auditSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermAdminOps, h.Perms)).Get("/audit", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	events, err := h.Audit.List(r.Context(), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", reqID)
		return
	}
	api.Success(w, events, reqID)
}
