package handlers

import (
	"net/http"

	"github.com/get-me-through/server/internal/api/pagination"
	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/domain/users"
	"github.com/get-me-through/server/internal/email"
)

// AdminHandler serves the operator-only views: the user directory and
// the email delivery trail. Routes are gated by RequireAdmin in the
// router.
type AdminHandler struct {
	users *users.Service
	email *email.Service
	env   string
}

func NewAdminHandler(userSvc *users.Service, emailSvc *email.Service, env string) *AdminHandler {
	return &AdminHandler{users: userSvc, email: emailSvc, env: env}
}

// ListUsers returns all live accounts.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.List(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Listing failed", err, h.env)
		return
	}

	views := make([]userView, len(list))
	for i := range list {
		views[i] = viewOf(&list[i])
	}
	writeJSON(w, http.StatusOK, views)
}

// EmailLogs pages through the delivery trail.
func (h *AdminHandler) EmailLogs(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	limit, offset := pagination.Bounds(page, perPage)

	items, total, err := h.email.Logs(r.Context(), limit, offset)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Listing failed", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: items, Meta: pagination.New(page, perPage, total)})
}
