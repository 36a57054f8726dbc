package handlers

import (
	"errors"
	"net/http"

	"github.com/get-me-through/server/internal/api/middleware"
	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/domain/events"
	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/get-me-through/server/internal/metrics"
)

// RegistrationsHandler serves registration endpoints for attendees.
type RegistrationsHandler struct {
	registrations *registrations.Service
	env           string
}

func NewRegistrationsHandler(regSvc *registrations.Service, env string) *RegistrationsHandler {
	return &RegistrationsHandler{registrations: regSvc, env: env}
}

// Apply registers the caller for a free event. Priced events are told to
// go through the order endpoint instead.
func (h *RegistrationsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	eventID := r.PathValue("id")

	reg, err := h.registrations.Apply(r.Context(), identity.UserID, eventID)
	if err != nil {
		switch {
		case errors.Is(err, events.ErrNotFound):
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.env)
		case errors.Is(err, registrations.ErrAlreadyRegistered):
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Already registered", err, h.env)
		case errors.Is(err, registrations.ErrPaymentRequired):
			problem.Write(w, r, http.StatusPaymentRequired, problem.TypePaymentRequired, "Event requires payment", err, h.env)
		case errors.Is(err, events.ErrFull):
			problem.Write(w, r, http.StatusConflict, problem.TypeCapacityExceeded, "Event is full", err, h.env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Registration failed", err, h.env)
		}
		return
	}

	metrics.RegistrationsTotal.WithLabelValues("free").Inc()
	writeJSON(w, http.StatusCreated, reg)
}

// Status reports the caller's standing against the event.
func (h *RegistrationsHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	eventID := r.PathValue("id")

	status, err := h.registrations.Status(r.Context(), identity.UserID, eventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Status lookup failed", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"isRegistered": status == registrations.StatusValid,
	})
}

// Mine lists the caller's registrations with their resolved standing.
func (h *RegistrationsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	items, err := h.registrations.ListMine(r.Context(), identity.UserID)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Listing failed", err, h.env)
		return
	}
	if items == nil {
		items = []*registrations.RegistrationView{}
	}
	writeJSON(w, http.StatusOK, items)
}
