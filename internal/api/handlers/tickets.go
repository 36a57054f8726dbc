package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/get-me-through/server/internal/api/middleware"
	"github.com/get-me-through/server/internal/api/pagination"
	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/domain/tickets"
)

// TicketsHandler serves the contact form and the admin ticket queue.
type TicketsHandler struct {
	tickets *tickets.Service
	env     string
}

func NewTicketsHandler(ticketSvc *tickets.Service, env string) *TicketsHandler {
	return &TicketsHandler{tickets: ticketSvc, env: env}
}

type openTicketRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,min=3,max=200"`
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

// Open files a support ticket from the public contact form.
func (h *TicketsHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openTicketRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	ticket, err := h.tickets.Open(r.Context(), req.Name, req.Email, req.Subject, req.Message)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Could not file ticket", err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

// List pages through tickets, admin only, ?resolved= filters.
func (h *TicketsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	page, perPage := pageParams(r)
	limit, offset := pagination.Bounds(page, perPage)

	var resolved *bool
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid resolved filter", err, h.env)
			return
		}
		resolved = &value
	}

	items, total, err := h.tickets.List(r.Context(), identity, resolved, limit, offset)
	if err != nil {
		h.writeTicketError(w, r, err, "Listing failed")
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: items, Meta: pagination.New(page, perPage, total)})
}

// Mine lists the tickets filed under the caller's own email.
func (h *TicketsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	items, err := h.tickets.Mine(r.Context(), identity)
	if err != nil {
		h.writeTicketError(w, r, err, "Listing failed")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Get returns one ticket, admin only.
func (h *TicketsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	ticket, err := h.tickets.Get(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		h.writeTicketError(w, r, err, "Lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

type resolveTicketRequest struct {
	Resolved bool `json:"resolved"`
}

// Resolve flips a ticket's resolution state, admin only.
func (h *TicketsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	var req resolveTicketRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	if err := h.tickets.Resolve(r.Context(), identity, r.PathValue("id"), req.Resolved); err != nil {
		h.writeTicketError(w, r, err, "Update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TicketsHandler) writeTicketError(w http.ResponseWriter, r *http.Request, err error, title string) {
	switch {
	case errors.Is(err, tickets.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Admin role required", err, h.env)
	case errors.Is(err, tickets.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Ticket not found", err, h.env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, title, err, h.env)
	}
}
