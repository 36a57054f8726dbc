package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/get-me-through/server/internal/api/middleware"
	"github.com/get-me-through/server/internal/api/pagination"
	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/domain/events"
	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/get-me-through/server/internal/domain/users"
	"github.com/get-me-through/server/internal/objectstore"
)

// Presigner issues direct-to-bucket URLs for event images.
type Presigner interface {
	UploadURL(ctx context.Context, key, contentType string) (string, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

// EventsHandler serves the event catalog endpoints.
type EventsHandler struct {
	events        *events.Service
	registrations *registrations.Service
	users         *users.Service
	store         Presigner
	env           string
}

func NewEventsHandler(eventSvc *events.Service, regSvc *registrations.Service, userSvc *users.Service, store Presigner, env string) *EventsHandler {
	return &EventsHandler{
		events:        eventSvc,
		registrations: regSvc,
		users:         userSvc,
		store:         store,
		env:           env,
	}
}

type listEnvelope struct {
	Items any             `json:"items"`
	Meta  pagination.Meta `json:"meta"`
}

// List pages through events, filterable by type, category and owner.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	limit, offset := pagination.Bounds(page, perPage)

	filter := events.Filter{
		Type:       r.URL.Query().Get("type"),
		CategoryID: int64(queryInt(r, "category", 0)),
	}
	if r.URL.Query().Get("mine") == "true" {
		identity := middleware.IdentityFrom(r)
		if identity == nil {
			problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", problem.ErrUnauthorized, h.env)
			return
		}
		filter.OwnerID = identity.UserID
	}

	items, total, err := h.events.List(r.Context(), filter, limit, offset)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Listing failed", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: items, Meta: pagination.New(page, perPage, total)})
}

// Get returns one event by id.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Lookup failed", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type createEventRequest struct {
	Name               string    `json:"name" validate:"required,min=3,max=200"`
	Description        string    `json:"description" validate:"max=5000"`
	CategoryID         int64     `json:"categoryId" validate:"required,gt=0"`
	Location           string    `json:"location" validate:"max=300"`
	StartTime          time.Time `json:"startTime" validate:"required"`
	EndTime            time.Time `json:"endTime" validate:"required"`
	URL                string    `json:"url" validate:"omitempty,url"`
	Price              int64     `json:"price" validate:"gte=0"`
	Free               bool      `json:"free"`
	Type               string    `json:"type" validate:"omitempty,oneof=open closed"`
	ParticipationLimit int       `json:"participationLimit" validate:"gte=0"`
	AttendanceRequired bool      `json:"attendanceRequired"`
}

// Create opens a new event owned by the caller.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	var req createEventRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}
	if !req.EndTime.After(req.StartTime) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", nil, h.env,
			problem.WithErrors(map[string]interface{}{"endTime": "must be after startTime"}))
		return
	}

	ownerName := ""
	if owner, err := h.users.GetByID(r.Context(), identity.UserID); err == nil {
		ownerName = owner.Name
	}

	event, err := h.events.Create(r.Context(), identity, ownerName, events.CreateInput{
		Name:               req.Name,
		Description:        req.Description,
		CategoryID:         req.CategoryID,
		Location:           req.Location,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		URL:                req.URL,
		Price:              req.Price,
		Free:               req.Free,
		Type:               req.Type,
		ParticipationLimit: req.ParticipationLimit,
		AttendanceRequired: req.AttendanceRequired,
	})
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Create failed", err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

type updateEventRequest struct {
	Name               *string    `json:"name" validate:"omitempty,min=3,max=200"`
	Description        *string    `json:"description" validate:"omitempty,max=5000"`
	CategoryID         *int64     `json:"categoryId" validate:"omitempty,gt=0"`
	Location           *string    `json:"location" validate:"omitempty,max=300"`
	StartTime          *time.Time `json:"startTime"`
	EndTime            *time.Time `json:"endTime"`
	URL                *string    `json:"url" validate:"omitempty,url"`
	Price              *int64     `json:"price" validate:"omitempty,gte=0"`
	Free               *bool      `json:"free"`
	Type               *string    `json:"type" validate:"omitempty,oneof=open closed"`
	ParticipationLimit *int       `json:"participationLimit" validate:"omitempty,gte=0"`
	AttendanceRequired *bool      `json:"attendanceRequired"`
}

// Update modifies an event, owner or admin only.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	var req updateEventRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	event, err := h.events.Update(r.Context(), identity, r.PathValue("id"), events.UpdateInput{
		Name:               req.Name,
		Description:        req.Description,
		CategoryID:         req.CategoryID,
		Location:           req.Location,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		URL:                req.URL,
		Price:              req.Price,
		Free:               req.Free,
		Type:               req.Type,
		ParticipationLimit: req.ParticipationLimit,
		AttendanceRequired: req.AttendanceRequired,
	})
	if err != nil {
		h.writeEventError(w, r, err, "Update failed")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Delete removes an event, owner or admin only.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	if err := h.events.Delete(r.Context(), identity, r.PathValue("id")); err != nil {
		h.writeEventError(w, r, err, "Delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Registrants returns the roster for an event.
func (h *EventsHandler) Registrants(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	page, perPage := pageParams(r)
	limit, offset := pagination.Bounds(page, perPage)

	roster, total, err := h.registrations.ListRegistrants(r.Context(), identity, r.PathValue("id"), limit, offset)
	if err != nil {
		h.writeEventError(w, r, err, "Roster lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: roster, Meta: pagination.New(page, perPage, total)})
}

type attendanceRequest struct {
	UserIDs  []string `json:"userIds" validate:"required,min=1,dive,required"`
	Attended bool     `json:"attended"`
}

// MarkAttendance flips attendance flags for the listed users.
func (h *EventsHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	var req attendanceRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	updated, err := h.registrations.MarkAttendance(r.Context(), identity, r.PathValue("id"), req.UserIDs, req.Attended)
	if err != nil {
		if errors.Is(err, registrations.ErrAttendanceOff) {
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Event does not track attendance", err, h.env)
			return
		}
		h.writeEventError(w, r, err, "Attendance update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

type uploadURLRequest struct {
	ContentType string `json:"contentType" validate:"required,oneof=image/jpeg image/png image/webp"`
}

// ImageUploadURL presigns a direct upload for the event's cover image,
// owner or admin only.
func (h *EventsHandler) ImageUploadURL(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	eventID := r.PathValue("id")

	var req uploadURLRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	// Ownership check goes through the update path so the rules stay in
	// one place.
	imageUploaded := true
	if _, err := h.events.Update(r.Context(), identity, eventID, events.UpdateInput{ImageUploaded: &imageUploaded}); err != nil {
		h.writeEventError(w, r, err, "Upload authorization failed")
		return
	}

	url, err := h.store.UploadURL(r.Context(), objectstore.EventImageKey(eventID), req.ContentType)
	if err != nil {
		problem.Write(w, r, http.StatusBadGateway, problem.TypeUpstreamError, "Storage unavailable", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uploadUrl": url})
}

// ImageURL presigns a download of the event's cover image.
func (h *EventsHandler) ImageURL(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	event, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		h.writeEventError(w, r, err, "Lookup failed")
		return
	}
	if !event.ImageUploaded {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event has no image", nil, h.env)
		return
	}

	url, err := h.store.DownloadURL(r.Context(), objectstore.EventImageKey(eventID))
	if err != nil {
		problem.Write(w, r, http.StatusBadGateway, problem.TypeUpstreamError, "Storage unavailable", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"imageUrl": url})
}

func (h *EventsHandler) writeEventError(w http.ResponseWriter, r *http.Request, err error, title string) {
	switch {
	case errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.env)
	case errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, title, err, h.env)
	}
}
