package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/get-me-through/server/internal/api/middleware"
	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/domain/categories"
)

// CategoriesHandler serves the event category endpoints.
type CategoriesHandler struct {
	categories *categories.Service
	env        string
}

func NewCategoriesHandler(categorySvc *categories.Service, env string) *CategoriesHandler {
	return &CategoriesHandler{categories: categorySvc, env: env}
}

// List returns all categories, public.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.categories.List(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Listing failed", err, h.env)
		return
	}
	if items == nil {
		items = []*categories.Category{}
	}
	writeJSON(w, http.StatusOK, items)
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=80"`
}

// Create adds a category, admin only.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	var req createCategoryRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	category, err := h.categories.Create(r.Context(), identity, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, categories.ErrForbidden):
			problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Admin role required", err, h.env)
		case errors.Is(err, categories.ErrDuplicate):
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Category exists", err, h.env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Create failed", err, h.env)
		}
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// Delete removes a category, admin only.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid category id", err, h.env)
		return
	}

	if err := h.categories.Delete(r.Context(), identity, id); err != nil {
		switch {
		case errors.Is(err, categories.ErrForbidden):
			problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Admin role required", err, h.env)
		case errors.Is(err, categories.ErrNotFound):
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Category not found", err, h.env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Delete failed", err, h.env)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
