package handlers

import (
	"net/http"

	"github.com/get-me-through/server/internal/api/pagination"
	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/search"
)

// SearchHandler serves typo-tolerant search over open events.
type SearchHandler struct {
	searcher *search.Searcher
	env      string
}

func NewSearchHandler(searcher *search.Searcher, env string) *SearchHandler {
	return &SearchHandler{searcher: searcher, env: env}
}

// Search ranks open events against ?q= and pages the result.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	limit, offset := pagination.Bounds(page, perPage)

	items, total, err := h.searcher.Search(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Search failed", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: items, Meta: pagination.New(page, perPage, total)})
}
