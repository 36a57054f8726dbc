// Package pagination computes the page metadata envelope list endpoints
// return alongside their items.
package pagination

// DefaultPerPage bounds list endpoints that do not ask for a size.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Meta describes one page of a larger result set.
type Meta struct {
	CurrentPage  int  `json:"currentPage"`
	PerPage      int  `json:"perPage"`
	TotalResults int  `json:"totalResults"`
	TotalPages   int  `json:"totalPages"`
	NextPage     *int `json:"nextPage"`
	PrevPage     *int `json:"prevPage"`
}

// Clamp normalizes a raw page and perPage pair into sane bounds.
func Clamp(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// Bounds converts a page pair into the limit and offset a repository takes.
func Bounds(page, perPage int) (limit, offset int) {
	page, perPage = Clamp(page, perPage)
	return perPage, (page - 1) * perPage
}

// New builds the metadata for a page given the total match count.
func New(page, perPage, total int) Meta {
	page, perPage = Clamp(page, perPage)

	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}
	if totalPages == 0 {
		totalPages = 1
	}

	meta := Meta{
		CurrentPage:  page,
		PerPage:      perPage,
		TotalResults: total,
		TotalPages:   totalPages,
	}
	if page < totalPages {
		next := page + 1
		meta.NextPage = &next
	}
	if page > 1 {
		prev := page - 1
		meta.PrevPage = &prev
	}
	return meta
}
