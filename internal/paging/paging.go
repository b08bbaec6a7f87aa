// Package paging slices ordered result sets into pages.
package paging

const (
	// DefaultPageSize replaces a missing or non-positive page size.
	DefaultPageSize = 10
	// MaxPageSize is the largest page size the HTTP API serves. Paginate
	// itself honours any positive size.
	MaxPageSize = 100
)

// Result is one page of an ordered sequence.
type Result[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Normalize clamps page to at least 1 and substitutes DefaultPageSize for a
// non-positive pageSize.
func Normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// Paginate returns the requested page of items. A page past the end yields
// an empty Items slice, not an error.
func Paginate[T any](items []T, page, pageSize int) Result[T] {
	page, pageSize = Normalize(page, pageSize)

	total := len(items)
	res := Result[T]{
		Items:      []T{},
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}

	if page > res.TotalPages {
		return res
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	res.Items = append(res.Items, items[start:end]...)
	return res
}
