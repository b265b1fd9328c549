package views

// DefaultPageSize is the number of rows per table page.
const DefaultPageSize = 50

// Page is one 1-indexed window over a collection.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	TotalItems int `json:"totalItems"`
}

// TotalPages is ceil(n/pageSize), and 0 for an empty collection.
func TotalPages(n, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if n <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

// Paginate returns page number page of items. Pages outside
// [1, TotalPages] are empty rather than an error. A non-positive pageSize
// falls back to DefaultPageSize.
func Paginate[T any](items []T, pageSize, page int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	p := Page[T]{
		Items:      []T{},
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(len(items), pageSize),
		TotalItems: len(items),
	}
	if page < 1 || page > p.TotalPages {
		return p
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(items))
	p.Items = append(p.Items, items[start:end]...)
	return p
}
