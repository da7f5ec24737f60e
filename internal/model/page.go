package model

// Page is a bounded slice of a collection plus pagination metadata.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ValidatePagination fails with ErrInvalidPagination unless page and size are
// both at least 1.
func ValidatePagination(page, size int) error {
	if page < 1 {
		return NewError(KindInvalidPagination, "invalid page number: %d", page)
	}
	if size < 1 {
		return NewError(KindInvalidPagination, "invalid page size: %d", size)
	}
	return nil
}

// Paginate slices items for the requested page. A page past the end yields
// an empty slice with the correct totals.
func Paginate[T any](items []T, page, size int) (*Page[T], error) {
	if err := ValidatePagination(page, size); err != nil {
		return nil, err
	}

	total := len(items)
	pages := total / size
	if total%size != 0 {
		pages++
	}

	// Compare in page units so (page-1)*size cannot overflow.
	start, end := total, total
	if page-1 < pages {
		start = (page - 1) * size
		end = start + min(size, total-start)
	}

	out := make([]T, end-start)
	copy(out, items[start:end])

	return &Page[T]{
		Items:      out,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: pages,
	}, nil
}
