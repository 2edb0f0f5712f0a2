package model

// Page is one page of a paginated listing. Pages are 1-indexed.
type Page[T any] struct {
	Items []T
	Page  int
	Limit int
	// Total is only meaningful when HasTotal is set; some endpoints omit it.
	Total    int
	HasTotal bool
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool { return p.Page > 1 }

// HasNext prefers the authoritative total and falls back to treating a full
// page as a sign that more items follow.
func (p Page[T]) HasNext() bool {
	if p.Limit <= 0 {
		return false
	}
	if p.HasTotal {
		return p.Page*p.Limit < p.Total
	}
	return len(p.Items) >= p.Limit
}

// TotalPages returns ceil(Total/Limit), or 0 when the total is unknown.
func (p Page[T]) TotalPages() int {
	if !p.HasTotal || p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Empty reports whether the page has no items. An empty page is not an error.
func (p Page[T]) Empty() bool { return len(p.Items) == 0 }
