package core

const (
	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultPageSize = 20
	MaxPageSize     = 200
)

// PageQuery describes a filtered, sorted slice of a listing.
type PageQuery struct {
	Filter        string
	Offset        int
	Limit         int
	SortField     string
	SortDirection string
}

// Page is one slice of a listing plus the total number of matches.
type Page[T any] struct {
	Items []T
	Total int
}

// Normalize clamps the limit and offset and defaults the sort direction.
func (q PageQuery) Normalize() PageQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.SortDirection != SortDesc {
		q.SortDirection = SortAsc
	}
	return q
}

// Slice applies the query bounds to an already filtered and sorted list.
func Slice[T any](items []T, q PageQuery) Page[T] {
	q = q.Normalize()
	total := len(items)
	if q.Offset >= total {
		return Page[T]{Items: []T{}, Total: total}
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return Page[T]{Items: items[q.Offset:end], Total: total}
}
