package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Pagination is a requested window. Zero values select the defaults.
type Pagination struct {
	Limit  int
	Offset int
}

// Normalize clamps the window: limit defaults to DefaultPageSize and is
// capped at MaxPageSize; a negative offset becomes zero.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Window applies p to an already ordered slice.
func Window[T any](items []T, p Pagination) Page[T] {
	p = p.Normalize()
	total := len(items)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{Items: out, Total: total, Limit: p.Limit, Offset: p.Offset}
}
