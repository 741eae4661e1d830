package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params carries limit/offset paging inputs.
type Params struct {
	Limit  int
	Offset int
}

// Normalize clamps the params into the supported range.
func (p Params) Normalize() Params {
	out := p
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.Limit > MaxLimit {
		out.Limit = MaxLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

// Page wraps a result slice with paging metadata.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}
