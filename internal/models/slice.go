package models

// Slice is one page of an unbounded, ordered result. It reports whether more
// rows exist instead of carrying a total count.
type Slice[T any] struct {
	Items   []T  `json:"items"`
	HasNext bool `json:"hasNext"`
	Page    int  `json:"page"`
	Size    int  `json:"size"`
}

// NewSlice trims rows fetched with a size+1 probe down to size and sets HasNext.
func NewSlice[T any](rows []T, page, size int) Slice[T] {
	hasNext := len(rows) > size
	if hasNext {
		rows = rows[:size]
	}
	if rows == nil {
		rows = []T{}
	}
	return Slice[T]{Items: rows, HasNext: hasNext, Page: page, Size: size}
}
