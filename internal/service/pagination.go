package service

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps page*size well inside a 32-bit OFFSET for every allowed size.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// NormalizePage clamps a 0-based page and a page size into range.
func NormalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
