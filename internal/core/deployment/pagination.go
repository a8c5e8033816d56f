package deployment

import "math"

// =============================================================================
// Pagination
// =============================================================================

// DefaultMaxResults caps collection when a request is not paginated.
const DefaultMaxResults = 1000

// PageInfo is a normalized page request. A zero PageSize means "everything".
type PageInfo struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NormalizePage clamps raw page parameters.
//
// Negative values become 0. A zero page size ignores the page number. A page
// of 0 with a positive size means the first page.
func NormalizePage(page, size int) PageInfo {
	if page < 0 {
		page = 0
	}
	if size < 0 {
		size = 0
	}
	if size == 0 {
		return PageInfo{}
	}
	if page == 0 {
		page = 1
	}
	// Pages beyond the addressable range are empty anyway.
	if page > math.MaxInt/size {
		page = math.MaxInt / size
	}
	return PageInfo{Page: page, PageSize: size}
}

// MaxResultsNeeded is how many results must be collected to serve the page.
func (p PageInfo) MaxResultsNeeded() int {
	if p.Page <= 0 || p.PageSize <= 0 {
		return DefaultMaxResults
	}
	if p.Page > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return p.Page * p.PageSize
}

// Paginate returns the window of results selected by p.
// Pages past the end yield an empty, non-nil slice.
func Paginate[T any](results []T, p PageInfo) []T {
	if p.PageSize <= 0 {
		return results
	}

	// Compare before multiplying so huge pages can not overflow.
	if p.Page <= 0 || len(results) == 0 || p.Page-1 > (len(results)-1)/p.PageSize {
		return []T{}
	}
	start := (p.Page - 1) * p.PageSize
	end := len(results)
	if p.PageSize < end-start {
		end = start + p.PageSize
	}
	return results[start:end]
}
