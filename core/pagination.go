package core

import "math"

var (
	DefaultPageSize = 6
	MaxPageSize     = 100
)

// SetPageSizes overrides the default and max page sizes.
func SetPageSizes(conf PaginationConfig) {
	if conf.DefaultSize > 0 {
		DefaultPageSize = conf.DefaultSize
	}
	if conf.MaxSize > 0 {
		MaxPageSize = conf.MaxSize
	}
}

// PageRequest is bound from the query string (GET) or the body (POST search).
type PageRequest struct {
	Page     int `json:"page" query:"page"`
	PageSize int `json:"pageSize" query:"pageSize"`
}

// Clean applies the defaults: page 1 and DefaultPageSize items, at most MaxPageSize.
func (pr *PageRequest) Clean() {
	if pr.Page < 1 {
		pr.Page = 1
	}
	if pr.PageSize < 1 {
		pr.PageSize = DefaultPageSize
	}
	if pr.PageSize > MaxPageSize {
		pr.PageSize = MaxPageSize
	}
}

func (pr PageRequest) Offset() int {
	return (pr.Page - 1) * pr.PageSize
}

// Bounds returns the [start, end) slice bounds of the page over `total` items.
func (pr PageRequest) Bounds(total int) (int, int) {
	start := pr.Offset()
	if start > total {
		start = total
	}
	end := start + pr.PageSize
	if end > total {
		end = total
	}
	return start, end
}

// Page is a paginated result: Data holds one page of the items matching the filter,
// Total the count of all of them.
type Page struct {
	Data  interface{} `json:"data"`
	Pages int         `json:"pages"`
	Total int         `json:"total"`
}

func NewPage(data interface{}, total int, pr PageRequest) Page {
	return Page{Data: data, Pages: PageCount(total, pr.PageSize), Total: total}
}

func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(size)))
}
