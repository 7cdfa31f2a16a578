package views

import (
	"net/url"
	"strconv"
)

// DefaultPageSize is used when the request names no valid size.
const DefaultPageSize = 50

// PageSizes are the sizes offered by the pager.
var PageSizes = []int{10, 20, 50, 100}

// Pager describes the current page of a table.
type Pager struct {
	Page     int
	PageSize int
	Total    int
	Pages    int
	Sizes    []int
	Query    url.Values
}

// HasPrev reports whether a previous page exists.
func (p Pager) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Pager) HasNext() bool { return p.Page < p.Pages }

// PrevPage is the previous page number.
func (p Pager) PrevPage() int { return p.Page - 1 }

// NextPage is the following page number.
func (p Pager) NextPage() int { return p.Page + 1 }

// Link returns the query string for page n, keeping the other filters.
func (p Pager) Link(n int) string {
	q := url.Values{}
	for k, v := range p.Query {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(n))
	q.Set("page_size", strconv.Itoa(p.PageSize))
	return "?" + q.Encode()
}

// NewPager builds a pager for total items.
func NewPager(page, pageSize, total int, query url.Values) Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return Pager{Page: page, PageSize: pageSize, Total: total, Pages: pages, Sizes: PageSizes, Query: query}
}

// Paginate returns items[(page-1)*pageSize : +pageSize] clamped to bounds,
// and the pager describing it. A page beyond the end yields no items.
func Paginate[T any](items []T, page, pageSize int, query url.Values) ([]T, Pager) {
	pager := NewPager(page, pageSize, len(items), query)
	start := (pager.Page - 1) * pager.PageSize
	if start >= len(items) {
		return []T{}, pager
	}
	end := start + pager.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], pager
}

// ParsePage reads page and page_size from q. Invalid values fall back to
// page 1 and defaultSize.
func ParsePage(q url.Values, defaultSize int) (page, pageSize int) {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err = strconv.Atoi(q.Get("page_size"))
	if err != nil || pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// Filters copies q without the paging keys.
func Filters(q url.Values) url.Values {
	out := url.Values{}
	for k, v := range q {
		if k == "page" || k == "page_size" {
			continue
		}
		out[k] = v
	}
	return out
}
