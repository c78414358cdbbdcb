// Package pagination owns the page, limit and search state of the user listing
// and formats the compact page-number window rendered beneath it.
package pagination

import (
	"github.com/charlesng35/userdash/internal/models"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

// DefaultLimit is the page size used by the dashboard.
const DefaultLimit = 10

// State is a snapshot of the controller.
type State struct {
	Page            int    `json:"page"`
	Limit           int    `json:"limit"`
	RawSearch       string `json:"raw_search"`
	DebouncedSearch string `json:"debounced_search"`
	TotalPages      int    `json:"total_pages"`
}

// Controller implements the pagination state machine. It is not safe for
// concurrent use; the dashboard drives it from a single goroutine.
type Controller struct {
	page            int
	limit           int
	rawSearch       string
	debouncedSearch string
	totalPages      int
}

// NewController returns a controller positioned on page 1 with an empty search.
func NewController(limit int) (*Controller, error) {
	if limit <= 0 {
		return nil, appErrors.NewValidationError("pagination: limit must be positive")
	}
	return &Controller{page: 1, limit: limit}, nil
}

// SetSearch records the search box contents. Page and query are unaffected until
// the debounced value changes.
func (c *Controller) SetSearch(text string) {
	c.rawSearch = text
}

// ApplyDebounced adopts a settled search term. When the term differs from the
// current one the page resets to 1 and true is returned; repeated emissions of
// the same term are ignored.
func (c *Controller) ApplyDebounced(text string) bool {
	if text == c.debouncedSearch {
		return false
	}
	c.debouncedSearch = text
	c.page = 1
	return true
}

// SetPage moves to page n clamped into [1, TotalPages]. It is a no-op while the
// page count is unknown or zero. The return value reports whether the page moved.
func (c *Controller) SetPage(n int) bool {
	if c.totalPages <= 0 {
		return false
	}
	n = clamp(n, 1, c.totalPages)
	if n == c.page {
		return false
	}
	c.page = n
	return true
}

// Next advances one page.
func (c *Controller) Next() bool {
	return c.SetPage(c.page + 1)
}

// Prev goes back one page.
func (c *Controller) Prev() bool {
	return c.SetPage(c.page - 1)
}

// SetTotalCount derives the page count from server metadata.
func (c *Controller) SetTotalCount(total int) {
	if total <= 0 {
		c.totalPages = 0
		return
	}
	c.totalPages = (total + c.limit - 1) / c.limit
}

// TotalPages returns the last computed page count, 0 when unknown.
func (c *Controller) TotalPages() int {
	return c.totalPages
}

// CanPrev reports whether a previous page exists.
func (c *Controller) CanPrev() bool {
	return c.page > 1
}

// CanNext reports whether a following page exists.
func (c *Controller) CanNext() bool {
	return c.page < c.totalPages
}

// Key returns the query identity for the current state.
func (c *Controller) Key() models.QueryKey {
	return models.QueryKey{Page: c.page, Limit: c.limit, Search: c.debouncedSearch}
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	return State{
		Page:            c.page,
		Limit:           c.limit,
		RawSearch:       c.rawSearch,
		DebouncedSearch: c.debouncedSearch,
		TotalPages:      c.totalPages,
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
