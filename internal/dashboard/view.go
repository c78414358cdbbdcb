package dashboard

import (
	"time"

	"github.com/charlesng35/userdash/internal/cache"
	"github.com/charlesng35/userdash/internal/models"
	"github.com/charlesng35/userdash/internal/pagination"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

// View is an immutable snapshot of everything the users screen renders.
type View struct {
	// Version increases with every published snapshot.
	Version uint64

	Rows       []models.User
	TotalCount int
	// TotalKnown is false until some page has loaded.
	TotalKnown bool
	TotalPages int
	Page       int
	Limit      int

	Search          string
	DebouncedSearch string
	SearchPending   bool

	Status        cache.Status
	Err           *appErrors.AppError
	IsLoading     bool
	IsFetching    bool
	IsPlaceholder bool
	UpdatedAt     time.Time

	Window  []pagination.PageItem
	CanPrev bool
	CanNext bool
}

// Key returns the query the view is showing.
func (v View) Key() models.QueryKey {
	return models.QueryKey{Page: v.Page, Limit: v.Limit, Search: v.DebouncedSearch}
}

// IsEmpty reports a settled search with no matches, as opposed to a failure.
func (v View) IsEmpty() bool {
	return v.Status == cache.StatusSuccess && !v.IsPlaceholder && len(v.Rows) == 0
}

// RowOffset is the 1-based position of the first row across all pages.
func (v View) RowOffset() int {
	if v.Page < 1 || v.Limit < 1 {
		return 1
	}
	return (v.Page-1)*v.Limit + 1
}
