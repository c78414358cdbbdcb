package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/userdash/internal/cache"
	"github.com/charlesng35/userdash/internal/dashboard"
	"github.com/charlesng35/userdash/internal/pagination"
	"github.com/charlesng35/userdash/pkg/response"
)

// viewSummary is the JSON form of a dashboard view, without row contents.
type viewSummary struct {
	Version       uint64    `json:"version"`
	Page          int       `json:"page"`
	Limit         int       `json:"limit"`
	Search        string    `json:"search"`
	Debounced     string    `json:"debounced_search"`
	SearchPending bool      `json:"search_pending"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Rows          int       `json:"rows"`
	TotalCount    int       `json:"total_count"`
	TotalPages    int       `json:"total_pages"`
	IsLoading     bool      `json:"is_loading"`
	IsFetching    bool      `json:"is_fetching"`
	IsPlaceholder bool      `json:"is_placeholder"`
	Window        []string  `json:"window"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

type debugPayload struct {
	Cache cache.Stats  `json:"cache"`
	View  *viewSummary `json:"view,omitempty"`
}

func registerDebugRoutes(r *gin.Engine, deps Dependencies) {
	r.GET("/debug/cache", func(c *gin.Context) {
		payload := debugPayload{Cache: deps.Cache.Stats()}
		if deps.Views != nil {
			if view, ok := deps.Views(); ok {
				payload.View = summarise(view)
			}
		}
		response.Success(c, http.StatusOK, payload)
	})
}

func summarise(v dashboard.View) *viewSummary {
	s := &viewSummary{
		Version:       v.Version,
		Page:          v.Page,
		Limit:         v.Limit,
		Search:        v.Search,
		Debounced:     v.DebouncedSearch,
		SearchPending: v.SearchPending,
		Status:        v.Status.String(),
		Rows:          len(v.Rows),
		TotalCount:    v.TotalCount,
		TotalPages:    v.TotalPages,
		IsLoading:     v.IsLoading,
		IsFetching:    v.IsFetching,
		IsPlaceholder: v.IsPlaceholder,
		Window:        pagination.Labels(v.Window),
		UpdatedAt:     v.UpdatedAt,
	}
	if v.Err != nil {
		s.Error = v.Err.Message
	}
	return s
}
