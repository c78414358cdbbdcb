package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/userdash/internal/cache"
	"github.com/charlesng35/userdash/internal/dashboard"
	"github.com/charlesng35/userdash/internal/middleware"
)

// CacheStats exposes query cache counters.
type CacheStats interface {
	Stats() cache.Stats
}

// ViewSource returns the screen currently mounted, if any.
type ViewSource func() (dashboard.View, bool)

// Dependencies are the running components the status server reports on.
type Dependencies struct {
	Cache   CacheStats
	Views   ViewSource
	Session dashboard.Authenticator
}

// NewRouter builds the Gin engine for the local status server.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache must be provided")
	}

	r := gin.New()

	r.Use(middleware.Status(middleware.Options{QuietRoutes: []string{"/healthz", "/metrics"}})...)

	registerHealthRoutes(r, deps)
	registerDebugRoutes(r, deps)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(middleware.NotFound)

	return r, nil
}
