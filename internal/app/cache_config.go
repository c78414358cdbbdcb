package app

import (
	"github.com/charlesng35/userdash/internal/apiclient"
	"github.com/charlesng35/userdash/internal/cache"
	"github.com/charlesng35/userdash/internal/dashboard"
)

// CacheOptions converts the cache section into query cache options.
func (c CacheConfig) CacheOptions() []cache.Option {
	return []cache.Option{
		cache.WithMaxEntries(c.MaxEntries),
		cache.WithStaleTime(c.StaleTime),
		cache.WithGCTime(c.GCTime),
		cache.WithRetryLimit(c.RetryLimit),
	}
}

// ClientConfig converts the api section into the HTTP client representation.
func (c APIConfig) ClientConfig() apiclient.Config {
	return apiclient.Config{
		BaseURL:          c.BaseURL,
		Timeout:          c.Timeout,
		Retries:          c.Retries,
		RetryWait:        c.RetryWait,
		BreakerThreshold: c.Breaker.FailureThreshold,
		BreakerCooldown:  c.Breaker.Cooldown,
	}
}

// DashboardConfig converts the dashboard section into listing parameters.
func (c DashboardConfig) DashboardConfig() dashboard.Config {
	return dashboard.Config{
		PageSize:    c.PageSize,
		Debounce:    c.Debounce,
		WindowDelta: c.WindowDelta,
	}
}
