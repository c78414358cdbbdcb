package cache

import (
	"sync"
	"time"

	"github.com/charlesng35/userdash/internal/models"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

// Result is what a consumer renders for its current key.
type Result struct {
	Key    models.QueryKey
	Status Status
	Data   *models.PageResult
	Err    *appErrors.AppError
	// IsLoading is true while the key has no data of its own yet.
	IsLoading bool
	// IsFetching is true while any request for the key is in flight.
	IsFetching bool
	// IsPlaceholder is true when Data belongs to a previously observed key.
	IsPlaceholder bool
	UpdatedAt     time.Time
}

// IsError reports whether the latest fetch for the key failed.
func (r Result) IsError() bool {
	return r.Err != nil
}

// IsEmpty reports whether a settled, successful page has no rows.
func (r Result) IsEmpty() bool {
	return r.Status == StatusSuccess && !r.IsPlaceholder && r.Data.Len() == 0
}

// Observer tracks one consumer's view of the cache. With keepPrevious set, the
// last page the observer saw succeed stays visible while a new key loads.
type Observer struct {
	cache        *Cache
	keepPrevious bool

	mu       sync.Mutex
	previous *models.PageResult
}

// NewObserver returns an Observer reading from c.
func (c *Cache) NewObserver(keepPrevious bool) *Observer {
	return &Observer{cache: c, keepPrevious: keepPrevious}
}

// Result requests key from the cache, starting a fetch when needed.
func (o *Observer) Result(key models.QueryKey) Result {
	return o.resolve(o.cache.Fetch(key))
}

// Refetch forces a new request for key.
func (o *Observer) Refetch(key models.QueryKey) Result {
	return o.resolve(o.cache.Refetch(key))
}

// Peek reads key without starting a fetch.
func (o *Observer) Peek(key models.QueryKey) Result {
	e, _ := o.cache.Peek(key)
	return o.resolve(e)
}

// Reset forgets the placeholder page.
func (o *Observer) Reset() {
	o.mu.Lock()
	o.previous = nil
	o.mu.Unlock()
}

func (o *Observer) resolve(e Entry) Result {
	r := Result{
		Key:        e.Key,
		Status:     e.Status,
		Data:       e.Data,
		Err:        e.Err,
		IsFetching: e.Fetching,
		UpdatedAt:  e.LastFetchedAt,
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if e.Data != nil {
		o.previous = e.Data
		return r
	}

	r.IsLoading = e.Status == StatusPending || e.Status == StatusIdle
	if o.keepPrevious && o.previous != nil {
		r.Data = o.previous
		r.IsPlaceholder = true
	}
	return r
}
