package cache

import (
	"time"

	"github.com/charlesng35/userdash/internal/models"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

// Status is the fetch state of a cache entry.
type Status int

const (
	// StatusIdle means the key has never been requested.
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Entry is a read-only snapshot of the cached state for one QueryKey.
type Entry struct {
	Key    models.QueryKey
	Status Status
	// Data is the last successful page; it survives a failed background refresh.
	Data *models.PageResult
	// Err is the most recent failure, cleared by the next success.
	Err           *appErrors.AppError
	LastFetchedAt time.Time
	// Failures counts consecutive failed fetches.
	Failures int
	// Fetching is true while a request for the key is in flight.
	Fetching bool
}

type entry struct {
	key        models.QueryKey
	status     Status
	data       *models.PageResult
	err        *appErrors.AppError
	fetchedAt  time.Time
	accessedAt time.Time
	failures   int
	fetching   bool
}

func (e *entry) snapshot() Entry {
	return Entry{
		Key:           e.key,
		Status:        e.status,
		Data:          e.data,
		Err:           e.err,
		LastFetchedAt: e.fetchedAt,
		Failures:      e.failures,
		Fetching:      e.fetching,
	}
}
