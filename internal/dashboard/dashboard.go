// Package dashboard drives the paginated user listing. It wires search input
// through a debouncer into the pagination controller, reads pages from the query
// cache and publishes a render-ready View after every change.
//
// All state is owned by a single event loop goroutine. Public methods post
// commands to the loop and wait for them to be applied.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/charlesng35/userdash/internal/cache"
	"github.com/charlesng35/userdash/internal/debounce"
	"github.com/charlesng35/userdash/internal/pagination"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
	"github.com/charlesng35/userdash/pkg/logger"
)

// ErrClosed is returned by commands issued after Close.
var ErrClosed = appErrors.New(appErrors.CodeInternal, "dashboard closed", 0)

// Authenticator is consulted once when the dashboard mounts.
type Authenticator interface {
	IsAuthenticated() bool
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func() bool

// IsAuthenticated calls f.
func (f AuthenticatorFunc) IsAuthenticated() bool { return f() }

// Config holds the listing parameters.
type Config struct {
	PageSize    int
	Debounce    time.Duration
	WindowDelta int
}

// DefaultConfig returns a page size of 10, a 500ms search debounce and a page
// window of two pages either side of the current one.
func DefaultConfig() Config {
	return Config{
		PageSize:    pagination.DefaultLimit,
		Debounce:    debounce.DefaultSearchDelay,
		WindowDelta: pagination.DefaultDelta,
	}
}

// Option customises a Dashboard.
type Option func(*Dashboard)

// WithClock drives the search debouncer from clock.
func WithClock(clock clockwork.Clock) Option {
	return func(d *Dashboard) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// Dashboard is the orchestrator behind the users screen.
type Dashboard struct {
	cfg   Config
	clock clockwork.Clock
	log   *zap.Logger

	cache    *cache.Cache
	observer *cache.Observer
	ctrl     *pagination.Controller
	search   *debounce.Debouncer[string]

	ctx         context.Context
	cancel      context.CancelFunc
	commands    chan func()
	settled     chan cache.Entry
	unsubscribe func()
	loopDone    chan struct{}
	closeOnce   sync.Once

	mu      sync.RWMutex
	view    View
	updates chan View
	version uint64
}

// Mount checks authentication, starts the event loop and requests the first
// page. It returns errors.ErrUnauthorized when auth reports no session.
func Mount(ctx context.Context, auth Authenticator, c *cache.Cache, cfg Config, opts ...Option) (*Dashboard, error) {
	if auth == nil || !auth.IsAuthenticated() {
		return nil, appErrors.ErrUnauthorized
	}
	if c == nil {
		return nil, appErrors.NewValidationError("dashboard: cache is required")
	}
	if cfg.WindowDelta < 0 {
		cfg.WindowDelta = pagination.DefaultDelta
	}

	ctrl, err := pagination.NewController(cfg.PageSize)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		log:      logger.WithModule("dashboard"),
		cache:    c,
		observer: c.NewObserver(true),
		ctrl:     ctrl,
		commands: make(chan func()),
		settled:  make(chan cache.Entry, 16),
		loopDone: make(chan struct{}),
		updates:  make(chan View, 1),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.search, err = debounce.New(cfg.Debounce, "", d.onDebounced, debounce.WithClock(d.clock))
	if err != nil {
		return nil, err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.unsubscribe = c.Subscribe(d.onSettled)

	// The first page is requested before the loop starts so View is populated
	// as soon as Mount returns.
	d.refresh(true)

	go d.loop()
	return d, nil
}

// SetSearch records the search box contents. The query changes only after the
// input has been stable for the debounce delay.
func (d *Dashboard) SetSearch(text string) error {
	return d.do(func() {
		d.ctrl.SetSearch(text)
		d.search.Set(text)
		d.publish()
	})
}

// FlushSearch applies a pending search term immediately.
func (d *Dashboard) FlushSearch() bool {
	return d.search.Flush()
}

// SetPage jumps to page n, clamped into range.
func (d *Dashboard) SetPage(n int) error {
	return d.do(func() {
		if d.ctrl.SetPage(n) {
			d.refresh(true)
		}
	})
}

// Next moves forward one page.
func (d *Dashboard) Next() error {
	return d.do(func() {
		if d.ctrl.Next() {
			d.refresh(true)
		}
	})
}

// Prev moves back one page.
func (d *Dashboard) Prev() error {
	return d.do(func() {
		if d.ctrl.Prev() {
			d.refresh(true)
		}
	})
}

// Refresh refetches the current page, keeping its rows visible meanwhile.
func (d *Dashboard) Refresh() error {
	return d.do(func() {
		d.observer.Refetch(d.ctrl.Key())
		d.refresh(false)
	})
}

// View returns the latest snapshot.
func (d *Dashboard) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

// Updates delivers snapshots as they are published. Only the latest unread
// snapshot is kept, so slow readers skip intermediate states.
func (d *Dashboard) Updates() <-chan View {
	return d.updates
}

// Close stops the loop and cancels the pending search emission. Requests already
// in flight still complete into the cache.
func (d *Dashboard) Close() {
	d.closeOnce.Do(func() {
		d.cancel()
		<-d.loopDone
		d.search.Close()
		d.unsubscribe()
	})
}

// Done is closed once the event loop has exited.
func (d *Dashboard) Done() <-chan struct{} {
	return d.loopDone
}

func (d *Dashboard) loop() {
	defer close(d.loopDone)

	for {
		select {
		case fn := <-d.commands:
			fn()
		case e := <-d.settled:
			d.applySettled(e)
		case <-d.ctx.Done():
			return
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (d *Dashboard) do(fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case d.commands <- wrapped:
	case <-d.ctx.Done():
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-d.loopDone:
		return ErrClosed
	}
}

// onDebounced runs on the debouncer's timer goroutine.
func (d *Dashboard) onDebounced(text string) {
	err := d.do(func() {
		if d.ctrl.ApplyDebounced(text) {
			d.log.Debug("search settled", zap.String("search", text))
			d.refresh(true)
			return
		}
		d.publish()
	})
	if err != nil {
		d.log.Debug("dropped search after close", zap.String("search", text))
	}
}

// onSettled runs on the cache's fetch goroutines.
func (d *Dashboard) onSettled(e cache.Entry) {
	select {
	case d.settled <- e:
	case <-d.ctx.Done():
	}
}

func (d *Dashboard) applySettled(e cache.Entry) {
	if e.Key != d.ctrl.Key() {
		// The page is cached for a later visit but must not replace the view.
		d.log.Debug("ignoring result for non-current key", zap.Stringer("key", e.Key))
		return
	}
	d.refresh(false)
}

// refresh reads the current key from the cache, starting a fetch when fetch is
// set, and publishes the resulting view.
func (d *Dashboard) refresh(fetch bool) {
	key := d.ctrl.Key()

	var r cache.Result
	if fetch {
		r = d.observer.Result(key)
	} else {
		r = d.observer.Peek(key)
	}

	if r.Data != nil && !r.IsPlaceholder {
		d.ctrl.SetTotalCount(r.Data.TotalCount)
	}
	d.publishResult(r)
}

func (d *Dashboard) publish() {
	d.publishResult(d.observer.Peek(d.ctrl.Key()))
}

func (d *Dashboard) publishResult(r cache.Result) {
	state := d.ctrl.State()

	v := View{
		Page:            state.Page,
		Limit:           state.Limit,
		TotalPages:      state.TotalPages,
		Search:          state.RawSearch,
		DebouncedSearch: state.DebouncedSearch,
		SearchPending:   d.search.Pending(),
		Status:          r.Status,
		Err:             r.Err,
		IsLoading:       r.IsLoading,
		IsFetching:      r.IsFetching,
		IsPlaceholder:   r.IsPlaceholder,
		UpdatedAt:       r.UpdatedAt,
		CanPrev:         d.ctrl.CanPrev(),
		CanNext:         d.ctrl.CanNext(),
		Window:          pagination.Window(state.Page, state.TotalPages, d.cfg.WindowDelta),
	}
	if r.Data != nil {
		v.Rows = r.Data.Rows
		v.TotalCount = r.Data.TotalCount
		v.TotalKnown = true
	}

	d.mu.Lock()
	d.version++
	v.Version = d.version
	d.view = v
	d.mu.Unlock()

	select {
	case <-d.updates:
	default:
	}
	select {
	case d.updates <- v:
	default:
	}
}
