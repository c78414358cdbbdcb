package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/userdash/internal/apiclient"
	"github.com/charlesng35/userdash/internal/cache"
	"github.com/charlesng35/userdash/internal/models"
	"github.com/charlesng35/userdash/internal/pagination"
	"github.com/charlesng35/userdash/internal/testutil"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

var signedIn = AuthenticatorFunc(func() bool { return true })

// gatedFetcher serves pages from SeedUsers but holds each key until released.
type gatedFetcher struct {
	users []models.User

	mu    sync.Mutex
	gates map[models.QueryKey]chan struct{}
	fail  map[models.QueryKey]error
	calls []models.QueryKey
}

func newGatedFetcher(count int) *gatedFetcher {
	return &gatedFetcher{
		users: testutil.SeedUsers(count),
		gates: make(map[models.QueryKey]chan struct{}),
		fail:  make(map[models.QueryKey]error),
	}
}

func (f *gatedFetcher) gate(key models.QueryKey) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[key]
	if !ok {
		g = make(chan struct{})
		f.gates[key] = g
	}
	return g
}

func (f *gatedFetcher) release(key models.QueryKey) {
	close(f.gate(key))
}

func (f *gatedFetcher) setFail(key models.QueryKey, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[key] = err
}

func (f *gatedFetcher) requested() []models.QueryKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.QueryKey(nil), f.calls...)
}

func (f *gatedFetcher) ListUsers(ctx context.Context, key models.QueryKey) (*models.PageResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	select {
	case <-f.gate(key):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f.mu.Lock()
	err := f.fail[key]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	matches := testutil.Filter(f.users, key.Search)
	start := min((key.Page-1)*key.Limit, len(matches))
	end := min(start+key.Limit, len(matches))
	return &models.PageResult{Rows: matches[start:end], TotalCount: len(matches)}, nil
}

func mount(t *testing.T, fetcher cache.Fetcher, clock clockwork.Clock) (*Dashboard, *cache.Cache) {
	t.Helper()
	c, err := cache.New(fetcher)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	d, err := Mount(context.Background(), signedIn, c, DefaultConfig(), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, c
}

func waitView(t *testing.T, d *Dashboard, cond func(View) bool) View {
	t.Helper()
	require.Eventually(t, func() bool { return cond(d.View()) }, 2*time.Second, 5*time.Millisecond)
	return d.View()
}

func loaded(page int, search string) func(View) bool {
	return func(v View) bool {
		return v.Page == page && v.DebouncedSearch == search && v.Status == cache.StatusSuccess &&
			!v.IsPlaceholder && !v.IsFetching
	}
}

func TestMountRequiresAuthentication(t *testing.T) {
	c, err := cache.New(newGatedFetcher(1))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	_, err = Mount(context.Background(), AuthenticatorFunc(func() bool { return false }), c, DefaultConfig())
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = Mount(context.Background(), nil, c, DefaultConfig())
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestMountValidatesConfig(t *testing.T) {
	c, err := cache.New(newGatedFetcher(1))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	cfg := DefaultConfig()
	cfg.PageSize = 0
	_, err = Mount(context.Background(), signedIn, c, cfg)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	cfg = DefaultConfig()
	cfg.Debounce = 0
	_, err = Mount(context.Background(), signedIn, c, cfg)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestInitialLoad(t *testing.T) {
	f := newGatedFetcher(45)
	d, _ := mount(t, f, clockwork.NewFakeClock())

	v := d.View()
	require.True(t, v.IsLoading)
	require.False(t, v.TotalKnown)
	require.Empty(t, v.Rows)
	require.Equal(t, 1, v.Page)
	require.Empty(t, v.Window)

	f.release(models.QueryKey{Page: 1, Limit: 10})
	v = waitView(t, d, loaded(1, ""))
	require.False(t, v.IsLoading)
	require.Len(t, v.Rows, 10)
	require.Equal(t, 45, v.TotalCount)
	require.Equal(t, 5, v.TotalPages)
	require.False(t, v.CanPrev)
	require.True(t, v.CanNext)
	require.Equal(t, []string{"1", "2", "3", "…", "5"}, pagination.Labels(v.Window))
	require.Equal(t, 1, v.RowOffset())
}

// Typing "ann" one character at a time fetches once, 500ms after the last
// keystroke, and moves the listing back to page 1.
func TestTypingSearchEndToEnd(t *testing.T) {
	api := testutil.NewFakeAPI(t, 30)
	client, err := apiclient.New(apiclient.Config{BaseURL: api.BaseURL(), Timeout: 2 * time.Second},
		apiclient.WithCredentials(apiclient.StaticToken(api.IssueToken(1))))
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	d, _ := mount(t, client, clock)

	waitView(t, d, loaded(1, ""))
	require.NoError(t, d.SetPage(3))
	v := waitView(t, d, loaded(3, ""))
	require.Equal(t, uint64(21), v.Rows[0].ID)
	require.Len(t, api.Queries(), 2)

	for _, text := range []string{"a", "an", "ann"} {
		require.NoError(t, d.SetSearch(text))
		require.Equal(t, text, d.View().Search)
		clock.Advance(200 * time.Millisecond)
	}

	v = d.View()
	require.Equal(t, "ann", v.Search)
	require.Equal(t, "", v.DebouncedSearch)
	require.True(t, v.SearchPending)
	require.Equal(t, 3, v.Page)

	clock.Advance(299 * time.Millisecond)
	require.Never(t, func() bool { return len(api.Queries()) > 2 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Millisecond)
	v = waitView(t, d, loaded(1, "ann"))
	require.Equal(t, 10, v.TotalCount)
	require.Equal(t, 1, v.TotalPages)
	for _, u := range v.Rows {
		require.Contains(t, u.Name, "Ann")
	}

	queries := api.Queries()
	require.Len(t, queries, 3)
	require.Equal(t, models.QueryKey{Page: 1, Limit: 10, Search: "ann"}, queries[2])
}

func TestNewPageKeepsPreviousRowsWhileLoading(t *testing.T) {
	f := newGatedFetcher(30)
	d, _ := mount(t, f, clockwork.NewFakeClock())

	first := models.QueryKey{Page: 1, Limit: 10}
	f.release(first)
	page1 := waitView(t, d, loaded(1, ""))

	require.NoError(t, d.Next())
	v := d.View()
	require.Equal(t, 2, v.Page)
	require.True(t, v.IsLoading)
	require.True(t, v.IsPlaceholder)
	require.Equal(t, page1.Rows, v.Rows)
	require.True(t, v.CanPrev)

	f.release(models.QueryKey{Page: 2, Limit: 10})
	v = waitView(t, d, loaded(2, ""))
	require.Equal(t, uint64(11), v.Rows[0].ID)

	// Going back is served from the cache without a request.
	require.NoError(t, d.Prev())
	v = d.View()
	require.False(t, v.IsLoading)
	require.False(t, v.IsPlaceholder)
	require.Equal(t, uint64(1), v.Rows[0].ID)
	require.Len(t, f.requested(), 2)
}

func TestSetPageClamps(t *testing.T) {
	f := newGatedFetcher(25)
	d, _ := mount(t, f, clockwork.NewFakeClock())

	// Unknown page count: navigation is a no-op.
	require.NoError(t, d.SetPage(3))
	require.Equal(t, 1, d.View().Page)

	f.release(models.QueryKey{Page: 1, Limit: 10})
	waitView(t, d, loaded(1, ""))

	f.release(models.QueryKey{Page: 3, Limit: 10})
	require.NoError(t, d.SetPage(99))
	v := waitView(t, d, loaded(3, ""))
	require.False(t, v.CanNext)
	require.Len(t, v.Rows, 5)

	require.NoError(t, d.Next())
	require.Equal(t, 3, d.View().Page)

	require.NoError(t, d.SetPage(-4))
	require.Equal(t, 1, d.View().Page)
}

func TestAbandonedSearchDoesNotOverwriteView(t *testing.T) {
	f := newGatedFetcher(30)
	clock := clockwork.NewFakeClock()
	d, c := mount(t, f, clock)

	f.release(models.QueryKey{Page: 1, Limit: 10})
	waitView(t, d, loaded(1, ""))

	short := models.QueryKey{Page: 1, Limit: 10, Search: "u"}
	long := models.QueryKey{Page: 1, Limit: 10, Search: "user1"}

	require.NoError(t, d.SetSearch("u"))
	clock.Advance(500 * time.Millisecond)
	waitView(t, d, func(v View) bool { return v.DebouncedSearch == "u" })

	require.NoError(t, d.SetSearch("user1"))
	clock.Advance(500 * time.Millisecond)
	waitView(t, d, func(v View) bool { return v.DebouncedSearch == "user1" })

	f.release(long)
	v := waitView(t, d, loaded(1, "user1"))
	require.Equal(t, 11, v.TotalCount)

	f.release(short)
	require.Eventually(t, func() bool {
		e, ok := c.Peek(short)
		return ok && e.Status == cache.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	require.Never(t, func() bool { return d.View().DebouncedSearch != "user1" || d.View().TotalCount != 11 },
		50*time.Millisecond, 5*time.Millisecond)
}

func TestFailedPageKeepsRowsAndSurfacesError(t *testing.T) {
	f := newGatedFetcher(30)
	c, err := cache.New(f, cache.WithRetryLimit(0))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	d, err := Mount(context.Background(), signedIn, c, DefaultConfig(), WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	f.release(models.QueryKey{Page: 1, Limit: 10})
	page1 := waitView(t, d, loaded(1, ""))

	second := models.QueryKey{Page: 2, Limit: 10}
	f.setFail(second, appErrors.NewServerError(500, "database unavailable"))
	f.release(second)
	require.NoError(t, d.Next())

	v := waitView(t, d, func(v View) bool { return v.Err != nil })
	require.Equal(t, cache.StatusError, v.Status)
	require.Equal(t, "database unavailable", v.Err.Message)
	require.Equal(t, page1.Rows, v.Rows)
	require.True(t, v.IsPlaceholder)
	require.False(t, v.IsLoading)
	require.False(t, v.IsEmpty())

	f.setFail(second, nil)
	require.NoError(t, d.Refresh())
	v = waitView(t, d, loaded(2, ""))
	require.Nil(t, v.Err)
	require.Equal(t, uint64(11), v.Rows[0].ID)
}

func TestEmptyResultIsDistinctFromFailure(t *testing.T) {
	f := newGatedFetcher(5)
	clock := clockwork.NewFakeClock()
	d, _ := mount(t, f, clock)

	f.release(models.QueryKey{Page: 1, Limit: 10})
	waitView(t, d, loaded(1, ""))

	f.release(models.QueryKey{Page: 1, Limit: 10, Search: "zzz"})
	require.NoError(t, d.SetSearch("zzz"))
	require.True(t, d.FlushSearch())

	v := waitView(t, d, loaded(1, "zzz"))
	require.True(t, v.IsEmpty())
	require.Nil(t, v.Err)
	require.Zero(t, v.TotalPages)
	require.Empty(t, v.Window)
}

func TestUpdatesChannelDeliversLatest(t *testing.T) {
	f := newGatedFetcher(30)
	d, _ := mount(t, f, clockwork.NewFakeClock())

	f.release(models.QueryKey{Page: 1, Limit: 10})
	require.Eventually(t, func() bool {
		select {
		case v := <-d.Updates():
			return loaded(1, "")(v)
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestCloseStopsCommandsAndPendingSearch(t *testing.T) {
	f := newGatedFetcher(30)
	clock := clockwork.NewFakeClock()
	d, _ := mount(t, f, clock)

	f.release(models.QueryKey{Page: 1, Limit: 10})
	waitView(t, d, loaded(1, ""))

	require.NoError(t, d.SetSearch("ann"))
	d.Close()
	d.Close()

	clock.Advance(time.Second)
	require.ErrorIs(t, d.SetPage(2), ErrClosed)
	require.ErrorIs(t, d.SetSearch("x"), ErrClosed)
	require.Equal(t, "", d.View().DebouncedSearch)
	require.Len(t, f.requested(), 1)

	select {
	case <-d.Done():
	default:
		t.Fatal("loop still running after Close")
	}
}
