package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowCases(t *testing.T) {
	cases := []struct {
		current, total int
		want           []string
	}{
		{1, 1, []string{"1"}},
		{1, 10, []string{"1", "2", "3", "…", "10"}},
		{5, 10, []string{"1", "…", "3", "4", "5", "6", "7", "…", "10"}},
		{10, 10, []string{"1", "…", "8", "9", "10"}},
		{3, 4, []string{"1", "2", "3", "4"}},
		{4, 10, []string{"1", "2", "3", "4", "5", "6", "…", "10"}},
		{7, 10, []string{"1", "…", "5", "6", "7", "8", "9", "10"}},
		{3, 6, []string{"1", "2", "3", "4", "5", "6"}},
		{4, 6, []string{"1", "2", "3", "4", "5", "6"}},
		{1, 6, []string{"1", "2", "3", "…", "6"}},
	}

	for _, tc := range cases {
		got := Labels(Window(tc.current, tc.total, DefaultDelta))
		require.Equal(t, tc.want, got, "Window(%d, %d)", tc.current, tc.total)
	}
}

func TestWindowEmptyForZeroTotal(t *testing.T) {
	require.Empty(t, Window(1, 0, DefaultDelta))
	require.Empty(t, Window(5, 0, DefaultDelta))
	require.NotNil(t, Window(1, 0, DefaultDelta))
}

func TestWindowNumbersStrictlyAscending(t *testing.T) {
	for total := 1; total <= 30; total++ {
		for current := 1; current <= total; current++ {
			for delta := 0; delta <= 4; delta++ {
				items := Window(current, total, delta)
				last := 0
				for _, item := range items {
					if item.Ellipsis {
						continue
					}
					require.Greater(t, item.Page, last, "Window(%d, %d, %d)", current, total, delta)
					last = item.Page
				}
				require.Equal(t, total, last, "last page must be reachable")
				require.Equal(t, 1, firstPage(items), "first page must be reachable")
			}
		}
	}
}

func TestWindowKeysAreDistinct(t *testing.T) {
	items := Window(5, 10, DefaultDelta)
	keys := map[string]bool{}
	for _, item := range items {
		require.False(t, keys[item.Key], "duplicate key %s", item.Key)
		keys[item.Key] = true
	}
	require.True(t, keys["ellipsis-start"])
	require.True(t, keys["ellipsis-end"])
}

func TestWindowNegativeDeltaActsAsZero(t *testing.T) {
	require.Equal(t, []string{"1", "…", "5", "…", "10"}, Labels(Window(5, 10, -3)))
}

func firstPage(items []PageItem) int {
	for _, item := range items {
		if !item.Ellipsis {
			return item.Page
		}
	}
	return 0
}
