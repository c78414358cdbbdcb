package pagination

import "strconv"

// DefaultDelta is the number of pages shown on each side of the current page.
const DefaultDelta = 2

// Ellipsis is the label rendered for a collapsed run of pages.
const Ellipsis = "…"

// PageItem is one entry of a page window: either a page number or an ellipsis.
type PageItem struct {
	Page     int    `json:"page,omitempty"`
	Ellipsis bool   `json:"ellipsis,omitempty"`
	Key      string `json:"key"`
}

// Label returns the text to render for the item.
func (p PageItem) Label() string {
	if p.Ellipsis {
		return Ellipsis
	}
	return strconv.Itoa(p.Page)
}

// Window returns the page labels to render around current. The first and last
// pages are always reachable; runs of more than one hidden page collapse into an
// ellipsis. The thresholds are applied literally, which leaves slightly
// asymmetric placement for small totals:
//
//	Window(1, 10, 2)  -> 1 2 3 … 10
//	Window(5, 10, 2)  -> 1 … 3 4 5 6 7 … 10
//	Window(10, 10, 2) -> 1 … 8 9 10
//
// Each ellipsis has its own Key so the two can be told apart in a rendered list.
func Window(current, total, delta int) []PageItem {
	if total <= 0 {
		return []PageItem{}
	}
	if delta < 0 {
		delta = 0
	}

	items := make([]PageItem, 0, 2*delta+5)

	if current > 1+delta {
		items = append(items, pageItem(1))
		if current > 2+delta {
			items = append(items, PageItem{Ellipsis: true, Key: "ellipsis-start"})
		}
	}

	for i := max(1, current-delta); i <= min(total, current+delta); i++ {
		items = append(items, pageItem(i))
	}

	if current < total-delta {
		if current < total-delta-1 {
			items = append(items, PageItem{Ellipsis: true, Key: "ellipsis-end"})
		}
		items = append(items, pageItem(total))
	}

	return items
}

// Labels is a convenience for rendering a window as plain strings.
func Labels(items []PageItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label()
	}
	return out
}

func pageItem(n int) PageItem {
	return PageItem{Page: n, Key: "page-" + strconv.Itoa(n)}
}
