package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charlesng35/userdash/internal/dashboard"
	"github.com/charlesng35/userdash/internal/models"
)

const dateLayout = "2006-01-02"

func renderProfile(w io.Writer, p *models.Profile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "Member since:\t%s\n", p.CreatedAt.Format(dateLayout))
	}
	_ = tw.Flush()
}

// renderView writes the users screen: header, table and pagination bar.
func renderView(w io.Writer, v dashboard.View, profile *models.Profile) {
	if profile != nil {
		fmt.Fprintf(w, "Signed in as %s <%s>\n", profile.Name, profile.Email)
	}

	total := "…"
	if v.TotalKnown {
		total = fmt.Sprintf("%d", v.TotalCount)
	}
	header := "Total users: " + total
	if v.DebouncedSearch != "" {
		header += fmt.Sprintf("   Search: %q", v.DebouncedSearch)
	}
	fmt.Fprintln(w, header)

	switch {
	case v.Err != nil && len(v.Rows) == 0:
		fmt.Fprintf(w, "Error: %s\n", v.Err.Message)
	case v.IsLoading:
		fmt.Fprintln(w, "Loading…")
	case v.IsEmpty():
		fmt.Fprintln(w, "No users found")
	default:
		renderRows(w, v)
		switch {
		case v.Err != nil && v.IsPlaceholder:
			fmt.Fprintf(w, "Error: %s (showing previous results)\n", v.Err.Message)
		case v.Err != nil:
			fmt.Fprintf(w, "Refresh failed: %s\n", v.Err.Message)
		}
	}

	if bar := paginationBar(v); bar != "" {
		fmt.Fprintln(w, bar)
	}
}

func renderRows(w io.Writer, v dashboard.View) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tEMAIL\tCREATED")
	offset := v.RowOffset()
	for i, u := range v.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", offset+i, u.Name, u.Email, formatDate(u.CreatedAt))
	}
	_ = tw.Flush()
}

func paginationBar(v dashboard.View) string {
	if v.TotalPages <= 0 {
		return ""
	}

	labels := make([]string, 0, len(v.Window))
	for _, item := range v.Window {
		label := item.Label()
		if !item.Ellipsis && item.Page == v.Page {
			label = "[" + label + "]"
		}
		labels = append(labels, label)
	}

	parts := []string{fmt.Sprintf("Page %d of %d", v.Page, v.TotalPages), strings.Join(labels, " ")}
	if v.CanPrev {
		parts = append(parts, "‹ p")
	}
	if v.CanNext {
		parts = append(parts, "n ›")
	}
	return strings.Join(parts, "   ")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}
