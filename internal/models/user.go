package models

import "time"

// User is an immutable snapshot of an account as returned by the admin API.
type User struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the signed-in user shown in the dashboard header.
type Profile struct {
	ID              uint64     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PageResult holds one page of users plus the total match count across all pages.
// A PageResult is replaced wholesale on every successful fetch, never patched.
type PageResult struct {
	Rows       []User `json:"rows"`
	TotalCount int    `json:"total_count"`
}

// Len returns the number of rows on the page.
func (p *PageResult) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Rows)
}
