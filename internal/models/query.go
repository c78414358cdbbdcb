package models

import (
	"fmt"
	"net/url"
	"strconv"
)

// QueryKey identifies one page of the user listing. Two keys are equal iff every
// field is equal; the search term is compared exactly, empty string included.
type QueryKey struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Search string `json:"search"`
}

// Valid reports whether the key can be sent to the API.
func (k QueryKey) Valid() bool {
	return k.Page >= 1 && k.Limit > 0
}

// Values encodes the key as query parameters. search is always present so the
// server treats an empty term as an unfiltered listing.
func (k QueryKey) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(k.Page))
	v.Set("limit", strconv.Itoa(k.Limit))
	v.Set("search", k.Search)
	return v
}

func (k QueryKey) String() string {
	return fmt.Sprintf("users?page=%d&limit=%d&search=%q", k.Page, k.Limit, k.Search)
}
