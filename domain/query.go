package domain

import (
	"net/url"
	"strconv"
)

// Filters narrows the task listing. Zero values are omitted from the query.
type Filters struct {
	Search   string `json:"search,omitempty" yaml:"search"`
	Category string `json:"category,omitempty" yaml:"category"`
	Priority string `json:"priority,omitempty" yaml:"priority"`
	Status   string `json:"status,omitempty" yaml:"status"`
	SortBy   string `json:"sort_by,omitempty" yaml:"sort_by"`
	Page     int    `json:"page,omitempty" yaml:"page"`
	Limit    int    `json:"limit,omitempty" yaml:"limit"`
}

// Values encodes the filters as query parameters.
func (f Filters) Values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("search", f.Search)
	set("category", f.Category)
	set("priority", f.Priority)
	set("status", f.Status)
	set("sort_by", f.SortBy)
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// Page is one page of the task listing.
type Page struct {
	Tasks      []Task `json:"tasks"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"total_pages"`
}

// Stats aggregates task counts by status.
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
}
