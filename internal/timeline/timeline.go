// Package timeline prepares stored events for the timeline views.
package timeline

import (
	"net/url"
	"sort"
	"time"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/event"
)

// View selects between one merged timeline and one lane per platform.
type View string

const (
	ViewUnified    View = "unified"
	ViewByPlatform View = "by-platform"
)

// Layout selects the timeline orientation.
type Layout string

const (
	LayoutVertical   Layout = "vertical"
	LayoutHorizontal Layout = "horizontal"
)

// FilterAll disables category filtering.
const FilterAll = "all"

// Order is a sort direction.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Params is the timeline state carried in the query string.
type Params struct {
	View   View
	Layout Layout
	Filter string
}

// Group is one platform's lane.
type Group struct {
	Name   string
	Slug   string
	Events []database.EventWithService
}

// ParseParams reads timeline state from a query string. Unknown values fall
// back to the unified vertical view without filtering.
func ParseParams(q url.Values) Params {
	p := Params{View: ViewUnified, Layout: LayoutVertical, Filter: FilterAll}
	if View(q.Get("view")) == ViewByPlatform {
		p.View = ViewByPlatform
	}
	if Layout(q.Get("layout")) == LayoutHorizontal {
		p.Layout = LayoutHorizontal
	}
	if f := q.Get("filter"); event.Category(f).Valid() {
		p.Filter = f
	}
	return p
}

// BuildParams encodes timeline state as a query string.
func BuildParams(p Params) string {
	q := url.Values{}
	q.Set("view", string(p.View))
	q.Set("layout", string(p.Layout))
	q.Set("filter", p.Filter)
	return q.Encode()
}

// With returns a copy of p with one field replaced, for building links.
func (p Params) With(key, value string) string {
	switch key {
	case "view":
		p.View = View(value)
	case "layout":
		p.Layout = Layout(value)
	case "filter":
		p.Filter = value
	}
	return BuildParams(p)
}

// GroupByPlatform splits events into per-platform lanes in order of first
// appearance, newest event first within each lane.
func GroupByPlatform(events []database.EventWithService) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, e := range events {
		i, ok := index[e.ServiceSlug]
		if !ok {
			i = len(groups)
			index[e.ServiceSlug] = i
			groups = append(groups, Group{Name: e.ServiceName, Slug: e.ServiceSlug})
		}
		groups[i].Events = append(groups[i].Events, e)
	}
	for i := range groups {
		groups[i].Events = Sort(groups[i].Events, Descending)
	}
	return groups
}

// FilterByType keeps events of one category. FilterAll keeps everything.
func FilterByType(events []database.EventWithService, category string) []database.EventWithService {
	if category == FilterAll || category == "" {
		return events
	}
	var out []database.EventWithService
	for _, e := range events {
		if e.EventType == category {
			out = append(out, e)
		}
	}
	return out
}

// Sort returns a chronologically sorted copy of events.
func Sort(events []database.EventWithService, order Order) []database.EventWithService {
	out := make([]database.EventWithService, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if order == Descending {
			return out[i].EventDate > out[j].EventDate
		}
		return out[i].EventDate < out[j].EventDate
	})
	return out
}

// UniqueTypes lists the categories present in events, sorted.
func UniqueTypes(events []database.EventWithService) []string {
	seen := make(map[string]bool)
	var types []string
	for _, e := range events {
		if e.EventType == "" || seen[e.EventType] {
			continue
		}
		seen[e.EventType] = true
		types = append(types, e.EventType)
	}
	sort.Strings(types)
	return types
}

// FormatMonth renders a stored date as YYYY-MM.
func FormatMonth(date string) string {
	d, err := time.Parse(event.DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("2006-01")
}

// FormatFull renders a stored date as "Jan 2, 2006".
func FormatFull(date string) string {
	d, err := time.Parse(event.DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("Jan 2, 2006")
}
