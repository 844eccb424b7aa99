// Package agenda groups calendar events for display and persists them per
// user inside a tenant.
package agenda

import (
	"net/http"
	"sort"
	"time"

	"github.com/diewo77/go-chantiers/internal/models"
)

// TimezoneHeader carries the viewer's IANA zone when the query has none.
const TimezoneHeader = "X-Timezone"

// Buckets is the agenda page split.
type Buckets struct {
	Today    []models.AgendaEvent `json:"today"`
	Upcoming []models.AgendaEvent `json:"upcoming"`
}

// Bucket splits events around now. Today holds the events starting on
// now's calendar date in now's location. Upcoming holds the other events
// that start after now. Both lists are sorted by start time. Past events
// of earlier days are dropped.
func Bucket(events []models.AgendaEvent, now time.Time) Buckets {
	loc := now.Location()
	y, m, d := now.Date()
	out := Buckets{Today: []models.AgendaEvent{}, Upcoming: []models.AgendaEvent{}}
	for _, e := range events {
		ey, em, ed := e.StartsAt.In(loc).Date()
		switch {
		case ey == y && em == m && ed == d:
			out.Today = append(out.Today, e)
		case e.StartsAt.After(now):
			out.Upcoming = append(out.Upcoming, e)
		}
	}
	byStart := func(list []models.AgendaEvent) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].StartsAt.Before(list[j].StartsAt) })
	}
	byStart(out.Today)
	byStart(out.Upcoming)
	return out
}

// Location returns the viewer's zone from the tz query parameter or the
// X-Timezone header. Unknown or missing zones fall back to fallback.
func Location(r *http.Request, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.Local
	}
	name := r.URL.Query().Get("tz")
	if name == "" {
		name = r.Header.Get(TimezoneHeader)
	}
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
