// Package tz holds the timezone arithmetic shared by calendars: parsing zone
// identifiers, re-expressing wall-clock times between zones, and day-level
// shifts that keep the time of day.
package tz

import (
	"errors"
	"strings"
	"time"

	// Zone data is embedded so calendars behave the same on hosts without
	// /usr/share/zoneinfo.
	_ "time/tzdata"
)

// Parse resolves an IANA zone identifier ("America/New_York").
//
// Unlike time.LoadLocation, the empty string and "Local" are rejected: a
// calendar's zone must never depend on the host. "UTC" and "GMT" are valid
// only when spelled literally.
func Parse(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	switch name {
	case "":
		return nil, errors.New("timezone is empty")
	case "Local":
		return nil, errors.New("timezone must be an IANA identifier, not Local")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// Wall reinterprets t's wall clock (year..minute) in loc, dropping seconds and
// whatever location t carried. This is how zone-naive inputs are scoped to a
// calendar.
func Wall(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// Convert re-expresses the instant t in loc. The instant is unchanged; only
// the wall clock moves.
func Convert(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}

// Floor returns midnight of t's calendar day in t's own location.
func Floor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween counts whole calendar days from a to b, using their dates only.
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// ShiftDays moves t by n calendar days keeping its wall-clock time of day.
func ShiftDays(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+n, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Overlap reports whether [aStart, aEnd] and [bStart, bEnd] intersect.
// Touching endpoints count as overlapping.
func Overlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
