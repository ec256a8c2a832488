package model

import (
	"fmt"
	"strings"
	"time"

	"tzcal/internal/apperr"
	"tzcal/internal/tz"
)

const (
	// DateTimeLayout is the minute-precision wire format, e.g. 2025-01-01T09:00.
	DateTimeLayout = "2006-01-02T15:04"
	// DateLayout is the date-only wire format.
	DateLayout = "2006-01-02"

	bulletDate  = "2006-01-02"
	bulletClock = "15:04"
)

// ParseDateTime parses a YYYY-MM-DDTHH:MM wall-clock value in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, apperr.Wrap(err, apperr.CodeValidation, fmt.Sprintf("invalid date-time %q, want YYYY-MM-DDTHH:MM", s))
	}
	return t, nil
}

// ParseDate parses a YYYY-MM-DD value as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, apperr.Wrap(err, apperr.CodeValidation, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s))
	}
	return t, nil
}

func FormatDateTime(t time.Time) string { return t.Format(DateTimeLayout) }

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// Bullet renders the event as one schedule line:
//
//	• Subject (2025-01-01 09:00 - 12:00) @ Location
//
// The end date is only printed when it differs from the start date, and the
// location suffix only when a location is set.
func (e Event) Bullet() string {
	var b strings.Builder
	b.WriteString("• ")
	b.WriteString(e.subject)
	b.WriteString(" (")
	b.WriteString(e.start.Format(bulletDate + " " + bulletClock))
	b.WriteString(" - ")
	if !tz.SameDay(e.start, e.end) {
		b.WriteString(e.end.Format(bulletDate))
		b.WriteString(" ")
	}
	b.WriteString(e.end.Format(bulletClock))
	b.WriteString(")")
	if e.location != "" {
		b.WriteString(" @ ")
		b.WriteString(e.location)
	}
	return b.String()
}
