package model

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tzcal/internal/apperr"
)

// All-day events are synthesized as this working-hours window.
const (
	allDayStartHour = 8
	allDayEndHour   = 17
)

var validate = validator.New()

// Status is the visibility of an event.
type Status string

const (
	StatusNone    Status = ""
	StatusPublic  Status = "public"
	StatusPrivate Status = "private"
)

// ParseStatus accepts "", "public" or "private" in any letter case.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusNone, StatusPublic, StatusPrivate:
		return st, nil
	default:
		return StatusNone, apperr.Validationf("invalid status %q: must be public or private", s)
	}
}

// Event is a single calendar entry. Values are immutable: every With* method
// returns a modified copy.
//
// Two events are duplicates when Subject, Start and End are equal; series
// identity, description, location and status do not take part.
type Event struct {
	subject     string
	start       time.Time
	end         time.Time
	description string
	location    string
	status      Status
	seriesID    string
}

// EventOptions configures New. End is optional: when nil the event becomes an
// all-day entry spanning 08:00 to 17:00 on Start's date.
type EventOptions struct {
	Subject     string    `validate:"required"`
	Start       time.Time `validate:"required"`
	End         *time.Time
	Description string
	Location    string
	Status      string `validate:"omitempty,oneof=public private"`
	SeriesID    string
}

// New validates opts and builds an Event.
func New(opts EventOptions) (Event, error) {
	opts.Subject = strings.TrimSpace(opts.Subject)
	opts.Status = strings.ToLower(strings.TrimSpace(opts.Status))
	if err := validate.Struct(opts); err != nil {
		return Event{}, apperr.Wrap(err, apperr.CodeValidation, "invalid event")
	}

	start := opts.Start
	var end time.Time
	if opts.End == nil {
		y, m, d := start.Date()
		start = time.Date(y, m, d, allDayStartHour, 0, 0, 0, start.Location())
		end = time.Date(y, m, d, allDayEndHour, 0, 0, 0, start.Location())
	} else {
		end = *opts.End
	}
	if end.Before(start) {
		return Event{}, apperr.Validationf("event %q ends (%s) before it starts (%s)",
			opts.Subject, FormatDateTime(end), FormatDateTime(start))
	}

	return Event{
		subject:     opts.Subject,
		start:       start,
		end:         end,
		description: opts.Description,
		location:    opts.Location,
		status:      Status(opts.Status),
		seriesID:    opts.SeriesID,
	}, nil
}

func (e Event) Subject() string     { return e.subject }
func (e Event) Start() time.Time    { return e.start }
func (e Event) End() time.Time      { return e.end }
func (e Event) Description() string { return e.description }
func (e Event) Location() string    { return e.location }
func (e Event) Status() Status      { return e.status }
func (e Event) SeriesID() string    { return e.seriesID }

// InSeries reports whether the event was generated as a series occurrence.
func (e Event) InSeries() bool { return e.seriesID != "" }

// Duration is End minus Start.
func (e Event) Duration() time.Duration { return e.end.Sub(e.start) }

// Key is the duplicate-detection identity of an event.
type Key struct {
	Subject string
	Start   int64
	End     int64
}

func (e Event) Key() Key {
	return Key{Subject: e.subject, Start: e.start.Unix(), End: e.end.Unix()}
}

// SameAs reports whether e and o would be duplicates in one calendar.
func (e Event) SameAs(o Event) bool {
	return e.Key() == o.Key()
}

// Matches reports whether the event has the given subject and start instant.
func (e Event) Matches(subject string, start time.Time) bool {
	return e.subject == subject && e.start.Equal(start)
}

// Overlaps reports whether the event's interval intersects [from, to],
// endpoints included.
func (e Event) Overlaps(from, to time.Time) bool {
	return !(e.end.Before(from) || e.start.After(to))
}

func (e Event) WithSubject(subject string) (Event, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Event{}, apperr.Validationf("subject must not be empty")
	}
	e.subject = subject
	return e, nil
}

// WithStart moves the start; it fails when the new start is after End.
func (e Event) WithStart(start time.Time) (Event, error) {
	if start.After(e.end) {
		return Event{}, apperr.Validationf("new start %s is after end %s", FormatDateTime(start), FormatDateTime(e.end))
	}
	e.start = start
	return e, nil
}

// WithEnd moves the end; it fails when the new end is before Start.
func (e Event) WithEnd(end time.Time) (Event, error) {
	if end.Before(e.start) {
		return Event{}, apperr.Validationf("new end %s is before start %s", FormatDateTime(end), FormatDateTime(e.start))
	}
	e.end = end
	return e, nil
}

func (e Event) WithDescription(description string) Event {
	e.description = description
	return e
}

func (e Event) WithLocation(location string) Event {
	e.location = location
	return e
}

func (e Event) WithStatus(status Status) Event {
	e.status = status
	return e
}

func (e Event) WithSeriesID(id string) Event {
	e.seriesID = id
	return e
}

// CopyTo returns the event moved to [start, end], keeping every other
// attribute including the series identity.
func (e Event) CopyTo(start, end time.Time) Event {
	e.start = start
	e.end = end
	return e
}

// In re-expresses the event's instants in loc.
func (e Event) In(loc *time.Location) Event {
	e.start = e.start.In(loc)
	e.end = e.end.In(loc)
	return e
}
