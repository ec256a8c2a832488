package calendar

import (
	"strings"
	"time"

	"tzcal/internal/apperr"
	"tzcal/internal/model"
	"tzcal/internal/tz"
)

const (
	Busy      = "Busy"
	Available = "Available"
)

// Between returns every event whose interval overlaps [from, to], endpoints
// included, ordered by start. from and to are zone-naive.
func (c *Calendar) Between(from, to time.Time) ([]model.Event, error) {
	from, to = c.Wall(from), c.Wall(to)
	if to.Before(from) {
		return nil, apperr.Validationf("range end %s is before start %s",
			model.FormatDateTime(to), model.FormatDateTime(from))
	}
	return c.overlapping(from, to), nil
}

// OnDay returns the events overlapping the given date.
func (c *Calendar) OnDay(date time.Time) []model.Event {
	from, to := c.dayBounds(date)
	return c.overlapping(from, to)
}

// OnDays returns the events overlapping the whole days first through last.
func (c *Calendar) OnDays(first, last time.Time) ([]model.Event, error) {
	from, _ := c.dayBounds(first)
	lastFrom, to := c.dayBounds(last)
	if lastFrom.Before(from) {
		return nil, apperr.Validationf("end date %s is before start date %s",
			model.FormatDate(lastFrom), model.FormatDate(from))
	}
	return c.overlapping(from, to), nil
}

// DaySchedule renders the events overlapping date, one bullet line each.
// An empty day renders as the empty string.
func (c *Calendar) DaySchedule(date time.Time) string {
	return Render(c.OnDay(date))
}

// RangeSchedule renders the events overlapping [from, to].
func (c *Calendar) RangeSchedule(from, to time.Time) (string, error) {
	events, err := c.Between(from, to)
	if err != nil {
		return "", err
	}
	return Render(events), nil
}

// IsBusy reports whether any event covers at, boundaries included.
func (c *Calendar) IsBusy(at time.Time) bool {
	at = c.Wall(at)
	for _, bucket := range c.events {
		for _, ev := range bucket {
			if ev.Overlaps(at, at) {
				return true
			}
		}
	}
	return false
}

// Availability is IsBusy rendered as "Busy" or "Available".
func (c *Calendar) Availability(at time.Time) string {
	if c.IsBusy(at) {
		return Busy
	}
	return Available
}

// dayBounds returns the first and last second of date's calendar day in the
// calendar's zone.
func (c *Calendar) dayBounds(date time.Time) (time.Time, time.Time) {
	from := tz.Floor(c.Wall(date))
	to := tz.ShiftDays(from, 1).Add(-time.Second)
	return from, to
}

func (c *Calendar) overlapping(from, to time.Time) []model.Event {
	var out []model.Event
	for _, bucket := range c.events {
		for _, ev := range bucket {
			if ev.Overlaps(from, to) {
				out = append(out, ev)
			}
		}
	}
	sortEvents(out)
	return out
}

// Render joins the events' bullet lines with newlines.
func Render(events []model.Event) string {
	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = ev.Bullet()
	}
	return strings.Join(lines, "\n")
}
