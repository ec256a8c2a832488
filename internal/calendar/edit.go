package calendar

import (
	"strings"
	"time"

	"tzcal/internal/apperr"
	appLog "tzcal/internal/log"
	"tzcal/internal/model"
)

// Property names an editable event attribute.
type Property string

const (
	PropSubject     Property = "subject"
	PropStart       Property = "start"
	PropEnd         Property = "end"
	PropDescription Property = "description"
	PropLocation    Property = "location"
	PropStatus      Property = "status"
)

// ParseProperty accepts a property name in any letter case.
func ParseProperty(s string) (Property, error) {
	switch p := Property(strings.ToLower(strings.TrimSpace(s))); p {
	case PropSubject, PropStart, PropEnd, PropDescription, PropLocation, PropStatus:
		return p, nil
	default:
		return "", apperr.Validationf("unknown property %q", s)
	}
}

// EditEvent changes one property of the event identified by subject, start
// and end. The edited event may take the slot the original vacates.
func (c *Calendar) EditEvent(prop Property, subject string, start, end time.Time, value string) (model.Event, error) {
	ev, err := c.Find(subject, start, end)
	if err != nil {
		return model.Event{}, err
	}
	edited, err := c.replace(prop, []model.Event{ev}, value, false)
	if err != nil {
		return model.Event{}, err
	}
	return edited[0], nil
}

// EditEvents changes one property of the event identified by subject and
// start and, when that event belongs to a series, of every later occurrence
// of the series too. Earlier occurrences are left alone.
func (c *Calendar) EditEvents(prop Property, subject string, start time.Time, value string) ([]model.Event, error) {
	ev, err := c.FindByStart(subject, start)
	if err != nil {
		return nil, err
	}
	if !ev.InSeries() {
		return c.replace(prop, []model.Event{ev}, value, false)
	}
	targets := c.seriesFrom(ev.SeriesID(), ev.Start())
	return c.replace(prop, targets, value, true)
}

// EditSeries changes one property of every occurrence in the series of the
// event identified by subject and start. A standalone event is edited alone.
func (c *Calendar) EditSeries(prop Property, subject string, start time.Time, value string) ([]model.Event, error) {
	ev, err := c.FindByStart(subject, start)
	if err != nil {
		return nil, err
	}
	if !ev.InSeries() {
		return c.replace(prop, []model.Event{ev}, value, false)
	}
	targets := c.seriesFrom(ev.SeriesID(), time.Time{})
	return c.replace(prop, targets, value, true)
}

// seriesFrom returns the occurrences of a series that start at or after from,
// ordered by start.
func (c *Calendar) seriesFrom(seriesID string, from time.Time) []model.Event {
	var out []model.Event
	for _, bucket := range c.events {
		for _, ev := range bucket {
			if ev.SeriesID() == seriesID && !ev.Start().Before(from) {
				out = append(out, ev)
			}
		}
	}
	sortEvents(out)
	return out
}

// replace applies the edit to every target and swaps the results in as one
// unit. The duplicate check runs against the calendar minus the targets, so
// an edit may land on a slot one of the targets vacates.
func (c *Calendar) replace(prop Property, targets []model.Event, value string, multi bool) ([]model.Event, error) {
	edited := make([]model.Event, 0, len(targets))
	replaced := make(map[model.Key]struct{}, len(targets))
	for _, ev := range targets {
		next, err := c.apply(prop, ev, value, multi)
		if err != nil {
			return nil, err
		}
		edited = append(edited, next)
		replaced[ev.Key()] = struct{}{}
	}
	if err := c.checkDuplicates(edited, replaced); err != nil {
		return nil, err
	}

	for _, ev := range targets {
		c.remove(ev.Key())
	}
	for _, ev := range edited {
		c.insert(ev)
	}
	appLog.Debug("events edited", "property", string(prop), "count", len(edited), "value", value)
	return edited, nil
}

// apply returns ev with prop set to value. For multi-event edits a new start
// or end keeps each occurrence's own date and takes only the time of day.
func (c *Calendar) apply(prop Property, ev model.Event, value string, multi bool) (model.Event, error) {
	switch prop {
	case PropSubject:
		return ev.WithSubject(value)
	case PropStart:
		t, err := c.editTime(ev.Start(), value, multi)
		if err != nil {
			return model.Event{}, err
		}
		return ev.WithStart(t)
	case PropEnd:
		t, err := c.editTime(ev.End(), value, multi)
		if err != nil {
			return model.Event{}, err
		}
		return ev.WithEnd(t)
	case PropDescription:
		return ev.WithDescription(value), nil
	case PropLocation:
		return ev.WithLocation(value), nil
	case PropStatus:
		st, err := model.ParseStatus(value)
		if err != nil {
			return model.Event{}, err
		}
		return ev.WithStatus(st), nil
	default:
		return model.Event{}, apperr.Validationf("unknown property %q", string(prop))
	}
}

func (c *Calendar) editTime(current time.Time, value string, multi bool) (time.Time, error) {
	t, err := model.ParseDateTime(value, c.loc)
	if err != nil {
		return time.Time{}, err
	}
	if !multi {
		return t, nil
	}
	return time.Date(current.Year(), current.Month(), current.Day(), t.Hour(), t.Minute(), 0, 0, c.loc), nil
}
