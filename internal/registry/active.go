package registry

import (
	"time"

	"tzcal/internal/calendar"
	"tzcal/internal/model"
)

// Unless named ...In, the methods below act on the active calendar and fail
// with a state error when none is selected.

func (r *Registry) CreateEvent(opts model.EventOptions) (model.Event, error) {
	cal, err := r.activeCalendar("create_event")
	if err != nil {
		return model.Event{}, err
	}
	return r.createEvent(cal, opts)
}

func (r *Registry) CreateSeries(opts model.EventOptions, rule model.SeriesRule) ([]model.Event, error) {
	cal, err := r.activeCalendar("create_series")
	if err != nil {
		return nil, err
	}
	return r.createSeries(cal, opts, rule)
}

// CreateEventIn is CreateEvent on the named calendar, active or not.
func (r *Registry) CreateEventIn(name string, opts model.EventOptions) (model.Event, error) {
	cal, err := r.Calendar(name)
	if err != nil {
		return model.Event{}, err
	}
	return r.createEvent(cal, opts)
}

// CreateSeriesIn is CreateSeries on the named calendar, active or not.
func (r *Registry) CreateSeriesIn(name string, opts model.EventOptions, rule model.SeriesRule) ([]model.Event, error) {
	cal, err := r.Calendar(name)
	if err != nil {
		return nil, err
	}
	return r.createSeries(cal, opts, rule)
}

func (r *Registry) createEvent(cal *calendar.Calendar, opts model.EventOptions) (model.Event, error) {
	ev, err := cal.CreateEvent(opts)
	if err != nil {
		return model.Event{}, r.reject("create_event", err)
	}
	r.stored(cal, "create_event", 1)
	return ev, nil
}

func (r *Registry) createSeries(cal *calendar.Calendar, opts model.EventOptions, rule model.SeriesRule) ([]model.Event, error) {
	occ, err := cal.CreateSeries(opts, rule)
	if err != nil {
		return nil, r.reject("create_series", err)
	}
	r.stored(cal, "create_series", len(occ))
	return occ, nil
}

// EditEvent changes one property of the single event (subject, start, end).
func (r *Registry) EditEvent(prop calendar.Property, subject string, start, end time.Time, value string) (model.Event, error) {
	cal, err := r.activeCalendar("edit_event")
	if err != nil {
		return model.Event{}, err
	}
	ev, err := cal.EditEvent(prop, subject, start, end, value)
	if err != nil {
		return model.Event{}, r.reject("edit_event", err)
	}
	return ev, nil
}

// EditEvents changes the matched event and, for a series member, every later
// occurrence of its series.
func (r *Registry) EditEvents(prop calendar.Property, subject string, start time.Time, value string) ([]model.Event, error) {
	cal, err := r.activeCalendar("edit_events")
	if err != nil {
		return nil, err
	}
	edited, err := cal.EditEvents(prop, subject, start, value)
	if err != nil {
		return nil, r.reject("edit_events", err)
	}
	return edited, nil
}

// EditSeries changes every occurrence of the matched event's series.
func (r *Registry) EditSeries(prop calendar.Property, subject string, start time.Time, value string) ([]model.Event, error) {
	cal, err := r.activeCalendar("edit_series")
	if err != nil {
		return nil, err
	}
	edited, err := cal.EditSeries(prop, subject, start, value)
	if err != nil {
		return nil, r.reject("edit_series", err)
	}
	return edited, nil
}

func (r *Registry) DaySchedule(date time.Time) (string, error) {
	cal, err := r.activeCalendar("day_schedule")
	if err != nil {
		return "", err
	}
	return cal.DaySchedule(date), nil
}

func (r *Registry) RangeSchedule(from, to time.Time) (string, error) {
	cal, err := r.activeCalendar("range_schedule")
	if err != nil {
		return "", err
	}
	out, err := cal.RangeSchedule(from, to)
	if err != nil {
		return "", r.reject("range_schedule", err)
	}
	return out, nil
}

// IsFree reports "Busy" or "Available" for the active calendar at the given
// wall-clock time.
func (r *Registry) IsFree(at time.Time) (string, error) {
	cal, err := r.activeCalendar("is_free")
	if err != nil {
		return "", err
	}
	return cal.Availability(at), nil
}
