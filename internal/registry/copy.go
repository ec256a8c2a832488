package registry

import (
	"time"

	"tzcal/internal/apperr"
	"tzcal/internal/calendar"
	appLog "tzcal/internal/log"
	"tzcal/internal/model"
	"tzcal/internal/tz"
)

// CopyEvent copies the active calendar's event named subject starting at
// sourceStart into target. The copy starts at newStart read on the target's
// wall clock and lasts as long as the original. Series membership is kept.
func (r *Registry) CopyEvent(subject string, sourceStart time.Time, target string, newStart time.Time) (model.Event, error) {
	src, dst, err := r.copyEnds("copy_event", target)
	if err != nil {
		return model.Event{}, err
	}
	ev, err := src.FindByStart(subject, sourceStart)
	if err != nil {
		return model.Event{}, r.reject("copy_event", err)
	}

	start := tz.Wall(newStart, dst.Location())
	dup := ev.CopyTo(start, start.Add(ev.Duration()))
	if err := dst.Add(dup); err != nil {
		return model.Event{}, r.reject("copy_event", err)
	}
	r.stored(dst, "copy_event", 1)
	appLog.Info("event copied",
		"subject", ev.Subject(),
		"from", r.ActiveName(),
		"to", target,
		"start", model.FormatDateTime(start),
	)
	return dup.In(dst.Location()), nil
}

// CopyEventsOn copies every event overlapping date in the active calendar
// into target, moved so that date lands on newDate.
func (r *Registry) CopyEventsOn(date time.Time, target string, newDate time.Time) ([]model.Event, error) {
	src, dst, err := r.copyEnds("copy_events_on", target)
	if err != nil {
		return nil, err
	}
	events := src.OnDay(date)
	if len(events) == 0 {
		return nil, r.reject("copy_events_on",
			apperr.NotFoundf("no events on %s", model.FormatDate(date)))
	}
	return r.copyShifted("copy_events_on", events, dst, target, tz.DaysBetween(date, newDate))
}

// CopyEventsBetween copies every event overlapping the days startDate
// through endDate into target, moved so that startDate lands on
// newStartDate.
func (r *Registry) CopyEventsBetween(startDate, endDate time.Time, target string, newStartDate time.Time) ([]model.Event, error) {
	src, dst, err := r.copyEnds("copy_events_between", target)
	if err != nil {
		return nil, err
	}
	events, err := src.OnDays(startDate, endDate)
	if err != nil {
		return nil, r.reject("copy_events_between", err)
	}
	if len(events) == 0 {
		return nil, r.reject("copy_events_between", apperr.NotFoundf("no events between %s and %s",
			model.FormatDate(startDate), model.FormatDate(endDate)))
	}
	return r.copyShifted("copy_events_between", events, dst, target, tz.DaysBetween(startDate, newStartDate))
}

func (r *Registry) copyEnds(op, target string) (*calendar.Calendar, *calendar.Calendar, error) {
	src, err := r.activeCalendar(op)
	if err != nil {
		return nil, nil, err
	}
	dst, err := r.Calendar(target)
	if err != nil {
		return nil, nil, r.reject(op, err)
	}
	return src, dst, nil
}

// copyShifted re-expresses each event in the target zone, then moves it by
// days on the target's wall clock. Either every copy is stored or none is.
func (r *Registry) copyShifted(op string, events []model.Event, dst *calendar.Calendar, target string, days int) ([]model.Event, error) {
	loc := dst.Location()
	copies := make([]model.Event, len(events))
	for i, ev := range events {
		ev = ev.In(loc)
		copies[i] = ev.CopyTo(tz.ShiftDays(ev.Start(), days), tz.ShiftDays(ev.End(), days))
	}
	if err := dst.AddAll(copies); err != nil {
		return nil, r.reject(op, err)
	}
	r.stored(dst, op, len(copies))
	appLog.Info("events copied",
		"from", r.ActiveName(),
		"to", target,
		"count", len(copies),
		"days", days,
	)
	return copies, nil
}
