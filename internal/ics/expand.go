package ics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"tzcal/internal/apperr"
	appLog "tzcal/internal/log"
	"tzcal/internal/model"
	"tzcal/internal/tz"
)

const (
	defaultMaxOccurrences = 5000
	defaultWindow         = 365 * 24 * time.Hour
)

// DecodeOptions bounds recurrence expansion.
type DecodeOptions struct {
	// From and To limit which occurrences of a recurring VEVENT are kept,
	// inclusive. A zero From starts at the event's DTSTART; a zero To ends
	// one year after From. Non-recurring VEVENTs are filtered only when both
	// are set.
	From time.Time
	To   time.Time

	// MaxOccurrences caps each recurring VEVENT. Zero means 5000.
	MaxOccurrences int
}

// Decode turns an ICS payload into events on loc.
//
// Each recurring VEVENT becomes one series: its occurrences share the
// X-TZCAL-SERIES-ID it carries, or a fresh identity when it has none.
// EXDATE removes occurrences and RECURRENCE-ID overrides replace them.
// All-day VEVENTs become 08:00 to 17:00 entries on each of their days.
func Decode(body []byte, loc *time.Location, opts DecodeOptions) ([]model.Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = defaultMaxOccurrences
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return nil, apperr.Validationf("decode window ends before it starts")
	}

	parsed, err := parse(body, loc)
	if err != nil {
		return nil, err
	}

	bases := make(map[string][]vevent)
	overrides := make(map[string][]vevent)
	for _, ev := range parsed {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			bases[ev.UID] = append(bases[ev.UID], ev)
		}
	}
	uids := make([]string, 0, len(bases))
	for uid := range bases {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	var out []model.Event
	for _, uid := range uids {
		for _, ev := range bases[uid] {
			if ev.RRule == "" {
				out = append(out, expandSingle(ev, opts, loc)...)
				continue
			}
			out = append(out, expandRecurring(ev, overrides[uid], opts, loc)...)
		}
	}
	return out, nil
}

func expandSingle(ev vevent, opts DecodeOptions, loc *time.Location) []model.Event {
	if !opts.From.IsZero() && !opts.To.IsZero() && !tz.Overlap(ev.Start, ev.End, opts.From, opts.To) {
		return nil
	}
	e, ok := toEvent(ev, ev.Start, ev.End, ev.SeriesID, loc)
	if !ok {
		return nil
	}
	return []model.Event{e}
}

func expandRecurring(ev vevent, overrides []vevent, opts DecodeOptions, loc *time.Location) []model.Event {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("ics RRULE rejected", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	from := opts.From
	if from.IsZero() {
		from = ev.Start
	}
	to := opts.To
	if to.IsZero() {
		to = from.Add(defaultWindow)
	}
	starts := set.Between(from.In(ev.Start.Location()), to.In(ev.Start.Location()), true)
	if len(starts) > opts.MaxOccurrences {
		appLog.Warn("ics occurrences truncated", "uid", ev.UID, "cap", opts.MaxOccurrences, "found", len(starts))
		starts = starts[:opts.MaxOccurrences]
	}

	seriesID := ev.SeriesID
	if seriesID == "" {
		seriesID = uuid.NewString()
	}
	dur := ev.End.Sub(ev.Start)
	out := make([]model.Event, 0, len(starts))
	for _, start := range starts {
		base, occStart, occEnd := ev, start, start.Add(dur)
		if o, ok := overrideFor(overrides, start); ok {
			base, occStart, occEnd = o, o.Start, o.End
		}
		if e, ok := toEvent(base, occStart, occEnd, seriesID, loc); ok {
			out = append(out, e)
		}
	}
	return out
}

// overrideFor finds the override whose RECURRENCE-ID is start.
func overrideFor(overrides []vevent, start time.Time) (vevent, bool) {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return vevent{}, false
}

// toEvent builds a model event on loc's wall clock at minute precision.
func toEvent(ev vevent, start, end time.Time, seriesID string, loc *time.Location) (model.Event, bool) {
	if ev.AllDay {
		last := end
		if end.After(start) {
			last = tz.ShiftDays(end, -1)
		}
		start = time.Date(start.Year(), start.Month(), start.Day(), 8, 0, 0, 0, loc)
		end = time.Date(last.Year(), last.Month(), last.Day(), 17, 0, 0, 0, loc)
	} else {
		start = tz.Wall(start.In(loc), loc)
		end = tz.Wall(end.In(loc), loc)
	}

	e, err := model.New(model.EventOptions{
		Subject:     ev.Summary,
		Start:       start,
		End:         &end,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      string(classStatus(ev.Class)),
		SeriesID:    seriesID,
	})
	if err != nil {
		appLog.Warn("ics occurrence skipped", "uid", ev.UID, "reason", err.Error())
		return model.Event{}, false
	}
	return e, true
}

func classStatus(class string) model.Status {
	switch class {
	case "PUBLIC":
		return model.StatusPublic
	case "PRIVATE", "CONFIDENTIAL":
		return model.StatusPrivate
	default:
		return model.StatusNone
	}
}

func statusClass(s model.Status) string {
	switch s {
	case model.StatusPublic:
		return "PUBLIC"
	case model.StatusPrivate:
		return "PRIVATE"
	default:
		return ""
	}
}
