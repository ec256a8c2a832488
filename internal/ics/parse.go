package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"tzcal/internal/apperr"
	appLog "tzcal/internal/log"
	"tzcal/internal/tz"
)

// PropertySeriesID carries an event's series identity through export and
// import so a round trip keeps series editable.
const PropertySeriesID = "X-TZCAL-SERIES-ID"

const (
	layoutUTC   = "20060102T150405Z"
	layoutLocal = "20060102T150405"
	layoutDate  = "20060102"
)

// vevent is the normalized form of one VEVENT before recurrence expansion.
type vevent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Class       string
	SeriesID    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// parse reads every VEVENT in body. Times without TZID or a trailing Z are
// floating and read on loc's wall clock. A VEVENT that cannot be read is
// logged and skipped.
func parse(body []byte, loc *time.Location) ([]vevent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, apperr.Validationf("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeValidation, "invalid ICS body")
	}

	out := make([]vevent, 0, len(cal.Events()))
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(comp, loc)
		if err != nil {
			appLog.Warn("ics vevent skipped", "uid", ev.UID, "reason", err.Error())
			continue
		}
		out = append(out, ev)
	}
	appLog.Debug("ics parse completed", "event_count", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var out vevent
	out.UID = value(ve, ical.ComponentPropertyUniqueId)
	out.Summary = strings.TrimSpace(value(ve, ical.ComponentPropertySummary))
	out.Description = value(ve, ical.ComponentPropertyDescription)
	out.Location = value(ve, ical.ComponentPropertyLocation)
	out.Class = strings.ToUpper(strings.TrimSpace(value(ve, ical.ComponentPropertyClass)))
	out.SeriesID = strings.TrimSpace(value(ve, PropertySeriesID))
	out.RRule = value(ve, ical.ComponentPropertyRrule)

	if out.Summary == "" {
		return out, errors.New("missing SUMMARY")
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := parseTime(dtStart, loc)
	if err != nil {
		return out, err
	}
	out.Start, out.AllDay = start, allDay

	out.End = start
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, _, err := parseTime(dtEnd, loc)
		if err != nil {
			return out, err
		}
		out.End = end
	} else if allDay {
		out.End = tz.ShiftDays(start, 1)
	}
	if out.End.Before(out.Start) {
		return out, errors.New("DTEND before DTSTART")
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		zone := zoneOf(p.ICalParameters, loc)
		for _, part := range strings.Split(p.Value, ",") {
			if t, _, err := parseValue(strings.TrimSpace(part), zone, false); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		if t, _, err := parseTime(rid, loc); err == nil {
			out.RecurrenceID = &t
		}
	}
	return out, nil
}

func value(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// parseTime reads a DATE or DATE-TIME property honoring its TZID and VALUE
// parameters.
func parseTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	dateOnly := false
	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		dateOnly = true
	}
	return parseValue(strings.TrimSpace(p.Value), zoneOf(p.ICalParameters, loc), dateOnly)
}

func parseValue(v string, zone *time.Location, dateOnly bool) (time.Time, bool, error) {
	switch {
	case v == "":
		return time.Time{}, false, errors.New("empty time value")
	case dateOnly || !strings.Contains(v, "T"):
		t, err := time.ParseInLocation(layoutDate, v, zone)
		return t, true, err
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse(layoutUTC, v)
		return t, false, err
	default:
		t, err := time.ParseInLocation(layoutLocal, v, zone)
		return t, false, err
	}
}

// zoneOf resolves the property's TZID, falling back to loc when it is
// missing or unknown.
func zoneOf(params map[string][]string, loc *time.Location) *time.Location {
	ids := params["TZID"]
	if len(ids) == 0 {
		return loc
	}
	zone, err := tz.Parse(ids[0])
	if err != nil {
		appLog.Warn("ics unknown TZID, using calendar zone", "tzid", ids[0], "zone", loc.String())
		return loc
	}
	return zone
}
