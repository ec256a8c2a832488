package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"tzcal/internal/apperr"
	"tzcal/internal/tz"
)

// weekdayCodes maps the one-letter weekday codes to weekdays. Thursday is R
// and Sunday is U so every day has a distinct letter.
var weekdayCodes = map[rune]time.Weekday{
	'M': time.Monday,
	'T': time.Tuesday,
	'W': time.Wednesday,
	'R': time.Thursday,
	'F': time.Friday,
	'S': time.Saturday,
	'U': time.Sunday,
}

// codeOrder is the canonical rendering order (Monday first).
const codeOrder = "MTWRFSU"

// Weekdays is a set of weekdays, one bit per time.Weekday.
type Weekdays uint8

// ParseWeekdays parses a string such as "MWF". Letters are case-sensitive,
// repeats are allowed, and at least one day is required.
func ParseWeekdays(s string) (Weekdays, error) {
	if s == "" {
		return 0, apperr.Validationf("weekday set is empty")
	}
	var w Weekdays
	for _, r := range s {
		d, ok := weekdayCodes[r]
		if !ok {
			return 0, apperr.Validationf("invalid weekday %q in %q: use letters from %s", r, s, codeOrder)
		}
		w |= 1 << d
	}
	return w, nil
}

// WeekdaysOf builds a set from days.
func WeekdaysOf(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << d
	}
	return w
}

// Has reports whether d is in the set.
func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<d) != 0
}

func (w Weekdays) String() string {
	var b strings.Builder
	for _, r := range codeOrder {
		if w.Has(weekdayCodes[r]) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (w Weekdays) rrule() []rrule.Weekday {
	byDay := map[time.Weekday]rrule.Weekday{
		time.Monday:    rrule.MO,
		time.Tuesday:   rrule.TU,
		time.Wednesday: rrule.WE,
		time.Thursday:  rrule.TH,
		time.Friday:    rrule.FR,
		time.Saturday:  rrule.SA,
		time.Sunday:    rrule.SU,
	}
	out := make([]rrule.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			out = append(out, byDay[d])
		}
	}
	return out
}

// SeriesRule bounds a weekly recurrence. Exactly one of Count and Until must
// be set; Until is an inclusive date.
type SeriesRule struct {
	Days  Weekdays
	Count int
	Until *time.Time
}

func (r SeriesRule) validate(template Event) error {
	switch {
	case r.Days == 0:
		return apperr.Validationf("series needs at least one weekday")
	case r.Count == 0 && r.Until == nil:
		return apperr.Validationf("series needs an occurrence count or an end date")
	case r.Count != 0 && r.Until != nil:
		return apperr.Validationf("series takes either an occurrence count or an end date, not both")
	case r.Count < 0:
		return apperr.Validationf("occurrence count must be positive, got %d", r.Count)
	case r.Until != nil && tz.DaysBetween(template.Start(), *r.Until) < 0:
		return apperr.Validationf("series end date %s is before its start %s",
			FormatDate(*r.Until), FormatDate(template.Start()))
	case !tz.SameDay(template.Start(), template.End()):
		return apperr.Validationf("series occurrence of %q must start and end on the same day", template.Subject())
	}
	return nil
}

// ExpandSeries turns a template event and a rule into concrete occurrences.
//
// Days are walked forward from the template's start date; each day whose
// weekday is in the rule gets an occurrence at the template's times of day.
// Every occurrence shares one freshly generated series ID, so two calls with
// identical arguments yield distinct series.
func ExpandSeries(template Event, rule SeriesRule) ([]Event, error) {
	if err := rule.validate(template); err != nil {
		return nil, err
	}

	start := template.Start()
	loc := start.Location()
	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Byweekday: rule.Days.rrule(),
		Wkst:      rrule.MO,
	}
	if rule.Count > 0 {
		opt.Count = rule.Count
	} else {
		u := *rule.Until
		opt.Until = time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, loc)
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeValidation, "invalid recurrence")
	}

	starts := r.All()
	if len(starts) == 0 {
		return nil, apperr.Validationf("series of %q has no occurrences", template.Subject())
	}

	seriesID := uuid.NewString()
	endH, endM, _ := template.End().Clock()
	out := make([]Event, 0, len(starts))
	for _, s := range starts {
		s = s.In(loc)
		occStart := time.Date(s.Year(), s.Month(), s.Day(), s.Hour(), s.Minute(), 0, 0, loc)
		occEnd := time.Date(s.Year(), s.Month(), s.Day(), endH, endM, 0, 0, loc)
		out = append(out, template.CopyTo(occStart, occEnd).WithSeriesID(seriesID))
	}
	return out, nil
}
