// Package registry manages a set of named calendars, each with its own
// timezone, one of which may be active. Event operations go to the active
// calendar; copy operations read from it and write into another calendar,
// converting times between the two zones.
package registry

import (
	"sort"
	"strings"

	"tzcal/internal/apperr"
	"tzcal/internal/calendar"
	appLog "tzcal/internal/log"
	"tzcal/internal/metric"
	"tzcal/internal/model"
	"tzcal/internal/tz"
)

// NoCalendars is what GetCalendars returns for an empty registry.
const NoCalendars = "No calendars"

// Calendar properties accepted by EditCalendar.
const (
	PropName     = "name"
	PropTimezone = "timezone"
)

// Registry is not safe for concurrent use.
type Registry struct {
	calendars map[string]*calendar.Calendar
	active    *calendar.Calendar
}

func New() *Registry {
	return &Registry{calendars: make(map[string]*calendar.Calendar)}
}

// CreateCalendar adds an empty calendar. Names are case-sensitive and must be
// unique; timezone must be an IANA identifier.
func (r *Registry) CreateCalendar(name, timezone string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.reject("create_calendar", apperr.Validationf("calendar name is empty"))
	}
	if _, exists := r.calendars[name]; exists {
		return r.reject("create_calendar", apperr.Statef("calendar %q already exists", name))
	}
	loc, err := tz.Parse(timezone)
	if err != nil {
		return r.reject("create_calendar", apperr.Wrap(err, apperr.CodeValidation, "invalid timezone "+timezone))
	}

	r.calendars[name] = calendar.New(loc)
	metric.Calendars.Set(float64(len(r.calendars)))
	metric.CalendarEvents.WithLabelValues(name).Set(0)
	appLog.Info("calendar created", "name", name, "timezone", loc.String())
	return nil
}

// UseCalendar makes name the active calendar.
func (r *Registry) UseCalendar(name string) error {
	cal, err := r.Calendar(name)
	if err != nil {
		return err
	}
	r.active = cal
	appLog.Debug("calendar selected", "name", name)
	return nil
}

// EditCalendar renames a calendar or changes its timezone. A timezone change
// keeps every event's instant and re-expresses it in the new zone.
func (r *Registry) EditCalendar(name, property, value string) error {
	cal, err := r.Calendar(name)
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(property)) {
	case PropName:
		newName := strings.TrimSpace(value)
		if newName == "" {
			return r.reject("edit_calendar", apperr.Validationf("calendar name is empty"))
		}
		if newName == name {
			return nil
		}
		if _, exists := r.calendars[newName]; exists {
			return r.reject("edit_calendar", apperr.Statef("calendar %q already exists", newName))
		}
		delete(r.calendars, name)
		r.calendars[newName] = cal
		metric.CalendarEvents.DeleteLabelValues(name)
		metric.CalendarEvents.WithLabelValues(newName).Set(float64(cal.Len()))
		appLog.Info("calendar renamed", "from", name, "to", newName)
	case PropTimezone:
		loc, err := tz.Parse(value)
		if err != nil {
			return r.reject("edit_calendar", apperr.Wrap(err, apperr.CodeValidation, "invalid timezone "+value))
		}
		cal.UpdateTimezone(loc)
	default:
		return r.reject("edit_calendar", apperr.Validationf("unknown calendar property %q: use name or timezone", property))
	}
	return nil
}

// GetCalendars lists calendar names sorted and newline-joined.
func (r *Registry) GetCalendars() string {
	names := r.Names()
	if len(names) == 0 {
		return NoCalendars
	}
	return strings.Join(names, "\n")
}

// Names returns the calendar names in lexicographic order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.calendars))
	for name := range r.calendars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calendar returns the calendar registered under name.
func (r *Registry) Calendar(name string) (*calendar.Calendar, error) {
	cal, ok := r.calendars[name]
	if !ok {
		return nil, apperr.NotFoundf("calendar %q not found", name)
	}
	return cal, nil
}

// ActiveName returns the name of the active calendar, or "" when none is
// selected.
func (r *Registry) ActiveName() string {
	return r.nameOf(r.active)
}

// Import stores events into the named calendar. In strict mode the batch is
// all-or-nothing; otherwise events already present are skipped. It returns
// the number of events stored.
func (r *Registry) Import(name string, events []model.Event, strict bool) (int, error) {
	cal, err := r.Calendar(name)
	if err != nil {
		return 0, err
	}
	added := len(events)
	if strict {
		if err := cal.AddAll(events); err != nil {
			return 0, r.reject("import", err)
		}
	} else {
		added = cal.AddMissing(events)
	}
	r.stored(cal, "import", added)
	appLog.Info("events imported", "calendar", name, "received", len(events), "stored", added)
	return added, nil
}

func (r *Registry) activeCalendar(op string) (*calendar.Calendar, error) {
	if r.active == nil {
		return nil, r.reject(op, apperr.Statef("no calendar selected"))
	}
	return r.active, nil
}

func (r *Registry) nameOf(cal *calendar.Calendar) string {
	if cal == nil {
		return ""
	}
	for name, c := range r.calendars {
		if c == cal {
			return name
		}
	}
	return ""
}

func (r *Registry) stored(cal *calendar.Calendar, op string, n int) {
	name := r.nameOf(cal)
	if n > 0 {
		metric.EventsStored.WithLabelValues(name, op).Add(float64(n))
	}
	metric.CalendarEvents.WithLabelValues(name).Set(float64(cal.Len()))
}

// reject counts a refused operation and hands err back.
func (r *Registry) reject(op string, err error) error {
	if code := apperr.CodeOf(err); code != "" {
		metric.Rejections.WithLabelValues(op, code).Inc()
	}
	return err
}

