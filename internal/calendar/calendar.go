// Package calendar implements a single timezone-scoped event store.
//
// A Calendar indexes events by their start instant and guarantees that no two
// stored events share subject, start and end. All mutations are
// all-or-nothing: a failed create or edit leaves the calendar unchanged.
//
// Times handed to the Create* and Edit* methods are zone-naive: only their
// wall clock is read, and it is interpreted in the calendar's timezone.
package calendar

import (
	"sort"
	"strings"
	"time"

	"tzcal/internal/apperr"
	appLog "tzcal/internal/log"
	"tzcal/internal/model"
	"tzcal/internal/tz"
)

// Calendar is a set of events in one timezone. It is not safe for concurrent
// use.
type Calendar struct {
	loc    *time.Location
	events map[int64][]model.Event
}

// New returns an empty calendar in loc.
func New(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{
		loc:    loc,
		events: make(map[int64][]model.Event),
	}
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Len returns the number of stored events.
func (c *Calendar) Len() int {
	n := 0
	for _, bucket := range c.events {
		n += len(bucket)
	}
	return n
}

// Events returns a copy of every stored event ordered by start.
func (c *Calendar) Events() []model.Event {
	out := make([]model.Event, 0, c.Len())
	for _, bucket := range c.events {
		out = append(out, bucket...)
	}
	sortEvents(out)
	return out
}

// Wall scopes a zone-naive time to the calendar: its wall clock is read in
// the calendar's timezone.
func (c *Calendar) Wall(t time.Time) time.Time {
	return tz.Wall(t, c.loc)
}

// CreateEvent builds an event from opts, whose Start and End are read as wall
// clock in the calendar's zone, and stores it.
func (c *Calendar) CreateEvent(opts model.EventOptions) (model.Event, error) {
	opts = c.scope(opts)
	ev, err := model.New(opts)
	if err != nil {
		return model.Event{}, err
	}
	if err := c.Add(ev); err != nil {
		return model.Event{}, err
	}
	appLog.Debug("event created", "subject", ev.Subject(), "start", model.FormatDateTime(ev.Start()))
	return ev, nil
}

// CreateSeries expands a weekly series from the template in opts and stores
// every occurrence. If any occurrence duplicates a stored event nothing is
// stored.
func (c *Calendar) CreateSeries(opts model.EventOptions, rule model.SeriesRule) ([]model.Event, error) {
	opts = c.scope(opts)
	opts.SeriesID = ""
	tpl, err := model.New(opts)
	if err != nil {
		return nil, err
	}
	if rule.Until != nil {
		until := c.Wall(*rule.Until)
		rule.Until = &until
	}
	occ, err := model.ExpandSeries(tpl, rule)
	if err != nil {
		return nil, err
	}
	if err := c.AddAll(occ); err != nil {
		return nil, err
	}
	appLog.Debug("series created",
		"subject", tpl.Subject(),
		"series_id", occ[0].SeriesID(),
		"occurrences", len(occ),
	)
	return occ, nil
}

// Add stores a built event. The event's instants are kept and re-expressed
// in the calendar's zone.
func (c *Calendar) Add(ev model.Event) error {
	return c.AddAll([]model.Event{ev})
}

// AddAll stores events as one unit: every event is checked against the
// calendar and against the others first, and on any duplicate none is
// stored.
func (c *Calendar) AddAll(events []model.Event) error {
	scoped := make([]model.Event, len(events))
	for i, ev := range events {
		scoped[i] = ev.In(c.loc)
	}
	if err := c.checkDuplicates(scoped, nil); err != nil {
		return err
	}
	for _, ev := range scoped {
		c.insert(ev)
	}
	return nil
}

// AddMissing stores every event that is not already present and returns how
// many were stored. Duplicates within events are stored once.
func (c *Calendar) AddMissing(events []model.Event) int {
	added := 0
	for _, ev := range events {
		ev = ev.In(c.loc)
		if _, ok := c.find(ev.Key()); ok {
			continue
		}
		c.insert(ev)
		added++
	}
	return added
}

// Find returns the event with the given identity.
func (c *Calendar) Find(subject string, start, end time.Time) (model.Event, error) {
	start, end = c.Wall(start), c.Wall(end)
	ev, ok := c.find(model.Key{Subject: subject, Start: start.Unix(), End: end.Unix()})
	if !ok {
		return model.Event{}, apperr.NotFoundf("no event %q from %s to %s",
			subject, model.FormatDateTime(start), model.FormatDateTime(end))
	}
	return ev, nil
}

// FindByStart returns the first stored event with subject starting at start,
// whatever its end.
func (c *Calendar) FindByStart(subject string, start time.Time) (model.Event, error) {
	start = c.Wall(start)
	for _, ev := range c.events[start.Unix()] {
		if ev.Subject() == subject {
			return ev, nil
		}
	}
	return model.Event{}, apperr.NotFoundf("no event %q starting at %s", subject, model.FormatDateTime(start))
}

// UpdateTimezone moves the calendar to loc. Every event keeps its instant and
// is re-expressed on loc's wall clock; series membership and ordering are
// unchanged.
func (c *Calendar) UpdateTimezone(loc *time.Location) {
	if loc == nil {
		return
	}
	old := c.loc
	rebuilt := make(map[int64][]model.Event, len(c.events))
	for _, key := range c.sortedKeys() {
		for _, ev := range c.events[key] {
			ev = ev.In(loc)
			k := ev.Start().Unix()
			rebuilt[k] = append(rebuilt[k], ev)
		}
	}
	c.loc = loc
	c.events = rebuilt
	appLog.Info("calendar timezone updated", "from", old.String(), "to", loc.String(), "events", c.Len())
}

func (c *Calendar) scope(opts model.EventOptions) model.EventOptions {
	if !opts.Start.IsZero() {
		opts.Start = c.Wall(opts.Start)
	}
	if opts.End != nil {
		end := c.Wall(*opts.End)
		opts.End = &end
	}
	return opts
}

func (c *Calendar) find(key model.Key) (model.Event, bool) {
	for _, ev := range c.events[key.Start] {
		if ev.Key() == key {
			return ev, true
		}
	}
	return model.Event{}, false
}

func (c *Calendar) insert(ev model.Event) {
	k := ev.Start().Unix()
	c.events[k] = append(c.events[k], ev)
}

func (c *Calendar) remove(key model.Key) {
	bucket := c.events[key.Start]
	for i, ev := range bucket {
		if ev.Key() != key {
			continue
		}
		rest := make([]model.Event, 0, len(bucket)-1)
		rest = append(rest, bucket[:i]...)
		rest = append(rest, bucket[i+1:]...)
		if len(rest) == 0 {
			delete(c.events, key.Start)
		} else {
			c.events[key.Start] = rest
		}
		return
	}
}

// checkDuplicates fails when any candidate collides with a stored event that
// is not in replaced, or with another candidate.
func (c *Calendar) checkDuplicates(candidates []model.Event, replaced map[model.Key]struct{}) error {
	seen := make(map[model.Key]struct{}, len(candidates))
	for _, ev := range candidates {
		key := ev.Key()
		if _, dup := seen[key]; dup {
			return conflict(ev)
		}
		seen[key] = struct{}{}
		if _, skip := replaced[key]; skip {
			continue
		}
		if _, exists := c.find(key); exists {
			return conflict(ev)
		}
	}
	return nil
}

func (c *Calendar) sortedKeys() []int64 {
	keys := make([]int64, 0, len(c.events))
	for k := range c.events {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func conflict(ev model.Event) error {
	return apperr.Conflictf("event %q from %s to %s already exists",
		ev.Subject(), model.FormatDateTime(ev.Start()), model.FormatDateTime(ev.End()))
}

func sortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Start().Equal(b.Start()) {
			return a.Start().Before(b.Start())
		}
		if !a.End().Equal(b.End()) {
			return a.End().Before(b.End())
		}
		return strings.Compare(a.Subject(), b.Subject()) < 0
	})
}
