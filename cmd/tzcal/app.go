package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"tzcal/internal/calendar"
	"tzcal/internal/config"
	"tzcal/internal/ics"
	appLog "tzcal/internal/log"
	"tzcal/internal/registry"
	"tzcal/internal/tz"
)

// buildRegistry creates every configured calendar and selects the active one.
func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg := registry.New()
	for _, c := range cfg.Calendars {
		zone := c.Timezone
		if zone == "" {
			zone = cfg.Timezone
		}
		if err := reg.CreateCalendar(c.Name, zone); err != nil {
			return nil, fmt.Errorf("calendar %q: %w", c.Name, err)
		}
	}
	if cfg.Active != "" {
		if err := reg.UseCalendar(cfg.Active); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// syncSources fetches every calendar's sources and imports what is not
// already stored. Fetching happens outside do; decoding and importing run
// inside it. Per-source failures are joined into the returned error.
func syncSources(ctx context.Context, cfg *config.Config, f *ics.Fetcher, do func(func(*registry.Registry) error) error, now time.Time) error {
	var errs []error
	opts := ics.DecodeOptions{From: now.AddDate(0, -1, 0), To: now.AddDate(1, 0, 0)}

	for _, c := range cfg.Calendars {
		if len(c.Sources) == 0 {
			continue
		}
		sources := make([]ics.Source, 0, len(c.Sources))
		for _, s := range c.Sources {
			sources = append(sources, ics.Source{ID: s.ID, URL: s.URL, Path: s.Path})
		}
		results, fetchErrs := f.FetchAll(ctx, sources)
		errs = append(errs, fetchErrs...)

		name := c.Name
		err := do(func(reg *registry.Registry) error {
			cal, err := reg.Calendar(name)
			if err != nil {
				return err
			}
			var failed []error
			for _, res := range results {
				events, err := ics.Decode(res.Body, cal.Location(), opts)
				if err != nil {
					failed = append(failed, fmt.Errorf("source %s: %w", res.Source.ID, err))
					continue
				}
				if _, err := reg.Import(name, events, false); err != nil {
					failed = append(failed, fmt.Errorf("source %s: %w", res.Source.ID, err))
				}
			}
			return errors.Join(failed...)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	appLog.Debug("sources synced", "calendars", len(cfg.Calendars))
	return nil
}

// printAgenda writes the next days of every calendar, starting with the day
// of now on each calendar's own clock.
func printAgenda(w io.Writer, reg *registry.Registry, now time.Time, days int) error {
	for i, name := range reg.Names() {
		cal, err := reg.Calendar(name)
		if err != nil {
			return err
		}
		today := tz.Floor(now.In(cal.Location()))
		events, err := cal.OnDays(today, tz.ShiftDays(today, days-1))
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", name, cal.Location())
		if len(events) == 0 {
			fmt.Fprintln(w, "No events")
			continue
		}
		fmt.Fprintln(w, calendar.Render(events))
	}
	if len(reg.Names()) == 0 {
		fmt.Fprintln(w, registry.NoCalendars)
	}
	return nil
}

func exportCalendar(w io.Writer, reg *registry.Registry, name string) error {
	cal, err := reg.Calendar(name)
	if err != nil {
		return err
	}
	return ics.Encode(w, name, cal.Location(), cal.Events())
}
