package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"tzcal/internal/apperr"
	"tzcal/internal/calendar"
	"tzcal/internal/ics"
	"tzcal/internal/model"
	"tzcal/internal/registry"
)

type calendarDTO struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Events   int    `json:"events"`
	Active   bool   `json:"active"`
}

type calendarsResponse struct {
	Calendars []calendarDTO `json:"calendars"`
}

// eventDTO renders times on the owning calendar's wall clock in the
// YYYY-MM-DDTHH:MM wire format.
type eventDTO struct {
	Subject     string `json:"subject"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Status      string `json:"status,omitempty"`
	SeriesID    string `json:"series_id,omitempty"`
}

type scheduleResponse struct {
	Calendar string     `json:"calendar"`
	Timezone string     `json:"timezone"`
	Events   []eventDTO `json:"events"`
	Text     string     `json:"text"`
}

type freeResponse struct {
	Calendar string `json:"calendar"`
	At       string `json:"at"`
	Status   string `json:"status"`
}

// createEventRequest creates a single event, or a weekly series when Repeat
// is set. End may be omitted for an all-day event.
type createEventRequest struct {
	Subject     string         `json:"subject"`
	Start       string         `json:"start"`
	End         string         `json:"end,omitempty"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Status      string         `json:"status,omitempty"`
	Repeat      *repeatRequest `json:"repeat,omitempty"`
}

type repeatRequest struct {
	Days  string `json:"days"`
	Count int    `json:"count,omitempty"`
	Until string `json:"until,omitempty"`
}

type createEventResponse struct {
	Events []eventDTO `json:"events"`
}

func toDTO(ev model.Event) eventDTO {
	return eventDTO{
		Subject:     ev.Subject(),
		Start:       model.FormatDateTime(ev.Start()),
		End:         model.FormatDateTime(ev.End()),
		Description: ev.Description(),
		Location:    ev.Location(),
		Status:      string(ev.Status()),
		SeriesID:    ev.SeriesID(),
	}
}

func toDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toDTO(ev))
	}
	return out
}

// handleCalendars lists every calendar.
//
// GET /api/calendars
func (s *Server) handleCalendars(w http.ResponseWriter, _ *http.Request) {
	var resp calendarsResponse
	_ = s.Do(func(reg *registry.Registry) error {
		active := reg.ActiveName()
		resp.Calendars = make([]calendarDTO, 0, len(reg.Names()))
		for _, name := range reg.Names() {
			cal, err := reg.Calendar(name)
			if err != nil {
				continue
			}
			resp.Calendars = append(resp.Calendars, calendarDTO{
				Name:     name,
				Timezone: cal.Location().String(),
				Events:   cal.Len(),
				Active:   name == active,
			})
		}
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleSchedule returns the events overlapping [start, end]. With only
// start, the whole day of start is returned.
//
// GET /api/calendars/{name}/schedule?start=2025-01-01T00:00&end=2025-01-07T23:59
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	q := r.URL.Query()
	start, err := model.ParseDateTime(q.Get("start"), time.UTC)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var end *time.Time
	if raw := q.Get("end"); raw != "" {
		v, err := model.ParseDateTime(raw, time.UTC)
		if err != nil {
			writeError(w, r, err)
			return
		}
		end = &v
	}

	var resp scheduleResponse
	err = s.Do(func(reg *registry.Registry) error {
		cal, err := reg.Calendar(name)
		if err != nil {
			return err
		}
		var events []model.Event
		if end == nil {
			events = cal.OnDay(start)
		} else if events, err = cal.Between(start, *end); err != nil {
			return err
		}
		resp = scheduleResponse{
			Calendar: name,
			Timezone: cal.Location().String(),
			Events:   toDTOs(events),
			Text:     calendar.Render(events),
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFree reports Busy or Available at a wall-clock time.
//
// GET /api/calendars/{name}/free?at=2025-01-01T10:30
func (s *Server) handleFree(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	at, err := model.ParseDateTime(r.URL.Query().Get("at"), time.UTC)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var status string
	err = s.Do(func(reg *registry.Registry) error {
		cal, err := reg.Calendar(name)
		if err != nil {
			return err
		}
		status = cal.Availability(at)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, freeResponse{Calendar: name, At: model.FormatDateTime(at), Status: status})
}

// handleExport serves the calendar as an ICS file.
//
// GET /api/calendars/{name}/export.ics
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var buf bytes.Buffer
	err := s.Do(func(reg *registry.Registry) error {
		cal, err := reg.Calendar(name)
		if err != nil {
			return err
		}
		return ics.Encode(&buf, name, cal.Location(), cal.Events())
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.ics"`)
	_, _ = w.Write(buf.Bytes())
}

// handleCreateEvent stores an event or a weekly series.
//
// POST /api/calendars/{name}/events
//
//	{"subject":"Gym","start":"2025-01-06T07:00","end":"2025-01-06T08:00",
//	 "repeat":{"days":"MWF","count":6}}
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req createEventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.CodeValidation, "invalid request body"))
		return
	}

	opts, rule, err := req.parse()
	if err != nil {
		writeError(w, r, err)
		return
	}

	var created []model.Event
	err = s.Do(func(reg *registry.Registry) error {
		if rule == nil {
			ev, err := reg.CreateEventIn(name, opts)
			if err != nil {
				return err
			}
			created = []model.Event{ev}
			return nil
		}
		occ, err := reg.CreateSeriesIn(name, opts, *rule)
		created = occ
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createEventResponse{Events: toDTOs(created)})
}

func (req createEventRequest) parse() (model.EventOptions, *model.SeriesRule, error) {
	opts := model.EventOptions{
		Subject:     req.Subject,
		Description: req.Description,
		Location:    req.Location,
		Status:      req.Status,
	}
	start, err := model.ParseDateTime(req.Start, time.UTC)
	if err != nil {
		return opts, nil, err
	}
	opts.Start = start
	if req.End != "" {
		end, err := model.ParseDateTime(req.End, time.UTC)
		if err != nil {
			return opts, nil, err
		}
		opts.End = &end
	}

	if req.Repeat == nil {
		return opts, nil, nil
	}
	days, err := model.ParseWeekdays(req.Repeat.Days)
	if err != nil {
		return opts, nil, err
	}
	rule := &model.SeriesRule{Days: days, Count: req.Repeat.Count}
	if req.Repeat.Until != "" {
		until, err := model.ParseDate(req.Repeat.Until, time.UTC)
		if err != nil {
			return opts, nil, err
		}
		rule.Until = &until
	}
	return opts, rule, nil
}
