package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzcal/internal/config"
	"tzcal/internal/ics"
	"tzcal/internal/model"
	"tzcal/internal/registry"
)

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.CreateCalendar("Work", "America/New_York"))
	require.NoError(t, reg.CreateCalendar("California", "America/Los_Angeles"))
	require.NoError(t, reg.UseCalendar("Work"))

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	srv := httptest.NewServer(NewServer(cfg, reg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return do(t, req)
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return do(t, req)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestCreateAndQueryEvents(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := post(t, srv.URL+"/api/calendars/Work/events",
		`{"subject":"Standup","start":"2025-01-06T09:00","end":"2025-01-06T09:15","repeat":{"days":"MWF","count":3}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created createEventResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.Len(t, created.Events, 3)
	assert.Equal(t, "2025-01-10T09:00", created.Events[2].Start)
	assert.NotEmpty(t, created.Events[0].SeriesID)

	resp, body = post(t, srv.URL+"/api/calendars/Work/events",
		`{"subject":"Standup","start":"2025-01-08T09:00","end":"2025-01-08T09:15"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), `"code":"CONFLICT"`)

	resp, body = get(t, srv.URL+"/api/calendars/Work/schedule?start=2025-01-06T00:00&end=2025-01-08T23:59")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sched scheduleResponse
	require.NoError(t, json.Unmarshal(body, &sched))
	assert.Equal(t, "America/New_York", sched.Timezone)
	assert.Len(t, sched.Events, 2)
	assert.Equal(t, "• Standup (2025-01-06 09:00 - 09:15)\n• Standup (2025-01-08 09:00 - 09:15)", sched.Text)

	resp, body = get(t, srv.URL+"/api/calendars/Work/schedule?start=2025-01-10T00:00")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &sched))
	assert.Len(t, sched.Events, 1)

	resp, body = get(t, srv.URL+"/api/calendars/Work/free?at=2025-01-06T09:15")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var free freeResponse
	require.NoError(t, json.Unmarshal(body, &free))
	assert.Equal(t, "Busy", free.Status)

	resp, body = get(t, srv.URL+"/api/calendars/California/free?at=2025-01-06T09:15")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &free))
	assert.Equal(t, "Available", free.Status)
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := get(t, srv.URL+"/api/calendars/Nope/free?at=2025-01-06T09:15")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/calendars/Work/free?at=tomorrow")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/calendars/Work/schedule?start=2025-01-06T00:00&end=2025-01-01T00:00")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/api/calendars/Work/events", `{"subject":"X","start":"2025-01-06T09:00","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/api/calendars/Work/events", `{"subject":"X","start":"2025-01-06T09:00","repeat":{"days":"XYZ","count":2}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/api/calendars/Work/events", `{"subject":"","start":"2025-01-06T09:00"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/calendars/Work/events")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCalendarsAndExport(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, _ := post(t, srv.URL+"/api/calendars/California/events",
		`{"subject":"Flight","start":"2025-01-01T09:00","end":"2025-01-01T12:00","status":"Private"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := get(t, srv.URL+"/api/calendars")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cals calendarsResponse
	require.NoError(t, json.Unmarshal(body, &cals))
	assert.Equal(t, []calendarDTO{
		{Name: "California", Timezone: "America/Los_Angeles", Events: 1},
		{Name: "Work", Timezone: "America/New_York", Events: 0, Active: true},
	}, cals.Calendars)

	resp, body = get(t, srv.URL+"/api/calendars/California/export.ics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	assert.Contains(t, string(body), "SUMMARY:Flight")

	events, err := ics.Decode(body, nil, ics.DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	// 09:00 Pacific is 17:00 UTC
	assert.Equal(t, "2025-01-01T17:00", model.FormatDateTime(events[0].Start()))
	assert.Equal(t, model.StatusPrivate, events[0].Status())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tzcal_calendars")
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	srv := newTestServer(t, cfg)

	resp, _ := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/calendars")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/calendars", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "wrong")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.SetBasicAuth("admin", "secret")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusPreconditionFailed, statusFor("STATE_ERROR"))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}
