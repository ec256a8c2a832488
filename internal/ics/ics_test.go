package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzcal/internal/apperr"
	"tzcal/internal/model"
	"tzcal/internal/tz"
)

func zone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := tz.Parse(name)
	require.NoError(t, err)
	return loc
}

// feed wraps VEVENT lines in a VCALENDAR with CRLF line endings.
func feed(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

func byStart(events []model.Event) map[string]model.Event {
	out := make(map[string]model.Event, len(events))
	for _, ev := range events {
		out[model.FormatDateTime(ev.Start())] = ev
	}
	return out
}

func TestDecodeConvertsIntoCalendarZone(t *testing.T) {
	la := zone(t, "America/Los_Angeles")
	body := feed(
		"BEGIN:VEVENT",
		"UID:standup@test",
		"DTSTART;TZID=America/New_York:20250101T090000",
		"DTEND;TZID=America/New_York:20250101T100000",
		"SUMMARY:Standup",
		"LOCATION:Room 1",
		"CLASS:CONFIDENTIAL",
		"X-TZCAL-SERIES-ID:abc",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:utc@test",
		"DTSTART:20250102T200000Z",
		"DTEND:20250102T203000Z",
		"SUMMARY:Call",
		"CLASS:PUBLIC",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:floating@test",
		"DTSTART:20250103T090000",
		"DTEND:20250103T091500",
		"SUMMARY:Coffee",
		"END:VEVENT",
	)

	events, err := Decode(body, la, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	got := byStart(events)

	standup := got["2025-01-01T06:00"]
	assert.Equal(t, "Standup", standup.Subject())
	assert.Equal(t, "2025-01-01T07:00", model.FormatDateTime(standup.End()))
	assert.Equal(t, "Room 1", standup.Location())
	assert.Equal(t, model.StatusPrivate, standup.Status())
	assert.Equal(t, "abc", standup.SeriesID())
	assert.Equal(t, la, standup.Start().Location())

	call := got["2025-01-02T12:00"]
	assert.Equal(t, "Call", call.Subject())
	assert.Equal(t, model.StatusPublic, call.Status())

	coffee := got["2025-01-03T09:00"]
	assert.Equal(t, "Coffee", coffee.Subject())
	assert.False(t, coffee.InSeries())
}

func TestDecodeAllDayAndSkips(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"UID:trip@test",
		"DTSTART;VALUE=DATE:20250301",
		"DTEND;VALUE=DATE:20250303",
		"SUMMARY:Trip",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:nosummary@test",
		"DTSTART:20250301T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:nostart@test",
		"SUMMARY:Lost",
		"END:VEVENT",
	)

	events, err := Decode(body, time.UTC, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "• Trip (2025-03-01 08:00 - 2025-03-02 17:00)", events[0].Bullet())
}

func TestDecodeExpandsRecurrence(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"UID:lecture@test",
		"DTSTART:20250106T150000Z",
		"DTEND:20250106T160000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=MO;COUNT=4",
		"EXDATE:20250113T150000Z",
		"SUMMARY:Lecture",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:lecture@test",
		"RECURRENCE-ID:20250120T150000Z",
		"DTSTART:20250120T170000Z",
		"DTEND:20250120T180000Z",
		"SUMMARY:Lecture (moved)",
		"END:VEVENT",
	)

	events, err := Decode(body, time.UTC, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "• Lecture (2025-01-06 15:00 - 16:00)", events[0].Bullet())
	assert.Equal(t, "• Lecture (moved) (2025-01-20 17:00 - 18:00)", events[1].Bullet())
	assert.Equal(t, "• Lecture (2025-01-27 15:00 - 16:00)", events[2].Bullet())

	require.NotEmpty(t, events[0].SeriesID())
	for _, ev := range events {
		assert.Equal(t, events[0].SeriesID(), ev.SeriesID())
	}

	again, err := Decode(body, time.UTC, DecodeOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, events[0].SeriesID(), again[0].SeriesID(), "each decode mints a new series")
}

func TestDecodeWindowAndCap(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"UID:daily@test",
		"DTSTART:20250101T090000Z",
		"DTEND:20250101T093000Z",
		"RRULE:FREQ=DAILY",
		"SUMMARY:Daily",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:once@test",
		"DTSTART:20240601T090000Z",
		"DTEND:20240601T100000Z",
		"SUMMARY:Old",
		"END:VEVENT",
	)
	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 7, 23, 59, 0, 0, time.UTC)

	events, err := Decode(body, time.UTC, DecodeOptions{From: from, To: to})
	require.NoError(t, err)
	require.Len(t, events, 7)
	assert.Equal(t, "2025-02-01T09:00", model.FormatDateTime(events[0].Start()))

	events, err = Decode(body, time.UTC, DecodeOptions{From: from, To: to, MaxOccurrences: 3})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	_, err = Decode(body, time.UTC, DecodeOptions{From: to, To: from})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDecodeRejectsBadBody(t *testing.T) {
	_, err := Decode(nil, time.UTC, DecodeOptions{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEncodeRoundTrip(t *testing.T) {
	ny := zone(t, "America/New_York")
	end := time.Date(2025, 1, 1, 10, 0, 0, 0, ny)
	single, err := model.New(model.EventOptions{
		Subject:     "Review",
		Start:       time.Date(2025, 1, 1, 9, 0, 0, 0, ny),
		End:         &end,
		Description: "bring notes",
		Location:    "Room 4",
		Status:      "private",
	})
	require.NoError(t, err)
	tpl, err := model.New(model.EventOptions{
		Subject: "Gym",
		Start:   time.Date(2025, 1, 6, 7, 0, 0, 0, ny),
		End:     ptr(time.Date(2025, 1, 6, 8, 0, 0, 0, ny)),
	})
	require.NoError(t, err)
	occ, err := model.ExpandSeries(tpl, model.SeriesRule{Days: model.WeekdaysOf(time.Monday, time.Friday), Count: 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "Work", ny, append([]model.Event{single}, occ...)))
	out := buf.String()
	assert.Contains(t, out, "X-WR-CALNAME:Work")
	assert.Contains(t, out, "X-WR-TIMEZONE:America/New_York")
	assert.Contains(t, out, "CLASS:PRIVATE")
	assert.Contains(t, out, "X-TZCAL-SERIES-ID:"+occ[0].SeriesID())
	assert.Equal(t, 4, strings.Count(out, "BEGIN:VEVENT"))

	var again bytes.Buffer
	require.NoError(t, Encode(&again, "Work", ny, []model.Event{single}))
	assert.Contains(t, out, "UID:"+uid(single))
	assert.Contains(t, again.String(), "UID:"+uid(single), "UIDs are stable across exports")

	decoded, err := Decode(buf.Bytes(), ny, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, decoded, 4)
	got := byStart(decoded)

	review := got["2025-01-01T09:00"]
	assert.Equal(t, single.Key(), review.Key())
	assert.Equal(t, "bring notes", review.Description())
	assert.Equal(t, "Room 4", review.Location())
	assert.Equal(t, model.StatusPrivate, review.Status())
	assert.False(t, review.InSeries())

	for _, o := range occ {
		ev, ok := got[model.FormatDateTime(o.Start())]
		require.True(t, ok)
		assert.Equal(t, o.Key(), ev.Key())
		assert.Equal(t, o.SeriesID(), ev.SeriesID())
	}
}

func ptr[T any](v T) *T { return &v }

func TestFetcherConditionalRequests(t *testing.T) {
	body := feed("BEGIN:VEVENT", "UID:x", "DTSTART:20250101T090000Z", "SUMMARY:X", "END:VEVENT")
	var failing atomic.Bool
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if failing.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	src := Source{ID: "feed", URL: srv.URL + "/private.ics?token=secret"}

	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, body, res.Body)

	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, body, res.Body)

	failing.Store(true)
	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, int32(3), hits.Load())

	_, err = NewFetcher(srv.Client()).FetchOne(context.Background(), src)
	assert.Error(t, err)
}

func TestFetchAllReadsPathsAndReportsFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.ics")
	require.NoError(t, os.WriteFile(path, feed(), 0o600))

	results, errs := NewFetcher(nil).FetchAll(context.Background(), []Source{
		{ID: "local", Path: path},
		{ID: "missing", Path: filepath.Join(dir, "nope.ics")},
		{ID: "empty"},
	})
	require.Len(t, results, 1)
	assert.Equal(t, "local", results[0].Source.ID)
	assert.Len(t, errs, 2)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/cal/private.ics?token=abcd"))
	assert.Equal(t, "http://host:8080/...(redacted)", redactURL("http://host:8080?x=1"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
