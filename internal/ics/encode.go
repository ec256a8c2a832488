package ics

import (
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"tzcal/internal/model"
)

const productID = "-//tzcal//calendar export//EN"

// Encode writes events as a VCALENDAR named name. Instants are written in
// UTC; loc is advertised through X-WR-TIMEZONE. UIDs are derived from each
// event's identity so exporting the same calendar twice yields the same
// UIDs.
func Encode(w io.Writer, name string, loc *time.Location, events []model.Event) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)
	if loc != nil {
		cal.SetXWRTimezone(loc.String())
	}

	stamp := time.Now().UTC()
	for _, ev := range events {
		ve := cal.AddEvent(uid(ev))
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Start())
		ve.SetEndAt(ev.End())
		ve.SetSummary(ev.Subject())
		if ev.Description() != "" {
			ve.SetDescription(ev.Description())
		}
		if ev.Location() != "" {
			ve.SetLocation(ev.Location())
		}
		if class := statusClass(ev.Status()); class != "" {
			ve.SetProperty(ical.ComponentPropertyClass, class)
		}
		if ev.InSeries() {
			ve.SetProperty(PropertySeriesID, ev.SeriesID())
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

func uid(ev model.Event) string {
	k := ev.Key()
	name := k.Subject + "|" + strconv.FormatInt(k.Start, 10) + "|" + strconv.FormatInt(k.End, 10)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String() + "@tzcal"
}
