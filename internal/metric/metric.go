// Package metric exposes prometheus instruments for calendar activity. They
// register on the default registry and are served by the web /metrics route.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tzcal_events_stored_total",
		Help: "Events written to a calendar, by calendar and operation",
	}, []string{"calendar", "op"})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tzcal_rejections_total",
		Help: "Operations refused by the core, by operation and error code",
	}, []string{"op", "code"})

	Calendars = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tzcal_calendars",
		Help: "Number of calendars in the registry",
	})

	CalendarEvents = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tzcal_calendar_events",
		Help: "Number of events held by each calendar",
	}, []string{"calendar"})
)
