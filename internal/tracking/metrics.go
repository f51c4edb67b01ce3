package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// eventsRecorded tracks persisted engagement events by type.
var eventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outreach_tracking_events_total",
	Help: "Total number of recorded tracking events by type",
}, []string{"type"})
