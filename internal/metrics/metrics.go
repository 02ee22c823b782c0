// Package metrics exposes the planner's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var namespace = "holidaycal"

var (
	// PublicHolidayLoads counts public holiday loads partitioned by origin
	// (gov.uk, fallback, computed).
	PublicHolidayLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "public_holiday_loads_total",
		Help:      "Public holiday loads partitioned by data origin",
	}, []string{"origin"})

	// Imports counts ICS imports partitioned by result.
	Imports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ics_imports_total",
		Help:      "ICS imports partitioned by result (success, failure)",
	}, []string{"result"})

	// ImportedHolidays counts entries added to the collection by imports.
	ImportedHolidays = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ics_imported_holidays_total",
		Help:      "Entries added to the collection by ICS imports",
	})

	// SchoolHolidays is the current size of the school holiday collection.
	SchoolHolidays = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "school_holidays",
		Help:      "Number of entries in the school holiday collection",
	})

	// StaleReseeds counts default reseeds discarded after a competing load.
	StaleReseeds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_reseeds_total",
		Help:      "Default school table reseeds discarded because a newer load completed",
	})

	// Refreshes counts scheduled refresh runs.
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_runs_total",
		Help:      "Scheduled refresh runs partitioned by result",
	}, []string{"result"})

	// HTTPRequestDuration stores API processing time partitioned by route
	// and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request processing time partitioned by route and status",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)
