package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TelemetryEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rouenrt_telemetry_events_total",
		Help: "Telemetry events by processing outcome.",
	}, []string{"outcome"})

	ReconcilerVehicles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rouenrt_reconciler_vehicles_total",
		Help: "Vehicles touched by the backup feed reconciler, per pass.",
	}, []string{"pass"})

	StoreEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rouenrt_store_entries",
		Help: "Entries currently held in the realtime store.",
	}, []string{"kind"})

	ResourceRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rouenrt_resource_refreshes_total",
		Help: "Static resource refreshes by resource and result.",
	}, []string{"resource", "result"})

	IngressReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rouenrt_ingress_reconnects_total",
		Help: "Reconnections made to the vehicle push bus.",
	})
)
