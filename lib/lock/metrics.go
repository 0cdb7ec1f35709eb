package lock

import "github.com/VictoriaMetrics/metrics"

// Metrics of all bindings in the process (exposed with metrics.WritePrometheus)
var (
	requestsGranted  = metrics.GetOrCreateCounter(`wlock_requests_total{outcome="granted"}`)
	requestsDeclined = metrics.GetOrCreateCounter(`wlock_requests_total{outcome="declined"}`)
	requestsFailed   = metrics.GetOrCreateCounter(`wlock_requests_total{outcome="failed"}`)
	requestsInvalid  = metrics.GetOrCreateCounter(`wlock_requests_total{outcome="invalid"}`)

	releasesReleased = metrics.GetOrCreateCounter(`wlock_releases_total{outcome="released"}`)
	releasesLost     = metrics.GetOrCreateCounter(`wlock_releases_total{outcome="lost"}`)

	holdDuration = metrics.GetOrCreateHistogram(`wlock_hold_duration_seconds`)
)
