/*
Package metrics defines the Prometheus metrics of a bridge process.

All metrics are registered on the default registry at package init and are
exposed by Handler when the bridge runs with --metrics-addr. A bridge lives
as long as its container, so the counters describe one workload; scrape
targets are usually labelled by the supervisor with the vassal name.

# Metrics

	vassal_bridge_engine_requests_total{method,status}     counter
	vassal_bridge_engine_request_duration_seconds{method}  histogram
	vassal_bridge_conflict_retries_total                   counter
	vassal_bridge_containers_created_total                 counter
	vassal_bridge_containers_destroyed_total               counter
	vassal_bridge_startup_duration_seconds                 histogram
	vassal_bridge_attach_bytes_total                       counter

The status label is the HTTP status code, or "error" when the call failed
before a response arrived.

# Timer Pattern

	timer := metrics.NewTimer()
	resp, err := client.Do(req)
	timer.ObserveDurationVec(metrics.EngineRequestDuration, req.Method)
*/
package metrics
