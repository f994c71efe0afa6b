/*
Package api serves the bridge's health, readiness and Prometheus metrics
endpoints over HTTP.

	GET /health   liveness, always 200 while the process runs
	GET /ready    200 once the container is running and attached, 503 before and after
	GET /metrics  Prometheus exposition

The server is optional; the CLI starts it when --metrics-addr is set.
*/
package api
