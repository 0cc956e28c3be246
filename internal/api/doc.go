// Package api hosts the HTTP server, middleware, and REST handlers behind
// `castcrawler serve`. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/credits, /v1/recommendations and /v1/plot for stored runs.
package api
