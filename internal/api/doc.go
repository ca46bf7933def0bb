// Package api hosts the portal's HTTP surface. Notable routes:
//   - GET /healthz and /readyz for health checks, GET /metrics for Prometheus.
//   - /api/crawl, /api/bid-notices and /api/bid-results for upstream data.
//   - /api/normalize and /api/validate for rule-driven record processing.
//   - /api/workflow to define, run, poll and cancel step pipelines.
//   - /api/recommendations for scored subsidy programs.
//
// Every JSON response uses the {success, data, error, message} envelope.
package api
