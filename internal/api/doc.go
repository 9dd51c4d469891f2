// Package api hosts the operator HTTP surface of a running crawl:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for a JSON snapshot of the crawl in flight and the
//     summary of the last finished one.
package api
