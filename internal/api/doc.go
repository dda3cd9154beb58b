// Package api hosts the read-only status HTTP server. Routes:
//   - GET /healthz and /readyz for liveness and loop state.
//   - GET /metrics for Prometheus scraping.
//   - GET /best_points.json for the persisted best-value document, served
//     with permissive CORS and no caching so a browser dashboard can poll it.
package api
