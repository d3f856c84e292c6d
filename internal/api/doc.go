// Package api hosts the operator HTTP surface that runs alongside a command.
// Routes:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for the current command's progress snapshot.
//   - GET /records and /records/{id} for the stored listing documents.
package api
