// Package api hosts the status server that runs alongside a harvest.
// Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /progress for the live run snapshot.
//   - GET /runs/last for the summary of the most recent finished run.
//   - GET /runs/{run_id}/dataset for a finished run's TSV dataset.
package api
