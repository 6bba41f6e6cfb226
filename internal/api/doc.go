// Package api hosts the HTTP server that serves aggregated feeds. Notable routes:
//   - GET / and /feed render an Atom feed from a sources document. Query
//     parameters gist, title, subtitle, link, limit and days override the
//     configured defaults.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//
// Every response carries permissive CORS headers and OPTIONS requests are
// answered with 204.
package api
