// Package api hosts the HTTP server, middleware, and REST handlers for the notes service.
// Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - /v1/notes for synchronous capture, listing, editing, and deletion.
//   - /v1/notes/{uid}/rendition and /preview for display.
//   - /v1/tags for the tag vocabulary and bulk tag removal.
//   - /v1/captures for asynchronous capture jobs.
package api
