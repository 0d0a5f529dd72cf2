// Package httpapi exposes task admission and dead-task administration over
// HTTP with a chi router.
//
// Routes:
//
//	POST /tasks               add a task: {"action":"mailer.send","data":{...},"priority":1,"delay":"30s"}
//	GET  /tasks/dead?limit=N  list tasks that reached the attempt ceiling
//	POST /tasks/{id}/revive   reset attempts and make a dead task eligible
//	GET  /stats               pending and dead counts
//	GET  /health/live         liveness probe
//	GET  /health/ready        readiness probe running the configured checks
//
// Replies are JSON envelopes with data, meta and error fields. Validation
// errors map to 400, unknown tasks to 404 and everything else to 500.
package httpapi
