// Package internal documents the event management server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, rendering, and routing
// - domain: business logic and domain models (users, events, payments, ...)
// - storage: database access and repositories (pgx + Postgres)
// - jobs: background workers and queues
// - auth, audit, config, email, metrics, objectstore, razorpay, sanitize,
//   search: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
