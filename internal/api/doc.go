// Package api implements the HTTP REST API for prodev.
//
// This package provides:
//   - user endpoints backed by user.Repository (paged list, stats, CRUD)
//   - a health endpoint that runs registered component checks
//   - a Prometheus metrics endpoint for the access layer and HTTP routes
//   - middleware for request IDs, access logs, panic recovery and body limits
//
// Request metrics are labelled with the chi route pattern, so
// /api/v1/users/{id} is one series however many ids are requested.
//
// # Error Mapping
//
// Repository errors are mapped onto status codes with errors.Is: a missing
// user is 404, a duplicate id or email is 409, invalid input is 400, and a
// store that stayed unreachable after retries is 503.
//
// # Routes
//
//	GET    /metrics
//	GET    /api/v1/health
//	GET    /api/v1/users?page_size=&offset=
//	POST   /api/v1/users
//	GET    /api/v1/users/stats
//	GET    /api/v1/users/{id}
//	PATCH  /api/v1/users/{id}/email
//	DELETE /api/v1/users/{id}
package api
