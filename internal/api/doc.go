// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

/*
Package api is the HTTP surface of the gateway.

Every route under /api requires an authenticated caller (see internal/auth).
Handlers fall in two groups:

  - Composite handlers (Feed, Activity) fan out to several services through
    internal/aggregate and assemble one response. Feed is strict: any failed
    branch fails the request with 500. Activity is partial: failed branches
    are reported in an "errors" map next to the branches that succeeded.
  - Delegate handlers forward one call to one service. Bodies the gateway
    does not inspect are forwarded byte for byte, ETag and If-None-Match pass
    through, and create operations get a Location header pointing back at
    this API.

Errors are always written as {"detail": ...}:

	401  missing, malformed, expired or invalid credential
	404  missing entity, or a caller with no internal user
	422  invalid path, query or body parameters
	4xx  upstream client errors, detail passed through
	500  strict aggregation failure or internal fault
	503  upstream unreachable or circuit open
	504  upstream timeout

Operational routes (/, /health/*, /metrics, /swagger/*) are unauthenticated.
*/
package api
