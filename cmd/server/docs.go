// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package main provides the Confluence HTTP server
//
// @title Confluence Composite API
// @version 1.0
// @description Composite gateway over the Users, Events and Feed services.
// @description
// @description ## Authentication
// @description
// @description Every /api route requires a Firebase ID token in the Authorization header
// @description (`Bearer <token>`), or, behind a trusted gateway, the forwarded identity header.
// @description The first authenticated request of a new caller creates their internal user.
// @description
// @description ## Conditional Requests
// @description
// @description Single-resource and list GETs pass `If-None-Match` to the owning service and
// @description return its `ETag`; a match answers 304 with no body.
// @description
// @description ## Error Responses
// @description
// @description Errors use one shape. `detail` is a string, or a list of
// @description `{loc, msg, type}` items for validation failures (422):
// @description ```json
// @description { "detail": "User not found" }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/confluence/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8080
// @BasePath /api
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Firebase ID token: "Bearer <token>".
//
// @tag.name Core
// @tag.description Liveness, readiness and service status
//
// @tag.name Composite
// @tag.description Endpoints that combine data from several services
//
// @tag.name Users
// @tag.description User profiles, schedules and interests (Users service)
//
// @tag.name Friends
// @tag.description Friendships and friend requests (Users service)
//
// @tag.name Events
// @tag.description Events, including asynchronous creation (Events service)
//
// @tag.name Posts
// @tag.description Posts and post interests (Feed service)
package main
