// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

/*
Package services provides suture.Service wrappers for the gateway's
long-lived components.

Each wrapper translates a component lifecycle into suture's Serve pattern:

  - HTTPServerService: ListenAndServe plus graceful Shutdown
  - BrokerService: owns an already started embedded NATS server and shuts
    it down when the tree stops
  - ListenerService: creates a subscriber on every start and runs one
    subscription's message handler until the context ends

Returning an error from Serve makes suture restart the service with
backoff; returning ctx.Err() on cancellation is a clean stop.
*/
package services
