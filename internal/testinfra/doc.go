// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

//go:build integration

// Package testinfra starts message brokers in Docker for integration tests.
//
// Tests using it carry the integration build tag and skip when Docker is
// unavailable:
//
//	func TestNATSRoundTrip(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    nats, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, nats)
//
//	    transport := eventprocessor.NewNATSTransport(cfg, nats.URL, nil)
//	    // ...
//	}
//
// Run with:
//
//	go test -tags integration ./internal/eventprocessor/...
package testinfra
