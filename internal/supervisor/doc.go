// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

/*
Package supervisor runs the gateway's long-lived services under a suture
supervisor tree.

The tree has two layers:

	confluence (root)
	├── messaging-layer
	│   ├── nats-server              (embedded broker, when configured)
	│   ├── listener:user-welcome-sub
	│   └── listener:event-notification-sub
	└── api-layer
	    └── http-server

A listener that loses its subscription returns an error and is restarted
with backoff; the API layer keeps serving meanwhile, so request handling
never depends on the consumers being up.

Supervisor events are logged through sutureslog with a slog handler that
forwards to zerolog (see logging.NewSlogLogger).

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	tree.AddMessagingService(services.NewListenerService(transport, spec))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
