// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package eventprocessor is the messaging layer for domain events, built on
// Watermill's message model.
//
// Three transports implement Watermill's message.Publisher and
// message.Subscriber:
//   - nats: NATS JetStream via watermill-nats, with a durable consumer and
//     queue group per subscription and an optional embedded nats-server
//   - amqp: RabbitMQ via amqp091-go, one durable queue per subscription
//     bound to its topic on a topic exchange
//   - memory: Watermill's gochannel, for single-process development and tests
//
// Delivery is at-least-once on every transport. A MessageHandler acks a
// message only after its handler returns nil (or ErrSkipMessage) and nacks
// otherwise; the transport redelivers nacked messages. Dead-lettering is
// left to the transport's own redelivery limit (JetStream MaxDeliver).
//
// # Example
//
//	transport, err := eventprocessor.NewTransport(cfg.Messaging, "")
//	if err != nil {
//	    return err
//	}
//	sub, err := transport.NewSubscriber("user-welcome-sub")
//	if err != nil {
//	    return err
//	}
//	handler := eventprocessor.NewMessageHandler(sub, "user-welcome-sub", "user-created").
//	    Handle(consumer.Handle)
//	return handler.Run(ctx)
package eventprocessor
