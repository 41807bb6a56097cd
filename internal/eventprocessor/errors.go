// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package eventprocessor

import "errors"

// ErrUnknownTransport is returned by NewTransport for an unsupported transport name.
var ErrUnknownTransport = errors.New("unknown messaging transport")

// ErrPublisherClosed is returned when publishing after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// ErrSubscriptionClosed is returned by MessageHandler.Run when the transport
// closes the message channel while the handler's context is still live.
var ErrSubscriptionClosed = errors.New("subscription channel closed")

// ErrSkipMessage may be returned (or wrapped) by a handler to acknowledge a
// message that will never be processable, such as one whose recipient no
// longer exists.
var ErrSkipMessage = errors.New("message skipped")

// ErrInvalidConfig is returned when configuration is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")
