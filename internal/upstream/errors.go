// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

var (
	// ErrUnreachable indicates the service could not be contacted: dial or
	// connection failure, or an open circuit breaker.
	ErrUnreachable = errors.New("upstream service unreachable")

	// ErrUpstreamTimeout indicates the call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream service timed out")

	// ErrResponseTooLarge indicates the response body exceeded the
	// client's size limit. The body is discarded rather than truncated.
	ErrResponseTooLarge = errors.New("upstream response too large")
)

// Error is a response with status >= 400 from an atomic service.
type Error struct {
	Service    string
	StatusCode int

	// Detail is the message to surface to the client.
	Detail string

	// RawDetail holds a structured detail value (e.g. a validation error
	// list) when the service sent one.
	RawDetail json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s service returned %d: %s", e.Service, e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// newError builds an Error from a failed response body.
func newError(service string, status int, body []byte) *Error {
	e := &Error{Service: service, StatusCode: status}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil && len(envelope.Detail) > 0 && string(envelope.Detail) != "null" {
		var s string
		if json.Unmarshal(envelope.Detail, &s) == nil {
			e.Detail = s
			return e
		}
		e.RawDetail = envelope.Detail
		e.Detail = string(envelope.Detail)
		return e
	}

	e.Detail = strconv.Itoa(status) + " " + http.StatusText(status)
	return e
}
