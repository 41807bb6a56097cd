// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/confluence/internal/logging"
)

// ErrBrokerStopped means the embedded broker is no longer running.
var ErrBrokerStopped = errors.New("embedded broker stopped")

// Broker is satisfied by *eventprocessor.EmbeddedServer.
type Broker interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// BrokerService ties an embedded broker's lifetime to the tree. The broker
// is started before the tree so transports can be built against its URL.
type BrokerService struct {
	broker          Broker
	shutdownTimeout time.Duration
	pollInterval    time.Duration
}

// NewBrokerService creates the service.
func NewBrokerService(broker Broker, shutdownTimeout time.Duration) *BrokerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &BrokerService{broker: broker, shutdownTimeout: shutdownTimeout, pollInterval: 5 * time.Second}
}

// Serve implements suture.Service. A broker that stops on its own cannot be
// restarted in place, so the service then asks suture not to restart it.
func (s *BrokerService) Serve(ctx context.Context) error {
	if !s.broker.IsRunning() {
		return fmt.Errorf("%w: %w", ErrBrokerStopped, suture.ErrDoNotRestart)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.broker.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("Embedded NATS server shutdown incomplete")
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.broker.IsRunning() {
				logging.Error().Msg("Embedded NATS server stopped unexpectedly")
				return fmt.Errorf("%w: %w", ErrBrokerStopped, suture.ErrDoNotRestart)
			}
		}
	}
}

// String implements fmt.Stringer.
func (s *BrokerService) String() string {
	return "nats-server"
}
