// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package services

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/confluence/internal/eventprocessor"
	"github.com/tomtom215/confluence/internal/logging"
)

// SubscriberFactory is satisfied by eventprocessor.Transport.
type SubscriberFactory interface {
	NewSubscriber(ctx context.Context, subscription string) (message.Subscriber, error)
}

// ListenerSpec describes one durable subscription.
type ListenerSpec struct {
	Subscription string
	Topic        string
	Handler      eventprocessor.HandlerFunc
}

// ListenerService consumes one subscription. The subscriber is created on
// every start so a restart after a broker outage reconnects.
type ListenerService struct {
	factory SubscriberFactory
	spec    ListenerSpec
}

// NewListenerService creates the service.
func NewListenerService(factory SubscriberFactory, spec ListenerSpec) *ListenerService {
	return &ListenerService{factory: factory, spec: spec}
}

// Serve implements suture.Service.
func (s *ListenerService) Serve(ctx context.Context) error {
	sub, err := s.factory.NewSubscriber(ctx, s.spec.Subscription)
	if err != nil {
		return fmt.Errorf("create subscriber %s: %w", s.spec.Subscription, err)
	}
	defer func() {
		if cerr := sub.Close(); cerr != nil {
			logging.Warn().Err(cerr).Str("subscription", s.spec.Subscription).Msg("Error closing subscriber")
		}
	}()

	return eventprocessor.NewMessageHandler(sub, s.spec.Subscription, s.spec.Topic).
		Handle(s.spec.Handler).
		Run(ctx)
}

// String implements fmt.Stringer.
func (s *ListenerService) String() string {
	return "listener:" + s.spec.Subscription
}
