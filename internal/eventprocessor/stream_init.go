// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// StreamManager is the subset of JetStream stream management used by
// StreamInitializer.
type StreamManager interface {
	StreamInfo(ctx context.Context, name string) (*jetstream.StreamInfo, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) error
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) error
}

// jetStreamManager adapts jetstream.JetStream to StreamManager.
type jetStreamManager struct {
	js jetstream.JetStream
}

func (m jetStreamManager) StreamInfo(ctx context.Context, name string) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, name)
	if err != nil {
		return nil, err
	}
	return stream.Info(ctx)
}

func (m jetStreamManager) CreateStream(ctx context.Context, cfg jetstream.StreamConfig) error {
	_, err := m.js.CreateStream(ctx, cfg)
	return err
}

func (m jetStreamManager) UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) error {
	_, err := m.js.UpdateStream(ctx, cfg)
	return err
}

// StreamInitializer creates or updates the domain event stream before
// publishers and subscribers bind to it.
type StreamInitializer struct {
	streams StreamManager
	config  StreamConfig
}

// NewStreamInitializer creates a stream initializer.
func NewStreamInitializer(streams StreamManager, cfg StreamConfig) (*StreamInitializer, error) {
	if streams == nil {
		return nil, fmt.Errorf("%w: stream manager required", ErrInvalidConfig)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: stream name required", ErrInvalidConfig)
	}
	if len(cfg.Subjects) == 0 {
		return nil, fmt.Errorf("%w: stream %s has no subjects", ErrInvalidConfig, cfg.Name)
	}
	return &StreamInitializer{streams: streams, config: cfg}, nil
}

// EnsureStream creates the stream, or updates it when it already exists.
// Calling it more than once is safe.
func (s *StreamInitializer) EnsureStream(ctx context.Context) error {
	streamCfg := s.streamConfig()

	_, err := s.streams.StreamInfo(ctx, s.config.Name)
	if err == nil {
		if err := s.streams.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", s.config.Name, err)
		}
		return nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if err := s.streams.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", s.config.Name, err)
		}
		return nil
	}

	return fmt.Errorf("check stream %s: %w", s.config.Name, err)
}

func (s *StreamInitializer) streamConfig() jetstream.StreamConfig {
	replicas := s.config.Replicas
	if replicas < 1 {
		replicas = 1
	}
	return jetstream.StreamConfig{
		Name:      s.config.Name,
		Subjects:  s.config.Subjects,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    s.config.MaxAge,
		MaxBytes:  s.config.MaxBytes,
		MaxMsgs:   s.config.MaxMsgs,
		Replicas:  replicas,
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	}
}

// StreamInfo returns the current stream state.
func (s *StreamInitializer) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	info, err := s.streams.StreamInfo(ctx, s.config.Name)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", s.config.Name, err)
	}
	return info, nil
}

// Config returns the stream configuration.
func (s *StreamInitializer) Config() StreamConfig {
	return s.config
}
