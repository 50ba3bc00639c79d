// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package mq provides a broker-agnostic publisher used to hand reset notices to
// the out-of-band delivery service (email/SMS workers live outside this module).
package mq

import (
	"context"
	"errors"
	"strings"
)

// ErrChannelRequired is returned when Publish is called without a destination.
var ErrChannelRequired = errors.New("mq: channel is required")

// Backend defines the broker operations used by the app.
type Backend interface {
	// Publish sends data to the named queue/topic and returns the broker message ID.
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	// Close releases broker connections.
	Close() error
}

func requireChannel(channel string) error {
	if strings.TrimSpace(channel) == "" {
		return ErrChannelRequired
	}
	return nil
}
