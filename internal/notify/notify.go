// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify delivers password-reset codes out-of-band.

The auth service only knows the [Sink] contract. Actual email/SMS delivery is
performed by a downstream worker that consumes the published notice, so a
successful [Sink.SendResetCode] means "accepted by the broker", not "read by
the user".

Backends:

  - [LogSink]: writes the code to the structured log (development only).
  - [QueueSink]: publishes a JSON notice through an [mq.Backend].
*/
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/ecgscan/internal/platform/mq"
	"github.com/taibuivan/ecgscan/pkg/mask"
)

// MessageTypeResetCode is the 'type' discriminator of published reset notices.
const MessageTypeResetCode = "reset_code"

// Notice carries everything a delivery worker needs to reach the user.
type Notice struct {
	Email     string
	Name      string
	Code      string
	ExpiresAt time.Time
}

// Sink accepts reset notices for delivery.
type Sink interface {
	SendResetCode(ctx context.Context, notice Notice) error
}

// # Log Sink

// LogSink writes reset codes to the log instead of delivering them.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a [LogSink].
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// SendResetCode implements [Sink].
func (sink *LogSink) SendResetCode(ctx context.Context, notice Notice) error {
	sink.logger.InfoContext(ctx, "reset_code_issued",
		slog.String("email", mask.Email(notice.Email)),
		slog.String("code", notice.Code),
		slog.Time("expires_at", notice.ExpiresAt),
	)
	return nil
}

// # Queue Sink

type resetCodeMessage struct {
	Type      string    `json:"type"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// QueueSink publishes reset notices to a broker topic.
type QueueSink struct {
	backend mq.Backend
	topic   string
	logger  *slog.Logger
}

// NewQueueSink constructs a [QueueSink] publishing to topic.
func NewQueueSink(backend mq.Backend, topic string, logger *slog.Logger) *QueueSink {
	return &QueueSink{backend: backend, topic: topic, logger: logger}
}

// SendResetCode implements [Sink]. Any publish error is returned to the caller
// so the pending reset request can be rolled back.
func (sink *QueueSink) SendResetCode(ctx context.Context, notice Notice) error {
	payload, err := json.Marshal(resetCodeMessage{
		Type:      MessageTypeResetCode,
		Email:     notice.Email,
		Name:      notice.Name,
		Code:      notice.Code,
		ExpiresAt: notice.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: encode reset notice: %w", err)
	}

	messageID, err := sink.backend.Publish(ctx, sink.topic, payload, map[string]string{
		"type": MessageTypeResetCode,
	})
	if err != nil {
		return fmt.Errorf("notify: publish reset notice: %w", err)
	}

	sink.logger.InfoContext(ctx, "reset_notice_published",
		slog.String("topic", sink.topic),
		slog.String("message_id", messageID),
		slog.String("email", mask.Email(notice.Email)),
	)
	return nil
}

// Close releases the underlying broker connection.
func (sink *QueueSink) Close() error {
	return sink.backend.Close()
}
