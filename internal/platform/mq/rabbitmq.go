// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes to durable queues over a single AMQP channel.
type RabbitMQClient struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
}

// NewRabbitMQClient dials url and opens a publishing channel.
func NewRabbitMQClient(url string) (*RabbitMQClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("mq: rabbitmq url is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("mq: rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mq: rabbitmq channel failed: %w", err)
	}

	return &RabbitMQClient{
		conn:     conn,
		channel:  ch,
		declared: make(map[string]bool),
	}, nil
}

// Publish sends a persistent message to the named queue.
//
// AMQP channels are not safe for concurrent publishing, so calls are serialized.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := requireChannel(channel); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.declareQueue(channel); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := newMessageID()
	err := r.channel.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", fmt.Errorf("mq: rabbitmq publish failed: %w", err)
	}
	return messageID, nil
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareQueue(name string) error {
	if r.declared[name] {
		return nil
	}
	if _, err := r.channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("mq: rabbitmq queue declare failed: %w", err)
	}
	r.declared[name] = true
	return nil
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
