// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
)

// PubSubClient publishes to Google Cloud Pub/Sub topics.
type PubSubClient struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client for projectID using ambient credentials.
func NewPubSubClient(ctx context.Context, projectID string) (*PubSubClient, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("mq: pubsub project id is required")
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("mq: pubsub client failed: %w", err)
	}

	return &PubSubClient{
		client: client,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends a message to the named topic and waits for the server ack.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := requireChannel(channel); err != nil {
		return "", err
	}

	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return "", err
	}

	result := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("mq: pubsub publish failed: %w", err)
	}
	return id, nil
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubClient) ensureTopic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("mq: pubsub topic lookup failed: %w", err)
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, fmt.Errorf("mq: pubsub topic create failed: %w", err)
		}
	}

	p.topics[name] = topic
	return topic, nil
}
