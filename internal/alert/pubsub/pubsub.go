// Package pubsub publishes alerts to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/award-watcher/internal/points"
)

// Message is the JSON payload published for each alert.
type Message struct {
	Origin      string    `json:"origin"`
	Date        string    `json:"date"`
	Points      string    `json:"points"`
	PointsValue int64     `json:"points_value"`
	Threshold   int64     `json:"threshold"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Channel implements points.AlertChannel on a Pub/Sub topic.
type Channel struct {
	topic *pubsub.Topic
}

// New wraps an existing topic handle.
func New(topic *pubsub.Topic) (*Channel, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	return &Channel{topic: topic}, nil
}

// Name identifies the channel in logs and metrics.
func (c *Channel) Name() string {
	return "pubsub"
}

// Send publishes the event and waits for the server-assigned message ID.
func (c *Channel) Send(ctx context.Context, event points.AlertEvent) error {
	data, err := json.Marshal(Message{
		Origin:      event.Key.Origin,
		Date:        event.Key.Date,
		Points:      event.Point.RawText,
		PointsValue: event.Point.Value,
		Threshold:   event.Threshold,
		ObservedAt:  event.Point.ObservedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	result := c.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"key": event.Key.String(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// Close flushes pending publishes.
func (c *Channel) Close() {
	c.topic.Stop()
}

var _ points.AlertChannel = (*Channel)(nil)
