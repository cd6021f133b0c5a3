// Package pubsub announces finished crawl stages on a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	topic *pubsub.Topic
}

var _ crawler.Publisher = (*Publisher)(nil)

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Open connects to projectID and returns a Publisher for topicID along with a cleanup
// function that flushes pending messages and closes the client.
func Open(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Publisher, func() error, error) {
	if projectID == "" || topicID == "" {
		return nil, nil, errors.New("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	cleanup := func() error {
		topic.Stop()
		return client.Close()
	}
	return New(topic), cleanup, nil
}

// Publish marshals the report to JSON and waits for the server-assigned message id.
func (p *Publisher) Publish(ctx context.Context, report crawler.StageReport) (string, error) {
	if p.topic == nil {
		return "", errors.New("pubsub topic is not configured")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal stage report: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id": report.RunID,
			"stage":  report.Stage,
			"failed": strconv.Itoa(report.Failed),
		},
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish stage report: %w", err)
	}
	return id, nil
}
