package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Message is one event destined for the orders topic. Messages sharing an
// OrderingKey are delivered in publish order when ordering is enabled.
type Message struct {
	Data        []byte
	Attributes  map[string]string
	OrderingKey string
}

// Client publishes storefront events to a single topic.
type Client struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	ordered   bool
	timeout   time.Duration
}

// NewClient connects to Pub/Sub, checks the orders topic exists and prepares a
// publisher tuned for low-volume checkout events.
func NewClient(ctx context.Context, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	topic := topicResourceName(cfg.ProjectID, cfg.OrdersTopic)
	if topic == "" {
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:  psClient,
		topic:   topic,
		ordered: cfg.OrderByBuyer,
		timeout: cfg.PublishTimeout,
	}
	if err := c.topicExists(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	publisher := psClient.Publisher(topic)
	publisher.EnableMessageOrdering = cfg.OrderByBuyer
	// Orders trickle in; flush quickly instead of waiting for a batch.
	publisher.PublishSettings.DelayThreshold = 10 * time.Millisecond
	publisher.PublishSettings.CountThreshold = 10
	c.publisher = publisher

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"topic": topic, "ordered": cfg.OrderByBuyer}), "pubsub publisher initialized")
	}
	return c, nil
}

func (c *Client) topicExists(ctx context.Context) error {
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", c.topic)
	default:
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	}
}

// Publish sends msg and waits for the server-assigned id.
func (c *Client) Publish(ctx context.Context, msg Message) (string, error) {
	if c == nil || c.publisher == nil {
		return "", errNotInitialized
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	key := ""
	if c.ordered {
		key = msg.OrderingKey
	}
	id, err := c.publisher.Publish(ctx, &pubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: key,
	}).Get(ctx)
	if err != nil {
		if key != "" {
			// A failed ordered publish pauses the key until resumed.
			c.publisher.ResumePublish(key)
		}
		return "", fmt.Errorf("publishing to %q: %w", c.topic, err)
	}
	return id, nil
}

// Ping is used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.topicExists(ctx)
}

// Close flushes outstanding messages and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}

func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/topics/" + n
}
