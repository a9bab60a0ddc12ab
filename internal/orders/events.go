package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/packfinderz-storefront/pkg/pubsub"
)

const eventOrderPlaced = "order.placed"

// EventPublisher announces placed orders to downstream consumers.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event OrderPlaced) error
}

type topicPublisher interface {
	Publish(ctx context.Context, msg pubsub.Message) (string, error)
}

// PubSubPublisher sends OrderPlaced events to a Pub/Sub topic.
type PubSubPublisher struct {
	topic topicPublisher
}

func NewPubSubPublisher(topic topicPublisher) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub topic required")
	}
	return &PubSubPublisher{topic: topic}, nil
}

func (p *PubSubPublisher) PublishOrderPlaced(ctx context.Context, event OrderPlaced) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding order event: %w", err)
	}
	_, err = p.topic.Publish(ctx, pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": eventOrderPlaced,
			"order_id":   event.OrderID,
		},
		OrderingKey: event.BuyerIdentity,
	})
	return err
}

// NopPublisher drops events when no topic is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, OrderPlaced) error { return nil }
