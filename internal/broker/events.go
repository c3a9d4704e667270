package broker

import (
	"context"
	"fmt"

	"farmbox-service/internal/models"
)

// EventPublisher publishes domain events for downstream admin tooling
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPaid publishes an OrderPaid event
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishBagConfirmed publishes a BagConfirmed event
func (ep *EventPublisher) PublishBagConfirmed(ctx context.Context, event *models.BagConfirmedEvent) error {
	key := fmt.Sprintf("bag-%d", event.BagID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishBoxSizeChanged publishes a BoxSizeChanged event
func (ep *EventPublisher) PublishBoxSizeChanged(ctx context.Context, event *models.BoxSizeChangedEvent) error {
	key := fmt.Sprintf("bag-%d", event.BagID)
	return ep.producer.PublishEvent(ctx, key, event)
}
