package outbox

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Broker is the live publish path, satisfied by mq.Publisher.
type Broker interface {
	Publish(routingKey string, payload any) error
}

// DurablePublisher publishes events to the broker and parks them in
// outbox_events when the broker is down, so a mutation never loses its
// event. The Dispatcher re-publishes parked events later; they may arrive
// out of order relative to live ones, and consumers dedupe by event_id.
type DurablePublisher struct {
	broker Broker
	store  Store
	logger *zap.Logger
}

func NewDurablePublisher(broker Broker, store Store, logger *zap.Logger) *DurablePublisher {
	return &DurablePublisher{
		broker: broker,
		store:  store,
		logger: logger,
	}
}

func (p *DurablePublisher) Publish(routingKey string, payload any) error {
	err := p.broker.Publish(routingKey, payload)
	if err == nil {
		return nil
	}

	body, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		p.logger.Error("Failed to marshal event for parking",
			zap.String("routing_key", routingKey),
			zap.Error(marshalErr),
		)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := &Event{
		RoutingKey: routingKey,
		Payload:    body,
		Status:     StatusPending,
	}
	if insertErr := p.store.Insert(ctx, event); insertErr != nil {
		p.logger.Error("Failed to park event, event is lost",
			zap.String("routing_key", routingKey),
			zap.Error(insertErr),
		)
		return err
	}

	p.logger.Warn("Broker publish failed, event parked for redelivery",
		zap.String("routing_key", routingKey),
		zap.Int64("event_id", event.ID),
		zap.Error(err),
	)
	return nil
}
