package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes fill reports to the feed. Used by external fill
// producers and the fill simulator.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishFill publishes one fill report for an order.
func (p *Publisher) PublishFill(ctx context.Context, orderNumber int64, price, quantity float64) error {
	data, err := json.Marshal(fillReportJSON{
		OrderNumber:  orderNumber,
		FillPrice:    price,
		FillQuantity: quantity,
	})
	if err != nil {
		return fmt.Errorf("marshal fill report: %w", err)
	}

	subject := fmt.Sprintf("%s.%d", SubjectPrefix, orderNumber)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish fill report to %s: %w", subject, err)
	}
	return nil
}
