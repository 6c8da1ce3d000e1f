// Package eventsutils builds event publishers from configuration.
package eventsutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/events"
	"github.com/localcompute/g4l/pkg/events/kafka"
	"github.com/localcompute/g4l/pkg/events/nop"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *zap.Logger
}

// NewPublisher builds the publisher named by o.ProviderType. An empty type
// disables publishing.
func NewPublisher(o *NewPublisherOpts) (events.Publisher, error) {
	switch o.ProviderType {
	case "", "nop", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{Brokers: o.Brokers, Topic: o.Topic}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", o.ProviderType)
	}
}
