package kafka

import (
	"time"

	"go.uber.org/zap"
)

type MessageWriter = messageWriter

func NewPublisherWithWriter(w MessageWriter, topic string, timeout time.Duration, logger *zap.Logger) *Publisher {
	return newPublisher(w, topic, timeout, logger)
}
