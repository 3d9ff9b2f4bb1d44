// Package cmd holds shared wiring helpers for the stagerun binary.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/stagerun/stagerun/pkg/channels/gochannel"
	"github.com/stagerun/stagerun/pkg/channels/kafka"
	"github.com/stagerun/stagerun/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider. The
// default gochannel provider keeps lifecycle events in-process; kafka
// publishes them to an external broker.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "stagerun")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
