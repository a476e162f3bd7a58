package ports

import (
	"context"

	"github.com/layer-3/walletlink/core"
)

// EventPublisher publishes pairing outcomes to other services
type EventPublisher interface {
	PublishOutcome(ctx context.Context, event *core.OutcomeEvent) error
}
