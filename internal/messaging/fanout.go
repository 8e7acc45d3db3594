package messaging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

// FanoutPublisher delivers each outcome to every configured publisher
type FanoutPublisher struct {
	publishers []OutcomePublisher
	logger     *slog.Logger
}

// NewFanoutPublisher creates a publisher that forwards to all non-nil publishers
func NewFanoutPublisher(logger *slog.Logger, publishers ...OutcomePublisher) *FanoutPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	kept := make([]OutcomePublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}

	return &FanoutPublisher{publishers: kept, logger: logger}
}

// Len returns the number of downstream publishers
func (f *FanoutPublisher) Len() int {
	return len(f.publishers)
}

// PublishOutcome tries every publisher and joins their errors
func (f *FanoutPublisher) PublishOutcome(ctx context.Context, outcome *models.Outcome) error {
	var errs []error
	for i, p := range f.publishers {
		if err := p.PublishOutcome(ctx, outcome); err != nil {
			f.logger.WarnContext(ctx, "outcome publisher failed",
				slog.Int("publisher", i),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
