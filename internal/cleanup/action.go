package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"
	"golang.org/x/sync/errgroup"

	"github.com/jrzesz33/serverless_kafka/internal/models"
	"github.com/jrzesz33/serverless_kafka/internal/reconcile"
)

// ActionName identifies the action in logs and outcomes
const ActionName = "eni-cleanup"

// ResourceType is the custom resource type served by Action
const ResourceType = "Custom::ENICleanup"

// listing is what one attempt observed. complete is false when the deadline cut the listing short.
type listing struct {
	ids      []string
	complete bool
}

// Action deletes detached interfaces on stack Delete until none remain or attempts run out
type Action struct {
	client          InterfaceAPI
	engine          *reconcile.Engine
	defaultSelector string
	concurrency     int
	logger          *slog.Logger
}

// ActionConfig holds configuration for the cleanup Action
type ActionConfig struct {
	Client          InterfaceAPI
	Engine          *reconcile.Engine
	DefaultSelector string
	Concurrency     int
	Logger          *slog.Logger
}

// NewAction creates a cleanup Action
func NewAction(config ActionConfig) *Action {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Engine == nil {
		config.Engine = reconcile.NewEngine(reconcile.DefaultMaxAttempts, config.Logger)
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	return &Action{
		client:          config.Client,
		engine:          config.Engine,
		defaultSelector: config.DefaultSelector,
		concurrency:     config.Concurrency,
		logger:          config.Logger,
	}
}

// Name returns the action name used in logs
func (a *Action) Name() string {
	return ActionName
}

// Handles reports whether the action does work for the request type
func (a *Action) Handles(requestType cfn.RequestType) bool {
	return requestType == cfn.RequestDelete
}

// Run reconciles until the security group has no available interfaces.
// Running out of attempts still succeeds; the leftover IDs are reported in Data.Residual.
func (a *Action) Run(ctx context.Context, event *models.LifecycleEvent) (map[string]interface{}, error) {
	props, err := DecodeProperties(event.ResourceProperties, a.defaultSelector)
	if err != nil {
		return nil, err
	}

	logger := a.logger.With(slog.String("selector", props.Selector))

	var lastSeen []string
	outcome, err := reconcile.Reconcile(ctx, a.engine,
		func(ctx context.Context, attempt int) (listing, error) {
			ids, err := a.client.ListMatchingInterfaces(ctx, props.Selector)
			if err != nil {
				if ctx.Err() != nil {
					// Out of time: report what the previous listing saw instead of failing the Delete
					logger.WarnContext(ctx, "listing interrupted by deadline",
						slog.Int("attempt", attempt),
						slog.String("error", err.Error()),
					)
					return listing{ids: lastSeen}, nil
				}
				return listing{}, err
			}
			lastSeen = ids
			if len(ids) > 0 {
				logger.InfoContext(ctx, "deleting network interfaces",
					slog.Int("attempt", attempt),
					slog.Int("count", len(ids)),
				)
				a.deleteAll(ctx, logger, ids)
			}
			return listing{ids: ids, complete: true}, nil
		},
		func(l listing) bool { return l.complete && len(l.ids) == 0 },
	)
	if err != nil {
		return nil, err
	}

	if outcome.Status == reconcile.StatusGoalReached {
		return map[string]interface{}{
			"Message": "Successfully deleted network interfaces.",
		}, nil
	}

	logger.WarnContext(ctx, "network interfaces remain after cleanup",
		slog.String("stop_reason", string(outcome.StopReason)),
		slog.Int("attempts", len(outcome.Attempts)),
		slog.Any("residual", outcome.Final.ids),
	)

	return map[string]interface{}{
		"Message": fmt.Sprintf("Network interfaces remain in %s after %d attempts (%s); delete them manually.",
			props.Selector, len(outcome.Attempts), outcome.StopReason),
		"Residual": strings.Join(outcome.Final.ids, ","),
	}, nil
}

// deleteAll deletes every interface, logging individual failures.
// The next listing decides whether the goal was reached.
func (a *Action) deleteAll(ctx context.Context, logger *slog.Logger, ids []string) {
	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := a.client.DeleteInterface(ctx, id); err != nil {
				logger.WarnContext(ctx, "failed to delete network interface",
					slog.String("eni_id", id),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}

	_ = g.Wait()
}
