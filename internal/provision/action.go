package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/cfn"

	"github.com/jrzesz33/serverless_kafka/internal/models"
	"github.com/jrzesz33/serverless_kafka/internal/reconcile"
)

// ActionName identifies the action in logs and outcomes
const ActionName = "topic"

// ResourceType is the custom resource type served by Action
const ResourceType = "Custom::KafkaTopic"

// attemptState is what one provisioning attempt observed
type attemptState struct {
	endpoint string
	err      error
}

// Action ensures the topic on Create and Update and returns the bootstrap endpoint.
// Delete leaves the topic in place.
type Action struct {
	client     TopicAPI
	engine     *reconcile.Engine
	clusterArn string
	defaults   TopicConfig
	logger     *slog.Logger
}

// ActionConfig holds configuration for the provisioning Action
type ActionConfig struct {
	Client     TopicAPI
	Engine     *reconcile.Engine
	ClusterArn string
	Defaults   TopicConfig
	Logger     *slog.Logger
}

// NewAction creates a provisioning Action
func NewAction(config ActionConfig) *Action {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Engine == nil {
		config.Engine = reconcile.NewEngine(reconcile.DefaultMaxAttempts, config.Logger)
	}

	return &Action{
		client:     config.Client,
		engine:     config.Engine,
		clusterArn: config.ClusterArn,
		defaults:   config.Defaults,
		logger:     config.Logger,
	}
}

// Name returns the action name used in logs
func (a *Action) Name() string {
	return ActionName
}

// Handles reports whether the action does work for the request type
func (a *Action) Handles(requestType cfn.RequestType) bool {
	return requestType == cfn.RequestCreate || requestType == cfn.RequestUpdate
}

// Run fetches the bootstrap endpoint and ensures the topic, retrying transient broker errors
func (a *Action) Run(ctx context.Context, event *models.LifecycleEvent) (map[string]interface{}, error) {
	topic, err := DecodeTopicConfig(event.ResourceProperties, a.defaults)
	if err != nil {
		return nil, err
	}

	logger := a.logger.With(slog.String("topic", topic.Name))

	if event.RequestType == cfn.RequestUpdate {
		if old, err := DecodeTopicConfig(event.OldResourceProperties, a.defaults); err == nil && old.Name != topic.Name {
			logger.WarnContext(ctx, "topic renamed; the previous topic is left in place",
				slog.String("previous_topic", old.Name),
			)
		}
	}

	outcome, err := reconcile.Reconcile(ctx, a.engine,
		func(ctx context.Context, attempt int) (attemptState, error) {
			endpoint, err := a.client.FetchBootstrapEndpoint(ctx)
			if err != nil {
				return attemptState{}, err
			}

			if err := a.client.EnsureTopicExists(ctx, endpoint, topic); err != nil {
				if IsTransient(err) {
					logger.WarnContext(ctx, "transient kafka error, will retry",
						slog.Int("attempt", attempt),
						slog.String("error", err.Error()),
					)
					return attemptState{endpoint: endpoint, err: err}, nil
				}
				return attemptState{}, err
			}

			return attemptState{endpoint: endpoint}, nil
		},
		func(s attemptState) bool { return s.err == nil && s.endpoint != "" },
	)
	if err != nil {
		return nil, err
	}

	if outcome.Status != reconcile.StatusGoalReached {
		return nil, fmt.Errorf("topic %s not provisioned after %d attempts (%s): %w",
			topic.Name, len(outcome.Attempts), outcome.StopReason, outcome.Final.err)
	}

	data := map[string]interface{}{
		"BootstrapServers": outcome.Final.endpoint,
		"TopicName":        topic.Name,
		"Message":          fmt.Sprintf("Topic %s is ready.", topic.Name),
	}

	if topicArn, err := TopicARN(a.clusterArn, topic.Name); err == nil {
		data["TopicArn"] = topicArn
	} else {
		logger.WarnContext(ctx, "could not derive topic ARN", slog.String("error", err.Error()))
	}

	logger.InfoContext(ctx, "topic provisioned",
		slog.String("bootstrap_servers", outcome.Final.endpoint),
		slog.Int("attempts", len(outcome.Attempts)),
	)

	return data, nil
}
