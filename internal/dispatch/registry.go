// Package dispatch routes CloudFormation custom resource events to actions and guarantees
// exactly one completion signal per event.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-lambda-go/cfn"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

// ErrNoAction is returned when no action is registered for a resource type and there is no default
var ErrNoAction = errors.New("no action registered")

// Action is one concrete custom resource implementation
type Action interface {
	// Name identifies the action in logs and notifications
	Name() string

	// Handles reports whether the action does work for the lifecycle phase
	Handles(requestType cfn.RequestType) bool

	// Run reconciles the resource and returns the Data attributes of a successful result
	Run(ctx context.Context, event *models.LifecycleEvent) (map[string]interface{}, error)
}

// Registry manages actions keyed by custom resource type
type Registry struct {
	actions  map[string]Action
	fallback Action
	logger   *slog.Logger
}

// NewRegistry creates a new action registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		actions: make(map[string]Action),
		logger:  logger,
	}
}

// Register adds an action for a resource type
func (r *Registry) Register(resourceType string, action Action) error {
	if _, exists := r.actions[resourceType]; exists {
		return fmt.Errorf("action for resource type %s already registered", resourceType)
	}

	r.actions[resourceType] = action
	r.logger.Info("registered action",
		slog.String("resource_type", resourceType),
		slog.String("action", action.Name()),
	)

	return nil
}

// SetDefault sets the action used for resource types without a registration.
// A Lambda function usually backs a single resource, and the type name is chosen by the template author.
func (r *Registry) SetDefault(action Action) {
	r.fallback = action
}

// Resolve returns the action for the resource type
func (r *Registry) Resolve(resourceType string) (Action, error) {
	if action, exists := r.actions[resourceType]; exists {
		return action, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w for resource type: %s", ErrNoAction, resourceType)
}

// ResourceTypes returns all registered resource types
func (r *Registry) ResourceTypes() []string {
	types := make([]string, 0, len(r.actions))
	for resourceType := range r.actions {
		types = append(types, resourceType)
	}
	sort.Strings(types)
	return types
}
