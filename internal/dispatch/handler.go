package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"github.com/jrzesz33/serverless_kafka/internal/logging"
	"github.com/jrzesz33/serverless_kafka/internal/messaging"
	"github.com/jrzesz33/serverless_kafka/internal/models"
	"github.com/jrzesz33/serverless_kafka/internal/signal"
)

const (
	publishTimeout   = 3 * time.Second
	maxDeadlineGrace = 500 * time.Millisecond
)

// Handler is the Lambda entry point for custom resource events
type Handler struct {
	registry      *Registry
	signaler      signal.Client
	publisher     messaging.OutcomePublisher
	stage         models.Stage
	signalReserve time.Duration
	logStreamName string
	logger        *slog.Logger
}

// HandlerConfig holds configuration for the Handler
type HandlerConfig struct {
	Registry      *Registry
	Signaler      signal.Client
	Publisher     messaging.OutcomePublisher
	Stage         models.Stage
	SignalReserve time.Duration
	// LogStreamName defaults to the Lambda log stream
	LogStreamName string
	Logger        *slog.Logger
}

// NewHandler creates a new dispatch handler
func NewHandler(config HandlerConfig) *Handler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Publisher == nil {
		config.Publisher = messaging.NoopPublisher{}
	}
	if config.LogStreamName == "" {
		config.LogStreamName = lambdacontext.LogStreamName
	}

	return &Handler{
		registry:      config.Registry,
		signaler:      config.Signaler,
		publisher:     config.Publisher,
		stage:         config.Stage,
		signalReserve: config.SignalReserve,
		logStreamName: config.LogStreamName,
		logger:        config.Logger,
	}
}

// HandleEvent processes one lifecycle event and signals its result.
// It always returns nil: the orchestrator learns the outcome from the callback, not from the invocation.
func (h *Handler) HandleEvent(ctx context.Context, raw cfn.Event) error {
	event := models.NewLifecycleEvent(raw)
	logger := logging.ForEvent(h.logger, event)

	logger.InfoContext(ctx, "received lifecycle event",
		slog.String("physical_resource_id", event.PhysicalResourceID),
	)

	if event.ResponseURL == "" {
		logger.ErrorContext(ctx, "event has no ResponseURL, the result cannot be signaled")
		return nil
	}

	result, actionName := h.run(ctx, logger, event)
	result.PhysicalResourceID = h.physicalResourceID(event)
	if result.Status == models.StatusSuccess && result.Reason == "" && h.logStreamName != "" {
		result.Reason = "See the details in CloudWatch Log Stream: " + h.logStreamName
	}

	if result.Status == models.StatusFailed {
		logger.ErrorContext(ctx, "lifecycle event failed", slog.String("reason", result.Reason))
	} else {
		logger.InfoContext(ctx, "lifecycle event succeeded", slog.Any("data", result.Data))
	}

	h.publish(ctx, logger, actionName, event, result)

	// Errors are logged by the signaler; there is nothing left to do with them
	_ = h.signaler.Signal(ctx, event, result)

	return nil
}

// run executes the action for the event and converts every error or panic into a FAILED result
func (h *Handler) run(ctx context.Context, logger *slog.Logger, event *models.LifecycleEvent) (result models.Result, actionName string) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "action panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			result = models.Failed(fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := event.Validate(); err != nil {
		return models.Failed(err.Error()), ""
	}

	action, err := h.registry.Resolve(event.ResourceType)
	if err != nil {
		return models.Failed(err.Error()), ""
	}
	actionName = action.Name()

	if !action.Handles(event.RequestType) {
		logger.InfoContext(ctx, "no work for lifecycle phase", slog.String("action", actionName))
		return models.Succeeded(nil), actionName
	}

	actionCtx, cancel := h.actionContext(ctx)
	defer cancel()

	logger.InfoContext(ctx, "running action", slog.String("action", actionName))

	return h.runWithDeadline(actionCtx, logger, action, event), actionName
}

type actionResult struct {
	data map[string]interface{}
	err  error
}

// runWithDeadline returns FAILED shortly after ctx is done, even if the action is still running
func (h *Handler) runWithDeadline(ctx context.Context, logger *slog.Logger, action Action, event *models.LifecycleEvent) models.Result {
	done := make(chan actionResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "action panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				done <- actionResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()

		data, err := action.Run(ctx, event)
		done <- actionResult{data: data, err: err}
	}()

	select {
	case res := <-done:
		return toResult(res)
	case <-ctx.Done():
	}

	// An action that honours ctx returns right after it is done; give it a moment
	grace := time.NewTimer(h.deadlineGrace())
	defer grace.Stop()

	select {
	case res := <-done:
		return toResult(res)
	case <-grace.C:
		logger.ErrorContext(ctx, "action did not finish before the deadline",
			slog.String("action", action.Name()),
			slog.String("error", ctx.Err().Error()),
		)
		return models.Failed("action did not finish before the deadline: " + ctx.Err().Error())
	}
}

func toResult(res actionResult) models.Result {
	if res.err != nil {
		return models.Failed(res.err.Error())
	}
	return models.Succeeded(res.data)
}

func (h *Handler) deadlineGrace() time.Duration {
	return min(maxDeadlineGrace, h.signalReserve/4)
}

// actionContext ends SignalReserve before the invocation deadline so there is always time to signal
func (h *Handler) actionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline.Add(-h.signalReserve))
}

// physicalResourceID keeps the identifier stable across Update and Delete.
// A new identifier would make CloudFormation treat an Update as a replacement.
func (h *Handler) physicalResourceID(event *models.LifecycleEvent) string {
	if event.PhysicalResourceID != "" {
		return event.PhysicalResourceID
	}
	if h.logStreamName != "" {
		return h.logStreamName
	}
	return "local-" + uuid.NewString()
}

func (h *Handler) publish(ctx context.Context, logger *slog.Logger, actionName string, event *models.LifecycleEvent, result models.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	outcome := models.NewOutcome(h.stage, actionName, event, result)
	if err := h.publisher.PublishOutcome(ctx, outcome); err != nil {
		logger.WarnContext(ctx, "failed to publish outcome", slog.String("error", err.Error()))
	}
}
