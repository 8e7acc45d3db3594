// Package reconcile runs a bounded retry-with-backoff loop around an action
// until a goal state is observed or the attempt budget is spent.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// DefaultMaxAttempts is the attempt budget used when none is configured
const DefaultMaxAttempts = 10

// AttemptResult classifies a single attempt
type AttemptResult string

const (
	// ResultGoalReached means the goal predicate held after the attempt
	ResultGoalReached AttemptResult = "GoalReached"
	// ResultPartialProgress means the attempt completed but the goal was not yet observed
	ResultPartialProgress AttemptResult = "PartialProgress"
	// ResultError means the action returned an unrecoverable error
	ResultError AttemptResult = "Error"
)

// Status is the terminal status of a reconciliation
type Status string

const (
	// StatusGoalReached means the goal predicate held at some attempt
	StatusGoalReached Status = "GoalReached"
	// StatusExhausted means the loop stopped without observing the goal
	StatusExhausted Status = "Exhausted"
)

// StopReason records why the loop stopped
type StopReason string

const (
	StopGoalReached StopReason = "goal_reached"
	StopMaxAttempts StopReason = "max_attempts"
	StopDeadline    StopReason = "deadline"
	StopCancelled   StopReason = "cancelled"
	StopError       StopReason = "error"
)

// Attempt is the record of one pass through the action.
// Backoff is the delay slept after this attempt and is zero for the final one.
type Attempt struct {
	Index   int
	Result  AttemptResult
	Backoff time.Duration
	Err     string
}

// Outcome is the result of a reconciliation. Final holds the state observed by the last attempt.
type Outcome[S any] struct {
	Status     Status
	StopReason StopReason
	Attempts   []Attempt
	Final      S
}

// BackoffFunc returns the delay to wait after the given 0-based attempt
type BackoffFunc func(attempt int) time.Duration

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Engine holds the retry policy. The zero value is not usable; use NewEngine.
type Engine struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Sleep       SleepFunc
	logger      *slog.Logger
}

// NewEngine creates an engine with the default backoff and a context-aware sleep
func NewEngine(maxAttempts int, logger *slog.Logger) *Engine {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		MaxAttempts: maxAttempts,
		Backoff:     DefaultBackoff,
		Sleep:       ContextSleep,
		logger:      logger,
	}
}

// DefaultBackoff returns 2^attempt seconds plus up to one second of jitter
func DefaultBackoff(attempt int) time.Duration {
	seconds := math.Pow(2, float64(attempt)) + rand.Float64()
	return time.Duration(seconds * float64(time.Second))
}

// ContextSleep blocks for d, returning early with the context error if ctx is done first
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reconcile runs action until isGoal holds for its state or the engine's attempt budget is spent.
// An error returned by action ends the loop immediately and is returned alongside the partial outcome.
// Running out of attempts, time or context is not an error: the outcome is Exhausted.
func Reconcile[S any](ctx context.Context, e *Engine, action func(ctx context.Context, attempt int) (S, error), isGoal func(S) bool) (*Outcome[S], error) {
	maxAttempts := e.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	backoff := e.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}
	sleep := e.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	outcome := &Outcome[S]{Status: StatusExhausted}

	for i := 0; i < maxAttempts; i++ {
		state, err := action(ctx, i)
		outcome.Final = state

		if err != nil {
			outcome.StopReason = StopError
			outcome.Attempts = append(outcome.Attempts, Attempt{Index: i, Result: ResultError, Err: err.Error()})
			logger.Error("reconciliation attempt failed",
				slog.Int("attempt", i),
				slog.String("error", err.Error()),
			)
			return outcome, fmt.Errorf("attempt %d: %w", i, err)
		}

		if isGoal(state) {
			outcome.Status = StatusGoalReached
			outcome.StopReason = StopGoalReached
			outcome.Attempts = append(outcome.Attempts, Attempt{Index: i, Result: ResultGoalReached})
			logger.Info("goal state reached", slog.Int("attempt", i))
			return outcome, nil
		}

		if i == maxAttempts-1 {
			outcome.StopReason = StopMaxAttempts
			outcome.Attempts = append(outcome.Attempts, Attempt{Index: i, Result: ResultPartialProgress})
			break
		}

		delay := backoff(i)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			outcome.StopReason = StopDeadline
			outcome.Attempts = append(outcome.Attempts, Attempt{Index: i, Result: ResultPartialProgress})
			logger.Warn("stopping before deadline",
				slog.Int("attempt", i),
				slog.Duration("next_backoff", delay),
				slog.Duration("remaining", time.Until(deadline)),
			)
			return outcome, nil
		}

		outcome.Attempts = append(outcome.Attempts, Attempt{Index: i, Result: ResultPartialProgress, Backoff: delay})
		logger.Info("goal state not reached, backing off",
			slog.Int("attempt", i),
			slog.Duration("backoff", delay),
		)

		if err := sleep(ctx, delay); err != nil {
			outcome.StopReason = StopCancelled
			logger.Warn("backoff interrupted", slog.String("error", err.Error()))
			return outcome, nil
		}
	}

	logger.Warn("attempts exhausted without reaching goal state", slog.Int("attempts", len(outcome.Attempts)))
	return outcome, nil
}
