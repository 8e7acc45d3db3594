package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

type recordingPublisher struct {
	calls int
	err   error
}

func (r *recordingPublisher) PublishOutcome(context.Context, *models.Outcome) error {
	r.calls++
	return r.err
}

func TestFanoutPublisher_DeliversToAll(t *testing.T) {
	first := &recordingPublisher{}
	second := &recordingPublisher{}

	fanout := NewFanoutPublisher(nil, first, nil, second)
	require.Equal(t, 2, fanout.Len())

	err := fanout.PublishOutcome(context.Background(), &models.Outcome{Action: "topic"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestFanoutPublisher_FailureDoesNotStopOthers(t *testing.T) {
	boom := errors.New("sns unavailable")
	failing := &recordingPublisher{err: boom}
	healthy := &recordingPublisher{}

	fanout := NewFanoutPublisher(nil, failing, healthy)

	err := fanout.PublishOutcome(context.Background(), &models.Outcome{Action: "eni-cleanup"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, healthy.calls)
}

func TestFanoutPublisher_Empty(t *testing.T) {
	fanout := NewFanoutPublisher(nil)
	assert.NoError(t, fanout.PublishOutcome(context.Background(), &models.Outcome{}))
}
