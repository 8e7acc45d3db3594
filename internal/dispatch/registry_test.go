package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry(nil)
	cleanupAction := &fakeAction{}
	topicAction := &fakeAction{}

	require.NoError(t, registry.Register("Custom::ENICleanup", cleanupAction))
	require.NoError(t, registry.Register("Custom::KafkaTopic", topicAction))
	assert.Error(t, registry.Register("Custom::KafkaTopic", topicAction))

	got, err := registry.Resolve("Custom::KafkaTopic")
	require.NoError(t, err)
	assert.Same(t, topicAction, got)

	_, err = registry.Resolve("Custom::Other")
	assert.ErrorIs(t, err, ErrNoAction)

	registry.SetDefault(cleanupAction)
	got, err = registry.Resolve("Custom::Other")
	require.NoError(t, err)
	assert.Same(t, cleanupAction, got)

	assert.Equal(t, []string{"Custom::ENICleanup", "Custom::KafkaTopic"}, registry.ResourceTypes())
}
