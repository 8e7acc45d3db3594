package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

type mockSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (m *mockSNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func testOutcome() *models.Outcome {
	event := models.NewLifecycleEvent(cfn.Event{
		RequestType:       cfn.RequestDelete,
		RequestID:         "req-1",
		LogicalResourceID: "Cleanup",
		StackID:           "stack",
	})
	result := models.Failed("AccessDenied")
	result.PhysicalResourceID = "log-stream"
	return models.NewOutcome(models.StageDev, "eni-cleanup", event, result)
}

func TestSNSClient_PublishOutcome(t *testing.T) {
	mock := &mockSNSClient{}
	client := NewSNSClient(mock, "arn:aws:sns:us-east-1:123456789012:outcomes", nil)

	require.NoError(t, client.PublishOutcome(context.Background(), testOutcome()))
	require.NotNil(t, mock.input)

	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:outcomes", aws.ToString(mock.input.TopicArn))
	assert.Equal(t, "eni-cleanup Delete FAILED", aws.ToString(mock.input.Subject))
	assert.Equal(t, "FAILED", aws.ToString(mock.input.MessageAttributes["status"].StringValue))
	assert.Equal(t, "dev", aws.ToString(mock.input.MessageAttributes["stage"].StringValue))

	var body models.Outcome
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(mock.input.Message)), &body))
	assert.Equal(t, "req-1", body.RequestID)
	assert.Equal(t, "AccessDenied", body.Reason)
	assert.Equal(t, "log-stream", body.PhysicalResourceID)
}

func TestSNSClient_PublishOutcomeError(t *testing.T) {
	client := NewSNSClient(&mockSNSClient{err: errors.New("AuthorizationError")}, "arn", nil)

	err := client.PublishOutcome(context.Background(), testOutcome())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AuthorizationError")
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.PublishOutcome(context.Background(), testOutcome()))
}
