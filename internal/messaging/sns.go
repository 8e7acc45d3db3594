package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

// OutcomePublisher defines the interface for publishing lifecycle outcomes
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome *models.Outcome) error
}

// SNSAPI defines the SNS operation used by SNSClient
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient implements OutcomePublisher using AWS SNS
type SNSClient struct {
	client   SNSAPI
	topicArn string
	logger   *slog.Logger
}

// NewSNSClient creates a new SNS client instance
func NewSNSClient(client SNSAPI, topicArn string, logger *slog.Logger) *SNSClient {
	if logger == nil {
		logger = slog.Default()
	}

	return &SNSClient{
		client:   client,
		topicArn: topicArn,
		logger:   logger,
	}
}

// PublishOutcome publishes an outcome to the SNS topic
func (s *SNSClient) PublishOutcome(ctx context.Context, outcome *models.Outcome) error {
	messageBytes, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome to JSON: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.topicArn),
		Subject:  aws.String(fmt.Sprintf("%s %s %s", outcome.Action, outcome.RequestType, outcome.Status)),
		Message:  aws.String(string(messageBytes)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"stage": {
				DataType:    aws.String("String"),
				StringValue: aws.String(outcome.Stage.String()),
			},
			"action": {
				DataType:    aws.String("String"),
				StringValue: aws.String(outcome.Action),
			},
			"status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(outcome.Status.String()),
			},
		},
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to publish outcome to SNS: %w", err)
	}

	s.logger.InfoContext(ctx, "outcome published to SNS",
		slog.String("request_id", outcome.RequestID),
		slog.String("sns_message_id", aws.ToString(result.MessageId)),
		slog.String("topic_arn", s.topicArn),
	)

	return nil
}

// NoopPublisher discards outcomes; used when no topic is configured
type NoopPublisher struct{}

// PublishOutcome does nothing
func (NoopPublisher) PublishOutcome(context.Context, *models.Outcome) error {
	return nil
}
