package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

const (
	// StackIndexName is the GSI keyed by stack_id and sorted by created_date
	StackIndexName = "stack_id-created_date-index"

	// DefaultRetention is how long an outcome stays in the table before TTL expiry
	DefaultRetention = 90 * 24 * time.Hour
)

// DynamoDBAPI defines the DynamoDB operations used by the outcome repository
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// OutcomeRepository defines the interface for outcome persistence operations
type OutcomeRepository interface {
	SaveOutcome(ctx context.Context, outcome *models.Outcome) error
	GetOutcome(ctx context.Context, requestID string) (*models.Outcome, error)
	ListOutcomesByStack(ctx context.Context, stackID string, limit int) ([]*models.Outcome, error)
}

// DynamoDBOutcomeRepository records every signaled outcome keyed by request_id
type DynamoDBOutcomeRepository struct {
	client    DynamoDBAPI
	tableName string
	retention time.Duration
	logger    *slog.Logger
}

// NewDynamoDBOutcomeRepository creates a new DynamoDB outcome repository
func NewDynamoDBOutcomeRepository(client DynamoDBAPI, tableName string, logger *slog.Logger) *DynamoDBOutcomeRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &DynamoDBOutcomeRepository{
		client:    client,
		tableName: tableName,
		retention: DefaultRetention,
		logger:    logger,
	}
}

// SaveOutcome writes the outcome with an expires_at TTL attribute.
// A retried delivery of the same request overwrites the earlier item.
func (r *DynamoDBOutcomeRepository) SaveOutcome(ctx context.Context, outcome *models.Outcome) error {
	item, err := attributevalue.MarshalMap(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	created := outcome.CreatedDate
	if created.IsZero() {
		created = time.Now().UTC()
	}
	item["expires_at"] = &types.AttributeValueMemberN{
		Value: strconv.FormatInt(created.Add(r.retention).Unix(), 10),
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save outcome to DynamoDB: %w", err)
	}

	r.logger.DebugContext(ctx, "outcome recorded",
		slog.String("request_id", outcome.RequestID),
		slog.String("table", r.tableName),
	)

	return nil
}

// PublishOutcome lets the repository serve as an outcome publisher
func (r *DynamoDBOutcomeRepository) PublishOutcome(ctx context.Context, outcome *models.Outcome) error {
	return r.SaveOutcome(ctx, outcome)
}

// GetOutcome retrieves the outcome of one request
func (r *DynamoDBOutcomeRepository) GetOutcome(ctx context.Context, requestID string) (*models.Outcome, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"request_id": &types.AttributeValueMemberS{Value: requestID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("outcome not found: %s", requestID)
	}

	var outcome models.Outcome
	if err := attributevalue.UnmarshalMap(result.Item, &outcome); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}

	return &outcome, nil
}

// ListOutcomesByStack lists the newest outcomes recorded for a stack
func (r *DynamoDBOutcomeRepository) ListOutcomesByStack(ctx context.Context, stackID string, limit int) ([]*models.Outcome, error) {
	if limit <= 0 {
		limit = 25
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(StackIndexName),
		KeyConditionExpression: aws.String("stack_id = :stack_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":stack_id": &types.AttributeValueMemberS{Value: stackID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes by stack: %w", err)
	}

	outcomes := make([]*models.Outcome, 0, len(result.Items))
	for _, item := range result.Items {
		var outcome models.Outcome
		if err := attributevalue.UnmarshalMap(item, &outcome); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcome: %w", err)
		}
		outcomes = append(outcomes, &outcome)
	}

	return outcomes, nil
}
