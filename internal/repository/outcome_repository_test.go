package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

type mockDynamoDB struct {
	PutItemFunc func(ctx context.Context, params *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	GetItemFunc func(ctx context.Context, params *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	QueryFunc   func(ctx context.Context, params *dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
}

func (m *mockDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return m.PutItemFunc(ctx, params)
}

func (m *mockDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return m.GetItemFunc(ctx, params)
}

func (m *mockDynamoDB) Query(ctx context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return m.QueryFunc(ctx, params)
}

func testOutcome() *models.Outcome {
	return &models.Outcome{
		Stage:              models.StageDev,
		Action:             "topic",
		RequestType:        cfn.RequestCreate,
		StackID:            "arn:aws:cloudformation:us-east-1:123456789012:stack/msk/abc",
		LogicalResourceID:  "KafkaTopic",
		RequestID:          "req-1",
		PhysicalResourceID: "stream",
		Status:             models.StatusSuccess,
		Data:               map[string]interface{}{"BootstrapServers": "b-1:9098"},
		CreatedDate:        time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

func TestDynamoDBOutcomeRepository_Interfaces(t *testing.T) {
	var _ OutcomeRepository = (*DynamoDBOutcomeRepository)(nil)
}

func TestSaveOutcome(t *testing.T) {
	var captured *dynamodb.PutItemInput
	client := &mockDynamoDB{
		PutItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			captured = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	repo := NewDynamoDBOutcomeRepository(client, "outcomes", nil)

	outcome := testOutcome()
	require.NoError(t, repo.PublishOutcome(context.Background(), outcome))
	require.NotNil(t, captured)

	assert.Equal(t, "outcomes", aws.ToString(captured.TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "req-1"}, captured.Item["request_id"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: outcome.StackID}, captured.Item["stack_id"])

	expires, ok := captured.Item["expires_at"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	want := outcome.CreatedDate.Add(DefaultRetention).Unix()
	assert.Equal(t, strconv.FormatInt(want, 10), expires.Value)
}

func TestSaveOutcome_Error(t *testing.T) {
	client := &mockDynamoDB{
		PutItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			return nil, errors.New("ProvisionedThroughputExceededException")
		},
	}
	repo := NewDynamoDBOutcomeRepository(client, "outcomes", nil)

	err := repo.SaveOutcome(context.Background(), testOutcome())
	assert.ErrorContains(t, err, "failed to save outcome")
}

func TestGetOutcome(t *testing.T) {
	item, err := attributevalue.MarshalMap(testOutcome())
	require.NoError(t, err)

	client := &mockDynamoDB{
		GetItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			key := params.Key["request_id"].(*types.AttributeValueMemberS)
			if key.Value != "req-1" {
				return &dynamodb.GetItemOutput{}, nil
			}
			return &dynamodb.GetItemOutput{Item: item}, nil
		},
	}
	repo := NewDynamoDBOutcomeRepository(client, "outcomes", nil)

	got, err := repo.GetOutcome(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "topic", got.Action)
	assert.Equal(t, models.StatusSuccess, got.Status)
	assert.Equal(t, "b-1:9098", got.Data["BootstrapServers"])

	_, err = repo.GetOutcome(context.Background(), "missing")
	assert.ErrorContains(t, err, "outcome not found")
}

func TestListOutcomesByStack(t *testing.T) {
	item, err := attributevalue.MarshalMap(testOutcome())
	require.NoError(t, err)

	var captured *dynamodb.QueryInput
	client := &mockDynamoDB{
		QueryFunc: func(ctx context.Context, params *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			captured = params
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item, item}}, nil
		},
	}
	repo := NewDynamoDBOutcomeRepository(client, "outcomes", nil)

	outcomes, err := repo.ListOutcomesByStack(context.Background(), testOutcome().StackID, 0)
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)

	assert.Equal(t, StackIndexName, aws.ToString(captured.IndexName))
	assert.Equal(t, int32(25), aws.ToInt32(captured.Limit))
	assert.False(t, aws.ToBool(captured.ScanIndexForward))
}
