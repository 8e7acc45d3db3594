package provision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrzesz33/serverless_kafka/pkg/config"
)

const testClusterArn = "arn:aws:kafka:eu-central-1:123456789012:cluster/serverless-kafka/0b6d3c2e-1111-2222-3333-444455556666-s1"

type mockBootstrapClient struct {
	getFunc func(ctx context.Context, params *kafka.GetBootstrapBrokersInput, optFns ...func(*kafka.Options)) (*kafka.GetBootstrapBrokersOutput, error)
}

func (m *mockBootstrapClient) GetBootstrapBrokers(ctx context.Context, params *kafka.GetBootstrapBrokersInput, optFns ...func(*kafka.Options)) (*kafka.GetBootstrapBrokersOutput, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, params, optFns...)
	}
	return &kafka.GetBootstrapBrokersOutput{
		BootstrapBrokerStringSaslIam: aws.String("boot-abc.c1.kafka-serverless.eu-central-1.amazonaws.com:9098"),
	}, nil
}

type fakeAdmin struct {
	topics          map[string]sarama.TopicDetail
	listErr         error
	createErr       error
	created         []string
	grownTo         map[string]int32
	closed          bool
	lastCreateInput *sarama.TopicDetail
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{topics: map[string]sarama.TopicDetail{}, grownTo: map[string]int32{}}
}

func (f *fakeAdmin) ListTopics() (map[string]sarama.TopicDetail, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.topics, nil
}

func (f *fakeAdmin) CreateTopic(topic string, detail *sarama.TopicDetail, validateOnly bool) error {
	f.lastCreateInput = detail
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, topic)
	f.topics[topic] = *detail
	return nil
}

func (f *fakeAdmin) CreatePartitions(topic string, count int32, assignment [][]int32, validateOnly bool) error {
	f.grownTo[topic] = count
	return nil
}

func (f *fakeAdmin) Close() error {
	f.closed = true
	return nil
}

func newTestTopicClient(bootstrap BootstrapAPI, admin *fakeAdmin, brokers *[]string) *TopicClient {
	return NewTopicClient(TopicClientConfig{
		Bootstrap:  bootstrap,
		ClusterArn: testClusterArn,
		AuthMode:   config.KafkaAuthIAM,
		NewAdmin: func(ctx context.Context, b []string) (TopicAdmin, error) {
			if brokers != nil {
				*brokers = b
			}
			return admin, nil
		},
	})
}

func TestFetchBootstrapEndpoint(t *testing.T) {
	tests := []struct {
		name string
		mode config.KafkaAuthMode
		out  *kafka.GetBootstrapBrokersOutput
		want string
	}{
		{
			name: "iam preferred",
			mode: config.KafkaAuthIAM,
			out: &kafka.GetBootstrapBrokersOutput{
				BootstrapBrokerStringSaslIam: aws.String("iam:9098"),
				BootstrapBrokerStringTls:     aws.String("tls:9094"),
			},
			want: "iam:9098",
		},
		{
			name: "scram mode uses scram string",
			mode: config.KafkaAuthSCRAM,
			out: &kafka.GetBootstrapBrokersOutput{
				BootstrapBrokerStringSaslIam:   aws.String("iam:9098"),
				BootstrapBrokerStringSaslScram: aws.String("scram:9096"),
			},
			want: "scram:9096",
		},
		{
			name: "falls back to tls",
			mode: config.KafkaAuthIAM,
			out: &kafka.GetBootstrapBrokersOutput{
				BootstrapBrokerStringTls: aws.String("tls:9094"),
				BootstrapBrokerString:    aws.String("plain:9092"),
			},
			want: "tls:9094",
		},
		{
			name: "falls back to plaintext",
			mode: config.KafkaAuthTLS,
			out:  &kafka.GetBootstrapBrokersOutput{BootstrapBrokerString: aws.String("plain:9092")},
			want: "plain:9092",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotArn string
			client := NewTopicClient(TopicClientConfig{
				Bootstrap: &mockBootstrapClient{
					getFunc: func(ctx context.Context, params *kafka.GetBootstrapBrokersInput, optFns ...func(*kafka.Options)) (*kafka.GetBootstrapBrokersOutput, error) {
						gotArn = aws.ToString(params.ClusterArn)
						return tt.out, nil
					},
				},
				ClusterArn: testClusterArn,
				AuthMode:   tt.mode,
			})

			got, err := client.FetchBootstrapEndpoint(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, testClusterArn, gotArn)
		})
	}
}

func TestFetchBootstrapEndpoint_Errors(t *testing.T) {
	empty := NewTopicClient(TopicClientConfig{
		Bootstrap: &mockBootstrapClient{
			getFunc: func(ctx context.Context, params *kafka.GetBootstrapBrokersInput, optFns ...func(*kafka.Options)) (*kafka.GetBootstrapBrokersOutput, error) {
				return &kafka.GetBootstrapBrokersOutput{}, nil
			},
		},
	})
	_, err := empty.FetchBootstrapEndpoint(context.Background())
	assert.ErrorIs(t, err, ErrNoBootstrapBrokers)

	denied := NewTopicClient(TopicClientConfig{
		Bootstrap: &mockBootstrapClient{
			getFunc: func(ctx context.Context, params *kafka.GetBootstrapBrokersInput, optFns ...func(*kafka.Options)) (*kafka.GetBootstrapBrokersOutput, error) {
				return nil, errors.New("AccessDeniedException")
			},
		},
	})
	_, err = denied.FetchBootstrapEndpoint(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDeniedException")
}

func TestEnsureTopicExists_Creates(t *testing.T) {
	admin := newFakeAdmin()
	var brokers []string
	client := newTestTopicClient(&mockBootstrapClient{}, admin, &brokers)

	err := client.EnsureTopicExists(context.Background(), "b-1:9098,b-2:9098", TopicConfig{Name: "orders", NumPartitions: 3, ReplicationFactor: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"b-1:9098", "b-2:9098"}, brokers)
	assert.Equal(t, []string{"orders"}, admin.created)
	require.NotNil(t, admin.lastCreateInput)
	assert.Equal(t, int32(3), admin.lastCreateInput.NumPartitions)
	assert.Equal(t, int16(2), admin.lastCreateInput.ReplicationFactor)
	assert.True(t, admin.closed)
}

func TestEnsureTopicExists_ExistingTopic(t *testing.T) {
	tests := []struct {
		name       string
		current    int32
		desired    int
		wantGrowTo int32
	}{
		{"same size", 3, 3, 0},
		{"grows", 3, 6, 6},
		{"never shrinks", 6, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin := newFakeAdmin()
			admin.topics["orders"] = sarama.TopicDetail{NumPartitions: tt.current, ReplicationFactor: 2}
			client := newTestTopicClient(&mockBootstrapClient{}, admin, nil)

			err := client.EnsureTopicExists(context.Background(), "b-1:9098", TopicConfig{Name: "orders", NumPartitions: tt.desired, ReplicationFactor: 2})
			require.NoError(t, err)
			assert.Empty(t, admin.created)
			assert.Equal(t, tt.wantGrowTo, admin.grownTo["orders"])
		})
	}
}

func TestEnsureTopicExists_AlreadyExistsRaceTolerated(t *testing.T) {
	admin := newFakeAdmin()
	admin.createErr = &sarama.TopicError{Err: sarama.ErrTopicAlreadyExists}
	client := newTestTopicClient(&mockBootstrapClient{}, admin, nil)

	err := client.EnsureTopicExists(context.Background(), "b-1:9098", TopicConfig{Name: "orders", NumPartitions: 1, ReplicationFactor: 2})
	assert.NoError(t, err)
}

func TestEnsureTopicExists_CreateFailure(t *testing.T) {
	admin := newFakeAdmin()
	admin.createErr = &sarama.TopicError{Err: sarama.ErrInvalidReplicationFactor}
	client := newTestTopicClient(&mockBootstrapClient{}, admin, nil)

	err := client.EnsureTopicExists(context.Background(), "b-1:9098", TopicConfig{Name: "orders", NumPartitions: 1, ReplicationFactor: 9})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.True(t, admin.closed)
}

func TestEnsureTopicExists_ConnectFailure(t *testing.T) {
	client := NewTopicClient(TopicClientConfig{
		Bootstrap: &mockBootstrapClient{},
		NewAdmin: func(ctx context.Context, brokers []string) (TopicAdmin, error) {
			return nil, sarama.ErrOutOfBrokers
		},
	})

	err := client.EnsureTopicExists(context.Background(), "b-1:9098", TopicConfig{Name: "orders", NumPartitions: 1, ReplicationFactor: 2})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestBoundedConfig(t *testing.T) {
	base := sarama.NewConfig()
	base.Net.DialTimeout = 10 * time.Second
	base.Admin.Timeout = 30 * time.Second
	base.Metadata.Retry.Max = 3

	unbounded, err := boundedConfig(context.Background(), base)
	require.NoError(t, err)
	assert.Same(t, base, unbounded)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg, err := boundedConfig(ctx, base)
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Net.DialTimeout, 500*time.Millisecond)
	assert.LessOrEqual(t, cfg.Net.ReadTimeout, 500*time.Millisecond)
	assert.LessOrEqual(t, cfg.Admin.Timeout, 2*time.Second)
	assert.Equal(t, 10*time.Second, base.Net.DialTimeout, "base config is not modified")

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()

	_, err = boundedConfig(expired, base)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"out of brokers", sarama.ErrOutOfBrokers, true},
		{"leader not available", sarama.ErrLeaderNotAvailable, true},
		{"topic error timeout", &sarama.TopicError{Err: sarama.ErrRequestTimedOut}, true},
		{"authorization", sarama.ErrTopicAuthorizationFailed, false},
		{"sasl", sarama.ErrSASLAuthenticationFailed, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
