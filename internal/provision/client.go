// Package provision ensures a Kafka topic exists on an MSK cluster and reports the cluster's bootstrap endpoint.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kafka"

	"github.com/jrzesz33/serverless_kafka/pkg/config"
)

// ErrNoBootstrapBrokers is returned when the cluster reports no broker string at all
var ErrNoBootstrapBrokers = errors.New("cluster returned no bootstrap brokers")

// BootstrapAPI defines the MSK operation used to discover brokers
type BootstrapAPI interface {
	GetBootstrapBrokers(ctx context.Context, params *kafka.GetBootstrapBrokersInput, optFns ...func(*kafka.Options)) (*kafka.GetBootstrapBrokersOutput, error)
}

// TopicAdmin is the subset of sarama.ClusterAdmin used for topic management
type TopicAdmin interface {
	ListTopics() (map[string]sarama.TopicDetail, error)
	CreateTopic(topic string, detail *sarama.TopicDetail, validateOnly bool) error
	CreatePartitions(topic string, count int32, assignment [][]int32, validateOnly bool) error
	Close() error
}

// AdminFactory connects an admin client to the given brokers
type AdminFactory func(ctx context.Context, brokers []string) (TopicAdmin, error)

// TopicAPI is the capability set the provisioning action reconciles against
type TopicAPI interface {
	FetchBootstrapEndpoint(ctx context.Context) (string, error)
	EnsureTopicExists(ctx context.Context, endpoint string, topic TopicConfig) error
}

// TopicClient manages topics on one MSK cluster
type TopicClient struct {
	bootstrap  BootstrapAPI
	clusterArn string
	authMode   config.KafkaAuthMode
	newAdmin   AdminFactory
	logger     *slog.Logger
}

// TopicClientConfig holds configuration for the TopicClient
type TopicClientConfig struct {
	Bootstrap  BootstrapAPI
	ClusterArn string
	AuthMode   config.KafkaAuthMode
	NewAdmin   AdminFactory
	Logger     *slog.Logger
}

// NewTopicClient creates a TopicClient
func NewTopicClient(cfg TopicClientConfig) *TopicClient {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = config.KafkaAuthIAM
	}

	return &TopicClient{
		bootstrap:  cfg.Bootstrap,
		clusterArn: cfg.ClusterArn,
		authMode:   cfg.AuthMode,
		newAdmin:   cfg.NewAdmin,
		logger:     cfg.Logger,
	}
}

// SaramaAdminFactory returns an AdminFactory backed by sarama.NewClusterAdmin.
// Network and admin timeouts are shortened to fit the context deadline.
func SaramaAdminFactory(saramaConfig *sarama.Config) AdminFactory {
	return func(ctx context.Context, brokers []string) (TopicAdmin, error) {
		cfg, err := boundedConfig(ctx, saramaConfig)
		if err != nil {
			return nil, err
		}
		return sarama.NewClusterAdmin(brokers, cfg)
	}
}

// boundedConfig copies base with every blocking timeout capped so that a full round of
// metadata retries ends before the context deadline. sarama itself takes no context.
func boundedConfig(ctx context.Context, base *sarama.Config) (*sarama.Config, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return base, nil
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, fmt.Errorf("no time left to connect to kafka: %w", context.DeadlineExceeded)
	}

	cfg := *base
	perTry := remaining / time.Duration(cfg.Metadata.Retry.Max+1)

	cfg.Net.DialTimeout = min(cfg.Net.DialTimeout, perTry)
	cfg.Net.ReadTimeout = min(cfg.Net.ReadTimeout, perTry)
	cfg.Net.WriteTimeout = min(cfg.Net.WriteTimeout, perTry)
	cfg.Metadata.Retry.Backoff = min(cfg.Metadata.Retry.Backoff, perTry/4)
	cfg.Admin.Timeout = min(cfg.Admin.Timeout, remaining)

	return &cfg, nil
}

// FetchBootstrapEndpoint returns the broker string matching the auth mode,
// falling back through SASL/IAM, SASL/SCRAM, TLS and plaintext.
func (c *TopicClient) FetchBootstrapEndpoint(ctx context.Context) (string, error) {
	out, err := c.bootstrap.GetBootstrapBrokers(ctx, &kafka.GetBootstrapBrokersInput{
		ClusterArn: aws.String(c.clusterArn),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get bootstrap brokers: %w", err)
	}

	byMode := map[config.KafkaAuthMode]string{
		config.KafkaAuthIAM:       aws.ToString(out.BootstrapBrokerStringSaslIam),
		config.KafkaAuthSCRAM:     aws.ToString(out.BootstrapBrokerStringSaslScram),
		config.KafkaAuthTLS:       aws.ToString(out.BootstrapBrokerStringTls),
		config.KafkaAuthPlaintext: aws.ToString(out.BootstrapBrokerString),
	}

	if brokers := byMode[c.authMode]; brokers != "" {
		return brokers, nil
	}

	for _, mode := range []config.KafkaAuthMode{config.KafkaAuthIAM, config.KafkaAuthSCRAM, config.KafkaAuthTLS, config.KafkaAuthPlaintext} {
		if brokers := byMode[mode]; brokers != "" {
			c.logger.WarnContext(ctx, "bootstrap brokers for auth mode not available, falling back",
				slog.String("auth_mode", c.authMode.String()),
				slog.String("fallback_mode", mode.String()),
			)
			return brokers, nil
		}
	}

	return "", ErrNoBootstrapBrokers
}

// EnsureTopicExists creates the topic on the brokers of endpoint, or grows its partition
// count when it already exists. Shrinking is not possible in Kafka and is ignored.
func (c *TopicClient) EnsureTopicExists(ctx context.Context, endpoint string, topic TopicConfig) error {
	admin, err := c.newAdmin(ctx, strings.Split(endpoint, ","))
	if err != nil {
		return fmt.Errorf("failed to connect to kafka cluster: %w", err)
	}
	defer func() {
		if err := admin.Close(); err != nil {
			c.logger.WarnContext(ctx, "failed to close kafka admin", slog.String("error", err.Error()))
		}
	}()

	logger := c.logger.With(slog.String("topic", topic.Name))

	topics, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	existing, found := topics[topic.Name]
	if !found {
		logger.InfoContext(ctx, "creating topic",
			slog.Int("num_partitions", topic.NumPartitions),
			slog.Int("replication_factor", topic.ReplicationFactor),
		)

		err := admin.CreateTopic(topic.Name, &sarama.TopicDetail{
			NumPartitions:     int32(topic.NumPartitions),
			ReplicationFactor: int16(topic.ReplicationFactor),
		}, false)
		if err != nil && !isTopicAlreadyExists(err) {
			return fmt.Errorf("failed to create topic %s: %w", topic.Name, err)
		}
		return nil
	}

	current := int(existing.NumPartitions)
	switch {
	case topic.NumPartitions > current:
		logger.InfoContext(ctx, "growing topic partitions",
			slog.Int("current_partitions", current),
			slog.Int("num_partitions", topic.NumPartitions),
		)
		if err := admin.CreatePartitions(topic.Name, int32(topic.NumPartitions), nil, false); err != nil {
			return fmt.Errorf("failed to add partitions to topic %s: %w", topic.Name, err)
		}
	case topic.NumPartitions < current:
		logger.WarnContext(ctx, "topic has more partitions than requested; kafka cannot shrink a topic",
			slog.Int("current_partitions", current),
			slog.Int("num_partitions", topic.NumPartitions),
		)
	default:
		logger.InfoContext(ctx, "topic already exists")
	}

	return nil
}

func isTopicAlreadyExists(err error) bool {
	var topicErr *sarama.TopicError
	if errors.As(err, &topicErr) {
		return topicErr.Err == sarama.ErrTopicAlreadyExists
	}
	return errors.Is(err, sarama.ErrTopicAlreadyExists)
}

// IsTransient reports whether err is worth another attempt: broker connectivity and
// leadership errors that clear once a freshly created cluster settles.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sarama.ErrOutOfBrokers) || errors.Is(err, sarama.ErrNotConnected) {
		return true
	}

	var kerr sarama.KError
	if errors.As(err, &kerr) {
		return isTransientKError(kerr)
	}

	var topicErr *sarama.TopicError
	if errors.As(err, &topicErr) {
		return isTransientKError(topicErr.Err)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func isTransientKError(kerr sarama.KError) bool {
	switch kerr {
	case sarama.ErrRequestTimedOut,
		sarama.ErrLeaderNotAvailable,
		sarama.ErrNotController,
		sarama.ErrBrokerNotAvailable,
		sarama.ErrNetworkException,
		sarama.ErrNotEnoughReplicas:
		return true
	default:
		return false
	}
}
