// Package app wires configuration and AWS clients into the custom resource handlers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/jrzesz33/serverless_kafka/internal/cleanup"
	"github.com/jrzesz33/serverless_kafka/internal/dispatch"
	kafkaauth "github.com/jrzesz33/serverless_kafka/internal/kafka"
	"github.com/jrzesz33/serverless_kafka/internal/messaging"
	"github.com/jrzesz33/serverless_kafka/internal/models"
	"github.com/jrzesz33/serverless_kafka/internal/notification"
	"github.com/jrzesz33/serverless_kafka/internal/provision"
	"github.com/jrzesz33/serverless_kafka/internal/reconcile"
	"github.com/jrzesz33/serverless_kafka/internal/repository"
	"github.com/jrzesz33/serverless_kafka/internal/secrets"
	"github.com/jrzesz33/serverless_kafka/internal/signal"
	"github.com/jrzesz33/serverless_kafka/pkg/config"
)

// NewCleanupHandler builds the dispatch handler for the ENI cleanup resource
func NewCleanupHandler(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*dispatch.Handler, error) {
	if err := cfg.ValidateCleanup(); err != nil {
		return nil, fmt.Errorf("invalid cleanup configuration: %w", err)
	}

	action := cleanup.NewAction(cleanup.ActionConfig{
		Client:          cleanup.NewInterfaceClient(awsCfg, logger),
		Engine:          reconcile.NewEngine(cfg.MaxAttempts, logger),
		DefaultSelector: cfg.SecurityGroupID,
		Concurrency:     cfg.DeleteConcurrency,
		Logger:          logger,
	})

	registry := dispatch.NewRegistry(logger)
	if err := registry.Register(cleanup.ResourceType, action); err != nil {
		return nil, err
	}
	registry.SetDefault(action)

	return newHandler(cfg, awsCfg, registry, logger), nil
}

// NewTopicHandler builds the dispatch handler for the topic provisioning resource
func NewTopicHandler(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*dispatch.Handler, error) {
	if err := cfg.ValidateProvisioner(); err != nil {
		return nil, fmt.Errorf("invalid provisioner configuration: %w", err)
	}

	auth := kafkaauth.AuthOptions{
		Mode:   cfg.KafkaAuthMode,
		Region: cfg.AWSRegion,
	}
	if cfg.KafkaAuthMode == config.KafkaAuthSCRAM {
		creds, err := secrets.NewManager(awsCfg, logger).GetSCRAMCredentials(ctx, cfg.ScramSecretName)
		if err != nil {
			return nil, fmt.Errorf("failed to load SCRAM credentials: %w", err)
		}
		auth.Username = creds.Username
		auth.Password = creds.Password
	}

	saramaConfig, err := kafkaauth.NewSaramaConfig(auth)
	if err != nil {
		return nil, err
	}

	client := provision.NewTopicClient(provision.TopicClientConfig{
		Bootstrap:  kafka.NewFromConfig(awsCfg),
		ClusterArn: cfg.MSKClusterArn,
		AuthMode:   cfg.KafkaAuthMode,
		NewAdmin:   provision.SaramaAdminFactory(saramaConfig),
		Logger:     logger,
	})

	action := provision.NewAction(provision.ActionConfig{
		Client:     client,
		Engine:     reconcile.NewEngine(cfg.MaxAttempts, logger),
		ClusterArn: cfg.MSKClusterArn,
		Defaults: provision.TopicConfig{
			Name:              cfg.TopicName,
			NumPartitions:     cfg.NumPartitions,
			ReplicationFactor: cfg.ReplicationFactor,
		},
		Logger: logger,
	})

	registry := dispatch.NewRegistry(logger)
	if err := registry.Register(provision.ResourceType, action); err != nil {
		return nil, err
	}
	registry.SetDefault(action)

	return newHandler(cfg, awsCfg, registry, logger), nil
}

func newHandler(cfg *config.Config, awsCfg aws.Config, registry *dispatch.Registry, logger *slog.Logger) *dispatch.Handler {
	return dispatch.NewHandler(dispatch.HandlerConfig{
		Registry:      registry,
		Signaler:      signal.NewSignaler(signal.Config{Timeout: cfg.CallbackTimeout, Logger: logger}),
		Publisher:     newPublisher(cfg, awsCfg, logger),
		Stage:         cfg.Stage,
		SignalReserve: cfg.SignalReserve,
		Logger:        logger,
	})
}

func newPublisher(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) messaging.OutcomePublisher {
	var publishers []messaging.OutcomePublisher
	if cfg.OutcomeTopicArn != "" {
		publishers = append(publishers, messaging.NewSNSClient(sns.NewFromConfig(awsCfg), cfg.OutcomeTopicArn, logger))
	}
	if cfg.OutcomeTableName != "" {
		publishers = append(publishers, repository.NewDynamoDBOutcomeRepository(dynamodb.NewFromConfig(awsCfg), cfg.OutcomeTableName, logger))
	}
	if cfg.NtfyURL != "" {
		publishers = append(publishers, notification.NewNtfyClient(notification.NtfyClientConfig{
			BaseURL:    cfg.NtfyURL,
			MaxRetries: 2,
			Logger:     logger,
		}))
	}

	switch len(publishers) {
	case 0:
		return messaging.NoopPublisher{}
	case 1:
		return publishers[0]
	default:
		return messaging.NewFanoutPublisher(logger, publishers...)
	}
}

// NewInitFailureHandler returns a handler that answers every event FAILED with initErr.
// cfg may be nil when the configuration itself could not be loaded.
func NewInitFailureHandler(cfg *config.Config, actionName string, initErr error, logger *slog.Logger) *dispatch.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	stage := models.StageDev
	signalReserve := 10 * time.Second
	var callbackTimeout time.Duration
	if cfg != nil {
		stage = cfg.Stage
		signalReserve = cfg.SignalReserve
		callbackTimeout = cfg.CallbackTimeout
	}

	registry := dispatch.NewRegistry(logger)
	registry.SetDefault(dispatch.NewFailedAction(actionName, fmt.Errorf("handler initialization failed: %w", initErr)))

	return dispatch.NewHandler(dispatch.HandlerConfig{
		Registry:      registry,
		Signaler:      signal.NewSignaler(signal.Config{Timeout: callbackTimeout, Logger: logger}),
		Stage:         stage,
		SignalReserve: signalReserve,
		Logger:        logger,
	})
}
