package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

// KafkaAuthMode selects how the topic handler authenticates against the brokers
type KafkaAuthMode string

const (
	// KafkaAuthIAM uses SASL/OAUTHBEARER with MSK IAM tokens
	KafkaAuthIAM KafkaAuthMode = "iam"
	// KafkaAuthSCRAM uses SASL/SCRAM-SHA-512 with credentials from Secrets Manager
	KafkaAuthSCRAM KafkaAuthMode = "scram"
	// KafkaAuthTLS uses TLS without SASL
	KafkaAuthTLS KafkaAuthMode = "tls"
	// KafkaAuthPlaintext uses no encryption and no authentication (local clusters only)
	KafkaAuthPlaintext KafkaAuthMode = "plaintext"
)

// IsValid checks if the auth mode value is valid
func (m KafkaAuthMode) IsValid() bool {
	switch m {
	case KafkaAuthIAM, KafkaAuthSCRAM, KafkaAuthTLS, KafkaAuthPlaintext:
		return true
	default:
		return false
	}
}

// String returns the string representation of the auth mode
func (m KafkaAuthMode) String() string {
	return string(m)
}

// Config holds all configuration for the custom resource handlers
type Config struct {
	// Stage is the deployment environment (dev, stage, prod)
	Stage models.Stage

	// AWS Configuration
	AWSRegion string

	// Reconciliation
	MaxAttempts     int           // Upper bound on reconciliation attempts
	SignalReserve   time.Duration // Time kept free before the Lambda deadline for signaling
	CallbackTimeout time.Duration // Timeout of the single PUT to the ResponseURL

	// ENI cleanup
	SecurityGroupID   string // Default selector when the resource does not supply one
	DeleteConcurrency int    // Parallel deletes within one attempt

	// Topic provisioning
	MSKClusterArn     string
	TopicName         string
	NumPartitions     int
	ReplicationFactor int
	KafkaAuthMode     KafkaAuthMode
	ScramSecretName   string

	// Outcome notifications (each channel disabled when empty)
	OutcomeTopicArn  string
	OutcomeTableName string
	NtfyURL          string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	stage := os.Getenv("STAGE")
	if stage == "" {
		stage = "dev"
	}

	stageEnum := models.Stage(stage)
	if !stageEnum.IsValid() {
		return nil, fmt.Errorf("invalid STAGE value: %s (must be dev, stage, or prod)", stage)
	}

	awsRegion := os.Getenv("AWS_REGION")
	if awsRegion == "" {
		awsRegion = "us-east-1"
	}

	maxAttempts, err := intFromEnv("MAX_ATTEMPTS", 10)
	if err != nil {
		return nil, err
	}

	signalReserve, err := intFromEnv("SIGNAL_RESERVE_SECONDS", 10)
	if err != nil {
		return nil, err
	}

	callbackTimeout, err := intFromEnv("CALLBACK_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}

	deleteConcurrency, err := intFromEnv("DELETE_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}

	topicName := os.Getenv("TOPIC_NAME")
	if topicName == "" {
		topicName = "ServerlessKafkaTopic"
	}

	numPartitions, err := intFromEnv("TOPIC_NUM_PARTITIONS", 1)
	if err != nil {
		return nil, err
	}

	replicationFactor, err := intFromEnv("TOPIC_REPLICATION_FACTOR", 2)
	if err != nil {
		return nil, err
	}

	authMode := KafkaAuthMode(strings.ToLower(os.Getenv("KAFKA_AUTH_MODE")))
	if authMode == "" {
		authMode = KafkaAuthIAM
	}
	if !authMode.IsValid() {
		return nil, fmt.Errorf("invalid KAFKA_AUTH_MODE value: %s (must be iam, scram, tls, or plaintext)", authMode)
	}

	return &Config{
		Stage:             stageEnum,
		AWSRegion:         awsRegion,
		MaxAttempts:       maxAttempts,
		SignalReserve:     time.Duration(signalReserve) * time.Second,
		CallbackTimeout:   time.Duration(callbackTimeout) * time.Second,
		SecurityGroupID:   os.Getenv("SECURITY_GROUP_ID"),
		DeleteConcurrency: deleteConcurrency,
		MSKClusterArn:     os.Getenv("MSK_CLUSTER_ARN"),
		TopicName:         topicName,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
		KafkaAuthMode:     authMode,
		ScramSecretName:   os.Getenv("KAFKA_SCRAM_SECRET_NAME"),
		OutcomeTopicArn:   os.Getenv("OUTCOME_TOPIC_ARN"),
		OutcomeTableName:  os.Getenv("OUTCOME_TABLE_NAME"),
		NtfyURL:           os.Getenv("NTFY_URL"),
	}, nil
}

// MustLoad loads configuration and panics if there's an error
// This is useful for Lambda handlers where configuration errors should prevent startup
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks the configuration shared by every handler
func (c *Config) Validate() error {
	if !c.Stage.IsValid() {
		return fmt.Errorf("invalid stage: %s", c.Stage)
	}

	if c.AWSRegion == "" {
		return fmt.Errorf("AWS region is required")
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}

	if c.SignalReserve < 0 || c.CallbackTimeout <= 0 {
		return fmt.Errorf("signal reserve and callback timeout must be positive")
	}

	return nil
}

// ValidateCleanup checks the configuration of the ENI cleanup handler.
// SECURITY_GROUP_ID stays optional because the resource may supply its own selector.
func (c *Config) ValidateCleanup() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.DeleteConcurrency < 1 {
		return fmt.Errorf("delete concurrency must be at least 1, got %d", c.DeleteConcurrency)
	}

	return nil
}

// ValidateProvisioner checks the configuration of the topic provisioning handler
func (c *Config) ValidateProvisioner() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.MSKClusterArn == "" {
		return fmt.Errorf("MSK_CLUSTER_ARN environment variable is required")
	}

	if c.TopicName == "" || c.NumPartitions < 1 || c.ReplicationFactor < 1 {
		return fmt.Errorf("default topic configuration is invalid")
	}

	if !c.KafkaAuthMode.IsValid() {
		return fmt.Errorf("invalid kafka auth mode: %s", c.KafkaAuthMode)
	}

	if c.KafkaAuthMode == KafkaAuthSCRAM && c.ScramSecretName == "" {
		return fmt.Errorf("KAFKA_SCRAM_SECRET_NAME is required when KAFKA_AUTH_MODE is scram")
	}

	return nil
}

// IsDevelopment returns true if the stage is development
func (c *Config) IsDevelopment() bool {
	return c.Stage == models.StageDev
}

// IsProduction returns true if the stage is production
func (c *Config) IsProduction() bool {
	return c.Stage == models.StageProd
}

func intFromEnv(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s (must be an integer)", name, raw)
	}

	return value, nil
}
