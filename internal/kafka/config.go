// Package kafka builds sarama client configuration for the supported MSK authentication modes.
package kafka

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/jrzesz33/serverless_kafka/pkg/config"
)

// ClientID identifies the topic handler in broker logs
const ClientID = "serverless-kafka-topic-handler"

// AuthOptions selects the authentication used against the brokers
type AuthOptions struct {
	Mode     config.KafkaAuthMode
	Region   string
	Username string
	Password string

	// TokenGenerator overrides the MSK IAM signer; used in tests
	TokenGenerator TokenGenerator
}

// NewSaramaConfig returns a sarama configuration for admin operations with the requested auth
func NewSaramaConfig(opts AuthOptions) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = ClientID
	cfg.Version = sarama.V2_8_0_0
	cfg.Admin.Timeout = 30 * time.Second
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Metadata.Retry.Max = 3

	switch opts.Mode {
	case config.KafkaAuthIAM, "":
		if opts.Region == "" {
			return nil, fmt.Errorf("region is required for IAM authentication")
		}
		enableTLS(cfg)
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		cfg.Net.SASL.TokenProvider = NewIAMTokenProvider(opts.Region, opts.TokenGenerator)

	case config.KafkaAuthSCRAM:
		if opts.Username == "" || opts.Password == "" {
			return nil, fmt.Errorf("username and password are required for SCRAM authentication")
		}
		enableTLS(cfg)
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Handshake = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		cfg.Net.SASL.User = opts.Username
		cfg.Net.SASL.Password = opts.Password
		cfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: SHA512}
		}

	case config.KafkaAuthTLS:
		enableTLS(cfg)

	case config.KafkaAuthPlaintext:

	default:
		return nil, fmt.Errorf("unsupported kafka auth mode: %s", opts.Mode)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sarama configuration: %w", err)
	}

	return cfg, nil
}

func enableTLS(cfg *sarama.Config) {
	cfg.Net.TLS.Enable = true
	cfg.Net.TLS.Config = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
}
