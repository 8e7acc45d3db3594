package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
)

// TokenGenerator produces a signed MSK IAM auth token and its expiry in unix milliseconds
type TokenGenerator func(ctx context.Context, region string) (string, int64, error)

// IAMTokenProvider supplies OAUTHBEARER tokens signed with the Lambda's IAM role
type IAMTokenProvider struct {
	region   string
	generate TokenGenerator
	timeout  time.Duration
}

var _ sarama.AccessTokenProvider = (*IAMTokenProvider)(nil)

// NewIAMTokenProvider creates a token provider for the region. A nil generator uses the MSK signer.
func NewIAMTokenProvider(region string, generate TokenGenerator) *IAMTokenProvider {
	if generate == nil {
		generate = signer.GenerateAuthToken
	}
	return &IAMTokenProvider{
		region:   region,
		generate: generate,
		timeout:  10 * time.Second,
	}
}

// Token is called by sarama on every SASL handshake
func (p *IAMTokenProvider) Token() (*sarama.AccessToken, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	token, _, err := p.generate(ctx, p.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM auth token: %w", err)
	}

	return &sarama.AccessToken{Token: token}, nil
}
