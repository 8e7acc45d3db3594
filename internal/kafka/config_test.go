package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrzesz33/serverless_kafka/pkg/config"
)

func fakeGenerator(token string, err error) TokenGenerator {
	return func(ctx context.Context, region string) (string, int64, error) {
		if err != nil {
			return "", 0, err
		}
		return token + "@" + region, 0, nil
	}
}

func TestNewSaramaConfig_IAM(t *testing.T) {
	cfg, err := NewSaramaConfig(AuthOptions{
		Mode:           config.KafkaAuthIAM,
		Region:         "eu-central-1",
		TokenGenerator: fakeGenerator("signed", nil),
	})
	require.NoError(t, err)

	assert.True(t, cfg.Net.TLS.Enable)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.Net.TLS.Config.MinVersion)
	assert.True(t, cfg.Net.SASL.Enable)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeOAuth), cfg.Net.SASL.Mechanism)
	assert.Equal(t, ClientID, cfg.ClientID)

	token, err := cfg.Net.SASL.TokenProvider.Token()
	require.NoError(t, err)
	assert.Equal(t, "signed@eu-central-1", token.Token)
}

func TestNewSaramaConfig_IAMRequiresRegion(t *testing.T) {
	_, err := NewSaramaConfig(AuthOptions{Mode: config.KafkaAuthIAM})
	assert.Error(t, err)
}

func TestNewSaramaConfig_SCRAM(t *testing.T) {
	cfg, err := NewSaramaConfig(AuthOptions{
		Mode:     config.KafkaAuthSCRAM,
		Username: "app",
		Password: "s3cret",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Net.TLS.Enable)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA512), cfg.Net.SASL.Mechanism)
	assert.Equal(t, "app", cfg.Net.SASL.User)
	require.NotNil(t, cfg.Net.SASL.SCRAMClientGeneratorFunc)

	client := cfg.Net.SASL.SCRAMClientGeneratorFunc()
	require.NoError(t, client.Begin("app", "s3cret", ""))
	first, err := client.Step("")
	require.NoError(t, err)
	assert.Contains(t, first, "n=app")
	assert.False(t, client.Done())
}

func TestNewSaramaConfig_SCRAMRequiresCredentials(t *testing.T) {
	_, err := NewSaramaConfig(AuthOptions{Mode: config.KafkaAuthSCRAM, Username: "app"})
	assert.Error(t, err)
}

func TestNewSaramaConfig_TLSAndPlaintext(t *testing.T) {
	tlsCfg, err := NewSaramaConfig(AuthOptions{Mode: config.KafkaAuthTLS})
	require.NoError(t, err)
	assert.True(t, tlsCfg.Net.TLS.Enable)
	assert.False(t, tlsCfg.Net.SASL.Enable)

	plain, err := NewSaramaConfig(AuthOptions{Mode: config.KafkaAuthPlaintext})
	require.NoError(t, err)
	assert.False(t, plain.Net.TLS.Enable)
	assert.False(t, plain.Net.SASL.Enable)
}

func TestNewSaramaConfig_UnknownMode(t *testing.T) {
	_, err := NewSaramaConfig(AuthOptions{Mode: "kerberos"})
	assert.Error(t, err)
}

func TestIAMTokenProvider_Error(t *testing.T) {
	p := NewIAMTokenProvider("us-east-1", fakeGenerator("", errors.New("no credentials")))

	_, err := p.Token()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}
