// Package secrets reads MSK SASL/SCRAM credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// MSKSecretPrefix is the name prefix MSK requires for secrets associated with a cluster
const MSKSecretPrefix = "AmazonMSK_"

// ErrIncompleteCredentials is returned when the secret lacks a username or password
var ErrIncompleteCredentials = errors.New("secret missing required SCRAM fields (username, password)")

// SecretsAPI defines the Secrets Manager operations used by Manager
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SCRAMCredentials are the SASL/SCRAM user credentials of an MSK cluster
type SCRAMCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// String never reveals the password
func (c SCRAMCredentials) String() string {
	return fmt.Sprintf("SCRAMCredentials{Username: %s, Password: [REDACTED]}", c.Username)
}

type cachedCredentials struct {
	creds     *SCRAMCredentials
	expiresAt time.Time
}

// Manager loads SCRAM credentials and keeps them for the life of a warm Lambda container
type Manager struct {
	client SecretsAPI
	logger *slog.Logger
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cachedCredentials
}

// NewManager creates a new credentials manager
func NewManager(cfg aws.Config, logger *slog.Logger) *Manager {
	return NewManagerWithClient(secretsmanager.NewFromConfig(cfg), logger)
}

// NewManagerWithClient creates a credentials manager with a custom client
func NewManagerWithClient(client SecretsAPI, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client: client,
		logger: logger,
		ttl:    5 * time.Minute,
		cache:  make(map[string]cachedCredentials),
	}
}

// GetSCRAMCredentials reads the AWSCURRENT version of a {"username","password"} secret.
// secretID may be a name or an ARN.
func (m *Manager) GetSCRAMCredentials(ctx context.Context, secretID string) (*SCRAMCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.cache[secretID]; ok && time.Now().Before(cached.expiresAt) {
		return cached.creds, nil
	}

	if !strings.Contains(secretID, MSKSecretPrefix) {
		m.logger.WarnContext(ctx, "secret name does not start with "+MSKSecretPrefix+"; MSK will not accept it for SCRAM")
	}

	result, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		// SECURITY: never log the secret id or value
		return nil, fmt.Errorf("failed to retrieve SCRAM secret: %w", err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("SCRAM secret has no string value")
	}

	var creds SCRAMCredentials
	if err := json.Unmarshal([]byte(aws.ToString(result.SecretString)), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse SCRAM secret JSON: %w", err)
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, ErrIncompleteCredentials
	}

	m.cache[secretID] = cachedCredentials{creds: &creds, expiresAt: time.Now().Add(m.ttl)}
	m.logger.DebugContext(ctx, "SCRAM credentials loaded", slog.String("username", creds.Username))

	return &creds, nil
}
