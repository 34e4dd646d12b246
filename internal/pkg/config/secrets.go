// internal/pkg/config/secrets.go
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretValueAPI is the subset of the Secrets Manager client used here
type secretValueAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource reads one JSON secret bundle holding the ledger's
// credentials and serves keys from it. The bundle is refetched after ttl.
type SecretsManagerSource struct {
	api    secretValueAPI
	bundle string
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	values  map[string]string
	fetched time.Time
}

// NewSecretsManagerSource connects to Secrets Manager in region
func NewSecretsManagerSource(region, bundle string, logger *slog.Logger) (*SecretsManagerSource, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSecretsManagerSource(secretsmanager.NewFromConfig(awsCfg), bundle, logger), nil
}

func newSecretsManagerSource(api secretValueAPI, bundle string, logger *slog.Logger) *SecretsManagerSource {
	return &SecretsManagerSource{api: api, bundle: bundle, ttl: 5 * time.Minute, logger: logger}
}

// GetSecrets returns the requested keys present in the bundle. Missing
// keys are logged and left out so the environment value stays in effect.
func (s *SecretsManagerSource) GetSecrets(ctx context.Context, keys []string) (map[string]string, error) {
	values, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if val, ok := values[k]; ok {
			out[k] = val
			continue
		}
		s.logger.Debug("secret not in bundle", slog.String("bundle", s.bundle), slog.String("key", k))
	}
	return out, nil
}

// Invalidate forces the next read to refetch the bundle
func (s *SecretsManagerSource) Invalidate() {
	s.mu.Lock()
	s.values = nil
	s.mu.Unlock()
}

func (s *SecretsManagerSource) load(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values != nil && time.Since(s.fetched) < s.ttl {
		return s.values, nil
	}

	s.logger.Info("fetching secret bundle", slog.String("bundle", s.bundle))
	res, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(s.bundle),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", s.bundle, err)
	}
	if res.SecretString == nil {
		return nil, fmt.Errorf("secret %s is not a string secret", s.bundle)
	}

	values := map[string]string{}
	if err := json.Unmarshal([]byte(*res.SecretString), &values); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object of strings: %w", s.bundle, err)
	}

	s.values, s.fetched = values, time.Now()
	return values, nil
}

// EnvSecrets resolves secrets from process environment variables
type EnvSecrets struct{}

// GetSecrets returns the keys that are set and non-empty
func (EnvSecrets) GetSecrets(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if val, ok := os.LookupEnv(k); ok && val != "" {
			out[k] = val
		}
	}
	return out, nil
}

var (
	_ SecretsSource = (*SecretsManagerSource)(nil)
	_ SecretsSource = EnvSecrets{}
)
