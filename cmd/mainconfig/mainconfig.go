package mainconfig

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/medspa-concierge/internal/config"
	"github.com/wolfman30/medspa-concierge/internal/kv"
	"github.com/wolfman30/medspa-concierge/internal/llm"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

const redisKeyPrefix = "concierge:"

// LoadAWSConfig centralizes AWS SDK initialization so LocalStack and
// production share the same wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewDynamoDBClient honours AWS_ENDPOINT_OVERRIDE for local stacks.
func NewDynamoDBClient(awsCfg aws.Config, cfg *appconfig.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// NewBedrockRuntimeClient builds the Converse client. The endpoint override
// is not applied: local stacks do not serve Bedrock.
func NewBedrockRuntimeClient(awsCfg aws.Config) *bedrockruntime.Client {
	return bedrockruntime.NewFromConfig(awsCfg)
}

// NewKVBackend selects the persistence backend named by STORAGE_BACKEND. The
// returned closer is never nil.
func NewKVBackend(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (kv.Backend, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case "", appconfig.StorageMemory:
		logger.Warn("using in-memory storage; appointments are lost on restart")
		return kv.NewMemory(), noop, nil

	case appconfig.StorageRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, noop, fmt.Errorf("mainconfig: REDIS_ADDR is required for the redis backend")
		}
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("mainconfig: redis ping: %w", err)
		}
		logger.Info("using redis storage", "addr", cfg.RedisAddr, "tls", cfg.RedisTLS)
		return kv.NewRedis(client, redisKeyPrefix), func() { _ = client.Close() }, nil

	case appconfig.StorageDynamoDB:
		if strings.TrimSpace(cfg.KVTable) == "" {
			return nil, noop, fmt.Errorf("mainconfig: KV_TABLE is required for the dynamodb backend")
		}
		logger.Info("using dynamodb storage", "table", cfg.KVTable)
		return kv.NewDynamo(NewDynamoDBClient(awsCfg, cfg), cfg.KVTable), noop, nil
	}
	return nil, noop, fmt.Errorf("mainconfig: unknown STORAGE_BACKEND %q", cfg.StorageBackend)
}

// NewLLMClient builds the reasoning service client named by LLM_PROVIDER,
// wrapped with the other provider when LLM_FALLBACK_ENABLED is set.
func NewLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, func(), error) {
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	bedrock := func() (llm.Client, error) {
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, fmt.Errorf("mainconfig: BEDROCK_MODEL_ID is required for bedrock")
		}
		return llm.NewBedrockClient(NewBedrockRuntimeClient(awsCfg), cfg.BedrockModelID), nil
	}
	gemini := func() (llm.Client, error) {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		return client, nil
	}

	var primary, secondary func() (llm.Client, error)
	switch cfg.LLMProvider {
	case "", appconfig.LLMProviderBedrock:
		primary, secondary = bedrock, gemini
	case appconfig.LLMProviderGemini:
		primary, secondary = gemini, bedrock
	default:
		return nil, closeAll, fmt.Errorf("mainconfig: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	client, err := primary()
	if err != nil {
		closeAll()
		return nil, func() {}, err
	}
	if !cfg.LLMFallbackEnabled {
		logger.Info("reasoning service configured", "provider", cfg.LLMProvider)
		return client, closeAll, nil
	}

	fallback, err := secondary()
	if err != nil {
		closeAll()
		return nil, func() {}, fmt.Errorf("mainconfig: fallback provider: %w", err)
	}
	logger.Info("reasoning service configured", "provider", cfg.LLMProvider, "fallback", true)
	return llm.NewFallbackClient(client, fallback, logger), closeAll, nil
}
