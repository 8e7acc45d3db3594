package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/jrzesz33/serverless_kafka/internal/app"
	"github.com/jrzesz33/serverless_kafka/internal/dispatch"
	"github.com/jrzesz33/serverless_kafka/internal/logging"
	"github.com/jrzesz33/serverless_kafka/internal/provision"
	"github.com/jrzesz33/serverless_kafka/pkg/config"
)

func main() {
	// Initialize structured logger
	logger := logging.New(os.Stdout)
	slog.SetDefault(logger)

	cfg, handler, err := newHandler(context.Background(), logger)
	if err != nil {
		// Keep serving so every event still gets a FAILED callback
		logger.Error("failed to initialize handler", slog.String("error", err.Error()))
		handler = app.NewInitFailureHandler(cfg, provision.ActionName, err, logger)
	}

	lambda.Start(handler.HandleEvent)
}

func newHandler(ctx context.Context, logger *slog.Logger) (*config.Config, *dispatch.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("topic handler function starting",
		slog.String("stage", cfg.Stage.String()),
		slog.String("region", cfg.AWSRegion),
		slog.String("auth_mode", cfg.KafkaAuthMode.String()),
	)

	// Initialize AWS SDK config
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	handler, err := app.NewTopicHandler(ctx, cfg, awsCfg, logger)
	if err != nil {
		return cfg, nil, err
	}

	return cfg, handler, nil
}
