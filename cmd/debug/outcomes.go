package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/jrzesz33/serverless_kafka/internal/logging"
	"github.com/jrzesz33/serverless_kafka/internal/models"
	"github.com/jrzesz33/serverless_kafka/internal/repository"
	appconfig "github.com/jrzesz33/serverless_kafka/pkg/config"
)

func newOutcomesCmd() *cobra.Command {
	var (
		table     string
		stackID   string
		requestID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "Show outcomes recorded in the outcome table",
		Example: `  debug outcomes --stack arn:aws:cloudformation:us-east-1:123456789012:stack/msk/abc
  debug outcomes --request 5f1c0d3e-0000-4000-8000-000000000000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (stackID == "") == (requestID == "") {
				return fmt.Errorf("exactly one of --stack or --request is required")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := appconfig.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if table == "" {
				table = cfg.OutcomeTableName
			}
			if table == "" {
				return fmt.Errorf("--table or OUTCOME_TABLE_NAME is required")
			}

			awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.AWSRegion))
			if err != nil {
				return fmt.Errorf("failed to load AWS config: %w", err)
			}

			repo := repository.NewDynamoDBOutcomeRepository(dynamodb.NewFromConfig(awsCfg), table, logging.New(os.Stderr))
			return showOutcomes(ctx, cmd.OutOrStdout(), repo, stackID, requestID, limit)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "outcome table name (defaults to OUTCOME_TABLE_NAME)")
	cmd.Flags().StringVar(&stackID, "stack", "", "list the newest outcomes of a stack")
	cmd.Flags().StringVar(&requestID, "request", "", "show the outcome of one request")
	cmd.Flags().IntVar(&limit, "limit", 25, "maximum number of outcomes to list")

	return cmd
}

func showOutcomes(ctx context.Context, w io.Writer, repo repository.OutcomeRepository, stackID, requestID string, limit int) error {
	var outcomes []*models.Outcome
	if requestID != "" {
		outcome, err := repo.GetOutcome(ctx, requestID)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, outcome)
	} else {
		list, err := repo.ListOutcomesByStack(ctx, stackID, limit)
		if err != nil {
			return err
		}
		outcomes = list
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}
