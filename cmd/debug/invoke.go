package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/jrzesz33/serverless_kafka/internal/app"
	"github.com/jrzesz33/serverless_kafka/internal/dispatch"
	"github.com/jrzesz33/serverless_kafka/internal/logging"
	appconfig "github.com/jrzesz33/serverless_kafka/pkg/config"
)

const (
	handlerCleanup = "eni-cleanup"
	handlerTopic   = "topic"
)

func newInvokeCmd() *cobra.Command {
	var (
		handlerName string
		eventFile   string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Invoke a handler with an event fixture",
		Example: `  debug invoke --handler eni-cleanup --event docs/events/delete.yaml
  debug invoke --handler topic --event docs/events/create.yaml --timeout 2m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd.Context(), handlerName, eventFile, timeout)
		},
	}

	cmd.Flags().StringVar(&handlerName, "handler", handlerCleanup, "handler to invoke (eni-cleanup or topic)")
	cmd.Flags().StringVar(&eventFile, "event", "", "path to a YAML event fixture")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "simulated Lambda timeout")
	_ = cmd.MarkFlagRequired("event")

	return cmd
}

func runInvoke(ctx context.Context, handlerName, eventFile string, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.New(os.Stdout)
	slog.SetDefault(logger)

	event, err := loadEvent(eventFile)
	if err != nil {
		return err
	}

	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	var handler *dispatch.Handler
	switch handlerName {
	case handlerCleanup:
		handler, err = app.NewCleanupHandler(cfg, awsCfg, logger)
	case handlerTopic:
		handler, err = app.NewTopicHandler(ctx, cfg, awsCfg, logger)
	default:
		return fmt.Errorf("unknown handler %q (must be %s or %s)", handlerName, handlerCleanup, handlerTopic)
	}
	if err != nil {
		return err
	}

	var receiver *callbackReceiver
	if event.ResponseURL == "" {
		receiver, err = startCallbackReceiver()
		if err != nil {
			return err
		}
		defer receiver.Close()
		event.ResponseURL = receiver.url
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := handler.HandleEvent(ctx, event); err != nil {
		return err
	}

	if receiver == nil {
		return nil
	}

	select {
	case body := <-receiver.received:
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err != nil {
			fmt.Println(string(body))
			return nil
		}
		fmt.Println(pretty.String())
	case <-time.After(time.Second):
		return fmt.Errorf("handler did not signal a result")
	}

	return nil
}
