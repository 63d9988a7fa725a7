// Command chatrelay is the AWS Lambda entrypoint of the chat relay. It is
// configured from the environment (API_URL, LOG_LEVEL, LOG_FORMAT and an
// optional CHATRELAY_CONFIG file) and serves API Gateway proxy events.
package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/teilomillet/chatrelay/config"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server/handlers"
	"go.uber.org/zap"
)

func main() {
	handler, logger, err := setup(os.LookupEnv)
	if err != nil {
		// Fail fast: the runtime reports the init error and never invokes.
		fmt.Fprintf(os.Stderr, "chatrelay: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to sync logger: %v\n", syncErr)
		}
	}()

	lambda.Start(handler.Handle)
}

// setup validates configuration and builds the handler. A missing API_URL
// is reported here, before the first invocation.
func setup(lookup config.Lookuper) (*handlers.ChatHandler, *zap.Logger, error) {
	cfg, err := config.FromEnv(lookup)
	if err != nil {
		return nil, nil, err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	errors.SetLogger(logger)

	logger.Info("chat relay configured",
		zap.String("base_url", cfg.Generation.BaseURL),
		zap.Duration("timeout", cfg.Generation.Timeout),
	)

	// Nothing scrapes a Lambda function, so no metrics are recorded.
	return handlers.NewChatHandler(cfg.Generation, logger, nil), logger, nil
}
