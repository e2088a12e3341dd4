package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/hirosato/dues-ledger/internal/api/middleware"
	"github.com/hirosato/dues-ledger/internal/app"
	envconfig "github.com/hirosato/dues-ledger/internal/common/config"
)

var (
	application *app.App
	apiHandler  middleware.APIGatewayHandler
)

func init() {
	config, err := envconfig.LoadFromEnv(envconfig.BackendDynamoDB)
	if err != nil {
		log.Fatalf("Failed to load Env config: %v", err)
	}

	logger := app.NewLogger(config)
	zlog, err := app.NewZapLogger(config)
	if err != nil {
		log.Fatalf("Failed to create zap logger: %v", err)
	}

	application, err = app.New(context.Background(), config, logger)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	apiHandler = application.APIHandler(zlog)
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return apiHandler(ctx, application.Logger, request)
}

func main() {
	lambda.Start(handler)
}
