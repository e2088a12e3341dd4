package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// LoggingMiddleware is a middleware for logging requests and responses
type LoggingMiddleware struct {
	// LogBodies adds request and response bodies at debug level
	LogBodies bool
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logBodies bool) LoggingMiddleware {
	return LoggingMiddleware{LogBodies: logBodies}
}

// Handle handles the logging middleware
func (m LoggingMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		startTime := time.Now()
		logger = logger.With("requestId", request.RequestContext.RequestID)

		logger.Info("REQUEST",
			"method", request.HTTPMethod,
			"path", request.Path,
			"resource", request.Resource,
			"queryParameters", request.QueryStringParameters,
			"headers", maskSensitiveHeaders(request.Headers))
		if m.LogBodies && request.Body != "" {
			logger.Debug("REQUEST", "body", request.Body)
		}

		resp, err := next(ctx, logger, request)

		if err != nil {
			logger.Error("ERROR", "error", err)
		}
		level := slog.LevelInfo
		if resp.StatusCode >= 500 {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "RESPONSE",
			"status", resp.StatusCode,
			"duration", time.Since(startTime))
		if m.LogBodies && resp.Body != "" {
			logger.Debug("RESPONSE", "body", resp.Body)
		}

		return resp, err
	}
}

var sensitiveHeaders = []string{
	"Authorization",
	"X-Api-Key",
	"Cookie",
}

// maskSensitiveHeaders masks sensitive headers regardless of their case
func maskSensitiveHeaders(headers map[string]string) map[string]string {
	masked := make(map[string]string, len(headers))
	for k, v := range headers {
		masked[k] = v
		for _, s := range sensitiveHeaders {
			if strings.EqualFold(k, s) {
				masked[k] = "***"
			}
		}
	}
	return masked
}
