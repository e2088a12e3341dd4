package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/aws/aws-lambda-go/events"

	"github.com/hirosato/dues-ledger/internal/api/response"
	"github.com/hirosato/dues-ledger/internal/domain/errors"
)

// RecoveryMiddleware turns panics and returned errors into error responses
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new recovery middleware
func NewRecoveryMiddleware() RecoveryMiddleware {
	return RecoveryMiddleware{}
}

// Handle handles the recovery middleware
func (m RecoveryMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
		requestID := request.RequestContext.RequestID
		defer func() {
			if r := recover(); r != nil {
				logger.Error("PANIC", "panic", r, "stack", string(debug.Stack()))
				resp = response.Error(errors.NewInternalError("An unexpected error occurred", fmt.Errorf("panic: %v", r)), requestID)
				err = nil
			}
		}()

		resp, err = next(ctx, logger, request)
		if err != nil {
			appErr := response.AsAppError(err)
			logger.Error("request failed", "code", appErr.Code, "error", appErr.Error())
			return response.Error(appErr, requestID), nil
		}

		return resp, nil
	}
}
