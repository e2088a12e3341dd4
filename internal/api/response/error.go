package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/hirosato/dues-ledger/internal/domain/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success          bool             `json:"success"`
	Error            string           `json:"error"`
	ErrorDescription ErrorDescription `json:"error_description"`
	Metadata         ResponseMetadata `json:"metadata"`
}

// ErrorDescription represents the error details
type ErrorDescription struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// AsAppError converts any error into an AppError. Errors that are not
// already AppErrors become internal errors with a generic message.
func AsAppError(err error) errors.AppError {
	var appErr errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return errors.NewInternalError("An unexpected error occurred", err)
}

func newErrorResponse(appErr errors.AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error:   appErr.Code,
		ErrorDescription: ErrorDescription{
			Message: appErr.Message,
			Details: appErr.Details,
		},
		Metadata: newMetadata(requestID),
	}
}

// Error creates an error response
func Error(appErr errors.AppError, requestID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(newErrorResponse(appErr, requestID))
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"success":false,"error":"INTERNAL_ERROR","error_description":{"message":"Failed to marshal error response"}}`,
			Headers:    DefaultHeaders(),
		}
	}

	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    DefaultHeaders(),
	}
}

// FromError creates an error response for any error returned by a service
func FromError(err error, requestID string) events.APIGatewayProxyResponse {
	return Error(AsAppError(err), requestID)
}

// ValidationError creates a validation error response
func ValidationError(message string, requestID string) events.APIGatewayProxyResponse {
	return Error(errors.NewValidationError(message), requestID)
}

// InvalidInput creates a response for a body that could not be decoded
func InvalidInput(message string, err error, requestID string) events.APIGatewayProxyResponse {
	return Error(errors.NewInvalidInputError(message, err), requestID)
}

// NotFound creates a not found error response
func NotFound(message string, requestID string) events.APIGatewayProxyResponse {
	return Error(errors.NewNotFoundError(message), requestID)
}

// InternalError creates an internal error response
func InternalError(message string, err error, requestID string) events.APIGatewayProxyResponse {
	return Error(errors.NewInternalError(message, err), requestID)
}

// WriteError writes an error response to an HTTP response writer
func WriteError(w http.ResponseWriter, err error, requestID string) {
	appErr := AsAppError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, newErrorResponse(appErr, requestID))
}
