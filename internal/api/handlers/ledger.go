package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/hirosato/dues-ledger/internal/api/middleware"
	"github.com/hirosato/dues-ledger/internal/api/response"
	"github.com/hirosato/dues-ledger/internal/common/utils"
	"github.com/hirosato/dues-ledger/internal/domain/account"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

// API Gateway resources served by LedgerHandler
const (
	ResourceAccounts = "/accounts"
	ResourceAccount  = "/accounts/{accountId}"
	ResourceBalance  = "/accounts/{accountId}/balance"
	ResourceEntries  = "/accounts/{accountId}/entries"
	ResourceVerify   = "/accounts/{accountId}/verify"
)

// LedgerHandler serves the account and ledger endpoints
type LedgerHandler struct {
	accounts *account.Service
	ledger   *ledger.Service
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(accounts *account.Service, ledgerService *ledger.Service) *LedgerHandler {
	return &LedgerHandler{
		accounts: accounts,
		ledger:   ledgerService,
	}
}

// Route dispatches on the matched API Gateway resource and method
func (h *LedgerHandler) Route(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod == http.MethodOptions {
		return response.Preflight(), nil
	}

	method := request.HTTPMethod
	switch {
	case request.Resource == ResourceAccounts && method == http.MethodPost:
		return h.CreateAccount(ctx, logger, request)
	case request.Resource == ResourceAccount && method == http.MethodGet:
		return h.GetAccount(ctx, logger, request)
	case request.Resource == ResourceBalance && method == http.MethodPut:
		return h.UpdateDueBalance(ctx, logger, request)
	case request.Resource == ResourceEntries && method == http.MethodGet:
		return h.ListEntries(ctx, logger, request)
	case request.Resource == ResourceEntries && method == http.MethodPost:
		return h.RecordTransaction(ctx, logger, request)
	case request.Resource == ResourceVerify && method == http.MethodGet:
		return h.Verify(ctx, logger, request)
	default:
		return response.NotFound("Endpoint not found", request.RequestContext.RequestID), nil
	}
}

// CreateAccount handles POST /accounts
func (h *LedgerHandler) CreateAccount(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req account.CreateAccountRequest
	if resp, ok := decodeBody(request, &req); !ok {
		return resp, nil
	}

	result, err := h.accounts.CreateAccount(ctx, &req, middleware.ActorFromContext(ctx))
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	logger.Info("account created", "accountId", result.Account.AccountID, "dueBalance", result.Account.DueBalance.String())
	return response.Created(result, request.RequestContext.RequestID), nil
}

// GetAccount handles GET /accounts/{accountId}
func (h *LedgerHandler) GetAccount(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	accountID, err := accountIDParam(request)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	acct, err := h.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(acct, request.RequestContext.RequestID), nil
}

// UpdateDueBalance handles PUT /accounts/{accountId}/balance
func (h *LedgerHandler) UpdateDueBalance(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	accountID, err := accountIDParam(request)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	var req account.UpdateDueBalanceRequest
	if resp, ok := decodeBody(request, &req); !ok {
		return resp, nil
	}

	result, err := h.accounts.UpdateDueBalance(ctx, accountID, &req, middleware.ActorFromContext(ctx))
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(result, request.RequestContext.RequestID), nil
}

// ListEntries handles GET /accounts/{accountId}/entries
func (h *LedgerHandler) ListEntries(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	accountID, err := accountIDParam(request)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	// 404 for unknown accounts rather than an empty history
	if _, err := h.accounts.GetAccount(ctx, accountID); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	history, err := h.ledger.History(ctx, accountID)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(history, request.RequestContext.RequestID), nil
}

// RecordTransaction handles POST /accounts/{accountId}/entries
func (h *LedgerHandler) RecordTransaction(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	accountID, err := accountIDParam(request)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	var req account.RecordTransactionRequest
	if resp, ok := decodeBody(request, &req); !ok {
		return resp, nil
	}

	result, err := h.accounts.RecordTransaction(ctx, accountID, &req, middleware.ActorFromContext(ctx))
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.Created(result, request.RequestContext.RequestID), nil
}

// Verify handles GET /accounts/{accountId}/verify
func (h *LedgerHandler) Verify(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	accountID, err := accountIDParam(request)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	report, err := h.ledger.Verify(ctx, accountID)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(report, request.RequestContext.RequestID), nil
}

func accountIDParam(request events.APIGatewayProxyRequest) (string, error) {
	accountID := strings.TrimSpace(request.PathParameters["accountId"])
	if err := utils.ValidateRequiredString(accountID, "accountId"); err != nil {
		return "", err
	}
	return accountID, nil
}

// decodeBody unmarshals a JSON request body. On failure it returns the
// response to send instead.
func decodeBody(request events.APIGatewayProxyRequest, v interface{}) (events.APIGatewayProxyResponse, bool) {
	requestID := request.RequestContext.RequestID
	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return response.InvalidInput("request body is not valid base64", err, requestID), false
		}
		body = decoded
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return response.InvalidInput("request body is required", nil, requestID), false
	}
	if err := json.Unmarshal(body, v); err != nil {
		return response.InvalidInput("Invalid JSON body", err, requestID), false
	}
	return events.APIGatewayProxyResponse{}, true
}
