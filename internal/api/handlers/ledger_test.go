package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hirosato/dues-ledger/internal/api/middleware"
	"github.com/hirosato/dues-ledger/internal/domain/account"
	"github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
	"github.com/hirosato/dues-ledger/internal/platform/memory"
)

type envelope struct {
	Success          bool            `json:"success"`
	Data             json.RawMessage `json:"data"`
	Error            string          `json:"error"`
	ErrorDescription struct {
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error_description"`
}

type testAPI struct {
	t       *testing.T
	handler middleware.APIGatewayHandler
}

func newTestAPI(t *testing.T) *testAPI {
	repo := memory.NewAccountRepository()
	ledgerSvc := ledger.NewService(memory.NewLedgerStore(), repo, slog.Default())
	h := NewLedgerHandler(account.NewService(repo, ledgerSvc, slog.Default()), ledgerSvc)
	return &testAPI{
		t: t,
		handler: middleware.Chain(h.Route,
			middleware.NewRecoveryMiddleware(),
			middleware.NewActorMiddleware(zap.NewNop()),
		),
	}
}

func (a *testAPI) do(method, resource, accountID, body string) (int, envelope) {
	a.t.Helper()
	req := events.APIGatewayProxyRequest{
		HTTPMethod:     method,
		Resource:       resource,
		Body:           body,
		Headers:        map[string]string{middleware.UserEmailHeader: "clerk@example.com"},
		RequestContext: events.APIGatewayProxyRequestContext{RequestID: "req-1"},
	}
	if accountID != "" {
		req.PathParameters = map[string]string{"accountId": accountID}
	}

	resp, err := a.handler(context.Background(), slog.Default(), req)
	require.NoError(a.t, err)

	var env envelope
	if resp.Body != "" {
		require.NoError(a.t, json.Unmarshal([]byte(resp.Body), &env))
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestLedgerHandlerFlow(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(http.MethodPost, ResourceAccounts, "", `{"accountId":"unit-7","name":"Ahmed","dueBalance":25000}`)
	require.Equal(t, http.StatusCreated, status, env.ErrorDescription.Message)
	created := decodeData[account.BalanceUpdateResult](t, env)
	assert.Equal(t, "unit-7", created.Account.AccountID)
	assert.Equal(t, int64(2), created.Account.Version)
	require.NotNil(t, created.Entry)
	assert.Equal(t, ledger.Charge, created.Entry.Type)
	assert.Equal(t, "Initial due balance of 25,000 set when record was created", created.Entry.Description)
	assert.Equal(t, "clerk@example.com", created.Entry.RecordedBy)

	status, env = api.do(http.MethodPut, ResourceBalance, "unit-7", `{"dueBalance":"18000","expectedVersion":2}`)
	require.Equal(t, http.StatusOK, status, env.ErrorDescription.Message)
	updated := decodeData[account.BalanceUpdateResult](t, env)
	require.NotNil(t, updated.Entry)
	assert.Equal(t, ledger.Payment, updated.Entry.Type)
	assert.True(t, updated.Entry.Amount.Equal(decimal.NewFromInt(7000)))
	assert.Equal(t, "Due balance decreased from 25,000 to 18,000", updated.Entry.Description)

	status, env = api.do(http.MethodPut, ResourceBalance, "unit-7", `{"dueBalance":18000}`)
	require.Equal(t, http.StatusOK, status)
	unchanged := decodeData[account.BalanceUpdateResult](t, env)
	assert.Nil(t, unchanged.Entry)
	assert.Equal(t, updated.Account.Version, unchanged.Account.Version)

	status, env = api.do(http.MethodPost, ResourceEntries, "unit-7", `{"type":"charge","amount":"500","description":"Late fee","occurredAt":"2020-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, status, env.ErrorDescription.Message)
	recorded := decodeData[account.BalanceUpdateResult](t, env)
	assert.True(t, recorded.Account.DueBalance.Equal(decimal.NewFromInt(18500)))

	status, env = api.do(http.MethodGet, ResourceEntries, "unit-7", "")
	require.Equal(t, http.StatusOK, status)
	history := decodeData[ledger.History](t, env)
	assert.Equal(t, 3, history.EntryCount)
	assert.True(t, history.Balance.Equal(decimal.NewFromInt(18500)))
	assert.True(t, history.TotalCharges.Equal(decimal.NewFromInt(25500)))
	assert.True(t, history.TotalPayments.Equal(decimal.NewFromInt(7000)))
	require.Len(t, history.Entries, 3)
	assert.Equal(t, "Late fee", history.Entries[2].Description)
	assert.True(t, history.Entries[2].RunningBalance.Equal(decimal.NewFromInt(500)))

	status, env = api.do(http.MethodGet, ResourceVerify, "unit-7", "")
	require.Equal(t, http.StatusOK, status)
	report := decodeData[ledger.ConsistencyReport](t, env)
	assert.True(t, report.Consistent)
	assert.True(t, report.Drift.IsZero())

	status, env = api.do(http.MethodGet, ResourceAccount, "unit-7", "")
	require.Equal(t, http.StatusOK, status)
	acct := decodeData[account.Account](t, env)
	assert.Equal(t, "Ahmed", acct.Name)
}

func TestLedgerHandlerErrors(t *testing.T) {
	api := newTestAPI(t)
	status, _ := api.do(http.MethodPost, ResourceAccounts, "", `{"accountId":"unit-1","name":"Ahmed","dueBalance":100}`)
	require.Equal(t, http.StatusCreated, status)

	tests := []struct {
		name       string
		method     string
		resource   string
		accountID  string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed json", http.MethodPost, ResourceAccounts, "", `{"name":`, http.StatusBadRequest, errors.CodeInvalidInput},
		{"empty body", http.MethodPut, ResourceBalance, "unit-1", "", http.StatusBadRequest, errors.CodeInvalidInput},
		{"missing name", http.MethodPost, ResourceAccounts, "", `{"dueBalance":1}`, http.StatusBadRequest, errors.CodeValidation},
		{"duplicate account", http.MethodPost, ResourceAccounts, "", `{"accountId":"unit-1","name":"B"}`, http.StatusConflict, errors.CodeConflict},
		{"unknown account", http.MethodGet, ResourceAccount, "nobody", "", http.StatusNotFound, errors.CodeNotFound},
		{"history of unknown account", http.MethodGet, ResourceEntries, "nobody", "", http.StatusNotFound, errors.CodeNotFound},
		{"verify unknown account", http.MethodGet, ResourceVerify, "nobody", "", http.StatusNotFound, errors.CodeNotFound},
		{"missing path parameter", http.MethodGet, ResourceAccount, "", "", http.StatusBadRequest, errors.CodeValidation},
		{"stale version", http.MethodPut, ResourceBalance, "unit-1", `{"dueBalance":5,"expectedVersion":1}`, http.StatusConflict, errors.CodeConflict},
		{"zero amount", http.MethodPost, ResourceEntries, "unit-1", `{"type":"charge","amount":0}`, http.StatusBadRequest, errors.CodeValidation},
		{"unknown type", http.MethodPost, ResourceEntries, "unit-1", `{"type":"refund","amount":5}`, http.StatusBadRequest, errors.CodeValidation},
		{"unknown route", http.MethodDelete, ResourceAccount, "unit-1", "", http.StatusNotFound, errors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := api.do(tt.method, tt.resource, tt.accountID, tt.body)

			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Error)
		})
	}
}

func TestLedgerHandlerStaleVersionDetails(t *testing.T) {
	api := newTestAPI(t)
	_, _ = api.do(http.MethodPost, ResourceAccounts, "", `{"accountId":"unit-1","name":"Ahmed","dueBalance":100}`)

	status, env := api.do(http.MethodPut, ResourceBalance, "unit-1", `{"dueBalance":5,"expectedVersion":1}`)

	assert.Equal(t, http.StatusConflict, status)
	assert.EqualValues(t, 2, env.ErrorDescription.Details["currentVersion"])
}

func TestLedgerHandlerRejectsMissingBalance(t *testing.T) {
	api := newTestAPI(t)
	status, _ := api.do(http.MethodPost, ResourceAccounts, "", `{"accountId":"unit-1","name":"Ahmed","dueBalance":25000}`)
	require.Equal(t, http.StatusCreated, status)

	for _, body := range []string{`{}`, `{"dueBalance":null}`, `{"expectedVersion":2}`} {
		t.Run(body, func(t *testing.T) {
			status, env := api.do(http.MethodPut, ResourceBalance, "unit-1", body)

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, errors.CodeValidation, env.Error)
			assert.Contains(t, env.ErrorDescription.Details, "fields")
		})
	}

	status, env := api.do(http.MethodGet, ResourceEntries, "unit-1", "")
	require.Equal(t, http.StatusOK, status)
	history := decodeData[ledger.History](t, env)
	assert.Equal(t, 1, history.EntryCount)
	assert.True(t, history.Balance.Equal(decimal.NewFromInt(25000)))

	status, env = api.do(http.MethodGet, ResourceAccount, "unit-1", "")
	require.Equal(t, http.StatusOK, status)
	acct := decodeData[account.Account](t, env)
	assert.True(t, acct.DueBalance.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, int64(2), acct.Version)
}

func TestLedgerHandlerPreflight(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(http.MethodOptions, ResourceAccounts, "", "")

	assert.Equal(t, http.StatusOK, status)
}

func TestDecodeBodyBase64(t *testing.T) {
	var req account.CreateAccountRequest
	_, ok := decodeBody(events.APIGatewayProxyRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"name":"Ahmed","dueBalance":"12.50"}`)),
		IsBase64Encoded: true,
	}, &req)

	require.True(t, ok)
	assert.Equal(t, "Ahmed", req.Name)
	assert.True(t, req.DueBalance.Equal(decimal.RequireFromString("12.5")))

	resp, ok := decodeBody(events.APIGatewayProxyRequest{Body: "%%%", IsBase64Encoded: true}, &req)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
