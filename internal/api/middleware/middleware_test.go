package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hirosato/dues-ledger/internal/api/response"
	appErrors "github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

func request() events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodGet,
		Path:           "/accounts/acct-1",
		RequestContext: events.APIGatewayProxyRequestContext{RequestID: "req-1"},
	}
}

func decodeError(t *testing.T, body string) response.ErrorResponse {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp
}

func TestRecoveryMiddleware(t *testing.T) {
	ctx := context.Background()

	t.Run("panic becomes a 500", func(t *testing.T) {
		h := NewRecoveryMiddleware().Handle(func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			panic("boom")
		})

		resp, err := h(ctx, slog.Default(), request())

		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, appErrors.CodeInternal, decodeError(t, resp.Body).Error)
	})

	t.Run("app error keeps its status and details", func(t *testing.T) {
		h := NewRecoveryMiddleware().Handle(func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{}, appErrors.NewPartialReconciliationError("balance not saved", "01HENTRY", errors.New("write failed"))
		})

		resp, err := h(ctx, slog.Default(), request())

		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body := decodeError(t, resp.Body)
		assert.Equal(t, appErrors.CodePartialReconciliation, body.Error)
		assert.Equal(t, "01HENTRY", body.ErrorDescription.Details["entryId"])
		assert.Equal(t, "req-1", body.Metadata.RequestID)
	})

	t.Run("plain error is internal", func(t *testing.T) {
		h := NewRecoveryMiddleware().Handle(func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{}, errors.New("nope")
		})

		resp, err := h(ctx, slog.Default(), request())

		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("success passes through", func(t *testing.T) {
		h := NewRecoveryMiddleware().Handle(func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return response.OK("fine", "req-1"), nil
		})

		resp, err := h(ctx, slog.Default(), request())

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestMaskSensitiveHeaders(t *testing.T) {
	masked := maskSensitiveHeaders(map[string]string{
		"authorization": "Bearer secret",
		"Cookie":        "session=1",
		"X-User-Email":  "clerk@example.com",
	})

	assert.Equal(t, "***", masked["authorization"])
	assert.Equal(t, "***", masked["Cookie"])
	assert.Equal(t, "clerk@example.com", masked["X-User-Email"])
}

type recordOrder struct {
	name  string
	order *[]string
}

func (r recordOrder) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		*r.order = append(*r.order, r.name)
		return next(ctx, logger, req)
	}
}

func TestChain(t *testing.T) {
	var order []string
	h := Chain(func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		order = append(order, "handler")
		return response.OK(nil, ""), nil
	}, recordOrder{"outer", &order}, NewLoggingMiddleware(true), recordOrder{"inner", &order})

	_, err := h(context.Background(), slog.Default(), request())

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func bearer(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return "Bearer " + signed
}

type identity struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func TestActorMiddleware(t *testing.T) {
	m := NewActorMiddleware(zap.NewNop())

	tests := []struct {
		name   string
		mutate func(*events.APIGatewayProxyRequest)
		want   ledger.Actor
	}{
		{
			name: "lambda authorizer context",
			mutate: func(r *events.APIGatewayProxyRequest) {
				r.RequestContext.Authorizer = map[string]interface{}{"sub": "user-1", "email": "a@example.com"}
				r.Headers = map[string]string{UserEmailHeader: "ignored@example.com"}
			},
			want: ledger.Actor{UserID: "user-1", UserEmail: "a@example.com"},
		},
		{
			name: "cognito claims",
			mutate: func(r *events.APIGatewayProxyRequest) {
				r.RequestContext.Authorizer = map[string]interface{}{
					"claims": map[string]interface{}{"sub": "user-2", "email": "b@example.com"},
				}
			},
			want: ledger.Actor{UserID: "user-2", UserEmail: "b@example.com"},
		},
		{
			name: "bearer token",
			mutate: func(r *events.APIGatewayProxyRequest) {
				r.Headers = map[string]string{"Authorization": bearer(t, identity{
					RegisteredClaims: jwt.RegisteredClaims{Subject: "user-3"},
					Email:            "c@example.com",
				})}
			},
			want: ledger.Actor{UserID: "user-3", UserEmail: "c@example.com"},
		},
		{
			name: "unreadable token falls back to header",
			mutate: func(r *events.APIGatewayProxyRequest) {
				r.Headers = map[string]string{"Authorization": "Bearer junk", "x-user-email": "d@example.com"}
			},
			want: ledger.Actor{UserEmail: "d@example.com"},
		},
		{
			name: "malformed email header",
			mutate: func(r *events.APIGatewayProxyRequest) {
				r.Headers = map[string]string{UserEmailHeader: "not-an-email"}
			},
			want: ledger.Actor{},
		},
		{
			name:   "anonymous",
			mutate: func(r *events.APIGatewayProxyRequest) {},
			want:   ledger.Actor{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request()
			tt.mutate(&req)

			var got ledger.Actor
			h := m.Handle(func(ctx context.Context, _ *slog.Logger, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
				got = ActorFromContext(ctx)
				return response.OK(nil, ""), nil
			})
			_, err := h(context.Background(), slog.Default(), req)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActorFromContextWithoutActor(t *testing.T) {
	assert.Equal(t, ledger.Actor{}, ActorFromContext(context.Background()))
}
