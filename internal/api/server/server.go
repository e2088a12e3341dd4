// Package server runs the API Gateway handler chain behind a chi router so
// the service can be used without Lambda.
package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hirosato/dues-ledger/internal/api/handlers"
	"github.com/hirosato/dues-ledger/internal/api/middleware"
	"github.com/hirosato/dues-ledger/internal/api/response"
	"github.com/hirosato/dues-ledger/internal/domain/errors"
)

const maxBodyBytes = 1 << 20

// NewRouter mounts handler on every ledger route
func NewRouter(handler middleware.APIGatewayHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	adapt := adapter(handler, logger)
	r.Post(handlers.ResourceAccounts, adapt)
	r.Get(handlers.ResourceAccount, adapt)
	r.Put(handlers.ResourceBalance, adapt)
	r.Get(handlers.ResourceEntries, adapt)
	r.Post(handlers.ResourceEntries, adapt)
	r.Get(handlers.ResourceVerify, adapt)
	r.Options("/*", adapt)

	notFound := func(w http.ResponseWriter, r *http.Request) {
		response.WriteError(w, errors.NewNotFoundError("Endpoint not found"), chimiddleware.GetReqID(r.Context()))
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	return r
}

func adapter(handler middleware.APIGatewayHandler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		request, err := toProxyRequest(w, r)
		if err != nil {
			response.WriteError(w, errors.NewInvalidInputError("failed to read request body", err), chimiddleware.GetReqID(r.Context()))
			return
		}

		resp, err := handler(r.Context(), logger, request)
		if err != nil {
			response.WriteError(w, err, request.RequestContext.RequestID)
			return
		}
		response.WriteProxyResponse(w, resp)
	}
}

// toProxyRequest builds the API Gateway view of an HTTP request. The chi
// route pattern stands in for the API Gateway resource.
func toProxyRequest(w http.ResponseWriter, r *http.Request) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return events.APIGatewayProxyRequest{}, err
	}

	request := events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               make(map[string]string, len(r.Header)),
		MultiValueHeaders:     map[string][]string(r.Header.Clone()),
		QueryStringParameters: make(map[string]string),
		PathParameters:        make(map[string]string),
		Body:                  string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:  chimiddleware.GetReqID(r.Context()),
			HTTPMethod: r.Method,
			Path:       r.URL.Path,
			Identity:   events.APIGatewayRequestIdentity{SourceIP: r.RemoteAddr},
		},
	}
	for k := range r.Header {
		request.Headers[k] = r.Header.Get(k)
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			request.QueryStringParameters[k] = v[0]
		}
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		request.Resource = rctx.RoutePattern()
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			request.PathParameters[key] = rctx.URLParams.Values[i]
		}
	}
	return request, nil
}
