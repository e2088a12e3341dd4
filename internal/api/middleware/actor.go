package middleware

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/hirosato/dues-ledger/internal/common/utils"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

type actorContextKey struct{}

// UserEmailHeader names the caller when no identity token is present
const UserEmailHeader = "X-User-Email"

// ActorMiddleware resolves who is making the request. Identity is asserted
// upstream; this only reads it, from the authorizer context first, then the
// bearer token, then the X-User-Email header.
type ActorMiddleware struct {
	log *zap.Logger
}

// NewActorMiddleware creates a new actor middleware
func NewActorMiddleware(log *zap.Logger) ActorMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return ActorMiddleware{log: log}
}

// Handle handles the actor middleware
func (m ActorMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		actor := m.Resolve(request)
		if actor.RecordedBy() != "" {
			logger = logger.With("recordedBy", actor.RecordedBy())
		}
		return next(WithActor(ctx, actor), logger, request)
	}
}

// Resolve extracts the actor for a request. An anonymous request yields a zero Actor.
func (m ActorMiddleware) Resolve(request events.APIGatewayProxyRequest) ledger.Actor {
	if actor, ok := fromAuthorizer(request.RequestContext.Authorizer); ok {
		return actor
	}

	if header := utils.Header(request.Headers, "Authorization"); header != "" {
		token, err := utils.ExtractBearerToken(header)
		if err != nil {
			m.log.Debug("ignoring authorization header", zap.Error(err))
		} else if claims, err := utils.ParseUnverifiedClaims(token); err != nil {
			m.log.Warn("unreadable bearer token", zap.Error(err), zap.String("requestId", request.RequestContext.RequestID))
		} else if claims.Subject != "" || claims.Email != "" {
			return ledger.Actor{UserID: claims.Subject, UserEmail: claims.Email}
		}
	}

	if email := utils.Header(request.Headers, UserEmailHeader); email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			m.log.Warn("ignoring malformed user email header", zap.String("value", email))
			return ledger.Actor{}
		}
		return ledger.Actor{UserEmail: email}
	}

	return ledger.Actor{}
}

// fromAuthorizer reads identity placed in the request context by a Lambda
// or Cognito authorizer. Cognito nests the token claims under "claims".
func fromAuthorizer(authorizer map[string]interface{}) (ledger.Actor, bool) {
	if authorizer == nil {
		return ledger.Actor{}, false
	}
	if claims, ok := authorizer["claims"].(map[string]interface{}); ok {
		authorizer = claims
	}

	sub, _ := authorizer["sub"].(string)
	if sub == "" {
		sub, _ = authorizer["principalId"].(string)
	}
	email, _ := authorizer["email"].(string)
	if sub == "" && email == "" {
		return ledger.Actor{}, false
	}
	return ledger.Actor{UserID: sub, UserEmail: email}, true
}

// WithActor stores the actor in the context
func WithActor(ctx context.Context, actor ledger.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor resolved for the request
func ActorFromContext(ctx context.Context) ledger.Actor {
	actor, _ := ctx.Value(actorContextKey{}).(ledger.Actor)
	return actor
}
