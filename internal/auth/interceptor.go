package auth

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/identity"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

// RoleResolver looks up the role stored in a user's profile.
type RoleResolver interface {
	RoleOf(ctx context.Context, userID string) (policy.Role, error)
}

// UnaryServerInterceptor attaches the caller's Principal to the context when the request
// carries a live bearer token. It does not reject unauthenticated calls; use cases decide
// through the Authorizer. A user without a readable profile gets the empty role and so no
// permissions. A backend failure while resolving the caller fails the call with its own
// status code.
func UnaryServerInterceptor(idp identity.Provider, roles RoleResolver, log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := resolve(ctx, idp, roles, log, info.FullMethod)
		if err != nil {
			return nil, apperror.ToStatus(err)
		}
		return handler(ctx, req)
	}
}

func resolve(ctx context.Context, idp identity.Provider, roles RoleResolver, log logger.ZapLogger, method string) (context.Context, error) {
	token := TokenFromContext(ctx)
	if token == "" {
		return ctx, nil
	}

	ident, err := idp.GetCurrentIdentity(ctx, token)
	if err != nil {
		if apperror.ServerFault(err) {
			log.Error("failed to resolve identity", zap.String("method", method), zap.Error(err))
			return ctx, err
		}
		log.Warn("failed to resolve identity", zap.String("method", method), zap.Error(err))
		return ctx, nil
	}
	if ident == nil {
		return ctx, nil
	}

	role, err := roles.RoleOf(ctx, ident.UserID)
	if err != nil {
		if apperror.ServerFault(err) {
			log.Error("failed to resolve role", zap.String("user_id", ident.UserID), zap.Error(err))
			return ctx, err
		}
		log.Warn("failed to resolve role", zap.String("user_id", ident.UserID), zap.Error(err))
		role = ""
	}

	return WithPrincipal(ctx, Principal{
		UserID:    ident.UserID,
		Email:     ident.Email,
		Role:      role,
		SessionID: ident.SessionID,
	}), nil
}
