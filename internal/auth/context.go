package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/fekuna/omnipos-inventory-service/internal/policy"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Email     string
	Role      policy.Role
	SessionID string
}

// SystemUserID is recorded as the operator of changes made by background consumers.
const SystemUserID = "system"

// SystemPrincipal is used by internal consumers that act without a user session.
var SystemPrincipal = Principal{UserID: SystemUserID, Role: policy.RoleAdmin}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// TokenFromContext returns the bearer token of the incoming gRPC call, or "".
func TokenFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}

	token := strings.TrimSpace(vals[0])
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
