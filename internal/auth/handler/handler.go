package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/auth/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/identity"
	"github.com/fekuna/omnipos-inventory-service/pkg/grpcjson"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

const ServiceName = "omnipos.inventory.v1.AuthService"

type AuthServiceServer interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Logout(ctx context.Context, req *dto.LogoutRequest) (*dto.LogoutResponse, error)
	SignUp(ctx context.Context, req *dto.SignUpRequest) (*dto.SignUpResponse, error)
	Me(ctx context.Context, req *dto.MeRequest) (*dto.MeResponse, error)
	UpdatePassword(ctx context.Context, req *dto.UpdatePasswordRequest) (*dto.UpdatePasswordResponse, error)
	CheckPermissions(ctx context.Context, req *dto.CheckPermissionsRequest) (*dto.CheckPermissionsResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.UnaryMethod(ServiceName, "Login", AuthServiceServer.Login),
		grpcjson.UnaryMethod(ServiceName, "Logout", AuthServiceServer.Logout),
		grpcjson.UnaryMethod(ServiceName, "SignUp", AuthServiceServer.SignUp),
		grpcjson.UnaryMethod(ServiceName, "Me", AuthServiceServer.Me),
		grpcjson.UnaryMethod(ServiceName, "UpdatePassword", AuthServiceServer.UpdatePassword),
		grpcjson.UnaryMethod(ServiceName, "CheckPermissions", AuthServiceServer.CheckPermissions),
	},
	Streams: []grpc.StreamDesc{},
}

var _ AuthServiceServer = (*AuthHandler)(nil)

type AuthHandler struct {
	idp    identity.Provider
	authz  *auth.Authorizer
	logger logger.ZapLogger
}

func NewAuthHandler(idp identity.Provider, authz *auth.Authorizer, log logger.ZapLogger) *AuthHandler {
	return &AuthHandler{
		idp:    idp,
		authz:  authz,
		logger: log,
	}
}

func (h *AuthHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *AuthHandler) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	session, err := h.idp.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, h.fail("failed to log in", err)
	}
	return &dto.LoginResponse{Session: session}, nil
}

func (h *AuthHandler) Logout(ctx context.Context, req *dto.LogoutRequest) (*dto.LogoutResponse, error) {
	token := auth.TokenFromContext(ctx)
	if token == "" {
		return nil, apperror.ToStatus(&apperror.AuthenticationError{Reason: "missing bearer token"})
	}
	if err := h.idp.EndSession(ctx, token); err != nil {
		return nil, h.fail("failed to log out", err)
	}
	return &dto.LogoutResponse{}, nil
}

func (h *AuthHandler) SignUp(ctx context.Context, req *dto.SignUpRequest) (*dto.SignUpResponse, error) {
	ident, err := h.idp.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, h.fail("failed to sign up", err)
	}
	return &dto.SignUpResponse{User: ident}, nil
}

func (h *AuthHandler) Me(ctx context.Context, req *dto.MeRequest) (*dto.MeResponse, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperror.ToStatus(&apperror.AuthenticationError{Reason: "no active session"})
	}
	return &dto.MeResponse{
		UserID:      p.UserID,
		Email:       p.Email,
		Role:        p.Role,
		Permissions: h.authz.Permissions(ctx),
	}, nil
}

func (h *AuthHandler) UpdatePassword(ctx context.Context, req *dto.UpdatePasswordRequest) (*dto.UpdatePasswordResponse, error) {
	token := auth.TokenFromContext(ctx)
	if token == "" {
		return nil, apperror.ToStatus(&apperror.AuthenticationError{Reason: "missing bearer token"})
	}
	if err := h.idp.UpdatePassword(ctx, token, req.NewPassword); err != nil {
		return nil, h.fail("failed to update password", err)
	}
	return &dto.UpdatePasswordResponse{}, nil
}

func (h *AuthHandler) CheckPermissions(ctx context.Context, req *dto.CheckPermissionsRequest) (*dto.CheckPermissionsResponse, error) {
	return &dto.CheckPermissionsResponse{Allowed: h.authz.Check(ctx, req.Permissions, req.Any)}, nil
}

func (h *AuthHandler) fail(msg string, err error) error {
	if apperror.ServerFault(err) {
		h.logger.Error(msg, zap.Error(err))
	}
	return apperror.ToStatus(err)
}
