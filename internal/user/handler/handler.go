package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	"github.com/fekuna/omnipos-inventory-service/internal/user"
	"github.com/fekuna/omnipos-inventory-service/internal/user/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/grpcjson"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

const ServiceName = "omnipos.inventory.v1.UserService"

type UserServiceServer interface {
	ListUsers(ctx context.Context, req *dto.ListUsersRequest) (*dto.ListUsersResponse, error)
	GetUser(ctx context.Context, req *dto.GetUserRequest) (*dto.GetUserResponse, error)
	UpdateUserRole(ctx context.Context, req *dto.UpdateUserRoleRequest) (*dto.UpdateUserRoleResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.UnaryMethod(ServiceName, "ListUsers", UserServiceServer.ListUsers),
		grpcjson.UnaryMethod(ServiceName, "GetUser", UserServiceServer.GetUser),
		grpcjson.UnaryMethod(ServiceName, "UpdateUserRole", UserServiceServer.UpdateUserRole),
	},
	Streams: []grpc.StreamDesc{},
}

var _ UserServiceServer = (*UserHandler)(nil)

type UserHandler struct {
	uc     user.UseCase
	logger logger.ZapLogger
}

func NewUserHandler(uc user.UseCase, log logger.ZapLogger) *UserHandler {
	return &UserHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *UserHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *UserHandler) ListUsers(ctx context.Context, req *dto.ListUsersRequest) (*dto.ListUsersResponse, error) {
	users, err := h.uc.ListUsers(ctx)
	if err != nil {
		return nil, h.fail("failed to list users", err)
	}
	return &dto.ListUsersResponse{Users: users}, nil
}

func (h *UserHandler) GetUser(ctx context.Context, req *dto.GetUserRequest) (*dto.GetUserResponse, error) {
	u, err := h.uc.GetUser(ctx, req.ID)
	if err != nil {
		return nil, h.fail("failed to get user", err)
	}
	return &dto.GetUserResponse{User: u}, nil
}

func (h *UserHandler) UpdateUserRole(ctx context.Context, req *dto.UpdateUserRoleRequest) (*dto.UpdateUserRoleResponse, error) {
	u, err := h.uc.UpdateUserRole(ctx, req.ID, policy.Role(req.Role))
	if err != nil {
		return nil, h.fail("failed to update user role", err)
	}
	return &dto.UpdateUserRoleResponse{User: u}, nil
}

func (h *UserHandler) fail(msg string, err error) error {
	if apperror.ServerFault(err) {
		h.logger.Error(msg, zap.Error(err))
	}
	return apperror.ToStatus(err)
}
