package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/category"
	"github.com/fekuna/omnipos-inventory-service/internal/category/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/grpcjson"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

const ServiceName = "omnipos.inventory.v1.CategoryService"

type CategoryServiceServer interface {
	ListCategories(ctx context.Context, req *dto.ListCategoriesRequest) (*dto.ListCategoriesResponse, error)
	CreateCategory(ctx context.Context, req *dto.CreateCategoryRequest) (*dto.CreateCategoryResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CategoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.UnaryMethod(ServiceName, "ListCategories", CategoryServiceServer.ListCategories),
		grpcjson.UnaryMethod(ServiceName, "CreateCategory", CategoryServiceServer.CreateCategory),
	},
	Streams: []grpc.StreamDesc{},
}

var _ CategoryServiceServer = (*CategoryHandler)(nil)

type CategoryHandler struct {
	uc     category.UseCase
	logger logger.ZapLogger
}

func NewCategoryHandler(uc category.UseCase, log logger.ZapLogger) *CategoryHandler {
	return &CategoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *CategoryHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *CategoryHandler) CreateCategory(ctx context.Context, req *dto.CreateCategoryRequest) (*dto.CreateCategoryResponse, error) {
	cat, err := h.uc.CreateCategory(ctx, &dto.CreateCategoryInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		if apperror.ServerFault(err) {
			h.logger.Error("failed to create category", zap.Error(err))
		}
		return nil, apperror.ToStatus(err)
	}

	return &dto.CreateCategoryResponse{Category: cat}, nil
}

func (h *CategoryHandler) ListCategories(ctx context.Context, req *dto.ListCategoriesRequest) (*dto.ListCategoriesResponse, error) {
	cats, err := h.uc.ListCategories(ctx)
	if err != nil {
		if apperror.ServerFault(err) {
			h.logger.Error("failed to list categories", zap.Error(err))
		}
		return nil, apperror.ToStatus(err)
	}

	return &dto.ListCategoriesResponse{Categories: cats}, nil
}
