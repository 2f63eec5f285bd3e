package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/product"
	"github.com/fekuna/omnipos-inventory-service/internal/product/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/grpcjson"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

const ServiceName = "omnipos.inventory.v1.ProductService"

type ProductServiceServer interface {
	GetProduct(ctx context.Context, req *dto.GetProductRequest) (*dto.GetProductResponse, error)
	ListProducts(ctx context.Context, req *dto.ListProductsRequest) (*dto.ListProductsResponse, error)
	SearchProducts(ctx context.Context, req *dto.SearchProductsRequest) (*dto.SearchProductsResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProductServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.UnaryMethod(ServiceName, "GetProduct", ProductServiceServer.GetProduct),
		grpcjson.UnaryMethod(ServiceName, "ListProducts", ProductServiceServer.ListProducts),
		grpcjson.UnaryMethod(ServiceName, "SearchProducts", ProductServiceServer.SearchProducts),
	},
	Streams: []grpc.StreamDesc{},
}

var _ ProductServiceServer = (*ProductHandler)(nil)

type ProductHandler struct {
	uc     product.UseCase
	logger logger.ZapLogger
}

func NewProductHandler(uc product.UseCase, log logger.ZapLogger) *ProductHandler {
	return &ProductHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *ProductHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *ProductHandler) GetProduct(ctx context.Context, req *dto.GetProductRequest) (*dto.GetProductResponse, error) {
	p, err := h.uc.GetProduct(ctx, req.ID)
	if err != nil {
		return nil, h.fail("failed to get product", err)
	}
	return &dto.GetProductResponse{Product: p}, nil
}

func (h *ProductHandler) ListProducts(ctx context.Context, req *dto.ListProductsRequest) (*dto.ListProductsResponse, error) {
	products, err := h.uc.ListProducts(ctx)
	if err != nil {
		return nil, h.fail("failed to list products", err)
	}
	return &dto.ListProductsResponse{Products: products}, nil
}

func (h *ProductHandler) SearchProducts(ctx context.Context, req *dto.SearchProductsRequest) (*dto.SearchProductsResponse, error) {
	products, err := h.uc.SearchProducts(ctx, req.Query)
	if err != nil {
		return nil, h.fail("failed to search products", err)
	}
	return &dto.SearchProductsResponse{Products: products}, nil
}

func (h *ProductHandler) fail(msg string, err error) error {
	if apperror.ServerFault(err) {
		h.logger.Error(msg, zap.Error(err))
	}
	return apperror.ToStatus(err)
}
