package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/grpcjson"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

const ServiceName = "omnipos.inventory.v1.InventoryService"

type InventoryServiceServer interface {
	GetProductInventory(ctx context.Context, req *dto.GetProductInventoryRequest) (*dto.GetProductInventoryResponse, error)
	ListInventory(ctx context.Context, req *dto.ListInventoryRequest) (*dto.ListInventoryResponse, error)
	AdjustInventory(ctx context.Context, req *dto.AdjustInventoryRequest) (*dto.AdjustInventoryResponse, error)
	CreateProductWithInventory(ctx context.Context, req *dto.CreateProductWithInventoryRequest) (*dto.CreateProductWithInventoryResponse, error)
	ListInventoryHistory(ctx context.Context, req *dto.ListInventoryHistoryRequest) (*dto.ListInventoryHistoryResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.UnaryMethod(ServiceName, "GetProductInventory", InventoryServiceServer.GetProductInventory),
		grpcjson.UnaryMethod(ServiceName, "ListInventory", InventoryServiceServer.ListInventory),
		grpcjson.UnaryMethod(ServiceName, "AdjustInventory", InventoryServiceServer.AdjustInventory),
		grpcjson.UnaryMethod(ServiceName, "CreateProductWithInventory", InventoryServiceServer.CreateProductWithInventory),
		grpcjson.UnaryMethod(ServiceName, "ListInventoryHistory", InventoryServiceServer.ListInventoryHistory),
	},
	Streams: []grpc.StreamDesc{},
}

var _ InventoryServiceServer = (*InventoryHandler)(nil)

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *InventoryHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *InventoryHandler) GetProductInventory(ctx context.Context, req *dto.GetProductInventoryRequest) (*dto.GetProductInventoryResponse, error) {
	inv, err := h.uc.GetCurrentQuantity(ctx, req.ProductID)
	if err != nil {
		return nil, h.fail("failed to get inventory", err)
	}
	return &dto.GetProductInventoryResponse{Inventory: inv}, nil
}

func (h *InventoryHandler) ListInventory(ctx context.Context, req *dto.ListInventoryRequest) (*dto.ListInventoryResponse, error) {
	items, err := h.uc.ListInventory(ctx)
	if err != nil {
		return nil, h.fail("failed to list inventory", err)
	}
	return &dto.ListInventoryResponse{Inventory: items}, nil
}

func (h *InventoryHandler) AdjustInventory(ctx context.Context, req *dto.AdjustInventoryRequest) (*dto.AdjustInventoryResponse, error) {
	inv, err := h.uc.Adjust(ctx, &dto.AdjustInventoryInput{
		ProductID:      req.ProductID,
		QuantityChange: req.QuantityChange,
		Type:           model.MovementType(req.Type),
		Reason:         req.Reason,
	})
	if err != nil {
		return nil, h.fail("failed to adjust inventory", err)
	}
	return &dto.AdjustInventoryResponse{Inventory: inv}, nil
}

func (h *InventoryHandler) CreateProductWithInventory(ctx context.Context, req *dto.CreateProductWithInventoryRequest) (*dto.CreateProductWithInventoryResponse, error) {
	p, inv, err := h.uc.CreateWithInitialStock(ctx, &dto.CreateProductInput{
		CategoryID:      req.CategoryID,
		Name:            req.Name,
		Description:     req.Description,
		SKU:             req.SKU,
		Unit:            req.Unit,
		MinStockLevel:   req.MinStockLevel,
		Location:        req.Location,
		InitialQuantity: req.InitialQuantity,
	})
	if err != nil {
		return nil, h.fail("failed to create product with inventory", err)
	}
	return &dto.CreateProductWithInventoryResponse{Product: p, Inventory: inv}, nil
}

func (h *InventoryHandler) ListInventoryHistory(ctx context.Context, req *dto.ListInventoryHistoryRequest) (*dto.ListInventoryHistoryResponse, error) {
	seq, err := h.uc.QueryHistory(ctx, &dto.HistoryFilter{
		ProductID:             req.ProductID,
		ProductNameContains:   req.ProductNameContains,
		CategoryName:          req.CategoryName,
		OperatorEmailContains: req.OperatorEmailContains,
	})
	if err != nil {
		return nil, h.fail("failed to list inventory history", err)
	}

	history := []model.HistoryView{}
	for v := range seq {
		history = append(history, v)
		if req.Limit > 0 && len(history) == req.Limit {
			break
		}
	}
	return &dto.ListInventoryHistoryResponse{History: history}, nil
}

func (h *InventoryHandler) fail(msg string, err error) error {
	if apperror.ServerFault(err) {
		h.logger.Error(msg, zap.Error(err))
	}
	return apperror.ToStatus(err)
}
