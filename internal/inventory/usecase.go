package inventory

import (
	"context"
	"iter"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type UseCase interface {
	// GetCurrentQuantity fails with apperror.NotFoundError when the product has no record.
	GetCurrentQuantity(ctx context.Context, productID string) (*model.Inventory, error)
	ListInventory(ctx context.Context) ([]model.Inventory, error)
	// Adjust applies a signed change and appends exactly one history entry. Adjustments of
	// one product are serialized, and a change that would drive the quantity below zero is
	// rejected with apperror.InsufficientStockError.
	Adjust(ctx context.Context, input *dto.AdjustInventoryInput) (*model.Inventory, error)
	CreateWithInitialStock(ctx context.Context, input *dto.CreateProductInput) (*model.Product, *model.Inventory, error)
	// QueryHistory returns entries newest first. Filters are applied while iterating.
	QueryHistory(ctx context.Context, filter *dto.HistoryFilter) (iter.Seq[model.HistoryView], error)
}

// EventPublisher sends keyed messages. *broker.KafkaProducer implements it.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// ProductIndexer is told about products created through the ledger.
type ProductIndexer interface {
	IndexProduct(ctx context.Context, p *model.Product)
}
