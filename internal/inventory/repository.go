package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

// ErrNoTransactions is returned by InTx when the backing store cannot group writes.
var ErrNoTransactions = errors.New("store does not support transactions")

type Repository interface {
	// GetByProduct returns nil without error when the product has no inventory record.
	GetByProduct(ctx context.Context, productID string) (*model.Inventory, error)
	// FindAll returns every record with its product attached, ordered by product name.
	FindAll(ctx context.Context) ([]model.Inventory, error)
	Create(ctx context.Context, inv *model.Inventory) error
	Delete(ctx context.Context, id string) error
	UpdateQuantity(ctx context.Context, id string, quantity int64, updatedAt time.Time) error

	LogHistory(ctx context.Context, entry *model.InventoryHistory) error
	// ListHistory returns entries newest first, joined with product, category and operator.
	// An empty productID lists every product.
	ListHistory(ctx context.Context, productID string) ([]model.HistoryView, error)

	// Transactional reports whether InTx is available.
	Transactional() bool
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}
