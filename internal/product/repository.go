package product

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id string) error
	// FindByID returns nil without error when the product does not exist.
	FindByID(ctx context.Context, id string) (*model.Product, error)
	// FindAll returns every product ordered by name with its category attached.
	FindAll(ctx context.Context) ([]model.Product, error)
	// Search matches the query against name and SKU, ignoring case.
	Search(ctx context.Context, query string) ([]model.Product, error)
	IsSKUUnique(ctx context.Context, sku string) (bool, error)
}
