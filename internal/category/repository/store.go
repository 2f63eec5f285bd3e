package repository

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
)

type StoreRepository struct {
	store store.Store
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) Create(ctx context.Context, c *model.Category) error {
	_, err := r.store.Insert(ctx, store.TableCategories, store.Row{
		"id":          c.ID,
		"name":        c.Name,
		"description": c.Description,
		"created_at":  c.CreatedAt,
		"updated_at":  c.UpdatedAt,
	})
	return err
}

func (r *StoreRepository) FindByID(ctx context.Context, id string) (*model.Category, error) {
	return r.first(ctx, store.Filter{store.Eq("id", id)})
}

func (r *StoreRepository) FindByName(ctx context.Context, name string) (*model.Category, error) {
	return r.first(ctx, store.Filter{store.Eq("name", name)})
}

func (r *StoreRepository) first(ctx context.Context, filter store.Filter) (*model.Category, error) {
	row, err := store.First(ctx, r.store, store.TableCategories, filter)
	if errors.Is(err, store.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := ToModel(row)
	return &c, nil
}

func (r *StoreRepository) FindAll(ctx context.Context) ([]model.Category, error) {
	rows, err := r.store.Select(ctx, store.TableCategories, nil, store.Asc("name"))
	if err != nil {
		return nil, err
	}

	categories := make([]model.Category, len(rows))
	for i, row := range rows {
		categories[i] = ToModel(row)
	}
	return categories, nil
}

func ToModel(row store.Row) model.Category {
	return model.Category{
		BaseModel: model.BaseModel{
			ID:        row.String("id"),
			CreatedAt: row.Time("created_at"),
			UpdatedAt: row.Time("updated_at"),
		},
		Name:        row.String("name"),
		Description: row.OptString("description"),
	}
}
