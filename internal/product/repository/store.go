package repository

import (
	"context"
	"errors"

	categoryrepo "github.com/fekuna/omnipos-inventory-service/internal/category/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
)

type StoreRepository struct {
	store store.Store
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) Create(ctx context.Context, p *model.Product) error {
	_, err := r.store.Insert(ctx, store.TableProducts, ToRow(p))
	return err
}

func (r *StoreRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, store.TableProducts, id)
}

func (r *StoreRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	row, err := store.Get(ctx, r.store, store.TableProducts, id)
	if errors.Is(err, store.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p := ToModel(row)
	if p.CategoryID != "" {
		catRow, err := store.Get(ctx, r.store, store.TableCategories, p.CategoryID)
		if err != nil && !errors.Is(err, store.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			c := categoryrepo.ToModel(catRow)
			p.Category = &c
		}
	}
	return &p, nil
}

func (r *StoreRepository) FindAll(ctx context.Context) ([]model.Product, error) {
	rows, err := r.store.Select(ctx, store.TableProducts, nil, store.Asc("name"))
	if err != nil {
		return nil, err
	}
	return r.withCategories(ctx, rows)
}

func (r *StoreRepository) Search(ctx context.Context, query string) ([]model.Product, error) {
	byName, err := r.store.Select(ctx, store.TableProducts,
		store.Filter{store.Contains("name", query)}, store.Asc("name"))
	if err != nil {
		return nil, err
	}
	bySKU, err := r.store.Select(ctx, store.TableProducts,
		store.Filter{store.Contains("sku", query)}, store.Asc("name"))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(byName))
	rows := make([]store.Row, 0, len(byName)+len(bySKU))
	for _, row := range append(byName, bySKU...) {
		id := row.String("id")
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, row)
	}
	return r.withCategories(ctx, rows)
}

func (r *StoreRepository) IsSKUUnique(ctx context.Context, sku string) (bool, error) {
	_, err := store.First(ctx, r.store, store.TableProducts, store.Filter{store.Eq("sku", sku)})
	if errors.Is(err, store.ErrNoRows) {
		return true, nil
	}
	return false, err
}

func (r *StoreRepository) withCategories(ctx context.Context, rows []store.Row) ([]model.Product, error) {
	cats, err := r.store.Select(ctx, store.TableCategories, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Category, len(cats))
	for _, row := range cats {
		c := categoryrepo.ToModel(row)
		byID[c.ID] = c
	}

	products := make([]model.Product, len(rows))
	for i, row := range rows {
		products[i] = ToModel(row)
		if c, ok := byID[products[i].CategoryID]; ok {
			products[i].Category = &c
		}
	}
	return products, nil
}

func ToRow(p *model.Product) store.Row {
	return store.Row{
		"id":              p.ID,
		"category_id":     nullable(p.CategoryID),
		"name":            p.Name,
		"description":     p.Description,
		"sku":             p.SKU,
		"unit":            p.Unit,
		"min_stock_level": p.MinStockLevel,
		"created_at":      p.CreatedAt,
		"updated_at":      p.UpdatedAt,
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func ToModel(row store.Row) model.Product {
	return model.Product{
		BaseModel: model.BaseModel{
			ID:        row.String("id"),
			CreatedAt: row.Time("created_at"),
			UpdatedAt: row.Time("updated_at"),
		},
		CategoryID:    row.String("category_id"),
		Name:          row.String("name"),
		Description:   row.OptString("description"),
		SKU:           row.String("sku"),
		Unit:          row.String("unit"),
		MinStockLevel: row.Int64("min_stock_level"),
	}
}
