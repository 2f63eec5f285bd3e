package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	categoryrepo "github.com/fekuna/omnipos-inventory-service/internal/category/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	productrepo "github.com/fekuna/omnipos-inventory-service/internal/product/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
	userrepo "github.com/fekuna/omnipos-inventory-service/internal/user/repository"
)

type StoreRepository struct {
	store store.Store
	// inTx makes GetByProduct lock the row it reads, so a concurrent adjustment on
	// another replica waits for this transaction to finish.
	inTx bool
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) GetByProduct(ctx context.Context, productID string) (*model.Inventory, error) {
	filter := store.Filter{store.Eq("product_id", productID)}

	var rows []store.Row
	var err error
	if r.inTx {
		rows, err = store.SelectForUpdate(ctx, r.store, store.TableInventory, filter)
	} else {
		rows, err = r.store.Select(ctx, store.TableInventory, filter)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	inv, err := toInventory(rows[0])
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *StoreRepository) FindAll(ctx context.Context) ([]model.Inventory, error) {
	rows, err := r.store.Select(ctx, store.TableInventory, nil)
	if err != nil {
		return nil, err
	}
	j, err := r.loadJoins(ctx, false)
	if err != nil {
		return nil, err
	}

	items := make([]model.Inventory, len(rows))
	for i, row := range rows {
		if items[i], err = toInventory(row); err != nil {
			return nil, err
		}
		items[i].Product = j.product(items[i].ProductID)
	}

	sort.SliceStable(items, func(a, b int) bool {
		return productName(items[a].Product) < productName(items[b].Product)
	})
	return items, nil
}

func (r *StoreRepository) Create(ctx context.Context, inv *model.Inventory) error {
	_, err := r.store.Insert(ctx, store.TableInventory, store.Row{
		"id":         inv.ID,
		"product_id": inv.ProductID,
		"quantity":   inv.Quantity,
		"location":   inv.Location,
		"created_at": inv.CreatedAt,
		"updated_at": inv.UpdatedAt,
	})
	return err
}

func (r *StoreRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, store.TableInventory, id)
}

func (r *StoreRepository) UpdateQuantity(ctx context.Context, id string, quantity int64, updatedAt time.Time) error {
	_, err := r.store.Update(ctx, store.TableInventory, id, store.Row{
		"quantity":   quantity,
		"updated_at": updatedAt,
	})
	return err
}

func (r *StoreRepository) LogHistory(ctx context.Context, h *model.InventoryHistory) error {
	_, err := r.store.Insert(ctx, store.TableInventoryHistory, store.Row{
		"id":                h.ID,
		"product_id":        h.ProductID,
		"quantity_change":   h.QuantityChange,
		"previous_quantity": h.PreviousQuantity,
		"new_quantity":      h.NewQuantity,
		"type":              string(h.Type),
		"reason":            h.Reason,
		"created_by":        h.CreatedBy,
		"created_at":        h.CreatedAt,
	})
	return err
}

func (r *StoreRepository) ListHistory(ctx context.Context, productID string) ([]model.HistoryView, error) {
	var filter store.Filter
	if productID != "" {
		filter = store.Filter{store.Eq("product_id", productID)}
	}

	rows, err := r.store.Select(ctx, store.TableInventoryHistory, filter, store.Desc("created_at"))
	if err != nil {
		return nil, err
	}
	j, err := r.loadJoins(ctx, true)
	if err != nil {
		return nil, err
	}

	views := make([]model.HistoryView, len(rows))
	for i, row := range rows {
		h, err := toHistory(row)
		if err != nil {
			return nil, err
		}
		views[i] = model.HistoryView{InventoryHistory: h, Product: j.product(h.ProductID)}
		if views[i].Product != nil {
			views[i].Category = views[i].Product.Category
		}
		if u, ok := j.users[h.CreatedBy]; ok {
			views[i].Operator = &u
		}
	}
	return views, nil
}

func (r *StoreRepository) Transactional() bool {
	_, ok := r.store.(store.Transactor)
	return ok
}

func (r *StoreRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx inventory.Repository) error) error {
	t, ok := r.store.(store.Transactor)
	if !ok {
		return inventory.ErrNoTransactions
	}
	return t.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, &StoreRepository{store: tx, inTx: true})
	})
}

// joins holds the rows referenced by inventory and history entries, loaded once per query.
type joins struct {
	products   map[string]model.Product
	categories map[string]model.Category
	users      map[string]model.UserProfile
}

func (r *StoreRepository) loadJoins(ctx context.Context, withUsers bool) (*joins, error) {
	j := &joins{
		products:   map[string]model.Product{},
		categories: map[string]model.Category{},
		users:      map[string]model.UserProfile{},
	}

	products, err := r.store.Select(ctx, store.TableProducts, nil)
	if err != nil {
		return nil, err
	}
	for _, row := range products {
		p := productrepo.ToModel(row)
		j.products[p.ID] = p
	}

	categories, err := r.store.Select(ctx, store.TableCategories, nil)
	if err != nil {
		return nil, err
	}
	for _, row := range categories {
		c := categoryrepo.ToModel(row)
		j.categories[c.ID] = c
	}

	if withUsers {
		users, err := r.store.Select(ctx, store.TableUserProfiles, nil)
		if err != nil {
			return nil, err
		}
		for _, row := range users {
			u := userrepo.ToModel(row)
			j.users[u.ID] = u
		}
	}
	return j, nil
}

func (j *joins) product(id string) *model.Product {
	p, ok := j.products[id]
	if !ok {
		return nil
	}
	if c, ok := j.categories[p.CategoryID]; ok {
		p.Category = &c
	}
	return &p
}

func productName(p *model.Product) string {
	if p == nil {
		return ""
	}
	return strings.ToLower(p.Name)
}

// toInventory and toHistory read the ledger columns strictly: a quantity that does not
// parse is an error, never 0.
func toInventory(row store.Row) (model.Inventory, error) {
	quantity, err := row.ParseInt64("quantity")
	if err != nil {
		return model.Inventory{}, fmt.Errorf("inventory %s: %w", row.String("id"), err)
	}
	updatedAt, err := row.ParseTime("updated_at")
	if err != nil {
		return model.Inventory{}, fmt.Errorf("inventory %s: %w", row.String("id"), err)
	}
	return model.Inventory{
		BaseModel: model.BaseModel{
			ID:        row.String("id"),
			CreatedAt: row.Time("created_at"),
			UpdatedAt: updatedAt,
		},
		ProductID: row.String("product_id"),
		Quantity:  quantity,
		Location:  row.OptString("location"),
	}, nil
}

func toHistory(row store.Row) (model.InventoryHistory, error) {
	var quantities [3]int64
	for i, col := range []string{"quantity_change", "previous_quantity", "new_quantity"} {
		n, err := row.ParseInt64(col)
		if err != nil {
			return model.InventoryHistory{}, fmt.Errorf("inventory history %s: %w", row.String("id"), err)
		}
		quantities[i] = n
	}
	createdAt, err := row.ParseTime("created_at")
	if err != nil {
		return model.InventoryHistory{}, fmt.Errorf("inventory history %s: %w", row.String("id"), err)
	}
	return model.InventoryHistory{
		ID:               row.String("id"),
		ProductID:        row.String("product_id"),
		QuantityChange:   quantities[0],
		PreviousQuantity: quantities[1],
		NewQuantity:      quantities[2],
		Type:             model.MovementType(row.String("type")),
		Reason:           row.OptString("reason"),
		CreatedBy:        row.String("created_by"),
		CreatedAt:        createdAt,
	}, nil
}
