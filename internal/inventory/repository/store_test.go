package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
	"github.com/fekuna/omnipos-inventory-service/internal/store/memory"
)

// lockingStore records locking reads and hands itself to transactions.
type lockingStore struct {
	*memory.Store
	locked []string
}

func (s *lockingStore) SelectForUpdate(ctx context.Context, table string, filter store.Filter) ([]store.Row, error) {
	s.locked = append(s.locked, table)
	return s.Store.Select(ctx, table, filter)
}

func (s *lockingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, _ store.Store) error {
		return fn(ctx, s)
	})
}

func TestGetByProductLocksRowInsideTransaction(t *testing.T) {
	ctx := context.Background()
	ls := &lockingStore{Store: memory.New()}
	ls.Insert(ctx, store.TableInventory, store.Row{"id": "i1", "product_id": "p1", "quantity": int64(5), "updated_at": time.Now()})
	repo := NewStoreRepository(store.Instrument(ls, store.Options{}))

	if _, err := repo.GetByProduct(ctx, "p1"); err != nil {
		t.Fatalf("GetByProduct: %v", err)
	}
	if len(ls.locked) != 0 {
		t.Fatalf("read outside a transaction took locks on %v", ls.locked)
	}

	err := repo.InTx(ctx, func(ctx context.Context, tx inventory.Repository) error {
		inv, err := tx.GetByProduct(ctx, "p1")
		if err != nil || inv == nil || inv.Quantity != 5 {
			t.Fatalf("GetByProduct in tx = %+v, %v", inv, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if len(ls.locked) != 1 || ls.locked[0] != store.TableInventory {
		t.Fatalf("locked = %v, want one inventory read", ls.locked)
	}
}

func TestMalformedQuantityIsAnError(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	now := time.Now()
	mem.Insert(ctx, store.TableInventory, store.Row{"id": "i1", "product_id": "p1", "quantity": "ten", "updated_at": now})
	mem.Insert(ctx, store.TableInventoryHistory, store.Row{
		"id":                "h1",
		"product_id":        "p1",
		"quantity_change":   int64(-2),
		"previous_quantity": "12x",
		"new_quantity":      int64(10),
		"type":              "out",
		"created_by":        "u1",
		"created_at":        now,
	})
	repo := NewStoreRepository(mem)

	if inv, err := repo.GetByProduct(ctx, "p1"); err == nil {
		t.Fatalf("GetByProduct = %+v, want error", inv)
	}
	if _, err := repo.FindAll(ctx); err == nil {
		t.Fatal("FindAll should fail on a malformed quantity")
	}
	if _, err := repo.ListHistory(ctx, "p1"); err == nil {
		t.Fatal("ListHistory should fail on a malformed previous_quantity")
	}
}

func TestStringQuantityParses(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	mem.Insert(ctx, store.TableInventory, store.Row{"id": "i1", "product_id": "p1", "quantity": "42", "updated_at": time.Now()})

	inv, err := NewStoreRepository(mem).GetByProduct(ctx, "p1")
	if err != nil || inv == nil || inv.Quantity != 42 {
		t.Fatalf("GetByProduct = %+v, %v", inv, err)
	}
}
