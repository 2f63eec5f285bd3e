package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/store"
)

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Insert(ctx, store.TableProducts, store.Row{"id": "p1", "name": "Widget"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	row, err := store.Get(ctx, s, store.TableProducts, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.String("name") != "Widget" {
		t.Fatalf("name = %q", row.String("name"))
	}

	row["name"] = "mutated"
	again, _ := store.Get(ctx, s, store.TableProducts, "p1")
	if again.String("name") != "Widget" {
		t.Fatal("returned rows must be copies")
	}
}

func TestInsertDuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	s := New()

	s.Insert(ctx, store.TableProducts, store.Row{"id": "p1"})
	_, err := s.Insert(ctx, store.TableProducts, store.Row{"id": "p1"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if _, err := s.Insert(ctx, store.TableProducts, store.Row{"name": "no id"}); err == nil {
		t.Fatal("expected error for row without id")
	}
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Update(ctx, store.TableInventory, "nope", store.Row{"quantity": 1}); !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("update err = %v", err)
	}
	if err := s.Delete(ctx, store.TableInventory, "nope"); !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("delete err = %v", err)
	}
}

func TestUpdateKeepsID(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Insert(ctx, store.TableInventory, store.Row{"id": "i1", "quantity": int64(3)})

	row, err := s.Update(ctx, store.TableInventory, "i1", store.Row{"id": "other", "quantity": int64(7)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if row.String("id") != "i1" || row.Int64("quantity") != 7 {
		t.Fatalf("row = %v", row)
	}
}

func TestUpsertMerges(t *testing.T) {
	ctx := context.Background()
	s := New()

	s.Upsert(ctx, store.TableUserProfiles, store.Row{"id": "u1", "email": "a@example.com", "role": "user"})
	row, err := s.Upsert(ctx, store.TableUserProfiles, store.Row{"id": "u1", "role": "manager"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if row.String("email") != "a@example.com" || row.String("role") != "manager" {
		t.Fatalf("row = %v", row)
	}
	if s.Count(store.TableUserProfiles) != 1 {
		t.Fatalf("count = %d", s.Count(store.TableUserProfiles))
	}
}

func TestSelectFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Insert(ctx, store.TableInventoryHistory, store.Row{"id": "h1", "product_id": "p1", "created_at": base})
	s.Insert(ctx, store.TableInventoryHistory, store.Row{"id": "h2", "product_id": "p2", "created_at": base.Add(time.Hour)})
	s.Insert(ctx, store.TableInventoryHistory, store.Row{"id": "h3", "product_id": "p1", "created_at": base.Add(2 * time.Hour)})
	s.Insert(ctx, store.TableInventoryHistory, store.Row{"id": "h4", "product_id": "p1", "created_at": base.Add(2 * time.Hour)})

	rows, err := s.Select(ctx, store.TableInventoryHistory,
		store.Filter{store.Eq("product_id", "p1")}, store.Desc("created_at"))
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	want := []string{"h4", "h3", "h1"}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, id := range want {
		if rows[i].String("id") != id {
			t.Errorf("rows[%d] = %s, want %s", i, rows[i].String("id"), id)
		}
	}
}

func TestSelectContainsIgnoresCase(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Insert(ctx, store.TableProducts, store.Row{"id": "p1", "name": "Blue Widget"})
	s.Insert(ctx, store.TableProducts, store.Row{"id": "p2", "name": "Gadget"})

	rows, _ := s.Select(ctx, store.TableProducts, store.Filter{store.Contains("name", "WIDG")})
	if len(rows) != 1 || rows[0].String("id") != "p1" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Insert(ctx, store.TableInventory, store.Row{"id": "i1", "quantity": int64(10)})

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.Update(ctx, store.TableInventory, "i1", store.Row{"quantity": int64(0)}); err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, store.TableInventoryHistory, store.Row{"id": "h1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	row, _ := store.Get(ctx, s, store.TableInventory, "i1")
	if row.Int64("quantity") != 10 {
		t.Fatalf("quantity = %d, want 10", row.Int64("quantity"))
	}
	if s.Count(store.TableInventoryHistory) != 0 {
		t.Fatal("history insert should have been rolled back")
	}
}

func TestInTxRollbackKeepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Insert(ctx, store.TableInventory, store.Row{"id": "i1", "quantity": int64(10)})
	s.Insert(ctx, store.TableInventory, store.Row{"id": "i3", "quantity": int64(7)})
	s.Insert(ctx, store.TableProducts, store.Row{"id": "p1", "name": "Hammer"})

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		tx.Update(ctx, store.TableInventory, "i1", store.Row{"quantity": int64(4)})
		tx.Upsert(ctx, store.TableInventory, store.Row{"id": "i2", "quantity": int64(1)})
		tx.Delete(ctx, store.TableProducts, "p1")
		tx.Insert(ctx, store.TableProducts, store.Row{"id": "p1", "name": "Replaced"})

		// committed by another caller while the transaction is open
		if _, err := s.Insert(ctx, store.TableAuthSessions, store.Row{"id": "sess-1", "user_id": "u1"}); err != nil {
			t.Fatalf("outside insert: %v", err)
		}
		if _, err := s.Update(ctx, store.TableInventory, "i3", store.Row{"quantity": int64(8)}); err != nil {
			t.Fatalf("outside update: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	if n := s.Count(store.TableAuthSessions); n != 1 {
		t.Fatalf("sessions after rollback = %d, want 1", n)
	}
	inv, _ := store.Get(ctx, s, store.TableInventory, "i1")
	if inv.Int64("quantity") != 10 {
		t.Fatalf("quantity = %d, want 10", inv.Int64("quantity"))
	}
	if other, _ := store.Get(ctx, s, store.TableInventory, "i3"); other.Int64("quantity") != 8 {
		t.Fatalf("outside update lost, quantity = %d", other.Int64("quantity"))
	}
	if _, err := store.Get(ctx, s, store.TableInventory, "i2"); !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("upserted row should be gone, err = %v", err)
	}
	p, err := store.Get(ctx, s, store.TableProducts, "p1")
	if err != nil || p.String("name") != "Hammer" {
		t.Fatalf("product = %v, %v; want the original restored", p, err)
	}
}

func TestInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		_, err := tx.Insert(ctx, store.TableInventory, store.Row{"id": "i1", "quantity": int64(1)})
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if s.Count(store.TableInventory) != 1 {
		t.Fatal("insert should be committed")
	}
}

func TestInjectFault(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("disk on fire")

	s.InjectFault(MethodInsert, store.TableInventory, boom)
	if _, err := s.Insert(ctx, store.TableInventory, store.Row{"id": "i1"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.Insert(ctx, store.TableProducts, store.Row{"id": "p1"}); err != nil {
		t.Fatalf("other tables must be unaffected: %v", err)
	}

	s.ClearFaults()
	if _, err := s.Insert(ctx, store.TableInventory, store.Row{"id": "i1"}); err != nil {
		t.Fatalf("after clear: %v", err)
	}
	if s.Calls() != 3 {
		t.Fatalf("calls = %d, want 3", s.Calls())
	}
}

func TestLatencyHonoursContext(t *testing.T) {
	s := New()
	s.SetLatency(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Select(ctx, store.TableProducts, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("select should return as soon as the context expires")
	}
}
