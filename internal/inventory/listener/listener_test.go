package listener

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	categoryrepo "github.com/fekuna/omnipos-inventory-service/internal/category/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-inventory-service/internal/lock"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	productrepo "github.com/fekuna/omnipos-inventory-service/internal/product/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
	"github.com/fekuna/omnipos-inventory-service/internal/store/memory"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

// scriptedReader returns its messages in order, then cancels the listener.
type scriptedReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	errs   []error
	cancel context.CancelFunc
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, context.Canceled
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func newLedger(t *testing.T) (*memory.Store, inventory.UseCase) {
	t.Helper()
	mem := seedLedger(t)
	return mem, ledgerOn(mem)
}

func seedLedger(t *testing.T) *memory.Store {
	t.Helper()
	mem := memory.New()
	ctx := context.Background()
	now := time.Now()
	for _, r := range []struct {
		table string
		row   store.Row
	}{
		{store.TableProducts, store.Row{"id": "p1", "name": "Latte", "sku": "LAT", "unit": "cup", "min_stock_level": int64(0)}},
		{store.TableProducts, store.Row{"id": "p2", "name": "Muffin", "sku": "MUF", "unit": "pcs", "min_stock_level": int64(0)}},
		{store.TableInventory, store.Row{"id": "i1", "product_id": "p1", "quantity": int64(10)}},
		{store.TableInventory, store.Row{"id": "i2", "product_id": "p2", "quantity": int64(1)}},
	} {
		r.row["created_at"], r.row["updated_at"] = now, now
		if _, err := mem.Insert(ctx, r.table, r.row); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return mem
}

func ledgerOn(s store.Store) inventory.UseCase {
	return usecase.NewInventoryUseCase(
		repository.NewStoreRepository(s),
		productrepo.NewStoreRepository(s),
		categoryrepo.NewStoreRepository(s),
		lock.NewKeyedMutex(),
		auth.NewAuthorizer(policy.MustNewEngine(policy.DefaultPermissionSet()), nil),
		logger.NewNop(),
	)
}

func orderMessage(t *testing.T, eventType string, items ...OrderItemPayload) kafka.Message {
	t.Helper()
	value, err := json.Marshal(OrderCreatedEvent{
		EventID:   "e1",
		EventType: eventType,
		Payload:   OrderPayload{ID: "order-1", Items: items},
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Value: value}
}

func quantity(t *testing.T, uc inventory.UseCase, productID string) int64 {
	t.Helper()
	ctx := auth.WithPrincipal(context.Background(), auth.SystemPrincipal)
	inv, err := uc.GetCurrentQuantity(ctx, productID)
	if err != nil {
		t.Fatalf("GetCurrentQuantity: %v", err)
	}
	return inv.Quantity
}

func TestListenerDeductsOrderItems(t *testing.T) {
	mem, uc := newLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{
		cancel: cancel,
		errs:   []error{errors.New("broker hiccup")},
		msgs: []kafka.Message{
			{Value: []byte("not json")},
			orderMessage(t, "OrderCancelled", OrderItemPayload{ProductID: "p1", Quantity: 9}),
			orderMessage(t, EventOrderCreated,
				OrderItemPayload{ProductID: "p1", Quantity: 2},
				OrderItemPayload{ProductID: "p2", Quantity: 5},
				OrderItemPayload{ProductID: "p1", Quantity: 0},
				OrderItemPayload{ProductID: "p1", Quantity: 1},
			),
		},
	}
	l := NewInventoryListener(reader, uc, logger.NewNop())
	l.retryDelay = time.Millisecond

	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}

	if q := quantity(t, uc, "p1"); q != 7 {
		t.Fatalf("p1 quantity = %d, want 7", q)
	}
	// the muffin order exceeds stock and is left untouched
	if q := quantity(t, uc, "p2"); q != 1 {
		t.Fatalf("p2 quantity = %d, want 1", q)
	}
	if n := mem.Count(store.TableInventoryHistory); n != 2 {
		t.Fatalf("history entries = %d, want 2", n)
	}

	seq, err := uc.QueryHistory(auth.WithPrincipal(context.Background(), auth.SystemPrincipal), &dto.HistoryFilter{ProductID: "p1"})
	if err != nil {
		t.Fatalf("QueryHistory: %v", err)
	}
	for v := range seq {
		if v.CreatedBy != auth.SystemUserID || v.Type != "out" || v.Reason == nil || *v.Reason != "Order Sale order-1" {
			t.Fatalf("entry = %+v", v.InventoryHistory)
		}
	}
}

type flakyUseCase struct {
	inventory.UseCase
	failures int
	calls    int
}

func (u *flakyUseCase) Adjust(ctx context.Context, input *dto.AdjustInventoryInput) (*model.Inventory, error) {
	u.calls++
	if u.calls <= u.failures {
		return nil, &apperror.TimeoutError{Op: "lock product " + input.ProductID, Err: context.DeadlineExceeded}
	}
	if p, ok := auth.PrincipalFromContext(ctx); !ok || p.Role != policy.RoleAdmin {
		return nil, errors.New("missing system principal")
	}
	return &model.Inventory{}, nil
}

func TestListenerRetriesTransientFailures(t *testing.T) {
	uc := &flakyUseCase{failures: 2}
	l := NewInventoryListener(nil, uc, logger.NewNop())
	l.retryDelay = time.Millisecond

	err := l.adjust(auth.WithPrincipal(context.Background(), auth.SystemPrincipal), &dto.AdjustInventoryInput{ProductID: "p1", QuantityChange: -1})
	if err != nil || uc.calls != 3 {
		t.Fatalf("adjust = %v after %d calls", err, uc.calls)
	}

	uc = &flakyUseCase{failures: maxAttempts}
	l.uc = uc
	err = l.adjust(context.Background(), &dto.AdjustInventoryInput{ProductID: "p1", QuantityChange: -1})
	if !errors.Is(err, apperror.ErrTimeout) || uc.calls != maxAttempts {
		t.Fatalf("adjust = %v after %d calls", err, uc.calls)
	}
}

// brokenLedgerStore has no transactions. It accepts the first inventory update, then
// fails every history insert and every later inventory update, so a saga cannot undo
// the quantity it wrote.
type brokenLedgerStore struct {
	store.Store
	mu      sync.Mutex
	updates int
}

func (s *brokenLedgerStore) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	if table == store.TableInventoryHistory {
		return nil, errors.New("history disk full")
	}
	return s.Store.Insert(ctx, table, row)
}

func (s *brokenLedgerStore) Update(ctx context.Context, table, id string, patch store.Row) (store.Row, error) {
	if table == store.TableInventory {
		s.mu.Lock()
		s.updates++
		n := s.updates
		s.mu.Unlock()
		if n > 1 {
			return nil, errors.New("connection reset")
		}
	}
	return s.Store.Update(ctx, table, id, patch)
}

func TestListenerDoesNotRetryUncompensatedAdjustment(t *testing.T) {
	mem := seedLedger(t)
	broken := &brokenLedgerStore{Store: mem}
	uc := ledgerOn(store.Instrument(broken, store.Options{}))
	l := NewInventoryListener(nil, uc, logger.NewNop())
	l.retryDelay = time.Millisecond

	ctx := auth.WithPrincipal(context.Background(), auth.SystemPrincipal)
	err := l.adjust(ctx, &dto.AdjustInventoryInput{
		ProductID:      "p1",
		QuantityChange: -3,
		Type:           model.MovementOut,
		CreatedBy:      auth.SystemUserID,
	})

	var partial *apperror.PartialFailureError
	if !errors.As(err, &partial) || partial.Compensated() {
		t.Fatalf("adjust = %v, want uncompensated PartialFailureError", err)
	}
	if apperror.Retryable(err) {
		t.Fatal("uncompensated partial failure must not be retryable")
	}
	if broken.updates != 2 {
		t.Fatalf("inventory updates = %d, want one write and one failed compensation", broken.updates)
	}
	if q := quantity(t, uc, "p1"); q != 7 {
		t.Fatalf("p1 quantity = %d, want 7", q)
	}
	if n := mem.Count(store.TableInventoryHistory); n != 0 {
		t.Fatalf("history entries = %d, want 0", n)
	}
}
