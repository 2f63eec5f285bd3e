package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/category"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/lock"
	"github.com/fekuna/omnipos-inventory-service/internal/metrics"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	"github.com/fekuna/omnipos-inventory-service/internal/product"
	"github.com/fekuna/omnipos-inventory-service/internal/saga"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

const publishTimeout = 5 * time.Second

type Option func(*inventoryUseCase)

func WithPublisher(p inventory.EventPublisher) Option {
	return func(uc *inventoryUseCase) { uc.publisher = p }
}

func WithIndexer(i inventory.ProductIndexer) Option {
	return func(uc *inventoryUseCase) { uc.indexer = i }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *inventoryUseCase) { uc.metrics = m }
}

type inventoryUseCase struct {
	repo       inventory.Repository
	products   product.Repository
	categories category.Repository
	locker     lock.Locker
	authz      *auth.Authorizer
	publisher  inventory.EventPublisher
	indexer    inventory.ProductIndexer
	metrics    *metrics.Metrics
	logger     logger.ZapLogger
	now        func() time.Time
}

func NewInventoryUseCase(
	repo inventory.Repository,
	products product.Repository,
	categories category.Repository,
	locker lock.Locker,
	authz *auth.Authorizer,
	log logger.ZapLogger,
	opts ...Option,
) inventory.UseCase {
	uc := &inventoryUseCase{
		repo:       repo,
		products:   products,
		categories: categories,
		locker:     locker,
		authz:      authz,
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *inventoryUseCase) GetCurrentQuantity(ctx context.Context, productID string) (*model.Inventory, error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceInventory, policy.ActionRead); err != nil {
		return nil, err
	}

	inv, err := uc.repo.GetByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, &apperror.NotFoundError{Entity: "inventory for product", Key: productID}
	}

	p, err := uc.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	inv.Product = p
	return inv, nil
}

func (uc *inventoryUseCase) ListInventory(ctx context.Context) ([]model.Inventory, error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceInventory, policy.ActionRead); err != nil {
		return nil, err
	}
	return uc.repo.FindAll(ctx)
}

func (uc *inventoryUseCase) Adjust(ctx context.Context, input *dto.AdjustInventoryInput) (*model.Inventory, error) {
	principal, err := uc.authz.Require(ctx, policy.ResourceInventory, policy.ActionUpdate)
	if err != nil {
		uc.metrics.ObserveRejection(rejectionReason(err))
		return nil, err
	}

	movement, err := validateAdjustment(input)
	if err != nil {
		uc.metrics.ObserveRejection(rejectionReason(err))
		return nil, err
	}

	actor := input.CreatedBy
	if actor == "" {
		actor = principal.UserID
	}

	start := uc.now()
	inv, entry, err := uc.adjustLocked(ctx, input, movement, actor)
	if err != nil {
		uc.metrics.ObserveRejection(rejectionReason(err))
		if apperror.ServerFault(err) {
			uc.logger.Error("failed to adjust inventory",
				zap.String("product_id", input.ProductID),
				zap.Int64("quantity_change", input.QuantityChange),
				zap.Error(err),
			)
		}
		return nil, err
	}
	uc.metrics.ObserveAdjustment(string(movement), uc.now().Sub(start))

	uc.publishAdjusted(ctx, entry)
	return inv, nil
}

func validateAdjustment(input *dto.AdjustInventoryInput) (model.MovementType, error) {
	if input.ProductID == "" {
		return "", &apperror.ValidationError{Field: "product_id", Reason: "must not be empty"}
	}
	if input.QuantityChange == 0 {
		return "", &apperror.ValidationError{Field: "quantity_change", Reason: "must not be zero"}
	}

	movement := input.Type
	if movement == "" {
		movement = model.MovementAdjustment
	}
	switch {
	case !movement.Valid():
		return "", &apperror.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown movement type %q", movement)}
	case movement == model.MovementIn && input.QuantityChange < 0:
		return "", &apperror.ValidationError{Field: "quantity_change", Reason: "must be positive for type in"}
	case movement == model.MovementOut && input.QuantityChange > 0:
		return "", &apperror.ValidationError{Field: "quantity_change", Reason: "must be negative for type out"}
	}
	return movement, nil
}

// adjustLocked holds the product lock across the read, the check and both writes so no
// concurrent adjustment can read the same previous quantity.
func (uc *inventoryUseCase) adjustLocked(ctx context.Context, input *dto.AdjustInventoryInput, movement model.MovementType, actor string) (*model.Inventory, *model.InventoryHistory, error) {
	unlock, err := uc.locker.Lock(ctx, lock.ProductKey(input.ProductID))
	if err != nil {
		if errors.Is(err, lock.ErrBusy) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, &apperror.TimeoutError{Op: "lock product " + input.ProductID, Err: err}
		}
		return nil, nil, err
	}
	defer unlock()

	if uc.repo.Transactional() {
		var inv *model.Inventory
		var entry *model.InventoryHistory
		err := uc.repo.InTx(ctx, func(ctx context.Context, tx inventory.Repository) error {
			var err error
			inv, entry, err = uc.apply(ctx, tx, input, movement, actor)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		return inv, entry, nil
	}

	return uc.applyWithCompensation(ctx, input, movement, actor)
}

// apply runs the read-check-write sequence against a transaction-bound repository.
func (uc *inventoryUseCase) apply(ctx context.Context, repo inventory.Repository, input *dto.AdjustInventoryInput, movement model.MovementType, actor string) (*model.Inventory, *model.InventoryHistory, error) {
	inv, entry, err := uc.prepare(ctx, repo, input, movement, actor)
	if err != nil {
		return nil, nil, err
	}

	if err := repo.UpdateQuantity(ctx, inv.ID, entry.NewQuantity, entry.CreatedAt); err != nil {
		return nil, nil, fmt.Errorf("update inventory: %w", err)
	}
	if err := repo.LogHistory(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("record history: %w", err)
	}

	inv.Quantity = entry.NewQuantity
	inv.UpdatedAt = entry.CreatedAt
	return inv, entry, nil
}

// applyWithCompensation is used when the store has no transactions: a failed history write
// restores the previous quantity.
func (uc *inventoryUseCase) applyWithCompensation(ctx context.Context, input *dto.AdjustInventoryInput, movement model.MovementType, actor string) (*model.Inventory, *model.InventoryHistory, error) {
	inv, entry, err := uc.prepare(ctx, uc.repo, input, movement, actor)
	if err != nil {
		return nil, nil, err
	}
	prevQuantity, prevUpdatedAt := inv.Quantity, inv.UpdatedAt

	err = saga.Run(ctx,
		saga.Step{
			Name: "update inventory",
			Do: func(ctx context.Context) error {
				return uc.repo.UpdateQuantity(ctx, inv.ID, entry.NewQuantity, entry.CreatedAt)
			},
			Compensate: func(ctx context.Context) error {
				return uc.repo.UpdateQuantity(ctx, inv.ID, prevQuantity, prevUpdatedAt)
			},
		},
		saga.Step{
			Name: "record history",
			Do: func(ctx context.Context) error {
				return uc.repo.LogHistory(ctx, entry)
			},
		},
	)
	if err != nil {
		uc.observeSaga(err)
		return nil, nil, err
	}

	inv.Quantity = entry.NewQuantity
	inv.UpdatedAt = entry.CreatedAt
	return inv, entry, nil
}

func (uc *inventoryUseCase) prepare(ctx context.Context, repo inventory.Repository, input *dto.AdjustInventoryInput, movement model.MovementType, actor string) (*model.Inventory, *model.InventoryHistory, error) {
	inv, err := repo.GetByProduct(ctx, input.ProductID)
	if err != nil {
		return nil, nil, fmt.Errorf("load inventory: %w", err)
	}
	if inv == nil {
		return nil, nil, &apperror.NotFoundError{Entity: "inventory for product", Key: input.ProductID}
	}

	next := inv.Quantity + input.QuantityChange
	if next < 0 {
		return nil, nil, &apperror.InsufficientStockError{
			ProductID: input.ProductID,
			Available: inv.Quantity,
			Change:    input.QuantityChange,
		}
	}

	entry := &model.InventoryHistory{
		ID:               uuid.New().String(),
		ProductID:        input.ProductID,
		QuantityChange:   input.QuantityChange,
		PreviousQuantity: inv.Quantity,
		NewQuantity:      next,
		Type:             movement,
		Reason:           input.Reason,
		CreatedBy:        actor,
		CreatedAt:        uc.now().UTC(),
	}
	return inv, entry, nil
}

// CreateWithInitialStock inserts the product, its inventory record and, for a positive
// initial quantity, the opening history entry. Each insert is compensated if a later one
// fails, so a failure leaves no rows behind unless compensation itself fails.
func (uc *inventoryUseCase) CreateWithInitialStock(ctx context.Context, input *dto.CreateProductInput) (*model.Product, *model.Inventory, error) {
	principal, err := uc.authz.RequireAll(ctx,
		policy.Permission{Resource: policy.ResourceProducts, Action: policy.ActionCreate},
		policy.Permission{Resource: policy.ResourceInventory, Action: policy.ActionCreate},
	)
	if err != nil {
		return nil, nil, err
	}
	if err := validateCreate(input); err != nil {
		return nil, nil, err
	}

	unique, err := uc.products.IsSKUUnique(ctx, input.SKU)
	if err != nil {
		return nil, nil, fmt.Errorf("check sku: %w", err)
	}
	if !unique {
		return nil, nil, &apperror.ValidationError{Field: "sku", Reason: "already exists"}
	}
	if input.CategoryID != "" {
		c, err := uc.categories.FindByID(ctx, input.CategoryID)
		if err != nil {
			return nil, nil, fmt.Errorf("load category: %w", err)
		}
		if c == nil {
			return nil, nil, &apperror.ValidationError{Field: "category_id", Reason: "category does not exist"}
		}
	}

	now := uc.now().UTC()
	p := &model.Product{
		BaseModel:     model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		CategoryID:    input.CategoryID,
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		SKU:           strings.TrimSpace(input.SKU),
		Unit:          input.Unit,
		MinStockLevel: input.MinStockLevel,
	}

	var location *string
	if input.Location != "" {
		location = &input.Location
	}
	inv := &model.Inventory{
		BaseModel: model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		ProductID: p.ID,
		Quantity:  input.InitialQuantity,
		Location:  location,
	}

	steps := []saga.Step{
		{
			Name: "create product",
			Do: func(ctx context.Context) error {
				return uc.products.Create(ctx, p)
			},
			Compensate: func(ctx context.Context) error {
				return uc.products.Delete(ctx, p.ID)
			},
		},
		{
			Name: "create inventory",
			Do: func(ctx context.Context) error {
				return uc.repo.Create(ctx, inv)
			},
			Compensate: func(ctx context.Context) error {
				return uc.repo.Delete(ctx, inv.ID)
			},
		},
	}
	if input.InitialQuantity > 0 {
		reason := "initial stock"
		entry := &model.InventoryHistory{
			ID:               uuid.New().String(),
			ProductID:        p.ID,
			QuantityChange:   input.InitialQuantity,
			PreviousQuantity: 0,
			NewQuantity:      input.InitialQuantity,
			Type:             model.MovementIn,
			Reason:           &reason,
			CreatedBy:        principal.UserID,
			CreatedAt:        now,
		}
		steps = append(steps, saga.Step{
			Name: "record initial stock",
			Do: func(ctx context.Context) error {
				return uc.repo.LogHistory(ctx, entry)
			},
		})
	}

	if err := saga.Run(ctx, steps...); err != nil {
		uc.observeSaga(err)
		if errors.Is(err, store.ErrConflict) && !errors.Is(err, apperror.ErrPartialFailure) {
			return nil, nil, &apperror.ValidationError{Field: "sku", Reason: "already exists"}
		}
		uc.logger.Error("failed to create product with inventory", zap.String("sku", p.SKU), zap.Error(err))
		return nil, nil, err
	}

	if uc.indexer != nil {
		uc.indexer.IndexProduct(ctx, p)
	}
	inv.Product = p
	return p, inv, nil
}

func validateCreate(input *dto.CreateProductInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return &apperror.ValidationError{Field: "name", Reason: "must not be empty"}
	case strings.TrimSpace(input.SKU) == "":
		return &apperror.ValidationError{Field: "sku", Reason: "must not be empty"}
	case input.InitialQuantity < 0:
		return &apperror.ValidationError{Field: "initial_quantity", Reason: "must not be negative"}
	case input.MinStockLevel < 0:
		return &apperror.ValidationError{Field: "min_stock_level", Reason: "must not be negative"}
	}
	return nil
}

func (uc *inventoryUseCase) QueryHistory(ctx context.Context, filter *dto.HistoryFilter) (iter.Seq[model.HistoryView], error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceInventoryHistory, policy.ActionRead); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = &dto.HistoryFilter{}
	}

	views, err := uc.repo.ListHistory(ctx, filter.ProductID)
	if err != nil {
		return nil, err
	}

	nameNeedle := strings.ToLower(filter.ProductNameContains)
	emailNeedle := strings.ToLower(filter.OperatorEmailContains)

	return func(yield func(model.HistoryView) bool) {
		for _, v := range views {
			if nameNeedle != "" && (v.Product == nil || !strings.Contains(strings.ToLower(v.Product.Name), nameNeedle)) {
				continue
			}
			if filter.CategoryName != "" && (v.Category == nil || v.Category.Name != filter.CategoryName) {
				continue
			}
			if emailNeedle != "" && (v.Operator == nil || !strings.Contains(strings.ToLower(v.Operator.Email), emailNeedle)) {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}, nil
}

// publishAdjusted emits the event after the ledger write. The ledger is the source of
// truth, so a failed publish is logged and the adjustment still succeeds.
func (uc *inventoryUseCase) publishAdjusted(ctx context.Context, entry *model.InventoryHistory) {
	if uc.publisher == nil {
		return
	}

	event := dto.InventoryAdjustedEvent{
		EventID:   uuid.New().String(),
		EventType: dto.EventInventoryAdjusted,
		Payload: dto.InventoryAdjustedPayload{
			HistoryID:        entry.ID,
			ProductID:        entry.ProductID,
			QuantityChange:   entry.QuantityChange,
			PreviousQuantity: entry.PreviousQuantity,
			NewQuantity:      entry.NewQuantity,
			Type:             string(entry.Type),
			CreatedBy:        entry.CreatedBy,
		},
		Timestamp: entry.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		uc.logger.Error("failed to marshal inventory event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(ctx, entry.ProductID, data); err != nil {
		uc.logger.Warn("failed to publish inventory event",
			zap.String("product_id", entry.ProductID),
			zap.String("history_id", entry.ID),
			zap.Error(err),
		)
	}
}

func (uc *inventoryUseCase) observeSaga(err error) {
	var pf *apperror.PartialFailureError
	if errors.As(err, &pf) {
		uc.metrics.ObserveCompensation(pf.Phase, pf.Compensated())
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, apperror.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, apperror.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperror.ErrValidation):
		return "validation"
	case errors.Is(err, apperror.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
