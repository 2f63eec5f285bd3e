package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

const (
	EventOrderCreated = "OrderCreated"

	maxAttempts = 3
)

// MessageReader is satisfied by *broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// InventoryListener deducts stock for every item of an incoming order. Adjustments are
// made as auth.SystemPrincipal.
type InventoryListener struct {
	consumer   MessageReader
	uc         inventory.UseCase
	logger     logger.ZapLogger
	retryDelay time.Duration
}

func NewInventoryListener(consumer MessageReader, uc inventory.UseCase, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer:   consumer,
		uc:         uc,
		logger:     logger,
		retryDelay: time.Second,
	}
}

func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting Inventory Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Inventory Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				if !sleep(ctx, l.retryDelay) {
					return
				}
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type OrderCreatedEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID    string             `json:"id"`
	Items []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

func (l *InventoryListener) processMessage(ctx context.Context, value []byte) {
	var event OrderCreatedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != EventOrderCreated {
		return
	}

	l.logger.Info("Processing OrderCreated event", zap.String("order_id", event.Payload.ID))

	ctx = auth.WithPrincipal(ctx, auth.SystemPrincipal)
	reason := "Order Sale " + event.Payload.ID

	for _, item := range event.Payload.Items {
		if item.Quantity <= 0 {
			l.logger.Warn("Skipping order item without quantity",
				zap.String("order_id", event.Payload.ID),
				zap.String("product_id", item.ProductID),
			)
			continue
		}

		input := &dto.AdjustInventoryInput{
			ProductID:      item.ProductID,
			QuantityChange: -item.Quantity,
			Type:           model.MovementOut,
			Reason:         &reason,
			CreatedBy:      auth.SystemUserID,
		}
		if err := l.adjust(ctx, input); err != nil {
			l.logger.Error("Failed to adjust inventory for order item",
				zap.String("order_id", event.Payload.ID),
				zap.String("product_id", item.ProductID),
				zap.Int64("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

// adjust retries only failures that leave the ledger untouched and may succeed later.
func (l *InventoryListener) adjust(ctx context.Context, input *dto.AdjustInventoryInput) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err = l.uc.Adjust(ctx, input)
		if err == nil || !apperror.Retryable(err) {
			return err
		}
		if attempt < maxAttempts && !sleep(ctx, l.retryDelay) {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
