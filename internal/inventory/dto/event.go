package dto

import "time"

const EventInventoryAdjusted = "InventoryAdjusted"

type InventoryAdjustedEvent struct {
	EventID   string                   `json:"event_id"`
	EventType string                   `json:"event_type"`
	Payload   InventoryAdjustedPayload `json:"payload"`
	Timestamp time.Time                `json:"timestamp"`
}

type InventoryAdjustedPayload struct {
	HistoryID        string `json:"history_id"`
	ProductID        string `json:"product_id"`
	QuantityChange   int64  `json:"quantity_change"`
	PreviousQuantity int64  `json:"previous_quantity"`
	NewQuantity      int64  `json:"new_quantity"`
	Type             string `json:"type"`
	CreatedBy        string `json:"created_by"`
}
