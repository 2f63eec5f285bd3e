package dto

import "github.com/fekuna/omnipos-inventory-service/internal/model"

type AdjustInventoryInput struct {
	ProductID      string
	QuantityChange int64
	// Type defaults to adjustment.
	Type   model.MovementType
	Reason *string
	// CreatedBy defaults to the calling user.
	CreatedBy string
}

type CreateProductInput struct {
	CategoryID      string
	Name            string
	Description     *string
	SKU             string
	Unit            string
	MinStockLevel   int64
	Location        string
	InitialQuantity int64
}

type HistoryFilter struct {
	ProductID             string
	ProductNameContains   string
	CategoryName          string
	OperatorEmailContains string
}
