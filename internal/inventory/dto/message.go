package dto

import "github.com/fekuna/omnipos-inventory-service/internal/model"

type GetProductInventoryRequest struct {
	ProductID string `json:"product_id"`
}

type GetProductInventoryResponse struct {
	Inventory *model.Inventory `json:"inventory"`
}

type ListInventoryRequest struct{}

type ListInventoryResponse struct {
	Inventory []model.Inventory `json:"inventory"`
}

type AdjustInventoryRequest struct {
	ProductID      string  `json:"product_id"`
	QuantityChange int64   `json:"quantity_change"`
	Type           string  `json:"type,omitempty"`
	Reason         *string `json:"reason,omitempty"`
}

type AdjustInventoryResponse struct {
	Inventory *model.Inventory `json:"inventory"`
}

type CreateProductWithInventoryRequest struct {
	CategoryID      string  `json:"category_id"`
	Name            string  `json:"name"`
	Description     *string `json:"description,omitempty"`
	SKU             string  `json:"sku"`
	Unit            string  `json:"unit"`
	MinStockLevel   int64   `json:"min_stock_level"`
	Location        string  `json:"location"`
	InitialQuantity int64   `json:"initial_quantity"`
}

type CreateProductWithInventoryResponse struct {
	Product   *model.Product   `json:"product"`
	Inventory *model.Inventory `json:"inventory"`
}

type ListInventoryHistoryRequest struct {
	ProductID             string `json:"product_id,omitempty"`
	ProductNameContains   string `json:"product_name_contains,omitempty"`
	CategoryName          string `json:"category_name,omitempty"`
	OperatorEmailContains string `json:"operator_email_contains,omitempty"`
	// Limit caps the number of entries returned. Zero returns everything.
	Limit int `json:"limit,omitempty"`
}

type ListInventoryHistoryResponse struct {
	History []model.HistoryView `json:"history"`
}
