package dto

import "github.com/fekuna/omnipos-inventory-service/internal/model"

type GetProductRequest struct {
	ID string `json:"id"`
}

type GetProductResponse struct {
	Product *model.Product `json:"product"`
}

type ListProductsRequest struct{}

type ListProductsResponse struct {
	Products []model.Product `json:"products"`
}

type SearchProductsRequest struct {
	Query string `json:"query"`
}

type SearchProductsResponse struct {
	Products []model.Product `json:"products"`
}
