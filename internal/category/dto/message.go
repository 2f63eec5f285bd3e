package dto

import "github.com/fekuna/omnipos-inventory-service/internal/model"

type ListCategoriesRequest struct{}

type ListCategoriesResponse struct {
	Categories []model.Category `json:"categories"`
}

type CreateCategoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type CreateCategoryResponse struct {
	Category *model.Category `json:"category"`
}
