package dto

import "github.com/fekuna/omnipos-inventory-service/internal/model"

type ListUsersRequest struct{}

type ListUsersResponse struct {
	Users []model.UserProfile `json:"users"`
}

type GetUserRequest struct {
	ID string `json:"id"`
}

type GetUserResponse struct {
	User *model.UserProfile `json:"user"`
}

type UpdateUserRoleRequest struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type UpdateUserRoleResponse struct {
	User *model.UserProfile `json:"user"`
}
