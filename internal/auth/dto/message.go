package dto

import (
	"github.com/fekuna/omnipos-inventory-service/internal/identity"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Session *identity.Session `json:"session"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type SignUpRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}

type SignUpResponse struct {
	User *identity.Identity `json:"user"`
}

type MeRequest struct{}

type MeResponse struct {
	UserID      string              `json:"user_id"`
	Email       string              `json:"email"`
	Role        policy.Role         `json:"role"`
	Permissions []policy.Permission `json:"permissions"`
}

type UpdatePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type UpdatePasswordResponse struct{}

// CheckPermissionsRequest asks whether the caller holds all of Permissions, or any of them
// when Any is set. An empty list is allowed for "all" and denied for "any".
type CheckPermissionsRequest struct {
	Permissions []policy.Permission `json:"permissions"`
	Any         bool                `json:"any,omitempty"`
}

type CheckPermissionsResponse struct {
	Allowed bool `json:"allowed"`
}
