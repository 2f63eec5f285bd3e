package user

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
)

type UseCase interface {
	ListUsers(ctx context.Context) ([]model.UserProfile, error)
	GetUser(ctx context.Context, id string) (*model.UserProfile, error)
	UpdateUserRole(ctx context.Context, id string, role policy.Role) (*model.UserProfile, error)
	RoleOf(ctx context.Context, userID string) (policy.Role, error)
}
