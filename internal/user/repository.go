package user

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type Repository interface {
	// FindByID returns nil without error when the profile does not exist.
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)
	FindAll(ctx context.Context) ([]model.UserProfile, error)
	UpdateRole(ctx context.Context, id, role string) (*model.UserProfile, error)
}
