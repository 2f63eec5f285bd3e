package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	"github.com/fekuna/omnipos-inventory-service/internal/user"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

type userUseCase struct {
	repo   user.Repository
	authz  *auth.Authorizer
	logger logger.ZapLogger
}

func NewUserUseCase(repo user.Repository, authz *auth.Authorizer, log logger.ZapLogger) user.UseCase {
	return &userUseCase{
		repo:   repo,
		authz:  authz,
		logger: log,
	}
}

func (uc *userUseCase) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceUsers, policy.ActionRead); err != nil {
		return nil, err
	}
	return uc.repo.FindAll(ctx)
}

// GetUser lets every signed-in user read their own profile; other profiles need users:read.
func (uc *userUseCase) GetUser(ctx context.Context, id string) (*model.UserProfile, error) {
	if p, ok := auth.PrincipalFromContext(ctx); !ok || p.UserID != id {
		if _, err := uc.authz.Require(ctx, policy.ResourceUsers, policy.ActionRead); err != nil {
			return nil, err
		}
	}

	u, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, &apperror.NotFoundError{Entity: "user", Key: id}
	}
	return u, nil
}

func (uc *userUseCase) UpdateUserRole(ctx context.Context, id string, role policy.Role) (*model.UserProfile, error) {
	p, err := uc.authz.Require(ctx, policy.ResourceUsers, policy.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if _, err := policy.ParseRole(string(role)); err != nil {
		return nil, &apperror.ValidationError{Field: "role", Reason: err.Error()}
	}

	u, err := uc.repo.UpdateRole(ctx, id, string(role))
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	if u == nil {
		return nil, &apperror.NotFoundError{Entity: "user", Key: id}
	}

	uc.logger.Info("user role changed",
		zap.String("user_id", id),
		zap.String("role", string(role)),
		zap.String("changed_by", p.UserID),
	)
	return u, nil
}

// RoleOf returns the stored role of a user. Missing profiles and unknown role values yield
// the empty role, which holds no permissions.
func (uc *userUseCase) RoleOf(ctx context.Context, userID string) (policy.Role, error) {
	u, err := uc.repo.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}

	role, err := policy.ParseRole(u.Role)
	if err != nil {
		uc.logger.Warn("profile has unknown role", zap.String("user_id", userID), zap.String("role", u.Role))
		return "", nil
	}
	return role, nil
}
