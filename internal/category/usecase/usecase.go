package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/category"
	"github.com/fekuna/omnipos-inventory-service/internal/category/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

type categoryUseCase struct {
	repo   category.Repository
	authz  *auth.Authorizer
	logger logger.ZapLogger
}

func NewCategoryUseCase(repo category.Repository, authz *auth.Authorizer, log logger.ZapLogger) category.UseCase {
	return &categoryUseCase{
		repo:   repo,
		authz:  authz,
		logger: log,
	}
}

func (uc *categoryUseCase) CreateCategory(ctx context.Context, input *dto.CreateCategoryInput) (*model.Category, error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceCategories, policy.ActionCreate); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, &apperror.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	existing, err := uc.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &apperror.ValidationError{Field: "name", Reason: "category already exists"}
	}

	now := time.Now().UTC()
	cat := &model.Category{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:        name,
		Description: input.Description,
	}

	if err := uc.repo.Create(ctx, cat); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, &apperror.ValidationError{Field: "name", Reason: "category already exists"}
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return cat, nil
}

func (uc *categoryUseCase) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceCategories, policy.ActionRead); err != nil {
		return nil, err
	}

	cat, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, &apperror.NotFoundError{Entity: "category", Key: id}
	}
	return cat, nil
}

func (uc *categoryUseCase) ListCategories(ctx context.Context) ([]model.Category, error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceCategories, policy.ActionRead); err != nil {
		return nil, err
	}
	return uc.repo.FindAll(ctx)
}
