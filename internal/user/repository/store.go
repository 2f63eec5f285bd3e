package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
)

type StoreRepository struct {
	store store.Store
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	row, err := store.Get(ctx, r.store, store.TableUserProfiles, id)
	if errors.Is(err, store.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := ToModel(row)
	return &u, nil
}

func (r *StoreRepository) FindAll(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := r.store.Select(ctx, store.TableUserProfiles, nil, store.Asc("email"))
	if err != nil {
		return nil, err
	}

	users := make([]model.UserProfile, len(rows))
	for i, row := range rows {
		users[i] = ToModel(row)
	}
	return users, nil
}

func (r *StoreRepository) UpdateRole(ctx context.Context, id, role string) (*model.UserProfile, error) {
	row, err := r.store.Update(ctx, store.TableUserProfiles, id, store.Row{
		"role":       role,
		"updated_at": time.Now().UTC(),
	})
	if errors.Is(err, store.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := ToModel(row)
	return &u, nil
}

// ToModel maps a user_profiles row. It is shared with the history join of the ledger.
func ToModel(row store.Row) model.UserProfile {
	return model.UserProfile{
		BaseModel: model.BaseModel{
			ID:        row.String("id"),
			CreatedAt: row.Time("created_at"),
			UpdatedAt: row.Time("updated_at"),
		},
		Email: row.String("email"),
		Name:  row.OptString("name"),
		Role:  row.String("role"),
	}
}
