package postgres

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-inventory-service/internal/store"
)

// columns whitelists every table and column the store may touch. Identifiers never come
// from callers unchecked.
var columns = map[string][]string{
	store.TableCategories: {"id", "name", "description", "created_at", "updated_at"},
	store.TableProducts: {
		"id", "category_id", "name", "description", "sku", "unit", "min_stock_level",
		"created_at", "updated_at",
	},
	store.TableInventory: {"id", "product_id", "quantity", "location", "created_at", "updated_at"},
	store.TableInventoryHistory: {
		"id", "product_id", "quantity_change", "previous_quantity", "new_quantity", "type",
		"reason", "created_by", "created_at",
	},
	store.TableUserProfiles:    {"id", "email", "name", "role", "created_at", "updated_at"},
	store.TableUserCredentials: {"id", "email", "password_hash", "created_at"},
	store.TableAuthSessions:    {"id", "user_id", "created_at", "expires_at"},
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS product_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		category_id TEXT REFERENCES product_categories(id),
		name TEXT NOT NULL,
		description TEXT,
		sku TEXT NOT NULL UNIQUE,
		unit TEXT NOT NULL DEFAULT '',
		min_stock_level BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL UNIQUE REFERENCES products(id),
		quantity BIGINT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		location TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_history (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity_change BIGINT NOT NULL,
		previous_quantity BIGINT NOT NULL,
		new_quantity BIGINT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('in', 'out', 'adjustment')),
		reason TEXT,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (new_quantity = previous_quantity + quantity_change)
	)`,
	`CREATE INDEX IF NOT EXISTS inventory_history_product_created_idx
		ON inventory_history (product_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT,
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_credentials (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates missing tables. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.ext.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
