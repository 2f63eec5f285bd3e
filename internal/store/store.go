// Package store defines the generic keyed record store the service persists through.
// Every table is keyed by a string "id" column.
package store

import (
	"context"
	"errors"
)

var (
	ErrNoRows   = errors.New("no rows")
	ErrConflict = errors.New("row already exists")
)

const (
	TableCategories       = "product_categories"
	TableProducts         = "products"
	TableInventory        = "inventory"
	TableInventoryHistory = "inventory_history"
	TableUserProfiles     = "user_profiles"
	TableUserCredentials  = "user_credentials"
	TableAuthSessions     = "auth_sessions"
)

// Row is one record, column name to value.
type Row map[string]any

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type Operator int

const (
	// OpEq matches values that are equal.
	OpEq Operator = iota
	// OpContains matches string values containing Value, ignoring case.
	OpContains
)

type Condition struct {
	Column string
	Op     Operator
	Value  any
}

// Filter is a conjunction of conditions. An empty filter matches every row.
type Filter []Condition

func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

func Contains(column, substr string) Condition {
	return Condition{Column: column, Op: OpContains, Value: substr}
}

type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

type Store interface {
	Select(ctx context.Context, table string, filter Filter, order ...Order) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table, id string, patch Row) (Row, error)
	Upsert(ctx context.Context, table string, row Row) (Row, error)
	Delete(ctx context.Context, table, id string) error
}

// Transactor is implemented by stores that can apply several writes atomically.
// fn receives a Store bound to the transaction; returning an error rolls it back.
type Transactor interface {
	Store
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// RowLocker is implemented by stores that can lock the rows they read until the
// enclosing transaction ends.
type RowLocker interface {
	SelectForUpdate(ctx context.Context, table string, filter Filter) ([]Row, error)
}

// SelectForUpdate reads the rows matching filter and locks them when s is a RowLocker.
// Other stores fall back to a plain Select.
func SelectForUpdate(ctx context.Context, s Store, table string, filter Filter) ([]Row, error) {
	if l, ok := s.(RowLocker); ok {
		return l.SelectForUpdate(ctx, table, filter)
	}
	return s.Select(ctx, table, filter)
}

// First returns the first row matching filter, or ErrNoRows.
func First(ctx context.Context, s Store, table string, filter Filter, order ...Order) (Row, error) {
	rows, err := s.Select(ctx, table, filter, order...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

// Get returns the row with the given id, or ErrNoRows.
func Get(ctx context.Context, s Store, table, id string) (Row, error) {
	return First(ctx, s, table, Filter{Eq("id", id)})
}
