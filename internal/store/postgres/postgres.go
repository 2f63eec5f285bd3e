// Package postgres implements store.Transactor on PostgreSQL through sqlx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-inventory-service/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

func (s *Store) Select(ctx context.Context, table string, filter store.Filter, order ...store.Order) ([]store.Row, error) {
	query, args, err := buildSelect(table, filter, order)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, query, args)
}

// SelectForUpdate row-locks the matching rows until the surrounding transaction ends.
// Outside InTx the locks are released as soon as the statement completes.
func (s *Store) SelectForUpdate(ctx context.Context, table string, filter store.Filter) ([]store.Row, error) {
	query, args, err := buildSelect(table, filter, nil)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, query+" FOR UPDATE", args)
}

func (s *Store) query(ctx context.Context, query string, args map[string]interface{}) ([]store.Row, error) {
	rows, err := sqlx.NamedQueryContext(ctx, s.ext, query, args)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

func buildSelect(table string, filter store.Filter, order []store.Order) (string, map[string]interface{}, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}

	conditions := []string{}
	args := map[string]interface{}{}
	for i, c := range filter {
		if err := checkColumn(table, c.Column); err != nil {
			return "", nil, err
		}
		param := fmt.Sprintf("f%d", i)
		switch c.Op {
		case store.OpEq:
			if c.Value == nil {
				conditions = append(conditions, quote(c.Column)+" IS NULL")
				continue
			}
			conditions = append(conditions, fmt.Sprintf("%s = :%s", quote(c.Column), param))
			args[param] = c.Value
		case store.OpContains:
			conditions = append(conditions, fmt.Sprintf("%s ILIKE :%s", quote(c.Column), param))
			args[param] = "%" + escapeLike(fmt.Sprint(c.Value)) + "%"
		default:
			return "", nil, fmt.Errorf("unsupported operator %d", c.Op)
		}
	}

	query := "SELECT * FROM " + quote(table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if len(order) > 0 {
		parts := make([]string, 0, len(order))
		for _, o := range order {
			if err := checkColumn(table, o.Column); err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts = append(parts, quote(o.Column)+" "+dir)
		}
		query += " ORDER BY " + strings.Join(parts, ", ")
	}
	return query, args, nil
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	cols, err := rowColumns(table, row)
	if err != nil {
		return nil, err
	}

	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
		params[i] = ":" + c
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quote(table), strings.Join(quoted, ", "), strings.Join(params, ", "))

	return s.one(ctx, query, map[string]interface{}(row))
}

func (s *Store) Update(ctx context.Context, table, id string, patch store.Row) (store.Row, error) {
	patch = patch.Clone()
	delete(patch, "id")
	if len(patch) == 0 {
		return store.Get(ctx, s, table, id)
	}

	cols, err := rowColumns(table, patch)
	if err != nil {
		return nil, err
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = :%s", quote(c), c)
	}

	args := map[string]interface{}(patch)
	args["pk"] = id

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :pk RETURNING *",
		quote(table), strings.Join(sets, ", "))

	return s.one(ctx, query, args)
}

func (s *Store) Upsert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	cols, err := rowColumns(table, row)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(cols, "id") {
		return nil, fmt.Errorf("upsert into %s: row has no id", table)
	}

	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	sets := []string{}
	for i, c := range cols {
		quoted[i] = quote(c)
		params[i] = ":" + c
		if c != "id" {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(c), quote(c)))
		}
	}

	conflict := "DO NOTHING"
	if len(sets) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) %s RETURNING *",
		quote(table), strings.Join(quoted, ", "), strings.Join(params, ", "), conflict)

	return s.one(ctx, query, map[string]interface{}(row))
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}

	res, err := s.ext.ExecContext(ctx, "DELETE FROM "+quote(table)+" WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNoRows
	}
	return nil
}

// InTx runs fn inside a database transaction. Calls on a transaction-bound store run fn
// in the current transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &Store{ext: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) one(ctx context.Context, query string, args map[string]interface{}) (store.Row, error) {
	rows, err := sqlx.NamedQueryContext(ctx, s.ext, query, args)
	if err != nil {
		return nil, mapError(err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, mapError(err)
	}
	if len(out) == 0 {
		return nil, store.ErrNoRows
	}
	return out[0], nil
}

func scanRows(rows *sqlx.Rows) ([]store.Row, error) {
	defer rows.Close()

	out := []store.Row{}
	for rows.Next() {
		m := map[string]interface{}{}
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		out = append(out, store.Row(m))
	}
	return out, rows.Err()
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, store.ErrConflict)
	}
	return err
}

func checkTable(table string) error {
	if _, ok := columns[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func checkColumn(table, column string) error {
	if !slices.Contains(columns[table], column) {
		return fmt.Errorf("unknown column %q on %s", column, table)
	}
	return nil
}

// rowColumns returns the row's column names sorted, after checking them against the schema.
func rowColumns(table string, row store.Row) ([]string, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(row))
	for c := range row {
		if err := checkColumn(table, c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
