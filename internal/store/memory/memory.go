// Package memory is an in-process implementation of store.Transactor used for local
// development and tests. It can inject faults and latency per method and table.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/store"
)

type Method string

const (
	MethodSelect Method = "select"
	MethodInsert Method = "insert"
	MethodUpdate Method = "update"
	MethodUpsert Method = "upsert"
	MethodDelete Method = "delete"
)

type faultKey struct {
	method Method
	table  string
}

type storedRow struct {
	row store.Row
	seq int64
}

type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]storedRow
	seq    int64

	txMu sync.Mutex

	faultMu sync.RWMutex
	faults  map[faultKey]error
	latency time.Duration

	calls atomic.Int64
}

func New() *Store {
	return &Store{
		tables: make(map[string]map[string]storedRow),
		faults: make(map[faultKey]error),
	}
}

// InjectFault makes every call of method on table fail with err until cleared.
func (s *Store) InjectFault(method Method, table string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[faultKey{method, table}] = err
}

func (s *Store) ClearFaults() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = make(map[faultKey]error)
}

// SetLatency delays every call by d, honouring context cancellation.
func (s *Store) SetLatency(d time.Duration) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.latency = d
}

// Calls returns how many operations have been attempted.
func (s *Store) Calls() int64 {
	return s.calls.Load()
}

// Count returns the number of rows in table.
func (s *Store) Count(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

func (s *Store) before(ctx context.Context, method Method, table string) error {
	s.calls.Add(1)

	s.faultMu.RLock()
	fault := s.faults[faultKey{method, table}]
	latency := s.latency
	s.faultMu.RUnlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fault
}

func (s *Store) Select(ctx context.Context, table string, filter store.Filter, order ...store.Order) ([]store.Row, error) {
	if err := s.before(ctx, MethodSelect, table); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]storedRow, 0, len(s.tables[table]))
	for _, sr := range s.tables[table] {
		if matches(sr.row, filter) {
			matched = append(matched, sr)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		for _, o := range order {
			c := compare(a.row[o.Column], b.row[o.Column])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		// Ties fall back to insertion order, following the direction of the first key.
		if len(order) > 0 && order[0].Desc {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})

	out := make([]store.Row, len(matched))
	for i, sr := range matched {
		out[i] = sr.row.Clone()
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	return s.insert(ctx, table, row, nil)
}

func (s *Store) Update(ctx context.Context, table, id string, patch store.Row) (store.Row, error) {
	return s.update(ctx, table, id, patch, nil)
}

func (s *Store) Upsert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	return s.upsert(ctx, table, row, nil)
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	return s.delete(ctx, table, id, nil)
}

func (s *Store) insert(ctx context.Context, table string, row store.Row, undo *undoLog) (store.Row, error) {
	if err := s.before(ctx, MethodInsert, table); err != nil {
		return nil, err
	}
	id, err := rowID(row)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	if _, exists := t[id]; exists {
		return nil, fmt.Errorf("%s %s: %w", table, id, store.ErrConflict)
	}
	undo.record(table, id, storedRow{}, false)
	s.seq++
	t[id] = storedRow{row: row.Clone(), seq: s.seq}
	return row.Clone(), nil
}

func (s *Store) update(ctx context.Context, table, id string, patch store.Row, undo *undoLog) (store.Row, error) {
	if err := s.before(ctx, MethodUpdate, table); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	sr, ok := t[id]
	if !ok {
		return nil, store.ErrNoRows
	}
	undo.record(table, id, sr, true)
	updated := sr.row.Clone()
	for k, v := range patch {
		if k == "id" {
			continue
		}
		updated[k] = v
	}
	t[id] = storedRow{row: updated, seq: sr.seq}
	return updated.Clone(), nil
}

func (s *Store) upsert(ctx context.Context, table string, row store.Row, undo *undoLog) (store.Row, error) {
	if err := s.before(ctx, MethodUpsert, table); err != nil {
		return nil, err
	}
	id, err := rowID(row)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	sr, ok := t[id]
	undo.record(table, id, sr, ok)
	if !ok {
		s.seq++
		t[id] = storedRow{row: row.Clone(), seq: s.seq}
		return row.Clone(), nil
	}
	merged := sr.row.Clone()
	for k, v := range row {
		merged[k] = v
	}
	t[id] = storedRow{row: merged, seq: sr.seq}
	return merged.Clone(), nil
}

func (s *Store) delete(ctx context.Context, table, id string, undo *undoLog) error {
	if err := s.before(ctx, MethodDelete, table); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	sr, ok := t[id]
	if !ok {
		return store.ErrNoRows
	}
	undo.record(table, id, sr, true)
	delete(t, id)
	return nil
}

// InTx serializes transactions. When fn fails, the writes it made through tx are undone
// in reverse order; writes made outside the transaction are kept.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := &undoLog{}
	if err := fn(ctx, txView{s: s, undo: undo}); err != nil {
		s.rollback(undo)
		return err
	}
	return nil
}

// undoLog holds the prior state of every row a transaction wrote. It is only touched
// with s.mu held.
type undoLog struct {
	entries []undoEntry
}

type undoEntry struct {
	table   string
	id      string
	prev    storedRow
	existed bool
}

func (u *undoLog) record(table, id string, prev storedRow, existed bool) {
	if u == nil {
		return
	}
	u.entries = append(u.entries, undoEntry{table: table, id: id, prev: prev, existed: existed})
}

func (s *Store) rollback(undo *undoLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(undo.entries) - 1; i >= 0; i-- {
		e := undo.entries[i]
		t := s.table(e.table)
		if e.existed {
			t[e.id] = e.prev
		} else {
			delete(t, e.id)
		}
	}
}

// txView exposes only the plain Store methods so transactions do not nest.
type txView struct {
	s    *Store
	undo *undoLog
}

func (v txView) Select(ctx context.Context, table string, filter store.Filter, order ...store.Order) ([]store.Row, error) {
	return v.s.Select(ctx, table, filter, order...)
}

func (v txView) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	return v.s.insert(ctx, table, row, v.undo)
}

func (v txView) Update(ctx context.Context, table, id string, patch store.Row) (store.Row, error) {
	return v.s.update(ctx, table, id, patch, v.undo)
}

func (v txView) Upsert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	return v.s.upsert(ctx, table, row, v.undo)
}

func (v txView) Delete(ctx context.Context, table, id string) error {
	return v.s.delete(ctx, table, id, v.undo)
}

func (s *Store) table(name string) map[string]storedRow {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string]storedRow)
		s.tables[name] = t
	}
	return t
}

func rowID(row store.Row) (string, error) {
	id := row.String("id")
	if id == "" {
		return "", fmt.Errorf("row has no id")
	}
	return id, nil
}

func matches(row store.Row, filter store.Filter) bool {
	for _, c := range filter {
		switch c.Op {
		case store.OpEq:
			if compare(row[c.Column], c.Value) != 0 {
				return false
			}
		case store.OpContains:
			needle := strings.ToLower(fmt.Sprint(c.Value))
			if !strings.Contains(strings.ToLower(row.String(c.Column)), needle) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compare orders nil first, then by the natural order of strings, numbers, times and bools.
func compare(a, b any) int {
	a, b = deref(a), deref(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isNumber(va) && isNumber(vb):
		fa, fb := toFloat(va), toFloat(vb)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case va.Kind() == reflect.String && vb.Kind() == reflect.String:
		return strings.Compare(va.String(), vb.String())
	case va.Kind() == reflect.Bool && vb.Kind() == reflect.Bool:
		switch {
		case va.Bool() == vb.Bool():
			return 0
		case !va.Bool():
			return -1
		}
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}

func isNumber(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	}
	return v.Float()
}
