package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
)

type Options struct {
	// Timeout bounds every single call. Zero disables it.
	Timeout time.Duration
	Tracer  trace.Tracer
}

// Instrument wraps s so every call gets a span, an optional deadline and classified
// errors: deadline expiry becomes apperror.TimeoutError and backend failures become
// apperror.StoreError. ErrNoRows, ErrConflict and cancellation pass through unchanged.
// The result implements Transactor exactly when s does.
func Instrument(s Store, opts Options) Store {
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("inventory-store")
	}
	base := &instrumented{next: s, opts: opts}
	if tx, ok := s.(Transactor); ok {
		return &instrumentedTx{instrumented: base, tx: tx}
	}
	return base
}

type instrumented struct {
	next Store
	opts Options
}

func (s *instrumented) call(ctx context.Context, op, table string, fn func(ctx context.Context) error) error {
	ctx, span := s.opts.Tracer.Start(ctx, "store."+op,
		trace.WithAttributes(attribute.String("store.table", table)),
	)
	defer span.End()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	err := classify(op, table, fn(ctx))
	if err != nil && !errors.Is(err, ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func classify(op, table string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNoRows), errors.Is(err, ErrConflict), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, apperror.ErrTimeout), errors.Is(err, apperror.ErrStore):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &apperror.TimeoutError{Op: op + " " + table, Err: err}
	default:
		return &apperror.StoreError{Op: op, Table: table, Err: err}
	}
}

func (s *instrumented) Select(ctx context.Context, table string, filter Filter, order ...Order) ([]Row, error) {
	var rows []Row
	err := s.call(ctx, "select", table, func(ctx context.Context) error {
		var err error
		rows, err = s.next.Select(ctx, table, filter, order...)
		return err
	})
	return rows, err
}

func (s *instrumented) SelectForUpdate(ctx context.Context, table string, filter Filter) ([]Row, error) {
	var rows []Row
	err := s.call(ctx, "select_for_update", table, func(ctx context.Context) error {
		var err error
		rows, err = SelectForUpdate(ctx, s.next, table, filter)
		return err
	})
	return rows, err
}

func (s *instrumented) Insert(ctx context.Context, table string, row Row) (Row, error) {
	var out Row
	err := s.call(ctx, "insert", table, func(ctx context.Context) error {
		var err error
		out, err = s.next.Insert(ctx, table, row)
		return err
	})
	return out, err
}

func (s *instrumented) Update(ctx context.Context, table, id string, patch Row) (Row, error) {
	var out Row
	err := s.call(ctx, "update", table, func(ctx context.Context) error {
		var err error
		out, err = s.next.Update(ctx, table, id, patch)
		return err
	})
	return out, err
}

func (s *instrumented) Upsert(ctx context.Context, table string, row Row) (Row, error) {
	var out Row
	err := s.call(ctx, "upsert", table, func(ctx context.Context) error {
		var err error
		out, err = s.next.Upsert(ctx, table, row)
		return err
	})
	return out, err
}

func (s *instrumented) Delete(ctx context.Context, table, id string) error {
	return s.call(ctx, "delete", table, func(ctx context.Context) error {
		return s.next.Delete(ctx, table, id)
	})
}

type instrumentedTx struct {
	*instrumented
	tx Transactor
}

func (s *instrumentedTx) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	ctx, span := s.opts.Tracer.Start(ctx, "store.tx")
	defer span.End()

	err := s.tx.InTx(ctx, func(ctx context.Context, tx Store) error {
		return fn(ctx, &instrumented{next: tx, opts: s.opts})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
