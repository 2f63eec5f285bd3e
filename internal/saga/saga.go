// Package saga runs multi-step writes against stores without transactions. Each committed
// step can register a compensation that undoes it if a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
)

type Step struct {
	Name string
	Do   func(ctx context.Context) error
	// Compensate undoes Do. Nil means the step has nothing to undo.
	Compensate func(ctx context.Context) error
}

// Run executes steps in order. A failing first step returns its error unchanged. A failure
// after at least one committed step compensates the committed steps in reverse order and
// returns *apperror.PartialFailureError naming the failed step.
//
// Compensations run on a context detached from ctx cancellation so a caller timeout does not
// leave half-written rows behind.
func Run(ctx context.Context, steps ...Step) error {
	for i, step := range steps {
		err := step.Do(ctx)
		if err == nil {
			continue
		}
		if i == 0 {
			return err
		}

		return &apperror.PartialFailureError{
			Phase:           step.Name,
			Err:             err,
			CompensationErr: compensate(context.WithoutCancel(ctx), steps[:i]),
		}
	}
	return nil
}

func compensate(ctx context.Context, done []Step) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		if done[i].Compensate == nil {
			continue
		}
		if err := done[i].Compensate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", done[i].Name, err))
		}
	}
	return errors.Join(errs...)
}
