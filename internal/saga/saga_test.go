package saga

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
)

type recorder struct {
	log []string
}

func (r *recorder) step(name string, fail error, undoFail error) Step {
	return Step{
		Name: name,
		Do: func(ctx context.Context) error {
			r.log = append(r.log, "do "+name)
			return fail
		},
		Compensate: func(ctx context.Context) error {
			r.log = append(r.log, "undo "+name)
			return undoFail
		},
	}
}

func TestRunAllSucceed(t *testing.T) {
	r := &recorder{}
	err := Run(context.Background(), r.step("a", nil, nil), r.step("b", nil, nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"do a", "do b"}
	if !reflect.DeepEqual(r.log, want) {
		t.Fatalf("log = %v, want %v", r.log, want)
	}
}

func TestRunFirstStepFailureIsNotPartial(t *testing.T) {
	r := &recorder{}
	boom := errors.New("boom")

	err := Run(context.Background(), r.step("a", boom, nil), r.step("b", nil, nil))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if errors.Is(err, apperror.ErrPartialFailure) {
		t.Fatal("nothing was committed, failure is not partial")
	}
	if !reflect.DeepEqual(r.log, []string{"do a"}) {
		t.Fatalf("log = %v", r.log)
	}
}

func TestRunCompensatesInReverse(t *testing.T) {
	r := &recorder{}
	boom := errors.New("boom")

	err := Run(context.Background(),
		r.step("a", nil, nil),
		Step{Name: "b", Do: func(context.Context) error { r.log = append(r.log, "do b"); return nil }},
		r.step("c", nil, nil),
		r.step("d", boom, nil),
	)

	var pf *apperror.PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("err = %v, want PartialFailureError", err)
	}
	if pf.Phase != "d" || !errors.Is(err, boom) || !pf.Compensated() {
		t.Fatalf("pf = %+v", pf)
	}

	want := []string{"do a", "do b", "do c", "do d", "undo c", "undo a"}
	if !reflect.DeepEqual(r.log, want) {
		t.Fatalf("log = %v, want %v", r.log, want)
	}
}

func TestRunReportsCompensationFailure(t *testing.T) {
	r := &recorder{}
	boom := errors.New("boom")
	stuck := errors.New("stuck")

	err := Run(context.Background(), r.step("a", nil, stuck), r.step("b", boom, nil))

	var pf *apperror.PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("err = %v", err)
	}
	if pf.Compensated() {
		t.Fatal("compensation failed, Compensated should be false")
	}
	if !errors.Is(err, stuck) || !errors.Is(err, boom) {
		t.Fatalf("both causes should be reachable: %v", err)
	}
}

func TestRunCompensatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var undoErr error

	err := Run(ctx,
		Step{
			Name: "a",
			Do:   func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				undoErr = ctx.Err()
				return nil
			},
		},
		Step{
			Name: "b",
			Do: func(ctx context.Context) error {
				cancel()
				return ctx.Err()
			},
		},
	)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if undoErr != nil {
		t.Fatalf("compensation saw cancelled context: %v", undoErr)
	}
}
