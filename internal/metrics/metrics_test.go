package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAdjustment("in", 5*time.Millisecond)
	m.ObserveAdjustment("in", 5*time.Millisecond)
	m.ObserveRejection("insufficient_stock")
	m.ObserveDenial("", "inventory", "update")
	m.ObserveCompensation("create inventory", true)

	if got := testutil.ToFloat64(m.adjustments.WithLabelValues("in")); got != 2 {
		t.Errorf("adjustments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rejections.WithLabelValues("insufficient_stock")); got != 1 {
		t.Errorf("rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.denials.WithLabelValues("anonymous", "inventory", "update")); got != 1 {
		t.Errorf("denials = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.compensationRuns.WithLabelValues("create inventory", "compensated")); got != 1 {
		t.Errorf("compensations = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAdjustment("out", time.Millisecond)
	m.ObserveRejection("error")
	m.ObserveDenial("user", "inventory", "update")
	m.ObserveCompensation("x", false)

	_, err := m.UnaryServerInterceptor()(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: "/x/Y"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return nil, nil })
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestInterceptorRecordsStatus(t *testing.T) {
	m := New(prometheus.NewRegistry())
	intercept := m.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/inventory.InventoryService/AdjustInventory"}

	intercept(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	intercept(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(grpccodes.FailedPrecondition, "insufficient stock")
	})
	intercept(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, errors.New("plain")
	})

	for code, want := range map[string]float64{"OK": 1, "FailedPrecondition": 1, "Unknown": 1} {
		if got := testutil.ToFloat64(m.grpcRequests.WithLabelValues(info.FullMethod, code)); got != want {
			t.Errorf("requests{%s} = %v, want %v", code, got, want)
		}
	}
}
