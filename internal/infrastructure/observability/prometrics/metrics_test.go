package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_CounterRecordsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "")
	if err := r.Register(observability.CounterSpecs, observability.HistogramSpecs); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	c := r.Counter(observability.MCheckoutRejections)
	c.Add(1, observability.L("reason", "insufficient_stock"))
	c.Add(2, observability.L("reason", "insufficient_stock"))

	got := testutil.ToFloat64(r.counters[observability.MCheckoutRejections].WithLabelValues("insufficient_stock"))
	if got != 3 {
		t.Errorf("counter = %v, want 3", got)
	}
}

func TestRegistry_UnknownKeyIsNop(t *testing.T) {
	r := New(prometheus.NewRegistry(), "")
	r.Counter("missing").Add(1)
	r.Histogram("missing").Observe(1)
}

func TestRegistry_MismatchedLabelsAreDropped(t *testing.T) {
	r := New(prometheus.NewRegistry(), "")
	if err := r.Register(observability.CounterSpecs, nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	r.Counter(observability.MStockReserveRetries).Add(1, observability.L("unknown", "x"))
}
