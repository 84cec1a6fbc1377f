package prometrics

import (
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry materialises metric specs as Prometheus vectors and serves them through the
// observability.Metrics port.
type Registry struct {
	reg        prometheus.Registerer
	namespace  string
	mu         sync.RWMutex
	counters   map[observability.MetricKey]*prometheus.CounterVec
	histograms map[observability.MetricKey]*prometheus.HistogramVec
}

// New creates a registry writing to reg. A nil reg uses the default Prometheus registerer.
func New(reg prometheus.Registerer, namespace string) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Registry{
		reg:        reg,
		namespace:  namespace,
		counters:   make(map[observability.MetricKey]*prometheus.CounterVec),
		histograms: make(map[observability.MetricKey]*prometheus.HistogramVec),
	}
}

// Register creates and registers every counter and histogram described by the specs.
// Keys registered twice keep the first vector.
func (r *Registry) Register(counters, histograms []observability.Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range counters {
		if _, ok := r.counters[s.Key]; ok {
			continue
		}
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: r.namespace, Name: string(s.Key), Help: s.Help,
		}, s.Labels)
		if err := r.reg.Register(cv); err != nil {
			return err
		}
		r.counters[s.Key] = cv
	}
	for _, s := range histograms {
		if _, ok := r.histograms[s.Key]; ok {
			continue
		}
		buckets := s.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: r.namespace, Name: string(s.Key), Help: s.Help, Buckets: buckets,
		}, s.Labels)
		if err := r.reg.Register(hv); err != nil {
			return err
		}
		r.histograms[s.Key] = hv
	}
	return nil
}

func (r *Registry) Counter(name observability.MetricKey) observability.Counter {
	r.mu.RLock()
	v, ok := r.counters[name]
	r.mu.RUnlock()
	if !ok {
		return observability.NopCounter()
	}
	return &counter{v: v}
}

func (r *Registry) Histogram(name observability.MetricKey) observability.Histogram {
	r.mu.RLock()
	v, ok := r.histograms[name]
	r.mu.RUnlock()
	if !ok {
		return observability.NopHistogram()
	}
	return &histogram{v: v}
}

type counter struct{ v *prometheus.CounterVec }

func (c *counter) Add(d float64, labels ...observability.Label) {
	m, err := c.v.GetMetricWith(labelMap(labels))
	if err != nil {
		return
	}
	m.Add(d)
}

type histogram struct{ v *prometheus.HistogramVec }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	m, err := h.v.GetMetricWith(labelMap(labels))
	if err != nil {
		return
	}
	m.Observe(v)
}

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}
