package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "storefront"

// Shipping request lifecycle labels.
const (
	ShippingIssued    = "issued"
	ShippingApplied   = "applied"
	ShippingDiscarded = "discarded"
	ShippingFailed    = "failed"
)

// CartMetrics counts cart mutations by operation and outcome status.
type CartMetrics struct {
	mutations *prometheus.CounterVec
	pruned    prometheus.Counter
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_mutations_total",
		Help:      "Cart mutations by operation and outcome.",
	}, []string{"op", "status"})
	pruned := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_items_pruned_total",
		Help:      "Cart lines dropped because their product no longer resolves.",
	})
	reg.MustRegister(mutations, pruned)
	return &CartMetrics{mutations: mutations, pruned: pruned}
}

func (c *CartMetrics) IncMutation(op, status string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op), normalizeLabel(status)).Inc()
}

func (c *CartMetrics) AddPruned(n int) {
	if c == nil || c.pruned == nil || n <= 0 {
		return
	}
	c.pruned.Add(float64(n))
}

// ShippingMetrics tracks shipping quote requests through their lifecycle.
type ShippingMetrics struct {
	requests *prometheus.CounterVec
}

func NewShippingMetrics(reg prometheus.Registerer) *ShippingMetrics {
	if reg == nil {
		return &ShippingMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shipping_requests_total",
		Help:      "Shipping cost requests by lifecycle stage.",
	}, []string{"stage"})
	reg.MustRegister(requests)
	return &ShippingMetrics{requests: requests}
}

func (s *ShippingMetrics) Inc(stage string) {
	if s == nil || s.requests == nil {
		return
	}
	s.requests.WithLabelValues(normalizeLabel(stage)).Inc()
}

// OrderMetrics counts order submissions and cancellations by result.
type OrderMetrics struct {
	submissions   *prometheus.CounterVec
	cancellations *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_submissions_total",
		Help:      "Order submissions by result.",
	}, []string{"result"})
	cancellations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_cancellations_total",
		Help:      "Order cancellations by result.",
	}, []string{"result"})
	reg.MustRegister(submissions, cancellations)
	return &OrderMetrics{submissions: submissions, cancellations: cancellations}
}

func (o *OrderMetrics) IncSubmission(result string) {
	if o == nil || o.submissions == nil {
		return
	}
	o.submissions.WithLabelValues(normalizeLabel(result)).Inc()
}

func (o *OrderMetrics) IncCancellation(result string) {
	if o == nil || o.cancellations == nil {
		return
	}
	o.cancellations.WithLabelValues(normalizeLabel(result)).Inc()
}
