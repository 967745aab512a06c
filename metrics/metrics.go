package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "time26"

// Indicators is what the services report
type Indicators interface {
	IncSettlement(outcome string)
	IncLedgerOperation(operation, result string)
	IncCriticalInconsistency()
	ObserveChainCall(method, result string, elapsed time.Duration)
	IncPriceFetch(result string)
	SetClaimTreeEntries(n int)
}

// PromIndicators is the Prometheus implementation of Indicators
type PromIndicators struct {
	settlementsTotal  *prometheus.CounterVec
	ledgerOpsTotal    *prometheus.CounterVec
	criticalTotal     prometheus.Counter
	chainCallSeconds  *prometheus.HistogramVec
	priceFetchesTotal *prometheus.CounterVec
	claimTreeEntries  prometheus.Gauge
}

var _ Indicators = (*PromIndicators)(nil)

// NewPromIndicators registers every metric on reg
func NewPromIndicators(reg prometheus.Registerer) *PromIndicators {
	return &PromIndicators{
		settlementsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "runs_total",
				Help:      "settlement invocations by outcome",
			},
			[]string{"outcome"},
		),
		ledgerOpsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "ledger operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		criticalTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "critical_inconsistencies_total",
				Help:      "debits that could not be rolled back and need manual reconciliation",
			},
		),
		chainCallSeconds: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "chain",
				Name:      "call_duration_seconds",
				Help:      "latency of contract calls and transaction submissions",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "result"},
		),
		priceFetchesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pricing",
				Name:      "fetches_total",
				Help:      "price feed fetches by result",
			},
			[]string{"result"},
		),
		claimTreeEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "merkle",
				Name:      "claim_tree_entries",
				Help:      "leaves in the most recently built claim tree",
			},
		),
	}
}

func (p *PromIndicators) IncSettlement(outcome string) {
	p.settlementsTotal.WithLabelValues(outcome).Inc()
}

func (p *PromIndicators) IncLedgerOperation(operation, result string) {
	p.ledgerOpsTotal.WithLabelValues(operation, result).Inc()
}

func (p *PromIndicators) IncCriticalInconsistency() {
	p.criticalTotal.Inc()
}

func (p *PromIndicators) ObserveChainCall(method, result string, elapsed time.Duration) {
	p.chainCallSeconds.WithLabelValues(method, result).Observe(elapsed.Seconds())
}

func (p *PromIndicators) IncPriceFetch(result string) {
	p.priceFetchesTotal.WithLabelValues(result).Inc()
}

func (p *PromIndicators) SetClaimTreeEntries(n int) {
	p.claimTreeEntries.Set(float64(n))
}

// Result maps an error to a metric label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
