package sealevel

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "lstpool"

// ExecutorMetrics counts executed transactions by result code and tracks
// compute unit usage.
type ExecutorMetrics struct {
	transactions *prometheus.CounterVec
	computeUnits prometheus.Histogram
}

func NewExecutorMetrics(reg prometheus.Registerer) (*ExecutorMetrics, error) {
	m := &ExecutorMetrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "transactions_total",
			Help:      "Transactions processed, by instruction error code (0 on success).",
		}, []string{"code"}),
		computeUnits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "compute_units",
			Help:      "Compute units consumed per transaction.",
			Buckets:   prometheus.ExponentialBuckets(1000, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{m.transactions, m.computeUnits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *ExecutorMetrics) observe(computeUnits uint64, err error) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(strconv.Itoa(TranslateErrToInstrErrCode(err))).Inc()
	m.computeUnits.Observe(float64(computeUnits))
}
