package lstpool

import (
	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "lstpool"

// Metrics counts pool instructions by result and tracks the committed
// ledger of every pool. A nil *Metrics records nothing.
type Metrics struct {
	programID    solana.PublicKey
	instructions *prometheus.CounterVec
	supply       *prometheus.GaugeVec
	pending      *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer, cfg *Config) (*Metrics, error) {
	m := &Metrics{
		programID: cfg.ProgramID,
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "instructions_total",
			Help:      "Pool instructions executed, by instruction and result code.",
		}, []string{"instruction", "code"}),
		supply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "lst_supply",
			Help:      "Committed share supply of each pool.",
		}, []string{"pool"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_deposits_lamports",
			Help:      "Committed deposits not yet merged into the primary position.",
		}, []string{"pool"}),
	}

	for _, c := range []prometheus.Collector{m.instructions, m.supply, m.pending} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeInstruction(instrType uint8, err error) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(InstrName(instrType), CodeOf(err).String()).Inc()
}

// ObserveCommitted updates the ledger gauges from pool accounts written by
// a committed transaction. It is meant to be installed as an executor
// commit hook.
func (m *Metrics) ObserveCommitted(committed []*accounts.Account) {
	if m == nil {
		return
	}
	for _, acct := range committed {
		if acct.Owner != m.programID || len(acct.Data) == 0 {
			continue
		}
		pool, err := UnmarshalPool(acct.Data)
		if err != nil || !pool.IsInitialized {
			continue
		}
		m.supply.WithLabelValues(acct.Key.String()).Set(float64(pool.LstSupply))
		m.pending.WithLabelValues(acct.Key.String()).Set(float64(pool.PendingDeposits))
	}
}
