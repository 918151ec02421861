package cu

import (
	"github.com/pkg/errors"
)

var ErrBudgetExceeded = errors.New("compute budget exceeded")

// MaxComputeUnitLimit is the per-transaction compute budget.
const MaxComputeUnitLimit = 1_400_000

// Meter charges compute units against a fixed budget. Once a charge fails
// the budget counts as spent.
type Meter struct {
	budget uint64
	used   uint64
}

func NewMeter(budget uint64) Meter {
	return Meter{budget: budget}
}

func NewMeterDefault() Meter {
	return NewMeter(MaxComputeUnitLimit)
}

func (m *Meter) Consume(cost uint64) error {
	if cost > m.Remaining() {
		m.used = m.budget
		return errors.Wrapf(ErrBudgetExceeded, "charging %d units", cost)
	}
	m.used += cost
	return nil
}

func (m *Meter) Used() uint64 {
	return m.used
}

func (m *Meter) Remaining() uint64 {
	return m.budget - m.used
}
