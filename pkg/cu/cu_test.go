package cu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeter(t *testing.T) {
	meter := NewMeter(1_000)
	require.NoError(t, meter.Consume(600))
	require.NoError(t, meter.Consume(400))
	assert.Equal(t, uint64(1_000), meter.Used())
	assert.Zero(t, meter.Remaining())

	assert.ErrorIs(t, meter.Consume(1), ErrBudgetExceeded)
}

func TestMeter_OverchargeSpendsBudget(t *testing.T) {
	meter := NewMeterDefault()
	require.NoError(t, meter.Consume(5_000))

	assert.ErrorIs(t, meter.Consume(MaxComputeUnitLimit), ErrBudgetExceeded)
	assert.Equal(t, uint64(MaxComputeUnitLimit), meter.Used())
	assert.ErrorIs(t, meter.Consume(1), ErrBudgetExceeded)
}
