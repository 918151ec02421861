package lstpool

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalPoolValue(t *testing.T) {
	total, err := TotalPoolValue(stakeRent+1_000_000_000, stakeRent+2_000_000_000, stakeRent)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000_000_000), total)

	// an emptied reserve is worth nothing, as is one holding only its rent
	total, err = TotalPoolValue(stakeRent+1_000_000_000, 0, stakeRent)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), total)
	total, err = TotalPoolValue(stakeRent+1_000_000_000, 1_000, stakeRent)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), total)

	_, err = TotalPoolValue(math.MaxUint64, math.MaxUint64, 0)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestDepositValue(t *testing.T) {
	added, err := DepositValue(stakeRent+1_000_000_000, stakeRent, 500_000_000, stakeRent)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), added)

	// an emptied reserve keeps its rent out of the deposit
	added, err = DepositValue(stakeRent+1_000_000_000, 0, 3_000_000_000, stakeRent)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000_000_000-stakeRent), added)
	added, err = DepositValue(stakeRent+1_000_000_000, 1_000, stakeRent, stakeRent)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), added)
	added, err = DepositValue(stakeRent+1_000_000_000, 0, stakeRent, stakeRent)
	require.NoError(t, err)
	assert.Zero(t, added)

	_, err = DepositValue(stakeRent, math.MaxUint64, 1, stakeRent)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestQuoteMint(t *testing.T) {
	minted, err := QuoteMint(5_000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), minted)

	_, err = QuoteMint(0, 0, 0)
	assert.ErrorIs(t, err, ErrZeroQuote)

	minted, err = QuoteMint(2_000_000_000, 1_000_000_000, 1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000_000), minted)

	minted, err = QuoteMint(1_100_000_000, 3_000_000_000, 3_100_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_064_516_129), minted)

	_, err = QuoteMint(1, 3_000_000_000, 3_100_000_000)
	assert.ErrorIs(t, err, ErrZeroQuote)

	_, err = QuoteMint(1_000, 1_000, 0)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = QuoteMint(math.MaxUint64, math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestQuoteMint_LargeIntermediate(t *testing.T) {
	// deposit*supply overflows 64 bits, the quotient does not
	minted, err := QuoteMint(math.MaxUint64/2, math.MaxUint64/2, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/4), minted)
}

func TestQuoteBurn(t *testing.T) {
	_, err := QuoteBurn(1, 0, 1_000)
	assert.ErrorIs(t, err, ErrZeroSupply)

	value, err := QuoteBurn(2_000_000_000, 6_000_000_000, 6_000_000_000+stakeRent)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_760_960), value)

	_, err = QuoteBurn(1, 3_100_000_000, 3_000_000_000)
	assert.ErrorIs(t, err, ErrZeroQuote)
}

func TestQuotes_RoundTowardHolders(t *testing.T) {
	supply, total := uint64(3_000_000_000), uint64(3_100_000_000)
	for _, deposit := range []uint64{1_000_000_007, 31_415_926, 999_999_999_999} {
		minted, err := QuoteMint(deposit, supply, total)
		require.NoError(t, err)

		// redeeming fresh shares straight away never returns more than was paid
		value := RedeemableValue(minted, supply+minted, total+deposit)
		assert.LessOrEqual(t, value, deposit)
	}
}

func TestRedeemableValue(t *testing.T) {
	assert.Zero(t, RedeemableValue(10, 0, 100))
	assert.Equal(t, uint64(50), RedeemableValue(10, 20, 100))
	assert.Zero(t, RedeemableValue(math.MaxUint64, 1, math.MaxUint64))
}
