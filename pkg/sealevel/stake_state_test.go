package sealevel

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delegatedState(activation uint64, deactivation uint64, stake uint64) *StakeStateV2 {
	meta := Meta{RentExemptReserve: stakeRent, Authorized: Authorized{Staker: solana.PublicKey{1}, Withdrawer: solana.PublicKey{1}}}
	delegation := Delegation{VoterPubkey: solana.PublicKey{9}, Stake: stake, ActivationEpoch: activation, DeactivationEpoch: deactivation, WarmupCooldownRate: DefaultWarmupCooldownRate}
	return &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: meta, Stake: Stake{Delegation: delegation}}}
}

func TestStakeActivationStatus(t *testing.T) {
	cases := []struct {
		name   string
		state  *StakeStateV2
		epoch  uint64
		status int
	}{
		{"uninitialized", &StakeStateV2{}, 5, StakeStatusUninitialized},
		{"initialized", &StakeStateV2{Status: StakeStateV2StatusInitialized}, 5, StakeStatusInitialized},
		{"activating in delegation epoch", delegatedState(5, math.MaxUint64, 1), 5, StakeStatusActivating},
		{"active after boundary", delegatedState(5, math.MaxUint64, 1), 6, StakeStatusActive},
		{"deactivating in deactivation epoch", delegatedState(5, 8, 1), 8, StakeStatusDeactivating},
		{"inactive after boundary", delegatedState(5, 8, 1), 9, StakeStatusInactive},
		{"deactivated while activating", delegatedState(5, 5, 1), 5, StakeStatusInactive},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.status, StakeActivationStatus(c.state, c.epoch))
		})
	}
}

func TestStakeState_EncodesIntoAccountSize(t *testing.T) {
	state := delegatedState(3, math.MaxUint64, 42)
	data, err := MarshalStakeState(state)
	require.NoError(t, err)
	assert.Len(t, data, StakeStateV2Size)

	decoded, err := UnmarshalStakeState(data)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)

	_, err = UnmarshalStakeState([]byte{9, 0, 0, 0})
	assert.ErrorIs(t, err, InstrErrInvalidAccountData)

	assert.ErrorIs(t, marshalStakeStateInto(state, make([]byte, 10)), InstrErrAccountDataTooSmall)
}

func TestMergeStates(t *testing.T) {
	const epoch = 10

	kind := func(state *StakeStateV2) *mergeKind {
		k, err := getMergeKind(state, epoch)
		require.NoError(t, err)
		return k
	}

	initialized := &StakeStateV2{Status: StakeStateV2StatusInitialized, Initialized: StakeStateV2Initialized{Meta: delegatedState(0, 0, 0).Stake.Meta}}
	activating := delegatedState(epoch, math.MaxUint64, 2_000)
	active := delegatedState(1, math.MaxUint64, 3_000)

	_, err := getMergeKind(delegatedState(1, epoch, 1), epoch)
	assert.ErrorIs(t, err, StakeErrMergeTransientStake)

	merged, err := mergeStates(kind(initialized), kind(initialized), 100)
	require.NoError(t, err)
	assert.Nil(t, merged)

	merged, err = mergeStates(kind(initialized), kind(activating), 100)
	require.NoError(t, err)
	assert.Nil(t, merged)

	merged, err = mergeStates(kind(activating), kind(initialized), 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500), merged.Stake.Stake.Delegation.Stake)

	merged, err = mergeStates(kind(activating), kind(delegatedState(epoch, math.MaxUint64, 700)), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000+stakeRent+700), merged.Stake.Stake.Delegation.Stake)

	merged, err = mergeStates(kind(active), kind(delegatedState(2, math.MaxUint64, 1_000)), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000), merged.Stake.Stake.Delegation.Stake)

	_, err = mergeStates(kind(active), kind(activating), 0)
	assert.ErrorIs(t, err, StakeErrMergeMismatch)

	_, err = mergeStates(kind(active), kind(initialized), 0)
	assert.ErrorIs(t, err, StakeErrMergeMismatch)

	otherVoter := delegatedState(1, math.MaxUint64, 1_000)
	otherVoter.Stake.Stake.Delegation.VoterPubkey = solana.PublicKey{8}
	_, err = mergeStates(kind(active), kind(otherVoter), 0)
	assert.ErrorIs(t, err, StakeErrMergeMismatch)
}
