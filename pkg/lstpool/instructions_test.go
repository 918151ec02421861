package lstpool

import (
	"encoding/binary"
	"testing"

	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionEncoding(t *testing.T) {
	addrs, err := DeriveAddresses(DefaultProgramID, solana.NewWallet().PublicKey(), 0x1122)
	require.NoError(t, err)
	user := solana.NewWallet().PublicKey()
	validator := solana.NewWallet().PublicKey()

	initialize, err := NewInitializeInstruction(addrs, validator)
	require.NoError(t, err)
	require.Len(t, initialize.Data, 1+initializePayloadLen)
	assert.Equal(t, byte(InstrTypeInitialize), initialize.Data[0])
	assert.Equal(t, uint64(0x1122), binary.LittleEndian.Uint64(initialize.Data[1:9]))
	assert.Equal(t, []byte{addrs.PoolBump, addrs.MintBump, addrs.StakeBump, addrs.ReserveBump}, initialize.Data[9:])
	assert.Len(t, initialize.Accounts, 7)
	assert.True(t, initialize.Accounts[0].IsSigner)
	assert.Equal(t, validator, initialize.Accounts[6].Pubkey)

	deposit, err := NewDepositInstruction(addrs, user, 12345)
	require.NoError(t, err)
	assert.Equal(t, []byte{InstrTypeDeposit, 0x39, 0x30, 0, 0, 0, 0, 0, 0}, deposit.Data)
	assert.False(t, deposit.Accounts[2].IsWritable)

	assert.Equal(t, []byte{InstrTypeInitializeReserve}, NewInitializeReserveInstruction(addrs, validator).Data)
	assert.Equal(t, []byte{InstrTypeMergeReserve}, NewMergeReserveInstruction(addrs).Data)

	withdraw, err := NewWithdrawInstruction(addrs, user, 7, 9)
	require.NoError(t, err)
	require.Len(t, withdraw.Data, 1+withdrawPayloadLen)
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(withdraw.Data[1:9]))
	assert.Equal(t, uint64(9), binary.LittleEndian.Uint64(withdraw.Data[9:17]))

	ticket, _, err := TicketAddress(DefaultProgramID, addrs.Pool, user, 9)
	require.NoError(t, err)
	assert.Equal(t, ticket, withdraw.Accounts[4].Pubkey)

	complete, err := NewWithdrawCompleteInstruction(addrs, user, 9)
	require.NoError(t, err)
	assert.Equal(t, []byte{InstrTypeWithdrawComplete, 9, 0, 0, 0, 0, 0, 0, 0}, complete.Data)
	assert.Equal(t, ticket, complete.Accounts[2].Pubkey)
	assert.Equal(t, DefaultProgramID, complete.ProgramId)
}

func TestDecodePayload_ExactLength(t *testing.T) {
	var params InstrWithdraw
	for _, n := range []int{0, withdrawPayloadLen - 1, withdrawPayloadLen + 1} {
		err := decodePayload(make([]byte, n), withdrawPayloadLen, &params)
		assert.ErrorIs(t, err, sealevel.InstrErrInvalidInstructionData)
	}

	data := encodeInstrData(InstrTypeWithdraw, &InstrWithdraw{Amount: 3, Nonce: 4})
	require.NoError(t, decodePayload(data[1:], withdrawPayloadLen, &params))
	assert.Equal(t, InstrWithdraw{Amount: 3, Nonce: 4}, params)
}

func TestInstrName(t *testing.T) {
	assert.Equal(t, "merge_reserve", InstrName(InstrTypeMergeReserve))
	assert.Equal(t, "unknown", InstrName(200))
	var _ bin.BinaryUnmarshaler = (*InstrInitialize)(nil)
}
