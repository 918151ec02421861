package lstpool

import (
	"encoding/binary"
	"testing"

	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool() *Pool {
	return &Pool{
		Mint:            solana.NewWallet().PublicKey(),
		Authority:       solana.NewWallet().PublicKey(),
		Validator:       solana.NewWallet().PublicKey(),
		Stake:           solana.NewWallet().PublicKey(),
		Reserve:         solana.NewWallet().PublicKey(),
		Seed:            0x0102030405060708,
		PoolBump:        255,
		MintBump:        254,
		StakeBump:       253,
		ReserveBump:     252,
		LstSupply:       4_064_516_129,
		PendingDeposits: 3_100_000_000,
		IsInitialized:   true,
	}
}

func TestPool_Layout(t *testing.T) {
	pool := testPool()
	data, err := pool.Marshal()
	require.NoError(t, err)
	require.Len(t, data, PoolAccountSize)

	assert.Equal(t, byte(AccountTypePool), data[0])
	assert.Equal(t, byte(PoolSchemaVersion), data[1])
	assert.Equal(t, pool.Mint[:], data[2:34])
	assert.Equal(t, pool.Reserve[:], data[130:162])
	assert.Equal(t, pool.Seed, binary.LittleEndian.Uint64(data[162:170]))
	assert.Equal(t, []byte{255, 254, 253, 252}, data[170:174])
	assert.Equal(t, pool.LstSupply, binary.LittleEndian.Uint64(data[174:182]))
	assert.Equal(t, pool.PendingDeposits, binary.LittleEndian.Uint64(data[182:190]))
	assert.Equal(t, byte(1), data[190])

	decoded, err := UnmarshalPool(data)
	require.NoError(t, err)
	assert.Equal(t, pool, decoded)
}

func TestUnmarshalPool_Rejects(t *testing.T) {
	data, err := testPool().Marshal()
	require.NoError(t, err)

	_, err = UnmarshalPool(data[:PoolAccountSize-1])
	assert.ErrorIs(t, err, sealevel.InstrErrInvalidAccountData)

	wrongType := append([]byte{}, data...)
	wrongType[0] = 9
	_, err = UnmarshalPool(wrongType)
	assert.ErrorIs(t, err, sealevel.InstrErrInvalidAccountData)

	futureVersion := append([]byte{}, data...)
	futureVersion[1] = PoolSchemaVersion + 1
	_, err = UnmarshalPool(futureVersion)
	assert.ErrorIs(t, err, sealevel.InstrErrInvalidAccountData)

	_, err = UnmarshalPool(make([]byte, PoolAccountSize))
	assert.ErrorIs(t, err, sealevel.InstrErrInvalidAccountData)
}
