package lstpool

import (
	"math"
	"testing"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func borrowed(acct *accounts.Account) *sealevel.BorrowedAccount {
	return &sealevel.BorrowedAccount{Account: acct}
}

func storedPool(t *testing.T, addrs *Addresses, validator solana.PublicKey) *accounts.Account {
	pool, err := InitializePool(borrowed(accounts.NewEmptyAccount(addrs.Pool)), PoolParams{Addresses: addrs, Validator: validator})
	require.NoError(t, err)
	data, err := pool.Marshal()
	require.NoError(t, err)
	return &accounts.Account{Key: addrs.Pool, Lamports: 2_220_240, Data: data, Owner: addrs.ProgramID}
}

func TestInitializePool(t *testing.T) {
	addrs, err := DeriveAddresses(DefaultProgramID, solana.NewWallet().PublicKey(), 5)
	require.NoError(t, err)
	validator := solana.NewWallet().PublicKey()

	pool, err := InitializePool(borrowed(accounts.NewEmptyAccount(addrs.Pool)), PoolParams{Addresses: addrs, Validator: validator})
	require.NoError(t, err)
	assert.True(t, pool.IsInitialized)
	assert.Equal(t, addrs.Creator, pool.Authority)
	assert.Equal(t, validator, pool.Validator)
	assert.Equal(t, addrs.ReserveBump, pool.ReserveBump)
	assert.Zero(t, pool.LstSupply)

	funded := accounts.NewEmptyAccount(addrs.Pool)
	funded.Lamports = 1
	_, err = InitializePool(borrowed(funded), PoolParams{Addresses: addrs, Validator: validator})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestLoadPool(t *testing.T) {
	addrs, err := DeriveAddresses(DefaultProgramID, solana.NewWallet().PublicKey(), 5)
	require.NoError(t, err)
	acct := storedPool(t, addrs, solana.NewWallet().PublicKey())

	pool, err := LoadPool(borrowed(acct), DefaultProgramID)
	require.NoError(t, err)
	assert.Equal(t, addrs.Mint, pool.Mint)

	_, err = LoadPool(borrowed(accounts.NewEmptyAccount(addrs.Pool)), DefaultProgramID)
	assert.ErrorIs(t, err, ErrUninitialized)

	foreign := acct.Clone()
	foreign.Owner = sealevel.SystemProgramAddr
	_, err = LoadPool(borrowed(foreign), DefaultProgramID)
	assert.ErrorIs(t, err, sealevel.InstrErrInvalidAccountOwner)

	// a valid record copied to an address it does not derive to
	moved := acct.Clone()
	moved.Key = solana.NewWallet().PublicKey()
	_, err = LoadPool(borrowed(moved), DefaultProgramID)
	assert.ErrorIs(t, err, ErrAddressMismatch)

	cleared := acct.Clone()
	cleared.Data[PoolAccountSize-1] = 0
	_, err = LoadPool(borrowed(cleared), DefaultProgramID)
	assert.ErrorIs(t, err, ErrUninitialized)
}

func TestPool_RecordDeposit(t *testing.T) {
	pool := &Pool{LstSupply: 1_000_000_000}
	require.NoError(t, pool.RecordDeposit(2_000_000_000, 2_000_000_000))
	assert.Equal(t, uint64(3_000_000_000), pool.LstSupply)
	assert.Equal(t, uint64(2_000_000_000), pool.PendingDeposits)

	full := &Pool{LstSupply: math.MaxUint64}
	assert.ErrorIs(t, full.RecordDeposit(1, 1), ErrArithmeticOverflow)
	assert.Equal(t, uint64(math.MaxUint64), full.LstSupply)
	assert.Zero(t, full.PendingDeposits)
}

func TestPool_RecordWithdrawal(t *testing.T) {
	pool := &Pool{LstSupply: 3_000_000_000}
	require.NoError(t, pool.RecordWithdrawal(2_000_000_000))
	assert.Equal(t, uint64(1_000_000_000), pool.LstSupply)

	err := pool.RecordWithdrawal(1_000_000_001)
	assert.ErrorIs(t, err, ErrLedgerCorrupted)
	assert.Equal(t, CodeLedgerCorrupted, CodeOf(err))
	assert.Equal(t, uint64(1_000_000_000), pool.LstSupply)
}

func TestPool_RecordMergeSettled(t *testing.T) {
	pool := &Pool{PendingDeposits: 5_000_000_000}
	pool.RecordMergeSettled(2_000_000_000)
	assert.Equal(t, uint64(3_000_000_000), pool.PendingDeposits)

	// settling the reserve's rent along with its deposits floors at zero
	pool.RecordMergeSettled(3_000_000_000 + stakeRent)
	assert.Zero(t, pool.PendingDeposits)
}
