package lstpool

import (
	"context"
	"testing"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	stakeRent           = 2_282_880
	testWalletLamports  = 1_000_000_000_000
	testPoolSeed        = 42
	bootstrapShares     = sealevel.StakeMinimumDelegation
	voteAccountDataSize = 3762
)

type poolFixture struct {
	exec      *sealevel.Executor
	cfg       *Config
	metrics   *Metrics
	creator   solana.PublicKey
	validator solana.PublicKey
	addrs     *Addresses
}

func newTestExecutor(t *testing.T) *sealevel.Executor {
	exec := sealevel.NewExecutor(accounts.NewMemAccounts())
	require.NoError(t, exec.Genesis(sealevel.SysvarClock{Slot: 1}, sealevel.DefaultRent()))
	return exec
}

func newFundedWallet(t *testing.T, exec *sealevel.Executor) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	require.NoError(t, exec.Airdrop(key, testWalletLamports))
	return key
}

func newTestVoteAccount(t *testing.T, exec *sealevel.Executor) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	rent := sealevel.DefaultRent()
	voteAcct := &accounts.Account{Key: key, Lamports: rent.MinimumBalance(voteAccountDataSize), Data: make([]byte, voteAccountDataSize), Owner: sealevel.VoteProgramAddr}
	require.NoError(t, exec.SetAccount(voteAcct))
	return key
}

// newPoolFixture registers the pool program on a fresh executor and
// initializes one pool.
func newPoolFixture(t *testing.T) *poolFixture {
	f := newUninitializedFixture(t)
	instr, err := NewInitializeInstruction(f.addrs, f.validator)
	require.NoError(t, err)
	require.NoError(t, f.process([]solana.PublicKey{f.creator}, instr))
	return f
}

func newUninitializedFixture(t *testing.T) *poolFixture {
	exec := newTestExecutor(t)
	cfg := DefaultConfig()
	metrics, err := NewMetrics(prometheus.NewRegistry(), cfg)
	require.NoError(t, err)
	NewProgram(cfg, metrics).Register(exec)

	creator := newFundedWallet(t, exec)
	addrs, err := DeriveAddresses(cfg.ProgramID, creator, testPoolSeed)
	require.NoError(t, err)

	return &poolFixture{exec: exec, cfg: cfg, metrics: metrics, creator: creator, validator: newTestVoteAccount(t, exec), addrs: addrs}
}

func (f *poolFixture) process(signers []solana.PublicKey, instrs ...sealevel.Instruction) error {
	_, err := f.exec.ProcessTransaction(context.Background(), sealevel.NewTransaction(signers, instrs...))
	return err
}

func (f *poolFixture) account(t *testing.T, key solana.PublicKey) *accounts.Account {
	acct, err := f.exec.GetAccount(key)
	require.NoError(t, err)
	return acct
}

func (f *poolFixture) lamports(t *testing.T, key solana.PublicKey) uint64 {
	return f.account(t, key).Lamports
}

func (f *poolFixture) pool(t *testing.T) *Pool {
	pool, err := UnmarshalPool(f.account(t, f.addrs.Pool).Data)
	require.NoError(t, err)
	return pool
}

func (f *poolFixture) shares(t *testing.T, owner solana.PublicKey) uint64 {
	ata, err := f.addrs.LstAccount(owner)
	require.NoError(t, err)
	acct := f.account(t, ata)
	if len(acct.Data) == 0 {
		return 0
	}
	tokenAcct, err := sealevel.UnmarshalTokenAccount(acct.Data)
	require.NoError(t, err)
	return tokenAcct.Amount
}

func (f *poolFixture) mintSupply(t *testing.T) uint64 {
	mint, err := sealevel.UnmarshalTokenMint(f.account(t, f.addrs.Mint).Data)
	require.NoError(t, err)
	return mint.Supply
}

func (f *poolFixture) totalValue(t *testing.T) uint64 {
	total, err := TotalPoolValue(f.lamports(t, f.addrs.Stake), f.lamports(t, f.addrs.Reserve), stakeRent)
	require.NoError(t, err)
	return total
}

func (f *poolFixture) stakeStatus(t *testing.T, key solana.PublicKey) int {
	state, err := sealevel.UnmarshalStakeState(f.account(t, key).Data)
	require.NoError(t, err)
	clock, err := sealevel.ReadClockSysvar(f.exec.Accounts())
	require.NoError(t, err)
	return sealevel.StakeActivationStatus(state, clock.Epoch)
}

func (f *poolFixture) deposit(user solana.PublicKey, amount uint64) error {
	instr, err := NewDepositInstruction(f.addrs, user, amount)
	if err != nil {
		return err
	}
	return f.process([]solana.PublicKey{user}, instr)
}

func (f *poolFixture) initializeReserve() error {
	return f.process(nil, NewInitializeReserveInstruction(f.addrs, f.validator))
}

func (f *poolFixture) mergeReserve() error {
	return f.process(nil, NewMergeReserveInstruction(f.addrs))
}

func (f *poolFixture) withdraw(user solana.PublicKey, shares uint64, nonce uint64) error {
	instr, err := NewWithdrawInstruction(f.addrs, user, shares, nonce)
	if err != nil {
		return err
	}
	return f.process([]solana.PublicKey{user}, instr)
}

func (f *poolFixture) complete(user solana.PublicKey, nonce uint64) error {
	instr, err := NewWithdrawCompleteInstruction(f.addrs, user, nonce)
	if err != nil {
		return err
	}
	return f.process([]solana.PublicKey{user}, instr)
}

func (f *poolFixture) ticket(t *testing.T, user solana.PublicKey, nonce uint64) solana.PublicKey {
	ticket, _, err := TicketAddress(f.cfg.ProgramID, f.addrs.Pool, user, nonce)
	require.NoError(t, err)
	return ticket
}

// settleDeposits delegates the reserve and merges it into the primary
// position within the current epoch.
func (f *poolFixture) settleDeposits(t *testing.T) {
	require.NoError(t, f.initializeReserve())
	require.NoError(t, f.mergeReserve())
}
