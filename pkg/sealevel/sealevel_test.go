package sealevel

import (
	"context"
	"testing"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	pda "github.com/Overclock-Validator/lstpool/pkg/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWalletLamports = 100_000_000_000

func newTestExecutor(t *testing.T) *Executor {
	exec := NewExecutor(accounts.NewMemAccounts())
	require.NoError(t, exec.Genesis(SysvarClock{Slot: 1}, DefaultRent()))
	return exec
}

func newFundedWallet(t *testing.T, exec *Executor) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	require.NoError(t, exec.Airdrop(key, testWalletLamports))
	return key
}

func newTestVoteAccount(t *testing.T, exec *Executor) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	rent := DefaultRent()
	voteAcct := &accounts.Account{Key: key, Lamports: rent.MinimumBalance(3762), Data: make([]byte, 3762), Owner: VoteProgramAddr}
	require.NoError(t, exec.SetAccount(voteAcct))
	return key
}

func processTx(exec *Executor, signers []solana.PublicKey, instrs ...Instruction) error {
	_, err := exec.ProcessTransaction(context.Background(), NewTransaction(signers, instrs...))
	return err
}

func getAccount(t *testing.T, exec *Executor, key solana.PublicKey) *accounts.Account {
	acct, err := exec.GetAccount(key)
	require.NoError(t, err)
	return acct
}

func TestExecutor_CancelledContextAppliesNothing(t *testing.T) {
	exec := newTestExecutor(t)
	from := newFundedWallet(t, exec)
	to := solana.NewWallet().PublicKey()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.ProcessTransaction(ctx, NewTransaction([]solana.PublicKey{from}, NewSystemTransferInstruction(from, to, 1_000_000_000)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), getAccount(t, exec, to).Lamports)
}

func TestExecutor_EmptyTransaction(t *testing.T) {
	exec := newTestExecutor(t)
	_, err := exec.ProcessTransaction(context.Background(), NewTransaction(nil))
	assert.ErrorIs(t, err, TxErrEmptyTransaction)
}

func TestExecutor_FailedInstructionDiscardsEarlierOnes(t *testing.T) {
	exec := newTestExecutor(t)
	from := newFundedWallet(t, exec)
	to := solana.NewWallet().PublicKey()

	err := processTx(exec, []solana.PublicKey{from},
		NewSystemTransferInstruction(from, to, 1_000_000_000),
		NewSystemTransferInstruction(from, to, 2*testWalletLamports))
	assert.ErrorIs(t, err, SystemProgErrResultWithNegativeLamports)

	assert.Equal(t, uint64(testWalletLamports), getAccount(t, exec, from).Lamports)
	assert.Equal(t, uint64(0), getAccount(t, exec, to).Lamports)
}

func TestExecutor_MissingTransactionSignature(t *testing.T) {
	exec := newTestExecutor(t)
	from := newFundedWallet(t, exec)
	to := solana.NewWallet().PublicKey()

	err := processTx(exec, nil, NewSystemTransferInstruction(from, to, 1_000_000_000))
	assert.ErrorIs(t, err, InstrErrMissingRequiredSignature)
}

func TestExecutor_RentStateTransition(t *testing.T) {
	exec := newTestExecutor(t)
	from := newFundedWallet(t, exec)
	to := solana.NewWallet().PublicKey()

	// a fresh account funded below the exemption minimum
	err := processTx(exec, []solana.PublicKey{from}, NewSystemTransferInstruction(from, to, 1000))
	assert.ErrorIs(t, err, TxErrInsufficientFundsForRent)

	result, err := exec.ProcessTransaction(context.Background(), NewTransaction([]solana.PublicKey{from}, NewSystemTransferInstruction(from, to, 890_880)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []solana.PublicKey{from, to}, result.Modified)
	assert.Len(t, result.DeltaHash, 32)
	assert.NotZero(t, result.ComputeUnits)
}

func TestExecutor_WarpToEpoch(t *testing.T) {
	exec := newTestExecutor(t)

	require.NoError(t, exec.WarpToEpoch(3))
	clock, err := ReadClockSysvar(exec.Accounts())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), clock.Epoch)
	assert.Equal(t, uint64(1+3*SlotsPerEpoch), clock.Slot)

	assert.Error(t, exec.WarpToEpoch(2))
}

func TestExecutor_Metrics(t *testing.T) {
	exec := newTestExecutor(t)
	reg := prometheus.NewRegistry()
	metrics, err := NewExecutorMetrics(reg)
	require.NoError(t, err)
	exec.SetMetrics(metrics)

	from := newFundedWallet(t, exec)
	to := solana.NewWallet().PublicKey()

	require.NoError(t, processTx(exec, []solana.PublicKey{from}, NewSystemTransferInstruction(from, to, 1_000_000_000)))
	assert.Error(t, processTx(exec, []solana.PublicKey{from}, NewSystemTransferInstruction(from, to, 2*testWalletLamports)))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.transactions.WithLabelValues("0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.transactions.WithLabelValues("26")))
}

var testProgramAddr = solana.PublicKey{0x4c, 0x53, 0x54, 0x01}

func TestExecutor_UnbalancedInstruction(t *testing.T) {
	exec := newTestExecutor(t)
	owned := solana.NewWallet().PublicKey()
	require.NoError(t, exec.SetAccount(&accounts.Account{Key: owned, Lamports: 10_000_000, Data: []byte{0}, Owner: testProgramAddr}))

	exec.RegisterProgram(testProgramAddr, func(execCtx *ExecutionCtx) error {
		txCtx := execCtx.TransactionContext
		instrCtx, err := txCtx.CurrentInstructionCtx()
		if err != nil {
			return err
		}
		acct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
		if err != nil {
			return err
		}
		return acct.CheckedAddLamports(1)
	})

	err := processTx(exec, nil, Instruction{ProgramId: testProgramAddr, Accounts: []AccountMeta{{Pubkey: owned, IsWritable: true}}})
	assert.ErrorIs(t, err, InstrErrUnbalancedInstruction)
	assert.Equal(t, uint64(10_000_000), getAccount(t, exec, owned).Lamports)
}

func TestExecutor_ProgramSignsWithSeeds(t *testing.T) {
	exec := newTestExecutor(t)
	vault, bump, err := pda.FindProgramAddress([][]byte{[]byte("vault")}, testProgramAddr)
	require.NoError(t, err)
	require.NoError(t, exec.Airdrop(vault, 5_000_000_000))
	dest := solana.NewWallet().PublicKey()

	var seed []byte
	exec.RegisterProgram(testProgramAddr, func(execCtx *ExecutionCtx) error {
		signers, err := execCtx.SignersFromSeeds([][][]byte{{seed, {bump}}})
		if err != nil {
			return err
		}
		return execCtx.NativeInvoke(NewSystemTransferInstruction(vault, dest, 1_000_000_000), signers)
	})

	instr := Instruction{ProgramId: testProgramAddr, Accounts: []AccountMeta{{Pubkey: vault, IsWritable: true}, {Pubkey: dest, IsWritable: true}}}

	seed = []byte("other")
	err = processTx(exec, nil, instr)
	assert.Error(t, err)
	assert.Equal(t, uint64(0), getAccount(t, exec, dest).Lamports)

	seed = []byte("vault")
	require.NoError(t, processTx(exec, nil, instr))
	assert.Equal(t, uint64(1_000_000_000), getAccount(t, exec, dest).Lamports)
	assert.Equal(t, uint64(4_000_000_000), getAccount(t, exec, vault).Lamports)
}

func TestExecutor_ReadonlyAccountCannotBeEscalated(t *testing.T) {
	exec := newTestExecutor(t)
	from := newFundedWallet(t, exec)
	dest := solana.NewWallet().PublicKey()

	exec.RegisterProgram(testProgramAddr, func(execCtx *ExecutionCtx) error {
		return execCtx.NativeInvoke(NewSystemTransferInstruction(from, dest, 1_000_000_000), nil)
	})

	instr := Instruction{ProgramId: testProgramAddr, Accounts: []AccountMeta{{Pubkey: from, IsSigner: true, IsWritable: true}, {Pubkey: dest}}}
	err := processTx(exec, []solana.PublicKey{from}, instr)
	assert.ErrorIs(t, err, InstrErrPrivilegeEscalation)
}
