package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemProgram_CreateAccount(t *testing.T) {
	exec := newTestExecutor(t)
	payer := newFundedWallet(t, exec)
	newAcct := solana.NewWallet().PublicKey()

	rent := DefaultRent()
	lamports := rent.MinimumBalance(64)
	require.NoError(t, processTx(exec, []solana.PublicKey{payer, newAcct}, NewSystemCreateAccountInstruction(payer, newAcct, lamports, 64, testProgramAddr)))

	acct := getAccount(t, exec, newAcct)
	assert.Equal(t, lamports, acct.Lamports)
	assert.Len(t, acct.Data, 64)
	assert.Equal(t, testProgramAddr, acct.Owner)
	assert.Equal(t, uint64(testWalletLamports)-lamports, getAccount(t, exec, payer).Lamports)

	err := processTx(exec, []solana.PublicKey{payer, newAcct}, NewSystemCreateAccountInstruction(payer, newAcct, lamports, 64, testProgramAddr))
	assert.ErrorIs(t, err, SystemProgErrAccountAlreadyInUse)
}

func TestSystemProgram_CreateAccountTooLarge(t *testing.T) {
	exec := newTestExecutor(t)
	payer := newFundedWallet(t, exec)
	newAcct := solana.NewWallet().PublicKey()

	err := processTx(exec, []solana.PublicKey{payer, newAcct}, NewSystemCreateAccountInstruction(payer, newAcct, 1_000_000_000, SystemProgMaxPermittedDataLen+1, testProgramAddr))
	assert.ErrorIs(t, err, SystemProgErrInvalidAccountDataLength)
}

func TestSystemProgram_AllocateAndAssign(t *testing.T) {
	exec := newTestExecutor(t)
	key := solana.NewWallet().PublicKey()
	rent := DefaultRent()
	require.NoError(t, exec.Airdrop(key, rent.MinimumBalance(100)))

	require.NoError(t, processTx(exec, []solana.PublicKey{key},
		NewSystemAllocateInstruction(key, 100),
		NewSystemAssignInstruction(key, testProgramAddr)))

	acct := getAccount(t, exec, key)
	assert.Len(t, acct.Data, 100)
	assert.Equal(t, testProgramAddr, acct.Owner)

	// the account now carries data, so it can no longer send lamports
	err := processTx(exec, []solana.PublicKey{key}, NewSystemTransferInstruction(key, solana.NewWallet().PublicKey(), 1))
	assert.Error(t, err)
}

func TestSystemProgram_InvalidInstruction(t *testing.T) {
	exec := newTestExecutor(t)
	key := newFundedWallet(t, exec)

	err := processTx(exec, []solana.PublicKey{key}, Instruction{ProgramId: SystemProgramAddr, Accounts: []AccountMeta{{Pubkey: key, IsSigner: true, IsWritable: true}}, Data: []byte{99, 0, 0, 0}})
	assert.ErrorIs(t, err, InstrErrInvalidInstructionData)
}
