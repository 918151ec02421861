package sealevel

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mintRent = 1_461_600

type tokenFixture struct {
	exec      *Executor
	payer     solana.PublicKey
	authority solana.PublicKey
	mint      solana.PublicKey
}

func newTokenFixture(t *testing.T) *tokenFixture {
	exec := newTestExecutor(t)
	f := &tokenFixture{exec: exec, payer: newFundedWallet(t, exec), authority: newFundedWallet(t, exec), mint: solana.NewWallet().PublicKey()}

	err := processTx(exec, []solana.PublicKey{f.payer, f.mint},
		NewSystemCreateAccountInstruction(f.payer, f.mint, mintRent, TokenMintSize, TokenProgramAddr),
		NewTokenInitializeMint2Instruction(f.mint, f.authority, 9))
	require.NoError(t, err)
	return f
}

func (f *tokenFixture) createAta(t *testing.T, wallet solana.PublicKey) solana.PublicKey {
	instr, err := NewAssociatedTokenCreateIdempotentInstruction(f.payer, wallet, f.mint)
	require.NoError(t, err)
	require.NoError(t, processTx(f.exec, []solana.PublicKey{f.payer}, instr))
	return instr.Accounts[1].Pubkey
}

func (f *tokenFixture) balance(t *testing.T, ata solana.PublicKey) uint64 {
	tokenAcct, err := UnmarshalTokenAccount(getAccount(t, f.exec, ata).Data)
	require.NoError(t, err)
	return tokenAcct.Amount
}

func (f *tokenFixture) supply(t *testing.T) uint64 {
	mint, err := UnmarshalTokenMint(getAccount(t, f.exec, f.mint).Data)
	require.NoError(t, err)
	return mint.Supply
}

func TestTokenProgram_InitializeMint(t *testing.T) {
	f := newTokenFixture(t)

	acct := getAccount(t, f.exec, f.mint)
	require.Len(t, acct.Data, TokenMintSize)
	mint, err := UnmarshalTokenMint(acct.Data)
	require.NoError(t, err)
	assert.True(t, mint.IsInitialized)
	assert.Equal(t, uint8(9), mint.Decimals)
	require.NotNil(t, mint.MintAuthority)
	assert.Equal(t, f.authority, *mint.MintAuthority)
	assert.Nil(t, mint.FreezeAuthority)

	// supply lives at offset 36, decimals at 44
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(acct.Data[36:44]))
	assert.Equal(t, byte(9), acct.Data[44])

	err = processTx(f.exec, nil, NewTokenInitializeMint2Instruction(f.mint, f.authority, 9))
	assert.ErrorIs(t, err, TokenErrAlreadyInUse)
}

func TestAssociatedTokenAddress_MatchesSolanaGo(t *testing.T) {
	wallet := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ata, bump, err := AssociatedTokenAddress(wallet, mint)
	require.NoError(t, err)

	expected, expectedBump, err := solana.FindAssociatedTokenAddress(wallet, mint)
	require.NoError(t, err)
	assert.Equal(t, expected, ata)
	assert.Equal(t, expectedBump, bump)
}

func TestAssociatedTokenProgram_CreateIdempotent(t *testing.T) {
	f := newTokenFixture(t)
	wallet := solana.NewWallet().PublicKey()

	ata := f.createAta(t, wallet)
	acct := getAccount(t, f.exec, ata)
	assert.Equal(t, TokenProgramAddr, acct.Owner)
	assert.Equal(t, uint64(2_039_280), acct.Lamports)

	tokenAcct, err := UnmarshalTokenAccount(acct.Data)
	require.NoError(t, err)
	assert.Equal(t, f.mint, tokenAcct.Mint)
	assert.Equal(t, wallet, tokenAcct.Owner)
	assert.Equal(t, uint8(TokenAccountStateInitialized), tokenAcct.State)

	// a second create is a no-op
	payerBefore := getAccount(t, f.exec, f.payer).Lamports
	assert.Equal(t, ata, f.createAta(t, wallet))
	assert.Equal(t, payerBefore, getAccount(t, f.exec, f.payer).Lamports)
}

func TestAssociatedTokenProgram_PrefundedAccount(t *testing.T) {
	f := newTokenFixture(t)
	wallet := solana.NewWallet().PublicKey()

	ata, _, err := AssociatedTokenAddress(wallet, f.mint)
	require.NoError(t, err)
	require.NoError(t, f.exec.Airdrop(ata, 1_000_000))

	f.createAta(t, wallet)
	acct := getAccount(t, f.exec, ata)
	assert.Equal(t, TokenProgramAddr, acct.Owner)
	assert.Equal(t, uint64(2_039_280), acct.Lamports)
}

func TestTokenProgram_MintTransferBurn(t *testing.T) {
	f := newTokenFixture(t)
	alice := newFundedWallet(t, f.exec)
	bob := newFundedWallet(t, f.exec)
	aliceAta := f.createAta(t, alice)
	bobAta := f.createAta(t, bob)

	require.NoError(t, processTx(f.exec, []solana.PublicKey{f.authority}, NewTokenMintToInstruction(f.mint, aliceAta, f.authority, 1_000)))
	assert.Equal(t, uint64(1_000), f.balance(t, aliceAta))
	assert.Equal(t, uint64(1_000), f.supply(t))

	require.NoError(t, processTx(f.exec, []solana.PublicKey{alice}, NewTokenTransferInstruction(aliceAta, bobAta, alice, 400)))
	assert.Equal(t, uint64(600), f.balance(t, aliceAta))
	assert.Equal(t, uint64(400), f.balance(t, bobAta))

	require.NoError(t, processTx(f.exec, []solana.PublicKey{bob}, NewTokenBurnInstruction(bobAta, f.mint, bob, 150)))
	assert.Equal(t, uint64(250), f.balance(t, bobAta))
	assert.Equal(t, uint64(850), f.supply(t))
	assert.Equal(t, f.supply(t), f.balance(t, aliceAta)+f.balance(t, bobAta))
}

func TestTokenProgram_Failures(t *testing.T) {
	f := newTokenFixture(t)
	alice := newFundedWallet(t, f.exec)
	bob := newFundedWallet(t, f.exec)
	aliceAta := f.createAta(t, alice)
	bobAta := f.createAta(t, bob)
	require.NoError(t, processTx(f.exec, []solana.PublicKey{f.authority}, NewTokenMintToInstruction(f.mint, aliceAta, f.authority, 100)))

	err := processTx(f.exec, []solana.PublicKey{alice}, NewTokenMintToInstruction(f.mint, aliceAta, alice, 1))
	assert.ErrorIs(t, err, InstrErrMissingRequiredSignature)

	err = processTx(f.exec, []solana.PublicKey{alice}, NewTokenTransferInstruction(aliceAta, bobAta, alice, 101))
	assert.ErrorIs(t, err, TokenErrInsufficientFunds)

	err = processTx(f.exec, []solana.PublicKey{bob}, NewTokenTransferInstruction(aliceAta, bobAta, bob, 1))
	assert.ErrorIs(t, err, InstrErrMissingRequiredSignature)

	err = processTx(f.exec, []solana.PublicKey{alice}, NewTokenBurnInstruction(aliceAta, f.mint, alice, 101))
	assert.ErrorIs(t, err, TokenErrInsufficientFunds)

	err = processTx(f.exec, []solana.PublicKey{bob}, NewTokenBurnInstruction(aliceAta, f.mint, bob, 1))
	assert.ErrorIs(t, err, TokenErrOwnerMismatch)

	assert.Equal(t, uint64(100), f.balance(t, aliceAta))
	assert.Equal(t, uint64(100), f.supply(t))
}
