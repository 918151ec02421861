package sealevel

import (
	"errors"

	"github.com/Overclock-Validator/lstpool/pkg/safemath"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const (
	TokenProgramInstrTypeTransfer           = 3
	TokenProgramInstrTypeMintTo             = 7
	TokenProgramInstrTypeBurn               = 8
	TokenProgramInstrTypeInitializeAccount3 = 18
	TokenProgramInstrTypeInitializeMint2    = 20
)

// token errors
var (
	TokenErrNotRentExempt      = errors.New("TokenErrNotRentExempt")
	TokenErrInsufficientFunds  = errors.New("TokenErrInsufficientFunds")
	TokenErrInvalidMint        = errors.New("TokenErrInvalidMint")
	TokenErrMintMismatch       = errors.New("TokenErrMintMismatch")
	TokenErrOwnerMismatch      = errors.New("TokenErrOwnerMismatch")
	TokenErrFixedSupply        = errors.New("TokenErrFixedSupply")
	TokenErrAlreadyInUse       = errors.New("TokenErrAlreadyInUse")
	TokenErrUninitializedState = errors.New("TokenErrUninitializedState")
	TokenErrOverflow           = errors.New("TokenErrOverflow")
	TokenErrAccountFrozen      = errors.New("TokenErrAccountFrozen")
)

type TokenInstrInitializeMint2 struct {
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

type TokenInstrInitializeAccount3 struct {
	Owner solana.PublicKey
}

// TokenInstrAmount is the payload shared by Transfer, MintTo and Burn.
type TokenInstrAmount struct {
	Amount uint64
}

func (instr *TokenInstrInitializeMint2) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Decimals, err = decoder.ReadUint8()
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	instr.MintAuthority = solana.PublicKeyFromBytes(pk)

	hasFreeze, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	switch hasFreeze {
	case 0:
		instr.FreezeAuthority = nil
	case 1:
		pk, err = decoder.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return err
		}
		freeze := solana.PublicKeyFromBytes(pk)
		instr.FreezeAuthority = &freeze
	default:
		return InstrErrInvalidInstructionData
	}

	return nil
}

func (instr *TokenInstrInitializeMint2) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint8(instr.Decimals)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(instr.MintAuthority[:], false)
	if err != nil {
		return err
	}

	if instr.FreezeAuthority == nil {
		return encoder.WriteUint8(0)
	}

	err = encoder.WriteUint8(1)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(instr.FreezeAuthority[:], false)
}

func (instr *TokenInstrInitializeAccount3) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	instr.Owner = solana.PublicKeyFromBytes(pk)
	return nil
}

func (instr *TokenInstrInitializeAccount3) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *TokenInstrAmount) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

func (instr *TokenInstrAmount) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(instr.Amount, bin.LE)
}

func NewTokenInitializeMint2Instruction(mint solana.PublicKey, mintAuthority solana.PublicKey, decimals uint8) Instruction {
	initMint := TokenInstrInitializeMint2{Decimals: decimals, MintAuthority: mintAuthority}
	data := encodeTokenInstrData(TokenProgramInstrTypeInitializeMint2, &initMint)

	accountMetas := []AccountMeta{{Pubkey: mint, IsWritable: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: TokenProgramAddr}
}

func NewTokenInitializeAccount3Instruction(account solana.PublicKey, mint solana.PublicKey, owner solana.PublicKey) Instruction {
	initAcct := TokenInstrInitializeAccount3{Owner: owner}
	data := encodeTokenInstrData(TokenProgramInstrTypeInitializeAccount3, &initAcct)

	accountMetas := []AccountMeta{{Pubkey: account, IsWritable: true},
		{Pubkey: mint}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: TokenProgramAddr}
}

func NewTokenTransferInstruction(source solana.PublicKey, dest solana.PublicKey, owner solana.PublicKey, amount uint64) Instruction {
	data := encodeTokenInstrData(TokenProgramInstrTypeTransfer, &TokenInstrAmount{Amount: amount})

	accountMetas := []AccountMeta{{Pubkey: source, IsWritable: true},
		{Pubkey: dest, IsWritable: true},
		{Pubkey: owner, IsSigner: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: TokenProgramAddr}
}

func NewTokenMintToInstruction(mint solana.PublicKey, dest solana.PublicKey, mintAuthority solana.PublicKey, amount uint64) Instruction {
	data := encodeTokenInstrData(TokenProgramInstrTypeMintTo, &TokenInstrAmount{Amount: amount})

	accountMetas := []AccountMeta{{Pubkey: mint, IsWritable: true},
		{Pubkey: dest, IsWritable: true},
		{Pubkey: mintAuthority, IsSigner: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: TokenProgramAddr}
}

func NewTokenBurnInstruction(account solana.PublicKey, mint solana.PublicKey, owner solana.PublicKey, amount uint64) Instruction {
	data := encodeTokenInstrData(TokenProgramInstrTypeBurn, &TokenInstrAmount{Amount: amount})

	accountMetas := []AccountMeta{{Pubkey: account, IsWritable: true},
		{Pubkey: mint, IsWritable: true},
		{Pubkey: owner, IsSigner: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: TokenProgramAddr}
}

func TokenProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUTokenProgramDefaultComputeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)
	instructionType, err := decoder.ReadUint8()
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	signers, err := instrCtx.Signers(txCtx)
	if err != nil {
		return err
	}

	rent := execCtx.SysvarCache.Rent()

	borrow := func(count uint64) ([]*BorrowedAccount, error) {
		err := instrCtx.CheckNumOfInstructionAccounts(count)
		if err != nil {
			return nil, err
		}
		accts := make([]*BorrowedAccount, 0, count)
		for idx := uint64(0); idx < count; idx++ {
			acct, err := instrCtx.BorrowInstructionAccount(txCtx, idx)
			if err != nil {
				return nil, err
			}
			accts = append(accts, acct)
		}
		return accts, nil
	}

	switch instructionType {
	case TokenProgramInstrTypeInitializeMint2:
		{
			var initMint TokenInstrInitializeMint2
			err = initMint.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			accts, err := borrow(1)
			if err != nil {
				return err
			}
			return TokenProgramInitializeMint(accts[0], initMint.Decimals, initMint.MintAuthority, initMint.FreezeAuthority, rent)
		}

	case TokenProgramInstrTypeInitializeAccount3:
		{
			var initAcct TokenInstrInitializeAccount3
			err = initAcct.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			accts, err := borrow(2)
			if err != nil {
				return err
			}
			return TokenProgramInitializeAccount(accts[0], accts[1], initAcct.Owner, rent)
		}

	case TokenProgramInstrTypeTransfer, TokenProgramInstrTypeMintTo, TokenProgramInstrTypeBurn:
		{
			var amount TokenInstrAmount
			err = amount.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			accts, err := borrow(2)
			if err != nil {
				return err
			}

			switch instructionType {
			case TokenProgramInstrTypeTransfer:
				return TokenProgramTransfer(accts[0], accts[1], amount.Amount, signers)
			case TokenProgramInstrTypeMintTo:
				return TokenProgramMintTo(accts[0], accts[1], amount.Amount, signers)
			default:
				return TokenProgramBurn(accts[0], accts[1], amount.Amount, signers)
			}
		}
	}

	return InstrErrInvalidInstructionData
}

func TokenProgramInitializeMint(mintAcct *BorrowedAccount, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey, rent SysvarRent) error {
	mint, err := UnmarshalTokenMint(mintAcct.Data())
	if err != nil {
		return err
	}

	if mint.IsInitialized {
		return TokenErrAlreadyInUse
	}

	if !rent.IsExempt(mintAcct.Lamports(), uint64(len(mintAcct.Data()))) {
		return TokenErrNotRentExempt
	}

	mint.MintAuthority = &mintAuthority
	mint.Decimals = decimals
	mint.IsInitialized = true
	mint.FreezeAuthority = freezeAuthority

	klog.V(3).Infof("InitializeMint: %s, decimals %d", mintAcct.Key(), decimals)
	return setTokenMintState(mintAcct, mint)
}

func TokenProgramInitializeAccount(acct *BorrowedAccount, mintAcct *BorrowedAccount, owner solana.PublicKey, rent SysvarRent) error {
	tokenAcct, err := UnmarshalTokenAccount(acct.Data())
	if err != nil {
		return err
	}

	if tokenAcct.State != TokenAccountStateUninitialized {
		return TokenErrAlreadyInUse
	}

	if !rent.IsExempt(acct.Lamports(), uint64(len(acct.Data()))) {
		return TokenErrNotRentExempt
	}

	if mintAcct.Owner() != TokenProgramAddr {
		return TokenErrInvalidMint
	}
	mint, err := UnmarshalTokenMint(mintAcct.Data())
	if err != nil || !mint.IsInitialized {
		return TokenErrInvalidMint
	}

	tokenAcct.Mint = mintAcct.Key()
	tokenAcct.Owner = owner
	tokenAcct.State = TokenAccountStateInitialized

	return setTokenAccountState(acct, tokenAcct)
}

func loadInitializedTokenAccount(acct *BorrowedAccount) (*TokenAccount, error) {
	if acct.Owner() != TokenProgramAddr {
		return nil, InstrErrIncorrectProgramId
	}

	tokenAcct, err := UnmarshalTokenAccount(acct.Data())
	if err != nil {
		return nil, err
	}

	switch tokenAcct.State {
	case TokenAccountStateUninitialized:
		return nil, TokenErrUninitializedState
	case TokenAccountStateFrozen:
		return nil, TokenErrAccountFrozen
	}
	return tokenAcct, nil
}

func loadInitializedMint(acct *BorrowedAccount) (*TokenMint, error) {
	if acct.Owner() != TokenProgramAddr {
		return nil, InstrErrIncorrectProgramId
	}

	mint, err := UnmarshalTokenMint(acct.Data())
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, TokenErrUninitializedState
	}
	return mint, nil
}

func TokenProgramTransfer(source *BorrowedAccount, dest *BorrowedAccount, amount uint64, signers []solana.PublicKey) error {
	sourceAcct, err := loadInitializedTokenAccount(source)
	if err != nil {
		return err
	}

	destAcct, err := loadInitializedTokenAccount(dest)
	if err != nil {
		return err
	}

	if sourceAcct.Mint != destAcct.Mint {
		return TokenErrMintMismatch
	}

	err = verifySigner(sourceAcct.Owner, signers)
	if err != nil {
		return err
	}

	if sourceAcct.Amount < amount {
		return TokenErrInsufficientFunds
	}

	// self transfers only need the checks above
	if source.Key() == dest.Key() {
		return nil
	}

	sourceAcct.Amount -= amount
	destAcct.Amount, err = safemath.CheckedAddU64(destAcct.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}

	err = setTokenAccountState(source, sourceAcct)
	if err != nil {
		return err
	}
	return setTokenAccountState(dest, destAcct)
}

func TokenProgramMintTo(mintAcct *BorrowedAccount, dest *BorrowedAccount, amount uint64, signers []solana.PublicKey) error {
	mint, err := loadInitializedMint(mintAcct)
	if err != nil {
		return err
	}

	destAcct, err := loadInitializedTokenAccount(dest)
	if err != nil {
		return err
	}

	if destAcct.Mint != mintAcct.Key() {
		return TokenErrMintMismatch
	}

	if mint.MintAuthority == nil {
		return TokenErrFixedSupply
	}

	err = verifySigner(*mint.MintAuthority, signers)
	if err != nil {
		return err
	}

	mint.Supply, err = safemath.CheckedAddU64(mint.Supply, amount)
	if err != nil {
		return TokenErrOverflow
	}
	destAcct.Amount, err = safemath.CheckedAddU64(destAcct.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}

	err = setTokenMintState(mintAcct, mint)
	if err != nil {
		return err
	}
	return setTokenAccountState(dest, destAcct)
}

func TokenProgramBurn(source *BorrowedAccount, mintAcct *BorrowedAccount, amount uint64, signers []solana.PublicKey) error {
	sourceAcct, err := loadInitializedTokenAccount(source)
	if err != nil {
		return err
	}

	mint, err := loadInitializedMint(mintAcct)
	if err != nil {
		return err
	}

	if sourceAcct.Mint != mintAcct.Key() {
		return TokenErrMintMismatch
	}

	err = verifySigner(sourceAcct.Owner, signers)
	if err != nil {
		return TokenErrOwnerMismatch
	}

	if sourceAcct.Amount < amount {
		return TokenErrInsufficientFunds
	}

	sourceAcct.Amount -= amount
	mint.Supply, err = safemath.CheckedSubU64(mint.Supply, amount)
	if err != nil {
		return TokenErrOverflow
	}

	err = setTokenAccountState(source, sourceAcct)
	if err != nil {
		return err
	}
	return setTokenMintState(mintAcct, mint)
}
