package sealevel

import (
	pda "github.com/Overclock-Validator/lstpool/pkg/solana"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const (
	AssociatedTokenInstrTypeCreate = iota
	AssociatedTokenInstrTypeCreateIdempotent
)

// AssociatedTokenAddress derives the canonical token account of wallet for mint.
func AssociatedTokenAddress(wallet solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return pda.FindProgramAddress([][]byte{wallet[:], TokenProgramAddr[:], mint[:]}, AssociatedTokenProgramAddr)
}

func NewAssociatedTokenCreateIdempotentInstruction(payer solana.PublicKey, wallet solana.PublicKey, mint solana.PublicKey) (Instruction, error) {
	ata, _, err := AssociatedTokenAddress(wallet, mint)
	if err != nil {
		return Instruction{}, err
	}

	accountMetas := []AccountMeta{{Pubkey: payer, IsSigner: true, IsWritable: true},
		{Pubkey: ata, IsWritable: true},
		{Pubkey: wallet},
		{Pubkey: mint}}
	return Instruction{Accounts: accountMetas, Data: []byte{AssociatedTokenInstrTypeCreateIdempotent}, ProgramId: AssociatedTokenProgramAddr}, nil
}

func AssociatedTokenProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUAssociatedTokenComputeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	var idempotent bool
	if len(instrCtx.Data) != 0 {
		instrType, err := bin.NewBinDecoder(instrCtx.Data).ReadUint8()
		if err != nil {
			return InstrErrInvalidInstructionData
		}
		switch instrType {
		case AssociatedTokenInstrTypeCreate:
		case AssociatedTokenInstrTypeCreateIdempotent:
			idempotent = true
		default:
			return InstrErrInvalidInstructionData
		}
	}

	err = instrCtx.CheckNumOfInstructionAccounts(4)
	if err != nil {
		return err
	}

	return AssociatedTokenCreate(execCtx, idempotent)
}

// AssociatedTokenCreate creates and initializes the associated token account
// named by the current instruction. With idempotent set, an existing account
// with the expected owner and mint is accepted as is.
func AssociatedTokenCreate(execCtx *ExecutionCtx, idempotent bool) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	payerKey, err := instrCtx.accountKey(txCtx, 0)
	if err != nil {
		return err
	}
	walletKey, err := instrCtx.accountKey(txCtx, 2)
	if err != nil {
		return err
	}
	mintKey, err := instrCtx.accountKey(txCtx, 3)
	if err != nil {
		return err
	}

	ata, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}

	if idempotent && ata.Owner() == TokenProgramAddr {
		tokenAcct, err := UnmarshalTokenAccount(ata.Data())
		if err != nil {
			return err
		}
		if tokenAcct.Owner != walletKey {
			return TokenErrOwnerMismatch
		}
		if tokenAcct.Mint != mintKey {
			return TokenErrMintMismatch
		}
		return nil
	}

	if ata.Owner() != SystemProgramAddr {
		return InstrErrInvalidAccountOwner
	}

	expected, bump, err := AssociatedTokenAddress(walletKey, mintKey)
	if err != nil {
		return err
	}
	if expected != ata.Key() {
		klog.Errorf("associated token address mismatch: expected %s, got %s", expected, ata.Key())
		return InstrErrInvalidSeeds
	}

	mint, err := instrCtx.BorrowInstructionAccount(txCtx, 3)
	if err != nil {
		return err
	}
	if mint.Owner() != TokenProgramAddr {
		return InstrErrIncorrectProgramId
	}

	rent := execCtx.SysvarCache.Rent()
	required := rent.MinimumBalance(TokenAccountSize)

	seeds := [][][]byte{{walletKey[:], TokenProgramAddr[:], mintKey[:], {bump}}}
	signers, err := execCtx.SignersFromSeeds(seeds)
	if err != nil {
		return err
	}

	ataKey := ata.Key()
	if ata.Lamports() == 0 {
		err = execCtx.NativeInvoke(NewSystemCreateAccountInstruction(payerKey, ataKey, required, TokenAccountSize, TokenProgramAddr), signers)
		if err != nil {
			return err
		}
	} else {
		// prefunded: top up, then allocate and assign in place
		if ata.Lamports() < required {
			err = execCtx.NativeInvoke(NewSystemTransferInstruction(payerKey, ataKey, required-ata.Lamports()), nil)
			if err != nil {
				return err
			}
		}
		err = execCtx.NativeInvoke(NewSystemAllocateInstruction(ataKey, TokenAccountSize), signers)
		if err != nil {
			return err
		}
		err = execCtx.NativeInvoke(NewSystemAssignInstruction(ataKey, TokenProgramAddr), signers)
		if err != nil {
			return err
		}
	}

	return execCtx.NativeInvoke(NewTokenInitializeAccount3Instruction(ataKey, mintKey, walletKey), nil)
}
