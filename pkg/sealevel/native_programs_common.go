package sealevel

import (
	"github.com/gagliardetto/solana-go"
)

const NativeLoaderAddrStr = "NativeLoader1111111111111111111111111111111"

var NativeLoaderAddr = solana.MustPublicKeyFromBase58(NativeLoaderAddrStr)

const SystemProgramAddrStr = "11111111111111111111111111111111"

var SystemProgramAddr = solana.MustPublicKeyFromBase58(SystemProgramAddrStr)

const StakeProgramAddrStr = "Stake11111111111111111111111111111111111111"

var StakeProgramAddr = solana.MustPublicKeyFromBase58(StakeProgramAddrStr)

const VoteProgramAddrStr = "Vote111111111111111111111111111111111111111"

var VoteProgramAddr = solana.MustPublicKeyFromBase58(VoteProgramAddrStr)

const TokenProgramAddrStr = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

var TokenProgramAddr = solana.MustPublicKeyFromBase58(TokenProgramAddrStr)

const AssociatedTokenProgramAddrStr = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"

var AssociatedTokenProgramAddr = solana.MustPublicKeyFromBase58(AssociatedTokenProgramAddrStr)

// ProgramFn executes the current instruction of execCtx.
type ProgramFn func(execCtx *ExecutionCtx) error

func resolveNativeProgramById(programId solana.PublicKey) (ProgramFn, error) {
	switch programId {
	case SystemProgramAddr:
		return SystemProgramExecute, nil
	case StakeProgramAddr:
		return StakeProgramExecute, nil
	case TokenProgramAddr:
		return TokenProgramExecute, nil
	case AssociatedTokenProgramAddr:
		return AssociatedTokenProgramExecute, nil
	}

	return nil, InstrErrUnsupportedProgramId
}

func IsNativeProgram(programId solana.PublicKey) bool {
	_, err := resolveNativeProgramById(programId)
	return err == nil
}

func verifySigner(authorized solana.PublicKey, signers []solana.PublicKey) error {
	for _, signer := range signers {
		if signer == authorized {
			return nil
		}
	}
	return InstrErrMissingRequiredSignature
}
