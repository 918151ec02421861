package sealevel

import "github.com/gagliardetto/solana-go"

const MaxInstructionStackDepth = 5

type TransactionCtx struct {
	Accounts         TransactionAccounts
	instructionStack []InstructionCtx
	instructionTrace uint64
}

func NewTransactionCtx(txAccts TransactionAccounts) *TransactionCtx {
	return &TransactionCtx{Accounts: txAccts}
}

func (txCtx *TransactionCtx) KeyOfAccountAtIndex(index uint64) (solana.PublicKey, error) {
	acct, err := txCtx.Accounts.GetAccount(index)
	if err != nil {
		return solana.PublicKey{}, InstrErrNotEnoughAccountKeys
	}
	return acct.Key, nil
}

func (txCtx *TransactionCtx) IndexOfAccount(pubkey solana.PublicKey) (uint64, error) {
	idx, found := txCtx.Accounts.IndexOf(pubkey)
	if !found {
		return 0, InstrErrMissingAccount
	}
	return idx, nil
}

func (txCtx *TransactionCtx) CurrentInstructionCtx() (*InstructionCtx, error) {
	if len(txCtx.instructionStack) == 0 {
		return nil, InstrErrCallDepth
	}
	return &txCtx.instructionStack[len(txCtx.instructionStack)-1], nil
}

func (txCtx *TransactionCtx) InstructionCtxStackHeight() uint64 {
	return uint64(len(txCtx.instructionStack))
}

func (txCtx *TransactionCtx) InstructionTraceLength() uint64 {
	return txCtx.instructionTrace
}

func (txCtx *TransactionCtx) Push(instrCtx InstructionCtx) error {
	if txCtx.InstructionCtxStackHeight() >= MaxInstructionStackDepth {
		return InstrErrCallDepth
	}

	for _, caller := range txCtx.instructionStack {
		if caller.ProgramId() == instrCtx.ProgramId() {
			last := txCtx.instructionStack[len(txCtx.instructionStack)-1]
			if last.ProgramId() != instrCtx.ProgramId() {
				return InstrErrReentrancyNotAllowed
			}
		}
	}

	txCtx.instructionStack = append(txCtx.instructionStack, instrCtx)
	txCtx.instructionTrace++
	return nil
}

func (txCtx *TransactionCtx) Pop() error {
	if len(txCtx.instructionStack) == 0 {
		return InstrErrCallDepth
	}
	txCtx.instructionStack = txCtx.instructionStack[:len(txCtx.instructionStack)-1]
	return nil
}
