package sealevel

import (
	"github.com/gagliardetto/solana-go"
)

type Instruction struct {
	Accounts  []AccountMeta
	Data      []byte
	ProgramId solana.PublicKey
}

type AccountMeta struct {
	Pubkey     solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

type InstructionAccount struct {
	IndexInTransaction uint64
	IndexInCaller      uint64
	IndexInCallee      uint64
	IsSigner           bool
	IsWritable         bool
}

// Transaction is an ordered list of instructions executed atomically.
// Signers lists the keys whose signatures the host has already verified.
type Transaction struct {
	Signers      []solana.PublicKey
	Instructions []Instruction
}

func NewTransaction(signers []solana.PublicKey, instrs ...Instruction) *Transaction {
	return &Transaction{Signers: signers, Instructions: instrs}
}
