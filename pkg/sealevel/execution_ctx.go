package sealevel

import (
	"github.com/Overclock-Validator/lstpool/pkg/cu"
	"github.com/Overclock-Validator/lstpool/pkg/safemath"
	pda "github.com/Overclock-Validator/lstpool/pkg/solana"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

type ExecutionCtx struct {
	TransactionContext *TransactionCtx
	ComputeMeter       cu.Meter
	SysvarCache        *SysvarCache

	// Programs holds programs registered by the host, resolved before
	// the builtin native programs.
	Programs map[solana.PublicKey]ProgramFn
}

func NewExecutionCtx(txCtx *TransactionCtx, sysvarCache *SysvarCache, programs map[solana.PublicKey]ProgramFn) *ExecutionCtx {
	return &ExecutionCtx{TransactionContext: txCtx, ComputeMeter: cu.NewMeterDefault(), SysvarCache: sysvarCache, Programs: programs}
}

// InstructionAcctsFromAccountMetas maps the account metas of a top-level
// instruction onto transaction account indices, merging duplicate metas.
func InstructionAcctsFromAccountMetas(instrAccts []AccountMeta, txAccts TransactionAccounts) ([]InstructionAccount, error) {
	instructionAccts := make([]InstructionAccount, 0, len(instrAccts))

	for idxInCallee, acctMeta := range instrAccts {
		idxInTx, found := txAccts.IndexOf(acctMeta.Pubkey)
		if !found {
			return nil, InstrErrMissingAccount
		}

		idxInCaller := uint64(idxInCallee)
		for prevIdx := 0; prevIdx < idxInCallee; prevIdx++ {
			if instrAccts[prevIdx].Pubkey == acctMeta.Pubkey {
				idxInCaller = uint64(prevIdx)
				break
			}
		}

		instructionAccts = append(instructionAccts, InstructionAccount{IndexInTransaction: idxInTx,
			IndexInCaller: idxInCaller,
			IndexInCallee: uint64(idxInCallee),
			IsSigner:      acctMeta.IsSigner,
			IsWritable:    acctMeta.IsWritable})
	}

	// a key listed more than once carries the union of its privileges
	for idx := range instructionAccts {
		for other := range instructionAccts {
			if instructionAccts[idx].IndexInTransaction == instructionAccts[other].IndexInTransaction {
				instructionAccts[idx].IsSigner = instructionAccts[idx].IsSigner || instructionAccts[other].IsSigner
				instructionAccts[idx].IsWritable = instructionAccts[idx].IsWritable || instructionAccts[other].IsWritable
			}
		}
	}

	return instructionAccts, nil
}

func (execCtx *ExecutionCtx) PrepareInstruction(ix Instruction, signers []solana.PublicKey) ([]InstructionAccount, error) {
	txCtx := execCtx.TransactionContext

	ixCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return nil, err
	}

	dedupInstructionAccounts := make([]InstructionAccount, 0)
	duplicateIndices := make([]uint64, 0)

	for instructionAcctIndex, accountMeta := range ix.Accounts {
		indexInTx, err := txCtx.IndexOfAccount(accountMeta.Pubkey)
		if err != nil {
			klog.Errorf("instruction references unknown account %s", accountMeta.Pubkey)
			return nil, err
		}

		duplicateIndex := -1
		for index, instrAcct := range dedupInstructionAccounts {
			if instrAcct.IndexInTransaction == indexInTx {
				duplicateIndex = index
				break
			}
		}

		if duplicateIndex != -1 {
			duplicateIndices = append(duplicateIndices, uint64(duplicateIndex))
			dedupInstructionAccounts[duplicateIndex].IsSigner = dedupInstructionAccounts[duplicateIndex].IsSigner || accountMeta.IsSigner
			dedupInstructionAccounts[duplicateIndex].IsWritable = dedupInstructionAccounts[duplicateIndex].IsWritable || accountMeta.IsWritable
		} else {
			indexInCaller, err := ixCtx.IndexOfInstructionAccount(txCtx, accountMeta.Pubkey)
			if err != nil {
				klog.Errorf("account %s was not passed to the calling instruction", accountMeta.Pubkey)
				return nil, err
			}
			duplicateIndices = append(duplicateIndices, uint64(len(dedupInstructionAccounts)))

			instrAcct := InstructionAccount{IndexInTransaction: indexInTx,
				IndexInCaller: indexInCaller,
				IndexInCallee: uint64(instructionAcctIndex),
				IsSigner:      accountMeta.IsSigner,
				IsWritable:    accountMeta.IsWritable}

			dedupInstructionAccounts = append(dedupInstructionAccounts, instrAcct)
		}
	}

	for _, instructionAcct := range dedupInstructionAccounts {
		borrowedAcct, err := ixCtx.BorrowInstructionAccount(txCtx, instructionAcct.IndexInCaller)
		if err != nil {
			return nil, err
		}

		// read-only in the caller cannot become writable in the callee
		if instructionAcct.IsWritable && !borrowedAcct.IsWritable() {
			klog.Errorf("%s: writable privilege escalated", borrowedAcct.Key())
			return nil, InstrErrPrivilegeEscalation
		}

		// to be signed in the callee, it must be signed in the caller or by the program
		presentInSigners := false
		for _, addr := range signers {
			if addr == borrowedAcct.Key() {
				presentInSigners = true
				break
			}
		}
		if instructionAcct.IsSigner && !(borrowedAcct.IsSigner() || presentInSigners) {
			klog.Errorf("%s: signer privilege escalated", borrowedAcct.Key())
			return nil, InstrErrPrivilegeEscalation
		}
	}

	instructionAccounts := make([]InstructionAccount, 0, len(duplicateIndices))
	for _, duplicateIndex := range duplicateIndices {
		if duplicateIndex >= uint64(len(dedupInstructionAccounts)) {
			return nil, InstrErrNotEnoughAccountKeys
		}
		instructionAccounts = append(instructionAccounts, dedupInstructionAccounts[duplicateIndex])
	}

	return instructionAccounts, nil
}

// ProcessInstruction pushes a new frame for programId, runs the program and
// checks that the instruction neither created nor destroyed lamports.
func (execCtx *ExecutionCtx) ProcessInstruction(programId solana.PublicKey, instrData []byte, instructionAccts []InstructionAccount) error {
	txCtx := execCtx.TransactionContext
	instrCtx := InstructionCtx{programId: programId, InstructionAccounts: instructionAccts, Data: instrData}

	preBalance, err := execCtx.instructionLamports(&instrCtx)
	if err != nil {
		return err
	}

	err = txCtx.Push(instrCtx)
	if err != nil {
		return err
	}

	err1 := execCtx.ExecuteInstruction()
	err2 := txCtx.Pop()

	if err1 != nil {
		return err1
	} else if err2 != nil {
		return err2
	}

	postBalance, err := execCtx.instructionLamports(&instrCtx)
	if err != nil {
		return err
	}

	if preBalance != postBalance {
		klog.Errorf("program %s: lamports before %d, after %d", programId, preBalance, postBalance)
		return InstrErrUnbalancedInstruction
	}

	return nil
}

func (execCtx *ExecutionCtx) ExecuteInstruction() error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	programFn, err := execCtx.resolveProgram(instrCtx.ProgramId())
	if err != nil {
		klog.Errorf("unknown program %s", instrCtx.ProgramId())
		return err
	}

	klog.V(3).Infof("calling program %s at depth %d", instrCtx.ProgramId(), txCtx.InstructionCtxStackHeight())
	return programFn(execCtx)
}

func (execCtx *ExecutionCtx) resolveProgram(programId solana.PublicKey) (ProgramFn, error) {
	if programFn, ok := execCtx.Programs[programId]; ok {
		return programFn, nil
	}
	return resolveNativeProgramById(programId)
}

func (execCtx *ExecutionCtx) StackHeight() uint64 {
	return execCtx.TransactionContext.InstructionCtxStackHeight()
}

// NativeInvoke performs a cross-program call from the current instruction.
// signers are the program derived addresses the caller signs for.
func (execCtx *ExecutionCtx) NativeInvoke(instruction Instruction, signers []solana.PublicKey) error {
	err := execCtx.ComputeMeter.Consume(CUInvokeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	instrAccts, err := execCtx.PrepareInstruction(instruction, signers)
	if err != nil {
		return err
	}

	return execCtx.ProcessInstruction(instruction.ProgramId, instruction.Data, instrAccts)
}

// SignersFromSeeds derives the addresses the current program may sign for, one
// per seed set.
func (execCtx *ExecutionCtx) SignersFromSeeds(signerSeeds [][][]byte) ([]solana.PublicKey, error) {
	instrCtx, err := execCtx.TransactionContext.CurrentInstructionCtx()
	if err != nil {
		return nil, err
	}

	signers := make([]solana.PublicKey, 0, len(signerSeeds))
	for _, seeds := range signerSeeds {
		err = execCtx.ComputeMeter.Consume(CUCreateProgramAddressUnits)
		if err != nil {
			return nil, InstrErrComputationalBudgetExceeded
		}

		signer, err := pda.CreateProgramAddress(seeds, instrCtx.ProgramId())
		if err != nil {
			return nil, InstrErrInvalidSeeds
		}
		signers = append(signers, signer)
	}

	return signers, nil
}

func (execCtx *ExecutionCtx) instructionLamports(instrCtx *InstructionCtx) (uint64, error) {
	var total uint64
	seen := make(map[uint64]bool, len(instrCtx.InstructionAccounts))

	for _, instrAcct := range instrCtx.InstructionAccounts {
		if seen[instrAcct.IndexInTransaction] {
			continue
		}
		seen[instrAcct.IndexInTransaction] = true

		acct, err := execCtx.TransactionContext.Accounts.GetAccount(instrAcct.IndexInTransaction)
		if err != nil {
			return 0, err
		}

		total, err = safemath.CheckedAddU64(total, acct.Lamports)
		if err != nil {
			return 0, InstrErrArithmeticOverflow
		}
	}

	return total, nil
}
