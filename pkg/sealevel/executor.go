package sealevel

import (
	"context"
	"sync"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/Overclock-Validator/lstpool/pkg/util"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"k8s.io/klog/v2"
)

// Executor applies transactions to an account store one at a time. Each
// transaction runs against private copies of the accounts it names, and
// the touched copies are written back in a single batch only if every
// instruction succeeded.
type Executor struct {
	mu       sync.Mutex
	accts    accounts.Accounts
	programs map[solana.PublicKey]ProgramFn
	metrics  *ExecutorMetrics
	hooks    []CommitHook
}

// CommitHook observes the accounts written by a committed transaction. It
// runs with the executor locked and must not call back into it.
type CommitHook func(committed []*accounts.Account)

// TxResult describes a committed transaction.
type TxResult struct {
	ComputeUnits uint64
	Modified     []solana.PublicKey
	DeltaHash    []byte
}

func NewExecutor(accts accounts.Accounts) *Executor {
	return &Executor{accts: accts, programs: make(map[solana.PublicKey]ProgramFn)}
}

func (e *Executor) RegisterProgram(programId solana.PublicKey, programFn ProgramFn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.programs[programId] = programFn
}

func (e *Executor) SetMetrics(metrics *ExecutorMetrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = metrics
}

func (e *Executor) AddCommitHook(hook CommitHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, hook)
}

func (e *Executor) Accounts() accounts.Accounts {
	return e.accts
}

// GetAccount reads the committed state of pubkey.
func (e *Executor) GetAccount(pubkey solana.PublicKey) (*accounts.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accts.GetAccount(pubkey)
}

// SetAccount overwrites an account outside of any transaction. It is meant
// for genesis setup and tests.
func (e *Executor) SetAccount(acct *accounts.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accts.SetAccount(acct.Key, acct)
}

// Genesis writes the clock and rent sysvars.
func (e *Executor) Genesis(clock SysvarClock, rent SysvarRent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := WriteClockSysvar(e.accts, &clock)
	if err != nil {
		return err
	}
	return WriteRentSysvar(e.accts, &rent)
}

// Airdrop credits lamports to pubkey from thin air.
func (e *Executor) Airdrop(pubkey solana.PublicKey, lamports uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.accts.GetAccount(pubkey)
	if err != nil {
		return err
	}
	acct.Lamports += lamports
	return e.accts.SetAccount(pubkey, acct)
}

// WarpToEpoch advances the clock to the first slot of epoch.
func (e *Executor) WarpToEpoch(epoch uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	clock, err := ReadClockSysvar(e.accts)
	if err != nil {
		return err
	}
	if epoch < clock.Epoch {
		return errors.Errorf("cannot warp backwards from epoch %d to %d", clock.Epoch, epoch)
	}

	clock.Slot += (epoch - clock.Epoch) * SlotsPerEpoch
	clock.Epoch = epoch
	clock.LeaderScheduleEpoch = epoch + 1
	klog.Infof("warped to epoch %d (slot %d)", clock.Epoch, clock.Slot)
	return WriteClockSysvar(e.accts, &clock)
}

// CreditRewards adds simulated epoch rewards to a delegated stake account.
func (e *Executor) CreditRewards(stakeAddr solana.PublicKey, lamports uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.accts.GetAccount(stakeAddr)
	if err != nil {
		return err
	}

	err = StakeProgramCreditRewards(acct, lamports)
	if err != nil {
		return errors.Wrapf(err, "crediting rewards to %s", stakeAddr)
	}
	return e.accts.SetAccount(stakeAddr, acct)
}

func transactionKeys(tx *Transaction) []solana.PublicKey {
	keys := lo.FlatMap(tx.Instructions, func(instr Instruction, _ int) []solana.PublicKey {
		return lo.Map(instr.Accounts, func(meta AccountMeta, _ int) solana.PublicKey { return meta.Pubkey })
	})
	return lo.Uniq(append(append([]solana.PublicKey{}, tx.Signers...), keys...))
}

func verifyTransactionSigners(tx *Transaction) error {
	for _, instr := range tx.Instructions {
		for _, meta := range instr.Accounts {
			if meta.IsSigner && !lo.Contains(tx.Signers, meta.Pubkey) {
				klog.Errorf("transaction is missing a signature for %s", meta.Pubkey)
				return InstrErrMissingRequiredSignature
			}
		}
	}
	return nil
}

// ProcessTransaction executes tx atomically. On any error nothing is
// written. ctx is only consulted before execution starts.
func (e *Executor) ProcessTransaction(ctx context.Context, tx *Transaction) (*TxResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "transaction not started")
	}

	if len(tx.Instructions) == 0 {
		return nil, TxErrEmptyTransaction
	}

	err := verifyTransactionSigners(tx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	result, computeUnits, err := e.processTransaction(tx)
	e.metrics.observe(computeUnits, err)
	return result, err
}

func (e *Executor) processTransaction(tx *Transaction) (*TxResult, uint64, error) {
	sysvarCache, err := LoadSysvarCache(e.accts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "loading sysvars")
	}

	keys := transactionKeys(tx)
	acctsForTx := make([]accounts.Account, 0, len(keys))
	for _, key := range keys {
		acct, err := e.accts.GetAccount(key)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "loading account %s", key)
		}
		acctsForTx = append(acctsForTx, *acct)
	}

	transactionAccts := NewTransactionAccounts(acctsForTx)

	writable := make([]bool, len(keys))
	for _, instr := range tx.Instructions {
		for _, meta := range instr.Accounts {
			if meta.IsWritable {
				idx, _ := transactionAccts.IndexOf(meta.Pubkey)
				writable[idx] = true
			}
		}
	}

	rentSysvar := sysvarCache.Rent()
	preTxRentStates := NewRentStateInfo(&rentSysvar, transactionAccts, writable)

	txCtx := NewTransactionCtx(*transactionAccts)
	execCtx := NewExecutionCtx(txCtx, sysvarCache, e.programs)

	for instrIdx, instr := range tx.Instructions {
		instructionAccts, err := InstructionAcctsFromAccountMetas(instr.Accounts, txCtx.Accounts)
		if err != nil {
			return nil, execCtx.ComputeMeter.Used(), errors.Wrapf(err, "instruction %d", instrIdx)
		}

		err = execCtx.ProcessInstruction(instr.ProgramId, instr.Data, instructionAccts)
		if err != nil {
			klog.Errorf("transaction failed at instruction %d (program %s): %s", instrIdx, instr.ProgramId, err)
			return nil, execCtx.ComputeMeter.Used(), errors.Wrapf(err, "instruction %d", instrIdx)
		}
	}

	postTxRentStates := NewRentStateInfo(&rentSysvar, &txCtx.Accounts, writable)
	err = VerifyRentStateChanges(preTxRentStates, postTxRentStates, &txCtx.Accounts)
	if err != nil {
		return nil, execCtx.ComputeMeter.Used(), err
	}

	touched := txCtx.Accounts.TouchedAccounts()
	err = e.accts.SetAccounts(touched)
	if err != nil {
		return nil, execCtx.ComputeMeter.Used(), errors.Wrap(err, "committing accounts")
	}

	for _, hook := range e.hooks {
		hook(touched)
	}

	modified := lo.Map(touched, func(acct *accounts.Account, _ int) solana.PublicKey { return acct.Key })
	klog.V(2).Infof("committed transaction: %d accounts modified, %d CUs", len(modified), execCtx.ComputeMeter.Used())

	return &TxResult{ComputeUnits: execCtx.ComputeMeter.Used(), Modified: util.DedupePubkeys(modified), DeltaHash: util.AccountsDeltaHash(touched)}, execCtx.ComputeMeter.Used(), nil
}
