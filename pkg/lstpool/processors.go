package lstpool

import (
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Program is the pool program as the executor sees it.
type Program struct {
	cfg     *Config
	metrics *Metrics
}

func NewProgram(cfg *Config, metrics *Metrics) *Program {
	return &Program{cfg: cfg, metrics: metrics}
}

// Register installs the program on exec under the configured program id.
func (p *Program) Register(exec *sealevel.Executor) {
	exec.RegisterProgram(p.cfg.ProgramID, p.Execute)
	if p.metrics != nil {
		exec.AddCommitHook(p.metrics.ObserveCommitted)
	}
}

func (p *Program) Execute(execCtx *sealevel.ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(sealevel.CULstPoolProgramComputeUnits)
	if err != nil {
		return sealevel.InstrErrComputationalBudgetExceeded
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if len(instrCtx.Data) == 0 {
		return sealevel.InstrErrInvalidInstructionData
	}

	instrType := instrCtx.Data[0]
	payload := instrCtx.Data[1:]

	switch instrType {
	case InstrTypeInitialize:
		err = p.processInitialize(execCtx, instrCtx, payload)
	case InstrTypeDeposit:
		err = p.processDeposit(execCtx, instrCtx, payload)
	case InstrTypeInitializeReserve:
		err = p.processInitializeReserve(execCtx, instrCtx, payload)
	case InstrTypeMergeReserve:
		err = p.processMergeReserve(execCtx, instrCtx, payload)
	case InstrTypeWithdraw:
		err = p.processWithdraw(execCtx, instrCtx, payload)
	case InstrTypeWithdrawComplete:
		err = p.processWithdrawComplete(execCtx, instrCtx, payload)
	default:
		err = errors.Wrapf(sealevel.InstrErrInvalidInstructionData, "unknown instruction %d", instrType)
	}

	p.metrics.observeInstruction(instrType, err)
	if err != nil {
		klog.V(2).Infof("lstpool: %s failed: %s", InstrName(instrType), err)
	}
	return err
}

func borrowAccounts(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, count uint64) ([]*sealevel.BorrowedAccount, error) {
	err := instrCtx.CheckNumOfInstructionAccounts(count)
	if err != nil {
		return nil, err
	}

	accts := make([]*sealevel.BorrowedAccount, 0, count)
	for idx := uint64(0); idx < count; idx++ {
		acct, err := instrCtx.BorrowInstructionAccount(execCtx.TransactionContext, idx)
		if err != nil {
			return nil, err
		}
		accts = append(accts, acct)
	}
	return accts, nil
}

func requireSigner(acct *sealevel.BorrowedAccount, role string) error {
	if !acct.IsSigner() {
		return errors.Wrapf(sealevel.InstrErrMissingRequiredSignature, "%s %s", role, acct.Key())
	}
	return nil
}

func requireKey(acct *sealevel.BorrowedAccount, expected solana.PublicKey, role string) error {
	if acct.Key() != expected {
		return errors.Wrapf(ErrAddressMismatch, "%s is %s, pool records %s", role, acct.Key(), expected)
	}
	return nil
}

func (p *Program) poolDriver(execCtx *sealevel.ExecutionCtx, poolAddr solana.PublicKey, pool *Pool) (*Driver, error) {
	return NewDriver(execCtx, p.cfg, poolAddr, WithBump(PoolSeeds(pool.Authority, pool.Seed), pool.PoolBump))
}

// createShareAccount creates owner's share account if it does not exist
// and checks that it is the account the caller passed.
func createShareAccount(execCtx *sealevel.ExecutionCtx, payer solana.PublicKey, owner solana.PublicKey, mint solana.PublicKey, passed solana.PublicKey) error {
	instr, err := sealevel.NewAssociatedTokenCreateIdempotentInstruction(payer, owner, mint)
	if err != nil {
		return err
	}
	if instr.Accounts[1].Pubkey != passed {
		return errors.Wrapf(ErrAddressMismatch, "share account is %s, expected %s", passed, instr.Accounts[1].Pubkey)
	}
	return execCtx.NativeInvoke(instr, nil)
}

func (p *Program) processInitialize(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, payload []byte) error {
	var params InstrInitialize
	err := decodePayload(payload, initializePayloadLen, &params)
	if err != nil {
		return err
	}
	if params.Seed == 0 {
		return errors.Wrap(sealevel.InstrErrInvalidSeeds, "pool seed must be nonzero")
	}

	accts, err := borrowAccounts(execCtx, instrCtx, 7)
	if err != nil {
		return err
	}
	creator, creatorLst, poolAcct, mintAcct, stakeAcct, reserveAcct, voteAcct := accts[0], accts[1], accts[2], accts[3], accts[4], accts[5], accts[6]

	err = requireSigner(creator, "creator")
	if err != nil {
		return err
	}

	addrs := &Addresses{ProgramID: p.cfg.ProgramID, Creator: creator.Key(), Seed: params.Seed,
		Pool: poolAcct.Key(), Mint: mintAcct.Key(), Stake: stakeAcct.Key(), Reserve: reserveAcct.Key(),
		PoolBump: params.PoolBump, MintBump: params.MintBump, StakeBump: params.StakeBump, ReserveBump: params.ReserveBump}

	checks := []struct {
		addr  solana.PublicKey
		seeds [][]byte
		bump  uint8
	}{
		{addrs.Pool, PoolSeeds(addrs.Creator, addrs.Seed), addrs.PoolBump},
		{addrs.Mint, MintSeeds(addrs.Pool), addrs.MintBump},
		{addrs.Stake, StakeSeeds(addrs.Pool), addrs.StakeBump},
		{addrs.Reserve, ReserveSeeds(addrs.Pool), addrs.ReserveBump},
	}
	for _, check := range checks {
		err = VerifyAddress(check.addr, check.seeds, check.bump, p.cfg.ProgramID)
		if err != nil {
			return err
		}
	}

	pool, err := InitializePool(poolAcct, PoolParams{Addresses: addrs, Validator: voteAcct.Key()})
	if err != nil {
		return err
	}

	driver, err := p.poolDriver(execCtx, addrs.Pool, pool)
	if err != nil {
		return err
	}

	rent := execCtx.SysvarCache.Rent()

	err = execCtx.NativeInvoke(sealevel.NewSystemCreateAccountInstruction(addrs.Creator, addrs.Pool, rent.MinimumBalance(PoolAccountSize), PoolAccountSize, p.cfg.ProgramID), driver.poolSigner)
	if err != nil {
		return errors.Wrap(err, "creating pool account")
	}

	mintSigner, err := execCtx.SignersFromSeeds([][][]byte{WithBump(MintSeeds(addrs.Pool), addrs.MintBump)})
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(sealevel.NewSystemCreateAccountInstruction(addrs.Creator, addrs.Mint, rent.MinimumBalance(sealevel.TokenMintSize), sealevel.TokenMintSize, sealevel.TokenProgramAddr), mintSigner)
	if err != nil {
		return errors.Wrap(err, "creating share mint")
	}
	err = execCtx.NativeInvoke(sealevel.NewTokenInitializeMint2Instruction(addrs.Mint, addrs.Pool, p.cfg.MintDecimals), nil)
	if err != nil {
		return errors.Wrap(err, "initializing share mint")
	}

	err = driver.Create(addrs.Creator, addrs.Stake, p.cfg.MinStakeDelegation, WithBump(StakeSeeds(addrs.Pool), addrs.StakeBump))
	if err != nil {
		return err
	}
	err = driver.Initialize(addrs.Stake, addrs.Pool, addrs.Pool)
	if err != nil {
		return err
	}
	err = driver.Delegate(addrs.Stake, pool.Validator)
	if err != nil {
		return err
	}

	err = driver.Create(addrs.Creator, addrs.Reserve, 0, WithBump(ReserveSeeds(addrs.Pool), addrs.ReserveBump))
	if err != nil {
		return err
	}

	// the creator's stake backs the first shares one to one
	err = createShareAccount(execCtx, addrs.Creator, addrs.Creator, addrs.Mint, creatorLst.Key())
	if err != nil {
		return err
	}
	err = driver.shareToken(addrs.Mint).Mint(creatorLst.Key(), p.cfg.MinStakeDelegation)
	if err != nil {
		return err
	}
	err = pool.RecordDeposit(p.cfg.MinStakeDelegation, 0)
	if err != nil {
		return err
	}

	err = StorePool(poolAcct, pool)
	if err != nil {
		return err
	}

	klog.V(2).Infof("lstpool: initialized pool %s (creator %s, seed %d, validator %s)", addrs.Pool, addrs.Creator, addrs.Seed, pool.Validator)
	return nil
}

func (p *Program) processDeposit(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, payload []byte) error {
	var params InstrDeposit
	err := decodePayload(payload, depositPayloadLen, &params)
	if err != nil {
		return err
	}
	if params.Amount == 0 {
		return errors.Wrap(ErrInvalidAmount, "deposit of zero lamports")
	}

	accts, err := borrowAccounts(execCtx, instrCtx, 6)
	if err != nil {
		return err
	}
	depositor, poolAcct, stakeAcct, reserveAcct, mintAcct, depositorLst := accts[0], accts[1], accts[2], accts[3], accts[4], accts[5]

	err = requireSigner(depositor, "depositor")
	if err != nil {
		return err
	}

	pool, err := LoadPool(poolAcct, p.cfg.ProgramID)
	if err != nil {
		return err
	}
	for _, check := range []struct {
		acct     *sealevel.BorrowedAccount
		expected solana.PublicKey
		role     string
	}{{stakeAcct, pool.Stake, "pool stake"}, {reserveAcct, pool.Reserve, "reserve stake"}, {mintAcct, pool.Mint, "share mint"}} {
		err = requireKey(check.acct, check.expected, check.role)
		if err != nil {
			return err
		}
	}

	driver, err := p.poolDriver(execCtx, poolAcct.Key(), pool)
	if err != nil {
		return err
	}

	rent := driver.rentReserve()
	total, err := TotalPoolValue(stakeAcct.Lamports(), reserveAcct.Lamports(), rent)
	if err != nil {
		return err
	}
	// shares are priced on the value the deposit adds, so a deposit that
	// refills an emptied reserve pays for its rent
	added, err := DepositValue(stakeAcct.Lamports(), reserveAcct.Lamports(), params.Amount, rent)
	if err != nil {
		return err
	}
	minted, err := QuoteMint(added, pool.LstSupply, total)
	if err != nil {
		return err
	}

	err = createShareAccount(execCtx, depositor.Key(), depositor.Key(), pool.Mint, depositorLst.Key())
	if err != nil {
		return err
	}

	err = execCtx.NativeInvoke(sealevel.NewSystemTransferInstruction(depositor.Key(), reserveAcct.Key(), params.Amount), nil)
	if err != nil {
		return errors.Wrapf(err, "transferring %d lamports to the reserve", params.Amount)
	}

	err = driver.shareToken(pool.Mint).Mint(depositorLst.Key(), minted)
	if err != nil {
		return err
	}

	err = pool.RecordDeposit(minted, params.Amount)
	if err != nil {
		return err
	}

	err = StorePool(poolAcct, pool)
	if err != nil {
		return err
	}

	klog.V(2).Infof("lstpool: %s deposited %d lamports adding %d of value for %d shares (pool value %d, supply %d)", depositor.Key(), params.Amount, added, minted, total, pool.LstSupply)
	return nil
}

func (p *Program) processInitializeReserve(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, payload []byte) error {
	if len(payload) != 0 {
		return errors.Wrapf(sealevel.InstrErrInvalidInstructionData, "unexpected %d byte payload", len(payload))
	}

	accts, err := borrowAccounts(execCtx, instrCtx, 4)
	if err != nil {
		return err
	}
	poolAcct, stakeAcct, reserveAcct, voteAcct := accts[0], accts[1], accts[2], accts[3]

	pool, err := LoadPool(poolAcct, p.cfg.ProgramID)
	if err != nil {
		return err
	}
	for _, check := range []struct {
		acct     *sealevel.BorrowedAccount
		expected solana.PublicKey
		role     string
	}{{stakeAcct, pool.Stake, "pool stake"}, {reserveAcct, pool.Reserve, "reserve stake"}, {voteAcct, pool.Validator, "validator"}} {
		err = requireKey(check.acct, check.expected, check.role)
		if err != nil {
			return err
		}
	}

	driver, err := p.poolDriver(execCtx, poolAcct.Key(), pool)
	if err != nil {
		return err
	}

	required := driver.rentReserve() + p.cfg.MinStakeDelegation
	if reserveAcct.Lamports() < required {
		return errors.Wrapf(ErrInsufficientFunds, "reserve holds %d lamports, delegation needs %d", reserveAcct.Lamports(), required)
	}

	if len(reserveAcct.Data()) != 0 {
		if reserveAcct.Owner() != sealevel.StakeProgramAddr {
			return errors.Wrapf(sealevel.InstrErrInvalidAccountOwner, "reserve owned by %s", reserveAcct.Owner())
		}
		state, err := sealevel.UnmarshalStakeState(reserveAcct.Data())
		if err != nil {
			return err
		}
		if state.Status != sealevel.StakeStateV2StatusUninitialized {
			return errors.Wrapf(ErrAlreadyInitialized, "reserve %s is %s", reserveAcct.Key(), sealevel.StakeStatusString(sealevel.StakeActivationStatus(state, execCtx.SysvarCache.Clock().Epoch)))
		}
	} else {
		err = driver.ReinitializeEmpty(reserveAcct.Key(), WithBump(ReserveSeeds(poolAcct.Key()), pool.ReserveBump))
		if err != nil {
			return err
		}
	}

	err = driver.Initialize(reserveAcct.Key(), poolAcct.Key(), poolAcct.Key())
	if err != nil {
		return err
	}
	err = driver.Delegate(reserveAcct.Key(), pool.Validator)
	if err != nil {
		return err
	}

	klog.V(2).Infof("lstpool: delegated reserve %s with %d lamports", reserveAcct.Key(), reserveAcct.Lamports())
	return nil
}

func (p *Program) processMergeReserve(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, payload []byte) error {
	if len(payload) != 0 {
		return errors.Wrapf(sealevel.InstrErrInvalidInstructionData, "unexpected %d byte payload", len(payload))
	}

	accts, err := borrowAccounts(execCtx, instrCtx, 3)
	if err != nil {
		return err
	}
	poolAcct, stakeAcct, reserveAcct := accts[0], accts[1], accts[2]

	pool, err := LoadPool(poolAcct, p.cfg.ProgramID)
	if err != nil {
		return err
	}
	err = requireKey(stakeAcct, pool.Stake, "pool stake")
	if err != nil {
		return err
	}
	err = requireKey(reserveAcct, pool.Reserve, "reserve stake")
	if err != nil {
		return err
	}

	if reserveAcct.Lamports() == 0 {
		return errors.Wrapf(ErrUninitialized, "reserve %s holds nothing to merge", reserveAcct.Key())
	}
	if stakeAcct.Owner() != sealevel.StakeProgramAddr || reserveAcct.Owner() != sealevel.StakeProgramAddr {
		return errors.Wrap(sealevel.InstrErrInvalidAccountOwner, "merge needs two stake positions")
	}

	driver, err := p.poolDriver(execCtx, poolAcct.Key(), pool)
	if err != nil {
		return err
	}

	settled := reserveAcct.Lamports()
	err = driver.Merge(stakeAcct.Key(), reserveAcct.Key())
	if err != nil {
		return err
	}

	pool.RecordMergeSettled(settled)
	return StorePool(poolAcct, pool)
}

func (p *Program) processWithdraw(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, payload []byte) error {
	var params InstrWithdraw
	err := decodePayload(payload, withdrawPayloadLen, &params)
	if err != nil {
		return err
	}
	if params.Amount == 0 {
		return errors.Wrap(ErrInvalidAmount, "withdrawal of zero shares")
	}
	if params.Nonce == 0 {
		return errors.Wrap(sealevel.InstrErrInvalidInstructionData, "nonce must be nonzero")
	}

	accts, err := borrowAccounts(execCtx, instrCtx, 7)
	if err != nil {
		return err
	}
	user, poolAcct, stakeAcct, reserveAcct, ticketAcct, mintAcct, userLst := accts[0], accts[1], accts[2], accts[3], accts[4], accts[5], accts[6]

	err = requireSigner(user, "user")
	if err != nil {
		return err
	}

	pool, err := LoadPool(poolAcct, p.cfg.ProgramID)
	if err != nil {
		return err
	}
	for _, check := range []struct {
		acct     *sealevel.BorrowedAccount
		expected solana.PublicKey
		role     string
	}{{stakeAcct, pool.Stake, "pool stake"}, {reserveAcct, pool.Reserve, "reserve stake"}, {mintAcct, pool.Mint, "share mint"}} {
		err = requireKey(check.acct, check.expected, check.role)
		if err != nil {
			return err
		}
	}

	driver, err := p.poolDriver(execCtx, poolAcct.Key(), pool)
	if err != nil {
		return err
	}

	tickets := NewTicketManager(p.cfg, driver, poolAcct.Key())
	_, err = tickets.Request(pool, WithdrawalAccounts{User: user.Key(), Primary: stakeAcct, Reserve: reserveAcct, Ticket: ticketAcct, UserLst: userLst}, params.Nonce, params.Amount)
	if err != nil {
		return err
	}

	return StorePool(poolAcct, pool)
}

func (p *Program) processWithdrawComplete(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, payload []byte) error {
	var params InstrWithdrawComplete
	err := decodePayload(payload, withdrawCompletePayloadLen, &params)
	if err != nil {
		return err
	}
	if params.Nonce == 0 {
		return errors.Wrap(sealevel.InstrErrInvalidInstructionData, "nonce must be nonzero")
	}

	accts, err := borrowAccounts(execCtx, instrCtx, 3)
	if err != nil {
		return err
	}
	user, poolAcct, ticketAcct := accts[0], accts[1], accts[2]

	err = requireSigner(user, "user")
	if err != nil {
		return err
	}

	pool, err := LoadPool(poolAcct, p.cfg.ProgramID)
	if err != nil {
		return err
	}

	driver, err := p.poolDriver(execCtx, poolAcct.Key(), pool)
	if err != nil {
		return err
	}

	tickets := NewTicketManager(p.cfg, driver, poolAcct.Key())
	_, err = tickets.Complete(user.Key(), ticketAcct, params.Nonce)
	return err
}
