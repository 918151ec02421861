package sealevel

import (
	"errors"
	"math"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/Overclock-Validator/lstpool/pkg/safemath"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const (
	StakeProgramInstrTypeInitialize = iota
	StakeProgramInstrTypeAuthorize
	StakeProgramInstrTypeDelegateStake
	StakeProgramInstrTypeSplit
	StakeProgramInstrTypeWithdraw
	StakeProgramInstrTypeDeactivate
	StakeprogramInstrTypeSetLockup
	StakeProgramInstrTypeMerge
)

const (
	StakeAuthorizeStaker = iota
	StakeAuthorizeWithdrawer
)

// StakeMinimumDelegation is the smallest stake a delegation may carry.
const StakeMinimumDelegation = 1_000_000_000

const DefaultWarmupCooldownRate float64 = 0.25

// stake errors
var (
	StakeErrInsufficientDelegation = errors.New("StakeErrInsufficientDelegation")
	StakeErrAlreadyDeactivated     = errors.New("StakeErrAlreadyDeactivated")
	StakeErrMergeTransientStake    = errors.New("StakeErrMergeTransientStake")
	StakeErrMergeMismatch          = errors.New("StakeErrMergeMismatch")
	StakeErrInsufficientStake      = errors.New("StakeErrInsufficientStake")
)

type StakeInstrInitialize struct {
	Authorized Authorized
	Lockup     StakeLockup
}

type StakeInstrSplit struct {
	Lamports uint64
}

type StakeInstrWithdraw struct {
	Lamports uint64
}

func (initialize *StakeInstrInitialize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	err = initialize.Authorized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = initialize.Lockup.UnmarshalWithDecoder(decoder)
	return err
}

func (initialize *StakeInstrInitialize) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := initialize.Authorized.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}
	return initialize.Lockup.MarshalWithEncoder(encoder)
}

func (split *StakeInstrSplit) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	split.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (split *StakeInstrSplit) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(split.Lamports, bin.LE)
}

func (withdraw *StakeInstrWithdraw) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	withdraw.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (withdraw *StakeInstrWithdraw) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(withdraw.Lamports, bin.LE)
}

func NewStakeInitializeInstruction(stake solana.PublicKey, authorized Authorized) Instruction {
	initialize := StakeInstrInitialize{Authorized: authorized}
	data := encodeInstrData(StakeProgramInstrTypeInitialize, &initialize)

	accountMetas := []AccountMeta{{Pubkey: stake, IsWritable: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: StakeProgramAddr}
}

func NewStakeDelegateInstruction(stake solana.PublicKey, vote solana.PublicKey, staker solana.PublicKey) Instruction {
	data := encodeInstrData(StakeProgramInstrTypeDelegateStake, nil)

	accountMetas := []AccountMeta{{Pubkey: stake, IsWritable: true},
		{Pubkey: vote},
		{Pubkey: staker, IsSigner: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: StakeProgramAddr}
}

func NewStakeSplitInstruction(stake solana.PublicKey, dest solana.PublicKey, staker solana.PublicKey, lamports uint64) Instruction {
	split := StakeInstrSplit{Lamports: lamports}
	data := encodeInstrData(StakeProgramInstrTypeSplit, &split)

	accountMetas := []AccountMeta{{Pubkey: stake, IsWritable: true},
		{Pubkey: dest, IsWritable: true},
		{Pubkey: staker, IsSigner: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: StakeProgramAddr}
}

func NewStakeWithdrawInstruction(stake solana.PublicKey, recipient solana.PublicKey, withdrawer solana.PublicKey, lamports uint64) Instruction {
	withdraw := StakeInstrWithdraw{Lamports: lamports}
	data := encodeInstrData(StakeProgramInstrTypeWithdraw, &withdraw)

	accountMetas := []AccountMeta{{Pubkey: stake, IsWritable: true},
		{Pubkey: recipient, IsWritable: true},
		{Pubkey: withdrawer, IsSigner: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: StakeProgramAddr}
}

func NewStakeDeactivateInstruction(stake solana.PublicKey, staker solana.PublicKey) Instruction {
	data := encodeInstrData(StakeProgramInstrTypeDeactivate, nil)

	accountMetas := []AccountMeta{{Pubkey: stake, IsWritable: true},
		{Pubkey: staker, IsSigner: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: StakeProgramAddr}
}

func NewStakeMergeInstruction(dest solana.PublicKey, source solana.PublicKey, staker solana.PublicKey) Instruction {
	data := encodeInstrData(StakeProgramInstrTypeMerge, nil)

	accountMetas := []AccountMeta{{Pubkey: dest, IsWritable: true},
		{Pubkey: source, IsWritable: true},
		{Pubkey: staker, IsSigner: true}}
	return Instruction{Accounts: accountMetas, Data: data, ProgramId: StakeProgramAddr}
}

func StakeProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUStakeProgramDefaultComputeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	getStakeAccount := func() (*BorrowedAccount, error) {
		acct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
		if err != nil {
			return nil, err
		}
		if acct.Owner() != StakeProgramAddr {
			return nil, InstrErrInvalidAccountOwner
		}
		return acct, nil
	}

	signers, err := instrCtx.Signers(txCtx)
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)
	instructionType, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	clock := execCtx.SysvarCache.Clock()
	rent := execCtx.SysvarCache.Rent()

	switch instructionType {
	case StakeProgramInstrTypeInitialize:
		{
			var initialize StakeInstrInitialize
			err = initialize.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = StakeProgramInitialize(me, initialize.Authorized, initialize.Lockup, rent)
			if err != nil {
				return err
			}
		}

	case StakeProgramInstrTypeDelegateStake:
		{
			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			voteAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
			if err != nil {
				return err
			}

			err = StakeProgramDelegate(me, voteAcct, clock, signers)
			if err != nil {
				return err
			}
		}

	case StakeProgramInstrTypeSplit:
		{
			var split StakeInstrSplit
			err = split.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			dest, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
			if err != nil {
				return err
			}

			err = StakeProgramSplit(me, dest, split.Lamports, rent, signers)
			if err != nil {
				return err
			}
		}

	case StakeProgramInstrTypeWithdraw:
		{
			var withdraw StakeInstrWithdraw
			err = withdraw.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			recipient, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
			if err != nil {
				return err
			}

			err = StakeProgramWithdraw(me, recipient, withdraw.Lamports, clock, signers)
			if err != nil {
				return err
			}
		}

	case StakeProgramInstrTypeDeactivate:
		{
			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = StakeProgramDeactivate(me, clock, signers)
			if err != nil {
				return err
			}
		}

	case StakeProgramInstrTypeMerge:
		{
			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			source, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
			if err != nil {
				return err
			}

			err = StakeProgramMerge(me, source, clock, signers)
			if err != nil {
				return err
			}
		}

	default:
		return InstrErrInvalidInstructionData
	}

	return nil
}

func StakeProgramInitialize(stakeAcct *BorrowedAccount, authorized Authorized, lockup StakeLockup, rent SysvarRent) error {
	if len(stakeAcct.Data()) != StakeStateV2Size {
		return InstrErrInvalidAccountData
	}

	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	if state.Status != StakeStateV2StatusUninitialized {
		return InstrErrInvalidAccountData
	}

	rentExemptReserve := rent.MinimumBalance(uint64(len(stakeAcct.Data())))
	if stakeAcct.Lamports() < rentExemptReserve {
		return InstrErrInsufficientFunds
	}

	newStakeState := new(StakeStateV2)
	newStakeState.Status = StakeStateV2StatusInitialized
	newStakeState.Initialized = StakeStateV2Initialized{Meta: Meta{RentExemptReserve: rentExemptReserve, Authorized: authorized, Lockup: lockup}}
	return setStakeAccountState(stakeAcct, newStakeState)
}

func validateAndReturnDelegatedAmount(stakeAcct *BorrowedAccount, meta Meta) (uint64, error) {
	stakeAmount := safemath.SaturatingSubU64(stakeAcct.Lamports(), meta.RentExemptReserve)

	if stakeAmount < StakeMinimumDelegation {
		return 0, StakeErrInsufficientDelegation
	}

	return stakeAmount, nil
}

func (authorized *Authorized) Check(signers []solana.PublicKey, stakeAuthorize uint32) error {
	switch stakeAuthorize {
	case StakeAuthorizeStaker:
		return verifySigner(authorized.Staker, signers)
	case StakeAuthorizeWithdrawer:
		return verifySigner(authorized.Withdrawer, signers)
	}
	return InstrErrInvalidArgument
}

func StakeProgramDelegate(stakeAcct *BorrowedAccount, voteAcct *BorrowedAccount, clock SysvarClock, signers []solana.PublicKey) error {
	if voteAcct.Owner() != VoteProgramAddr {
		return InstrErrIncorrectProgramId
	}

	stakeState, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	switch stakeState.Status {
	case StakeStateV2StatusInitialized:
		{
			meta := stakeState.Initialized.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}

			stakeAmount, err := validateAndReturnDelegatedAmount(stakeAcct, meta)
			if err != nil {
				return err
			}

			stake := Stake{Delegation: Delegation{VoterPubkey: voteAcct.Key(),
				Stake:              stakeAmount,
				ActivationEpoch:    clock.Epoch,
				DeactivationEpoch:  math.MaxUint64,
				WarmupCooldownRate: DefaultWarmupCooldownRate}}

			newState := &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: meta, Stake: stake}}
			return setStakeAccountState(stakeAcct, newState)
		}

	case StakeStateV2StatusStake:
		{
			err = stakeState.Stake.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}

			// redelegation is only possible once the old delegation has cooled down
			if delegationStatus(&stakeState.Stake.Stake.Delegation, clock.Epoch) != StakeStatusInactive {
				return StakeErrMergeTransientStake
			}

			stakeAmount, err := validateAndReturnDelegatedAmount(stakeAcct, stakeState.Stake.Meta)
			if err != nil {
				return err
			}

			stakeState.Stake.Stake.Delegation = Delegation{VoterPubkey: voteAcct.Key(),
				Stake:              stakeAmount,
				ActivationEpoch:    clock.Epoch,
				DeactivationEpoch:  math.MaxUint64,
				WarmupCooldownRate: DefaultWarmupCooldownRate}
			stakeState.Stake.Stake.CreditsObserved = 0
			return setStakeAccountState(stakeAcct, stakeState)
		}
	}

	return InstrErrInvalidAccountData
}

func StakeProgramSplit(stakeAcct *BorrowedAccount, dest *BorrowedAccount, lamports uint64, rent SysvarRent, signers []solana.PublicKey) error {
	if dest.Owner() != StakeProgramAddr {
		return InstrErrIncorrectProgramId
	}

	if len(dest.Data()) != StakeStateV2Size {
		return InstrErrInvalidAccountData
	}

	destState, err := unmarshalStakeState(dest.Data())
	if err != nil {
		return err
	}
	if destState.Status != StakeStateV2StatusUninitialized {
		return InstrErrInvalidAccountData
	}

	if lamports == 0 || lamports > stakeAcct.Lamports() {
		return InstrErrInsufficientFunds
	}

	destRentExemptReserve := rent.MinimumBalance(uint64(len(dest.Data())))
	if dest.Lamports() < destRentExemptReserve {
		klog.Errorf("Split: destination %s is not prefunded for rent", dest.Key())
		return InstrErrInsufficientFunds
	}

	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusStake:
		{
			meta := state.Stake.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}

			remaining := stakeAcct.Lamports() - lamports
			if remaining != 0 && remaining < meta.RentExemptReserve+StakeMinimumDelegation {
				klog.Errorf("Split: %d lamports would remain, below rent and minimum delegation", remaining)
				return InstrErrInsufficientFunds
			}
			if lamports < StakeMinimumDelegation {
				return StakeErrInsufficientDelegation
			}

			destStake := state.Stake.Stake
			destStake.Delegation.Stake = lamports
			destMeta := meta
			destMeta.RentExemptReserve = destRentExemptReserve

			state.Stake.Stake.Delegation.Stake = safemath.SaturatingSubU64(state.Stake.Stake.Delegation.Stake, lamports)
			destState = &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: destMeta, Stake: destStake}}
		}

	case StakeStateV2StatusInitialized:
		{
			meta := state.Initialized.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}

			remaining := stakeAcct.Lamports() - lamports
			if remaining != 0 && remaining < meta.RentExemptReserve {
				return InstrErrInsufficientFunds
			}

			destMeta := meta
			destMeta.RentExemptReserve = destRentExemptReserve
			destState = &StakeStateV2{Status: StakeStateV2StatusInitialized, Initialized: StakeStateV2Initialized{Meta: destMeta}}
		}

	default:
		return InstrErrInvalidAccountData
	}

	// a full split leaves nothing behind to describe
	if lamports == stakeAcct.Lamports() {
		state = &StakeStateV2{Status: StakeStateV2StatusUninitialized}
	}

	err = setStakeAccountState(stakeAcct, state)
	if err != nil {
		return err
	}

	err = setStakeAccountState(dest, destState)
	if err != nil {
		return err
	}

	err = stakeAcct.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}

	return dest.CheckedAddLamports(lamports)
}

func StakeProgramWithdraw(stakeAcct *BorrowedAccount, recipient *BorrowedAccount, lamports uint64, clock SysvarClock, signers []solana.PublicKey) error {
	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	var reserve uint64
	var isStaked bool

	switch state.Status {
	case StakeStateV2StatusStake:
		{
			meta := state.Stake.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeWithdrawer)
			if err != nil {
				return err
			}

			var staked uint64
			if delegationStatus(&state.Stake.Stake.Delegation, clock.Epoch) != StakeStatusInactive {
				staked = state.Stake.Stake.Delegation.Stake
			}

			reserve, err = safemath.CheckedAddU64(staked, meta.RentExemptReserve)
			if err != nil {
				return InstrErrInsufficientFunds
			}
			isStaked = staked != 0
		}

	case StakeStateV2StatusInitialized:
		{
			meta := state.Initialized.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeWithdrawer)
			if err != nil {
				return err
			}
			reserve = meta.RentExemptReserve
		}

	case StakeStateV2StatusUninitialized:
		{
			err = verifySigner(stakeAcct.Key(), signers)
			if err != nil {
				return err
			}
		}

	default:
		return InstrErrInvalidAccountData
	}

	if lamports > stakeAcct.Lamports() {
		return InstrErrInsufficientFunds
	}

	if lamports == stakeAcct.Lamports() {
		if isStaked {
			klog.Errorf("Withdraw: %s is still staked", stakeAcct.Key())
			return InstrErrInsufficientFunds
		}

		if state.Status != StakeStateV2StatusUninitialized {
			err = setStakeAccountState(stakeAcct, &StakeStateV2{Status: StakeStateV2StatusUninitialized})
			if err != nil {
				return err
			}
		}
	} else {
		remaining := stakeAcct.Lamports() - lamports
		if remaining < reserve {
			klog.Errorf("Withdraw: %d lamports would remain, %d required", remaining, reserve)
			return InstrErrInsufficientFunds
		}
	}

	err = stakeAcct.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}

	return recipient.CheckedAddLamports(lamports)
}

func StakeProgramDeactivate(stakeAcct *BorrowedAccount, clock SysvarClock, signers []solana.PublicKey) error {
	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	if state.Status != StakeStateV2StatusStake {
		return InstrErrInvalidAccountData
	}

	err = state.Stake.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return err
	}

	if state.Stake.Stake.Delegation.IsDeactivated() {
		return StakeErrAlreadyDeactivated
	}

	state.Stake.Stake.Delegation.DeactivationEpoch = clock.Epoch
	return setStakeAccountState(stakeAcct, state)
}

func StakeProgramMerge(dest *BorrowedAccount, source *BorrowedAccount, clock SysvarClock, signers []solana.PublicKey) error {
	if source.Owner() != StakeProgramAddr {
		return InstrErrIncorrectProgramId
	}

	if dest.Key() == source.Key() {
		return InstrErrInvalidArgument
	}

	destState, err := unmarshalStakeState(dest.Data())
	if err != nil {
		return err
	}

	sourceState, err := unmarshalStakeState(source.Data())
	if err != nil {
		return err
	}

	destMergeKind, err := getMergeKind(destState, clock.Epoch)
	if err != nil {
		return err
	}

	err = destMergeKind.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return err
	}

	sourceMergeKind, err := getMergeKind(sourceState, clock.Epoch)
	if err != nil {
		return err
	}

	mergedState, err := mergeStates(destMergeKind, sourceMergeKind, source.Lamports())
	if err != nil {
		klog.Errorf("Merge: %s into %s: %s", source.Key(), dest.Key(), err)
		return err
	}

	if mergedState != nil {
		err = setStakeAccountState(dest, mergedState)
		if err != nil {
			return err
		}
	}

	err = setStakeAccountState(source, &StakeStateV2{Status: StakeStateV2StatusUninitialized})
	if err != nil {
		return err
	}

	lamports := source.Lamports()
	err = source.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}

	return dest.CheckedAddLamports(lamports)
}

// StakeProgramCreditRewards credits epoch rewards to a delegated position
// outside of any transaction. Both the balance and the delegated stake grow.
func StakeProgramCreditRewards(acct *accounts.Account, lamports uint64) error {
	if acct.Owner != StakeProgramAddr {
		return InstrErrInvalidAccountOwner
	}

	state, err := unmarshalStakeState(acct.Data)
	if err != nil {
		return err
	}

	if state.Status != StakeStateV2StatusStake {
		return InstrErrInvalidAccountData
	}

	newStake, err := safemath.CheckedAddU64(state.Stake.Stake.Delegation.Stake, lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	newLamports, err := safemath.CheckedAddU64(acct.Lamports, lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}

	state.Stake.Stake.Delegation.Stake = newStake
	data := make([]byte, len(acct.Data))
	err = marshalStakeStateInto(state, data)
	if err != nil {
		return err
	}

	acct.Data = data
	acct.Lamports = newLamports
	return nil
}
