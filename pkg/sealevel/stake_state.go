package sealevel

import (
	"bytes"
	"math"

	"github.com/Overclock-Validator/lstpool/pkg/safemath"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const StakeStateV2Size = 200

type Authorized struct {
	Staker     solana.PublicKey
	Withdrawer solana.PublicKey
}

type StakeLockup struct {
	UnixTimeStamp uint64
	Epoch         uint64
	Custodian     solana.PublicKey
}

type Meta struct {
	RentExemptReserve uint64
	Authorized        Authorized
	Lockup            StakeLockup
}

type Delegation struct {
	VoterPubkey        solana.PublicKey
	Stake              uint64
	ActivationEpoch    uint64
	DeactivationEpoch  uint64
	WarmupCooldownRate float64
}

type StakeFlags struct {
	Bits byte
}

type Stake struct {
	Delegation      Delegation
	CreditsObserved uint64
}

const (
	StakeStateV2StatusUninitialized = iota
	StakeStateV2StatusInitialized
	StakeStateV2StatusStake
	StakeStateV2StatusRewardsPool
)

type StakeStateV2Initialized struct {
	Meta Meta
}
type StakeStateV2Stake struct {
	Meta       Meta
	Stake      Stake
	StakeFlags StakeFlags
}

type StakeStateV2 struct {
	Status      uint32
	Initialized StakeStateV2Initialized
	Stake       StakeStateV2Stake
}

// Lifecycle status of a stake position, derived from its stored state and
// the current epoch.
const (
	StakeStatusUninitialized = iota
	StakeStatusInitialized
	StakeStatusActivating
	StakeStatusActive
	StakeStatusDeactivating
	StakeStatusInactive
)

var stakeStatusNames = map[int]string{
	StakeStatusUninitialized: "uninitialized",
	StakeStatusInitialized:   "initialized",
	StakeStatusActivating:    "activating",
	StakeStatusActive:        "active",
	StakeStatusDeactivating:  "deactivating",
	StakeStatusInactive:      "inactive",
}

func StakeStatusString(status int) string {
	name, ok := stakeStatusNames[status]
	if !ok {
		return "unknown"
	}
	return name
}

func (authorized *Authorized) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authorized.Staker[:], pk)

	pk, err = decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authorized.Withdrawer[:], pk)
	return nil
}

func (authorized *Authorized) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(authorized.Staker[:], false)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(authorized.Withdrawer[:], false)
}

func (lockup *StakeLockup) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	lockup.UnixTimeStamp, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	lockup.Epoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(lockup.Custodian[:], pk)

	return nil
}

func (lockup *StakeLockup) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(lockup.UnixTimeStamp, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(lockup.Epoch, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteBytes(lockup.Custodian[:], false)
}

func (meta *Meta) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	meta.RentExemptReserve, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	err = meta.Authorized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = meta.Lockup.UnmarshalWithDecoder(decoder)
	return err
}

func (meta *Meta) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(meta.RentExemptReserve, bin.LE)
	if err != nil {
		return err
	}

	err = meta.Authorized.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	return meta.Lockup.MarshalWithEncoder(encoder)
}

func (delegation *Delegation) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	voterPubkey, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(delegation.VoterPubkey[:], voterPubkey)

	delegation.Stake, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.ActivationEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.DeactivationEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.WarmupCooldownRate, err = decoder.ReadFloat64(bin.LE)
	return err
}

func (delegation *Delegation) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(delegation.VoterPubkey[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(delegation.Stake, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(delegation.ActivationEpoch, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(delegation.DeactivationEpoch, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteFloat64(delegation.WarmupCooldownRate, bin.LE)
}

func (delegation *Delegation) IsDeactivated() bool {
	return delegation.DeactivationEpoch != math.MaxUint64
}

func (stakeFlags *StakeFlags) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	stakeFlags.Bits, err = decoder.ReadByte()
	return err
}

func (initialized *StakeStateV2Initialized) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := initialized.Meta.UnmarshalWithDecoder(decoder)
	return err
}

func (stake *Stake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := stake.Delegation.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	stake.CreditsObserved, err = decoder.ReadUint64(bin.LE)
	return err
}

func (stake *Stake) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := stake.Delegation.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	return encoder.WriteUint64(stake.CreditsObserved, bin.LE)
}

func (stake *StakeStateV2Stake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := stake.Meta.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = stake.Stake.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = stake.StakeFlags.UnmarshalWithDecoder(decoder)
	return err
}

func (state *StakeStateV2) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	status, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	state.Status = status

	switch status {
	case StakeStateV2StatusUninitialized:
		{
			// nothing to deserialize
		}

	case StakeStateV2StatusInitialized:
		{
			err = state.Initialized.UnmarshalWithDecoder(decoder)
		}

	case StakeStateV2StatusStake:
		{
			err = state.Stake.UnmarshalWithDecoder(decoder)
		}

	case StakeStateV2StatusRewardsPool:
		{
			// nothing to deserialize
		}

	default:
		{
			err = InstrErrInvalidAccountData
		}
	}

	return err
}

func (state *StakeStateV2) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint32(state.Status, bin.LE)
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusInitialized:
		{
			err = state.Initialized.Meta.MarshalWithEncoder(encoder)
		}

	case StakeStateV2StatusStake:
		{
			err = state.Stake.Meta.MarshalWithEncoder(encoder)
			if err != nil {
				return err
			}

			err = state.Stake.Stake.MarshalWithEncoder(encoder)
			if err != nil {
				return err
			}

			err = encoder.WriteByte(state.Stake.StakeFlags.Bits)
		}
	}

	return err
}

// Meta returns the metadata of an initialized or delegated position.
func (state *StakeStateV2) Meta() (Meta, bool) {
	switch state.Status {
	case StakeStateV2StatusInitialized:
		return state.Initialized.Meta, true
	case StakeStateV2StatusStake:
		return state.Stake.Meta, true
	}
	return Meta{}, false
}

func unmarshalStakeState(data []byte) (*StakeStateV2, error) {
	state := new(StakeStateV2)
	decoder := bin.NewBinDecoder(data)

	err := state.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}

	return state, nil
}

// UnmarshalStakeState decodes the stored state of a stake position.
func UnmarshalStakeState(data []byte) (*StakeStateV2, error) {
	return unmarshalStakeState(data)
}

func marshalStakeStateInto(state *StakeStateV2, data []byte) error {
	buffer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buffer)

	err := state.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	if buffer.Len() > len(data) {
		return InstrErrAccountDataTooSmall
	}

	clear(data)
	copy(data, buffer.Bytes())
	return nil
}

// MarshalStakeState encodes state into a buffer the size of a stake account.
func MarshalStakeState(state *StakeStateV2) ([]byte, error) {
	data := make([]byte, StakeStateV2Size)
	err := marshalStakeStateInto(state, data)
	return data, err
}

func setStakeAccountState(acct *BorrowedAccount, stakeState *StakeStateV2) error {
	data := make([]byte, len(acct.Data()))
	err := marshalStakeStateInto(stakeState, data)
	if err != nil {
		return err
	}

	return acct.SetData(data)
}

// StakeActivationStatus derives the lifecycle status of a position. Warmup
// and cooldown complete at the first epoch boundary.
func StakeActivationStatus(state *StakeStateV2, epoch uint64) int {
	switch state.Status {
	case StakeStateV2StatusInitialized:
		return StakeStatusInitialized
	case StakeStateV2StatusStake:
		return delegationStatus(&state.Stake.Stake.Delegation, epoch)
	}
	return StakeStatusUninitialized
}

func delegationStatus(delegation *Delegation, epoch uint64) int {
	if delegation.ActivationEpoch == delegation.DeactivationEpoch {
		return StakeStatusInactive
	}

	if delegation.IsDeactivated() {
		if epoch > delegation.DeactivationEpoch {
			return StakeStatusInactive
		}
		return StakeStatusDeactivating
	}

	if epoch <= delegation.ActivationEpoch {
		return StakeStatusActivating
	}
	return StakeStatusActive
}

const (
	MergeKindInactive = iota
	MergeKindActivationEpoch
	MergeKindFullyActive
)

type mergeKind struct {
	Kind  int
	Meta  Meta
	Stake *Stake
}

func getMergeKind(state *StakeStateV2, epoch uint64) (*mergeKind, error) {
	switch state.Status {
	case StakeStateV2StatusInitialized:
		return &mergeKind{Kind: MergeKindInactive, Meta: state.Initialized.Meta}, nil

	case StakeStateV2StatusStake:
		{
			stake := state.Stake.Stake
			switch delegationStatus(&stake.Delegation, epoch) {
			case StakeStatusInactive:
				return &mergeKind{Kind: MergeKindInactive, Meta: state.Stake.Meta}, nil
			case StakeStatusActivating:
				return &mergeKind{Kind: MergeKindActivationEpoch, Meta: state.Stake.Meta, Stake: &stake}, nil
			case StakeStatusActive:
				return &mergeKind{Kind: MergeKindFullyActive, Meta: state.Stake.Meta, Stake: &stake}, nil
			default:
				return nil, StakeErrMergeTransientStake
			}
		}
	}

	return nil, InstrErrInvalidAccountData
}

func metasCanMerge(dest Meta, source Meta) error {
	if dest.Authorized == source.Authorized && dest.Lockup == source.Lockup {
		return nil
	}
	return StakeErrMergeMismatch
}

func activeDelegationsCanMerge(dest *Delegation, source *Delegation) error {
	if dest.VoterPubkey != source.VoterPubkey {
		return StakeErrMergeMismatch
	}
	if dest.IsDeactivated() || source.IsDeactivated() {
		return StakeErrMergeMismatch
	}
	return nil
}

// mergeStates folds source into dest and returns the new destination state,
// or nil when the destination state does not change.
func mergeStates(dest *mergeKind, source *mergeKind, sourceLamports uint64) (*StakeStateV2, error) {
	err := metasCanMerge(dest.Meta, source.Meta)
	if err != nil {
		return nil, err
	}

	if dest.Stake != nil && source.Stake != nil {
		err = activeDelegationsCanMerge(&dest.Stake.Delegation, &source.Stake.Delegation)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case dest.Kind == MergeKindInactive && source.Kind == MergeKindInactive:
		return nil, nil

	case dest.Kind == MergeKindInactive && source.Kind == MergeKindActivationEpoch:
		return nil, nil

	case dest.Kind == MergeKindActivationEpoch && source.Kind == MergeKindInactive:
		{
			stake := *dest.Stake
			newStake, err := checkedAddStake(stake.Delegation.Stake, sourceLamports)
			if err != nil {
				return nil, err
			}
			stake.Delegation.Stake = newStake
			return &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: dest.Meta, Stake: stake}}, nil
		}

	case dest.Kind == MergeKindActivationEpoch && source.Kind == MergeKindActivationEpoch:
		{
			stake := *dest.Stake
			sourceStake, err := checkedAddStake(source.Meta.RentExemptReserve, source.Stake.Delegation.Stake)
			if err != nil {
				return nil, err
			}
			newStake, err := checkedAddStake(stake.Delegation.Stake, sourceStake)
			if err != nil {
				return nil, err
			}
			stake.Delegation.Stake = newStake
			return &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: dest.Meta, Stake: stake}}, nil
		}

	case dest.Kind == MergeKindFullyActive && source.Kind == MergeKindFullyActive:
		{
			stake := *dest.Stake
			newStake, err := checkedAddStake(stake.Delegation.Stake, source.Stake.Delegation.Stake)
			if err != nil {
				return nil, err
			}
			stake.Delegation.Stake = newStake
			return &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: dest.Meta, Stake: stake}}, nil
		}
	}

	return nil, StakeErrMergeMismatch
}

func checkedAddStake(a uint64, b uint64) (uint64, error) {
	sum, err := safemath.CheckedAddU64(a, b)
	if err != nil {
		return 0, InstrErrArithmeticOverflow
	}
	return sum, nil
}
