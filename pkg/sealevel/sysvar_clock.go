package sealevel

import (
	"bytes"
	"fmt"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const SysvarClockAddrStr = "SysvarC1ock11111111111111111111111111111111"

var SysvarClockAddr = solana.MustPublicKeyFromBase58(SysvarClockAddrStr)

const SysvarClockStructLen = 40

// SlotsPerEpoch is the fixed epoch length of the simulated cluster.
const SlotsPerEpoch = 432_000

type SysvarClock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

func (sc *SysvarClock) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	slot, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Slot when decoding SysvarClock: %w", err)
	}
	sc.Slot = slot

	epochStartTimestamp, err := decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read EpochStartTimestamp when decoding SysvarClock: %w", err)
	}
	sc.EpochStartTimestamp = epochStartTimestamp

	epoch, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Epoch when decoding SysvarClock: %w", err)
	}
	sc.Epoch = epoch

	leaderScheduleEpoch, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LeaderScheduleEpoch when decoding SysvarClock: %w", err)
	}
	sc.LeaderScheduleEpoch = leaderScheduleEpoch

	unixTimestamp, err := decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read UnixTimestamp when decoding SysvarClock: %w", err)
	}
	sc.UnixTimestamp = unixTimestamp
	return
}

func (sc *SysvarClock) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(sc.Slot, bin.LE)
	_ = encoder.WriteInt64(sc.EpochStartTimestamp, bin.LE)
	_ = encoder.WriteUint64(sc.Epoch, bin.LE)
	_ = encoder.WriteUint64(sc.LeaderScheduleEpoch, bin.LE)
	return encoder.WriteInt64(sc.UnixTimestamp, bin.LE)
}

func ReadClockSysvar(accts accounts.Accounts) (SysvarClock, error) {
	var clock SysvarClock

	clockAcct, err := accts.GetAccount(SysvarClockAddr)
	if err != nil {
		return clock, fmt.Errorf("failed to read clock sysvar account: %w", err)
	}
	if len(clockAcct.Data) < SysvarClockStructLen {
		return clock, fmt.Errorf("clock sysvar account holds %d bytes: %w", len(clockAcct.Data), InstrErrUnsupportedSysvar)
	}

	dec := bin.NewBinDecoder(clockAcct.Data)
	err = clock.UnmarshalWithDecoder(dec)
	return clock, err
}

func WriteClockSysvar(accts accounts.Accounts, clock *SysvarClock) error {
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)

	err := clock.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	return writeSysvarAccount(accts, SysvarClockAddr, writer.Bytes())
}
