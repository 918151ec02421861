package sealevel

import (
	"bytes"
	"fmt"
	"math"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const SysvarRentAddrStr = "SysvarRent111111111111111111111111111111111"

var SysvarRentAddr = solana.MustPublicKeyFromBase58(SysvarRentAddrStr)

const SysvarRentStructLen = 17

// AccountStorageOverhead is the per-account metadata size charged for rent
// on top of the account's data length.
const AccountStorageOverhead = 128

const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50
)

type SysvarRent struct {
	LamportsPerUint8Year uint64
	ExemptionThreshold   float64
	BurnPercent          byte
}

func DefaultRent() SysvarRent {
	return SysvarRent{LamportsPerUint8Year: DefaultLamportsPerByteYear, ExemptionThreshold: DefaultExemptionThreshold, BurnPercent: DefaultBurnPercent}
}

func (sr *SysvarRent) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	lamportsPerUint8Year, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LamportsPerUint8Year when decoding SysvarRent: %w", err)
	}
	sr.LamportsPerUint8Year = lamportsPerUint8Year

	exemptionThreshold, err := decoder.ReadFloat64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read ExemptionThreshold when decoding SysvarRent: %w", err)
	}
	sr.ExemptionThreshold = exemptionThreshold

	burnPercent, err := decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read BurnPercent when decoding SysvarRent: %w", err)
	}
	sr.BurnPercent = burnPercent

	return
}

func (sr *SysvarRent) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(sr.LamportsPerUint8Year, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteFloat64(sr.ExemptionThreshold, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteByte(sr.BurnPercent)
}

// MinimumBalance returns the lamports an account of dataLen bytes must hold
// to be exempt from rent.
func (sr *SysvarRent) MinimumBalance(dataLen uint64) uint64 {
	bytesCharged := dataLen + AccountStorageOverhead
	return uint64(math.Floor(float64(bytesCharged*sr.LamportsPerUint8Year) * sr.ExemptionThreshold))
}

func (sr *SysvarRent) IsExempt(balance uint64, dataLen uint64) bool {
	return balance >= sr.MinimumBalance(dataLen)
}

func ReadRentSysvar(accts accounts.Accounts) (SysvarRent, error) {
	var rent SysvarRent

	rentAcct, err := accts.GetAccount(SysvarRentAddr)
	if err != nil {
		return rent, fmt.Errorf("failed to read rent sysvar account: %w", err)
	}
	if len(rentAcct.Data) < SysvarRentStructLen {
		return rent, fmt.Errorf("rent sysvar account holds %d bytes: %w", len(rentAcct.Data), InstrErrUnsupportedSysvar)
	}

	dec := bin.NewBinDecoder(rentAcct.Data)
	err = rent.UnmarshalWithDecoder(dec)
	return rent, err
}

func WriteRentSysvar(accts accounts.Accounts, rent *SysvarRent) error {
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)

	err := rent.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	return writeSysvarAccount(accts, SysvarRentAddr, writer.Bytes())
}
