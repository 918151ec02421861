package lstpool

import (
	"bytes"

	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const (
	InstrTypeInitialize = iota
	InstrTypeDeposit
	InstrTypeInitializeReserve
	InstrTypeMergeReserve
	InstrTypeWithdraw
	InstrTypeWithdrawComplete
)

var instrNames = map[uint8]string{
	InstrTypeInitialize:        "initialize",
	InstrTypeDeposit:           "deposit",
	InstrTypeInitializeReserve: "initialize_reserve",
	InstrTypeMergeReserve:      "merge_reserve",
	InstrTypeWithdraw:          "withdraw",
	InstrTypeWithdrawComplete:  "withdraw_complete",
}

func InstrName(instrType uint8) string {
	name, ok := instrNames[instrType]
	if !ok {
		return "unknown"
	}
	return name
}

// payload sizes, excluding the discriminator byte
const (
	initializePayloadLen       = 12
	depositPayloadLen          = 8
	withdrawPayloadLen         = 16
	withdrawCompletePayloadLen = 8
)

type InstrInitialize struct {
	Seed        uint64
	PoolBump    uint8
	MintBump    uint8
	StakeBump   uint8
	ReserveBump uint8
}

type InstrDeposit struct {
	Amount uint64
}

type InstrWithdraw struct {
	Amount uint64
	Nonce  uint64
}

type InstrWithdrawComplete struct {
	Nonce uint64
}

func (instr *InstrInitialize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Seed, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	for _, bump := range []*uint8{&instr.PoolBump, &instr.MintBump, &instr.StakeBump, &instr.ReserveBump} {
		*bump, err = decoder.ReadUint8()
		if err != nil {
			return err
		}
	}
	return nil
}

func (instr *InstrInitialize) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(instr.Seed, bin.LE)
	if err != nil {
		return err
	}

	for _, bump := range []uint8{instr.PoolBump, instr.MintBump, instr.StakeBump, instr.ReserveBump} {
		err = encoder.WriteUint8(bump)
		if err != nil {
			return err
		}
	}
	return nil
}

func (instr *InstrDeposit) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Amount, err = decoder.ReadUint64(bin.LE)
	return
}

func (instr *InstrDeposit) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(instr.Amount, bin.LE)
}

func (instr *InstrWithdraw) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Amount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	instr.Nonce, err = decoder.ReadUint64(bin.LE)
	return err
}

func (instr *InstrWithdraw) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(instr.Amount, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteUint64(instr.Nonce, bin.LE)
}

func (instr *InstrWithdrawComplete) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Nonce, err = decoder.ReadUint64(bin.LE)
	return
}

func (instr *InstrWithdrawComplete) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(instr.Nonce, bin.LE)
}

// decodePayload decodes the bytes after the discriminator into payload,
// which must consume exactly expectedLen bytes.
func decodePayload(data []byte, expectedLen int, payload bin.BinaryUnmarshaler) error {
	if len(data) != expectedLen {
		return errors.Wrapf(sealevel.InstrErrInvalidInstructionData, "payload is %d bytes, want %d", len(data), expectedLen)
	}
	err := payload.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return errors.Wrapf(sealevel.InstrErrInvalidInstructionData, "decoding payload: %s", err)
	}
	return nil
}

func encodeInstrData(instrType uint8, payload bin.BinaryMarshaler) []byte {
	buffer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buffer)

	err := encoder.WriteUint8(instrType)
	if err != nil {
		panic("unable to encode instruction type")
	}

	if payload != nil {
		err = payload.MarshalWithEncoder(encoder)
		if err != nil {
			panic("unable to encode instruction payload")
		}
	}

	return buffer.Bytes()
}

// NewInitializeInstruction creates the pool described by addrs, delegated to
// validator. The creator pays for every account and receives the bootstrap
// shares.
func NewInitializeInstruction(addrs *Addresses, validator solana.PublicKey) (sealevel.Instruction, error) {
	creatorLst, err := addrs.LstAccount(addrs.Creator)
	if err != nil {
		return sealevel.Instruction{}, err
	}

	payload := InstrInitialize{Seed: addrs.Seed, PoolBump: addrs.PoolBump, MintBump: addrs.MintBump, StakeBump: addrs.StakeBump, ReserveBump: addrs.ReserveBump}
	accountMetas := []sealevel.AccountMeta{{Pubkey: addrs.Creator, IsSigner: true, IsWritable: true},
		{Pubkey: creatorLst, IsWritable: true},
		{Pubkey: addrs.Pool, IsWritable: true},
		{Pubkey: addrs.Mint, IsWritable: true},
		{Pubkey: addrs.Stake, IsWritable: true},
		{Pubkey: addrs.Reserve, IsWritable: true},
		{Pubkey: validator}}
	return sealevel.Instruction{Accounts: accountMetas, Data: encodeInstrData(InstrTypeInitialize, &payload), ProgramId: addrs.ProgramID}, nil
}

func NewDepositInstruction(addrs *Addresses, depositor solana.PublicKey, amount uint64) (sealevel.Instruction, error) {
	depositorLst, err := addrs.LstAccount(depositor)
	if err != nil {
		return sealevel.Instruction{}, err
	}

	accountMetas := []sealevel.AccountMeta{{Pubkey: depositor, IsSigner: true, IsWritable: true},
		{Pubkey: addrs.Pool, IsWritable: true},
		{Pubkey: addrs.Stake},
		{Pubkey: addrs.Reserve, IsWritable: true},
		{Pubkey: addrs.Mint, IsWritable: true},
		{Pubkey: depositorLst, IsWritable: true}}
	return sealevel.Instruction{Accounts: accountMetas, Data: encodeInstrData(InstrTypeDeposit, &InstrDeposit{Amount: amount}), ProgramId: addrs.ProgramID}, nil
}

func NewInitializeReserveInstruction(addrs *Addresses, validator solana.PublicKey) sealevel.Instruction {
	accountMetas := []sealevel.AccountMeta{{Pubkey: addrs.Pool},
		{Pubkey: addrs.Stake},
		{Pubkey: addrs.Reserve, IsWritable: true},
		{Pubkey: validator}}
	return sealevel.Instruction{Accounts: accountMetas, Data: encodeInstrData(InstrTypeInitializeReserve, nil), ProgramId: addrs.ProgramID}
}

func NewMergeReserveInstruction(addrs *Addresses) sealevel.Instruction {
	accountMetas := []sealevel.AccountMeta{{Pubkey: addrs.Pool, IsWritable: true},
		{Pubkey: addrs.Stake, IsWritable: true},
		{Pubkey: addrs.Reserve, IsWritable: true}}
	return sealevel.Instruction{Accounts: accountMetas, Data: encodeInstrData(InstrTypeMergeReserve, nil), ProgramId: addrs.ProgramID}
}

// NewWithdrawInstruction burns amount shares of user and opens the ticket
// for nonce.
func NewWithdrawInstruction(addrs *Addresses, user solana.PublicKey, amount uint64, nonce uint64) (sealevel.Instruction, error) {
	userLst, err := addrs.LstAccount(user)
	if err != nil {
		return sealevel.Instruction{}, err
	}
	ticket, _, err := TicketAddress(addrs.ProgramID, addrs.Pool, user, nonce)
	if err != nil {
		return sealevel.Instruction{}, err
	}

	accountMetas := []sealevel.AccountMeta{{Pubkey: user, IsSigner: true, IsWritable: true},
		{Pubkey: addrs.Pool, IsWritable: true},
		{Pubkey: addrs.Stake, IsWritable: true},
		{Pubkey: addrs.Reserve},
		{Pubkey: ticket, IsWritable: true},
		{Pubkey: addrs.Mint, IsWritable: true},
		{Pubkey: userLst, IsWritable: true}}
	payload := InstrWithdraw{Amount: amount, Nonce: nonce}
	return sealevel.Instruction{Accounts: accountMetas, Data: encodeInstrData(InstrTypeWithdraw, &payload), ProgramId: addrs.ProgramID}, nil
}

func NewWithdrawCompleteInstruction(addrs *Addresses, user solana.PublicKey, nonce uint64) (sealevel.Instruction, error) {
	ticket, _, err := TicketAddress(addrs.ProgramID, addrs.Pool, user, nonce)
	if err != nil {
		return sealevel.Instruction{}, err
	}

	accountMetas := []sealevel.AccountMeta{{Pubkey: user, IsSigner: true, IsWritable: true},
		{Pubkey: addrs.Pool},
		{Pubkey: ticket, IsWritable: true}}
	return sealevel.Instruction{Accounts: accountMetas, Data: encodeInstrData(InstrTypeWithdrawComplete, &InstrWithdrawComplete{Nonce: nonce}), ProgramId: addrs.ProgramID}, nil
}
