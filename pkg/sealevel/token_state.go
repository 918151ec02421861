package sealevel

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	TokenMintSize    = 82
	TokenAccountSize = 165
)

const (
	TokenAccountStateUninitialized = iota
	TokenAccountStateInitialized
	TokenAccountStateFrozen
)

// TokenMint is the SPL token mint layout. Optional keys are encoded as a
// u32 tag followed by a fixed 32 byte body.
type TokenMint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

// TokenAccount is the SPL token account layout.
type TokenAccount struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           uint8
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

func readOptionalPubkey(decoder *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}

	pkBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, err
	}

	switch tag {
	case 0:
		return nil, nil
	case 1:
		pk := solana.PublicKeyFromBytes(pkBytes)
		return &pk, nil
	}
	return nil, InstrErrInvalidAccountData
}

func writeOptionalPubkey(encoder *bin.Encoder, pk *solana.PublicKey) error {
	var body solana.PublicKey
	var tag uint32
	if pk != nil {
		tag = 1
		body = *pk
	}

	err := encoder.WriteUint32(tag, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(body[:], false)
}

func (mint *TokenMint) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error

	mint.MintAuthority, err = readOptionalPubkey(decoder)
	if err != nil {
		return err
	}

	mint.Supply, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	mint.Decimals, err = decoder.ReadUint8()
	if err != nil {
		return err
	}

	mint.IsInitialized, err = decoder.ReadBool()
	if err != nil {
		return err
	}

	mint.FreezeAuthority, err = readOptionalPubkey(decoder)
	return err
}

func (mint *TokenMint) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := writeOptionalPubkey(encoder, mint.MintAuthority)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(mint.Supply, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint8(mint.Decimals)
	if err != nil {
		return err
	}

	err = encoder.WriteBool(mint.IsInitialized)
	if err != nil {
		return err
	}

	return writeOptionalPubkey(encoder, mint.FreezeAuthority)
}

func (acct *TokenAccount) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	mint, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(acct.Mint[:], mint)

	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(acct.Owner[:], owner)

	acct.Amount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	acct.Delegate, err = readOptionalPubkey(decoder)
	if err != nil {
		return err
	}

	acct.State, err = decoder.ReadUint8()
	if err != nil {
		return err
	}
	if acct.State > TokenAccountStateFrozen {
		return InstrErrInvalidAccountData
	}

	nativeTag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	nativeReserve, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	if nativeTag == 1 {
		acct.IsNative = &nativeReserve
	}

	acct.DelegatedAmount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	acct.CloseAuthority, err = readOptionalPubkey(decoder)
	return err
}

func (acct *TokenAccount) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(acct.Mint[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(acct.Owner[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(acct.Amount, bin.LE)
	if err != nil {
		return err
	}

	err = writeOptionalPubkey(encoder, acct.Delegate)
	if err != nil {
		return err
	}

	err = encoder.WriteUint8(acct.State)
	if err != nil {
		return err
	}

	var nativeTag uint32
	var nativeReserve uint64
	if acct.IsNative != nil {
		nativeTag = 1
		nativeReserve = *acct.IsNative
	}
	err = encoder.WriteUint32(nativeTag, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(nativeReserve, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(acct.DelegatedAmount, bin.LE)
	if err != nil {
		return err
	}

	return writeOptionalPubkey(encoder, acct.CloseAuthority)
}

func UnmarshalTokenMint(data []byte) (*TokenMint, error) {
	if len(data) != TokenMintSize {
		return nil, InstrErrInvalidAccountData
	}

	mint := new(TokenMint)
	err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return mint, nil
}

func UnmarshalTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, InstrErrInvalidAccountData
	}

	acct := new(TokenAccount)
	err := acct.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return acct, nil
}

func (mint *TokenMint) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	err := mint.MarshalWithEncoder(bin.NewBinEncoder(buf))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (acct *TokenAccount) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	err := acct.MarshalWithEncoder(bin.NewBinEncoder(buf))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setTokenMintState(acct *BorrowedAccount, mint *TokenMint) error {
	data, err := mint.Marshal()
	if err != nil {
		return err
	}
	return acct.SetData(data)
}

func setTokenAccountState(acct *BorrowedAccount, tokenAcct *TokenAccount) error {
	data, err := tokenAcct.Marshal()
	if err != nil {
		return err
	}
	return acct.SetData(data)
}
