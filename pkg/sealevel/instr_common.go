package sealevel

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
)

// encodeInstrData prefixes payload with the u32 instruction discriminator used
// by the system and stake programs.
func encodeInstrData(instrType uint32, payload bin.BinaryMarshaler) []byte {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	_ = encoder.WriteUint32(instrType, bin.LE)
	if payload != nil {
		_ = payload.MarshalWithEncoder(encoder)
	}
	return buf.Bytes()
}

// encodeTokenInstrData prefixes payload with the single byte discriminator of
// the token programs.
func encodeTokenInstrData(instrType uint8, payload bin.BinaryMarshaler) []byte {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	_ = encoder.WriteUint8(instrType)
	if payload != nil {
		_ = payload.MarshalWithEncoder(encoder)
	}
	return buf.Bytes()
}
