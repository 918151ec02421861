package lstpool

import (
	"bytes"

	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const (
	AccountTypePool   = 1
	PoolSchemaVersion = 1
)

// PoolAccountSize is the encoded size of a version 1 pool record.
const PoolAccountSize = 191

// Pool is the ledger record of one pool. Fields are encoded little-endian
// in declaration order, after a type byte and a schema version byte.
type Pool struct {
	Mint      solana.PublicKey
	Authority solana.PublicKey
	Validator solana.PublicKey
	Stake     solana.PublicKey
	Reserve   solana.PublicKey
	Seed      uint64

	PoolBump    uint8
	MintBump    uint8
	StakeBump   uint8
	ReserveBump uint8

	LstSupply       uint64
	PendingDeposits uint64
	IsInitialized   bool
}

func readPubkey(decoder *bin.Decoder, pk *solana.PublicKey) error {
	b, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(pk[:], b)
	return nil
}

func (pool *Pool) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	accountType, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	if accountType != AccountTypePool {
		return errors.Errorf("unknown account type %d", accountType)
	}

	version, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	if version != PoolSchemaVersion {
		return errors.Errorf("unsupported pool schema version %d", version)
	}

	for _, pk := range []*solana.PublicKey{&pool.Mint, &pool.Authority, &pool.Validator, &pool.Stake, &pool.Reserve} {
		err = readPubkey(decoder, pk)
		if err != nil {
			return err
		}
	}

	pool.Seed, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	for _, bump := range []*uint8{&pool.PoolBump, &pool.MintBump, &pool.StakeBump, &pool.ReserveBump} {
		*bump, err = decoder.ReadUint8()
		if err != nil {
			return err
		}
	}

	pool.LstSupply, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	pool.PendingDeposits, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	pool.IsInitialized, err = decoder.ReadBool()
	return err
}

func (pool *Pool) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint8(AccountTypePool)
	if err != nil {
		return err
	}

	err = encoder.WriteUint8(PoolSchemaVersion)
	if err != nil {
		return err
	}

	for _, pk := range []solana.PublicKey{pool.Mint, pool.Authority, pool.Validator, pool.Stake, pool.Reserve} {
		err = encoder.WriteBytes(pk[:], false)
		if err != nil {
			return err
		}
	}

	err = encoder.WriteUint64(pool.Seed, bin.LE)
	if err != nil {
		return err
	}

	for _, bump := range []uint8{pool.PoolBump, pool.MintBump, pool.StakeBump, pool.ReserveBump} {
		err = encoder.WriteUint8(bump)
		if err != nil {
			return err
		}
	}

	err = encoder.WriteUint64(pool.LstSupply, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(pool.PendingDeposits, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteBool(pool.IsInitialized)
}

// UnmarshalPool decodes a pool record. Short buffers, unknown account types
// and unknown schema versions are rejected as invalid account data.
func UnmarshalPool(data []byte) (*Pool, error) {
	if len(data) < PoolAccountSize {
		return nil, errors.Wrapf(sealevel.InstrErrInvalidAccountData, "pool account holds %d bytes, want %d", len(data), PoolAccountSize)
	}

	pool := new(Pool)
	err := pool.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, errors.Wrapf(sealevel.InstrErrInvalidAccountData, "decoding pool: %s", err)
	}
	return pool, nil
}

func (pool *Pool) Marshal() ([]byte, error) {
	buffer := new(bytes.Buffer)
	err := pool.MarshalWithEncoder(bin.NewBinEncoder(buffer))
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
