package solana

import (
	"encoding/binary"
	"errors"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/sha256-simd"
)

const MaxSeeds = 16
const MaxSeedLen = 32
const PublicKeyLength = 32
const PdaMarker = "ProgramDerivedAddress"

var (
	ErrSeedLength          = errors.New("Max seeds (16) exceeded or seed longer than 32 bytes")
	ErrAddressLength       = errors.New("Wrong key length; addresses are 32 bytes long")
	ErrOnCurveInvalidSeeds = errors.New("Invalid seeds - generated address must be off-curve")
	ErrNoViableBump        = errors.New("Unable to find a viable program address bump seed")
)

func CreateProgramAddressBytes(seeds [][]byte, programID []byte) ([]byte, error) {
	if len(seeds) > MaxSeeds {
		return nil, ErrSeedLength
	}

	if len(programID) != PublicKeyLength {
		return nil, ErrAddressLength
	}

	hasher := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return nil, ErrSeedLength
		}
		hasher.Write(seed)
	}

	hasher.Write(programID)
	hasher.Write([]byte(PdaMarker))
	hash := hasher.Sum(nil)

	if IsOnCurve(hash[:]) {
		return nil, ErrOnCurveInvalidSeeds
	}

	return hash[:], nil
}

func CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error) {
	addr, err := CreateProgramAddressBytes(seeds, programID[:])
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(addr), nil
}

// FindProgramAddress searches bump seeds from 255 downwards and returns the
// first off-curve address along with the bump that produced it.
func FindProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return solana.PublicKey{}, 0, ErrSeedLength
	}

	bumpSeed := []byte{0}
	seedsWithBump := append(append(make([][]byte, 0, len(seeds)+1), seeds...), bumpSeed)

	for bump := 255; bump >= 0; bump-- {
		bumpSeed[0] = uint8(bump)
		addr, err := CreateProgramAddress(seedsWithBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if err != ErrOnCurveInvalidSeeds {
			return solana.PublicKey{}, 0, err
		}
	}

	return solana.PublicKey{}, 0, ErrNoViableBump
}

// IsOnCurve checks if 'b' is on the ed25519 curve
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	onCurve := err == nil
	return onCurve
}

type derivedAddress struct {
	addr solana.PublicKey
	bump uint8
}

// AddressFinder memoizes FindProgramAddress results. Bump searches cost up
// to 256 hashes and the same pool addresses are derived on every operation.
type AddressFinder struct {
	cache *lru.Cache[string, derivedAddress]
}

func NewAddressFinder(size int) (*AddressFinder, error) {
	cache, err := lru.New[string, derivedAddress](size)
	if err != nil {
		return nil, err
	}
	return &AddressFinder{cache: cache}, nil
}

func (f *AddressFinder) Find(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	key := cacheKey(seeds, programID)
	if cached, ok := f.cache.Get(key); ok {
		return cached.addr, cached.bump, nil
	}

	addr, bump, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}

	f.cache.Add(key, derivedAddress{addr: addr, bump: bump})
	return addr, bump, nil
}

func (f *AddressFinder) Len() int {
	return f.cache.Len()
}

func cacheKey(seeds [][]byte, programID solana.PublicKey) string {
	buf := make([]byte, 0, PublicKeyLength+len(seeds)*(MaxSeedLen+1))
	buf = append(buf, programID[:]...)
	for _, seed := range seeds {
		buf = binary.AppendUvarint(buf, uint64(len(seed)))
		buf = append(buf, seed...)
	}
	return string(buf)
}
