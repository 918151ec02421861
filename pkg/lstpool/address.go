package lstpool

import (
	"encoding/binary"

	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	pda "github.com/Overclock-Validator/lstpool/pkg/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const (
	PoolSeedPrefix    = "lst_pool"
	MintSeedPrefix    = "lst_mint"
	StakeSeedPrefix   = "stake"
	ReserveSeedPrefix = "reserve_stake"
	TicketSeedPrefix  = "withdraw"
)

const addressCacheSize = 4096

var addressFinder = mustNewAddressFinder(addressCacheSize)

func mustNewAddressFinder(size int) *pda.AddressFinder {
	finder, err := pda.NewAddressFinder(size)
	if err != nil {
		panic(err)
	}
	return finder
}

func u64Seed(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func PoolSeeds(creator solana.PublicKey, seed uint64) [][]byte {
	return [][]byte{[]byte(PoolSeedPrefix), creator[:], u64Seed(seed)}
}

func MintSeeds(pool solana.PublicKey) [][]byte {
	return [][]byte{[]byte(MintSeedPrefix), pool[:]}
}

func StakeSeeds(pool solana.PublicKey) [][]byte {
	return [][]byte{[]byte(StakeSeedPrefix), pool[:]}
}

func ReserveSeeds(pool solana.PublicKey) [][]byte {
	return [][]byte{[]byte(ReserveSeedPrefix), pool[:]}
}

func TicketSeeds(pool solana.PublicKey, user solana.PublicKey, nonce uint64) [][]byte {
	return [][]byte{[]byte(TicketSeedPrefix), pool[:], user[:], u64Seed(nonce)}
}

// WithBump appends the bump seed, producing the full signer seed set.
func WithBump(seeds [][]byte, bump uint8) [][]byte {
	return append(append(make([][]byte, 0, len(seeds)+1), seeds...), []byte{bump})
}

// VerifyAddress checks that expected is the address derived from seeds and
// bump under programID.
func VerifyAddress(expected solana.PublicKey, seeds [][]byte, bump uint8, programID solana.PublicKey) error {
	derived, err := pda.CreateProgramAddress(WithBump(seeds, bump), programID)
	if err != nil || derived != expected {
		return errors.Wrapf(ErrAddressMismatch, "%s does not derive from %q with bump %d", expected, seeds[0], bump)
	}
	return nil
}

// Addresses is the set of accounts that make up one pool.
type Addresses struct {
	ProgramID solana.PublicKey
	Creator   solana.PublicKey
	Seed      uint64

	Pool    solana.PublicKey
	Mint    solana.PublicKey
	Stake   solana.PublicKey
	Reserve solana.PublicKey

	PoolBump    uint8
	MintBump    uint8
	StakeBump   uint8
	ReserveBump uint8
}

// DeriveAddresses finds the canonical pool addresses for creator and seed.
func DeriveAddresses(programID solana.PublicKey, creator solana.PublicKey, seed uint64) (*Addresses, error) {
	addrs := &Addresses{ProgramID: programID, Creator: creator, Seed: seed}

	var err error
	addrs.Pool, addrs.PoolBump, err = addressFinder.Find(PoolSeeds(creator, seed), programID)
	if err != nil {
		return nil, errors.Wrap(err, "deriving pool address")
	}
	addrs.Mint, addrs.MintBump, err = addressFinder.Find(MintSeeds(addrs.Pool), programID)
	if err != nil {
		return nil, errors.Wrap(err, "deriving mint address")
	}
	addrs.Stake, addrs.StakeBump, err = addressFinder.Find(StakeSeeds(addrs.Pool), programID)
	if err != nil {
		return nil, errors.Wrap(err, "deriving stake address")
	}
	addrs.Reserve, addrs.ReserveBump, err = addressFinder.Find(ReserveSeeds(addrs.Pool), programID)
	if err != nil {
		return nil, errors.Wrap(err, "deriving reserve address")
	}

	return addrs, nil
}

// AddressesFromPool rebuilds the address set recorded in a pool account.
func AddressesFromPool(programID solana.PublicKey, poolAddr solana.PublicKey, pool *Pool) *Addresses {
	return &Addresses{
		ProgramID:   programID,
		Creator:     pool.Authority,
		Seed:        pool.Seed,
		Pool:        poolAddr,
		Mint:        pool.Mint,
		Stake:       pool.Stake,
		Reserve:     pool.Reserve,
		PoolBump:    pool.PoolBump,
		MintBump:    pool.MintBump,
		StakeBump:   pool.StakeBump,
		ReserveBump: pool.ReserveBump,
	}
}

// TicketAddress finds the withdrawal ticket of user under pool for nonce.
func TicketAddress(programID solana.PublicKey, pool solana.PublicKey, user solana.PublicKey, nonce uint64) (solana.PublicKey, uint8, error) {
	return addressFinder.Find(TicketSeeds(pool, user, nonce), programID)
}

// LstAccount is the associated token account holding owner's pool shares.
func (addrs *Addresses) LstAccount(owner solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := sealevel.AssociatedTokenAddress(owner, addrs.Mint)
	return ata, err
}
