package lstpool

import (
	"github.com/Overclock-Validator/lstpool/pkg/safemath"
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PoolParams identifies a new pool and the accounts it is bound to.
type PoolParams struct {
	Addresses *Addresses
	Validator solana.PublicKey
}

// InitializePool builds the ledger record for a new pool. target must not
// hold data or lamports yet.
func InitializePool(target *sealevel.BorrowedAccount, params PoolParams) (*Pool, error) {
	if len(target.Data()) != 0 || target.Lamports() != 0 {
		return nil, errors.Wrapf(ErrAlreadyInitialized, "pool account %s", target.Key())
	}

	addrs := params.Addresses
	return &Pool{
		Mint:          addrs.Mint,
		Authority:     addrs.Creator,
		Validator:     params.Validator,
		Stake:         addrs.Stake,
		Reserve:       addrs.Reserve,
		Seed:          addrs.Seed,
		PoolBump:      addrs.PoolBump,
		MintBump:      addrs.MintBump,
		StakeBump:     addrs.StakeBump,
		ReserveBump:   addrs.ReserveBump,
		IsInitialized: true,
	}, nil
}

// LoadPool reads the pool record held by acct. The account must be owned by
// programID and its address must derive from the stored seeds.
func LoadPool(acct *sealevel.BorrowedAccount, programID solana.PublicKey) (*Pool, error) {
	if len(acct.Data()) == 0 {
		return nil, errors.Wrapf(ErrUninitialized, "pool account %s is empty", acct.Key())
	}

	if acct.Owner() != programID {
		return nil, errors.Wrapf(sealevel.InstrErrInvalidAccountOwner, "pool account %s owned by %s", acct.Key(), acct.Owner())
	}

	pool, err := UnmarshalPool(acct.Data())
	if err != nil {
		return nil, err
	}

	if !pool.IsInitialized {
		return nil, errors.Wrapf(ErrUninitialized, "pool account %s", acct.Key())
	}

	err = VerifyAddress(acct.Key(), PoolSeeds(pool.Authority, pool.Seed), pool.PoolBump, programID)
	if err != nil {
		return nil, err
	}

	return pool, nil
}

func StorePool(acct *sealevel.BorrowedAccount, pool *Pool) error {
	data, err := pool.Marshal()
	if err != nil {
		return err
	}
	return acct.SetData(data)
}

// RecordDeposit accounts for shares minted against a deposit.
func (pool *Pool) RecordDeposit(minted uint64, deposited uint64) error {
	supply, err := safemath.CheckedAddU64(pool.LstSupply, minted)
	if err != nil {
		return ErrArithmeticOverflow
	}
	pending, err := safemath.CheckedAddU64(pool.PendingDeposits, deposited)
	if err != nil {
		return ErrArithmeticOverflow
	}

	pool.LstSupply = supply
	pool.PendingDeposits = pending
	klog.V(2).Infof("ledger: minted %d shares for %d lamports, supply %d, pending %d", minted, deposited, supply, pending)
	return nil
}

// RecordWithdrawal accounts for burned shares. Burning more than the
// recorded supply means the ledger and the mint disagree.
func (pool *Pool) RecordWithdrawal(burned uint64) error {
	supply, err := safemath.CheckedSubU64(pool.LstSupply, burned)
	if err != nil {
		return errors.Wrapf(ErrLedgerCorrupted, "burning %d shares from a supply of %d", burned, pool.LstSupply)
	}

	pool.LstSupply = supply
	klog.V(2).Infof("ledger: burned %d shares, supply %d", burned, supply)
	return nil
}

func (pool *Pool) RecordMergeSettled(settled uint64) {
	pool.PendingDeposits = safemath.SaturatingSubU64(pool.PendingDeposits, settled)
	klog.V(2).Infof("ledger: settled %d lamports, pending %d", settled, pool.PendingDeposits)
}
