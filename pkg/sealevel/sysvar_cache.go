package sealevel

import (
	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/gagliardetto/solana-go"
)

// SysvarOwnerAddr owns every sysvar account.
var SysvarOwnerAddr = solana.MustPublicKeyFromBase58("Sysvar1111111111111111111111111111111111111")

// SysvarCache holds the sysvars as they were when a transaction started.
// Instructions read sysvars from here rather than from account inputs.
type SysvarCache struct {
	clock SysvarClock
	rent  SysvarRent
}

func LoadSysvarCache(accts accounts.Accounts) (*SysvarCache, error) {
	clock, err := ReadClockSysvar(accts)
	if err != nil {
		return nil, err
	}

	rent, err := ReadRentSysvar(accts)
	if err != nil {
		return nil, err
	}

	return &SysvarCache{clock: clock, rent: rent}, nil
}

func (sysvarCache *SysvarCache) Clock() SysvarClock {
	return sysvarCache.clock
}

func (sysvarCache *SysvarCache) Rent() SysvarRent {
	return sysvarCache.rent
}

func writeSysvarAccount(accts accounts.Accounts, addr solana.PublicKey, data []byte) error {
	rent := DefaultRent()
	acct := &accounts.Account{Key: addr, Lamports: rent.MinimumBalance(uint64(len(data))), Data: data, Owner: SysvarOwnerAddr}
	return accts.SetAccount(addr, acct)
}
