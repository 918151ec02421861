package sealevel

import (
	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/gagliardetto/solana-go"
)

// TransactionAccounts is the working copy of every account a transaction
// references. Programs mutate these copies; the executor writes back the
// touched ones only after every instruction has succeeded.
type TransactionAccounts struct {
	Accounts []*accounts.Account
	Touched  []bool
}

func NewTransactionAccounts(accts []accounts.Account) *TransactionAccounts {
	txAccounts := new(TransactionAccounts)
	txAccounts.Accounts = make([]*accounts.Account, 0, len(accts))

	for idx := range accts {
		txAccounts.Accounts = append(txAccounts.Accounts, accts[idx].Clone())
	}
	txAccounts.Touched = make([]bool, len(accts))

	return txAccounts
}

func (txAccounts *TransactionAccounts) GetAccount(idx uint64) (*accounts.Account, error) {
	if idx >= uint64(len(txAccounts.Accounts)) {
		return nil, InstrErrMissingAccount
	}
	return txAccounts.Accounts[idx], nil
}

func (txAccounts *TransactionAccounts) Touch(idx uint64) error {
	if idx >= uint64(len(txAccounts.Accounts)) {
		return InstrErrNotEnoughAccountKeys
	}
	txAccounts.Touched[idx] = true
	return nil
}

func (txAccounts *TransactionAccounts) IndexOf(pubkey solana.PublicKey) (uint64, bool) {
	for idx, acct := range txAccounts.Accounts {
		if acct.Key == pubkey {
			return uint64(idx), true
		}
	}
	return 0, false
}

func (txAccounts *TransactionAccounts) TouchedAccounts() []*accounts.Account {
	var touched []*accounts.Account
	for idx, acct := range txAccounts.Accounts {
		if txAccounts.Touched[idx] {
			touched = append(touched, acct)
		}
	}
	return touched
}
