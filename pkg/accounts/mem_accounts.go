package accounts

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

type MemAccounts struct {
	mu  sync.RWMutex
	Map map[solana.PublicKey]*Account
}

func NewMemAccounts() *MemAccounts {
	return &MemAccounts{
		Map: make(map[solana.PublicKey]*Account),
	}
}

func (m *MemAccounts) GetAccount(pubkey solana.PublicKey) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acct, exists := m.Map[pubkey]
	if !exists {
		return NewEmptyAccount(pubkey), nil
	}
	return acct.Clone(), nil
}

func (m *MemAccounts) SetAccount(pubkey solana.PublicKey, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLocked(pubkey, acc)
	return nil
}

func (m *MemAccounts) SetAccounts(accts []*Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, acct := range accts {
		m.setLocked(acct.Key, acct)
	}
	return nil
}

func (m *MemAccounts) setLocked(pubkey solana.PublicKey, acc *Account) {
	if acc.IsEmpty() {
		delete(m.Map, pubkey)
		return
	}
	stored := acc.Clone()
	stored.Key = pubkey
	m.Map[pubkey] = stored
}
