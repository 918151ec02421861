package accounts

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/pebble"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var acctKeyPrefix = []byte("acct/")

type PersistentAccountsDb struct {
	db *pebble.DB
}

func OpenAccountsDb(dir string) (*PersistentAccountsDb, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts db at %s: %w", dir, err)
	}

	return &PersistentAccountsDb{db: db}, nil
}

func (m *PersistentAccountsDb) Close() error {
	return m.db.Close()
}

func acctKey(pubkey solana.PublicKey) []byte {
	key := make([]byte, 0, len(acctKeyPrefix)+solana.PublicKeyLength)
	key = append(key, acctKeyPrefix...)
	return append(key, pubkey[:]...)
}

func (m *PersistentAccountsDb) GetAccount(pubkey solana.PublicKey) (*Account, error) {
	acctBytes, closer, err := m.db.Get(acctKey(pubkey))
	if err == pebble.ErrNotFound {
		return NewEmptyAccount(pubkey), nil
	} else if err != nil {
		return nil, fmt.Errorf("error whilst retrieving account %s: %w", pubkey, err)
	}
	defer closer.Close()

	decoder := bin.NewBinDecoder(acctBytes)
	acct := new(Account)

	err = acct.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize account %s from pebble accountsdb: %w", pubkey, err)
	}
	acct.Key = pubkey

	return acct, nil
}

func (m *PersistentAccountsDb) SetAccount(pubkey solana.PublicKey, acct *Account) error {
	stored := acct.Clone()
	stored.Key = pubkey
	return m.SetAccounts([]*Account{stored})
}

// SetAccounts writes every account in a single batch, so either all of the
// writes become durable or none do.
func (m *PersistentAccountsDb) SetAccounts(accts []*Account) error {
	batch := m.db.NewBatch()
	defer batch.Close()

	for _, acct := range accts {
		if acct.IsEmpty() {
			err := batch.Delete(acctKey(acct.Key), nil)
			if err != nil {
				return fmt.Errorf("error deleting account %s: %w", acct.Key, err)
			}
			continue
		}

		writer := new(bytes.Buffer)
		encoder := bin.NewBinEncoder(writer)

		err := acct.MarshalWithEncoder(encoder)
		if err != nil {
			return fmt.Errorf("failed to serialize account %s for storage in pebble accountsdb: %w", acct.Key, err)
		}

		err = batch.Set(acctKey(acct.Key), writer.Bytes(), nil)
		if err != nil {
			return fmt.Errorf("error setting account for %s: %w", acct.Key, err)
		}
	}

	return batch.Commit(pebble.Sync)
}
