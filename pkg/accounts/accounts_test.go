package accounts

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Accounts {
	db, err := OpenAccountsDb(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Accounts{
		"mem":    NewMemAccounts(),
		"pebble": db,
	}
}

func TestAccounts_MissingAccountIsEmpty(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			pubkey := solana.NewWallet().PublicKey()

			acct, err := store.GetAccount(pubkey)
			require.NoError(t, err)
			assert.Equal(t, pubkey, acct.Key)
			assert.Equal(t, uint64(0), acct.Lamports)
			assert.Equal(t, solana.SystemProgramID, acct.Owner)
			assert.Empty(t, acct.Data)
		})
	}
}

func TestAccounts_RoundTripAndDelete(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			pubkey := solana.NewWallet().PublicKey()
			owner := solana.NewWallet().PublicKey()

			acct := &Account{Key: pubkey, Lamports: 42, Data: []byte{1, 2, 3}, Owner: owner, RentEpoch: 7}
			require.NoError(t, store.SetAccounts([]*Account{acct}))

			// the store must not alias the caller's buffer
			acct.Data[0] = 9

			loaded, err := store.GetAccount(pubkey)
			require.NoError(t, err)
			assert.Equal(t, uint64(42), loaded.Lamports)
			assert.Equal(t, []byte{1, 2, 3}, loaded.Data)
			assert.Equal(t, owner, loaded.Owner)
			assert.Equal(t, uint64(7), loaded.RentEpoch)

			loaded.Lamports = 0
			require.NoError(t, store.SetAccount(pubkey, loaded))

			deleted, err := store.GetAccount(pubkey)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), deleted.Lamports)
			assert.Empty(t, deleted.Data)
			assert.Equal(t, solana.SystemProgramID, deleted.Owner)
		})
	}
}
