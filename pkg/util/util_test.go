package util

import (
	"testing"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupePubkeys(t *testing.T) {
	a := solana.PublicKey{1}
	b := solana.PublicKey{2}
	c := solana.PublicKey{0, 9}

	deduped := DedupePubkeys([]solana.PublicKey{b, a, b, c, a})
	assert.Equal(t, []solana.PublicKey{c, a, b}, deduped)
}

func TestCalculateAcctHash_CoversEveryField(t *testing.T) {
	base := accounts.Account{Key: solana.PublicKey{1}, Lamports: 10, Data: []byte{1, 2, 3}, Owner: solana.PublicKey{2}}
	baseHash := CalculateAcctHash(base)
	require.Len(t, baseHash, 32)

	variants := []accounts.Account{base, base, base, base, base}
	variants[0].Lamports = 11
	variants[1].Data = []byte{1, 2, 4}
	variants[2].Owner = solana.PublicKey{3}
	variants[3].Key = solana.PublicKey{4}
	variants[4].Executable = true

	for _, variant := range variants {
		assert.NotEqual(t, baseHash, CalculateAcctHash(variant))
	}
	assert.Equal(t, baseHash, CalculateAcctHash(base))
}

func TestAccountsDeltaHash_OrderIndependent(t *testing.T) {
	a := &accounts.Account{Key: solana.PublicKey{1}, Lamports: 1}
	b := &accounts.Account{Key: solana.PublicKey{2}, Lamports: 2}

	assert.Nil(t, AccountsDeltaHash(nil))
	assert.Equal(t, AccountsDeltaHash([]*accounts.Account{a, b}), AccountsDeltaHash([]*accounts.Account{b, a}))

	deleted := &accounts.Account{Key: solana.PublicKey{2}}
	assert.NotEqual(t, AccountsDeltaHash([]*accounts.Account{a, b}), AccountsDeltaHash([]*accounts.Account{a, deleted}))
}

func TestAccountsDeltaHash_ManyAccounts(t *testing.T) {
	accts := make([]*accounts.Account, 0, 300)
	for i := 0; i < 300; i++ {
		accts = append(accts, &accounts.Account{Key: solana.PublicKey{byte(i), byte(i >> 8)}, Lamports: uint64(i + 1)})
	}
	assert.Len(t, AccountsDeltaHash(accts), 32)
}
