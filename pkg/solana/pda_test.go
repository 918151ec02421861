package solana

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProgramAddress_MatchesSolanaGo(t *testing.T) {
	programID := solana.MustPublicKeyFromBase58("Stake11111111111111111111111111111111111111")
	seeds := [][]byte{[]byte("lst_pool"), programID[:], {1, 0, 0, 0, 0, 0, 0, 0}}

	addr, bump, err := FindProgramAddress(seeds, programID)
	require.NoError(t, err)

	expectedAddr, expectedBump, err := solana.FindProgramAddress(seeds, programID)
	require.NoError(t, err)

	assert.Equal(t, expectedAddr, addr)
	assert.Equal(t, expectedBump, bump)
	assert.False(t, IsOnCurve(addr[:]))

	recreated, err := CreateProgramAddress(append(seeds, []byte{bump}), programID)
	require.NoError(t, err)
	assert.Equal(t, addr, recreated)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	programID := solana.SystemProgramID

	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLen+1)}, programID)
	assert.ErrorIs(t, err, ErrSeedLength)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(tooMany, programID)
	assert.ErrorIs(t, err, ErrSeedLength)

	_, err = CreateProgramAddressBytes([][]byte{[]byte("x")}, programID[:31])
	assert.ErrorIs(t, err, ErrAddressLength)
}

func TestAddressFinder_Caches(t *testing.T) {
	finder, err := NewAddressFinder(8)
	require.NoError(t, err)

	programID := solana.TokenProgramID
	seeds := [][]byte{[]byte("lst_mint"), solana.SystemProgramID[:]}

	addr1, bump1, err := finder.Find(seeds, programID)
	require.NoError(t, err)
	assert.Equal(t, 1, finder.Len())

	addr2, bump2, err := finder.Find(seeds, programID)
	require.NoError(t, err)
	assert.Equal(t, 1, finder.Len())
	assert.Equal(t, addr1, addr2)
	assert.Equal(t, bump1, bump2)

	// seed boundaries are part of the key
	_, _, err = finder.Find([][]byte{[]byte("lst_"), []byte("mint"), solana.SystemProgramID[:]}, programID)
	require.NoError(t, err)
	assert.Equal(t, 2, finder.Len())
}
