package sim

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/Overclock-Validator/lstpool/pkg/lstpool"
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletKey(t *testing.T) {
	assert.Equal(t, WalletKey("alice"), WalletKey("alice"))
	assert.NotEqual(t, WalletKey("alice"), WalletKey("bob"))

	assert.Equal(t, WalletKey("alice"), ResolveAddress("alice"))
	assert.Equal(t, sealevel.StakeProgramAddr, ResolveAddress(sealevel.StakeProgramAddr.String()))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1500000000 (1.5 SOL)", FormatLamports(1_500_000_000))
	assert.Equal(t, "1", ExchangeRate(5, 0).String())
	assert.Equal(t, "1.032258065", ExchangeRate(3_200_000_000, 3_100_000_000).String())

	_, err := ParseAmount("-1")
	assert.Error(t, err)
}

func TestSimulator_PersistsAcrossSessions(t *testing.T) {
	DbDir = t.TempDir()
	MetricsTextfile = filepath.Join(t.TempDir(), "lstpool.prom")
	t.Cleanup(func() { DbDir, MetricsTextfile = "", "" })

	s, err := Open()
	require.NoError(t, err)

	creator := WalletKey("creator")
	validator := WalletKey("validator")
	require.NoError(t, s.Exec.Genesis(sealevel.SysvarClock{Slot: 1}, sealevel.DefaultRent()))
	require.NoError(t, s.Exec.Airdrop(creator, 10_000_000_000))
	require.NoError(t, s.Exec.SetAccount(&accounts.Account{Key: validator, Lamports: 1_000_000_000, Data: make([]byte, 3762), Owner: sealevel.VoteProgramAddr}))

	addrs, err := s.PoolAddresses("creator", "7")
	require.NoError(t, err)
	instr, err := lstpool.NewInitializeInstruction(addrs, validator)
	require.NoError(t, err)
	_, err = s.Process(context.Background(), []solana.PublicKey{creator}, instr)
	require.NoError(t, err)

	_, err = s.Process(context.Background(), []solana.PublicKey{creator}, instr)
	assert.ErrorContains(t, err, "AlreadyInitialized")
	require.NoError(t, s.Close())
	assert.FileExists(t, MetricsTextfile)

	reopened, err := Open()
	require.NoError(t, err)
	defer reopened.Close()

	pool, err := reopened.LoadPool(addrs)
	require.NoError(t, err)
	assert.Equal(t, uint64(sealevel.StakeMinimumDelegation), pool.LstSupply)
	assert.Equal(t, validator, pool.Validator)
}

func TestOpen_RequiresDb(t *testing.T) {
	DbDir = ""
	_, err := Open()
	assert.Error(t, err)
}
