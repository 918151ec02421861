package lstpool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultProgramID, cfg.ProgramID)
	assert.Equal(t, uint64(1_000_000_000), cfg.MinStakeDelegation)
	assert.Equal(t, uint64(200), cfg.StakeAccountSize)
	assert.Equal(t, uint8(9), cfg.MintDecimals)
}

func TestParseConfig_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("min_stake_delegation: 2000000000\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000_000), cfg.MinStakeDelegation)
	assert.Equal(t, DefaultProgramID, cfg.ProgramID)
	assert.Equal(t, uint8(9), cfg.MintDecimals)
}

func TestParseConfig_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":        "program_id: [",
		"bad program id":   "program_id: not-base58!",
		"native program":   "program_id: " + sealevel.StakeProgramAddr.String(),
		"zero program id":  "program_id: " + solana.PublicKey{}.String(),
		"below minimum":    "min_stake_delegation: 10",
		"wrong stake size": "stake_account_size: 165",
		"decimals":         "mint_decimals: 19",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProgramID = solana.NewWallet().PublicKey()
	cfg.MintDecimals = 6

	raw, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "lstpool.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
