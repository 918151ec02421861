package lstpool

import (
	"os"

	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultProgramID is the address the pool program is registered under
// unless configured otherwise.
var DefaultProgramID = solana.PublicKeyFromBytes([]byte{
	0x0f, 0x1e, 0x6b, 0x14, 0x21, 0xc0, 0x4a, 0x07, 0x04, 0x31, 0x26, 0x5c, 0x19, 0xc5, 0xbb, 0xee,
	0x19, 0x92, 0xba, 0xe8, 0xaf, 0xd1, 0xcd, 0x07, 0x8e, 0xf8, 0xaf, 0x70, 0x47, 0xdc, 0x11, 0xf7,
})

// Config holds the constants every pool component works from. It is
// immutable once validated.
type Config struct {
	ProgramID          solana.PublicKey
	MinStakeDelegation uint64
	StakeAccountSize   uint64
	MintDecimals       uint8
}

type configFile struct {
	ProgramID          string `yaml:"program_id"`
	MinStakeDelegation uint64 `yaml:"min_stake_delegation"`
	StakeAccountSize   uint64 `yaml:"stake_account_size"`
	MintDecimals       uint8  `yaml:"mint_decimals"`
}

func DefaultConfig() *Config {
	return &Config{
		ProgramID:          DefaultProgramID,
		MinStakeDelegation: sealevel.StakeMinimumDelegation,
		StakeAccountSize:   sealevel.StakeStateV2Size,
		MintDecimals:       9,
	}
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return ParseConfig(raw)
}

func ParseConfig(raw []byte) (*Config, error) {
	cfg := DefaultConfig()
	file := configFile{
		ProgramID:          cfg.ProgramID.String(),
		MinStakeDelegation: cfg.MinStakeDelegation,
		StakeAccountSize:   cfg.StakeAccountSize,
		MintDecimals:       cfg.MintDecimals,
	}

	err := yaml.Unmarshal(raw, &file)
	if err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}

	cfg.ProgramID, err = solana.PublicKeyFromBase58(file.ProgramID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid program_id %q", file.ProgramID)
	}
	cfg.MinStakeDelegation = file.MinStakeDelegation
	cfg.StakeAccountSize = file.StakeAccountSize
	cfg.MintDecimals = file.MintDecimals

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.ProgramID.IsZero() {
		return errors.New("program_id must be set")
	}
	if sealevel.IsNativeProgram(cfg.ProgramID) {
		return errors.Errorf("program_id %s collides with a native program", cfg.ProgramID)
	}
	// the custody service rejects delegations below its own floor
	if cfg.MinStakeDelegation < sealevel.StakeMinimumDelegation {
		return errors.Errorf("min_stake_delegation %d is below the stake program minimum %d", cfg.MinStakeDelegation, sealevel.StakeMinimumDelegation)
	}
	if cfg.StakeAccountSize != sealevel.StakeStateV2Size {
		return errors.Errorf("stake_account_size must be %d, got %d", sealevel.StakeStateV2Size, cfg.StakeAccountSize)
	}
	if cfg.MintDecimals > 18 {
		return errors.Errorf("mint_decimals %d out of range", cfg.MintDecimals)
	}
	return nil
}

func (cfg *Config) MarshalYAML() (interface{}, error) {
	return configFile{
		ProgramID:          cfg.ProgramID.String(),
		MinStakeDelegation: cfg.MinStakeDelegation,
		StakeAccountSize:   cfg.StakeAccountSize,
		MintDecimals:       cfg.MintDecimals,
	}, nil
}
