// Package sim wires the pool program to a durable account store so the
// lstpool commands can drive it one invocation at a time.
package sim

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/big"
	"strconv"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/Overclock-Validator/lstpool/pkg/lstpool"
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"k8s.io/klog/v2"
)

// Set by the root command's persistent flags.
var (
	DbDir           string
	ConfigPath      string
	MetricsTextfile string
)

const walletSeedPrefix = "lstpool-wallet:"

// Simulator is one open session against the account store.
type Simulator struct {
	Exec     *sealevel.Executor
	Config   *lstpool.Config
	registry *prometheus.Registry
	db       *accounts.PersistentAccountsDb
}

func Open() (*Simulator, error) {
	if DbDir == "" {
		return nil, errors.New("--db is required")
	}

	cfg := lstpool.DefaultConfig()
	if ConfigPath != "" {
		var err error
		cfg, err = lstpool.LoadConfig(ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	db, err := accounts.OpenAccountsDb(DbDir)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	execMetrics, err := sealevel.NewExecutorMetrics(registry)
	if err != nil {
		db.Close()
		return nil, err
	}
	poolMetrics, err := lstpool.NewMetrics(registry, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	exec := sealevel.NewExecutor(db)
	exec.SetMetrics(execMetrics)
	lstpool.NewProgram(cfg, poolMetrics).Register(exec)

	klog.V(1).Infof("opened account store at %s, pool program %s", DbDir, cfg.ProgramID)
	return &Simulator{Exec: exec, Config: cfg, registry: registry, db: db}, nil
}

// Close flushes the metrics textfile, if one was requested, and closes the
// store.
func (s *Simulator) Close() error {
	if MetricsTextfile != "" {
		err := prometheus.WriteToTextfile(MetricsTextfile, s.registry)
		if err != nil {
			klog.Errorf("writing metrics to %s: %s", MetricsTextfile, err)
		}
	}
	return s.db.Close()
}

// WalletKey maps a wallet name to a stable ed25519 public key.
func WalletKey(name string) solana.PublicKey {
	seed := sha256.Sum256([]byte(walletSeedPrefix + name))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return solana.PrivateKey(priv).PublicKey()
}

// ResolveAddress accepts a base58 address or a wallet name.
func ResolveAddress(arg string) solana.PublicKey {
	decoded, err := base58.Decode(arg)
	if err == nil && len(decoded) == solana.PublicKeyLength {
		return solana.PublicKeyFromBytes(decoded)
	}
	return WalletKey(arg)
}

func (s *Simulator) PoolAddresses(creator string, seedArg string) (*lstpool.Addresses, error) {
	seed, err := ParseAmount(seedArg)
	if err != nil {
		return nil, errors.Wrap(err, "pool seed")
	}
	return lstpool.DeriveAddresses(s.Config.ProgramID, WalletKey(creator), seed)
}

func (s *Simulator) Process(ctx context.Context, signers []solana.PublicKey, instrs ...sealevel.Instruction) (*sealevel.TxResult, error) {
	result, err := s.Exec.ProcessTransaction(ctx, sealevel.NewTransaction(signers, instrs...))
	if err != nil {
		return nil, errors.Wrapf(err, "%s (code %d)", lstpool.CodeOf(err), lstpool.CodeOf(err))
	}
	klog.Infof("transaction committed: %d CUs, %d accounts, delta hash %x", result.ComputeUnits, len(result.Modified), result.DeltaHash)
	return result, nil
}

func (s *Simulator) LoadPool(addrs *lstpool.Addresses) (*lstpool.Pool, error) {
	acct, err := s.Exec.GetAccount(addrs.Pool)
	if err != nil {
		return nil, err
	}
	if len(acct.Data) == 0 {
		return nil, errors.Errorf("no pool at %s", addrs.Pool)
	}
	return lstpool.UnmarshalPool(acct.Data)
}

func ParseAmount(arg string) (uint64, error) {
	amount, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid amount %q", arg)
	}
	return amount, nil
}

func lamportsDecimal(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0)
}

// FormatLamports renders a lamport amount with its SOL equivalent.
func FormatLamports(lamports uint64) string {
	return fmt.Sprintf("%d (%s SOL)", lamports, lamportsDecimal(lamports).Shift(-9).String())
}

// ExchangeRate is the number of lamports each share unit redeems for.
func ExchangeRate(total uint64, supply uint64) decimal.Decimal {
	if supply == 0 {
		return decimal.NewFromInt(1)
	}
	return lamportsDecimal(total).DivRound(lamportsDecimal(supply), 9)
}
