// Package pool holds the commands that drive the pool program.
package pool

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Overclock-Validator/lstpool/cmd/lstpool/sim"
	"github.com/Overclock-Validator/lstpool/pkg/lstpool"
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/VividCortex/ewma"
	"github.com/gagliardetto/solana-go"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "pool",
		Short: "Create and inspect pools",
	}

	initCmd = cobra.Command{
		Use:   "init <creator> <seed> <validator>",
		Short: "Create a pool delegated to validator",
		Args:  cobra.ExactArgs(3),
		Run:   runInit,
	}

	showCmd = cobra.Command{
		Use:   "show <creator> <seed>",
		Short: "Print a pool's ledger and exchange rate",
		Args:  cobra.ExactArgs(2),
		Run:   runShow,
	}

	DepositCmd = cobra.Command{
		Use:   "deposit <wallet> <creator> <seed> <lamports>",
		Short: "Deposit lamports and receive shares",
		Args:  cobra.ExactArgs(4),
		Run:   runDeposit,
	}

	DepositBatchCmd = cobra.Command{
		Use:   "deposit-batch <creator> <seed> <lamports> <wallet>...",
		Short: "Deposit the same amount from several wallets concurrently",
		Args:  cobra.MinimumNArgs(4),
		Run:   runDepositBatch,
	}

	ReserveCmd = cobra.Command{
		Use:   "reserve",
		Short: "Stake and settle pending deposits",
	}

	reserveInitCmd = cobra.Command{
		Use:   "init <creator> <seed>",
		Short: "Delegate the reserve position",
		Args:  cobra.ExactArgs(2),
		Run:   runReserveInit,
	}

	reserveMergeCmd = cobra.Command{
		Use:   "merge <creator> <seed>",
		Short: "Merge the reserve position into the primary position",
		Args:  cobra.ExactArgs(2),
		Run:   runReserveMerge,
	}

	WithdrawCmd = cobra.Command{
		Use:   "withdraw <wallet> <creator> <seed> <shares> <nonce>",
		Short: "Burn shares and open a withdrawal ticket",
		Args:  cobra.ExactArgs(5),
		Run:   runWithdraw,
	}

	WithdrawCompleteCmd = cobra.Command{
		Use:   "withdraw-complete <wallet> <creator> <seed> <nonce>",
		Short: "Claim a deactivated withdrawal ticket",
		Args:  cobra.ExactArgs(4),
		Run:   runWithdrawComplete,
	}

	RewardsCmd = cobra.Command{
		Use:   "rewards <creator> <seed> <lamports>",
		Short: "Credit simulated staking rewards to the primary position",
		Args:  cobra.ExactArgs(3),
		Run:   runRewards,
	}
)

func init() {
	Cmd.AddCommand(&initCmd, &showCmd)
	ReserveCmd.AddCommand(&reserveInitCmd, &reserveMergeCmd)
}

// session opens the simulator and resolves the pool named by creator and
// seed.
func session(creator string, seed string) (*sim.Simulator, *lstpool.Addresses) {
	s, err := sim.Open()
	if err != nil {
		klog.Exitf("unable to open simulator: %s", err)
	}
	addrs, err := s.PoolAddresses(creator, seed)
	if err != nil {
		s.Close()
		klog.Exit(err)
	}
	return s, addrs
}

func mustAmount(arg string) uint64 {
	amount, err := sim.ParseAmount(arg)
	if err != nil {
		klog.Exit(err)
	}
	return amount
}

func runInit(c *cobra.Command, args []string) {
	s, addrs := session(args[0], args[1])
	defer s.Close()

	instr, err := lstpool.NewInitializeInstruction(addrs, sim.ResolveAddress(args[2]))
	if err != nil {
		klog.Exit(err)
	}
	_, err = s.Process(c.Context(), []solana.PublicKey{addrs.Creator}, instr)
	if err != nil {
		klog.Exitf("initialize failed: %s", err)
	}

	fmt.Printf("pool:    %s\n", addrs.Pool)
	fmt.Printf("mint:    %s\n", addrs.Mint)
	fmt.Printf("stake:   %s\n", addrs.Stake)
	fmt.Printf("reserve: %s\n", addrs.Reserve)
}

func runShow(c *cobra.Command, args []string) {
	s, addrs := session(args[0], args[1])
	defer s.Close()

	pool, err := s.LoadPool(addrs)
	if err != nil {
		klog.Exit(err)
	}

	primary, err := s.Exec.GetAccount(addrs.Stake)
	if err != nil {
		klog.Exit(err)
	}
	reserve, err := s.Exec.GetAccount(addrs.Reserve)
	if err != nil {
		klog.Exit(err)
	}
	rent, err := sealevel.ReadRentSysvar(s.Exec.Accounts())
	if err != nil {
		klog.Exit(err)
	}
	total, err := lstpool.TotalPoolValue(primary.Lamports, reserve.Lamports, rent.MinimumBalance(s.Config.StakeAccountSize))
	if err != nil {
		klog.Exit(err)
	}
	clock, err := sealevel.ReadClockSysvar(s.Exec.Accounts())
	if err != nil {
		klog.Exit(err)
	}

	fmt.Printf("pool:             %s (epoch %d)\n", addrs.Pool, clock.Epoch)
	fmt.Printf("authority:        %s\n", pool.Authority)
	fmt.Printf("validator:        %s\n", pool.Validator)
	fmt.Printf("share supply:     %d\n", pool.LstSupply)
	fmt.Printf("pending deposits: %s\n", sim.FormatLamports(pool.PendingDeposits))
	fmt.Printf("primary:          %s, %s\n", sim.FormatLamports(primary.Lamports), stakeStatus(primary.Data, clock.Epoch))
	fmt.Printf("reserve:          %s, %s\n", sim.FormatLamports(reserve.Lamports), stakeStatus(reserve.Data, clock.Epoch))
	fmt.Printf("total value:      %s\n", sim.FormatLamports(total))
	fmt.Printf("exchange rate:    %s\n", sim.ExchangeRate(total, pool.LstSupply))
}

func stakeStatus(data []byte, epoch uint64) string {
	if len(data) == 0 {
		return "empty"
	}
	state, err := sealevel.UnmarshalStakeState(data)
	if err != nil {
		return "undecodable"
	}
	return sealevel.StakeStatusString(sealevel.StakeActivationStatus(state, epoch))
}

func deposit(ctx context.Context, s *sim.Simulator, addrs *lstpool.Addresses, wallet solana.PublicKey, amount uint64) error {
	instr, err := lstpool.NewDepositInstruction(addrs, wallet, amount)
	if err != nil {
		return err
	}
	_, err = s.Process(ctx, []solana.PublicKey{wallet}, instr)
	return err
}

func runDeposit(c *cobra.Command, args []string) {
	amount := mustAmount(args[3])
	s, addrs := session(args[1], args[2])
	defer s.Close()

	wallet := sim.ResolveAddress(args[0])
	err := deposit(c.Context(), s, addrs, wallet, amount)
	if err != nil {
		klog.Exitf("deposit failed: %s", err)
	}
	fmt.Printf("deposited %s from %s\n", sim.FormatLamports(amount), wallet)
}

func runDepositBatch(c *cobra.Command, args []string) {
	amount := mustAmount(args[2])
	s, addrs := session(args[0], args[1])
	defer s.Close()

	names := lo.Uniq(args[3:])
	progress := mpb.NewWithContext(c.Context(), mpb.WithOutput(progressOutput()), mpb.WithWidth(40))
	bar := progress.AddBar(int64(len(names)),
		mpb.PrependDecorators(decor.Name("deposits ")),
		mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")))

	var mu sync.Mutex
	latency := ewma.NewMovingAverage()

	group, ctx := errgroup.WithContext(c.Context())
	for _, name := range names {
		name := name
		wallet := sim.ResolveAddress(name)
		group.Go(func() error {
			start := time.Now()
			err := deposit(ctx, s, addrs, wallet, amount)
			if err != nil {
				return errors.Wrapf(err, "deposit from %s", name)
			}

			mu.Lock()
			latency.Add(float64(time.Since(start).Microseconds()))
			mu.Unlock()
			bar.Increment()
			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		bar.Abort(false)
	}
	progress.Wait()
	if err != nil {
		klog.Exitf("batch deposit failed: %s", err)
	}
	fmt.Printf("deposited %s from each of %d wallets, %.0fus per deposit\n", sim.FormatLamports(amount), len(names), latency.Value())
}

func progressOutput() io.Writer {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return os.Stderr
	}
	return io.Discard
}

func runReserveInit(c *cobra.Command, args []string) {
	s, addrs := session(args[0], args[1])
	defer s.Close()

	pool, err := s.LoadPool(addrs)
	if err != nil {
		klog.Exit(err)
	}
	_, err = s.Process(c.Context(), nil, lstpool.NewInitializeReserveInstruction(addrs, pool.Validator))
	if err != nil {
		klog.Exitf("reserve initialization failed: %s", err)
	}
	fmt.Printf("reserve %s delegated to %s\n", addrs.Reserve, pool.Validator)
}

func runReserveMerge(c *cobra.Command, args []string) {
	s, addrs := session(args[0], args[1])
	defer s.Close()

	_, err := s.Process(c.Context(), nil, lstpool.NewMergeReserveInstruction(addrs))
	if err != nil {
		klog.Exitf("reserve merge failed: %s", err)
	}
	fmt.Printf("reserve merged into %s\n", addrs.Stake)
}

func runWithdraw(c *cobra.Command, args []string) {
	shares := mustAmount(args[3])
	nonce := mustAmount(args[4])
	s, addrs := session(args[1], args[2])
	defer s.Close()

	wallet := sim.ResolveAddress(args[0])
	instr, err := lstpool.NewWithdrawInstruction(addrs, wallet, shares, nonce)
	if err != nil {
		klog.Exit(err)
	}
	_, err = s.Process(c.Context(), []solana.PublicKey{wallet}, instr)
	if err != nil {
		klog.Exitf("withdraw failed: %s", err)
	}

	ticket := instr.Accounts[4].Pubkey
	acct, err := s.Exec.GetAccount(ticket)
	if err != nil {
		klog.Exit(err)
	}
	fmt.Printf("ticket %s holds %s\n", ticket, sim.FormatLamports(acct.Lamports))
}

func runWithdrawComplete(c *cobra.Command, args []string) {
	nonce := mustAmount(args[3])
	s, addrs := session(args[1], args[2])
	defer s.Close()

	wallet := sim.ResolveAddress(args[0])
	before, err := s.Exec.GetAccount(wallet)
	if err != nil {
		klog.Exit(err)
	}

	instr, err := lstpool.NewWithdrawCompleteInstruction(addrs, wallet, nonce)
	if err != nil {
		klog.Exit(err)
	}
	_, err = s.Process(c.Context(), []solana.PublicKey{wallet}, instr)
	if err != nil {
		klog.Exitf("withdraw completion failed: %s", err)
	}

	after, err := s.Exec.GetAccount(wallet)
	if err != nil {
		klog.Exit(err)
	}
	fmt.Printf("claimed %s\n", sim.FormatLamports(after.Lamports-before.Lamports))
}

func runRewards(c *cobra.Command, args []string) {
	lamports := mustAmount(args[2])
	s, addrs := session(args[0], args[1])
	defer s.Close()

	err := s.Exec.CreditRewards(addrs.Stake, lamports)
	if err != nil {
		klog.Exit(err)
	}
	fmt.Printf("credited %s to %s\n", sim.FormatLamports(lamports), addrs.Stake)
}
