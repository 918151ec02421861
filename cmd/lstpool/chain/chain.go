// Package chain holds the commands that set up and advance the simulated
// cluster itself.
package chain

import (
	"fmt"

	"github.com/Overclock-Validator/lstpool/cmd/lstpool/sim"
	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/Overclock-Validator/lstpool/pkg/util"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

const voteAccountDataSize = 3762

var (
	GenesisCmd = cobra.Command{
		Use:   "genesis <validator> [wallet...]",
		Short: "Write the sysvars, a vote account and funded wallets",
		Args:  cobra.MinimumNArgs(1),
		Run:   runGenesis,
	}

	AirdropCmd = cobra.Command{
		Use:   "airdrop <wallet> <lamports>",
		Short: "Credit lamports to a wallet",
		Args:  cobra.ExactArgs(2),
		Run:   runAirdrop,
	}

	WarpCmd = cobra.Command{
		Use:   "warp <epochs>",
		Short: "Advance the clock by a number of epochs",
		Args:  cobra.ExactArgs(1),
		Run:   runWarp,
	}

	InspectCmd = cobra.Command{
		Use:   "inspect <address|wallet>",
		Short: "Print an account and its hash",
		Args:  cobra.ExactArgs(1),
		Run:   runInspect,
	}

	walletLamports uint64
)

func init() {
	GenesisCmd.Flags().Uint64VarP(&walletLamports, "lamports", "l", 1_000_000_000_000, "Lamports to fund each wallet with")
}

func open() *sim.Simulator {
	s, err := sim.Open()
	if err != nil {
		klog.Exitf("unable to open simulator: %s", err)
	}
	return s
}

func runGenesis(c *cobra.Command, args []string) {
	s := open()
	defer s.Close()

	clock, err := sealevel.ReadClockSysvar(s.Exec.Accounts())
	if err == nil && clock.Slot != 0 {
		klog.Exitf("account store already holds a cluster at epoch %d", clock.Epoch)
	}

	err = s.Exec.Genesis(sealevel.SysvarClock{Slot: 1, LeaderScheduleEpoch: 1}, sealevel.DefaultRent())
	if err != nil {
		klog.Exitf("writing sysvars: %s", err)
	}

	rent := sealevel.DefaultRent()
	validator := sim.WalletKey(args[0])
	voteAcct := &accounts.Account{
		Key:      validator,
		Lamports: rent.MinimumBalance(voteAccountDataSize),
		Data:     make([]byte, voteAccountDataSize),
		Owner:    sealevel.VoteProgramAddr,
	}
	err = s.Exec.SetAccount(voteAcct)
	if err != nil {
		klog.Exitf("writing vote account: %s", err)
	}
	fmt.Printf("validator %s: vote account %s\n", args[0], validator)

	for _, name := range args[1:] {
		wallet := sim.WalletKey(name)
		err = s.Exec.Airdrop(wallet, walletLamports)
		if err != nil {
			klog.Exitf("funding %s: %s", name, err)
		}
		fmt.Printf("wallet %s: %s, %s\n", name, wallet, sim.FormatLamports(walletLamports))
	}
}

func runAirdrop(c *cobra.Command, args []string) {
	lamports, err := sim.ParseAmount(args[1])
	if err != nil {
		klog.Exit(err)
	}

	s := open()
	defer s.Close()

	wallet := sim.ResolveAddress(args[0])
	err = s.Exec.Airdrop(wallet, lamports)
	if err != nil {
		klog.Exitf("airdrop to %s: %s", wallet, err)
	}

	acct, err := s.Exec.GetAccount(wallet)
	if err != nil {
		klog.Exit(err)
	}
	fmt.Printf("%s balance: %s\n", wallet, sim.FormatLamports(acct.Lamports))
}

func runWarp(c *cobra.Command, args []string) {
	epochs, err := sim.ParseAmount(args[0])
	if err != nil {
		klog.Exit(err)
	}

	s := open()
	defer s.Close()

	clock, err := sealevel.ReadClockSysvar(s.Exec.Accounts())
	if err != nil {
		klog.Exitf("reading clock: %s", err)
	}
	err = s.Exec.WarpToEpoch(clock.Epoch + epochs)
	if err != nil {
		klog.Exit(err)
	}
	fmt.Printf("epoch %d\n", clock.Epoch+epochs)
}

func runInspect(c *cobra.Command, args []string) {
	s := open()
	defer s.Close()

	key := sim.ResolveAddress(args[0])
	acct, err := s.Exec.GetAccount(key)
	if err != nil {
		klog.Exit(err)
	}

	fmt.Printf("address:    %s\n", acct.Key)
	fmt.Printf("lamports:   %s\n", sim.FormatLamports(acct.Lamports))
	fmt.Printf("owner:      %s\n", acct.Owner)
	fmt.Printf("executable: %t\n", acct.Executable)
	fmt.Printf("data:       %d bytes\n", len(acct.Data))
	fmt.Printf("hash:       %x\n", util.CalculateAcctHash(*acct))

	if acct.Owner == sealevel.StakeProgramAddr && len(acct.Data) != 0 {
		state, err := sealevel.UnmarshalStakeState(acct.Data)
		if err != nil {
			klog.Warningf("undecodable stake account: %s", err)
			return
		}
		clock, err := sealevel.ReadClockSysvar(s.Exec.Accounts())
		if err != nil {
			klog.Exit(err)
		}
		fmt.Printf("stake:      %s\n", sealevel.StakeStatusString(sealevel.StakeActivationStatus(state, clock.Epoch)))
	}
}
