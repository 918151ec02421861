package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/Overclock-Validator/lstpool/cmd/lstpool/chain"
	"github.com/Overclock-Validator/lstpool/cmd/lstpool/pool"
	"github.com/Overclock-Validator/lstpool/cmd/lstpool/sim"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var cmd = cobra.Command{
	Use:   "lstpool",
	Short: "Local liquid staking pool simulator",
}

func init() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.PersistentFlags().StringVarP(&sim.DbDir, "db", "d", "", "Directory of the account store")
	cmd.PersistentFlags().StringVarP(&sim.ConfigPath, "config", "c", "", "Pool program config file (YAML)")
	cmd.PersistentFlags().StringVar(&sim.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		&chain.GenesisCmd,
		&chain.AirdropCmd,
		&chain.WarpCmd,
		&chain.InspectCmd,
		&pool.Cmd,
		&pool.DepositCmd,
		&pool.DepositBatchCmd,
		&pool.ReserveCmd,
		&pool.WithdrawCmd,
		&pool.WithdrawCompleteCmd,
		&pool.RewardsCmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}
