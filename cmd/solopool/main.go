package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/solopool-labs/solopool/cmd/solopool/addresses"
	"github.com/solopool-labs/solopool/cmd/solopool/simulate"
)

var cmd = cobra.Command{
	Use:   "solopool",
	Short: "single-validator stake pool tooling",
}

func init() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		&addresses.Cmd,
		&simulate.Cmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}
