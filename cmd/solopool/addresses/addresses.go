package addresses

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/solopool-labs/solopool/pkg/singlepool"
)

var (
	Cmd = cobra.Command{
		Use:   "addresses",
		Short: "Derive the pool addresses for a vote account",
		Run:   run,
	}

	voteStr   string
	walletStr string
)

func init() {
	Cmd.Flags().StringVarP(&voteStr, "vote", "v", "", "Vote account address")
	Cmd.Flags().StringVarP(&walletStr, "wallet", "w", "", "Wallet address to derive the default deposit account for")
}

func run(c *cobra.Command, args []string) {
	if voteStr == "" {
		klog.Exitf("must specify a vote account address")
	}

	vote, err := solana.PublicKeyFromBase58(voteStr)
	if err != nil {
		klog.Exitf("invalid vote account address %s: %s", voteStr, err)
	}

	pool := singlepool.FindPoolAddress(vote)
	mint := singlepool.FindPoolMintAddress(pool)

	fmt.Printf("program:         %s\n", solana.PublicKey(singlepool.ProgramAddr))
	fmt.Printf("pool:            %s\n", pool)
	fmt.Printf("stake account:   %s\n", singlepool.FindPoolStakeAddress(pool))
	fmt.Printf("on-ramp account: %s\n", singlepool.FindPoolOnRampAddress(pool))
	fmt.Printf("mint:            %s\n", mint)
	fmt.Printf("stake authority: %s\n", singlepool.FindPoolStakeAuthorityAddress(pool))
	fmt.Printf("mint authority:  %s\n", singlepool.FindPoolMintAuthorityAddress(pool))
	fmt.Printf("mpl authority:   %s\n", singlepool.FindPoolMplAuthorityAddress(pool))
	fmt.Printf("metadata:        %s\n", singlepool.FindMetadataAddress(mint))

	if walletStr != "" {
		wallet, err := solana.PublicKeyFromBase58(walletStr)
		if err != nil {
			klog.Exitf("invalid wallet address %s: %s", walletStr, err)
		}
		fmt.Printf("default deposit: %s\n", singlepool.FindDefaultDepositAddress(pool, wallet))
	}
}
