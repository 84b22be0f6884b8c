// Package simulate runs a stake pool scenario through the sealevel
// runtime, epoch by epoch, and reports the pool state as it evolves.
package simulate

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/bank"
	"github.com/solopool-labs/solopool/pkg/sealevel"
	"github.com/solopool-labs/solopool/pkg/singlepool"
)

const lamportsPerSol = 1000000000

var (
	Cmd = cobra.Command{
		Use:   "simulate",
		Short: "Run a stake pool scenario against the runtime",
		Run:   run,
	}

	scenarioPath string
	stateDir     string
	metricsAddr  string
)

func init() {
	Cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "Path of the scenario yaml file")
	Cmd.Flags().StringVarP(&stateDir, "state-dir", "d", "", "Directory for a persistent accounts db; in-memory when unset")
	Cmd.Flags().StringVarP(&metricsAddr, "metrics-addr", "m", "", "Listen address for prometheus metrics")
}

// Scenario describes a simulation run. All amounts are whole SOL.
type Scenario struct {
	BootstrapStakeSol uint64      `yaml:"bootstrap_stake_sol"`
	SlotsPerEpoch     uint64      `yaml:"slots_per_epoch"`
	Epochs            uint64      `yaml:"epochs"`
	RewardRate        float64     `yaml:"reward_rate"`
	Depositors        []Depositor `yaml:"depositors"`
	Donations         []Donation  `yaml:"donations"`
}

type Depositor struct {
	Name         string `yaml:"name"`
	DepositSol   uint64 `yaml:"deposit_sol"`
	DepositEpoch uint64 `yaml:"deposit_epoch"`

	// WithdrawTokens burns that many whole tokens at WithdrawEpoch; zero
	// means the depositor never withdraws.
	WithdrawTokens uint64 `yaml:"withdraw_tokens"`
	WithdrawEpoch  uint64 `yaml:"withdraw_epoch"`
}

// Donation drops loose lamports onto the main stake account, the way MEV
// tips and transfers land on it, for replenish to sweep up.
type Donation struct {
	Epoch uint64 `yaml:"epoch"`
	Sol   uint64 `yaml:"sol"`
}

type depositorState struct {
	spec      Depositor
	key       solana.PrivateKey
	token     solana.PublicKey
	stake     solana.PublicKey
	delegated bool
	deposited bool
	withdrawn bool
	withdrew  solana.PublicKey
}

func loadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	scenario := new(Scenario)
	err = yaml.Unmarshal(raw, scenario)
	if err != nil {
		return nil, err
	}

	if scenario.Epochs == 0 {
		return nil, fmt.Errorf("scenario must run for at least one epoch")
	}
	return scenario, nil
}

func run(c *cobra.Command, args []string) {
	if scenarioPath == "" {
		klog.Exitf("must specify a scenario file")
	}

	scenario, err := loadScenario(scenarioPath)
	if err != nil {
		klog.Exitf("unable to load scenario %s: %s", scenarioPath, err)
	}

	if metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				klog.Errorf("metrics server: %s", err)
			}
		}()
	}

	var store accounts.Accounts
	if stateDir != "" {
		db, err := accounts.CreateNewAccountsDb(stateDir)
		if err != nil {
			klog.Exitf("unable to open accounts db at %s: %s", stateDir, err)
		}
		defer db.Close()
		store = db
		klog.Infof("using persistent accounts db at %s", stateDir)
	} else {
		store = accounts.NewMemAccounts()
	}

	genesis := bank.DefaultGenesisConfig()
	genesis.ExtraPrograms = []solana.PublicKey{singlepool.ProgramAddr}
	if scenario.BootstrapStakeSol != 0 {
		genesis.BootstrapStake = scenario.BootstrapStakeSol * lamportsPerSol
	}
	if scenario.SlotsPerEpoch != 0 {
		genesis.SlotsPerEpoch = scenario.SlotsPerEpoch
	}

	b, err := bank.NewBank(store, genesis)
	if err != nil {
		klog.Exitf("unable to bootstrap bank: %s", err)
	}

	rent := b.Rent()
	vote := b.VoteAccount()
	pool := singlepool.FindPoolAddress(vote)
	mint := singlepool.FindPoolMintAddress(pool)
	mainStake := singlepool.FindPoolStakeAddress(pool)

	err = b.ProcessTransaction(singlepool.InitializeInstructions(vote, b.Faucet().PublicKey(), rent, 1), b.Faucet())
	if err != nil {
		klog.Exitf("unable to initialize pool: %s", err)
	}
	klog.Infof("initialized pool %s for vote account %s", pool, vote)

	depositors := make([]*depositorState, 0, len(scenario.Depositors))
	for _, spec := range scenario.Depositors {
		d, err := setupDepositor(b, pool, mint, rent, spec)
		if err != nil {
			klog.Exitf("unable to set up depositor %s: %s", spec.Name, err)
		}
		depositors = append(depositors, d)
	}

	for epoch := uint64(0); epoch < scenario.Epochs; epoch++ {
		err = b.ProcessTransaction([]*sealevel.Instruction{singlepool.NewReplenishPoolInstruction(vote)})
		if err != nil {
			klog.Exitf("replenish failed at epoch %d: %s", epoch, err)
		}

		for _, d := range depositors {
			err = stepDepositor(b, pool, vote, rent, d, epoch)
			if err != nil {
				klog.Exitf("depositor %s failed at epoch %d: %s", d.spec.Name, epoch, err)
			}
		}

		for _, donation := range scenario.Donations {
			if donation.Epoch != epoch {
				continue
			}
			err = b.FundAccount(mainStake, donation.Sol*lamportsPerSol)
			if err != nil {
				klog.Exitf("donation failed at epoch %d: %s", epoch, err)
			}
			klog.Infof("epoch %d: donated %d SOL to the main stake account", epoch, donation.Sol)
		}

		reportEpoch(b, pool, epoch)

		rewards, err := b.AdvanceEpoch(scenario.RewardRate)
		if err != nil {
			klog.Exitf("epoch boundary %d failed: %s", epoch, err)
		}
		klog.V(1).Infof("epoch %d paid %d lamports in rewards", epoch, rewards)
	}

	reportFinal(b, depositors)
}

func setupDepositor(b *bank.Bank, pool solana.PublicKey, mint solana.PublicKey, rent sealevel.SysvarRent, spec Depositor) (*depositorState, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	tokenKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}

	wallet := key.PublicKey()
	funding := spec.DepositSol*lamportsPerSol + lamportsPerSol
	if err := b.FundAccount(wallet, funding); err != nil {
		return nil, err
	}

	err = b.ProcessTransaction([]*sealevel.Instruction{
		sealevel.NewCreateAccountInstruction(wallet, tokenKey.PublicKey(), rent.MinimumBalance(sealevel.TokenAccountSize), sealevel.TokenAccountSize, sealevel.TokenProgramAddr),
		sealevel.NewTokenInitializeAccountInstruction(tokenKey.PublicKey(), mint, wallet),
	}, key, tokenKey)
	if err != nil {
		return nil, err
	}

	return &depositorState{
		spec:  spec,
		key:   key,
		token: tokenKey.PublicKey(),
		stake: singlepool.FindDefaultDepositAddress(pool, wallet),
	}, nil
}

func stepDepositor(b *bank.Bank, pool solana.PublicKey, vote solana.PublicKey, rent sealevel.SysvarRent, d *depositorState, epoch uint64) error {
	wallet := d.key.PublicKey()

	if !d.delegated && d.spec.DepositEpoch <= epoch {
		err := b.ProcessTransaction(singlepool.CreateAndDelegateUserStakeInstructions(vote, wallet, rent, d.spec.DepositSol*lamportsPerSol), d.key)
		if err != nil {
			return err
		}
		d.delegated = true
		klog.Infof("epoch %d: %s delegated %d SOL", epoch, d.spec.Name, d.spec.DepositSol)
		return nil
	}

	if d.delegated && !d.deposited {
		err := b.ProcessTransaction(singlepool.DepositInstructions(pool, wallet, d.stake, d.token, wallet), d.key)
		if errors.Is(err, singlepool.PoolErrWrongStakeStake) {
			// stake still warming up, retry at the next epoch
			klog.V(1).Infof("epoch %d: %s stake not yet active", epoch, d.spec.Name)
			return nil
		}
		if err != nil {
			return err
		}
		d.deposited = true
		klog.Infof("epoch %d: %s deposited, holds %.9f tokens", epoch, d.spec.Name, float64(tokenBalance(b, d.token))/lamportsPerSol)
		return nil
	}

	if d.deposited && !d.withdrawn && d.spec.WithdrawTokens > 0 && d.spec.WithdrawEpoch <= epoch {
		blankKey, err := solana.NewRandomPrivateKey()
		if err != nil {
			return err
		}
		blankStake := blankKey.PublicKey()

		err = b.ProcessTransaction([]*sealevel.Instruction{
			sealevel.NewCreateAccountInstruction(wallet, blankStake, rent.MinimumBalance(sealevel.StakeStateV2Size), sealevel.StakeStateV2Size, sealevel.StakeProgramAddr),
		}, d.key, blankKey)
		if err != nil {
			return err
		}

		err = b.ProcessTransaction(singlepool.WithdrawInstructions(pool, wallet, blankStake, d.token, wallet, d.spec.WithdrawTokens*lamportsPerSol), d.key)
		if err != nil {
			return err
		}
		d.withdrawn = true
		d.withdrew = blankStake
		klog.Infof("epoch %d: %s withdrew %d tokens into stake account %s", epoch, d.spec.Name, d.spec.WithdrawTokens, blankStake)
	}

	return nil
}

func stakeDelegation(b *bank.Bank, addr solana.PublicKey) uint64 {
	acct, ok := b.Account(addr)
	if !ok {
		return 0
	}
	state, err := sealevel.UnmarshalStakeState(acct.Data)
	if err != nil || state.Status != sealevel.StakeStateV2StatusStake {
		return 0
	}
	return state.Stake.Stake.Delegation.StakeLamports
}

func tokenBalance(b *bank.Bank, addr solana.PublicKey) uint64 {
	acct, ok := b.Account(addr)
	if !ok {
		return 0
	}
	tokenAcct, err := sealevel.UnmarshalTokenAccount(acct.Data)
	if err != nil {
		return 0
	}
	return tokenAcct.Amount
}

func mintSupply(b *bank.Bank, addr solana.PublicKey) uint64 {
	acct, ok := b.Account(addr)
	if !ok {
		return 0
	}
	mint, err := sealevel.UnmarshalTokenMint(acct.Data)
	if err != nil {
		return 0
	}
	return mint.Supply
}

func reportEpoch(b *bank.Bank, pool solana.PublicKey, epoch uint64) {
	mainDelegation := stakeDelegation(b, singlepool.FindPoolStakeAddress(pool))
	onRampDelegation := stakeDelegation(b, singlepool.FindPoolOnRampAddress(pool))
	supply := mintSupply(b, singlepool.FindPoolMintAddress(pool))

	rate := 1.0
	if supply > 0 {
		rate = float64(mainDelegation) / float64(supply)
	}

	fmt.Printf("epoch %3d | pool stake %14.9f SOL | on-ramp %14.9f SOL | supply %14.9f | rate %.9f\n",
		epoch,
		float64(mainDelegation)/lamportsPerSol,
		float64(onRampDelegation)/lamportsPerSol,
		float64(supply)/lamportsPerSol,
		rate)
}

func reportFinal(b *bank.Bank, depositors []*depositorState) {
	for _, d := range depositors {
		fmt.Printf("%-12s | tokens %14.9f", d.spec.Name, float64(tokenBalance(b, d.token))/lamportsPerSol)
		if d.withdrawn {
			fmt.Printf(" | withdrawn stake %14.9f SOL at %s", float64(stakeDelegation(b, d.withdrew))/lamportsPerSol, d.withdrew)
		}
		fmt.Printf("\n")
	}
}
