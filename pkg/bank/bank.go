// Package bank drives the sealevel runtime over a durable account store.
//
// The bank owns the cluster state a program cannot see past its own
// transaction: the account set, the feature set, the clock and the stake
// history. Transactions execute instruction by instruction against that
// state and commit atomically. Epoch boundaries append a cluster-wide
// stake history entry, compound rewards onto effective delegations and
// roll the clock forward.
package bank

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/cu"
	"github.com/solopool-labs/solopool/pkg/features"
	"github.com/solopool-labs/solopool/pkg/sealevel"
)

const (
	instructionComputeBudget = 10000000000
	maxInstructionStackDepth = 64
	maxInstructionTraceLen   = 64
	slotDurationMillis       = 400
)

// GenesisConfig describes the ledger a new bank bootstraps from.
type GenesisConfig struct {
	// FaucetLamports funds the faucet account, which pays for everything
	// in a simulation and acts as the genesis vote account's withdrawer.
	FaucetLamports uint64

	// BootstrapStake is delegated to the genesis vote account with no
	// warmup, the way genesis validator stake is. It anchors the cluster
	// effective stake, so later delegations warm up against a realistic
	// base instead of activating instantly.
	BootstrapStake uint64

	SlotsPerEpoch uint64

	// ExtraPrograms lists native program ids to install beyond the core
	// set of system, stake, vote, token and metadata.
	ExtraPrograms []solana.PublicKey
}

func DefaultGenesisConfig() GenesisConfig {
	return GenesisConfig{
		FaucetLamports: 500000000000000,
		BootstrapStake: 10000000000000,
		SlotsPerEpoch:  432000,
	}
}

// Bank executes transactions against an account store and carries the
// cluster state between them. It is not safe for concurrent use.
type Bank struct {
	store         accounts.Accounts
	features      *features.Features
	rent          sealevel.SysvarRent
	epochSchedule sealevel.SysvarEpochSchedule
	clock         sealevel.SysvarClock
	stakeHistory  sealevel.SysvarStakeHistory

	faucet solana.PrivateKey
	vote   solana.PublicKey

	// delegated stake accounts the epoch boundary must visit
	stakeAccounts map[solana.PublicKey]bool
}

func NewBank(store accounts.Accounts, genesis GenesisConfig) (*Bank, error) {
	f := features.NewFeaturesDefault()
	f.EnableFeature(features.ReduceStakeWarmupCooldown, 0)
	f.EnableFeature(features.VoteStateAddVoteLatency, 0)
	f.EnableFeature(features.MoveStakeAndMoveLamportsInstructions, 0)
	f.EnableFeature(features.RequireRentExemptSplitDestination, 0)

	b := &Bank{
		store:    store,
		features: f,
		rent:     sealevel.SysvarRent{LamportsPerUint8Year: 3480, ExemptionThreshold: 2.0, BurnPercent: 50},
		epochSchedule: sealevel.SysvarEpochSchedule{
			SlotsPerEpoch:            genesis.SlotsPerEpoch,
			LeaderScheduleSlotOffset: genesis.SlotsPerEpoch,
		},
		clock:         sealevel.SysvarClock{LeaderScheduleEpoch: 1},
		stakeAccounts: make(map[solana.PublicKey]bool),
	}

	programIds := []solana.PublicKey{
		sealevel.SystemProgramAddr,
		sealevel.StakeProgramAddr,
		sealevel.VoteProgramAddr,
		sealevel.TokenProgramAddr,
		sealevel.MetaplexMetadataProgramAddr,
	}
	programIds = append(programIds, genesis.ExtraPrograms...)
	for _, programId := range programIds {
		err := b.setAccount(programId, accounts.Account{Key: programId, Lamports: 1, Owner: sealevel.NativeLoaderAddr, Executable: true})
		if err != nil {
			return nil, err
		}
	}

	sysvarAddrs := []solana.PublicKey{
		sealevel.SysvarClockAddr,
		sealevel.SysvarRentAddr,
		sealevel.SysvarStakeHistoryAddr,
		sealevel.SysvarEpochScheduleAddr,
	}
	for _, sysvarAddr := range sysvarAddrs {
		err := b.setAccount(sysvarAddr, accounts.Account{Key: sysvarAddr, Lamports: 1, Owner: sealevel.SysvarOwnerAddr})
		if err != nil {
			return nil, err
		}
	}
	b.writeSysvars()

	err := b.setAccount(sealevel.StakeProgramConfigAddr, accounts.Account{Key: sealevel.StakeProgramConfigAddr, Lamports: 1, Owner: sealevel.SystemProgramAddr})
	if err != nil {
		return nil, err
	}

	faucet, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	b.faucet = faucet
	err = b.setAccount(faucet.PublicKey(), accounts.Account{Key: faucet.PublicKey(), Lamports: genesis.FaucetLamports, Owner: sealevel.SystemProgramAddr})
	if err != nil {
		return nil, err
	}

	b.vote, err = b.createVoteAccount(faucet.PublicKey())
	if err != nil {
		return nil, err
	}

	err = b.createBootstrapStake(genesis.BootstrapStake)
	if err != nil {
		return nil, err
	}

	for _, line := range b.features.AllEnabled() {
		klog.V(1).Info(line)
	}
	klog.V(1).Infof("bank genesis: faucet %s, vote account %s, bootstrap stake %d lamports", faucet.PublicKey(), b.vote, genesis.BootstrapStake)

	return b, nil
}

// createVoteAccount installs the genesis vote account. The withdrawer
// holds its update authority the way a validator operator would.
func (b *Bank) createVoteAccount(withdrawer solana.PublicKey) (solana.PublicKey, error) {
	votePriv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, err
	}
	voteKey := votePriv.PublicKey()

	nodePriv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, err
	}
	node := nodePriv.PublicKey()

	voteState := sealevel.VersionedVoteState{Type: sealevel.VoteStateVersionCurrent}
	voteState.Current.NodePubkey = node
	voteState.Current.AuthorizedWithdrawer = withdrawer
	voteState.Current.Commission = 5
	voteState.Current.AuthorizedVoters.AuthorizedVoters.Set(sealevel.AuthorizedVoter{Epoch: 0, Pubkey: node})
	voteState.Current.EpochCredits = []sealevel.VoteEpochCredits{{Epoch: 0, Credits: 100, PrevCredits: 0}}

	data, err := sealevel.MarshalVersionedVoteState(&voteState)
	if err != nil {
		return solana.PublicKey{}, err
	}
	padded := make([]byte, sealevel.VoteStateV3Size)
	copy(padded, data)

	err = b.setAccount(voteKey, accounts.Account{Key: voteKey, Lamports: 100000000, Data: padded, Owner: sealevel.VoteProgramAddr})
	if err != nil {
		return solana.PublicKey{}, err
	}
	return voteKey, nil
}

func (b *Bank) createBootstrapStake(lamports uint64) error {
	stakePriv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return err
	}
	stakeKey := stakePriv.PublicKey()
	stakeRent := b.rent.MinimumBalance(sealevel.StakeStateV2Size)

	state := sealevel.StakeStateV2{Status: sealevel.StakeStateV2StatusStake}
	state.Stake.Meta = sealevel.Meta{
		RentExemptReserve: stakeRent,
		Authorized:        sealevel.Authorized{Staker: b.faucet.PublicKey(), Withdrawer: b.faucet.PublicKey()},
	}
	state.Stake.Stake = sealevel.Stake{
		Delegation: sealevel.Delegation{
			VoterPubkey:        b.vote,
			StakeLamports:      lamports,
			ActivationEpoch:    math.MaxUint64,
			DeactivationEpoch:  math.MaxUint64,
			WarmupCooldownRate: sealevel.DefaultWarmupCooldownRate,
		},
	}

	data, err := sealevel.MarshalStakeState(&state)
	if err != nil {
		return err
	}
	padded := make([]byte, sealevel.StakeStateV2Size)
	copy(padded, data)

	err = b.setAccount(stakeKey, accounts.Account{Key: stakeKey, Lamports: stakeRent + lamports, Data: padded, Owner: sealevel.StakeProgramAddr})
	if err != nil {
		return err
	}
	b.stakeAccounts[stakeKey] = true
	return nil
}

// ProcessTransaction executes instrs in order against the current bank
// state. Every account flagged as a signer must be covered by one of the
// provided signing keys. Account updates from the whole batch commit
// together once every instruction has succeeded; any failure discards
// them all.
func (b *Bank) ProcessTransaction(instrs []*sealevel.Instruction, signers ...solana.PrivateKey) error {
	signerKeys := make(map[solana.PublicKey]bool)
	for _, signer := range signers {
		signerKeys[signer.PublicKey()] = true
	}

	overlay := make(map[solana.PublicKey]accounts.Account)

	for instrIdx, instr := range instrs {
		for _, meta := range instr.Accounts {
			if meta.IsSigner && !signerKeys[meta.Pubkey] {
				TransactionsFailed.Inc()
				return fmt.Errorf("instruction %d: account %s is not a transaction signer", instrIdx, meta.Pubkey)
			}
		}

		err := b.executeInstruction(overlay, instr)
		InstructionsExecuted.WithLabelValues(instr.ProgramId.String()).Inc()
		if err != nil {
			TransactionsFailed.Inc()
			klog.V(1).Infof("transaction failed at instruction %d: %s (code %d)", instrIdx, err, sealevel.TranslateErrToInstrErrCode(err))
			return fmt.Errorf("instruction %d: %w", instrIdx, err)
		}
	}

	for key, acct := range overlay {
		if err := b.commitAccount(key, acct); err != nil {
			return err
		}
	}

	TransactionsProcessed.Inc()
	return nil
}

func (b *Bank) executeInstruction(overlay map[solana.PublicKey]accounts.Account, instr *sealevel.Instruction) error {
	log := new(sealevel.LogRecorder)
	execCtx := b.newExecCtx(log)

	txAcctList := []accounts.Account{b.loadAccount(overlay, instr.ProgramId)}
	seen := map[solana.PublicKey]bool{instr.ProgramId: true}
	for _, meta := range instr.Accounts {
		if seen[meta.Pubkey] {
			continue
		}
		seen[meta.Pubkey] = true
		txAcctList = append(txAcctList, b.loadAccount(overlay, meta.Pubkey))
	}

	transactionAccts := sealevel.NewTransactionAccounts(txAcctList)
	instructionAccts := sealevel.InstructionAcctsFromAccountMetas(instr.Accounts, *transactionAccts)
	execCtx.TransactionContext = sealevel.NewTestTransactionCtx(*transactionAccts, maxInstructionStackDepth, maxInstructionTraceLen)

	err := execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	for _, l := range log.Logs {
		klog.V(2).Infof("%s", l)
	}
	if err != nil {
		return err
	}

	for idx := range txAcctList {
		post, acctErr := execCtx.TransactionContext.Accounts.GetAccount(uint64(idx))
		if acctErr != nil {
			return acctErr
		}
		overlay[solana.PublicKey(post.Key)] = *post
	}
	return nil
}

func (b *Bank) newExecCtx(log *sealevel.LogRecorder) *sealevel.ExecutionCtx {
	execCtx := &sealevel.ExecutionCtx{Log: log, ComputeMeter: cu.NewComputeMeter(instructionComputeBudget), Accounts: accounts.NewMemAccounts()}
	execCtx.GlobalCtx.Features = *b.features

	sysvarAddrs := [][32]byte{
		sealevel.SysvarClockAddr,
		sealevel.SysvarRentAddr,
		sealevel.SysvarStakeHistoryAddr,
		sealevel.SysvarEpochScheduleAddr,
	}
	for _, sysvarAddr := range sysvarAddrs {
		addr := sysvarAddr
		acct := accounts.Account{Key: addr, Lamports: 1, Owner: sealevel.SysvarOwnerAddr}
		if err := execCtx.Accounts.SetAccount(&addr, &acct); err != nil {
			panic(err)
		}
	}

	sealevel.WriteRentSysvar(&execCtx.Accounts, b.rent)
	sealevel.WriteClockSysvar(&execCtx.Accounts, b.clock)
	sealevel.WriteStakeHistorySysvar(&execCtx.Accounts, b.stakeHistory)
	sealevel.WriteEpochScheduleSysvar(&execCtx.Accounts, b.epochSchedule)

	return execCtx
}

// loadAccount reads an account for transaction assembly, preferring any
// copy already written by an earlier instruction of the same batch.
// Addresses that hold nothing read back as empty system accounts, which
// is how the runtime sees them.
func (b *Bank) loadAccount(overlay map[solana.PublicKey]accounts.Account, key solana.PublicKey) accounts.Account {
	if acct, ok := overlay[key]; ok {
		return normalizeAccount(key, acct)
	}

	keyBytes := [32]byte(key)
	acct, err := b.store.GetAccount(&keyBytes)
	if err != nil || acct == nil {
		return defaultAccount(key)
	}
	return normalizeAccount(key, *acct)
}

func defaultAccount(key solana.PublicKey) accounts.Account {
	return accounts.Account{Key: key, Owner: sealevel.SystemProgramAddr}
}

// A drained account ceases to exist; its address reads back as empty
// system-owned space.
func normalizeAccount(key solana.PublicKey, acct accounts.Account) accounts.Account {
	if acct.Lamports == 0 {
		return defaultAccount(key)
	}
	return acct
}

func (b *Bank) commitAccount(key solana.PublicKey, acct accounts.Account) error {
	if acct.Lamports == 0 {
		acct = defaultAccount(key)
	}

	if acct.Lamports > 0 && acct.Owner == sealevel.StakeProgramAddr && len(acct.Data) == sealevel.StakeStateV2Size {
		b.stakeAccounts[key] = true
	} else {
		delete(b.stakeAccounts, key)
	}

	return b.setAccount(key, acct)
}

func (b *Bank) setAccount(key solana.PublicKey, acct accounts.Account) error {
	keyBytes := [32]byte(key)
	return b.store.SetAccount(&keyBytes, &acct)
}

func (b *Bank) writeSysvars() {
	sealevel.WriteRentSysvar(&b.store, b.rent)
	sealevel.WriteClockSysvar(&b.store, b.clock)
	sealevel.WriteStakeHistorySysvar(&b.store, b.stakeHistory)
	sealevel.WriteEpochScheduleSysvar(&b.store, b.epochSchedule)
}

// AdvanceEpoch closes the current epoch and opens the next one. The
// cluster-wide activation state of every delegation as of the closing
// epoch is recorded in the stake history, then rewardRate of each
// delegation's effective stake is paid out and compounded. Returns the
// lamports paid in rewards.
func (b *Bank) AdvanceEpoch(rewardRate float64) (uint64, error) {
	closing := b.clock.Epoch
	rateEpoch := b.rateActivationEpoch()

	var clusterStake sealevel.StakeHistoryEntry
	var rewardsPaid uint64

	for stakeKey := range b.stakeAccounts {
		keyBytes := [32]byte(stakeKey)
		acct, err := b.store.GetAccount(&keyBytes)
		if err != nil || acct == nil || acct.Lamports == 0 {
			continue
		}

		state, err := sealevel.UnmarshalStakeState(acct.Data)
		if err != nil || state.Status != sealevel.StakeStateV2StatusStake {
			continue
		}

		delegation := &state.Stake.Stake.Delegation
		status := delegation.StakeActivatingAndDeactivating(closing, b.stakeHistory, rateEpoch)
		clusterStake.Effective += status.Effective
		clusterStake.Activating += status.Activating
		clusterStake.Deactivating += status.Deactivating

		reward := uint64(float64(status.Effective) * rewardRate)
		if reward == 0 {
			continue
		}

		// rewards compound into the delegation and are effective
		// immediately, never subject to warmup
		delegation.StakeLamports += reward
		acct.Lamports += reward

		data, err := sealevel.MarshalStakeState(state)
		if err != nil {
			return rewardsPaid, err
		}
		padded := make([]byte, sealevel.StakeStateV2Size)
		copy(padded, data)
		acct.Data = padded

		if err := b.store.SetAccount(&keyBytes, acct); err != nil {
			return rewardsPaid, err
		}
		rewardsPaid += reward
	}

	b.stakeHistory.AddEntry(closing, clusterStake)

	b.clock.Epoch++
	b.clock.Slot = b.epochSchedule.FirstSlotInEpoch(b.clock.Epoch)
	b.clock.LeaderScheduleEpoch = b.clock.Epoch + 1
	b.clock.UnixTimestamp += int64(b.epochSchedule.SlotsPerEpoch) * slotDurationMillis / 1000
	b.clock.EpochStartTimestamp = b.clock.UnixTimestamp

	b.writeSysvars()

	EpochRewardsPaid.Add(float64(rewardsPaid))
	klog.V(1).Infof("epoch %d closed: effective stake %d, activating %d, deactivating %d, rewards paid %d",
		closing, clusterStake.Effective, clusterStake.Activating, clusterStake.Deactivating, rewardsPaid)

	return rewardsPaid, nil
}

// rateActivationEpoch mirrors the epoch the stake program itself uses
// when classifying delegations against stake history.
func (b *Bank) rateActivationEpoch() *uint64 {
	activationSlot, active := b.features.ActivationSlot(features.ReduceStakeWarmupCooldown)
	if !active {
		return nil
	}
	epoch := b.epochSchedule.GetEpoch(activationSlot)
	return &epoch
}

// FundAccount transfers lamports from the faucet.
func (b *Bank) FundAccount(to solana.PublicKey, lamports uint64) error {
	instr := sealevel.NewTransferInstruction(b.faucet.PublicKey(), to, lamports)
	return b.ProcessTransaction([]*sealevel.Instruction{instr}, b.faucet)
}

func (b *Bank) Clock() sealevel.SysvarClock {
	return b.clock
}

func (b *Bank) Rent() sealevel.SysvarRent {
	return b.rent
}

func (b *Bank) StakeHistory() sealevel.SysvarStakeHistory {
	return b.stakeHistory
}

// Faucet returns the genesis faucet key. It doubles as the vote
// account's authorized withdrawer.
func (b *Bank) Faucet() solana.PrivateKey {
	return b.faucet
}

func (b *Bank) VoteAccount() solana.PublicKey {
	return b.vote
}

// Account reads an account from the store. The bool reports whether the
// account exists.
func (b *Bank) Account(key solana.PublicKey) (accounts.Account, bool) {
	keyBytes := [32]byte(key)
	acct, err := b.store.GetAccount(&keyBytes)
	if err != nil || acct == nil || acct.Lamports == 0 {
		return defaultAccount(key), false
	}
	return *acct, true
}
