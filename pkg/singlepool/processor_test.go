package singlepool

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/cu"
	"github.com/solopool-labs/solopool/pkg/features"
	"github.com/solopool-labs/solopool/pkg/sealevel"
)

const slotsPerEpoch = 432000

func testRent() sealevel.SysvarRent {
	return sealevel.SysvarRent{LamportsPerUint8Year: 3480, ExemptionThreshold: 2.0, BurnPercent: 50}
}

// poolTestEnv carries account state across instructions the way a bank
// carries it across transactions: post-execution states are committed back
// on success and dropped on failure, and accounts drained to zero lamports
// are purged.
type poolTestEnv struct {
	t            *testing.T
	log          *sealevel.LogRecorder
	clock        sealevel.SysvarClock
	stakeHistory sealevel.SysvarStakeHistory
	store        map[solana.PublicKey]accounts.Account
}

func newPoolTestEnv(t *testing.T) *poolTestEnv {
	env := &poolTestEnv{
		t:     t,
		log:   new(sealevel.LogRecorder),
		store: make(map[solana.PublicKey]accounts.Account),
	}

	programIds := []solana.PublicKey{
		sealevel.SystemProgramAddr,
		sealevel.StakeProgramAddr,
		sealevel.TokenProgramAddr,
		sealevel.MetaplexMetadataProgramAddr,
		ProgramAddr,
	}
	for _, programId := range programIds {
		env.store[programId] = accounts.Account{Key: programId, Lamports: 1, Owner: sealevel.NativeLoaderAddr, Executable: true}
	}

	sysvarAddrs := []solana.PublicKey{
		sealevel.SysvarClockAddr,
		sealevel.SysvarRentAddr,
		sealevel.SysvarStakeHistoryAddr,
		sealevel.SysvarEpochScheduleAddr,
	}
	for _, sysvarAddr := range sysvarAddrs {
		env.store[sysvarAddr] = accounts.Account{Key: sysvarAddr, Lamports: 1, Owner: sealevel.SysvarOwnerAddr}
	}

	env.store[sealevel.StakeProgramConfigAddr] = accounts.Account{Key: sealevel.StakeProgramConfigAddr, Lamports: 1, Owner: sealevel.SystemProgramAddr}

	return env
}

func (env *poolTestEnv) newExecCtx() *sealevel.ExecutionCtx {
	accts := accounts.NewMemAccounts()
	execCtx := sealevel.ExecutionCtx{Log: env.log, ComputeMeter: cu.NewComputeMeter(10000000000), Accounts: accts}

	f := features.NewFeaturesDefault()
	f.EnableFeature(features.ReduceStakeWarmupCooldown, 0)
	f.EnableFeature(features.VoteStateAddVoteLatency, 0)
	f.EnableFeature(features.MoveStakeAndMoveLamportsInstructions, 0)
	f.EnableFeature(features.RequireRentExemptSplitDestination, 0)
	execCtx.GlobalCtx.Features = *f

	for _, sysvarAddr := range [][32]byte{sealevel.SysvarClockAddr, sealevel.SysvarRentAddr, sealevel.SysvarStakeHistoryAddr, sealevel.SysvarEpochScheduleAddr} {
		addr := sysvarAddr
		acct := accounts.Account{Key: addr, Lamports: 1, Owner: sealevel.SysvarOwnerAddr}
		err := execCtx.Accounts.SetAccount(&addr, &acct)
		require.NoError(env.t, err)
	}

	sealevel.WriteRentSysvar(&execCtx.Accounts, testRent())
	sealevel.WriteClockSysvar(&execCtx.Accounts, env.clock)
	sealevel.WriteStakeHistorySysvar(&execCtx.Accounts, env.stakeHistory)
	sealevel.WriteEpochScheduleSysvar(&execCtx.Accounts, sealevel.SysvarEpochSchedule{SlotsPerEpoch: slotsPerEpoch, LeaderScheduleSlotOffset: slotsPerEpoch})

	return &execCtx
}

func (env *poolTestEnv) execute(instr *sealevel.Instruction) error {
	execCtx := env.newExecCtx()

	programAcct, ok := env.store[instr.ProgramId]
	if !ok {
		env.t.Fatalf("missing program account %s", instr.ProgramId)
	}

	txAcctList := []accounts.Account{programAcct}
	seen := map[solana.PublicKey]bool{instr.ProgramId: true}
	for _, meta := range instr.Accounts {
		if seen[meta.Pubkey] {
			continue
		}
		seen[meta.Pubkey] = true

		acct, ok := env.store[meta.Pubkey]
		if !ok {
			acct = accounts.Account{Key: meta.Pubkey, Owner: sealevel.SystemProgramAddr}
		}
		txAcctList = append(txAcctList, acct)
	}

	transactionAccts := sealevel.NewTransactionAccounts(txAcctList)
	instructionAccts := sealevel.InstructionAcctsFromAccountMetas(instr.Accounts, *transactionAccts)
	execCtx.TransactionContext = sealevel.NewTestTransactionCtx(*transactionAccts, 5, 64)

	err := execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	if err != nil {
		return err
	}

	for idx := range txAcctList {
		post, acctErr := execCtx.TransactionContext.Accounts.GetAccount(uint64(idx))
		require.NoError(env.t, acctErr)

		key := solana.PublicKey(post.Key)
		if post.Lamports == 0 {
			delete(env.store, key)
		} else {
			env.store[key] = *post
		}
	}
	return nil
}

func (env *poolTestEnv) executeAll(instrs []*sealevel.Instruction) {
	for _, instr := range instrs {
		err := env.execute(instr)
		require.NoError(env.t, err)
	}
}

func (env *poolTestEnv) advanceEpoch() {
	env.clock.Epoch++
	env.clock.Slot += slotsPerEpoch
	env.clock.EpochStartTimestamp = env.clock.UnixTimestamp
}

func (env *poolTestEnv) seedSystemAccount(key solana.PublicKey, lamports uint64) {
	env.store[key] = accounts.Account{Key: key, Lamports: lamports, Owner: sealevel.SystemProgramAddr}
}

func (env *poolTestEnv) seedVoteAccount(withdrawer solana.PublicKey) solana.PublicKey {
	voteKey := randomPubkey(env.t)
	node := randomPubkey(env.t)

	voteState := sealevel.VersionedVoteState{Type: sealevel.VoteStateVersionCurrent}
	voteState.Current.NodePubkey = node
	voteState.Current.AuthorizedWithdrawer = withdrawer
	voteState.Current.Commission = 5
	voteState.Current.AuthorizedVoters.AuthorizedVoters.Set(sealevel.AuthorizedVoter{Epoch: 0, Pubkey: node})
	voteState.Current.EpochCredits = []sealevel.VoteEpochCredits{{Epoch: 0, Credits: 100, PrevCredits: 0}}

	data, err := sealevel.MarshalVersionedVoteState(&voteState)
	require.NoError(env.t, err)
	padded := make([]byte, sealevel.VoteStateV3Size)
	copy(padded, data)

	env.store[voteKey] = accounts.Account{Key: voteKey, Lamports: 100000000, Data: padded, Owner: sealevel.VoteProgramAddr}
	return voteKey
}

// seedBlankStakeAccount creates the rent-funded uninitialized stake account a
// withdrawer must bring for the split destination.
func (env *poolTestEnv) seedBlankStakeAccount() solana.PublicKey {
	key := randomPubkey(env.t)
	rent := testRent()
	env.store[key] = accounts.Account{
		Key:      key,
		Lamports: rent.MinimumBalance(sealevel.StakeStateV2Size),
		Data:     make([]byte, sealevel.StakeStateV2Size),
		Owner:    sealevel.StakeProgramAddr,
	}
	return key
}

func (env *poolTestEnv) seedTokenAccount(mint solana.PublicKey, owner solana.PublicKey) solana.PublicKey {
	key := randomPubkey(env.t)
	rent := testRent()
	env.store[key] = accounts.Account{
		Key:      key,
		Lamports: rent.MinimumBalance(sealevel.TokenAccountSize),
		Data:     make([]byte, sealevel.TokenAccountSize),
		Owner:    sealevel.TokenProgramAddr,
	}

	err := env.execute(sealevel.NewTokenInitializeAccountInstruction(key, mint, owner))
	require.NoError(env.t, err)
	return key
}

// creditStakeRewards simulates an epoch rewards payout plus any loose
// lamports (MEV tips, donations) landing on a stake account.
func (env *poolTestEnv) creditStakeRewards(stakeAddr solana.PublicKey, rewards uint64, donation uint64) {
	acct, ok := env.store[stakeAddr]
	require.True(env.t, ok)

	state, err := sealevel.UnmarshalStakeState(acct.Data)
	require.NoError(env.t, err)
	require.Equal(env.t, uint32(sealevel.StakeStateV2StatusStake), state.Status)

	state.Stake.Stake.Delegation.StakeLamports += rewards
	data, err := sealevel.MarshalStakeState(state)
	require.NoError(env.t, err)

	padded := make([]byte, sealevel.StakeStateV2Size)
	copy(padded, data)
	acct.Data = padded
	acct.Lamports += rewards + donation
	env.store[stakeAddr] = acct
}

func (env *poolTestEnv) stakeState(addr solana.PublicKey) *sealevel.StakeStateV2 {
	acct, ok := env.store[addr]
	require.True(env.t, ok, "stake account %s does not exist", addr)

	state, err := sealevel.UnmarshalStakeState(acct.Data)
	require.NoError(env.t, err)
	return state
}

func (env *poolTestEnv) lamports(addr solana.PublicKey) uint64 {
	return env.store[addr].Lamports
}

func (env *poolTestEnv) tokenBalance(addr solana.PublicKey) uint64 {
	acct, ok := env.store[addr]
	require.True(env.t, ok)

	tokenAcct, err := sealevel.UnmarshalTokenAccount(acct.Data)
	require.NoError(env.t, err)
	return tokenAcct.Amount
}

func (env *poolTestEnv) mintSupply(addr solana.PublicKey) uint64 {
	acct, ok := env.store[addr]
	require.True(env.t, ok)

	mint, err := sealevel.UnmarshalTokenMint(acct.Data)
	require.NoError(env.t, err)
	return mint.Supply
}

func Test_Single_Pool_Lifecycle(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()
	stakeRent := rent.MinimumBalance(sealevel.StakeStateV2Size)

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	withdrawer := randomPubkey(t)
	vote := env.seedVoteAccount(withdrawer)

	pool := FindPoolAddress(vote)
	mainStake := FindPoolStakeAddress(pool)
	onRamp := FindPoolOnRampAddress(pool)
	mint := FindPoolMintAddress(pool)
	stakeAuthority := FindPoolStakeAuthorityAddress(pool)

	// stand the pool up at epoch 0
	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))

	poolAcct := env.store[pool]
	assert.Equal(t, [32]byte(ProgramAddr), poolAcct.Owner)
	record, err := UnmarshalPool(poolAcct.Data)
	assert.NoError(t, err)
	assert.Equal(t, PoolAccountTypePool, record.AccountType)
	assert.Equal(t, vote, record.VoteAccountAddress)

	mainState := env.stakeState(mainStake)
	assert.Equal(t, uint32(sealevel.StakeStateV2StatusStake), mainState.Status)
	assert.Equal(t, uint64(1000000000), mainState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, vote, mainState.Stake.Stake.Delegation.VoterPubkey)
	assert.Equal(t, uint64(0), mainState.Stake.Stake.Delegation.ActivationEpoch)
	assert.Equal(t, stakeAuthority, mainState.Stake.Meta.Authorized.Staker)
	assert.Equal(t, stakeAuthority, mainState.Stake.Meta.Authorized.Withdrawer)

	onRampState := env.stakeState(onRamp)
	assert.Equal(t, uint32(sealevel.StakeStateV2StatusInitialized), onRampState.Status)
	assert.Equal(t, stakeAuthority, onRampState.Initialized.Meta.Authorized.Staker)

	assert.Equal(t, uint64(0), env.mintSupply(mint))

	metadataAcct := env.store[FindMetadataAddress(mint)]
	assert.Equal(t, [32]byte(sealevel.MetaplexMetadataProgramAddr), metadataAcct.Owner)
	assert.True(t, bytes.Contains(metadataAcct.Data, []byte("SPL Single Pool ")))

	// a user creates and delegates a stake account at the pool's default
	// deposit address, still at epoch 0
	userStake := FindDefaultDepositAddress(pool, wallet)
	env.executeAll(CreateAndDelegateUserStakeInstructions(vote, wallet, rent, 5000000000))

	userState := env.stakeState(userStake)
	assert.Equal(t, uint64(5000000000), userState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, wallet, userState.Stake.Meta.Authorized.Staker)

	// both delegations become fully active at the epoch boundary
	env.advanceEpoch()

	userToken := env.seedTokenAccount(mint, wallet)
	walletPreDeposit := env.lamports(wallet)
	env.executeAll(DepositInstructions(pool, wallet, userStake, userToken, wallet))

	// first deposit mints one to one; the merged rent reserve comes back
	assert.Equal(t, uint64(5000000000), env.tokenBalance(userToken))
	assert.Equal(t, uint64(5000000000), env.mintSupply(mint))

	mainState = env.stakeState(mainStake)
	assert.Equal(t, uint64(6000000000), mainState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, stakeRent+6000000000, env.lamports(mainStake))
	assert.Equal(t, walletPreDeposit+stakeRent, env.lamports(wallet))

	_, merged := env.store[userStake]
	assert.False(t, merged, "user stake account should be drained and purged after merge")

	// rewards land on the main account: 1 SOL through the delegation and
	// 2 SOL of loose lamports
	env.creditStakeRewards(mainStake, 1000000000, 2000000000)

	err = env.execute(NewReplenishPoolInstruction(vote))
	assert.NoError(t, err)

	// the sweep moved the loose lamports onto the warmup path
	assert.Equal(t, stakeRent+7000000000, env.lamports(mainStake))
	onRampState = env.stakeState(onRamp)
	assert.Equal(t, uint32(sealevel.StakeStateV2StatusStake), onRampState.Status)
	assert.Equal(t, uint64(2000000000), onRampState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, env.clock.Epoch, onRampState.Stake.Stake.Delegation.ActivationEpoch)

	// replenish is idempotent within the epoch
	err = env.execute(NewReplenishPoolInstruction(vote))
	assert.NoError(t, err)
	assert.Equal(t, stakeRent+7000000000, env.lamports(mainStake))
	assert.Equal(t, stakeRent+2000000000, env.lamports(onRamp))

	// next epoch the on-ramp is fully active and gets folded into the main
	// account
	env.advanceEpoch()
	err = env.execute(NewReplenishPoolInstruction(vote))
	assert.NoError(t, err)

	mainState = env.stakeState(mainStake)
	assert.Equal(t, uint64(9000000000), mainState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, stakeRent+9000000000, env.lamports(mainStake))

	onRampState = env.stakeState(onRamp)
	assert.Equal(t, uint32(sealevel.StakeStateV2StatusInitialized), onRampState.Status)
	assert.Equal(t, stakeRent, env.lamports(onRamp))

	// withdrawing 2 of the 5 outstanding tokens redeems the appreciated
	// rate: 2 * 8 / 5 SOL of the tokenized stake
	blankStake := env.seedBlankStakeAccount()
	env.executeAll(WithdrawInstructions(pool, wallet, blankStake, userToken, wallet, 2000000000))

	assert.Equal(t, uint64(3000000000), env.tokenBalance(userToken))
	assert.Equal(t, uint64(3000000000), env.mintSupply(mint))

	withdrawnState := env.stakeState(blankStake)
	assert.Equal(t, uint32(sealevel.StakeStateV2StatusStake), withdrawnState.Status)
	assert.Equal(t, uint64(3200000000), withdrawnState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, vote, withdrawnState.Stake.Stake.Delegation.VoterPubkey)
	assert.Equal(t, wallet, withdrawnState.Stake.Meta.Authorized.Staker)
	assert.Equal(t, wallet, withdrawnState.Stake.Meta.Authorized.Withdrawer)

	mainState = env.stakeState(mainStake)
	assert.Equal(t, uint64(5800000000), mainState.Stake.Stake.Delegation.StakeLamports)
}

func Test_Single_Pool_Initialize_Twice_Fails(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))

	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))

	err := env.execute(NewInitializePoolInstruction(vote))
	assert.Equal(t, PoolErrPoolAlreadyInitialized, err)

	pool := FindPoolAddress(vote)
	err = env.execute(NewInitializePoolOnRampInstruction(pool))
	assert.Equal(t, PoolErrPoolAlreadyInitialized, err)
}

func Test_Single_Pool_Initialize_Underfunded_Fails(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)

	// fund everything except the minimum pool balance on the stake account
	err := env.execute(sealevel.NewTransferInstruction(wallet, pool, rent.MinimumBalance(PoolAccountSize)))
	require.NoError(t, err)
	err = env.execute(sealevel.NewTransferInstruction(wallet, FindPoolStakeAddress(pool), rent.MinimumBalance(sealevel.StakeStateV2Size)))
	require.NoError(t, err)
	err = env.execute(sealevel.NewTransferInstruction(wallet, FindPoolMintAddress(pool), rent.MinimumBalance(sealevel.TokenMintSize)))
	require.NoError(t, err)

	err = env.execute(NewInitializePoolInstruction(vote))
	assert.Equal(t, PoolErrWrongRentAmount, err)
}

func Test_Single_Pool_Deposit_Same_Epoch_Activation(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()
	stakeRent := rent.MinimumBalance(sealevel.StakeStateV2Size)

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)
	mint := FindPoolMintAddress(pool)

	// pool and user stake both delegated at epoch 0, both still activating
	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))
	userStake := FindDefaultDepositAddress(pool, wallet)
	env.executeAll(CreateAndDelegateUserStakeInstructions(vote, wallet, rent, 3000000000))

	userToken := env.seedTokenAccount(mint, wallet)
	env.executeAll(DepositInstructions(pool, wallet, userStake, userToken, wallet))

	// an activation epoch merge folds the source rent reserve into the
	// delegation, so the depositor is credited for it too
	assert.Equal(t, 3000000000+stakeRent, env.tokenBalance(userToken))

	mainState := env.stakeState(FindPoolStakeAddress(pool))
	assert.Equal(t, 4000000000+stakeRent, mainState.Stake.Stake.Delegation.StakeLamports)
}

func Test_Single_Pool_Deposit_Mismatched_Activation_Fails(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)
	mint := FindPoolMintAddress(pool)

	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))
	env.advanceEpoch()

	// the pool is active but the user stake only starts activating now
	userStake := FindDefaultDepositAddress(pool, wallet)
	env.executeAll(CreateAndDelegateUserStakeInstructions(vote, wallet, rent, 3000000000))

	userToken := env.seedTokenAccount(mint, wallet)
	stakeAuthority := FindPoolStakeAuthorityAddress(pool)

	err := env.execute(sealevel.NewStakeAuthorizeInstruction(userStake, wallet, stakeAuthority, sealevel.StakeAuthorizeStaker, nil))
	require.NoError(t, err)
	err = env.execute(sealevel.NewStakeAuthorizeInstruction(userStake, wallet, stakeAuthority, sealevel.StakeAuthorizeWithdrawer, nil))
	require.NoError(t, err)

	err = env.execute(NewDepositStakeInstruction(pool, userStake, userToken, wallet))
	assert.Equal(t, PoolErrWrongStakeStake, err)
}

func Test_Single_Pool_Deposit_Unauthorized_Stake_Fails(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)
	mint := FindPoolMintAddress(pool)

	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))
	userStake := FindDefaultDepositAddress(pool, wallet)
	env.executeAll(CreateAndDelegateUserStakeInstructions(vote, wallet, rent, 3000000000))

	userToken := env.seedTokenAccount(mint, wallet)

	// deposit without handing the authorities over first
	err := env.execute(NewDepositStakeInstruction(pool, userStake, userToken, wallet))
	assert.Equal(t, PoolErrWrongStakeStake, err)
}

func Test_Single_Pool_Deposit_Pool_Account_Usage_Fails(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)
	mint := FindPoolMintAddress(pool)

	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))
	userToken := env.seedTokenAccount(mint, wallet)

	// the pool's own stake accounts cannot be passed as the deposit source
	err := env.execute(NewDepositStakeInstruction(pool, FindPoolStakeAddress(pool), userToken, wallet))
	assert.Equal(t, PoolErrInvalidPoolStakeAccountUsage, err)

	err = env.execute(NewDepositStakeInstruction(pool, FindPoolOnRampAddress(pool), userToken, wallet))
	assert.Equal(t, PoolErrInvalidPoolStakeAccountUsage, err)
}

func Test_Single_Pool_Withdraw_Limits(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)
	mint := FindPoolMintAddress(pool)

	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))
	userStake := FindDefaultDepositAddress(pool, wallet)
	env.executeAll(CreateAndDelegateUserStakeInstructions(vote, wallet, rent, 5000000000))
	env.advanceEpoch()

	userToken := env.seedTokenAccount(mint, wallet)
	env.executeAll(DepositInstructions(pool, wallet, userStake, userToken, wallet))

	// a zero withdrawal buys zero stake
	blankStake := env.seedBlankStakeAccount()
	err := env.execute(NewWithdrawStakeInstruction(pool, blankStake, userToken, wallet, 0))
	assert.Equal(t, PoolErrWithdrawalTooSmall, err)

	// requesting more than the whole token supply fails up front, it is
	// never clamped to the balance
	err = env.execute(NewWithdrawStakeInstruction(pool, blankStake, userToken, wallet, 6000000000))
	assert.Equal(t, PoolErrWithdrawalTooLarge, err)
}

func Test_Single_Pool_Deposit_Withdraw_Round_Trip(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()
	stakeRent := rent.MinimumBalance(sealevel.StakeStateV2Size)

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)
	mint := FindPoolMintAddress(pool)
	mainStake := FindPoolStakeAddress(pool)

	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))
	userStake := FindDefaultDepositAddress(pool, wallet)
	env.executeAll(CreateAndDelegateUserStakeInstructions(vote, wallet, rent, 5000000000))
	env.advanceEpoch()

	userToken := env.seedTokenAccount(mint, wallet)
	env.executeAll(DepositInstructions(pool, wallet, userStake, userToken, wallet))
	require.Equal(t, uint64(5000000000), env.tokenBalance(userToken))

	// burning the whole balance returns exactly the stake deposited and
	// leaves the pool holding exactly its locked minimum
	blankStake := env.seedBlankStakeAccount()
	env.executeAll(WithdrawInstructions(pool, wallet, blankStake, userToken, wallet, 5000000000))

	assert.Equal(t, uint64(0), env.tokenBalance(userToken))
	assert.Equal(t, uint64(0), env.mintSupply(mint))

	returnedState := env.stakeState(blankStake)
	assert.Equal(t, uint64(5000000000), returnedState.Stake.Stake.Delegation.StakeLamports)

	mainState := env.stakeState(mainStake)
	assert.Equal(t, uint64(1000000000), mainState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, stakeRent+1000000000, env.lamports(mainStake))
}

func Test_Single_Pool_Rewards_Split_Proportionally(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	alice := randomPubkey(t)
	bob := randomPubkey(t)
	env.seedSystemAccount(alice, 100000000000)
	env.seedSystemAccount(bob, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)
	mint := FindPoolMintAddress(pool)
	mainStake := FindPoolStakeAddress(pool)

	env.executeAll(InitializeInstructions(vote, alice, rent, 1))
	env.executeAll(CreateAndDelegateUserStakeInstructions(vote, alice, rent, 2000000000))
	env.executeAll(CreateAndDelegateUserStakeInstructions(vote, bob, rent, 6000000000))
	env.advanceEpoch()

	aliceToken := env.seedTokenAccount(mint, alice)
	bobToken := env.seedTokenAccount(mint, bob)
	env.executeAll(DepositInstructions(pool, alice, FindDefaultDepositAddress(pool, alice), aliceToken, alice))
	env.executeAll(DepositInstructions(pool, bob, FindDefaultDepositAddress(pool, bob), bobToken, bob))

	// no rewards yet, so both deposits mint one to one
	require.Equal(t, uint64(2000000000), env.tokenBalance(aliceToken))
	require.Equal(t, uint64(6000000000), env.tokenBalance(bobToken))

	// 0.8 SOL of rewards against 8 SOL of tokenized stake: deposits in
	// ratio 1:3 earn rewards in ratio 1:3
	env.creditStakeRewards(mainStake, 800000000, 0)

	aliceBlank := env.seedBlankStakeAccount()
	env.executeAll(WithdrawInstructions(pool, alice, aliceBlank, aliceToken, alice, 2000000000))
	bobBlank := env.seedBlankStakeAccount()
	env.executeAll(WithdrawInstructions(pool, bob, bobBlank, bobToken, bob, 6000000000))

	aliceOut := env.stakeState(aliceBlank).Stake.Stake.Delegation.StakeLamports
	bobOut := env.stakeState(bobBlank).Stake.Stake.Delegation.StakeLamports
	assert.Equal(t, uint64(2200000000), aliceOut)
	assert.Equal(t, uint64(6600000000), bobOut)

	assert.Equal(t, uint64(0), env.mintSupply(mint))
	mainState := env.stakeState(mainStake)
	assert.Equal(t, uint64(1000000000), mainState.Stake.Stake.Delegation.StakeLamports)
}

func Test_Single_Pool_Replenish_Without_OnRamp_Fails(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)

	// create the pool without its on-ramp, as pools predating on-ramps look
	err := env.execute(sealevel.NewTransferInstruction(wallet, pool, rent.MinimumBalance(PoolAccountSize)))
	require.NoError(t, err)
	minimumBalance := MinimumPoolBalance(1)
	err = env.execute(sealevel.NewTransferInstruction(wallet, FindPoolStakeAddress(pool), rent.MinimumBalance(sealevel.StakeStateV2Size)+minimumBalance))
	require.NoError(t, err)
	err = env.execute(sealevel.NewTransferInstruction(wallet, FindPoolMintAddress(pool), rent.MinimumBalance(sealevel.TokenMintSize)))
	require.NoError(t, err)
	err = env.execute(NewInitializePoolInstruction(vote))
	require.NoError(t, err)

	err = env.execute(NewReplenishPoolInstruction(vote))
	assert.Equal(t, PoolErrOnRampDoesntExist, err)

	// creating the on-ramp afterwards repairs the pool
	env.executeAll(CreatePoolOnRampInstructions(pool, wallet, rent))
	err = env.execute(NewReplenishPoolInstruction(vote))
	assert.NoError(t, err)
}

func Test_Single_Pool_Replenish_Redelegates_Main(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	vote := env.seedVoteAccount(randomPubkey(t))
	pool := FindPoolAddress(vote)
	mainStake := FindPoolStakeAddress(pool)

	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))
	env.advanceEpoch()

	// force the main account into an undelegated state, as if it had been
	// deactivated by a fleeting feature or runtime quirk
	acct := env.store[mainStake]
	state, err := sealevel.UnmarshalStakeState(acct.Data)
	require.NoError(t, err)
	meta := state.Stake.Meta
	undelegated := sealevel.StakeStateV2{Status: sealevel.StakeStateV2StatusInitialized}
	undelegated.Initialized.Meta = meta
	data, err := sealevel.MarshalStakeState(&undelegated)
	require.NoError(t, err)
	padded := make([]byte, sealevel.StakeStateV2Size)
	copy(padded, data)
	acct.Data = padded
	env.store[mainStake] = acct

	err = env.execute(NewReplenishPoolInstruction(vote))
	assert.NoError(t, err)

	mainState := env.stakeState(mainStake)
	assert.Equal(t, uint32(sealevel.StakeStateV2StatusStake), mainState.Status)
	assert.Equal(t, vote, mainState.Stake.Stake.Delegation.VoterPubkey)
	assert.Equal(t, env.clock.Epoch, mainState.Stake.Stake.Delegation.ActivationEpoch)
}

func Test_Single_Pool_Update_Token_Metadata(t *testing.T) {
	env := newPoolTestEnv(t)
	rent := testRent()

	wallet := randomPubkey(t)
	env.seedSystemAccount(wallet, 100000000000)
	withdrawer := randomPubkey(t)
	env.seedSystemAccount(withdrawer, 1000000000)
	vote := env.seedVoteAccount(withdrawer)
	pool := FindPoolAddress(vote)
	mint := FindPoolMintAddress(pool)

	env.executeAll(InitializeInstructions(vote, wallet, rent, 1))

	err := env.execute(NewUpdateTokenMetadataInstruction(vote, withdrawer, "My Fine Pool", "FINE", "https://example.org/pool.json"))
	assert.NoError(t, err)

	metadataAcct := env.store[FindMetadataAddress(mint)]
	assert.True(t, bytes.Contains(metadataAcct.Data, []byte("My Fine Pool")))

	// only the vote account's withdrawer may update
	intruder := randomPubkey(t)
	env.seedSystemAccount(intruder, 1000000000)
	err = env.execute(NewUpdateTokenMetadataInstruction(vote, intruder, "Stolen Pool", "EVIL", ""))
	assert.Equal(t, PoolErrInvalidMetadataSigner, err)

	// the right key must actually sign
	unsigned := NewUpdateTokenMetadataInstruction(vote, withdrawer, "My Fine Pool", "FINE", "")
	for idx := range unsigned.Accounts {
		unsigned.Accounts[idx].IsSigner = false
	}
	err = env.execute(unsigned)
	assert.Equal(t, PoolErrSignatureMissing, err)
}
