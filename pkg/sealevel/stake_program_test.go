package sealevel

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/cu"
	"github.com/solopool-labs/solopool/pkg/features"
)

func stakeProgramAccount() accounts.Account {
	return accounts.Account{Key: StakeProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}
}

func stakeTestRent() SysvarRent {
	return SysvarRent{LamportsPerUint8Year: 3480, ExemptionThreshold: 2.0, BurnPercent: 50}
}

func stakeTestRentExemptReserve() uint64 {
	rent := stakeTestRent()
	return rent.MinimumBalance(StakeStateV2Size)
}

func stakeTestKey(t *testing.T) solana.PublicKey {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return privKey.PublicKey()
}

// stakeTestExecCtx builds an execution context with the sysvars and feature
// set the stake handlers consult. The clock is caller-supplied so tests can
// position themselves relative to activation and deactivation epochs.
func stakeTestExecCtx(t *testing.T, clock SysvarClock) *ExecutionCtx {
	accts := accounts.NewMemAccounts()
	execCtx := ExecutionCtx{Log: new(LogRecorder), ComputeMeter: cu.NewComputeMeter(10000000000), Accounts: accts}

	f := features.NewFeaturesDefault()
	f.EnableFeature(features.ReduceStakeWarmupCooldown, 0)
	f.EnableFeature(features.VoteStateAddVoteLatency, 0)
	f.EnableFeature(features.MoveStakeAndMoveLamportsInstructions, 0)
	f.EnableFeature(features.RequireRentExemptSplitDestination, 0)
	execCtx.GlobalCtx.Features = *f

	for _, sysvarAddr := range [][32]byte{SysvarClockAddr, SysvarRentAddr, SysvarStakeHistoryAddr, SysvarEpochScheduleAddr} {
		addr := sysvarAddr
		acct := accounts.Account{Key: addr, Lamports: 1, Owner: SysvarOwnerAddr}
		err := execCtx.Accounts.SetAccount(&addr, &acct)
		require.NoError(t, err)
	}

	WriteRentSysvar(&execCtx.Accounts, stakeTestRent())
	WriteClockSysvar(&execCtx.Accounts, clock)
	WriteStakeHistorySysvar(&execCtx.Accounts, SysvarStakeHistory{})
	WriteEpochScheduleSysvar(&execCtx.Accounts, SysvarEpochSchedule{SlotsPerEpoch: 432000, LeaderScheduleSlotOffset: 432000})

	return &execCtx
}

// sysvarTxAccount pulls the serialized sysvar account out of the accounts db
// so it can be listed among the transaction accounts.
func sysvarTxAccount(t *testing.T, execCtx *ExecutionCtx, addr solana.PublicKey) accounts.Account {
	key := [32]byte(addr)
	acct, err := execCtx.Accounts.GetAccount(&key)
	require.NoError(t, err)
	return *acct
}

func paddedStakeState(t *testing.T, state *StakeStateV2) []byte {
	data, err := MarshalStakeState(state)
	require.NoError(t, err)
	padded := make([]byte, StakeStateV2Size)
	copy(padded, data)
	return padded
}

func initializedStakeData(t *testing.T, staker solana.PublicKey, withdrawer solana.PublicKey) []byte {
	state := StakeStateV2{Status: StakeStateV2StatusInitialized}
	state.Initialized.Meta = Meta{
		RentExemptReserve: stakeTestRentExemptReserve(),
		Authorized:        Authorized{Staker: staker, Withdrawer: withdrawer},
	}
	return paddedStakeState(t, &state)
}

// activeStakeData builds a delegated stake account. With an activation epoch
// in the past, no deactivation and an empty stake history the delegation
// classifies as fully active.
func activeStakeData(t *testing.T, staker solana.PublicKey, withdrawer solana.PublicKey, voter solana.PublicKey, stakeLamports uint64) []byte {
	state := StakeStateV2{Status: StakeStateV2StatusStake}
	state.Stake.Meta = Meta{
		RentExemptReserve: stakeTestRentExemptReserve(),
		Authorized:        Authorized{Staker: staker, Withdrawer: withdrawer},
	}
	state.Stake.Stake = Stake{
		Delegation: Delegation{
			VoterPubkey:        voter,
			StakeLamports:      stakeLamports,
			ActivationEpoch:    0,
			DeactivationEpoch:  math.MaxUint64,
			WarmupCooldownRate: DefaultWarmupCooldownRate,
		},
		CreditsObserved: 100,
	}
	return paddedStakeState(t, &state)
}

func stakeTestVoteAccount(t *testing.T, voteKey solana.PublicKey) accounts.Account {
	node := stakeTestKey(t)

	voteState := VersionedVoteState{Type: VoteStateVersionCurrent}
	voteState.Current.NodePubkey = node
	voteState.Current.AuthorizedWithdrawer = stakeTestKey(t)
	voteState.Current.Commission = 5
	voteState.Current.AuthorizedVoters.AuthorizedVoters.Set(AuthorizedVoter{Epoch: 0, Pubkey: node})
	voteState.Current.EpochCredits = []VoteEpochCredits{{Epoch: 0, Credits: 100, PrevCredits: 0}}

	data, err := MarshalVersionedVoteState(&voteState)
	require.NoError(t, err)
	padded := make([]byte, VoteStateV3Size)
	copy(padded, data)

	return accounts.Account{Key: voteKey, Lamports: 100000000, Data: padded, Owner: VoteProgramAddr}
}

func TestExecute_Tx_Stake_Program_Initialize_Success(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 1234, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)
	withdrawer := stakeTestKey(t)

	stakePubkey := stakeTestKey(t)
	stakeAcct := accounts.Account{Key: stakePubkey, Lamports: reserve, Data: make([]byte, StakeStateV2Size), Owner: StakeProgramAddr, RentEpoch: 100}

	instr := NewStakeInitializeInstruction(stakePubkey, staker, withdrawer, StakeLockup{})

	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), stakeAcct, sysvarTxAccount(t, execCtx, SysvarRentAddr)})
	assert.NoError(t, err)

	state, err := UnmarshalStakeState(post[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint32(StakeStateV2StatusInitialized), state.Status)
	assert.Equal(t, staker, state.Initialized.Meta.Authorized.Staker)
	assert.Equal(t, withdrawer, state.Initialized.Meta.Authorized.Withdrawer)
	assert.Equal(t, reserve, state.Initialized.Meta.RentExemptReserve)
}

func TestExecute_Tx_Stake_Program_Initialize_Not_Rent_Exempt_Failure(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 1234, Epoch: 2})

	stakePubkey := stakeTestKey(t)
	stakeAcct := accounts.Account{Key: stakePubkey, Lamports: 1000, Data: make([]byte, StakeStateV2Size), Owner: StakeProgramAddr, RentEpoch: 100}

	instr := NewStakeInitializeInstruction(stakePubkey, stakeTestKey(t), stakeTestKey(t), StakeLockup{})

	_, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), stakeAcct, sysvarTxAccount(t, execCtx, SysvarRentAddr)})
	assert.Equal(t, InstrErrInsufficientFunds, err)
}

func TestExecute_Tx_Stake_Program_Authorize_Success(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 1234, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)
	withdrawer := stakeTestKey(t)
	newStaker := stakeTestKey(t)

	stakePubkey := stakeTestKey(t)
	stakeAcct := accounts.Account{Key: stakePubkey, Lamports: reserve, Data: initializedStakeData(t, staker, withdrawer), Owner: StakeProgramAddr, RentEpoch: 100}
	stakerAcct := accounts.Account{Key: staker, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeAuthorizeInstruction(stakePubkey, staker, newStaker, StakeAuthorizeStaker, nil)

	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), stakeAcct, sysvarTxAccount(t, execCtx, SysvarClockAddr), stakerAcct})
	assert.NoError(t, err)

	state, err := UnmarshalStakeState(post[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, newStaker, state.Initialized.Meta.Authorized.Staker)
	assert.Equal(t, withdrawer, state.Initialized.Meta.Authorized.Withdrawer)
}

func TestExecute_Tx_Stake_Program_Authorize_Wrong_Authority_Failure(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 1234, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)
	imposter := stakeTestKey(t)

	stakePubkey := stakeTestKey(t)
	stakeAcct := accounts.Account{Key: stakePubkey, Lamports: reserve, Data: initializedStakeData(t, staker, stakeTestKey(t)), Owner: StakeProgramAddr, RentEpoch: 100}
	imposterAcct := accounts.Account{Key: imposter, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeAuthorizeInstruction(stakePubkey, imposter, imposter, StakeAuthorizeStaker, nil)

	_, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), stakeAcct, sysvarTxAccount(t, execCtx, SysvarClockAddr), imposterAcct})
	assert.Equal(t, InstrErrMissingRequiredSignature, err)
}

func TestExecute_Tx_Stake_Program_Delegate_Success(t *testing.T) {
	clock := SysvarClock{Slot: 900000, Epoch: 2}
	execCtx := stakeTestExecCtx(t, clock)
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)
	votePubkey := stakeTestKey(t)
	voteAcct := stakeTestVoteAccount(t, votePubkey)

	stakePubkey := stakeTestKey(t)
	stakeAcct := accounts.Account{Key: stakePubkey, Lamports: reserve + 5000000000, Data: initializedStakeData(t, staker, stakeTestKey(t)), Owner: StakeProgramAddr, RentEpoch: 100}
	stakerAcct := accounts.Account{Key: staker, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}
	configAcct := accounts.Account{Key: StakeProgramConfigAddr, Lamports: 1, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeDelegateInstruction(stakePubkey, votePubkey, staker)

	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{
		stakeProgramAccount(), stakeAcct, voteAcct,
		sysvarTxAccount(t, execCtx, SysvarClockAddr), sysvarTxAccount(t, execCtx, SysvarStakeHistoryAddr),
		configAcct, stakerAcct,
	})
	assert.NoError(t, err)

	state, err := UnmarshalStakeState(post[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint32(StakeStateV2StatusStake), state.Status)
	assert.Equal(t, votePubkey, state.Stake.Stake.Delegation.VoterPubkey)
	assert.Equal(t, uint64(5000000000), state.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, clock.Epoch, state.Stake.Stake.Delegation.ActivationEpoch)
}

func TestExecute_Tx_Stake_Program_Split_Success(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 900000, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)
	withdrawer := stakeTestKey(t)
	voter := stakeTestKey(t)

	sourcePubkey := stakeTestKey(t)
	sourceAcct := accounts.Account{Key: sourcePubkey, Lamports: reserve + 5000000000, Data: activeStakeData(t, staker, withdrawer, voter, 5000000000), Owner: StakeProgramAddr, RentEpoch: 100}

	// rent-funded blank destination
	destPubkey := stakeTestKey(t)
	destAcct := accounts.Account{Key: destPubkey, Lamports: reserve, Data: make([]byte, StakeStateV2Size), Owner: StakeProgramAddr, RentEpoch: 100}

	stakerAcct := accounts.Account{Key: staker, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeSplitInstruction(sourcePubkey, destPubkey, 2000000000, staker)

	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), sourceAcct, destAcct, stakerAcct})
	assert.NoError(t, err)

	assert.Equal(t, reserve+3000000000, post[1].Lamports)
	assert.Equal(t, reserve+2000000000, post[2].Lamports)

	sourceState, err := UnmarshalStakeState(post[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3000000000), sourceState.Stake.Stake.Delegation.StakeLamports)

	destState, err := UnmarshalStakeState(post[2].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint32(StakeStateV2StatusStake), destState.Status)
	assert.Equal(t, uint64(2000000000), destState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, voter, destState.Stake.Stake.Delegation.VoterPubkey)
	assert.Equal(t, uint64(0), destState.Stake.Stake.Delegation.ActivationEpoch)
}

func TestExecute_Tx_Stake_Program_Split_Insufficient_Delegation_Failure(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 900000, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)

	sourcePubkey := stakeTestKey(t)
	sourceAcct := accounts.Account{Key: sourcePubkey, Lamports: reserve + 5000000000, Data: activeStakeData(t, staker, stakeTestKey(t), stakeTestKey(t), 5000000000), Owner: StakeProgramAddr, RentEpoch: 100}

	destPubkey := stakeTestKey(t)
	destAcct := accounts.Account{Key: destPubkey, Lamports: reserve, Data: make([]byte, StakeStateV2Size), Owner: StakeProgramAddr, RentEpoch: 100}

	stakerAcct := accounts.Account{Key: staker, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	// splitting the whole delegation without closing the account would leave
	// zero delegated lamports behind
	instr := NewStakeSplitInstruction(sourcePubkey, destPubkey, 5000000000, staker)

	_, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), sourceAcct, destAcct, stakerAcct})
	assert.Equal(t, StakeErrInsufficientDelegation, err)
}

func TestExecute_Tx_Stake_Program_Merge_Success(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 900000, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)
	withdrawer := stakeTestKey(t)

	destPubkey := stakeTestKey(t)
	destAcct := accounts.Account{Key: destPubkey, Lamports: reserve + 1000000000, Data: initializedStakeData(t, staker, withdrawer), Owner: StakeProgramAddr, RentEpoch: 100}

	sourcePubkey := stakeTestKey(t)
	sourceAcct := accounts.Account{Key: sourcePubkey, Lamports: reserve + 500000000, Data: initializedStakeData(t, staker, withdrawer), Owner: StakeProgramAddr, RentEpoch: 100}

	stakerAcct := accounts.Account{Key: staker, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeMergeInstruction(destPubkey, sourcePubkey, staker)

	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{
		stakeProgramAccount(), destAcct, sourceAcct,
		sysvarTxAccount(t, execCtx, SysvarClockAddr), sysvarTxAccount(t, execCtx, SysvarStakeHistoryAddr),
		stakerAcct,
	})
	assert.NoError(t, err)

	// source is drained and wiped, dest absorbs its balance
	assert.Equal(t, reserve*2+1500000000, post[1].Lamports)
	assert.Equal(t, uint64(0), post[2].Lamports)

	destState, err := UnmarshalStakeState(post[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint32(StakeStateV2StatusInitialized), destState.Status)

	sourceState, err := UnmarshalStakeState(post[2].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint32(StakeStateV2StatusUninitialized), sourceState.Status)
}

func TestExecute_Tx_Stake_Program_Merge_Mismatched_Authority_Failure(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 900000, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)
	withdrawer := stakeTestKey(t)

	destPubkey := stakeTestKey(t)
	destAcct := accounts.Account{Key: destPubkey, Lamports: reserve + 1000000000, Data: initializedStakeData(t, staker, withdrawer), Owner: StakeProgramAddr, RentEpoch: 100}

	// source under a different staker cannot merge in
	sourcePubkey := stakeTestKey(t)
	sourceAcct := accounts.Account{Key: sourcePubkey, Lamports: reserve + 500000000, Data: initializedStakeData(t, stakeTestKey(t), withdrawer), Owner: StakeProgramAddr, RentEpoch: 100}

	stakerAcct := accounts.Account{Key: staker, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeMergeInstruction(destPubkey, sourcePubkey, staker)

	_, err := processTestInstruction(t, execCtx, instr, []accounts.Account{
		stakeProgramAccount(), destAcct, sourceAcct,
		sysvarTxAccount(t, execCtx, SysvarClockAddr), sysvarTxAccount(t, execCtx, SysvarStakeHistoryAddr),
		stakerAcct,
	})
	assert.Equal(t, StakeErrMergeMismatch, err)
}

func TestExecute_Tx_Stake_Program_Deactivate_Success(t *testing.T) {
	clock := SysvarClock{Slot: 1300000, Epoch: 3}
	execCtx := stakeTestExecCtx(t, clock)
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)

	stakePubkey := stakeTestKey(t)
	stakeAcct := accounts.Account{Key: stakePubkey, Lamports: reserve + 5000000000, Data: activeStakeData(t, staker, stakeTestKey(t), stakeTestKey(t), 5000000000), Owner: StakeProgramAddr, RentEpoch: 100}
	stakerAcct := accounts.Account{Key: staker, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeDeactivateInstruction(stakePubkey, staker)

	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), stakeAcct, sysvarTxAccount(t, execCtx, SysvarClockAddr), stakerAcct})
	assert.NoError(t, err)

	state, err := UnmarshalStakeState(post[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, clock.Epoch, state.Stake.Stake.Delegation.DeactivationEpoch)

	// deactivating again is rejected
	stakeAcctPost := post[1]
	_, err = processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), stakeAcctPost, sysvarTxAccount(t, execCtx, SysvarClockAddr), stakerAcct})
	assert.Equal(t, StakeErrAlreadyDeactivated, err)
}

func TestExecute_Tx_Stake_Program_Withdraw_Success(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 900000, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	withdrawer := stakeTestKey(t)

	stakePubkey := stakeTestKey(t)
	stakeAcct := accounts.Account{Key: stakePubkey, Lamports: reserve + 1000000000, Data: initializedStakeData(t, stakeTestKey(t), withdrawer), Owner: StakeProgramAddr, RentEpoch: 100}

	recipient := stakeTestKey(t)
	recipientAcct := accounts.Account{Key: recipient, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}
	withdrawerAcct := accounts.Account{Key: withdrawer, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeWithdrawInstruction(stakePubkey, recipient, 1000000000, withdrawer, nil)

	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{
		stakeProgramAccount(), stakeAcct, recipientAcct,
		sysvarTxAccount(t, execCtx, SysvarClockAddr), sysvarTxAccount(t, execCtx, SysvarStakeHistoryAddr),
		withdrawerAcct,
	})
	assert.NoError(t, err)

	assert.Equal(t, reserve, post[1].Lamports)
	assert.Equal(t, uint64(1000001000), post[2].Lamports)

	// partial withdrawal leaves the account initialized
	state, err := UnmarshalStakeState(post[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint32(StakeStateV2StatusInitialized), state.Status)
}

func TestExecute_Tx_Stake_Program_Withdraw_Exceeds_Free_Balance_Failure(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 900000, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	withdrawer := stakeTestKey(t)

	stakePubkey := stakeTestKey(t)
	stakeAcct := accounts.Account{Key: stakePubkey, Lamports: reserve + 1000000000, Data: initializedStakeData(t, stakeTestKey(t), withdrawer), Owner: StakeProgramAddr, RentEpoch: 100}

	recipient := stakeTestKey(t)
	recipientAcct := accounts.Account{Key: recipient, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}
	withdrawerAcct := accounts.Account{Key: withdrawer, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	// one lamport into the rent reserve
	instr := NewStakeWithdrawInstruction(stakePubkey, recipient, 1000000001, withdrawer, nil)

	_, err := processTestInstruction(t, execCtx, instr, []accounts.Account{
		stakeProgramAccount(), stakeAcct, recipientAcct,
		sysvarTxAccount(t, execCtx, SysvarClockAddr), sysvarTxAccount(t, execCtx, SysvarStakeHistoryAddr),
		withdrawerAcct,
	})
	assert.Equal(t, InstrErrInsufficientFunds, err)
}

func TestExecute_Tx_Stake_Program_Move_Stake_Success(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 900000, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)
	withdrawer := stakeTestKey(t)
	voter := stakeTestKey(t)

	sourcePubkey := stakeTestKey(t)
	sourceAcct := accounts.Account{Key: sourcePubkey, Lamports: reserve + 5000000000, Data: activeStakeData(t, staker, withdrawer, voter, 5000000000), Owner: StakeProgramAddr, RentEpoch: 100}

	destPubkey := stakeTestKey(t)
	destAcct := accounts.Account{Key: destPubkey, Lamports: reserve + 1000000000, Data: activeStakeData(t, staker, withdrawer, voter, 1000000000), Owner: StakeProgramAddr, RentEpoch: 100}

	stakerAcct := accounts.Account{Key: staker, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeMoveStakeInstruction(sourcePubkey, destPubkey, staker, 2000000000)

	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), sourceAcct, destAcct, stakerAcct})
	assert.NoError(t, err)

	// lamports travel with the moved stake
	assert.Equal(t, reserve+3000000000, post[1].Lamports)
	assert.Equal(t, reserve+3000000000, post[2].Lamports)

	sourceState, err := UnmarshalStakeState(post[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3000000000), sourceState.Stake.Stake.Delegation.StakeLamports)

	destState, err := UnmarshalStakeState(post[2].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3000000000), destState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, voter, destState.Stake.Stake.Delegation.VoterPubkey)
}

func TestExecute_Tx_Stake_Program_Move_Lamports_Success(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 900000, Epoch: 2})
	reserve := stakeTestRentExemptReserve()

	staker := stakeTestKey(t)
	withdrawer := stakeTestKey(t)
	voter := stakeTestKey(t)

	// 700000000 lamports above the delegation and the rent reserve are free
	sourcePubkey := stakeTestKey(t)
	sourceAcct := accounts.Account{Key: sourcePubkey, Lamports: reserve + 5000000000 + 700000000, Data: activeStakeData(t, staker, withdrawer, voter, 5000000000), Owner: StakeProgramAddr, RentEpoch: 100}

	destPubkey := stakeTestKey(t)
	destAcct := accounts.Account{Key: destPubkey, Lamports: reserve + 1000000000, Data: activeStakeData(t, staker, withdrawer, voter, 1000000000), Owner: StakeProgramAddr, RentEpoch: 100}

	stakerAcct := accounts.Account{Key: staker, Lamports: 1000, Owner: SystemProgramAddr, RentEpoch: 100}

	instr := NewStakeMoveLamportsInstruction(sourcePubkey, destPubkey, staker, 700000000)

	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount(), sourceAcct, destAcct, stakerAcct})
	assert.NoError(t, err)

	assert.Equal(t, reserve+5000000000, post[1].Lamports)
	assert.Equal(t, reserve+1000000000+700000000, post[2].Lamports)

	// delegations are untouched
	sourceState, err := UnmarshalStakeState(post[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint64(5000000000), sourceState.Stake.Stake.Delegation.StakeLamports)

	destState, err := UnmarshalStakeState(post[2].Data)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1000000000), destState.Stake.Stake.Delegation.StakeLamports)
}

func TestExecute_Tx_Stake_Program_Get_Minimum_Delegation(t *testing.T) {
	execCtx := stakeTestExecCtx(t, SysvarClock{Slot: 900000, Epoch: 2})

	instr := NewStakeGetMinimumDelegationInstruction()

	_, err := processTestInstruction(t, execCtx, instr, []accounts.Account{stakeProgramAccount()})
	assert.NoError(t, err)

	programId, returnData := execCtx.TransactionContext.GetReturnData()
	assert.Equal(t, solana.PublicKey(StakeProgramAddr), programId)
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(returnData))
}
