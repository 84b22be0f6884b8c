// Package singlepool implements the single-validator stake pool program: a
// liquid staking pool whose deposits are delegated to one fixed vote account.
// Depositors trade active stake for pool tokens at the pool's exchange rate;
// withdrawals burn tokens and split stake back out. A permissionless
// replenish instruction compounds rewards through an on-ramp stake account so
// the main account never carries transient stake.
package singlepool

import (
	"encoding/binary"
	"math"

	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"

	"github.com/solopool-labs/solopool/pkg/base58"
	"github.com/solopool-labs/solopool/pkg/safemath"
	"github.com/solopool-labs/solopool/pkg/sealevel"
)

const CUSinglePoolProgramDefaultComputeUnits = 10000

// PoolMintDecimals matches native SOL's nine decimal places so one pool
// token starts out exactly one lamport of stake.
const PoolMintDecimals = 9

func init() {
	sealevel.RegisterNativeProgram(ProgramAddr, ProgramExecute)
}

func ProgramExecute(execCtx *sealevel.ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUSinglePoolProgramDefaultComputeUnits)
	if err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	data := instrCtx.Data
	if len(data) == 0 {
		return sealevel.InstrErrInvalidInstructionData
	}

	switch data[0] {
	case PoolInstrTypeInitializePool:
		{
			if len(data) != 1 {
				return sealevel.InstrErrInvalidInstructionData
			}
			return processInitializePool(execCtx, txCtx, instrCtx)
		}

	case PoolInstrTypeReplenishPool:
		{
			if len(data) != 1 {
				return sealevel.InstrErrInvalidInstructionData
			}
			return processReplenishPool(execCtx, txCtx, instrCtx)
		}

	case PoolInstrTypeDepositStake:
		{
			if len(data) != 1 {
				return sealevel.InstrErrInvalidInstructionData
			}
			return processDepositStake(execCtx, txCtx, instrCtx)
		}

	case PoolInstrTypeWithdrawStake:
		{
			withdraw, err := unmarshalWithdrawStakeInstr(data)
			if err != nil {
				return err
			}
			return processWithdrawStake(execCtx, txCtx, instrCtx, withdraw)
		}

	case PoolInstrTypeCreateTokenMetadata:
		{
			if len(data) != 1 {
				return sealevel.InstrErrInvalidInstructionData
			}
			return processCreateTokenMetadata(execCtx, txCtx, instrCtx)
		}

	case PoolInstrTypeUpdateTokenMetadata:
		{
			update, err := unmarshalUpdateTokenMetadataInstr(data)
			if err != nil {
				return err
			}
			return processUpdateTokenMetadata(execCtx, txCtx, instrCtx, update)
		}

	case PoolInstrTypeInitializePoolOnRamp:
		{
			if len(data) != 1 {
				return sealevel.InstrErrInvalidInstructionData
			}
			return processInitializePoolOnRamp(execCtx, txCtx, instrCtx)
		}

	default:
		{
			klog.V(2).Infof("invalid single pool instruction: %d", data[0])
			return sealevel.InstrErrInvalidInstructionData
		}
	}
}

// stakeMinimumDelegation asks the stake program for its minimum delegation
// via CPI and reads the answer back from return data.
func stakeMinimumDelegation(execCtx *sealevel.ExecutionCtx, txCtx *sealevel.TransactionCtx) (uint64, error) {
	err := execCtx.NativeInvoke(*sealevel.NewStakeGetMinimumDelegationInstruction(), nil)
	if err != nil {
		return 0, err
	}

	programId, returnData := txCtx.GetReturnData()
	if programId != sealevel.StakeProgramAddr {
		return 0, sealevel.InstrErrIncorrectProgramId
	}
	if len(returnData) != 8 {
		return 0, sealevel.InstrErrInvalidInstructionData
	}
	return binary.LittleEndian.Uint64(returnData), nil
}

// stakeAccountView classifies a stake account's delegation through stake
// history at the current epoch.
func stakeAccountView(state *sealevel.StakeStateV2, lamports uint64, clock sealevel.SysvarClock, stakeHistory sealevel.SysvarStakeHistory, rateEpoch *uint64) StakeAccountView {
	view := StakeAccountView{Lamports: lamports}

	switch state.Status {
	case sealevel.StakeStateV2StatusInitialized:
		view.RentReserve = state.Initialized.Meta.RentExemptReserve
	case sealevel.StakeStateV2StatusStake:
		delegation := state.Stake.Stake.Delegation
		view.Delegated = true
		view.RentReserve = state.Stake.Meta.RentExemptReserve
		view.Stake = delegation.StakeLamports
		view.DeactivationScheduled = delegation.DeactivationEpoch != math.MaxUint64

		entry := delegation.StakeActivatingAndDeactivating(clock.Epoch, stakeHistory, rateEpoch)
		view.Effective = entry.Effective
		view.Activating = entry.Activating
		view.Deactivating = entry.Deactivating
	}

	return view
}

func processInitializePool(execCtx *sealevel.ExecutionCtx, txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx) error {
	err := instrCtx.CheckNumOfInstructionAccounts(13)
	if err != nil {
		return err
	}

	voteAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	voteKey := voteAcct.Key()
	voteOwner := voteAcct.Owner()
	voteAcct.Drop()

	if voteOwner != sealevel.VoteProgramAddr {
		klog.V(2).Infof("vote account %s has owner %s", voteKey, voteOwner)
		return sealevel.InstrErrIncorrectProgramId
	}

	poolAddr, poolBump := FindPoolAddressAndBump(voteKey)
	poolKey, err := instructionAcctKey(txCtx, instrCtx, 1)
	if err != nil {
		return err
	}
	if poolKey != poolAddr {
		klog.V(2).Infof("account %s is not the pool for vote account %s", poolKey, voteKey)
		return PoolErrInvalidPoolAccount
	}

	err = checkPoolStakeAccount(txCtx, instrCtx, 2, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolMintAccount(txCtx, instrCtx, 3, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolStakeAuthority(txCtx, instrCtx, 4, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolMintAuthority(txCtx, instrCtx, 5, poolAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 6, sealevel.SysvarRentAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 7, sealevel.SysvarClockAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 8, sealevel.SysvarStakeHistoryAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 9, sealevel.StakeProgramConfigAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 10, sealevel.SystemProgramAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 11, sealevel.TokenProgramAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 12, sealevel.StakeProgramAddr)
	if err != nil {
		return err
	}

	poolAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	poolLamports := poolAcct.Lamports()
	poolExists := len(poolAcct.Data()) != 0 || poolAcct.Owner() != sealevel.SystemProgramAddr
	poolAcct.Drop()

	if poolExists {
		klog.V(2).Infof("pool %s already exists", poolAddr)
		return PoolErrPoolAlreadyInitialized
	}

	stakeAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 2)
	if err != nil {
		return err
	}
	stakeLamports := stakeAcct.Lamports()
	stakeAcct.Drop()

	minimumDelegation, err := stakeMinimumDelegation(execCtx, txCtx)
	if err != nil {
		return err
	}
	minimumPoolBalance := MinimumPoolBalance(minimumDelegation)

	rent := sealevel.ReadRentSysvar(&execCtx.Accounts)
	if poolLamports < rent.MinimumBalance(PoolAccountSize) {
		klog.V(2).Infof("pool %s underfunded: %d lamports", poolAddr, poolLamports)
		return PoolErrWrongRentAmount
	}
	stakeRequired := safemath.SaturatingAddU64(rent.MinimumBalance(sealevel.StakeStateV2Size), minimumPoolBalance)
	if stakeLamports < stakeRequired {
		klog.V(2).Infof("pool stake account underfunded: %d lamports, need %d", stakeLamports, stakeRequired)
		return PoolErrWrongRentAmount
	}

	stakeAuthorityAddr, stakeAuthorityBump := FindPoolStakeAuthorityAddressAndBump(poolAddr)

	// pool record account: allocate, assign, then write the record in place
	poolSigner, err := signerFromSeeds(poolSignerSeeds(voteKey, poolBump))
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewAllocateInstruction(poolAddr, PoolAccountSize), []solana.PublicKey{poolSigner})
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewAssignInstruction(poolAddr, ProgramAddr), []solana.PublicKey{poolSigner})
	if err != nil {
		return err
	}

	record, err := marshalPool(&Pool{AccountType: PoolAccountTypePool, VoteAccountAddress: voteKey})
	if err != nil {
		return err
	}
	poolAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	err = poolAcct.SetData(execCtx.GlobalCtx.Features, record)
	poolAcct.Drop()
	if err != nil {
		return err
	}

	// main stake account: allocate, assign, initialize, delegate
	stakeAddr, stakeBump := FindPoolStakeAddressAndBump(poolAddr)
	stakeSigner, err := signerFromSeeds(poolStakeSignerSeeds(poolAddr, stakeBump))
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewAllocateInstruction(stakeAddr, sealevel.StakeStateV2Size), []solana.PublicKey{stakeSigner})
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewAssignInstruction(stakeAddr, sealevel.StakeProgramAddr), []solana.PublicKey{stakeSigner})
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewStakeInitializeInstruction(stakeAddr, stakeAuthorityAddr, stakeAuthorityAddr, sealevel.StakeLockup{}), nil)
	if err != nil {
		return err
	}

	stakeAuthoritySigner, err := signerFromSeeds(stakeAuthoritySignerSeeds(poolAddr, stakeAuthorityBump))
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewStakeDelegateInstruction(stakeAddr, voteKey, stakeAuthorityAddr), []solana.PublicKey{stakeAuthoritySigner})
	if err != nil {
		return err
	}

	// pool mint: allocate, assign, initialize with nine decimals
	mintAddr, mintBump := FindPoolMintAddressAndBump(poolAddr)
	mintAuthorityAddr := FindPoolMintAuthorityAddress(poolAddr)
	mintSigner, err := signerFromSeeds(poolMintSignerSeeds(poolAddr, mintBump))
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewAllocateInstruction(mintAddr, sealevel.TokenMintSize), []solana.PublicKey{mintSigner})
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewAssignInstruction(mintAddr, sealevel.TokenProgramAddr), []solana.PublicKey{mintSigner})
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewTokenInitializeMintInstruction(mintAddr, PoolMintDecimals, mintAuthorityAddr, nil), nil)
	if err != nil {
		return err
	}

	klog.V(2).Infof("initialized pool %s for vote account %s", poolAddr, voteKey)
	return nil
}

func processReplenishPool(execCtx *sealevel.ExecutionCtx, txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx) error {
	err := instrCtx.CheckNumOfInstructionAccounts(9)
	if err != nil {
		return err
	}

	poolAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	pool, err := poolFromAccount(poolAcct)
	poolAddr := poolAcct.Key()
	poolAcct.Drop()
	if err != nil {
		return err
	}

	voteKey, err := instructionAcctKey(txCtx, instrCtx, 0)
	if err != nil {
		return err
	}
	if voteKey != pool.VoteAccountAddress {
		klog.V(2).Infof("vote account %s does not match pool record %s", voteKey, pool.VoteAccountAddress)
		return PoolErrInvalidPoolAccount
	}

	err = checkPoolStakeAccount(txCtx, instrCtx, 2, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolOnRampAccount(txCtx, instrCtx, 3, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolStakeAuthority(txCtx, instrCtx, 4, poolAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 5, sealevel.SysvarClockAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 6, sealevel.SysvarStakeHistoryAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 7, sealevel.StakeProgramConfigAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 8, sealevel.StakeProgramAddr)
	if err != nil {
		return err
	}

	// the on-ramp must exist before anything else is considered, so pools
	// created before on-ramps existed fail loudly instead of silently
	// compounding into the main account
	onRampAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 3)
	if err != nil {
		return err
	}
	onRampAddr := onRampAcct.Key()
	onRampOwner := onRampAcct.Owner()
	onRampLamports := onRampAcct.Lamports()
	onRampData := onRampAcct.Data()
	onRampExists := onRampOwner == sealevel.StakeProgramAddr && len(onRampData) != 0
	var onRampState *sealevel.StakeStateV2
	if onRampExists {
		onRampState, err = sealevel.UnmarshalStakeState(onRampData)
	}
	onRampAcct.Drop()
	if !onRampExists {
		klog.V(2).Infof("on-ramp %s for pool %s has not been created", onRampAddr, poolAddr)
		return PoolErrOnRampDoesntExist
	}
	if err != nil {
		return err
	}

	mainAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 2)
	if err != nil {
		return err
	}
	mainAddr := mainAcct.Key()
	mainLamports := mainAcct.Lamports()
	mainState, err := sealevel.UnmarshalStakeState(mainAcct.Data())
	mainAcct.Drop()
	if err != nil {
		return err
	}

	minimumDelegation, err := stakeMinimumDelegation(execCtx, txCtx)
	if err != nil {
		return err
	}

	clock := sealevel.ReadClockSysvar(&execCtx.Accounts)
	stakeHistory := sealevel.ReadStakeHistorySysvar(&execCtx.Accounts)
	rateEpoch := sealevel.WarmupCooldownRateEpoch(execCtx)

	mainView := stakeAccountView(mainState, mainLamports, clock, stakeHistory, rateEpoch)
	onRampView := stakeAccountView(onRampState, onRampLamports, clock, stakeHistory, rateEpoch)

	plan := PlanReplenish(mainView, onRampView, minimumDelegation)

	stakeAuthorityAddr, stakeAuthorityBump := FindPoolStakeAuthorityAddressAndBump(poolAddr)
	stakeAuthoritySigner, err := signerFromSeeds(stakeAuthoritySignerSeeds(poolAddr, stakeAuthorityBump))
	if err != nil {
		return err
	}
	signers := []solana.PublicKey{stakeAuthoritySigner}

	if plan.DelegateMain {
		klog.V(2).Infof("re-delegating main stake account for pool %s", poolAddr)
		return execCtx.NativeInvoke(*sealevel.NewStakeDelegateInstruction(mainAddr, voteKey, stakeAuthorityAddr), signers)
	}

	if plan.MoveStake > 0 {
		klog.V(2).Infof("moving %d active stake from on-ramp into pool %s", plan.MoveStake, poolAddr)
		err = execCtx.NativeInvoke(*sealevel.NewStakeMoveStakeInstruction(onRampAddr, mainAddr, stakeAuthorityAddr, plan.MoveStake), signers)
		if err != nil {
			return err
		}
	}

	if plan.MoveLamports > 0 {
		klog.V(2).Infof("sweeping %d excess lamports into the on-ramp for pool %s", plan.MoveLamports, poolAddr)
		err = execCtx.NativeInvoke(*sealevel.NewStakeMoveLamportsInstruction(mainAddr, onRampAddr, stakeAuthorityAddr, plan.MoveLamports), signers)
		if err != nil {
			return err
		}
	}

	if plan.DelegateOnRamp {
		klog.V(2).Infof("delegating on-ramp for pool %s", poolAddr)
		err = execCtx.NativeInvoke(*sealevel.NewStakeDelegateInstruction(onRampAddr, voteKey, stakeAuthorityAddr), signers)
		if err != nil {
			return err
		}
	}

	return nil
}

func processDepositStake(execCtx *sealevel.ExecutionCtx, txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx) error {
	err := instrCtx.CheckNumOfInstructionAccounts(12)
	if err != nil {
		return err
	}

	poolAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	pool, err := poolFromAccount(poolAcct)
	poolAddr := poolAcct.Key()
	poolAcct.Drop()
	if err != nil {
		return err
	}

	err = checkPoolStakeAccount(txCtx, instrCtx, 1, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolMintAccount(txCtx, instrCtx, 2, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolStakeAuthority(txCtx, instrCtx, 3, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolMintAuthority(txCtx, instrCtx, 4, poolAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 8, sealevel.SysvarClockAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 9, sealevel.SysvarStakeHistoryAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 10, sealevel.TokenProgramAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 11, sealevel.StakeProgramAddr)
	if err != nil {
		return err
	}

	userStakeKey, err := instructionAcctKey(txCtx, instrCtx, 5)
	if err != nil {
		return err
	}
	err = checkUserStakeAccountUsage(userStakeKey, poolAddr)
	if err != nil {
		return err
	}

	stakeAuthorityAddr, stakeAuthorityBump := FindPoolStakeAuthorityAddressAndBump(poolAddr)
	mintAuthorityAddr, mintAuthorityBump := FindPoolMintAuthorityAddressAndBump(poolAddr)
	mintAddr := FindPoolMintAddress(poolAddr)

	clock := sealevel.ReadClockSysvar(&execCtx.Accounts)
	stakeHistory := sealevel.ReadStakeHistorySysvar(&execCtx.Accounts)
	rateEpoch := sealevel.WarmupCooldownRateEpoch(execCtx)

	minimumDelegation, err := stakeMinimumDelegation(execCtx, txCtx)
	if err != nil {
		return err
	}
	minimumPoolBalance := MinimumPoolBalance(minimumDelegation)

	// the user stake account must already be wholly owned by the pool's
	// stake authority and delegated to the pool's vote account
	userStakeAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 5)
	if err != nil {
		return err
	}
	userState, err := sealevel.UnmarshalStakeState(userStakeAcct.Data())
	userStakeAcct.Drop()
	if err != nil {
		return err
	}

	if userState.Status != sealevel.StakeStateV2StatusStake {
		klog.V(2).Infof("user stake account %s is not delegated", userStakeKey)
		return PoolErrWrongStakeStake
	}
	userAuthorized := userState.Stake.Meta.Authorized
	if userAuthorized.Staker != stakeAuthorityAddr || userAuthorized.Withdrawer != stakeAuthorityAddr {
		klog.V(2).Infof("user stake account %s is not fully controlled by the pool", userStakeKey)
		return PoolErrWrongStakeStake
	}
	userDelegation := userState.Stake.Stake.Delegation
	if userDelegation.VoterPubkey != pool.VoteAccountAddress {
		klog.V(2).Infof("user stake account %s is delegated to %s, not the pool's vote account", userStakeKey, userDelegation.VoterPubkey)
		return PoolErrWrongStakeStake
	}

	mainAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	mainAddr := mainAcct.Key()
	preLamports := mainAcct.Lamports()
	mainState, err := sealevel.UnmarshalStakeState(mainAcct.Data())
	mainAcct.Drop()
	if err != nil {
		return err
	}
	if mainState.Status != sealevel.StakeStateV2StatusStake {
		klog.V(2).Infof("pool stake account %s is not delegated", mainAddr)
		return PoolErrWrongStakeStake
	}
	// the conversion runs on stake net of the required minimum; the
	// locked balance is never tokenized
	preStake := safemath.SaturatingSubU64(mainState.Stake.Stake.Delegation.StakeLamports, minimumPoolBalance)

	// deposits must not change the exchange rate: either both delegations
	// are fully active, or both are activating in the current epoch so the
	// merge folds them into one activation
	userEntry := userDelegation.StakeActivatingAndDeactivating(clock.Epoch, stakeHistory, rateEpoch)
	mainDelegation := mainState.Stake.Stake.Delegation
	mainEntry := mainDelegation.StakeActivatingAndDeactivating(clock.Epoch, stakeHistory, rateEpoch)

	userActive := userEntry.Effective > 0 && userEntry.Activating == 0 && userEntry.Deactivating == 0
	mainActive := mainEntry.Effective > 0 && mainEntry.Activating == 0 && mainEntry.Deactivating == 0
	userActivating := userEntry.Effective == 0 && userEntry.Activating > 0 && userDelegation.ActivationEpoch == clock.Epoch
	mainActivating := mainEntry.Effective == 0 && mainEntry.Activating > 0 && mainDelegation.ActivationEpoch == clock.Epoch

	if !((userActive && mainActive) || (userActivating && mainActivating)) {
		klog.V(2).Infof("user stake account %s activation does not match the pool", userStakeKey)
		return PoolErrWrongStakeStake
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 2)
	if err != nil {
		return err
	}
	mint, err := sealevel.UnmarshalTokenMint(mintAcct.Data())
	mintAcct.Drop()
	if err != nil {
		return err
	}
	preSupply := mint.Supply

	stakeAuthoritySigner, err := signerFromSeeds(stakeAuthoritySignerSeeds(poolAddr, stakeAuthorityBump))
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewStakeMergeInstruction(mainAddr, userStakeKey, stakeAuthorityAddr), []solana.PublicKey{stakeAuthoritySigner})
	if err != nil {
		return err
	}

	mainAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	postLamports := mainAcct.Lamports()
	mainState, err = sealevel.UnmarshalStakeState(mainAcct.Data())
	mainAcct.Drop()
	if err != nil {
		return err
	}
	postStake := safemath.SaturatingSubU64(mainState.Stake.Stake.Delegation.StakeLamports, minimumPoolBalance)

	stakeAdded, err := safemath.CheckedSubU64(postStake, preStake)
	if err != nil {
		return PoolErrUnexpectedMathError
	}

	tokens, err := CalculatePoolTokensForDeposit(preStake, preSupply, stakeAdded)
	if err != nil {
		return err
	}
	if tokens == 0 {
		return PoolErrDepositTooSmall
	}

	userTokenKey, err := instructionAcctKey(txCtx, instrCtx, 6)
	if err != nil {
		return err
	}
	mintAuthoritySigner, err := signerFromSeeds(mintAuthoritySignerSeeds(poolAddr, mintAuthorityBump))
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewTokenMintToInstruction(mintAddr, userTokenKey, mintAuthorityAddr, tokens), []solana.PublicKey{mintAuthoritySigner})
	if err != nil {
		return err
	}

	// an active-stake merge leaves the user's rent reserve behind as loose
	// lamports; return them rather than letting them inflate the pool
	lamportsAdded, err := safemath.CheckedSubU64(postLamports, preLamports)
	if err != nil {
		return PoolErrUnexpectedMathError
	}
	excess, err := safemath.CheckedSubU64(lamportsAdded, stakeAdded)
	if err != nil {
		return PoolErrUnexpectedMathError
	}
	if excess > 0 {
		userLamportKey, err := instructionAcctKey(txCtx, instrCtx, 7)
		if err != nil {
			return err
		}
		err = execCtx.NativeInvoke(*sealevel.NewStakeWithdrawInstruction(mainAddr, userLamportKey, excess, stakeAuthorityAddr, nil), []solana.PublicKey{stakeAuthoritySigner})
		if err != nil {
			return err
		}
	}

	klog.V(2).Infof("deposited %d stake into pool %s for %d tokens", stakeAdded, poolAddr, tokens)
	return nil
}

func processWithdrawStake(execCtx *sealevel.ExecutionCtx, txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, withdraw *PoolInstrWithdrawStake) error {
	err := instrCtx.CheckNumOfInstructionAccounts(10)
	if err != nil {
		return err
	}

	poolAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	_, err = poolFromAccount(poolAcct)
	poolAddr := poolAcct.Key()
	poolAcct.Drop()
	if err != nil {
		return err
	}

	err = checkPoolStakeAccount(txCtx, instrCtx, 1, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolMintAccount(txCtx, instrCtx, 2, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolStakeAuthority(txCtx, instrCtx, 3, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolMintAuthority(txCtx, instrCtx, 4, poolAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 7, sealevel.SysvarClockAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 8, sealevel.TokenProgramAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 9, sealevel.StakeProgramAddr)
	if err != nil {
		return err
	}

	userStakeKey, err := instructionAcctKey(txCtx, instrCtx, 5)
	if err != nil {
		return err
	}
	err = checkUserStakeAccountUsage(userStakeKey, poolAddr)
	if err != nil {
		return err
	}

	mainAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	mainAddr := mainAcct.Key()
	mainState, err := sealevel.UnmarshalStakeState(mainAcct.Data())
	mainAcct.Drop()
	if err != nil {
		return err
	}
	if mainState.Status != sealevel.StakeStateV2StatusStake {
		klog.V(2).Infof("pool stake account %s is not delegated", mainAddr)
		return PoolErrWrongStakeStake
	}

	mintAddr := FindPoolMintAddress(poolAddr)
	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 2)
	if err != nil {
		return err
	}
	mint, err := sealevel.UnmarshalTokenMint(mintAcct.Data())
	mintAcct.Drop()
	if err != nil {
		return err
	}
	preSupply := mint.Supply

	minimumDelegation, err := stakeMinimumDelegation(execCtx, txCtx)
	if err != nil {
		return err
	}
	minimumPoolBalance := MinimumPoolBalance(minimumDelegation)

	// the burn redeems tokenized stake only; the required minimum stays
	// behind even when the whole supply is burned
	preStake := safemath.SaturatingSubU64(mainState.Stake.Stake.Delegation.StakeLamports, minimumPoolBalance)

	stakeOut, err := CalculateStakeForBurn(preStake, preSupply, withdraw.TokenAmount)
	if err != nil {
		return err
	}
	if stakeOut == 0 {
		return PoolErrWithdrawalTooSmall
	}
	if stakeOut > preStake {
		klog.V(2).Infof("withdrawal of %d stake would leave pool %s below its minimum", stakeOut, poolAddr)
		return PoolErrWithdrawalTooLarge
	}

	// burn with the mint authority acting as the user's pre-approved
	// delegate, then split the stake out and hand both authorities over
	userTokenKey, err := instructionAcctKey(txCtx, instrCtx, 6)
	if err != nil {
		return err
	}
	stakeAuthorityAddr, stakeAuthorityBump := FindPoolStakeAuthorityAddressAndBump(poolAddr)
	mintAuthorityAddr, mintAuthorityBump := FindPoolMintAuthorityAddressAndBump(poolAddr)

	mintAuthoritySigner, err := signerFromSeeds(mintAuthoritySignerSeeds(poolAddr, mintAuthorityBump))
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewTokenBurnInstruction(userTokenKey, mintAddr, mintAuthorityAddr, withdraw.TokenAmount), []solana.PublicKey{mintAuthoritySigner})
	if err != nil {
		return err
	}

	stakeAuthoritySigner, err := signerFromSeeds(stakeAuthoritySignerSeeds(poolAddr, stakeAuthorityBump))
	if err != nil {
		return err
	}
	signers := []solana.PublicKey{stakeAuthoritySigner}

	err = execCtx.NativeInvoke(*sealevel.NewStakeSplitInstruction(mainAddr, userStakeKey, stakeOut, stakeAuthorityAddr), signers)
	if err != nil {
		return err
	}

	err = execCtx.NativeInvoke(*sealevel.NewStakeAuthorizeInstruction(userStakeKey, stakeAuthorityAddr, withdraw.UserStakeAuthority, sealevel.StakeAuthorizeStaker, nil), signers)
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewStakeAuthorizeInstruction(userStakeKey, stakeAuthorityAddr, withdraw.UserStakeAuthority, sealevel.StakeAuthorizeWithdrawer, nil), signers)
	if err != nil {
		return err
	}

	klog.V(2).Infof("withdrew %d stake from pool %s for %d tokens", stakeOut, poolAddr, withdraw.TokenAmount)
	return nil
}

func processCreateTokenMetadata(execCtx *sealevel.ExecutionCtx, txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx) error {
	err := instrCtx.CheckNumOfInstructionAccounts(8)
	if err != nil {
		return err
	}

	poolAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	pool, err := poolFromAccount(poolAcct)
	poolAddr := poolAcct.Key()
	poolAcct.Drop()
	if err != nil {
		return err
	}

	err = checkPoolMintAccount(txCtx, instrCtx, 1, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolMintAuthority(txCtx, instrCtx, 2, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolMplAuthority(txCtx, instrCtx, 3, poolAddr)
	if err != nil {
		return err
	}

	payerKey, err := instructionAcctKey(txCtx, instrCtx, 4)
	if err != nil {
		return err
	}
	isSigner, err := instrCtx.IsInstructionAccountSigner(4)
	if err != nil {
		return err
	}
	if !isSigner {
		return sealevel.InstrErrMissingRequiredSignature
	}

	mintAddr := FindPoolMintAddress(poolAddr)
	err = checkMetadataAccount(txCtx, instrCtx, 5, mintAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 6, sealevel.MetaplexMetadataProgramAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 7, sealevel.SystemProgramAddr)
	if err != nil {
		return err
	}

	metadataAddr := FindMetadataAddress(mintAddr)
	mintAuthorityAddr, mintAuthorityBump := FindPoolMintAuthorityAddressAndBump(poolAddr)
	mplAuthorityAddr, mplAuthorityBump := FindPoolMplAuthorityAddressAndBump(poolAddr)

	voteStr := base58.Encode(pool.VoteAccountAddress[:])
	data := sealevel.MetadataDataV2{
		Name:   "SPL Single Pool " + voteStr[:15],
		Symbol: "st" + voteStr[:7],
	}

	mintAuthoritySigner, err := signerFromSeeds(mintAuthoritySignerSeeds(poolAddr, mintAuthorityBump))
	if err != nil {
		return err
	}
	mplAuthoritySigner, err := signerFromSeeds(mplAuthoritySignerSeeds(poolAddr, mplAuthorityBump))
	if err != nil {
		return err
	}

	err = execCtx.NativeInvoke(
		*sealevel.NewMetadataCreateMetadataAccountV3Instruction(metadataAddr, mintAddr, mintAuthorityAddr, payerKey, mplAuthorityAddr, data, true),
		[]solana.PublicKey{mintAuthoritySigner, mplAuthoritySigner})
	if err != nil {
		return err
	}

	klog.V(2).Infof("created token metadata for pool %s", poolAddr)
	return nil
}

func processUpdateTokenMetadata(execCtx *sealevel.ExecutionCtx, txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, update *PoolInstrUpdateTokenMetadata) error {
	if len(update.TokenName) > sealevel.MetadataMaxNameLen ||
		len(update.TokenSymbol) > sealevel.MetadataMaxSymbolLen ||
		len(update.TokenUri) > sealevel.MetadataMaxUriLen {
		return sealevel.InstrErrInvalidInstructionData
	}

	err := instrCtx.CheckNumOfInstructionAccounts(6)
	if err != nil {
		return err
	}

	poolAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	pool, err := poolFromAccount(poolAcct)
	poolAddr := poolAcct.Key()
	poolAcct.Drop()
	if err != nil {
		return err
	}

	voteKey, err := instructionAcctKey(txCtx, instrCtx, 0)
	if err != nil {
		return err
	}
	if voteKey != pool.VoteAccountAddress {
		klog.V(2).Infof("vote account %s does not match pool record %s", voteKey, pool.VoteAccountAddress)
		return PoolErrInvalidPoolAccount
	}

	err = checkPoolMplAuthority(txCtx, instrCtx, 2, poolAddr)
	if err != nil {
		return err
	}

	mintAddr := FindPoolMintAddress(poolAddr)
	err = checkMetadataAccount(txCtx, instrCtx, 4, mintAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 5, sealevel.MetaplexMetadataProgramAddr)
	if err != nil {
		return err
	}

	// only the vote account's authorized withdrawer may rebrand the pool
	voteAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	withdrawer, err := voteWithdrawerFromAccount(voteAcct)
	voteAcct.Drop()
	if err != nil {
		return err
	}

	signerKey, err := instructionAcctKey(txCtx, instrCtx, 3)
	if err != nil {
		return err
	}
	if signerKey != withdrawer {
		klog.V(2).Infof("account %s is not the authorized withdrawer for vote account %s", signerKey, voteKey)
		return PoolErrInvalidMetadataSigner
	}
	err = checkSignature(instrCtx, 3)
	if err != nil {
		return err
	}

	metadataAddr := FindMetadataAddress(mintAddr)
	mplAuthorityAddr, mplAuthorityBump := FindPoolMplAuthorityAddressAndBump(poolAddr)
	mplAuthoritySigner, err := signerFromSeeds(mplAuthoritySignerSeeds(poolAddr, mplAuthorityBump))
	if err != nil {
		return err
	}

	data := &sealevel.MetadataDataV2{
		Name:   update.TokenName,
		Symbol: update.TokenSymbol,
		Uri:    update.TokenUri,
	}
	err = execCtx.NativeInvoke(
		*sealevel.NewMetadataUpdateMetadataAccountV2Instruction(metadataAddr, mplAuthorityAddr, data),
		[]solana.PublicKey{mplAuthoritySigner})
	if err != nil {
		return err
	}

	klog.V(2).Infof("updated token metadata for pool %s", poolAddr)
	return nil
}

func processInitializePoolOnRamp(execCtx *sealevel.ExecutionCtx, txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx) error {
	err := instrCtx.CheckNumOfInstructionAccounts(6)
	if err != nil {
		return err
	}

	poolAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	_, err = poolFromAccount(poolAcct)
	poolAddr := poolAcct.Key()
	poolAcct.Drop()
	if err != nil {
		return err
	}

	err = checkPoolOnRampAccount(txCtx, instrCtx, 1, poolAddr)
	if err != nil {
		return err
	}
	err = checkPoolStakeAuthority(txCtx, instrCtx, 2, poolAddr)
	if err != nil {
		return err
	}
	err = checkSysvarAccount(txCtx, instrCtx, 3, sealevel.SysvarRentAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 4, sealevel.SystemProgramAddr)
	if err != nil {
		return err
	}
	err = checkProgramAccount(txCtx, instrCtx, 5, sealevel.StakeProgramAddr)
	if err != nil {
		return err
	}

	onRampAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	onRampLamports := onRampAcct.Lamports()
	onRampExists := len(onRampAcct.Data()) != 0 || onRampAcct.Owner() != sealevel.SystemProgramAddr
	onRampAcct.Drop()

	if onRampExists {
		klog.V(2).Infof("on-ramp for pool %s already exists", poolAddr)
		return PoolErrPoolAlreadyInitialized
	}

	rent := sealevel.ReadRentSysvar(&execCtx.Accounts)
	if onRampLamports < rent.MinimumBalance(sealevel.StakeStateV2Size) {
		klog.V(2).Infof("on-ramp for pool %s underfunded: %d lamports", poolAddr, onRampLamports)
		return PoolErrWrongRentAmount
	}

	onRampAddr, onRampBump := FindPoolOnRampAddressAndBump(poolAddr)
	stakeAuthorityAddr := FindPoolStakeAuthorityAddress(poolAddr)

	onRampSigner, err := signerFromSeeds(poolOnRampSignerSeeds(poolAddr, onRampBump))
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewAllocateInstruction(onRampAddr, sealevel.StakeStateV2Size), []solana.PublicKey{onRampSigner})
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewAssignInstruction(onRampAddr, sealevel.StakeProgramAddr), []solana.PublicKey{onRampSigner})
	if err != nil {
		return err
	}
	err = execCtx.NativeInvoke(*sealevel.NewStakeInitializeInstruction(onRampAddr, stakeAuthorityAddr, stakeAuthorityAddr, sealevel.StakeLockup{}), nil)
	if err != nil {
		return err
	}

	klog.V(2).Infof("initialized on-ramp for pool %s", poolAddr)
	return nil
}
