package sealevel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/solopool-labs/solopool/pkg/features"
	"github.com/solopool-labs/solopool/pkg/safemath"
	"k8s.io/klog/v2"
)

const (
	StakeStateV2Size = 200
)

const (
	StakeProgramInstrTypeInitialize = iota
	StakeProgramInstrTypeAuthorize
	StakeProgramInstrTypeDelegateStake
	StakeProgramInstrTypeSplit
	StakeProgramInstrTypeWithdraw
	StakeProgramInstrTypeDeactivate
	StakeProgramInstrTypeSetLockup
	StakeProgramInstrTypeMerge
	StakeProgramInstrTypeAuthorizeWithSeed
	StakeProgramInstrTypeInitializeChecked
	StakeProgramInstrTypeAuthorizeChecked
	StakeProgramInstrTypeAuthorizeCheckedWithSeed
	StakeProgramInstrTypeSetLockupChecked
	StakeProgramInstrTypeGetMinimumDelegation
	StakeProgramInstrTypeDeactivateDelinquent
	StakeProgramInstrTypeRedelegate
	StakeProgramInstrTypeMoveStake
	StakeProgramInstrTypeMoveLamports
)

// stake errors
var (
	StakeErrNoCreditsToRedeem                            = errors.New("StakeErrNoCreditsToRedeem")
	StakeErrLockupInForce                                = errors.New("StakeErrLockupInForce")
	StakeErrAlreadyDeactivated                           = errors.New("StakeErrAlreadyDeactivated")
	StakeErrTooSoonToRedelegate                          = errors.New("StakeErrTooSoonToRedelegate")
	StakeErrInsufficientStake                            = errors.New("StakeErrInsufficientStake")
	StakeErrMergeTransientStake                          = errors.New("StakeErrMergeTransientStake")
	StakeErrMergeMismatch                                = errors.New("StakeErrMergeMismatch")
	StakeErrCustodianMissing                             = errors.New("StakeErrCustodianMissing")
	StakeErrCustodianSignatureMissing                    = errors.New("StakeErrCustodianSignatureMissing")
	StakeErrInsufficientReferenceVotes                   = errors.New("StakeErrInsufficientReferenceVotes")
	StakeErrVoteAddressMismatch                          = errors.New("StakeErrVoteAddressMismatch")
	StakeErrMinimumDelinquentEpochsForDeactivationNotMet = errors.New("StakeErrMinimumDelinquentEpochsForDeactivationNotMet")
	StakeErrInsufficientDelegation                       = errors.New("StakeErrInsufficientDelegation")
)

const MinimumDelinquentEpochsForDeactivation = 5

type StakeInstrInitialize struct {
	Authorized Authorized
	Lockup     StakeLockup
}

type StakeInstrAuthorize struct {
	Pubkey         solana.PublicKey
	StakeAuthorize uint32
}

type StakeInstrSplit struct {
	Lamports uint64
}

type StakeInstrWithdraw struct {
	Lamports uint64
}

type StakeInstrSetLockup struct {
	UnixTimestamp *uint64
	Epoch         *uint64
	Custodian     *solana.PublicKey
}

type StakeInstrAuthorizeWithSeed struct {
	NewAuthorizedPubkey solana.PublicKey
	StakeAuthorize      uint32
	AuthoritySeed       string
	AuthorityOwner      solana.PublicKey
}

type StakeInstrAuthorizeChecked struct {
	StakeAuthorize uint32
}

type StakeInstrAuthorizeCheckedWithSeed struct {
	StakeAuthorize uint32
	AuthoritySeed  string
	AuthorityOwner solana.PublicKey
}

type StakeInstrSetLockupChecked struct {
	UnixTimestamp *uint64
	Epoch         *uint64
}

type StakeInstrMoveStake struct {
	Lamports uint64
}

type StakeInstrMoveLamports struct {
	Lamports uint64
}

func (initialize *StakeInstrInitialize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	err = initialize.Authorized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = initialize.Lockup.UnmarshalWithDecoder(decoder)
	return err
}

func (initialize *StakeInstrInitialize) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := initialize.Authorized.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	return initialize.Lockup.MarshalWithEncoder(encoder)
}

func (auth *StakeInstrAuthorize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(auth.Pubkey[:], pk)

	auth.StakeAuthorize, err = decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}

	if auth.StakeAuthorize != StakeAuthorizeStaker && auth.StakeAuthorize != StakeAuthorizeWithdrawer {
		return invalidEnumValue
	}

	return err
}

func (auth *StakeInstrAuthorize) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(auth.Pubkey[:], false)
	if err != nil {
		return err
	}
	return encoder.WriteUint32(auth.StakeAuthorize, bin.LE)
}

func (split *StakeInstrSplit) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	split.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (split *StakeInstrSplit) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(split.Lamports, bin.LE)
}

func (withdraw *StakeInstrWithdraw) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	withdraw.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (withdraw *StakeInstrWithdraw) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(withdraw.Lamports, bin.LE)
}

func (lockup *StakeInstrSetLockup) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	timeStampExists, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if timeStampExists {
		ts, err := decoder.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		lockup.UnixTimestamp = &ts
	}

	epochExists, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if epochExists {
		epoch, err := decoder.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		lockup.Epoch = &epoch
	}

	custodianExists, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if custodianExists {
		custodianPkBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return err
		}

		pk := solana.PublicKeyFromBytes(custodianPkBytes)
		lockup.Custodian = &pk
	}

	return nil
}

func (authWithSeed *StakeInstrAuthorizeWithSeed) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authWithSeed.NewAuthorizedPubkey[:], pk)

	authWithSeed.StakeAuthorize, err = decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	if authWithSeed.StakeAuthorize != StakeAuthorizeStaker && authWithSeed.StakeAuthorize != StakeAuthorizeWithdrawer {
		return invalidEnumValue
	}

	authWithSeed.AuthoritySeed, err = decoder.ReadRustString()
	if err != nil {
		return err
	}

	pk, err = decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authWithSeed.AuthorityOwner[:], pk)
	return nil
}

func (authChecked *StakeInstrAuthorizeChecked) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	authChecked.StakeAuthorize, err = decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}

	if authChecked.StakeAuthorize != StakeAuthorizeStaker && authChecked.StakeAuthorize != StakeAuthorizeWithdrawer {
		return invalidEnumValue
	}

	return nil
}

func (authCheckedWithSeed *StakeInstrAuthorizeCheckedWithSeed) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	authCheckedWithSeed.StakeAuthorize, err = decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	if authCheckedWithSeed.StakeAuthorize != StakeAuthorizeStaker && authCheckedWithSeed.StakeAuthorize != StakeAuthorizeWithdrawer {
		return invalidEnumValue
	}

	authCheckedWithSeed.AuthoritySeed, err = decoder.ReadRustString()
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authCheckedWithSeed.AuthorityOwner[:], pk)
	return nil
}

func (lockup *StakeInstrSetLockupChecked) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	timeStampExists, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if timeStampExists {
		ts, err := decoder.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		lockup.UnixTimestamp = &ts
	}

	epochExists, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if epochExists {
		epoch, err := decoder.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		lockup.Epoch = &epoch
	}

	return nil
}

func (moveStake *StakeInstrMoveStake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	moveStake.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (moveStake *StakeInstrMoveStake) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(moveStake.Lamports, bin.LE)
}

func (moveLamports *StakeInstrMoveLamports) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	moveLamports.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (moveLamports *StakeInstrMoveLamports) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(moveLamports.Lamports, bin.LE)
}

// The stake config account predates feature gating and still ships in
// genesis. Its payload is a config program record: a compact-u16 prefixed
// key list followed by the bincoded config values themselves.
type StakeConfig struct {
	WarmupCooldownRate float64
	SlashPenalty       byte
}

func unmarshalStakeConfig(data []byte) (*StakeConfig, error) {
	decoder := bin.NewBinDecoder(data)

	numKeys, err := decoder.ReadCompactU16()
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}

	for i := 0; i < numKeys; i++ {
		_, err = decoder.ReadBytes(solana.PublicKeyLength + 1)
		if err != nil {
			return nil, InstrErrInvalidAccountData
		}
	}

	var config StakeConfig
	config.WarmupCooldownRate, err = decoder.ReadFloat64(bin.LE)
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}

	config.SlashPenalty, err = decoder.ReadByte()
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}

	return &config, nil
}

func getOptionalPubkey(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64, mustBeSigner bool) (*solana.PublicKey, error) {
	if instrAcctIdx < instrCtx.NumberOfInstructionAccounts() {
		isSigner, err := instrCtx.IsInstructionAccountSigner(instrAcctIdx)
		if err != nil {
			return nil, err
		}

		if mustBeSigner && !isSigner {
			return nil, InstrErrMissingRequiredSignature
		}

		idxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(instrAcctIdx)
		if err != nil {
			return nil, err
		}

		pubkey, err := txCtx.KeyOfAccountAtIndex(idxInTx)
		if err != nil {
			return nil, err
		} else {
			return &pubkey, nil
		}
	} else { // no pubkey, not an error
		return nil, nil
	}
}

var DefaultWarmupCooldownRate float64 = 0.25
var NewWarmupCooldownRate float64 = 0.09

func warmupCooldownRate(currentEpoch uint64, newRateActivationEpoch *uint64) float64 {
	if newRateActivationEpoch == nil {
		e := uint64(math.MaxUint64)
		newRateActivationEpoch = &e
	}
	if currentEpoch < *newRateActivationEpoch {
		return DefaultWarmupCooldownRate
	} else {
		return NewWarmupCooldownRate
	}
}

// newWarmupCooldownRateEpoch returns the epoch in which the reduced
// warmup/cooldown rate took effect, or nil while the old rate is still in
// force.
func newWarmupCooldownRateEpoch(execCtx *ExecutionCtx) *uint64 {
	activationSlot, active := execCtx.GlobalCtx.Features.ActivationSlot(features.ReduceStakeWarmupCooldown)
	if !active {
		return nil
	}

	epochSchedule := ReadEpochScheduleSysvar(&execCtx.Accounts)
	epoch := epochSchedule.GetEpoch(activationSlot)
	return &epoch
}

func determineMinimumDelegation(f features.Features) uint64 {
	if f.IsActive(features.StakeRaiseMinimumDelegationTo1Sol) {
		minimumDelegationSol := 1
		lamportsPerSol := 1000000000
		return uint64(minimumDelegationSol * lamportsPerSol)
	} else {
		return 1
	}
}

// WarmupCooldownRateEpoch exposes the reduced-rate activation epoch to
// callers outside the stake program that classify delegations through
// stake history.
func WarmupCooldownRateEpoch(execCtx *ExecutionCtx) *uint64 {
	return newWarmupCooldownRateEpoch(execCtx)
}

func StakeProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUStakeProgramDefaultComputeUnits)
	if err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	data := instrCtx.Data

	getStakeAccount := func() (*BorrowedAccount, error) {
		acct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
		if err != nil {
			return nil, err
		}
		if acct.Owner() != StakeProgramAddr {
			acct.Drop()
			return nil, InstrErrInvalidAccountOwner
		}
		return acct, nil
	}

	signers, err := instrCtx.Signers(txCtx)
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(data)
	instructionType, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	switch instructionType {
	case StakeProgramInstrTypeInitialize:
		{
			var initialize StakeInstrInitialize
			err = initialize.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			rent := ReadRentSysvar(&execCtx.Accounts)
			err = checkAcctForRentSysvar(txCtx, instrCtx, 1)
			if err != nil {
				me.Drop()
				return err
			}

			err = StakeProgramInitialize(me, initialize.Authorized, initialize.Lockup, rent, execCtx.GlobalCtx.Features)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeAuthorize:
		{
			var authorize StakeInstrAuthorize
			err = authorize.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)
			err = checkAcctForClockSysvar(txCtx, instrCtx, 1)
			if err != nil {
				me.Drop()
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				me.Drop()
				return err
			}

			custodianPubkey, err := getOptionalPubkey(txCtx, instrCtx, 3, false)
			if err != nil {
				me.Drop()
				return err
			}

			err = StakeProgramAuthorize(me, signers, authorize.Pubkey, authorize.StakeAuthorize, clock, custodianPubkey, execCtx.GlobalCtx.Features)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeAuthorizeWithSeed:
		{
			var authorizeWithSeed StakeInstrAuthorizeWithSeed
			err = authorizeWithSeed.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				me.Drop()
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)
			err = checkAcctForClockSysvar(txCtx, instrCtx, 2)
			if err != nil {
				me.Drop()
				return err
			}

			custodianPubkey, err := getOptionalPubkey(txCtx, instrCtx, 3, false)
			if err != nil {
				me.Drop()
				return err
			}

			err = StakeProgramAuthorizeWithSeed(txCtx, instrCtx, me, 1, authorizeWithSeed.AuthoritySeed, authorizeWithSeed.AuthorityOwner, authorizeWithSeed.NewAuthorizedPubkey, authorizeWithSeed.StakeAuthorize, clock, custodianPubkey, execCtx.GlobalCtx.Features)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeDelegateStake:
		{
			me, err := getStakeAccount()
			if err != nil {
				return err
			}
			me.Drop()

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)
			err = checkAcctForClockSysvar(txCtx, instrCtx, 2)
			if err != nil {
				return err
			}

			stakeHistory := ReadStakeHistorySysvar(&execCtx.Accounts)
			err = checkAcctForStakeHistorySysvar(txCtx, instrCtx, 3)
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(5)
			if err != nil {
				return err
			}

			// the config account became vestigial once the new rate activated,
			// but older transactions still pass it and it must still validate
			if !execCtx.GlobalCtx.Features.IsActive(features.ReduceStakeWarmupCooldown) {
				configAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 4)
				if err != nil {
					return err
				}

				isStakeConfigAcct := configAcct.Key() == StakeProgramConfigAddr
				configData := configAcct.Data()
				configAcct.Drop()

				if !isStakeConfigAcct {
					return InstrErrInvalidArgument
				}

				_, err = unmarshalStakeConfig(configData)
				if err != nil {
					return InstrErrInvalidArgument
				}
			}

			return StakeProgramDelegate(execCtx, txCtx, instrCtx, 0, 1, clock, stakeHistory, signers, execCtx.GlobalCtx.Features)
		}

	case StakeProgramInstrTypeSplit:
		{
			var split StakeInstrSplit
			err = split.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}
			me.Drop()

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			return StakeProgramSplit(execCtx, txCtx, instrCtx, 0, split.Lamports, 1, signers)
		}

	case StakeProgramInstrTypeMerge:
		{
			me, err := getStakeAccount()
			if err != nil {
				return err
			}
			me.Drop()

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)
			err = checkAcctForClockSysvar(txCtx, instrCtx, 2)
			if err != nil {
				return err
			}

			stakeHistory := ReadStakeHistorySysvar(&execCtx.Accounts)
			err = checkAcctForStakeHistorySysvar(txCtx, instrCtx, 3)
			if err != nil {
				return err
			}

			return StakeProgramMerge(execCtx, txCtx, instrCtx, 0, 1, clock, stakeHistory, signers)
		}

	case StakeProgramInstrTypeWithdraw:
		{
			var withdraw StakeInstrWithdraw
			err = withdraw.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}
			me.Drop()

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)
			err = checkAcctForClockSysvar(txCtx, instrCtx, 2)
			if err != nil {
				return err
			}

			stakeHistory := ReadStakeHistorySysvar(&execCtx.Accounts)
			err = checkAcctForStakeHistorySysvar(txCtx, instrCtx, 3)
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(5)
			if err != nil {
				return err
			}

			var custodianIdx *uint64
			if instrCtx.NumberOfInstructionAccounts() >= 6 {
				idx := uint64(5)
				custodianIdx = &idx
			}

			return StakeProgramWithdraw(execCtx, txCtx, instrCtx, 0, withdraw.Lamports, 1, clock, stakeHistory, 4, custodianIdx)
		}

	case StakeProgramInstrTypeDeactivate:
		{
			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)
			err = checkAcctForClockSysvar(txCtx, instrCtx, 1)
			if err != nil {
				me.Drop()
				return err
			}

			err = StakeProgramDeactivate(execCtx, me, clock, signers)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeSetLockup:
		{
			var setLockup StakeInstrSetLockup
			err = setLockup.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)

			err = StakeProgramSetLockup(me, setLockup, signers, clock, execCtx.GlobalCtx.Features)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeInitializeChecked:
		{
			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(4)
			if err != nil {
				me.Drop()
				return err
			}

			stakerIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(2)
			if err != nil {
				me.Drop()
				return err
			}
			stakerPubkey, err := txCtx.KeyOfAccountAtIndex(stakerIdxInTx)
			if err != nil {
				me.Drop()
				return err
			}

			withdrawerIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(3)
			if err != nil {
				me.Drop()
				return err
			}
			withdrawerPubkey, err := txCtx.KeyOfAccountAtIndex(withdrawerIdxInTx)
			if err != nil {
				me.Drop()
				return err
			}

			isSigner, err := instrCtx.IsInstructionAccountSigner(3)
			if err != nil {
				me.Drop()
				return err
			}
			if !isSigner {
				me.Drop()
				return InstrErrMissingRequiredSignature
			}

			rent := ReadRentSysvar(&execCtx.Accounts)
			err = checkAcctForRentSysvar(txCtx, instrCtx, 1)
			if err != nil {
				me.Drop()
				return err
			}

			authorized := Authorized{Staker: stakerPubkey, Withdrawer: withdrawerPubkey}
			err = StakeProgramInitialize(me, authorized, StakeLockup{}, rent, execCtx.GlobalCtx.Features)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeAuthorizeChecked:
		{
			var authorizeChecked StakeInstrAuthorizeChecked
			err = authorizeChecked.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)
			err = checkAcctForClockSysvar(txCtx, instrCtx, 1)
			if err != nil {
				me.Drop()
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(4)
			if err != nil {
				me.Drop()
				return err
			}

			authorizedIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(3)
			if err != nil {
				me.Drop()
				return err
			}
			authorizedPubkey, err := txCtx.KeyOfAccountAtIndex(authorizedIdxInTx)
			if err != nil {
				me.Drop()
				return err
			}

			isSigner, err := instrCtx.IsInstructionAccountSigner(3)
			if err != nil {
				me.Drop()
				return err
			}
			if !isSigner {
				me.Drop()
				return InstrErrMissingRequiredSignature
			}

			custodianPubkey, err := getOptionalPubkey(txCtx, instrCtx, 4, false)
			if err != nil {
				me.Drop()
				return err
			}

			err = StakeProgramAuthorize(me, signers, authorizedPubkey, authorizeChecked.StakeAuthorize, clock, custodianPubkey, execCtx.GlobalCtx.Features)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeAuthorizeCheckedWithSeed:
		{
			var authorizeCheckedWithSeed StakeInstrAuthorizeCheckedWithSeed
			err = authorizeCheckedWithSeed.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				me.Drop()
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)
			err = checkAcctForClockSysvar(txCtx, instrCtx, 2)
			if err != nil {
				me.Drop()
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(4)
			if err != nil {
				me.Drop()
				return err
			}

			authorizedIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(3)
			if err != nil {
				me.Drop()
				return err
			}
			authorizedPubkey, err := txCtx.KeyOfAccountAtIndex(authorizedIdxInTx)
			if err != nil {
				me.Drop()
				return err
			}

			isSigner, err := instrCtx.IsInstructionAccountSigner(3)
			if err != nil {
				me.Drop()
				return err
			}
			if !isSigner {
				me.Drop()
				return InstrErrMissingRequiredSignature
			}

			custodianPubkey, err := getOptionalPubkey(txCtx, instrCtx, 4, false)
			if err != nil {
				me.Drop()
				return err
			}

			err = StakeProgramAuthorizeWithSeed(txCtx, instrCtx, me, 1, authorizeCheckedWithSeed.AuthoritySeed, authorizeCheckedWithSeed.AuthorityOwner, authorizedPubkey, authorizeCheckedWithSeed.StakeAuthorize, clock, custodianPubkey, execCtx.GlobalCtx.Features)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeSetLockupChecked:
		{
			var setLockupChecked StakeInstrSetLockupChecked
			err = setLockupChecked.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			custodianPubkey, err := getOptionalPubkey(txCtx, instrCtx, 2, true)
			if err != nil {
				me.Drop()
				return err
			}

			lockup := StakeInstrSetLockup{UnixTimestamp: setLockupChecked.UnixTimestamp, Epoch: setLockupChecked.Epoch, Custodian: custodianPubkey}

			clock := ReadClockSysvar(&execCtx.Accounts)

			err = StakeProgramSetLockup(me, lockup, signers, clock, execCtx.GlobalCtx.Features)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeGetMinimumDelegation:
		{
			minimumDelegation := determineMinimumDelegation(execCtx.GlobalCtx.Features)
			var returnData [8]byte
			binary.LittleEndian.PutUint64(returnData[:], minimumDelegation)
			txCtx.SetReturnData(StakeProgramAddr, returnData[:])
			return nil
		}

	case StakeProgramInstrTypeDeactivateDelinquent:
		{
			me, err := getStakeAccount()
			if err != nil {
				return err
			}

			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				me.Drop()
				return err
			}

			clock := ReadClockSysvar(&execCtx.Accounts)

			err = StakeProgramDeactivateDelinquent(execCtx, txCtx, instrCtx, me, 1, 2, clock.Epoch)
			me.Drop()
			return err
		}

	case StakeProgramInstrTypeRedelegate:
		{
			// deprecated without ever being activated on a live cluster
			return InstrErrInvalidInstructionData
		}

	case StakeProgramInstrTypeMoveStake:
		{
			var moveStake StakeInstrMoveStake
			err = moveStake.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			if !execCtx.GlobalCtx.Features.IsActive(features.MoveStakeAndMoveLamportsInstructions) {
				return InstrErrInvalidInstructionData
			}

			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}

			return StakeProgramMoveStake(execCtx, txCtx, instrCtx, 0, moveStake.Lamports, 1, 2)
		}

	case StakeProgramInstrTypeMoveLamports:
		{
			var moveLamports StakeInstrMoveLamports
			err = moveLamports.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			if !execCtx.GlobalCtx.Features.IsActive(features.MoveStakeAndMoveLamportsInstructions) {
				return InstrErrInvalidInstructionData
			}

			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}

			return StakeProgramMoveLamports(execCtx, txCtx, instrCtx, 0, moveLamports.Lamports, 1, 2)
		}

	default:
		{
			return InstrErrInvalidInstructionData
		}
	}
}

func StakeProgramInitialize(stakeAcct *BorrowedAccount, authorized Authorized, lockup StakeLockup, rent SysvarRent, f features.Features) error {
	if len(stakeAcct.Data()) != StakeStateV2Size {
		return InstrErrInvalidAccountData
	}

	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	if state.Status == StakeStateV2StatusUninitialized {
		rentExemptReserve := rent.MinimumBalance(uint64(len(stakeAcct.Data())))
		if stakeAcct.Lamports() >= rentExemptReserve {
			newStakeState := new(StakeStateV2)
			newStakeState.Status = StakeStateV2StatusInitialized
			newStakeState.Initialized = StakeStateV2Initialized{Meta: Meta{RentExemptReserve: rentExemptReserve, Authorized: authorized, Lockup: lockup}}
			return setStakeAccountState(stakeAcct, newStakeState, f)
		} else {
			return InstrErrInsufficientFunds
		}
	} else {
		return InstrErrInvalidAccountData
	}
}

func validateAndReturnDelegatedAmount(stakeAcct *BorrowedAccount, meta Meta, f features.Features) (uint64, error) {
	stakeAmount := safemath.SaturatingSubU64(stakeAcct.Lamports(), meta.RentExemptReserve)
	minimumDelegation := determineMinimumDelegation(f)

	if stakeAmount < minimumDelegation {
		return 0, StakeErrInsufficientDelegation
	}

	return stakeAmount, nil
}

func StakeProgramAuthorize(stakeAcct *BorrowedAccount, signers []solana.PublicKey, newAuthority solana.PublicKey, stakeAuthorize uint32, clock SysvarClock, custodianPubkey *solana.PublicKey, f features.Features) error {
	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusStake:
		{
			err = state.Stake.Meta.Authorized.Authorize(signers, newAuthority, stakeAuthorize, state.Stake.Meta.Lockup, clock, custodianPubkey)
			if err != nil {
				return err
			}

			err = setStakeAccountState(stakeAcct, state, f)
		}

	case StakeStateV2StatusInitialized:
		{
			err = state.Initialized.Meta.Authorized.Authorize(signers, newAuthority, stakeAuthorize, state.Initialized.Meta.Lockup, clock, custodianPubkey)
			if err != nil {
				return err
			}

			err = setStakeAccountState(stakeAcct, state, f)
		}

	default:
		{
			err = InstrErrInvalidAccountData
		}
	}

	return err
}

func StakeProgramAuthorizeWithSeed(txCtx *TransactionCtx, instrCtx *InstructionCtx, stakeAcct *BorrowedAccount, authorityBaseIndex uint64, authoritySeed string, authorityOwner solana.PublicKey, newAuthority solana.PublicKey, stakeAuthorize uint32, clock SysvarClock, custodian *solana.PublicKey, f features.Features) error {
	var signers []solana.PublicKey

	isSigner, err := instrCtx.IsInstructionAccountSigner(authorityBaseIndex)
	if err != nil {
		return err
	}

	if isSigner {
		idx, err := instrCtx.IndexOfInstructionAccountInTransaction(authorityBaseIndex)
		if err != nil {
			return err
		}

		basePubkey, err := txCtx.KeyOfAccountAtIndex(idx)
		if err != nil {
			return err
		}
		pk, err := solana.CreateWithSeed(basePubkey, authoritySeed, authorityOwner)
		if err != nil {
			return err
		}
		signers = append(signers, pk)
	}

	return StakeProgramAuthorize(stakeAcct, signers, newAuthority, stakeAuthorize, clock, custodian, f)
}

func StakeProgramDelegate(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, stakeAcctIdx uint64, voteAcctIdx uint64, clock SysvarClock, stakeHistory SysvarStakeHistory, signers []solana.PublicKey, f features.Features) error {
	voteAcct, err := instrCtx.BorrowInstructionAccount(txCtx, voteAcctIdx)
	if err != nil {
		return err
	}

	if voteAcct.Owner() != VoteProgramAddr {
		voteAcct.Drop()
		return InstrErrIncorrectProgramId
	}

	votePubkey := voteAcct.Key()
	versionedVoteState, voteUnmarshalErr := unmarshalVersionedVoteState(voteAcct.Data())
	voteAcct.Drop()

	stakeAcct, err := instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdx)
	if err != nil {
		return err
	}
	defer stakeAcct.Drop()

	stakeState, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	switch stakeState.Status {
	case StakeStateV2StatusInitialized:
		{
			err = stakeState.Initialized.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}
			stakeAmount, err := validateAndReturnDelegatedAmount(stakeAcct, stakeState.Initialized.Meta, f)
			if err != nil {
				return err
			}

			if voteUnmarshalErr != nil {
				return voteUnmarshalErr
			}

			credits := versionedVoteState.ConvertToCurrent().Credits()
			stake := Stake{Delegation: newStakeDelegation(votePubkey, stakeAmount, clock.Epoch), CreditsObserved: credits}

			newState := &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: stakeState.Initialized.Meta, Stake: stake}}
			return setStakeAccountState(stakeAcct, newState, f)
		}

	case StakeStateV2StatusStake:
		{
			err = stakeState.Stake.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}
			stakeAmount, err := validateAndReturnDelegatedAmount(stakeAcct, stakeState.Stake.Meta, f)
			if err != nil {
				return err
			}

			if voteUnmarshalErr != nil {
				return voteUnmarshalErr
			}

			err = modifyStakeForRedelegation(execCtx, &stakeState.Stake.Stake, stakeAmount, votePubkey, versionedVoteState.ConvertToCurrent(), clock, stakeHistory)
			if err != nil {
				return err
			}

			return setStakeAccountState(stakeAcct, stakeState, f)
		}

	default:
		{
			return InstrErrInvalidAccountData
		}
	}
}

// Reusing a stake account for a new delegation is only possible while the
// old delegation carries no effective stake. The exception is a delegation
// deactivated in the current epoch and pointed back at the same voter, which
// rescinds the deactivation.
func modifyStakeForRedelegation(execCtx *ExecutionCtx, stake *Stake, stakeLamports uint64, voterPubkey solana.PublicKey, voteState *VoteState, clock SysvarClock, stakeHistory SysvarStakeHistory) error {
	if stake.Delegation.EffectiveStake(clock.Epoch, stakeHistory, newWarmupCooldownRateEpoch(execCtx)) != 0 {
		if stake.Delegation.VoterPubkey == voterPubkey && clock.Epoch == stake.Delegation.DeactivationEpoch {
			stake.Delegation.DeactivationEpoch = math.MaxUint64
			return nil
		}
		return StakeErrTooSoonToRedelegate
	}

	stake.Delegation.StakeLamports = stakeLamports
	stake.Delegation.ActivationEpoch = clock.Epoch
	stake.Delegation.DeactivationEpoch = math.MaxUint64
	stake.Delegation.VoterPubkey = voterPubkey
	stake.CreditsObserved = voteState.Credits()
	return nil
}

type validatedSplitInfo struct {
	SourceRemainingBalance       uint64
	DestinationRentExemptReserve uint64
}

func validateSplitAmount(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, sourceAcctIdx uint64, destAcctIdx uint64, lamports uint64, sourceMeta *Meta, additionalRequiredLamports uint64, sourceIsActive bool) (validatedSplitInfo, error) {
	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, sourceAcctIdx)
	if err != nil {
		return validatedSplitInfo{}, err
	}
	sourceLamports := sourceAcct.Lamports()
	sourceAcct.Drop()

	destAcct, err := instrCtx.BorrowInstructionAccount(txCtx, destAcctIdx)
	if err != nil {
		return validatedSplitInfo{}, err
	}
	destLamports := destAcct.Lamports()
	destDataLen := uint64(len(destAcct.Data()))
	destAcct.Drop()

	if lamports == 0 {
		return validatedSplitInfo{}, InstrErrInsufficientFunds
	}

	if lamports > sourceLamports {
		return validatedSplitInfo{}, InstrErrInsufficientFunds
	}

	// the source must either retain at least its minimum balance or be
	// drained entirely and closed
	sourceMinimumBalance := safemath.SaturatingAddU64(sourceMeta.RentExemptReserve, additionalRequiredLamports)
	sourceRemainingBalance := safemath.SaturatingSubU64(sourceLamports, lamports)
	if sourceRemainingBalance != 0 && sourceRemainingBalance < sourceMinimumBalance {
		return validatedSplitInfo{}, InstrErrInsufficientFunds
	}

	rent := ReadRentSysvar(&execCtx.Accounts)
	destRentExemptReserve := rent.MinimumBalance(destDataLen)

	// an active partial split must land in an already rent-exempt
	// destination, since the moved lamports are stake and cannot cover rent
	if execCtx.GlobalCtx.Features.IsActive(features.RequireRentExemptSplitDestination) &&
		sourceIsActive && sourceRemainingBalance != 0 && destLamports < destRentExemptReserve {
		return validatedSplitInfo{}, InstrErrInsufficientFunds
	}

	// prefunding lowers the minimum split amount, a larger destination
	// account raises it
	destMinimumBalance := safemath.SaturatingAddU64(destRentExemptReserve, additionalRequiredLamports)
	destBalanceDeficit := safemath.SaturatingSubU64(destMinimumBalance, destLamports)
	if lamports < destBalanceDeficit {
		return validatedSplitInfo{}, InstrErrInsufficientFunds
	}

	return validatedSplitInfo{SourceRemainingBalance: sourceRemainingBalance, DestinationRentExemptReserve: destRentExemptReserve}, nil
}

func StakeProgramSplit(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, stakeAcctIdx uint64, lamports uint64, splitAcctIdx uint64, signers []solana.PublicKey) error {
	splitAcct, err := instrCtx.BorrowInstructionAccount(txCtx, splitAcctIdx)
	if err != nil {
		return err
	}

	if splitAcct.Owner() != StakeProgramAddr {
		splitAcct.Drop()
		return InstrErrIncorrectProgramId
	}

	if len(splitAcct.Data()) != StakeStateV2Size {
		splitAcct.Drop()
		return InstrErrInvalidAccountData
	}

	splitState, err := unmarshalStakeState(splitAcct.Data())
	if err != nil {
		splitAcct.Drop()
		return err
	}

	if splitState.Status != StakeStateV2StatusUninitialized {
		splitAcct.Drop()
		return InstrErrInvalidAccountData
	}

	splitLamportBalance := splitAcct.Lamports()
	splitAcct.Drop()

	stakeAcct, err := instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdx)
	if err != nil {
		return err
	}

	if lamports > stakeAcct.Lamports() {
		stakeAcct.Drop()
		return InstrErrInsufficientFunds
	}

	stakeState, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		stakeAcct.Drop()
		return err
	}
	stakeAcct.Drop()

	switch stakeState.Status {
	case StakeStateV2StatusStake:
		{
			meta := stakeState.Stake.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}

			minimumDelegation := determineMinimumDelegation(execCtx.GlobalCtx.Features)

			clock := ReadClockSysvar(&execCtx.Accounts)
			stakeHistory := ReadStakeHistorySysvar(&execCtx.Accounts)
			status := stakeState.Stake.Stake.Delegation.StakeActivatingAndDeactivating(clock.Epoch, stakeHistory, newWarmupCooldownRateEpoch(execCtx))
			sourceIsActive := status.Effective > 0

			validatedInfo, err := validateSplitAmount(execCtx, txCtx, instrCtx, stakeAcctIdx, splitAcctIdx, lamports, &meta, minimumDelegation, sourceIsActive)
			if err != nil {
				return err
			}

			// If the source is being drained, the split stake must equal the
			// full amount net of the source's own rent reserve, regardless of
			// any balance already sitting in the split account. Otherwise a
			// prefunded split account could conjure activated stake out of
			// free lamports.
			var remainingStakeDelta, splitStakeAmount uint64
			if validatedInfo.SourceRemainingBalance == 0 {
				remainingStakeDelta = safemath.SaturatingSubU64(lamports, meta.RentExemptReserve)
				splitStakeAmount = remainingStakeDelta
			} else {
				if safemath.SaturatingSubU64(stakeState.Stake.Stake.Delegation.StakeLamports, lamports) < minimumDelegation {
					return StakeErrInsufficientDelegation
				}
				remainingStakeDelta = lamports
				splitStakeAmount = safemath.SaturatingSubU64(lamports, safemath.SaturatingSubU64(validatedInfo.DestinationRentExemptReserve, splitLamportBalance))
			}

			if splitStakeAmount < minimumDelegation {
				return StakeErrInsufficientDelegation
			}

			splitStake, err := stakeState.Stake.Stake.Split(remainingStakeDelta, splitStakeAmount)
			if err != nil {
				return err
			}

			splitMeta := meta
			splitMeta.RentExemptReserve = validatedInfo.DestinationRentExemptReserve

			stakeAcct, err = instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdx)
			if err != nil {
				return err
			}
			err = setStakeAccountState(stakeAcct, stakeState, execCtx.GlobalCtx.Features)
			stakeAcct.Drop()
			if err != nil {
				return err
			}

			splitAcct, err = instrCtx.BorrowInstructionAccount(txCtx, splitAcctIdx)
			if err != nil {
				return err
			}
			newSplitState := &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: splitMeta, Stake: splitStake, StakeFlags: stakeState.Stake.StakeFlags}}
			err = setStakeAccountState(splitAcct, newSplitState, execCtx.GlobalCtx.Features)
			splitAcct.Drop()
			if err != nil {
				return err
			}
		}

	case StakeStateV2StatusInitialized:
		{
			meta := stakeState.Initialized.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}

			validatedInfo, err := validateSplitAmount(execCtx, txCtx, instrCtx, stakeAcctIdx, splitAcctIdx, lamports, &meta, 0, false)
			if err != nil {
				return err
			}

			splitMeta := meta
			splitMeta.RentExemptReserve = validatedInfo.DestinationRentExemptReserve

			splitAcct, err = instrCtx.BorrowInstructionAccount(txCtx, splitAcctIdx)
			if err != nil {
				return err
			}
			newSplitState := &StakeStateV2{Status: StakeStateV2StatusInitialized, Initialized: StakeStateV2Initialized{Meta: splitMeta}}
			err = setStakeAccountState(splitAcct, newSplitState, execCtx.GlobalCtx.Features)
			splitAcct.Drop()
			if err != nil {
				return err
			}
		}

	case StakeStateV2StatusUninitialized:
		{
			stakeIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(stakeAcctIdx)
			if err != nil {
				return err
			}

			stakePubkey, err := txCtx.KeyOfAccountAtIndex(stakeIdxInTx)
			if err != nil {
				return err
			}

			err = verifySigner(stakePubkey, signers)
			if err != nil {
				return err
			}
		}

	default:
		{
			return InstrErrInvalidAccountData
		}
	}

	// a full split deinitializes the source account
	stakeAcct, err = instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdx)
	if err != nil {
		return err
	}

	if lamports == stakeAcct.Lamports() {
		err = setStakeAccountState(stakeAcct, &StakeStateV2{Status: StakeStateV2StatusUninitialized}, execCtx.GlobalCtx.Features)
		if err != nil {
			stakeAcct.Drop()
			return err
		}
	}
	stakeAcct.Drop()

	splitAcct, err = instrCtx.BorrowInstructionAccount(txCtx, splitAcctIdx)
	if err != nil {
		return err
	}
	err = splitAcct.CheckedAddLamports(lamports, execCtx.GlobalCtx.Features)
	splitAcct.Drop()
	if err != nil {
		return err
	}

	stakeAcct, err = instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdx)
	if err != nil {
		return err
	}
	err = stakeAcct.CheckedSubLamports(lamports, execCtx.GlobalCtx.Features)
	stakeAcct.Drop()
	return err
}

func StakeProgramMerge(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, stakeAcctIdx uint64, sourceAcctIdx uint64, clock SysvarClock, stakeHistory SysvarStakeHistory, signers []solana.PublicKey) error {
	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, sourceAcctIdx)
	if err != nil {
		return err
	}
	defer sourceAcct.Drop()

	if sourceAcct.Owner() != StakeProgramAddr {
		return InstrErrIncorrectProgramId
	}

	// passing the same account twice would drain it into itself
	stakeAcctIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(stakeAcctIdx)
	if err != nil {
		return err
	}
	sourceAcctIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(sourceAcctIdx)
	if err != nil {
		return err
	}
	if stakeAcctIdxInTx == sourceAcctIdxInTx {
		return InstrErrInvalidArgument
	}

	stakeAcct, err := instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdx)
	if err != nil {
		return err
	}
	defer stakeAcct.Drop()

	klog.V(2).Infof("checking if destination stake is mergeable")
	stakeState, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	stakeMergeKind, err := getIfMergeable(execCtx, stakeState, stakeAcct.Lamports(), clock, stakeHistory)
	if err != nil {
		return err
	}

	// the staker authority may split and merge accounts
	err = stakeMergeKind.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return err
	}

	klog.V(2).Infof("checking if source stake is mergeable")
	sourceState, err := unmarshalStakeState(sourceAcct.Data())
	if err != nil {
		return err
	}

	sourceMergeKind, err := getIfMergeable(execCtx, sourceState, sourceAcct.Lamports(), clock, stakeHistory)
	if err != nil {
		return err
	}

	klog.V(2).Infof("merging stake accounts")
	mergedState, err := stakeMergeKind.Merge(sourceMergeKind, clock)
	if err != nil {
		return err
	}

	if mergedState != nil {
		err = setStakeAccountState(stakeAcct, mergedState, execCtx.GlobalCtx.Features)
		if err != nil {
			return err
		}
	}

	// the source is drained and handed back to the system program
	err = setStakeAccountState(sourceAcct, &StakeStateV2{Status: StakeStateV2StatusUninitialized}, execCtx.GlobalCtx.Features)
	if err != nil {
		return err
	}

	sourceLamports := sourceAcct.Lamports()
	err = sourceAcct.CheckedSubLamports(sourceLamports, execCtx.GlobalCtx.Features)
	if err != nil {
		return err
	}

	return stakeAcct.CheckedAddLamports(sourceLamports, execCtx.GlobalCtx.Features)
}

func StakeProgramWithdraw(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, stakeAcctIdx uint64, lamports uint64, toAcctIdx uint64, clock SysvarClock, stakeHistory SysvarStakeHistory, withdrawAuthorityIdx uint64, custodianIdx *uint64) error {
	withdrawAuthorityIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(withdrawAuthorityIdx)
	if err != nil {
		return err
	}

	withdrawAuthorityPubkey, err := txCtx.KeyOfAccountAtIndex(withdrawAuthorityIdxInTx)
	if err != nil {
		return err
	}

	isSigner, err := instrCtx.IsInstructionAccountSigner(withdrawAuthorityIdx)
	if err != nil {
		return err
	}
	if !isSigner {
		return InstrErrMissingRequiredSignature
	}

	// only the withdraw authority's own signature counts here
	signers := []solana.PublicKey{withdrawAuthorityPubkey}

	stakeAcct, err := instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdx)
	if err != nil {
		return err
	}

	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		stakeAcct.Drop()
		return err
	}

	var lockup StakeLockup
	var reserve uint64
	var isStaked bool

	switch state.Status {
	case StakeStateV2StatusStake:
		{
			err = state.Stake.Meta.Authorized.Check(signers, StakeAuthorizeWithdrawer)
			if err != nil {
				stakeAcct.Drop()
				return err
			}

			// until deactivation begins the full delegation is treated as
			// staked, after that only the still-effective portion is
			var staked uint64
			if clock.Epoch >= state.Stake.Stake.Delegation.DeactivationEpoch {
				staked = state.Stake.Stake.Delegation.EffectiveStake(clock.Epoch, stakeHistory, newWarmupCooldownRateEpoch(execCtx))
			} else {
				staked = state.Stake.Stake.Delegation.StakeLamports
			}

			stakedAndReserve, err := safemath.CheckedAddU64(staked, state.Stake.Meta.RentExemptReserve)
			if err != nil {
				stakeAcct.Drop()
				return InstrErrInsufficientFunds
			}

			lockup = state.Stake.Meta.Lockup
			reserve = stakedAndReserve
			isStaked = staked != 0
		}

	case StakeStateV2StatusInitialized:
		{
			err = state.Initialized.Meta.Authorized.Check(signers, StakeAuthorizeWithdrawer)
			if err != nil {
				stakeAcct.Drop()
				return err
			}

			lockup = state.Initialized.Meta.Lockup
			reserve = state.Initialized.Meta.RentExemptReserve
			isStaked = false
		}

	case StakeStateV2StatusUninitialized:
		{
			err = verifySigner(stakeAcct.Key(), signers)
			if err != nil {
				stakeAcct.Drop()
				return err
			}
		}

	default:
		{
			stakeAcct.Drop()
			return InstrErrInvalidAccountData
		}
	}

	// the custodian only matters if they actually signed
	var custodianPubkey *solana.PublicKey
	if custodianIdx != nil {
		isSigner, err := instrCtx.IsInstructionAccountSigner(*custodianIdx)
		if err != nil {
			stakeAcct.Drop()
			return err
		}

		if isSigner {
			custodianIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(*custodianIdx)
			if err != nil {
				stakeAcct.Drop()
				return err
			}

			pk, err := txCtx.KeyOfAccountAtIndex(custodianIdxInTx)
			if err != nil {
				stakeAcct.Drop()
				return err
			}
			custodianPubkey = &pk
		}
	}

	if lockup.IsInForce(clock, custodianPubkey) {
		stakeAcct.Drop()
		return StakeErrLockupInForce
	}

	lamportsAndReserve, err := safemath.CheckedAddU64(lamports, reserve)
	if err != nil {
		stakeAcct.Drop()
		return InstrErrInsufficientFunds
	}

	// an actively staked account must not go away
	if isStaked && lamportsAndReserve > stakeAcct.Lamports() {
		stakeAcct.Drop()
		return InstrErrInsufficientFunds
	}

	// a partial withdrawal must not deplete the reserve
	if lamports != stakeAcct.Lamports() && lamportsAndReserve > stakeAcct.Lamports() {
		stakeAcct.Drop()
		return InstrErrInsufficientFunds
	}

	// deinitialize upon zero balance
	if lamports == stakeAcct.Lamports() {
		err = setStakeAccountState(stakeAcct, &StakeStateV2{Status: StakeStateV2StatusUninitialized}, execCtx.GlobalCtx.Features)
		if err != nil {
			stakeAcct.Drop()
			return err
		}
	}

	err = stakeAcct.CheckedSubLamports(lamports, execCtx.GlobalCtx.Features)
	stakeAcct.Drop()
	if err != nil {
		return err
	}

	toAcct, err := instrCtx.BorrowInstructionAccount(txCtx, toAcctIdx)
	if err != nil {
		return err
	}
	err = toAcct.CheckedAddLamports(lamports, execCtx.GlobalCtx.Features)
	toAcct.Drop()
	return err
}

func StakeProgramDeactivate(execCtx *ExecutionCtx, stakeAcct *BorrowedAccount, clock SysvarClock, signers []solana.PublicKey) error {
	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	if state.Status != StakeStateV2StatusStake {
		return InstrErrInvalidAccountData
	}

	err = state.Stake.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return err
	}

	err = state.Stake.Stake.Deactivate(clock.Epoch)
	if err != nil {
		return err
	}

	return setStakeAccountState(stakeAcct, state, execCtx.GlobalCtx.Features)
}

func StakeProgramSetLockup(stakeAcct *BorrowedAccount, lockup StakeInstrSetLockup, signers []solana.PublicKey, clock SysvarClock, f features.Features) error {
	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusStake:
		{
			err = state.Stake.Meta.SetLockup(lockup.UnixTimestamp, lockup.Epoch, lockup.Custodian, signers, clock)
			if err != nil {
				return err
			}
			return setStakeAccountState(stakeAcct, state, f)
		}

	case StakeStateV2StatusInitialized:
		{
			err = state.Initialized.Meta.SetLockup(lockup.UnixTimestamp, lockup.Epoch, lockup.Custodian, signers, clock)
			if err != nil {
				return err
			}
			return setStakeAccountState(stakeAcct, state, f)
		}

	default:
		{
			return InstrErrInvalidAccountData
		}
	}
}

// acceptableReferenceEpochCredits reports whether a vote account earned
// credits in each of the last MinimumDelinquentEpochsForDeactivation epochs,
// ending at currentEpoch.
func acceptableReferenceEpochCredits(epochCredits []VoteEpochCredits, currentEpoch uint64) bool {
	if len(epochCredits) < MinimumDelinquentEpochsForDeactivation {
		return false
	}

	epoch := currentEpoch
	for i := len(epochCredits) - 1; i >= len(epochCredits)-MinimumDelinquentEpochsForDeactivation; i-- {
		if epochCredits[i].Epoch != epoch {
			return false
		}
		epoch = safemath.SaturatingSubU64(epoch, 1)
	}

	return true
}

// eligibleForDeactivateDelinquent reports whether a vote account has never
// voted, or last earned credits at least
// MinimumDelinquentEpochsForDeactivation epochs ago.
func eligibleForDeactivateDelinquent(epochCredits []VoteEpochCredits, currentEpoch uint64) bool {
	if len(epochCredits) == 0 {
		return true
	}

	lastEpoch := epochCredits[len(epochCredits)-1].Epoch
	minimumEpoch, err := safemath.CheckedSubU64(currentEpoch, MinimumDelinquentEpochsForDeactivation)
	if err != nil {
		return false
	}

	return lastEpoch <= minimumEpoch
}

func StakeProgramDeactivateDelinquent(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, stakeAcct *BorrowedAccount, delinquentVoteAcctIdx uint64, referenceVoteAcctIdx uint64, currentEpoch uint64) error {
	delinquentVoteAcct, err := instrCtx.BorrowInstructionAccount(txCtx, delinquentVoteAcctIdx)
	if err != nil {
		return err
	}

	if delinquentVoteAcct.Owner() != VoteProgramAddr {
		delinquentVoteAcct.Drop()
		return InstrErrIncorrectProgramId
	}

	delinquentVotePubkey := delinquentVoteAcct.Key()
	delinquentVersionedVoteState, err := unmarshalVersionedVoteState(delinquentVoteAcct.Data())
	delinquentVoteAcct.Drop()
	if err != nil {
		return err
	}
	delinquentVoteState := delinquentVersionedVoteState.ConvertToCurrent()

	referenceVoteAcct, err := instrCtx.BorrowInstructionAccount(txCtx, referenceVoteAcctIdx)
	if err != nil {
		return err
	}

	if referenceVoteAcct.Owner() != VoteProgramAddr {
		referenceVoteAcct.Drop()
		return InstrErrIncorrectProgramId
	}

	referenceVersionedVoteState, err := unmarshalVersionedVoteState(referenceVoteAcct.Data())
	referenceVoteAcct.Drop()
	if err != nil {
		return err
	}
	referenceVoteState := referenceVersionedVoteState.ConvertToCurrent()

	if !acceptableReferenceEpochCredits(referenceVoteState.EpochCredits, currentEpoch) {
		return StakeErrInsufficientReferenceVotes
	}

	state, err := unmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return err
	}

	if state.Status != StakeStateV2StatusStake {
		return InstrErrInvalidAccountData
	}

	if state.Stake.Stake.Delegation.VoterPubkey != delinquentVotePubkey {
		return StakeErrVoteAddressMismatch
	}

	// anyone may deactivate stake pointed at a provably dead validator
	if !eligibleForDeactivateDelinquent(delinquentVoteState.EpochCredits, currentEpoch) {
		return StakeErrMinimumDelinquentEpochsForDeactivationNotMet
	}

	err = state.Stake.Stake.Deactivate(currentEpoch)
	if err != nil {
		return err
	}

	return setStakeAccountState(stakeAcct, state, execCtx.GlobalCtx.Features)
}

// moveStakeOrLamportsSharedChecks validates both accounts of a MoveStake or
// MoveLamports and classifies them for merging, with the staker authority
// verified against the source.
func moveStakeOrLamportsSharedChecks(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, sourceAcctIdx uint64, lamports uint64, destAcctIdx uint64, stakeAuthorityIdx uint64) (MergeKind, MergeKind, error) {
	isSigner, err := instrCtx.IsInstructionAccountSigner(stakeAuthorityIdx)
	if err != nil {
		return MergeKind{}, MergeKind{}, err
	}
	if !isSigner {
		return MergeKind{}, MergeKind{}, InstrErrMissingRequiredSignature
	}

	stakeAuthorityIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(stakeAuthorityIdx)
	if err != nil {
		return MergeKind{}, MergeKind{}, err
	}
	stakeAuthorityPubkey, err := txCtx.KeyOfAccountAtIndex(stakeAuthorityIdxInTx)
	if err != nil {
		return MergeKind{}, MergeKind{}, err
	}
	signers := []solana.PublicKey{stakeAuthorityPubkey}

	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, sourceAcctIdx)
	if err != nil {
		return MergeKind{}, MergeKind{}, err
	}
	sourceOwner := sourceAcct.Owner()
	sourcePubkey := sourceAcct.Key()
	sourceWritable := sourceAcct.IsWritable()
	sourceLamports := sourceAcct.Lamports()
	sourceState, sourceStateErr := unmarshalStakeState(sourceAcct.Data())
	sourceAcct.Drop()

	destAcct, err := instrCtx.BorrowInstructionAccount(txCtx, destAcctIdx)
	if err != nil {
		return MergeKind{}, MergeKind{}, err
	}
	destOwner := destAcct.Owner()
	destPubkey := destAcct.Key()
	destWritable := destAcct.IsWritable()
	destLamports := destAcct.Lamports()
	destState, destStateErr := unmarshalStakeState(destAcct.Data())
	destAcct.Drop()

	if sourceOwner != StakeProgramAddr || destOwner != StakeProgramAddr {
		return MergeKind{}, MergeKind{}, InstrErrIncorrectProgramId
	}

	if sourcePubkey == destPubkey {
		return MergeKind{}, MergeKind{}, InstrErrInvalidInstructionData
	}

	// the runtime guards against unauthorized writes, but checking here
	// rules out a successful no-op that never attempts one
	if !sourceWritable || !destWritable {
		return MergeKind{}, MergeKind{}, InstrErrInvalidInstructionData
	}

	if lamports == 0 {
		return MergeKind{}, MergeKind{}, InstrErrInvalidArgument
	}

	clock := ReadClockSysvar(&execCtx.Accounts)
	stakeHistory := ReadStakeHistorySysvar(&execCtx.Accounts)

	if sourceStateErr != nil {
		return MergeKind{}, MergeKind{}, sourceStateErr
	}
	sourceMergeKind, err := getIfMergeable(execCtx, sourceState, sourceLamports, clock, stakeHistory)
	if err != nil {
		return MergeKind{}, MergeKind{}, err
	}

	err = sourceMergeKind.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return MergeKind{}, MergeKind{}, err
	}

	if destStateErr != nil {
		return MergeKind{}, MergeKind{}, destStateErr
	}
	destMergeKind, err := getIfMergeable(execCtx, destState, destLamports, clock, stakeHistory)
	if err != nil {
		return MergeKind{}, MergeKind{}, err
	}

	err = metasCanMerge(&sourceMergeKind.Meta, &destMergeKind.Meta, clock)
	if err != nil {
		return MergeKind{}, MergeKind{}, err
	}

	return sourceMergeKind, destMergeKind, nil
}

func StakeProgramMoveStake(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, sourceAcctIdx uint64, lamports uint64, destAcctIdx uint64, stakeAuthorityIdx uint64) error {
	sourceMergeKind, destMergeKind, err := moveStakeOrLamportsSharedChecks(execCtx, txCtx, instrCtx, sourceAcctIdx, lamports, destAcctIdx, stakeAuthorityIdx)
	if err != nil {
		return err
	}

	// a stale account from an older state layout must not slip through
	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, sourceAcctIdx)
	if err != nil {
		return err
	}
	sourceDataLen := len(sourceAcct.Data())
	sourceAcct.Drop()

	destAcct, err := instrCtx.BorrowInstructionAccount(txCtx, destAcctIdx)
	if err != nil {
		return err
	}
	destDataLen := len(destAcct.Data())
	destAcct.Drop()

	if sourceDataLen != StakeStateV2Size || destDataLen != StakeStateV2Size {
		return InstrErrInvalidAccountData
	}

	if sourceMergeKind.Kind != MergeKindFullyActive {
		return InstrErrInvalidAccountData
	}
	sourceStake := sourceMergeKind.Stake

	minimumDelegation := determineMinimumDelegation(execCtx.GlobalCtx.Features)

	sourceEffectiveStake := sourceStake.Delegation.StakeLamports
	sourceFinalStake, err := safemath.CheckedSubU64(sourceEffectiveStake, lamports)
	if err != nil {
		return InstrErrInvalidArgument
	}

	// unless the source is emptied out, it must keep a valid delegation
	if sourceFinalStake != 0 && sourceFinalStake < minimumDelegation {
		return InstrErrInvalidArgument
	}

	var destStake Stake
	switch destMergeKind.Kind {
	case MergeKindFullyActive:
		{
			if destMergeKind.Stake.Delegation.VoterPubkey != sourceStake.Delegation.VoterPubkey {
				return StakeErrVoteAddressMismatch
			}

			destFinalStake, err := safemath.CheckedAddU64(destMergeKind.Stake.Delegation.StakeLamports, lamports)
			if err != nil {
				return InstrErrArithmeticOverflow
			}

			if destFinalStake < minimumDelegation {
				return InstrErrInvalidArgument
			}

			destStake = destMergeKind.Stake
			err = mergeDelegationStakeAndCreditsObserved(&destStake, lamports, sourceStake.CreditsObserved)
			if err != nil {
				return err
			}
		}

	case MergeKindInactive:
		{
			if lamports < minimumDelegation {
				return InstrErrInvalidArgument
			}

			// the destination inherits the source delegation wholesale
			destStake = sourceStake
			destStake.Delegation.StakeLamports = lamports
		}

	default:
		{
			return InstrErrInvalidAccountData
		}
	}

	destAcct, err = instrCtx.BorrowInstructionAccount(txCtx, destAcctIdx)
	if err != nil {
		return err
	}
	err = setStakeAccountState(destAcct, &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: destMergeKind.Meta, Stake: destStake}}, execCtx.GlobalCtx.Features)
	destAcct.Drop()
	if err != nil {
		return err
	}

	sourceAcct, err = instrCtx.BorrowInstructionAccount(txCtx, sourceAcctIdx)
	if err != nil {
		return err
	}

	if sourceFinalStake == 0 {
		err = setStakeAccountState(sourceAcct, &StakeStateV2{Status: StakeStateV2StatusInitialized, Initialized: StakeStateV2Initialized{Meta: sourceMergeKind.Meta}}, execCtx.GlobalCtx.Features)
	} else {
		newSourceStake := sourceStake
		newSourceStake.Delegation.StakeLamports = sourceFinalStake
		err = setStakeAccountState(sourceAcct, &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: sourceMergeKind.Meta, Stake: newSourceStake}}, execCtx.GlobalCtx.Features)
	}
	if err != nil {
		sourceAcct.Drop()
		return err
	}

	err = sourceAcct.CheckedSubLamports(lamports, execCtx.GlobalCtx.Features)
	sourceLamports := sourceAcct.Lamports()
	sourceAcct.Drop()
	if err != nil {
		return err
	}

	destAcct, err = instrCtx.BorrowInstructionAccount(txCtx, destAcctIdx)
	if err != nil {
		return err
	}
	err = destAcct.CheckedAddLamports(lamports, execCtx.GlobalCtx.Features)
	destLamports := destAcct.Lamports()
	destAcct.Drop()
	if err != nil {
		return err
	}

	// the math above cannot take either balance below its rent reserve,
	// but the arithmetic is all unsigned so the check is cheap
	if sourceLamports < sourceMergeKind.Meta.RentExemptReserve || destLamports < destMergeKind.Meta.RentExemptReserve {
		return InstrErrInvalidArgument
	}

	return nil
}

func StakeProgramMoveLamports(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, sourceAcctIdx uint64, lamports uint64, destAcctIdx uint64, stakeAuthorityIdx uint64) error {
	sourceMergeKind, _, err := moveStakeOrLamportsSharedChecks(execCtx, txCtx, instrCtx, sourceAcctIdx, lamports, destAcctIdx, stakeAuthorityIdx)
	if err != nil {
		return err
	}

	var sourceFreeLamports uint64
	switch sourceMergeKind.Kind {
	case MergeKindFullyActive:
		{
			sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, sourceAcctIdx)
			if err != nil {
				return err
			}
			sourceLamports := sourceAcct.Lamports()
			sourceAcct.Drop()

			sourceFreeLamports = safemath.SaturatingSubU64(safemath.SaturatingSubU64(sourceLamports, sourceMergeKind.Stake.Delegation.StakeLamports), sourceMergeKind.Meta.RentExemptReserve)
		}

	case MergeKindInactive:
		{
			sourceFreeLamports = safemath.SaturatingSubU64(sourceMergeKind.Lamports, sourceMergeKind.Meta.RentExemptReserve)
		}

	default:
		{
			return InstrErrInvalidAccountData
		}
	}

	if lamports > sourceFreeLamports {
		return InstrErrInvalidArgument
	}

	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, sourceAcctIdx)
	if err != nil {
		return err
	}
	err = sourceAcct.CheckedSubLamports(lamports, execCtx.GlobalCtx.Features)
	sourceAcct.Drop()
	if err != nil {
		return err
	}

	destAcct, err := instrCtx.BorrowInstructionAccount(txCtx, destAcctIdx)
	if err != nil {
		return err
	}
	err = destAcct.CheckedAddLamports(lamports, execCtx.GlobalCtx.Features)
	destAcct.Drop()
	return err
}

func NewStakeInitializeInstruction(stakePubkey solana.PublicKey, staker solana.PublicKey, withdrawer solana.PublicKey, lockup StakeLockup) *Instruction {
	initialize := StakeInstrInitialize{Authorized: Authorized{Staker: staker, Withdrawer: withdrawer}, Lockup: lockup}

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeInitialize, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	err = initialize.MarshalWithEncoder(encoder)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: stakePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: SysvarRentAddr, IsSigner: false, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}

func NewStakeAuthorizeInstruction(stakePubkey solana.PublicKey, authority solana.PublicKey, newAuthority solana.PublicKey, stakeAuthorize uint32, custodian *solana.PublicKey) *Instruction {
	authorize := StakeInstrAuthorize{Pubkey: newAuthority, StakeAuthorize: stakeAuthorize}

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeAuthorize, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	err = authorize.MarshalWithEncoder(encoder)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: stakePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: SysvarClockAddr, IsSigner: false, IsWritable: false},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	if custodian != nil {
		accounts = append(accounts, AccountMeta{Pubkey: *custodian, IsSigner: true, IsWritable: false})
	}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}

func NewStakeDelegateInstruction(stakePubkey solana.PublicKey, votePubkey solana.PublicKey, authority solana.PublicKey) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeDelegateStake, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: stakePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: votePubkey, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarClockAddr, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarStakeHistoryAddr, IsSigner: false, IsWritable: false},
		{Pubkey: StakeProgramConfigAddr, IsSigner: false, IsWritable: false},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}

func NewStakeSplitInstruction(stakePubkey solana.PublicKey, splitPubkey solana.PublicKey, lamports uint64, authority solana.PublicKey) *Instruction {
	split := StakeInstrSplit{Lamports: lamports}

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeSplit, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	err = split.MarshalWithEncoder(encoder)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: stakePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: splitPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}

func NewStakeWithdrawInstruction(stakePubkey solana.PublicKey, recipient solana.PublicKey, lamports uint64, withdrawAuthority solana.PublicKey, custodian *solana.PublicKey) *Instruction {
	withdraw := StakeInstrWithdraw{Lamports: lamports}

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeWithdraw, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	err = withdraw.MarshalWithEncoder(encoder)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: stakePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: recipient, IsSigner: false, IsWritable: true},
		{Pubkey: SysvarClockAddr, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarStakeHistoryAddr, IsSigner: false, IsWritable: false},
		{Pubkey: withdrawAuthority, IsSigner: true, IsWritable: false}}

	if custodian != nil {
		accounts = append(accounts, AccountMeta{Pubkey: *custodian, IsSigner: true, IsWritable: false})
	}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}

func NewStakeDeactivateInstruction(stakePubkey solana.PublicKey, authority solana.PublicKey) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeDeactivate, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: stakePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: SysvarClockAddr, IsSigner: false, IsWritable: false},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}

func NewStakeMergeInstruction(destPubkey solana.PublicKey, sourcePubkey solana.PublicKey, authority solana.PublicKey) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeMerge, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: destPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: sourcePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: SysvarClockAddr, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarStakeHistoryAddr, IsSigner: false, IsWritable: false},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}

func NewStakeGetMinimumDelegationInstruction() *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeGetMinimumDelegation, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	return &Instruction{Accounts: []AccountMeta{}, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}

func NewStakeMoveStakeInstruction(sourcePubkey solana.PublicKey, destPubkey solana.PublicKey, authority solana.PublicKey, lamports uint64) *Instruction {
	moveStake := StakeInstrMoveStake{Lamports: lamports}

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeMoveStake, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	err = moveStake.MarshalWithEncoder(encoder)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: sourcePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: destPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}

func NewStakeMoveLamportsInstruction(sourcePubkey solana.PublicKey, destPubkey solana.PublicKey, authority solana.PublicKey, lamports uint64) *Instruction {
	moveLamports := StakeInstrMoveLamports{Lamports: lamports}

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteUint32(StakeProgramInstrTypeMoveLamports, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	err = moveLamports.MarshalWithEncoder(encoder)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: sourcePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: destPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: StakeProgramAddr}
}
