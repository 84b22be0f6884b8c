package sealevel

import (
	"bytes"
	"math"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/solopool-labs/solopool/pkg/features"
	"github.com/solopool-labs/solopool/pkg/safemath"
)

const (
	StakeAuthorizeStaker = iota
	StakeAuthorizeWithdrawer
)

type Authorized struct {
	Staker     solana.PublicKey
	Withdrawer solana.PublicKey
}

type StakeLockup struct {
	UnixTimeStamp uint64
	Epoch         uint64
	Custodian     solana.PublicKey
}

type Meta struct {
	RentExemptReserve uint64
	Authorized        Authorized
	Lockup            StakeLockup
}

type Delegation struct {
	VoterPubkey        solana.PublicKey
	StakeLamports      uint64
	ActivationEpoch    uint64
	DeactivationEpoch  uint64
	WarmupCooldownRate float64
}

// MustFullyActivateBeforeDeactivationIsPermitted marks stake that arrived
// via redelegation and may not cool down until its warmup completes.
const MustFullyActivateBeforeDeactivationIsPermitted byte = 0x01

type StakeFlags struct {
	Bits byte
}

type Stake struct {
	Delegation      Delegation
	CreditsObserved uint64
}

const (
	StakeStateV2StatusUninitialized = iota
	StakeStateV2StatusInitialized
	StakeStateV2StatusStake
	StakeStateV2StatusRewardsPool
)

type StakeStateV2Initialized struct {
	Meta Meta
}
type StakeStateV2Stake struct {
	Meta       Meta
	Stake      Stake
	StakeFlags StakeFlags
}

type StakeStateV2 struct {
	Status      uint32
	Initialized StakeStateV2Initialized
	Stake       StakeStateV2Stake
}

func (authorized *Authorized) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authorized.Staker[:], pk)

	pk, err = decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authorized.Withdrawer[:], pk)
	return nil
}

func (authorized *Authorized) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(authorized.Staker[:], false)
	if err != nil {
		return err
	}
	err = encoder.WriteBytes(authorized.Withdrawer[:], false)
	return err
}

func (authorized *Authorized) Check(signers []solana.PublicKey, stakeAuthorize uint32) error {
	var authorizedPubkey solana.PublicKey
	switch stakeAuthorize {
	case StakeAuthorizeStaker:
		authorizedPubkey = authorized.Staker
	case StakeAuthorizeWithdrawer:
		authorizedPubkey = authorized.Withdrawer
	default:
		return InstrErrInvalidArgument
	}

	for _, signer := range signers {
		if signer == authorizedPubkey {
			return nil
		}
	}
	return InstrErrMissingRequiredSignature
}

func (authorized *Authorized) Authorize(signers []solana.PublicKey, newAuthorized solana.PublicKey, stakeAuthorize uint32, lockup StakeLockup, clock SysvarClock, custodian *solana.PublicKey) error {
	switch stakeAuthorize {
	case StakeAuthorizeStaker:
		{
			// either the staker or the withdrawer may rotate the staker key
			errStaker := authorized.Check(signers, StakeAuthorizeStaker)
			errWithdrawer := authorized.Check(signers, StakeAuthorizeWithdrawer)
			if errStaker != nil && errWithdrawer != nil {
				return InstrErrMissingRequiredSignature
			}
			authorized.Staker = newAuthorized
		}

	case StakeAuthorizeWithdrawer:
		{
			if lockup.IsInForce(clock, nil) {
				if custodian == nil {
					return StakeErrCustodianMissing
				}

				var custodianSigned bool
				for _, signer := range signers {
					if signer == *custodian {
						custodianSigned = true
						break
					}
				}
				if !custodianSigned {
					return StakeErrCustodianSignatureMissing
				}

				if lockup.IsInForce(clock, custodian) {
					return StakeErrLockupInForce
				}
			}

			err := authorized.Check(signers, StakeAuthorizeWithdrawer)
			if err != nil {
				return err
			}
			authorized.Withdrawer = newAuthorized
		}

	default:
		return InstrErrInvalidArgument
	}

	return nil
}

func (lockup *StakeLockup) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	lockup.UnixTimeStamp, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	lockup.Epoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(lockup.Custodian[:], pk)

	return nil
}

func (lockup *StakeLockup) MarshalWithEncoder(encoder *bin.Encoder) error {
	var err error
	err = encoder.WriteUint64(lockup.UnixTimeStamp, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(lockup.Epoch, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(lockup.Custodian[:], false)
	return err
}

// IsInForce reports whether the lockup still blocks withdrawal as of the
// given clock. The custodian, if presented, is exempt from its own lockup.
func (lockup *StakeLockup) IsInForce(clock SysvarClock, custodian *solana.PublicKey) bool {
	if custodian != nil && *custodian == lockup.Custodian {
		return false
	}
	return lockup.UnixTimeStamp > uint64(clock.UnixTimestamp) || lockup.Epoch > clock.Epoch
}

func (meta *Meta) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	meta.RentExemptReserve, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	err = meta.Authorized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = meta.Lockup.UnmarshalWithDecoder(decoder)
	return err
}

func (meta *Meta) MarshalWithEncoder(encoder *bin.Encoder) error {
	var err error
	err = encoder.WriteUint64(meta.RentExemptReserve, bin.LE)
	if err != nil {
		return err
	}

	err = meta.Authorized.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = meta.Lockup.MarshalWithEncoder(encoder)
	return err
}

// SetLockup applies the given optional lockup fields. While the existing
// lockup is in force only the custodian may alter it, otherwise the
// withdraw authority must sign.
func (meta *Meta) SetLockup(unixTimestamp *uint64, epoch *uint64, custodian *solana.PublicKey, signers []solana.PublicKey, clock SysvarClock) error {
	var requiredSigner solana.PublicKey
	if meta.Lockup.IsInForce(clock, nil) {
		requiredSigner = meta.Lockup.Custodian
	} else {
		requiredSigner = meta.Authorized.Withdrawer
	}

	var signed bool
	for _, signer := range signers {
		if signer == requiredSigner {
			signed = true
			break
		}
	}
	if !signed {
		return InstrErrMissingRequiredSignature
	}

	if unixTimestamp != nil {
		meta.Lockup.UnixTimeStamp = *unixTimestamp
	}
	if epoch != nil {
		meta.Lockup.Epoch = *epoch
	}
	if custodian != nil {
		meta.Lockup.Custodian = *custodian
	}
	return nil
}

func (delegation *Delegation) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	voterPubkey, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(delegation.VoterPubkey[:], voterPubkey)

	delegation.StakeLamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.ActivationEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.DeactivationEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.WarmupCooldownRate, err = decoder.ReadFloat64(bin.LE)
	return err
}

func (delegation *Delegation) MarshalWithEncoder(encoder *bin.Encoder) error {
	var err error
	err = encoder.WriteBytes(delegation.VoterPubkey[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(delegation.StakeLamports, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(delegation.ActivationEpoch, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(delegation.DeactivationEpoch, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteFloat64(delegation.WarmupCooldownRate, bin.LE)
	return err
}

func newStakeDelegation(voterPubkey solana.PublicKey, stakeLamports uint64, activationEpoch uint64) Delegation {
	return Delegation{
		VoterPubkey:        voterPubkey,
		StakeLamports:      stakeLamports,
		ActivationEpoch:    activationEpoch,
		DeactivationEpoch:  math.MaxUint64,
		WarmupCooldownRate: DefaultWarmupCooldownRate,
	}
}

// Stake delegated at genesis has no activation to ramp through.
func (delegation *Delegation) IsBootstrap() bool {
	return delegation.ActivationEpoch == math.MaxUint64
}

// StakeActivatingAndDeactivating computes how much of the delegation is
// effective, still warming up, and cooling down as of targetEpoch, by
// replaying the cluster-wide stake history from the activation epoch
// forward. Each epoch admits at most warmupCooldownRate of the prior
// epoch's effective cluster stake, shared pro rata among all activating
// delegations.
func (delegation *Delegation) StakeActivatingAndDeactivating(targetEpoch uint64, stakeHistory SysvarStakeHistory, newRateActivationEpoch *uint64) StakeHistoryEntry {
	effectiveStake, activatingStake := delegation.stakeAndActivating(targetEpoch, stakeHistory, newRateActivationEpoch)

	if targetEpoch < delegation.DeactivationEpoch {
		if activatingStake == 0 {
			return StakeHistoryEntry{Effective: effectiveStake}
		}
		return StakeHistoryEntry{Effective: effectiveStake, Activating: activatingStake}
	}

	if targetEpoch == delegation.DeactivationEpoch {
		return StakeHistoryEntry{Effective: effectiveStake, Deactivating: effectiveStake}
	}

	clusterStakeAtDeactivation := stakeHistory.Get(delegation.DeactivationEpoch)
	if clusterStakeAtDeactivation == nil {
		// no history for the deactivation epoch; cooldown completed instantly
		return StakeHistoryEntry{}
	}

	prevEpoch := delegation.DeactivationEpoch
	prevClusterStake := clusterStakeAtDeactivation
	currentEffectiveStake := effectiveStake
	for {
		currentEpoch := prevEpoch + 1
		if prevClusterStake.Deactivating == 0 {
			break
		}

		weight := float64(currentEffectiveStake) / float64(prevClusterStake.Deactivating)
		rate := warmupCooldownRate(currentEpoch, newRateActivationEpoch)
		newlyNotEffectiveClusterStake := float64(prevClusterStake.Effective) * rate

		newlyNotEffectiveStake := uint64(weight * newlyNotEffectiveClusterStake)
		if newlyNotEffectiveStake < 1 {
			newlyNotEffectiveStake = 1
		}

		currentEffectiveStake = safemath.SaturatingSubU64(currentEffectiveStake, newlyNotEffectiveStake)
		if currentEffectiveStake == 0 {
			break
		}

		if currentEpoch >= targetEpoch {
			break
		}

		currentClusterStake := stakeHistory.Get(currentEpoch)
		if currentClusterStake == nil {
			break
		}
		prevEpoch = currentEpoch
		prevClusterStake = currentClusterStake
	}

	return StakeHistoryEntry{Effective: currentEffectiveStake, Deactivating: currentEffectiveStake}
}

func (delegation *Delegation) stakeAndActivating(targetEpoch uint64, stakeHistory SysvarStakeHistory, newRateActivationEpoch *uint64) (uint64, uint64) {
	delegatedStake := delegation.StakeLamports

	if delegation.IsBootstrap() {
		return delegatedStake, 0
	}
	if delegation.ActivationEpoch == delegation.DeactivationEpoch {
		// activated and deactivated in the same epoch, was never effective
		return 0, 0
	}
	if targetEpoch == delegation.ActivationEpoch {
		return 0, delegatedStake
	}
	if targetEpoch < delegation.ActivationEpoch {
		return 0, 0
	}

	clusterStakeAtActivation := stakeHistory.Get(delegation.ActivationEpoch)
	if clusterStakeAtActivation == nil {
		// no history for the activation epoch; warmup completed instantly
		return delegatedStake, 0
	}

	prevEpoch := delegation.ActivationEpoch
	prevClusterStake := clusterStakeAtActivation
	var currentEffectiveStake uint64
	for {
		currentEpoch := prevEpoch + 1
		if prevClusterStake.Activating == 0 {
			break
		}

		remainingActivatingStake := delegatedStake - currentEffectiveStake
		weight := float64(remainingActivatingStake) / float64(prevClusterStake.Activating)
		rate := warmupCooldownRate(currentEpoch, newRateActivationEpoch)
		newlyEffectiveClusterStake := float64(prevClusterStake.Effective) * rate

		newlyEffectiveStake := uint64(weight * newlyEffectiveClusterStake)
		if newlyEffectiveStake < 1 {
			newlyEffectiveStake = 1
		}

		currentEffectiveStake += newlyEffectiveStake
		if currentEffectiveStake >= delegatedStake {
			currentEffectiveStake = delegatedStake
			break
		}

		if currentEpoch >= targetEpoch || currentEpoch >= delegation.DeactivationEpoch {
			break
		}

		currentClusterStake := stakeHistory.Get(currentEpoch)
		if currentClusterStake == nil {
			break
		}
		prevEpoch = currentEpoch
		prevClusterStake = currentClusterStake
	}

	return currentEffectiveStake, delegatedStake - currentEffectiveStake
}

// Stake returns the effective portion of the delegation as of targetEpoch.
func (delegation *Delegation) EffectiveStake(targetEpoch uint64, stakeHistory SysvarStakeHistory, newRateActivationEpoch *uint64) uint64 {
	return delegation.StakeActivatingAndDeactivating(targetEpoch, stakeHistory, newRateActivationEpoch).Effective
}

func (stakeFlags *StakeFlags) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	stakeFlags.Bits, err = decoder.ReadByte()
	return err
}

func (stakeFlags *StakeFlags) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteByte(stakeFlags.Bits)
}

func (stakeFlags *StakeFlags) Union(other StakeFlags) StakeFlags {
	return StakeFlags{Bits: stakeFlags.Bits | other.Bits}
}

func (initialized *StakeStateV2Initialized) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := initialized.Meta.UnmarshalWithDecoder(decoder)
	return err
}

func (initialized *StakeStateV2Initialized) MarshalWithEncoder(encoder *bin.Encoder) error {
	return initialized.Meta.MarshalWithEncoder(encoder)
}

func (stake *Stake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := stake.Delegation.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	stake.CreditsObserved, err = decoder.ReadUint64(bin.LE)
	return err
}

func (stake *Stake) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := stake.Delegation.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(stake.CreditsObserved, bin.LE)
	return err
}

// Split carves splitStakeAmount of delegated stake into a new Stake,
// reducing this one by remainingStakeDelta. The two amounts differ when
// the rent reserve for the destination comes out of the moved lamports.
func (stake *Stake) Split(remainingStakeDelta uint64, splitStakeAmount uint64) (Stake, error) {
	if remainingStakeDelta > stake.Delegation.StakeLamports {
		return Stake{}, StakeErrInsufficientStake
	}
	stake.Delegation.StakeLamports -= remainingStakeDelta

	newStake := *stake
	newStake.Delegation.StakeLamports = splitStakeAmount
	return newStake, nil
}

func (stake *Stake) Deactivate(epoch uint64) error {
	if stake.Delegation.DeactivationEpoch != math.MaxUint64 {
		return StakeErrAlreadyDeactivated
	}
	stake.Delegation.DeactivationEpoch = epoch
	return nil
}

func (stake *StakeStateV2Stake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := stake.Meta.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = stake.Stake.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = stake.StakeFlags.UnmarshalWithDecoder(decoder)
	return err
}

func (stake *StakeStateV2Stake) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := stake.Meta.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = stake.Stake.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = stake.StakeFlags.MarshalWithEncoder(encoder)
	return err
}

func (state *StakeStateV2) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	status, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	state.Status = status

	switch status {
	case StakeStateV2StatusUninitialized:
		{
			// nothing to deserialize
		}

	case StakeStateV2StatusInitialized:
		{
			err = state.Initialized.UnmarshalWithDecoder(decoder)
		}

	case StakeStateV2StatusStake:
		{
			err = state.Stake.UnmarshalWithDecoder(decoder)
		}

	case StakeStateV2StatusRewardsPool:
		{
			// nothing to deserialize
		}

	default:
		{
			err = InstrErrInvalidAccountData
		}
	}

	return err
}

func (state *StakeStateV2) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint32(state.Status, bin.LE)
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusUninitialized:
		{
			// nothing to serialize
		}

	case StakeStateV2StatusInitialized:
		{
			err = state.Initialized.MarshalWithEncoder(encoder)
		}

	case StakeStateV2StatusStake:
		{
			err = state.Stake.MarshalWithEncoder(encoder)
		}

	case StakeStateV2StatusRewardsPool:
		{
			// nothing to serialize
		}

	default:
		{
			err = InstrErrInvalidAccountData
		}
	}

	return err
}

func unmarshalStakeState(data []byte) (*StakeStateV2, error) {
	decoder := bin.NewBinDecoder(data)

	state := new(StakeStateV2)
	err := state.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return state, nil
}

// UnmarshalStakeState parses stake account data for callers outside the
// stake program.
func UnmarshalStakeState(data []byte) (*StakeStateV2, error) {
	return unmarshalStakeState(data)
}

// MarshalStakeState serializes a stake state without padding it out to the
// full account size.
func MarshalStakeState(state *StakeStateV2) ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := state.MarshalWithEncoder(encoder)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setStakeAccountState serializes the state over the front of the account
// data in place. Bytes past the serialized form keep their prior contents,
// the account always remains StakeStateV2Size long.
func setStakeAccountState(acct *BorrowedAccount, state *StakeStateV2, f features.Features) error {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := state.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	stateData := buf.Bytes()
	if len(stateData) > len(acct.Data()) {
		return InstrErrAccountDataTooSmall
	}

	newData := make([]byte, len(acct.Data()))
	copy(newData, acct.Data())
	copy(newData, stateData)

	return acct.SetData(f, newData)
}

const (
	MergeKindInactive = iota
	MergeKindActivationEpoch
	MergeKindFullyActive
)

// MergeKind classifies a stake account for merging. Fully active and fully
// inactive accounts can combine, stake in the middle of warming up can only
// combine with stake activated in the very same epoch, and anything in
// cooldown cannot merge at all.
type MergeKind struct {
	Kind       uint32
	Meta       Meta
	Stake      Stake
	Lamports   uint64
	StakeFlags StakeFlags
}

func getIfMergeable(execCtx *ExecutionCtx, stakeState *StakeStateV2, stakeLamports uint64, clock SysvarClock, stakeHistory SysvarStakeHistory) (MergeKind, error) {
	switch stakeState.Status {
	case StakeStateV2StatusStake:
		{
			meta := stakeState.Stake.Meta
			stake := stakeState.Stake.Stake
			stakeFlags := stakeState.Stake.StakeFlags

			status := stake.Delegation.StakeActivatingAndDeactivating(clock.Epoch, stakeHistory, newWarmupCooldownRateEpoch(execCtx))

			switch {
			case status.Effective == 0 && status.Activating == 0 && status.Deactivating == 0:
				return MergeKind{Kind: MergeKindInactive, Meta: meta, Lamports: stakeLamports, StakeFlags: stakeFlags}, nil
			case status.Effective == 0:
				return MergeKind{Kind: MergeKindActivationEpoch, Meta: meta, Stake: stake, StakeFlags: stakeFlags}, nil
			case status.Activating == 0 && status.Deactivating == 0:
				return MergeKind{Kind: MergeKindFullyActive, Meta: meta, Stake: stake}, nil
			default:
				return MergeKind{}, StakeErrMergeTransientStake
			}
		}

	case StakeStateV2StatusInitialized:
		{
			return MergeKind{Kind: MergeKindInactive, Meta: stakeState.Initialized.Meta, Lamports: stakeLamports}, nil
		}

	default:
		return MergeKind{}, InstrErrInvalidAccountData
	}
}

func metasCanMerge(stake *Meta, source *Meta, clock SysvarClock) error {
	if stake.Authorized != source.Authorized {
		return StakeErrMergeMismatch
	}

	// lockups must match unless both have expired
	if stake.Lockup == source.Lockup {
		return nil
	}
	if !stake.Lockup.IsInForce(clock, nil) && !source.Lockup.IsInForce(clock, nil) {
		return nil
	}
	return StakeErrMergeMismatch
}

// Merge absorbs the source into the destination kind, returning the new
// destination state, or nil when only lamports need to move.
func (mergeKind *MergeKind) Merge(source MergeKind, clock SysvarClock) (*StakeStateV2, error) {
	err := metasCanMerge(&mergeKind.Meta, &source.Meta, clock)
	if err != nil {
		return nil, err
	}

	switch mergeKind.Kind {
	case MergeKindInactive:
		{
			if source.Kind == MergeKindInactive || source.Kind == MergeKindActivationEpoch {
				return nil, nil
			}
			return nil, StakeErrMergeMismatch
		}

	case MergeKindActivationEpoch:
		{
			switch source.Kind {
			case MergeKindInactive:
				{
					stake := mergeKind.Stake
					stakeLamports, err := safemath.CheckedAddU64(stake.Delegation.StakeLamports, source.Lamports)
					if err != nil {
						return nil, InstrErrInsufficientFunds
					}
					stake.Delegation.StakeLamports = stakeLamports
					newState := &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: mergeKind.Meta, Stake: stake, StakeFlags: mergeKind.StakeFlags.Union(source.StakeFlags)}}
					return newState, nil
				}

			case MergeKindActivationEpoch:
				{
					stake := mergeKind.Stake
					sourceLamports, err := safemath.CheckedAddU64(source.Meta.RentExemptReserve, source.Stake.Delegation.StakeLamports)
					if err != nil {
						return nil, InstrErrInsufficientFunds
					}
					err = mergeDelegationStakeAndCreditsObserved(&stake, sourceLamports, source.Stake.CreditsObserved)
					if err != nil {
						return nil, err
					}
					newState := &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: mergeKind.Meta, Stake: stake, StakeFlags: mergeKind.StakeFlags.Union(source.StakeFlags)}}
					return newState, nil
				}

			default:
				return nil, StakeErrMergeMismatch
			}
		}

	case MergeKindFullyActive:
		{
			if source.Kind != MergeKindFullyActive {
				return nil, StakeErrMergeMismatch
			}

			// Active stakes absorb only the delegated portion. The rent
			// reserve lamports ride along without becoming stake.
			stake := mergeKind.Stake
			err := mergeDelegationStakeAndCreditsObserved(&stake, source.Stake.Delegation.StakeLamports, source.Stake.CreditsObserved)
			if err != nil {
				return nil, err
			}
			newState := &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: mergeKind.Meta, Stake: stake}}
			return newState, nil
		}

	default:
		return nil, StakeErrMergeMismatch
	}
}

func mergeDelegationStakeAndCreditsObserved(stake *Stake, absorbedLamports uint64, absorbedCreditsObserved uint64) error {
	creditsObserved, err := stakeWeightedCreditsObserved(stake, absorbedLamports, absorbedCreditsObserved)
	if err != nil {
		return err
	}
	stake.CreditsObserved = creditsObserved

	stakeLamports, err := safemath.CheckedAddU64(stake.Delegation.StakeLamports, absorbedLamports)
	if err != nil {
		return InstrErrInsufficientFunds
	}
	stake.Delegation.StakeLamports = stakeLamports
	return nil
}

// stakeWeightedCreditsObserved averages the two credits-observed values,
// weighted by stake, rounding up so a merge can never lower the rewards
// baseline. Intermediate products need 128 bits.
func stakeWeightedCreditsObserved(stake *Stake, absorbedLamports uint64, absorbedCreditsObserved uint64) (uint64, error) {
	if stake.CreditsObserved == absorbedCreditsObserved {
		return stake.CreditsObserved, nil
	}

	totalStake := new(big.Int).Add(new(big.Int).SetUint64(stake.Delegation.StakeLamports), new(big.Int).SetUint64(absorbedLamports))
	if totalStake.Sign() == 0 {
		return 0, InstrErrArithmeticOverflow
	}

	stakeWeighted := new(big.Int).Mul(new(big.Int).SetUint64(stake.CreditsObserved), new(big.Int).SetUint64(stake.Delegation.StakeLamports))
	absorbedWeighted := new(big.Int).Mul(new(big.Int).SetUint64(absorbedCreditsObserved), new(big.Int).SetUint64(absorbedLamports))

	total := new(big.Int).Add(stakeWeighted, absorbedWeighted)
	total.Add(total, new(big.Int).Sub(totalStake, big.NewInt(1)))
	total.Div(total, totalStake)

	if !total.IsUint64() {
		return 0, InstrErrArithmeticOverflow
	}
	return total.Uint64(), nil
}
