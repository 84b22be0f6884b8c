package singlepool

import (
	"github.com/solopool-labs/solopool/pkg/safemath"
)

// StakeAccountView is the observed state of one of the pool's stake accounts,
// classified through the stake-history warmup/cooldown algorithm at the
// current epoch.
type StakeAccountView struct {
	// Delegated reports whether the account holds a delegation at all.
	Delegated bool
	// DeactivationScheduled reports a deactivation epoch other than u64 max.
	DeactivationScheduled bool
	// Stake is the raw delegation amount, including not-yet-effective stake.
	Stake        uint64
	Effective    uint64
	Activating   uint64
	Deactivating uint64
	Lamports     uint64
	RentReserve  uint64
}

// transient reports stake that is partway through warmup or cooldown. Such
// accounts cannot be merged or moved until the epoch boundary settles them.
func (view *StakeAccountView) transient() bool {
	return view.Activating > 0 || view.Deactivating > 0
}

func (view *StakeAccountView) fullyActive() bool {
	return view.Delegated && view.Effective > 0 && !view.transient() && !view.DeactivationScheduled
}

// ReplenishPlan is the set of sub-operations a replenish call should issue.
// Zero amounts and false flags mean the leg is skipped; the zero value is a
// complete no-op, which is what a fully reconciled pool produces.
type ReplenishPlan struct {
	// DelegateMain re-delegates the main account. When set, no other leg
	// runs in the same call.
	DelegateMain bool
	// MoveStake moves this much fully active stake from the on-ramp into
	// the main account.
	MoveStake uint64
	// MoveLamports sweeps this much excess balance from the main account
	// into the on-ramp.
	MoveLamports uint64
	// DelegateOnRamp starts, tops up, or rescinds the on-ramp delegation.
	DelegateOnRamp bool
}

// PlanReplenish computes the reconciliation steps for one replenish call from
// the observed state of the main and on-ramp stake accounts. It is pure: the
// caller executes the returned legs in order (stake move, lamport sweep,
// delegate) and every leg is safe to skip when the plan says so.
func PlanReplenish(main StakeAccountView, onRamp StakeAccountView, minimumDelegation uint64) ReplenishPlan {
	var plan ReplenishPlan

	// A deactivated or deactivating main account takes priority over all
	// on-ramp work: re-delegating rescinds a same-epoch deactivation while
	// stake is still effective, or restarts warmup once fully cooled.
	if !main.Delegated || main.DeactivationScheduled {
		plan.DelegateMain = true
		return plan
	}

	// While the main account is still warming up there is nothing safe to
	// move; the next epoch boundary settles it.
	if main.Activating > 0 || main.Effective == 0 {
		return plan
	}

	onRampLamports := onRamp.Lamports
	onRampDelegated := onRamp.Delegated

	// Stake leg: harvest the on-ramp once its delegation is fully active.
	// Moving the whole delegation leaves the on-ramp undelegated with its
	// rent reserve intact.
	if onRamp.fullyActive() {
		plan.MoveStake = onRamp.Effective
		onRampLamports = safemath.SaturatingSubU64(onRampLamports, plan.MoveStake)
		onRampDelegated = false
	}

	// Lamport leg: sweep rewards above the delegation into the on-ramp.
	// The stake leg grows lamports and stake by the same amount, so the
	// excess is invariant under it.
	excess := safemath.SaturatingSubU64(main.Lamports, safemath.SaturatingAddU64(main.RentReserve, main.Stake))
	if excess > 0 {
		plan.MoveLamports = excess
		onRampLamports = safemath.SaturatingAddU64(onRampLamports, excess)
	}

	// Delegate leg: put the on-ramp's post-leg free balance on the warmup
	// path whenever doing so grows or preserves the delegation.
	free := safemath.SaturatingSubU64(onRampLamports, onRamp.RentReserve)
	switch {
	case !onRampDelegated:
		if free >= minimumDelegation {
			plan.DelegateOnRamp = true
		}
	case onRamp.DeactivationScheduled:
		// An externally impossible state unless a future instruction
		// deactivates the on-ramp; re-delegating rescinds it.
		plan.DelegateOnRamp = true
	case onRamp.Effective == 0 && onRamp.Activating > 0:
		// Same-epoch top-up: re-delegating while still activating
		// restarts the delegation at the larger balance.
		if free > onRamp.Stake {
			plan.DelegateOnRamp = true
		}
	}

	return plan
}
