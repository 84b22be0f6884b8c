// Package features tracks the set of active feature gates.
//
// The feature mechanism coordinates the activation of (breaking)
// changes to consensus behavior. A gate is considered active once its
// feature account exists on chain; the activation slot is retained for
// gates whose behavior depends upon when they were switched on.
package features

import (
	"fmt"

	"github.com/solopool-labs/solopool/pkg/base58"
)

type Features struct {
	activations map[[32]byte]uint64
}

func NewFeaturesDefault() *Features {
	return &Features{activations: make(map[[32]byte]uint64)}
}

// NewFeaturesAllEnabled returns a feature set with every known gate
// active since genesis.
func NewFeaturesAllEnabled() *Features {
	f := NewFeaturesDefault()
	for _, gate := range AllFeatureGates {
		f.EnableFeature(gate, 0)
	}
	return f
}

func (f *Features) EnableFeature(gate FeatureGate, slot uint64) {
	f.activations[gate.Address] = slot
}

func (f *Features) DisableFeature(gate FeatureGate) {
	delete(f.activations, gate.Address)
}

func (f Features) IsActive(gate FeatureGate) bool {
	_, ok := f.activations[gate.Address]
	return ok
}

func (f Features) ActivationSlot(gate FeatureGate) (uint64, bool) {
	slot, ok := f.activations[gate.Address]
	return slot, ok
}

// AllEnabled describes each active gate, for logging at startup.
func (f Features) AllEnabled() []string {
	var enabled []string
	for _, gate := range AllFeatureGates {
		if f.IsActive(gate) {
			enabled = append(enabled, fmt.Sprintf("feature %s (%s) enabled", gate.Name, base58.Encode(gate.Address[:])))
		}
	}
	return enabled
}
