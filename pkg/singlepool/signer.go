package singlepool

import (
	"github.com/solopool-labs/solopool/pkg/solana"
)

// signerFromSeeds resolves a CPI signer seed list to the derived authority
// address, the same derivation the runtime applies to invoke-signed seeds.
// The seed list must already carry its bump byte.
func signerFromSeeds(seeds [][]byte) ([32]byte, error) {
	var signer [32]byte

	addr, err := solana.CreateProgramAddressBytes(seeds, ProgramAddr[:])
	if err != nil {
		return signer, err
	}

	copy(signer[:], addr)
	return signer, nil
}
