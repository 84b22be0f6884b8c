package singlepool

import (
	"github.com/gagliardetto/solana-go"

	"github.com/solopool-labs/solopool/pkg/base58"
	"github.com/solopool-labs/solopool/pkg/sealevel"
)

var ProgramAddr = base58.MustDecodeFromString("SVSPxpvHdN29nkVg9rPapPNDddN5DipNLRUFhyjFThE")

// Seed prefixes for the pool's derived addresses. The scheme is part of the
// wire contract: clients derive the same addresses offline to build
// instructions, so none of these may ever change.
const (
	poolPrefix           = "pool"
	poolStakePrefix      = "stake"
	poolOnRampPrefix     = "onramp"
	poolMintPrefix       = "mint"
	stakeAuthorityPrefix = "authority"
	mintAuthorityPrefix  = "mint_authority"
	mplAuthorityPrefix   = "mpl_authority"
)

// defaultDepositSeedPrefix plus the first 28 chars of the pool address form
// the 32-char CreateWithSeed seed for a wallet's default deposit account.
const defaultDepositSeedPrefix = "svsp"

// FindPoolAddress returns the canonical pool record address for a vote account.
func FindPoolAddress(voteAccount solana.PublicKey) solana.PublicKey {
	addr, _ := FindPoolAddressAndBump(voteAccount)
	return addr
}

func FindPoolAddressAndBump(voteAccount solana.PublicKey) (solana.PublicKey, byte) {
	addr, bump, _ := solana.FindProgramAddress([][]byte{[]byte(poolPrefix), voteAccount[:]}, ProgramAddr)
	return addr, bump
}

// FindPoolStakeAddress returns the pool's main stake account address.
func FindPoolStakeAddress(pool solana.PublicKey) solana.PublicKey {
	addr, _ := FindPoolStakeAddressAndBump(pool)
	return addr
}

func FindPoolStakeAddressAndBump(pool solana.PublicKey) (solana.PublicKey, byte) {
	addr, bump, _ := solana.FindProgramAddress([][]byte{[]byte(poolStakePrefix), pool[:]}, ProgramAddr)
	return addr, bump
}

// FindPoolOnRampAddress returns the pool's on-ramp stake account address.
func FindPoolOnRampAddress(pool solana.PublicKey) solana.PublicKey {
	addr, _ := FindPoolOnRampAddressAndBump(pool)
	return addr
}

func FindPoolOnRampAddressAndBump(pool solana.PublicKey) (solana.PublicKey, byte) {
	addr, bump, _ := solana.FindProgramAddress([][]byte{[]byte(poolOnRampPrefix), pool[:]}, ProgramAddr)
	return addr, bump
}

// FindPoolMintAddress returns the pool's token mint address.
func FindPoolMintAddress(pool solana.PublicKey) solana.PublicKey {
	addr, _ := FindPoolMintAddressAndBump(pool)
	return addr
}

func FindPoolMintAddressAndBump(pool solana.PublicKey) (solana.PublicKey, byte) {
	addr, bump, _ := solana.FindProgramAddress([][]byte{[]byte(poolMintPrefix), pool[:]}, ProgramAddr)
	return addr, bump
}

// FindPoolStakeAuthorityAddress returns the authority that controls the pool's
// stake accounts. It has no private key; the program signs for it by seeds.
func FindPoolStakeAuthorityAddress(pool solana.PublicKey) solana.PublicKey {
	addr, _ := FindPoolStakeAuthorityAddressAndBump(pool)
	return addr
}

func FindPoolStakeAuthorityAddressAndBump(pool solana.PublicKey) (solana.PublicKey, byte) {
	addr, bump, _ := solana.FindProgramAddress([][]byte{[]byte(stakeAuthorityPrefix), pool[:]}, ProgramAddr)
	return addr, bump
}

// FindPoolMintAuthorityAddress returns the authority over the pool mint.
func FindPoolMintAuthorityAddress(pool solana.PublicKey) solana.PublicKey {
	addr, _ := FindPoolMintAuthorityAddressAndBump(pool)
	return addr
}

func FindPoolMintAuthorityAddressAndBump(pool solana.PublicKey) (solana.PublicKey, byte) {
	addr, bump, _ := solana.FindProgramAddress([][]byte{[]byte(mintAuthorityPrefix), pool[:]}, ProgramAddr)
	return addr, bump
}

// FindPoolMplAuthorityAddress returns the update authority over the pool's
// token metadata account.
func FindPoolMplAuthorityAddress(pool solana.PublicKey) solana.PublicKey {
	addr, _ := FindPoolMplAuthorityAddressAndBump(pool)
	return addr
}

func FindPoolMplAuthorityAddressAndBump(pool solana.PublicKey) (solana.PublicKey, byte) {
	addr, bump, _ := solana.FindProgramAddress([][]byte{[]byte(mplAuthorityPrefix), pool[:]}, ProgramAddr)
	return addr, bump
}

// FindMetadataAddress returns the token-metadata PDA for a mint, derived under
// the MPL token-metadata program.
func FindMetadataAddress(mint solana.PublicKey) solana.PublicKey {
	mplProgram := solana.PublicKey(sealevel.MetaplexMetadataProgramAddr)
	addr, _, _ := solana.FindProgramAddress([][]byte{[]byte("metadata"), mplProgram[:], mint[:]}, mplProgram)
	return addr
}

// FindDefaultDepositAddressAndSeed returns the conventional staging stake
// account for a wallet depositing into a pool, along with the seed that
// recreates it via CreateAccountWithSeed.
func FindDefaultDepositAddressAndSeed(pool solana.PublicKey, userWallet solana.PublicKey) (solana.PublicKey, string) {
	seed := defaultDepositSeedPrefix + base58.Encode(pool[:])[:28]
	addr, _ := solana.CreateWithSeed(userWallet, seed, sealevel.StakeProgramAddr)
	return addr, seed
}

func FindDefaultDepositAddress(pool solana.PublicKey, userWallet solana.PublicKey) solana.PublicKey {
	addr, _ := FindDefaultDepositAddressAndSeed(pool, userWallet)
	return addr
}

func poolSignerSeeds(voteAccount solana.PublicKey, bump byte) [][]byte {
	return [][]byte{[]byte(poolPrefix), voteAccount[:], {bump}}
}

func poolStakeSignerSeeds(pool solana.PublicKey, bump byte) [][]byte {
	return [][]byte{[]byte(poolStakePrefix), pool[:], {bump}}
}

func poolOnRampSignerSeeds(pool solana.PublicKey, bump byte) [][]byte {
	return [][]byte{[]byte(poolOnRampPrefix), pool[:], {bump}}
}

func poolMintSignerSeeds(pool solana.PublicKey, bump byte) [][]byte {
	return [][]byte{[]byte(poolMintPrefix), pool[:], {bump}}
}

func stakeAuthoritySignerSeeds(pool solana.PublicKey, bump byte) [][]byte {
	return [][]byte{[]byte(stakeAuthorityPrefix), pool[:], {bump}}
}

func mintAuthoritySignerSeeds(pool solana.PublicKey, bump byte) [][]byte {
	return [][]byte{[]byte(mintAuthorityPrefix), pool[:], {bump}}
}

func mplAuthoritySignerSeeds(pool solana.PublicKey, bump byte) [][]byte {
	return [][]byte{[]byte(mplAuthorityPrefix), pool[:], {bump}}
}
