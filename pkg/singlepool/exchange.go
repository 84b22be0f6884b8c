package singlepool

import (
	"github.com/solopool-labs/solopool/pkg/safemath"
)

const lamportsPerSol = 1_000_000_000

// MinimumPoolBalance is the stake permanently locked in the main account at
// initialization. It is never tokenized, so the pool can always satisfy the
// stake program's minimum delegation no matter how much is withdrawn.
func MinimumPoolBalance(minimumDelegation uint64) uint64 {
	if minimumDelegation > lamportsPerSol {
		return minimumDelegation
	}
	return lamportsPerSol
}

// CalculatePoolTokensForDeposit returns the tokens to mint for newly merged
// stake: stakeAdded * preSupply / preStake, floor-divided with a 128-bit
// intermediate. Stake figures count only tokenized stake, net of the pool
// minimum. An empty pool bootstraps 1:1.
func CalculatePoolTokensForDeposit(preStake uint64, preSupply uint64, stakeAdded uint64) (uint64, error) {
	if preStake == 0 || preSupply == 0 {
		return stakeAdded, nil
	}

	tokens, err := safemath.CheckedMulDivU64(stakeAdded, preSupply, preStake)
	if err != nil {
		return 0, PoolErrArithmeticOverflow
	}
	return tokens, nil
}

// CalculateStakeForBurn returns the stake redeemed for burning tokens:
// tokensBurned * preStake / preSupply over the pool's tokenized stake,
// floor-divided with a 128-bit intermediate. A product smaller than the
// supply floors to zero.
func CalculateStakeForBurn(preStake uint64, preSupply uint64, tokensBurned uint64) (uint64, error) {
	if preSupply == 0 {
		return 0, nil
	}

	stake, err := safemath.CheckedMulDivU64(tokensBurned, preStake, preSupply)
	if err != nil {
		return 0, PoolErrArithmeticOverflow
	}
	return stake, nil
}
