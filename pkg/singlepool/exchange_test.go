package singlepool

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimumPoolBalance(t *testing.T) {
	assert.Equal(t, uint64(1000000000), MinimumPoolBalance(1))
	assert.Equal(t, uint64(1000000000), MinimumPoolBalance(1000000000))
	assert.Equal(t, uint64(5000000000), MinimumPoolBalance(5000000000))
}

func TestDepositTokensBootstrap(t *testing.T) {
	// no supply yet, tokens are issued one to one
	tokens, err := CalculatePoolTokensForDeposit(0, 0, 1000000000)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1000000000), tokens)

	// stake already in the pool but no tokens outstanding: still one to one,
	// turning the pre-existing stake into a donation
	tokens, err = CalculatePoolTokensForDeposit(1000000000, 0, 5000000000)
	assert.NoError(t, err)
	assert.Equal(t, uint64(5000000000), tokens)
}

func TestDepositTokensProportional(t *testing.T) {
	// pool has appreciated 2x, so a deposit buys half as many tokens
	tokens, err := CalculatePoolTokensForDeposit(2000000000, 1000000000, 1000000000)
	assert.NoError(t, err)
	assert.Equal(t, uint64(500000000), tokens)

	tokens, err = CalculatePoolTokensForDeposit(3000000000, 3000000000, 1234567)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1234567), tokens)
}

func TestDepositTokensRoundsDown(t *testing.T) {
	tokens, err := CalculatePoolTokensForDeposit(3, 1, 1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), tokens)

	tokens, err = CalculatePoolTokensForDeposit(3, 2, 4)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), tokens)
}

func TestDepositTokensOverflow(t *testing.T) {
	_, err := CalculatePoolTokensForDeposit(1, math.MaxUint64, 2)
	assert.Equal(t, PoolErrArithmeticOverflow, err)
}

func TestBurnStakeEmptySupply(t *testing.T) {
	stake, err := CalculateStakeForBurn(1000000000, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), stake)
}

func TestBurnStakeProportional(t *testing.T) {
	stake, err := CalculateStakeForBurn(3000000000, 1000000000, 500000000)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1500000000), stake)

	// burning the whole supply redeems the whole stake
	stake, err = CalculateStakeForBurn(3000000000, 1000000000, 1000000000)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3000000000), stake)
}

func TestBurnStakeRoundsDown(t *testing.T) {
	stake, err := CalculateStakeForBurn(10, 3, 1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), stake)

	stake, err = CalculateStakeForBurn(1, 3, 1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), stake)
}

func TestBurnStakeOverflow(t *testing.T) {
	_, err := CalculateStakeForBurn(math.MaxUint64, 1, 2)
	assert.Equal(t, PoolErrArithmeticOverflow, err)
}
