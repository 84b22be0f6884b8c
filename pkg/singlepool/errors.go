package singlepool

import "errors"

// Pool program errors. Declaration order fixes the on-the-wire custom error
// codes, so new errors may only ever be appended.
var (
	PoolErrInvalidPoolAccount           = errors.New("PoolErrInvalidPoolAccount")
	PoolErrInvalidPoolStakeAccount      = errors.New("PoolErrInvalidPoolStakeAccount")
	PoolErrInvalidPoolMint              = errors.New("PoolErrInvalidPoolMint")
	PoolErrInvalidPoolStakeAuthority    = errors.New("PoolErrInvalidPoolStakeAuthority")
	PoolErrInvalidPoolMintAuthority     = errors.New("PoolErrInvalidPoolMintAuthority")
	PoolErrInvalidPoolMplAuthority      = errors.New("PoolErrInvalidPoolMplAuthority")
	PoolErrInvalidMetadataAccount       = errors.New("PoolErrInvalidMetadataAccount")
	PoolErrInvalidMetadataSigner        = errors.New("PoolErrInvalidMetadataSigner")
	PoolErrDepositTooSmall              = errors.New("PoolErrDepositTooSmall")
	PoolErrWithdrawalTooSmall           = errors.New("PoolErrWithdrawalTooSmall")
	PoolErrWithdrawalTooLarge           = errors.New("PoolErrWithdrawalTooLarge")
	PoolErrSignatureMissing             = errors.New("PoolErrSignatureMissing")
	PoolErrWrongStakeStake              = errors.New("PoolErrWrongStakeStake")
	PoolErrArithmeticOverflow           = errors.New("PoolErrArithmeticOverflow")
	PoolErrUnexpectedMathError          = errors.New("PoolErrUnexpectedMathError")
	PoolErrLegacyVoteAccount            = errors.New("PoolErrLegacyVoteAccount")
	PoolErrUnparseableVoteAccount       = errors.New("PoolErrUnparseableVoteAccount")
	PoolErrWrongRentAmount              = errors.New("PoolErrWrongRentAmount")
	PoolErrInvalidPoolStakeAccountUsage = errors.New("PoolErrInvalidPoolStakeAccountUsage")
	PoolErrPoolAlreadyInitialized       = errors.New("PoolErrPoolAlreadyInitialized")
	PoolErrInvalidPoolOnRampAccount     = errors.New("PoolErrInvalidPoolOnRampAccount")
	PoolErrOnRampDoesntExist            = errors.New("PoolErrOnRampDoesntExist")
)

var poolErrsByCode = []error{
	PoolErrInvalidPoolAccount,
	PoolErrInvalidPoolStakeAccount,
	PoolErrInvalidPoolMint,
	PoolErrInvalidPoolStakeAuthority,
	PoolErrInvalidPoolMintAuthority,
	PoolErrInvalidPoolMplAuthority,
	PoolErrInvalidMetadataAccount,
	PoolErrInvalidMetadataSigner,
	PoolErrDepositTooSmall,
	PoolErrWithdrawalTooSmall,
	PoolErrWithdrawalTooLarge,
	PoolErrSignatureMissing,
	PoolErrWrongStakeStake,
	PoolErrArithmeticOverflow,
	PoolErrUnexpectedMathError,
	PoolErrLegacyVoteAccount,
	PoolErrUnparseableVoteAccount,
	PoolErrWrongRentAmount,
	PoolErrInvalidPoolStakeAccountUsage,
	PoolErrPoolAlreadyInitialized,
	PoolErrInvalidPoolOnRampAccount,
	PoolErrOnRampDoesntExist,
}

// PoolErrCode translates a pool error to its numeric custom-error code.
func PoolErrCode(err error) (uint32, bool) {
	for code, poolErr := range poolErrsByCode {
		if errors.Is(err, poolErr) {
			return uint32(code), true
		}
	}
	return 0, false
}
