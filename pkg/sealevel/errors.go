package sealevel

import "errors"

// instruction errors
var (
	InstrErrInvalidInstructionData      = errors.New("InstrErrInvalidInstructionData")
	InstrErrNotEnoughAccountKeys        = errors.New("InstrErrNotEnoughAccountKeys")
	InstrErrComputationalBudgetExceeded = errors.New("InstrErrComputationalBudgetExceeded")
	InstrErrMissingAccount              = errors.New("InstrErrMissingAccount")
	InstrErrInvalidAccountOwner         = errors.New("InstrErrInvalidAccountOwner")
	InstrErrInvalidAccountData          = errors.New("InstrErrInvalidAccountData")
	InstrErrMissingRequiredSignature    = errors.New("InstrErrMissingRequiredSignature")
	InstrErrInvalidArgument             = errors.New("InstrErrInvalidArgument")
	InstrErrExecutableDataModified      = errors.New("InstrErrExecutableDataModified")
	InstrErrReadonlyDataModified        = errors.New("InstrErrReadonlyDataModified")
	InstrErrExternalAccountDataModified = errors.New("InstrErrExternalAccountDataModified")
	InstrErrPrivilegeEscalation         = errors.New("InstrErrPrivilegeEscalation")
	InstrErrAccountNotExecutable        = errors.New("InstrErrAccountNotExecutable")
	InstrErrAccountDataSizeChanged      = errors.New("InstrErrAccountDataSizeChanged")
	InstrErrInvalidRealloc              = errors.New("InstrErrInvalidRealloc")
	InstrErrModifiedProgramId           = errors.New("InstrErrModifiedProgramId")
	InstrErrCallDepth                   = errors.New("InstrErrCallDepth")
	InstrErrUnsupportedProgramId        = errors.New("InstrErrUnsupportedProgramId")
	InstrErrReentrancyNotAllowed        = errors.New("InstrErrReentrancyNotAllowed")
	InstrErrArithmeticOverflow          = errors.New("InstrErrArithmeticOverflow")
	InstrErrUnbalancedInstruction       = errors.New("InstrErrUnbalancedInstruction")
	InstrErrAccountDataTooSmall         = errors.New("InstrErrAccountDataTooSmall")
	InstrErrAccountBorrowOutstanding    = errors.New("InstrErrAccountBorrowOutstanding")
	InstrErrExternalAccountLamportSpend = errors.New("InstrErrExternalAccountLamportSpend")
	InstrErrReadonlyLamportChange       = errors.New("InstrErrReadonlyLamportChange")
	InstrErrExecutableLamportChange     = errors.New("InstrErrExecutableLamportChange")
	InstrErrInsufficientFunds           = errors.New("InstrErrInsufficientFunds")
	InstrErrAccountAlreadyInitialized   = errors.New("InstrErrAccountAlreadyInitialized")
	InstrErrUninitializedAccount        = errors.New("InstrErrUninitializedAccount")
	InstrErrIncorrectProgramId          = errors.New("InstrErrIncorrectProgramId")
	InstrErrIncorrectAuthority          = errors.New("InstrErrIncorrectAuthority")
	InstrErrUnsupportedSysvar           = errors.New("InstrErrUnsupportedSysvar")
	InstrErrIllegalOwner                = errors.New("InstrErrIllegalOwner")
	InstrErrAccountNotRentExempt        = errors.New("InstrErrAccountNotRentExempt")
	InstrErrInvalidSeeds                = errors.New("InstrErrInvalidSeeds")
	InstrErrMaxSeedLengthExceeded       = errors.New("InstrErrMaxSeedLengthExceeded")
	InstrErrImmutable                   = errors.New("InstrErrImmutable")
)

// address derivation errors
var (
	PubkeyErrMaxSeedLengthExceeded = errors.New("PubkeyErrMaxSeedLengthExceeded")
	PubkeyErrInvalidSeeds          = errors.New("PubkeyErrInvalidSeeds")
	PubkeyErrIllegalOwner          = errors.New("PubkeyErrIllegalOwner")
)

// instruction errors - Solana numerical error codes
const (
	InstrErrCodeSuccess                     = 0
	InstrErrCodeInvalidArgument             = 2
	InstrErrCodeInvalidInstructionData      = 3
	InstrErrCodeInvalidAccountData          = 4
	InstrErrCodeAccountDataTooSmall         = 5
	InstrErrCodeInsufficientFunds           = 6
	InstrErrCodeIncorrectProgramId          = 7
	InstrErrCodeMissingRequiredSignature    = 8
	InstrErrCodeAccountAlreadyInitialized   = 9
	InstrErrCodeUninitializedAccount        = 10
	InstrErrCodeExternalAccountDataModified = 14
	InstrErrCodeReadonlyDataModified        = 16
	InstrErrCodeNotEnoughAccountKeys        = 20
	InstrErrCodeExecutableDataModified      = 28
	InstrErrCodeUnsupportedProgramId        = 31
	InstrErrCodeMissingAccount              = 33
	InstrErrCodeComputationalBudgetExceeded = 38
	InstrErrCodePrivilegeEscalation         = 39
	InstrErrCodeIncorrectAuthority          = 44
	InstrErrCodeInvalidAccountOwner         = 47
	InstrErrCodeArithmeticOverflow          = 48
	InstrErrCodeUnsupportedSysvar           = 49
)

// TranslateErrToInstrErrCode maps a runtime error to the numerical
// code a validator would report for it, or 0 when no mapping exists.
func TranslateErrToInstrErrCode(err error) int {
	var errorCode int
	switch err {
	case InstrErrInvalidInstructionData:
		errorCode = InstrErrCodeInvalidInstructionData
	case InstrErrNotEnoughAccountKeys:
		errorCode = InstrErrCodeNotEnoughAccountKeys
	case InstrErrComputationalBudgetExceeded:
		errorCode = InstrErrCodeComputationalBudgetExceeded
	case InstrErrMissingAccount:
		errorCode = InstrErrCodeMissingAccount
	case InstrErrInvalidAccountOwner:
		errorCode = InstrErrCodeInvalidAccountOwner
	case InstrErrInvalidAccountData:
		errorCode = InstrErrCodeInvalidAccountData
	case InstrErrMissingRequiredSignature:
		errorCode = InstrErrCodeMissingRequiredSignature
	case InstrErrInvalidArgument:
		errorCode = InstrErrCodeInvalidArgument
	case InstrErrExecutableDataModified:
		errorCode = InstrErrCodeExecutableDataModified
	case InstrErrReadonlyDataModified:
		errorCode = InstrErrCodeReadonlyDataModified
	case InstrErrExternalAccountDataModified:
		errorCode = InstrErrCodeExternalAccountDataModified
	case InstrErrAccountDataTooSmall:
		errorCode = InstrErrCodeAccountDataTooSmall
	case InstrErrInsufficientFunds:
		errorCode = InstrErrCodeInsufficientFunds
	case InstrErrIncorrectProgramId:
		errorCode = InstrErrCodeIncorrectProgramId
	case InstrErrAccountAlreadyInitialized:
		errorCode = InstrErrCodeAccountAlreadyInitialized
	case InstrErrUninitializedAccount:
		errorCode = InstrErrCodeUninitializedAccount
	case InstrErrUnsupportedProgramId:
		errorCode = InstrErrCodeUnsupportedProgramId
	case InstrErrPrivilegeEscalation:
		errorCode = InstrErrCodePrivilegeEscalation
	case InstrErrIncorrectAuthority:
		errorCode = InstrErrCodeIncorrectAuthority
	case InstrErrArithmeticOverflow:
		errorCode = InstrErrCodeArithmeticOverflow
	case InstrErrUnsupportedSysvar:
		errorCode = InstrErrCodeUnsupportedSysvar
	}
	return errorCode
}
