package sealevel

import (
	"bytes"
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/solopool-labs/solopool/pkg/features"
	"github.com/solopool-labs/solopool/pkg/safemath"
	"k8s.io/klog/v2"
)

const (
	TokenMintSize    = 82
	TokenAccountSize = 165
)

const (
	TokenProgramInstrTypeInitializeMint    = 0
	TokenProgramInstrTypeInitializeAccount = 1
	TokenProgramInstrTypeTransfer          = 3
	TokenProgramInstrTypeApprove           = 4
	TokenProgramInstrTypeRevoke            = 5
	TokenProgramInstrTypeMintTo            = 7
	TokenProgramInstrTypeBurn              = 8
	TokenProgramInstrTypeCloseAccount      = 9
)

const (
	TokenAccountStateUninitialized = iota
	TokenAccountStateInitialized
	TokenAccountStateFrozen
)

// token errors
var (
	TokenErrNotRentExempt       = errors.New("TokenErrNotRentExempt")
	TokenErrInsufficientFunds   = errors.New("TokenErrInsufficientFunds")
	TokenErrInvalidMint         = errors.New("TokenErrInvalidMint")
	TokenErrMintMismatch        = errors.New("TokenErrMintMismatch")
	TokenErrOwnerMismatch       = errors.New("TokenErrOwnerMismatch")
	TokenErrFixedSupply         = errors.New("TokenErrFixedSupply")
	TokenErrAlreadyInUse        = errors.New("TokenErrAlreadyInUse")
	TokenErrUninitializedState  = errors.New("TokenErrUninitializedState")
	TokenErrNativeNotSupported  = errors.New("TokenErrNativeNotSupported")
	TokenErrNonNativeHasBalance = errors.New("TokenErrNonNativeHasBalance")
	TokenErrInvalidInstruction  = errors.New("TokenErrInvalidInstruction")
	TokenErrOverflow            = errors.New("TokenErrOverflow")
	TokenErrAccountFrozen       = errors.New("TokenErrAccountFrozen")
)

type TokenMint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        byte
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

type TokenAccount struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           byte
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

type TokenInstrInitializeMint struct {
	Decimals        byte
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

type TokenInstrTransfer struct {
	Amount uint64
}

type TokenInstrApprove struct {
	Amount uint64
}

type TokenInstrMintTo struct {
	Amount uint64
}

type TokenInstrBurn struct {
	Amount uint64
}

// Account state embeds options as a fixed 36 byte cell, a little endian
// u32 tag followed by the payload, zero padded when absent.
func readCOptionPubkey(decoder *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}

	pkBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, err
	}

	if tag == 0 {
		return nil, nil
	}

	pk := solana.PublicKeyFromBytes(pkBytes)
	return &pk, nil
}

func writeCOptionPubkey(encoder *bin.Encoder, pubkey *solana.PublicKey) error {
	var tag uint32
	var payload solana.PublicKey

	if pubkey != nil {
		tag = 1
		payload = *pubkey
	}

	err := encoder.WriteUint32(tag, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteBytes(payload[:], false)
}

func readCOptionU64(decoder *bin.Decoder) (*uint64, error) {
	tag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}

	value, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return nil, err
	}

	if tag == 0 {
		return nil, nil
	}
	return &value, nil
}

func writeCOptionU64(encoder *bin.Encoder, value *uint64) error {
	var tag uint32
	var payload uint64

	if value != nil {
		tag = 1
		payload = *value
	}

	err := encoder.WriteUint32(tag, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteUint64(payload, bin.LE)
}

func (mint *TokenMint) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	mint.MintAuthority, err = readCOptionPubkey(decoder)
	if err != nil {
		return err
	}

	mint.Supply, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	mint.Decimals, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	mint.IsInitialized, err = decoder.ReadBool()
	if err != nil {
		return err
	}

	mint.FreezeAuthority, err = readCOptionPubkey(decoder)
	return err
}

func (mint *TokenMint) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := writeCOptionPubkey(encoder, mint.MintAuthority)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(mint.Supply, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteByte(mint.Decimals)
	if err != nil {
		return err
	}

	err = encoder.WriteBool(mint.IsInitialized)
	if err != nil {
		return err
	}

	return writeCOptionPubkey(encoder, mint.FreezeAuthority)
}

func (tokenAcct *TokenAccount) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	mintBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(tokenAcct.Mint[:], mintBytes)

	ownerBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(tokenAcct.Owner[:], ownerBytes)

	tokenAcct.Amount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	tokenAcct.Delegate, err = readCOptionPubkey(decoder)
	if err != nil {
		return err
	}

	tokenAcct.State, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	tokenAcct.IsNative, err = readCOptionU64(decoder)
	if err != nil {
		return err
	}

	tokenAcct.DelegatedAmount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	tokenAcct.CloseAuthority, err = readCOptionPubkey(decoder)
	return err
}

func (tokenAcct *TokenAccount) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(tokenAcct.Mint[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(tokenAcct.Owner[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(tokenAcct.Amount, bin.LE)
	if err != nil {
		return err
	}

	err = writeCOptionPubkey(encoder, tokenAcct.Delegate)
	if err != nil {
		return err
	}

	err = encoder.WriteByte(tokenAcct.State)
	if err != nil {
		return err
	}

	err = writeCOptionU64(encoder, tokenAcct.IsNative)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(tokenAcct.DelegatedAmount, bin.LE)
	if err != nil {
		return err
	}

	return writeCOptionPubkey(encoder, tokenAcct.CloseAuthority)
}

func (tokenAcct *TokenAccount) IsFrozen() bool {
	return tokenAcct.State == TokenAccountStateFrozen
}

func (initMint *TokenInstrInitializeMint) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	initMint.Decimals, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(initMint.MintAuthority[:], pk)

	hasFreezeAuthority, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if hasFreezeAuthority {
		pk, err = decoder.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return err
		}
		freezeAuthority := solana.PublicKeyFromBytes(pk)
		initMint.FreezeAuthority = &freezeAuthority
	}

	return nil
}

func (initMint *TokenInstrInitializeMint) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(initMint.Decimals)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(initMint.MintAuthority[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBool(initMint.FreezeAuthority != nil)
	if err != nil {
		return err
	}
	if initMint.FreezeAuthority != nil {
		err = encoder.WriteBytes(initMint.FreezeAuthority[:], false)
	}
	return err
}

func (transfer *TokenInstrTransfer) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	transfer.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

func (approve *TokenInstrApprove) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	approve.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

func (mintTo *TokenInstrMintTo) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	mintTo.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

func (burn *TokenInstrBurn) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	burn.Amount, err = decoder.ReadUint64(bin.LE)
	return err
}

func unmarshalTokenMint(data []byte) (*TokenMint, error) {
	if len(data) != TokenMintSize {
		return nil, InstrErrInvalidAccountData
	}

	mint := new(TokenMint)
	decoder := bin.NewBinDecoder(data)

	err := mint.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return mint, nil
}

func unmarshalTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, InstrErrInvalidAccountData
	}

	tokenAcct := new(TokenAccount)
	decoder := bin.NewBinDecoder(data)

	err := tokenAcct.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return tokenAcct, nil
}

// UnmarshalTokenMint parses mint account data for callers outside the token
// program.
func UnmarshalTokenMint(data []byte) (*TokenMint, error) {
	return unmarshalTokenMint(data)
}

// UnmarshalTokenAccount parses token account data for callers outside the
// token program.
func UnmarshalTokenAccount(data []byte) (*TokenAccount, error) {
	return unmarshalTokenAccount(data)
}

func setTokenMintState(acct *BorrowedAccount, mint *TokenMint, f features.Features) error {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := mint.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	return acct.SetData(f, buf.Bytes())
}

func setTokenAccountState(acct *BorrowedAccount, tokenAcct *TokenAccount, f features.Features) error {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := tokenAcct.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	return acct.SetData(f, buf.Bytes())
}

// tokenValidateOwner enforces the single signer authority model. Multisig
// authorities are not supported.
func tokenValidateOwner(txCtx *TransactionCtx, instrCtx *InstructionCtx, expectedOwner solana.PublicKey, ownerAcctIdx uint64) error {
	idxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(ownerAcctIdx)
	if err != nil {
		return err
	}

	ownerPubkey, err := txCtx.KeyOfAccountAtIndex(idxInTx)
	if err != nil {
		return err
	}

	if ownerPubkey != expectedOwner {
		return TokenErrOwnerMismatch
	}

	isSigner, err := instrCtx.IsInstructionAccountSigner(ownerAcctIdx)
	if err != nil {
		return err
	}
	if !isSigner {
		return InstrErrMissingRequiredSignature
	}

	return nil
}

func TokenProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUTokenProgramDefaultComputeUnits)
	if err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	data := instrCtx.Data

	decoder := bin.NewBinDecoder(data)
	instructionType, err := decoder.ReadByte()
	if err != nil {
		return TokenErrInvalidInstruction
	}

	switch instructionType {
	case TokenProgramInstrTypeInitializeMint:
		{
			var initializeMint TokenInstrInitializeMint
			err = initializeMint.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			rent := ReadRentSysvar(&execCtx.Accounts)
			err = checkAcctForRentSysvar(txCtx, instrCtx, 1)
			if err != nil {
				return err
			}

			return TokenProgramInitializeMint(execCtx, txCtx, instrCtx, initializeMint, rent)
		}

	case TokenProgramInstrTypeInitializeAccount:
		{
			err = instrCtx.CheckNumOfInstructionAccounts(4)
			if err != nil {
				return err
			}

			rent := ReadRentSysvar(&execCtx.Accounts)
			err = checkAcctForRentSysvar(txCtx, instrCtx, 3)
			if err != nil {
				return err
			}

			return TokenProgramInitializeAccount(execCtx, txCtx, instrCtx, rent)
		}

	case TokenProgramInstrTypeTransfer:
		{
			var transfer TokenInstrTransfer
			err = transfer.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}

			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}

			return TokenProgramTransfer(execCtx, txCtx, instrCtx, transfer.Amount)
		}

	case TokenProgramInstrTypeApprove:
		{
			var approve TokenInstrApprove
			err = approve.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}

			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}

			return TokenProgramApprove(execCtx, txCtx, instrCtx, approve.Amount)
		}

	case TokenProgramInstrTypeRevoke:
		{
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			return TokenProgramRevoke(execCtx, txCtx, instrCtx)
		}

	case TokenProgramInstrTypeMintTo:
		{
			var mintTo TokenInstrMintTo
			err = mintTo.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}

			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}

			return TokenProgramMintTo(execCtx, txCtx, instrCtx, mintTo.Amount)
		}

	case TokenProgramInstrTypeBurn:
		{
			var burn TokenInstrBurn
			err = burn.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}

			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}

			return TokenProgramBurn(execCtx, txCtx, instrCtx, burn.Amount)
		}

	case TokenProgramInstrTypeCloseAccount:
		{
			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}

			return TokenProgramCloseAccount(execCtx, txCtx, instrCtx)
		}

	default:
		{
			klog.V(2).Infof("token instruction %d not supported", instructionType)
			return TokenErrInvalidInstruction
		}
	}
}

func TokenProgramInitializeMint(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, initializeMint TokenInstrInitializeMint, rent SysvarRent) error {
	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer mintAcct.Drop()

	if len(mintAcct.Data()) != TokenMintSize {
		return InstrErrInvalidAccountData
	}

	mint, err := unmarshalTokenMint(mintAcct.Data())
	if err != nil {
		return err
	}

	if mint.IsInitialized {
		return TokenErrAlreadyInUse
	}

	if mintAcct.Lamports() < rent.MinimumBalance(uint64(len(mintAcct.Data()))) {
		return TokenErrNotRentExempt
	}

	mint.MintAuthority = &initializeMint.MintAuthority
	mint.Decimals = initializeMint.Decimals
	mint.IsInitialized = true
	mint.FreezeAuthority = initializeMint.FreezeAuthority

	return setTokenMintState(mintAcct, mint, execCtx.GlobalCtx.Features)
}

func TokenProgramInitializeAccount(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, rent SysvarRent) error {
	newAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}

	if len(newAcct.Data()) != TokenAccountSize {
		newAcct.Drop()
		return InstrErrInvalidAccountData
	}

	tokenAcct, err := unmarshalTokenAccount(newAcct.Data())
	if err != nil {
		newAcct.Drop()
		return err
	}

	if tokenAcct.State != TokenAccountStateUninitialized {
		newAcct.Drop()
		return TokenErrAlreadyInUse
	}

	if newAcct.Lamports() < rent.MinimumBalance(uint64(len(newAcct.Data()))) {
		newAcct.Drop()
		return TokenErrNotRentExempt
	}
	newAcct.Drop()

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}

	mintPubkey := mintAcct.Key()
	mintOwner := mintAcct.Owner()
	mintData := mintAcct.Data()

	if mintOwner != TokenProgramAddr {
		mintAcct.Drop()
		return InstrErrIncorrectProgramId
	}

	mint, err := unmarshalTokenMint(mintData)
	mintAcct.Drop()
	if err != nil || !mint.IsInitialized {
		return TokenErrInvalidMint
	}

	ownerIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(2)
	if err != nil {
		return err
	}
	ownerPubkey, err := txCtx.KeyOfAccountAtIndex(ownerIdxInTx)
	if err != nil {
		return err
	}

	tokenAcct.Mint = mintPubkey
	tokenAcct.Owner = ownerPubkey
	tokenAcct.Amount = 0
	tokenAcct.Delegate = nil
	tokenAcct.DelegatedAmount = 0
	tokenAcct.State = TokenAccountStateInitialized
	tokenAcct.IsNative = nil
	tokenAcct.CloseAuthority = nil

	newAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	err = setTokenAccountState(newAcct, tokenAcct, execCtx.GlobalCtx.Features)
	newAcct.Drop()
	return err
}

func TokenProgramTransfer(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, amount uint64) error {
	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	sourcePubkey := sourceAcct.Key()
	source, err := unmarshalTokenAccount(sourceAcct.Data())
	sourceAcct.Drop()
	if err != nil {
		return err
	}
	if source.State == TokenAccountStateUninitialized {
		return TokenErrUninitializedState
	}

	destAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	destPubkey := destAcct.Key()
	dest, err := unmarshalTokenAccount(destAcct.Data())
	destAcct.Drop()
	if err != nil {
		return err
	}
	if dest.State == TokenAccountStateUninitialized {
		return TokenErrUninitializedState
	}

	if source.IsFrozen() || dest.IsFrozen() {
		return TokenErrAccountFrozen
	}

	if source.Amount < amount {
		return TokenErrInsufficientFunds
	}

	if source.Mint != dest.Mint {
		return TokenErrMintMismatch
	}

	selfTransfer := sourcePubkey == destPubkey

	authorityIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(2)
	if err != nil {
		return err
	}
	authorityPubkey, err := txCtx.KeyOfAccountAtIndex(authorityIdxInTx)
	if err != nil {
		return err
	}

	if source.Delegate != nil && *source.Delegate == authorityPubkey {
		err = tokenValidateOwner(txCtx, instrCtx, *source.Delegate, 2)
		if err != nil {
			return err
		}

		if source.DelegatedAmount < amount {
			return TokenErrInsufficientFunds
		}

		if !selfTransfer {
			source.DelegatedAmount, err = safemath.CheckedSubU64(source.DelegatedAmount, amount)
			if err != nil {
				return TokenErrOverflow
			}
			if source.DelegatedAmount == 0 {
				source.Delegate = nil
			}
		}
	} else {
		err = tokenValidateOwner(txCtx, instrCtx, source.Owner, 2)
		if err != nil {
			return err
		}
	}

	// self transfers change nothing once validated
	if selfTransfer {
		return nil
	}

	source.Amount, err = safemath.CheckedSubU64(source.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}
	dest.Amount, err = safemath.CheckedAddU64(dest.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}

	sourceAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	err = setTokenAccountState(sourceAcct, source, execCtx.GlobalCtx.Features)
	sourceAcct.Drop()
	if err != nil {
		return err
	}

	destAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	err = setTokenAccountState(destAcct, dest, execCtx.GlobalCtx.Features)
	destAcct.Drop()
	return err
}

func TokenProgramApprove(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, amount uint64) error {
	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	source, err := unmarshalTokenAccount(sourceAcct.Data())
	sourceAcct.Drop()
	if err != nil {
		return err
	}
	if source.State == TokenAccountStateUninitialized {
		return TokenErrUninitializedState
	}

	if source.IsFrozen() {
		return TokenErrAccountFrozen
	}

	delegateIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(1)
	if err != nil {
		return err
	}
	delegatePubkey, err := txCtx.KeyOfAccountAtIndex(delegateIdxInTx)
	if err != nil {
		return err
	}

	err = tokenValidateOwner(txCtx, instrCtx, source.Owner, 2)
	if err != nil {
		return err
	}

	source.Delegate = &delegatePubkey
	source.DelegatedAmount = amount

	sourceAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	err = setTokenAccountState(sourceAcct, source, execCtx.GlobalCtx.Features)
	sourceAcct.Drop()
	return err
}

func TokenProgramRevoke(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx) error {
	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	source, err := unmarshalTokenAccount(sourceAcct.Data())
	sourceAcct.Drop()
	if err != nil {
		return err
	}
	if source.State == TokenAccountStateUninitialized {
		return TokenErrUninitializedState
	}

	if source.IsFrozen() {
		return TokenErrAccountFrozen
	}

	err = tokenValidateOwner(txCtx, instrCtx, source.Owner, 1)
	if err != nil {
		return err
	}

	source.Delegate = nil
	source.DelegatedAmount = 0

	sourceAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	err = setTokenAccountState(sourceAcct, source, execCtx.GlobalCtx.Features)
	sourceAcct.Drop()
	return err
}

func TokenProgramMintTo(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, amount uint64) error {
	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	mintPubkey := mintAcct.Key()
	mint, err := unmarshalTokenMint(mintAcct.Data())
	mintAcct.Drop()
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return TokenErrUninitializedState
	}

	destAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	dest, err := unmarshalTokenAccount(destAcct.Data())
	destAcct.Drop()
	if err != nil {
		return err
	}
	if dest.State == TokenAccountStateUninitialized {
		return TokenErrUninitializedState
	}

	if dest.IsFrozen() {
		return TokenErrAccountFrozen
	}

	if dest.IsNative != nil {
		return TokenErrNativeNotSupported
	}

	if dest.Mint != mintPubkey {
		return TokenErrMintMismatch
	}

	if mint.MintAuthority == nil {
		return TokenErrFixedSupply
	}
	err = tokenValidateOwner(txCtx, instrCtx, *mint.MintAuthority, 2)
	if err != nil {
		return err
	}

	dest.Amount, err = safemath.CheckedAddU64(dest.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}
	mint.Supply, err = safemath.CheckedAddU64(mint.Supply, amount)
	if err != nil {
		return TokenErrOverflow
	}

	destAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	err = setTokenAccountState(destAcct, dest, execCtx.GlobalCtx.Features)
	destAcct.Drop()
	if err != nil {
		return err
	}

	mintAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	err = setTokenMintState(mintAcct, mint, execCtx.GlobalCtx.Features)
	mintAcct.Drop()
	return err
}

func TokenProgramBurn(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, amount uint64) error {
	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	source, err := unmarshalTokenAccount(sourceAcct.Data())
	sourceAcct.Drop()
	if err != nil {
		return err
	}
	if source.State == TokenAccountStateUninitialized {
		return TokenErrUninitializedState
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	mintPubkey := mintAcct.Key()
	mint, err := unmarshalTokenMint(mintAcct.Data())
	mintAcct.Drop()
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return TokenErrUninitializedState
	}

	if source.IsFrozen() {
		return TokenErrAccountFrozen
	}

	if source.IsNative != nil {
		return TokenErrNativeNotSupported
	}

	if source.Amount < amount {
		return TokenErrInsufficientFunds
	}

	if source.Mint != mintPubkey {
		return TokenErrMintMismatch
	}

	authorityIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(2)
	if err != nil {
		return err
	}
	authorityPubkey, err := txCtx.KeyOfAccountAtIndex(authorityIdxInTx)
	if err != nil {
		return err
	}

	if source.Delegate != nil && *source.Delegate == authorityPubkey {
		err = tokenValidateOwner(txCtx, instrCtx, *source.Delegate, 2)
		if err != nil {
			return err
		}

		if source.DelegatedAmount < amount {
			return TokenErrInsufficientFunds
		}

		source.DelegatedAmount, err = safemath.CheckedSubU64(source.DelegatedAmount, amount)
		if err != nil {
			return TokenErrOverflow
		}
		if source.DelegatedAmount == 0 {
			source.Delegate = nil
		}
	} else {
		err = tokenValidateOwner(txCtx, instrCtx, source.Owner, 2)
		if err != nil {
			return err
		}
	}

	source.Amount, err = safemath.CheckedSubU64(source.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}
	mint.Supply, err = safemath.CheckedSubU64(mint.Supply, amount)
	if err != nil {
		return TokenErrOverflow
	}

	sourceAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	err = setTokenAccountState(sourceAcct, source, execCtx.GlobalCtx.Features)
	sourceAcct.Drop()
	if err != nil {
		return err
	}

	mintAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	err = setTokenMintState(mintAcct, mint, execCtx.GlobalCtx.Features)
	mintAcct.Drop()
	return err
}

func TokenProgramCloseAccount(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx) error {
	sourceIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(0)
	if err != nil {
		return err
	}
	destIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(1)
	if err != nil {
		return err
	}
	if sourceIdxInTx == destIdxInTx {
		return InstrErrInvalidAccountData
	}

	sourceAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	sourceLamports := sourceAcct.Lamports()
	source, err := unmarshalTokenAccount(sourceAcct.Data())
	sourceAcct.Drop()
	if err != nil {
		return err
	}
	if source.State == TokenAccountStateUninitialized {
		return TokenErrUninitializedState
	}

	if source.IsNative == nil && source.Amount != 0 {
		return TokenErrNonNativeHasBalance
	}

	authority := source.Owner
	if source.CloseAuthority != nil {
		authority = *source.CloseAuthority
	}
	err = tokenValidateOwner(txCtx, instrCtx, authority, 2)
	if err != nil {
		return err
	}

	destAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	err = destAcct.CheckedAddLamports(sourceLamports, execCtx.GlobalCtx.Features)
	destAcct.Drop()
	if err != nil {
		return TokenErrOverflow
	}

	sourceAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	err = sourceAcct.SetLamports(0, execCtx.GlobalCtx.Features)
	if err != nil {
		sourceAcct.Drop()
		return err
	}

	err = sourceAcct.SetData(execCtx.GlobalCtx.Features, make([]byte, TokenAccountSize))
	sourceAcct.Drop()
	return err
}

func NewTokenInitializeMintInstruction(mintPubkey solana.PublicKey, decimals byte, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) *Instruction {
	initializeMint := TokenInstrInitializeMint{Decimals: decimals, MintAuthority: mintAuthority, FreezeAuthority: freezeAuthority}

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteByte(TokenProgramInstrTypeInitializeMint)
	if err != nil {
		panic("shouldn't fail")
	}

	err = initializeMint.MarshalWithEncoder(encoder)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: mintPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: SysvarRentAddr, IsSigner: false, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: TokenProgramAddr}
}

func NewTokenInitializeAccountInstruction(acctPubkey solana.PublicKey, mintPubkey solana.PublicKey, ownerPubkey solana.PublicKey) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteByte(TokenProgramInstrTypeInitializeAccount)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: acctPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: mintPubkey, IsSigner: false, IsWritable: false},
		{Pubkey: ownerPubkey, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarRentAddr, IsSigner: false, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: TokenProgramAddr}
}

func NewTokenTransferInstruction(sourcePubkey solana.PublicKey, destPubkey solana.PublicKey, authority solana.PublicKey, amount uint64) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteByte(TokenProgramInstrTypeTransfer)
	if err != nil {
		panic("shouldn't fail")
	}

	err = encoder.WriteUint64(amount, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: sourcePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: destPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: TokenProgramAddr}
}

func NewTokenApproveInstruction(sourcePubkey solana.PublicKey, delegatePubkey solana.PublicKey, owner solana.PublicKey, amount uint64) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteByte(TokenProgramInstrTypeApprove)
	if err != nil {
		panic("shouldn't fail")
	}

	err = encoder.WriteUint64(amount, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: sourcePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: delegatePubkey, IsSigner: false, IsWritable: false},
		{Pubkey: owner, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: TokenProgramAddr}
}

func NewTokenRevokeInstruction(sourcePubkey solana.PublicKey, owner solana.PublicKey) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteByte(TokenProgramInstrTypeRevoke)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: sourcePubkey, IsSigner: false, IsWritable: true},
		{Pubkey: owner, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: TokenProgramAddr}
}

func NewTokenMintToInstruction(mintPubkey solana.PublicKey, destPubkey solana.PublicKey, mintAuthority solana.PublicKey, amount uint64) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteByte(TokenProgramInstrTypeMintTo)
	if err != nil {
		panic("shouldn't fail")
	}

	err = encoder.WriteUint64(amount, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: mintPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: destPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: mintAuthority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: TokenProgramAddr}
}

func NewTokenBurnInstruction(acctPubkey solana.PublicKey, mintPubkey solana.PublicKey, authority solana.PublicKey, amount uint64) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteByte(TokenProgramInstrTypeBurn)
	if err != nil {
		panic("shouldn't fail")
	}

	err = encoder.WriteUint64(amount, bin.LE)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: acctPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: mintPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: TokenProgramAddr}
}

func NewTokenCloseAccountInstruction(acctPubkey solana.PublicKey, destPubkey solana.PublicKey, owner solana.PublicKey) *Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := encoder.WriteByte(TokenProgramInstrTypeCloseAccount)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []AccountMeta{
		{Pubkey: acctPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: destPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: owner, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: buf.Bytes(), ProgramId: TokenProgramAddr}
}
