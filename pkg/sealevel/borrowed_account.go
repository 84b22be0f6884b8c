package sealevel

import (
	"bytes"

	"github.com/gagliardetto/solana-go"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/features"
	"github.com/solopool-labs/solopool/pkg/safemath"
)

// MaxPermittedDataLength is the largest account data size a program
// may allocate.
const MaxPermittedDataLength = 10 * 1024 * 1024

type BorrowedAccount struct {
	TxCtx              *TransactionCtx
	InstrCtx           *InstructionCtx
	IndexInTransaction uint64
	IndexInInstruction uint64
	Account            *accounts.Account
}

// Drop releases the borrow lock on the underlying account. Every
// borrow must be dropped before the account can be borrowed again.
func (acct *BorrowedAccount) Drop() {
	acct.TxCtx.Accounts.UnlockAccount(acct.IndexInTransaction)
}

func (acct *BorrowedAccount) Key() solana.PublicKey {
	key, err := acct.TxCtx.KeyOfAccountAtIndex(acct.IndexInTransaction)
	if err != nil {
		panic("supposedly impossible failure")
	}
	return key
}

func (acct *BorrowedAccount) Owner() solana.PublicKey {
	return acct.Account.Owner
}

func (acct *BorrowedAccount) SetOwner(f features.Features, owner solana.PublicKey) error {
	if !acct.IsWritable() {
		return InstrErrModifiedProgramId
	}
	if acct.IsExecutable() {
		return InstrErrModifiedProgramId
	}
	if !acct.IsOwnedByCurrentProgram() {
		return InstrErrModifiedProgramId
	}
	if !acct.isZeroed() {
		return InstrErrModifiedProgramId
	}

	err := acct.Touch()
	if err != nil {
		return err
	}

	acct.Account.Owner = owner
	return nil
}

func (acct *BorrowedAccount) Lamports() uint64 {
	return acct.Account.Lamports
}

func (acct *BorrowedAccount) SetLamports(lamports uint64, f features.Features) error {
	if !acct.IsOwnedByCurrentProgram() && lamports < acct.Lamports() {
		return InstrErrExternalAccountLamportSpend
	}
	if !acct.IsWritable() {
		return InstrErrReadonlyLamportChange
	}
	if acct.IsExecutable() {
		return InstrErrExecutableLamportChange
	}
	if lamports == acct.Lamports() {
		return nil
	}

	err := acct.Touch()
	if err != nil {
		return err
	}

	acct.Account.Lamports = lamports
	return nil
}

func (acct *BorrowedAccount) CheckedAddLamports(lamports uint64, f features.Features) error {
	newLamports, err := safemath.CheckedAddU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.SetLamports(newLamports, f)
}

func (acct *BorrowedAccount) CheckedSubLamports(lamports uint64, f features.Features) error {
	newLamports, err := safemath.CheckedSubU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.SetLamports(newLamports, f)
}

func (acct *BorrowedAccount) Data() []byte {
	return acct.Account.Data
}

func (acct *BorrowedAccount) SetData(f features.Features, data []byte) error {
	err := acct.canDataBeResized(uint64(len(data)))
	if err != nil {
		return err
	}
	err = acct.DataCanBeChanged(f)
	if err != nil {
		return err
	}
	err = acct.Touch()
	if err != nil {
		return err
	}

	acct.Account.SetData(data)
	return nil
}

// SetDataLength resizes the account data in place, zero filling any
// extension.
func (acct *BorrowedAccount) SetDataLength(newLen uint64, f features.Features) error {
	err := acct.canDataBeResized(newLen)
	if err != nil {
		return err
	}
	err = acct.DataCanBeChanged(f)
	if err != nil {
		return err
	}
	if uint64(len(acct.Account.Data)) == newLen {
		return nil
	}
	err = acct.Touch()
	if err != nil {
		return err
	}

	acct.Account.Resize(newLen)
	return nil
}

func (acct *BorrowedAccount) IsSigner() bool {
	instrCtx := acct.InstrCtx
	if acct.IndexInInstruction < instrCtx.NumberOfProgramAccounts() {
		return false
	}

	instrAcctIdx := safemath.SaturatingSubU64(acct.IndexInInstruction, instrCtx.NumberOfProgramAccounts())
	isSigner, err := instrCtx.IsInstructionAccountSigner(instrAcctIdx)
	if err != nil {
		return false
	}
	return isSigner
}

func (acct *BorrowedAccount) IsWritable() bool {
	instrCtx := acct.InstrCtx
	if acct.IndexInInstruction < instrCtx.NumberOfProgramAccounts() {
		return false
	}

	instrAcctIdx := safemath.SaturatingSubU64(acct.IndexInInstruction, instrCtx.NumberOfProgramAccounts())
	writable, err := instrCtx.IsInstructionAccountWritable(instrAcctIdx)
	if err != nil {
		return false
	}

	return writable
}

func (acct *BorrowedAccount) IsExecutable() bool {
	return acct.Account.IsExecutable()
}

func (acct *BorrowedAccount) IsOwnedByCurrentProgram() bool {
	lastProgramKey, err := acct.InstrCtx.LastProgramKey(acct.TxCtx)
	if err != nil {
		return false
	}
	return lastProgramKey == acct.Owner()
}

func (acct *BorrowedAccount) Touch() error {
	return acct.TxCtx.Accounts.Touch(acct.IndexInTransaction)
}

func (acct *BorrowedAccount) DataCanBeChanged(f features.Features) error {
	if acct.IsExecutable() {
		return InstrErrExecutableDataModified
	}
	if !acct.IsWritable() {
		return InstrErrReadonlyDataModified
	}
	if !acct.IsOwnedByCurrentProgram() {
		return InstrErrExternalAccountDataModified
	}
	return nil
}

func (acct *BorrowedAccount) canDataBeResized(newLen uint64) error {
	if uint64(len(acct.Account.Data)) != newLen && !acct.IsOwnedByCurrentProgram() {
		return InstrErrAccountDataSizeChanged
	}
	if newLen > MaxPermittedDataLength {
		return InstrErrInvalidRealloc
	}
	return nil
}

func (acct *BorrowedAccount) isZeroed() bool {
	return len(acct.Account.Data) == 0 ||
		bytes.Equal(acct.Account.Data, make([]byte, len(acct.Account.Data)))
}
