package sealevel

import (
	"github.com/gagliardetto/solana-go"
)

// InstructionCtx describes one invocation in the instruction trace:
// the program account(s), the instruction accounts with their
// privileges, and the raw instruction data.
type InstructionCtx struct {
	Data                []byte
	ProgramAccounts     []uint64
	InstructionAccounts []InstructionAccount
	nestingLevel        uint64
}

func (instrCtx *InstructionCtx) Configure(programAccounts []uint64, instructionAccounts []InstructionAccount, data []byte) {
	instrCtx.ProgramAccounts = programAccounts
	instrCtx.InstructionAccounts = instructionAccounts
	instrCtx.Data = data
}

func (instrCtx *InstructionCtx) StackHeight() uint64 {
	return instrCtx.nestingLevel + 1
}

func (instrCtx *InstructionCtx) NumberOfProgramAccounts() uint64 {
	return uint64(len(instrCtx.ProgramAccounts))
}

func (instrCtx *InstructionCtx) NumberOfInstructionAccounts() uint64 {
	return uint64(len(instrCtx.InstructionAccounts))
}

func (instrCtx *InstructionCtx) CheckNumOfInstructionAccounts(num uint64) error {
	if instrCtx.NumberOfInstructionAccounts() < num {
		return InstrErrNotEnoughAccountKeys
	}
	return nil
}

func (instrCtx *InstructionCtx) IndexOfProgramAccountInTransaction(programAccountIdx uint64) (uint64, error) {
	if programAccountIdx >= instrCtx.NumberOfProgramAccounts() {
		return 0, InstrErrNotEnoughAccountKeys
	}
	return instrCtx.ProgramAccounts[programAccountIdx], nil
}

func (instrCtx *InstructionCtx) IndexOfInstructionAccountInTransaction(instrAcctIdx uint64) (uint64, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return 0, InstrErrNotEnoughAccountKeys
	}
	return instrCtx.InstructionAccounts[instrAcctIdx].IndexInTransaction, nil
}

// IndexOfInstructionAccount searches this instruction's account list
// for the given pubkey and returns its instruction account index.
func (instrCtx *InstructionCtx) IndexOfInstructionAccount(txCtx *TransactionCtx, pubkey solana.PublicKey) (uint64, error) {
	for idx, instrAcct := range instrCtx.InstructionAccounts {
		key, err := txCtx.KeyOfAccountAtIndex(instrAcct.IndexInTransaction)
		if err != nil {
			return 0, err
		}
		if key == pubkey {
			return uint64(idx), nil
		}
	}
	return 0, InstrErrMissingAccount
}

func (instrCtx *InstructionCtx) IsInstructionAccountSigner(instrAcctIdx uint64) (bool, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return false, InstrErrNotEnoughAccountKeys
	}
	return instrCtx.InstructionAccounts[instrAcctIdx].IsSigner, nil
}

func (instrCtx *InstructionCtx) IsInstructionAccountWritable(instrAcctIdx uint64) (bool, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return false, InstrErrNotEnoughAccountKeys
	}
	return instrCtx.InstructionAccounts[instrAcctIdx].IsWritable, nil
}

// LastProgramKey returns the pubkey of the program account executing
// this instruction.
func (instrCtx *InstructionCtx) LastProgramKey(txCtx *TransactionCtx) (solana.PublicKey, error) {
	programAccountIdx := instrCtx.NumberOfProgramAccounts()
	if programAccountIdx == 0 {
		return solana.PublicKey{}, InstrErrUnsupportedProgramId
	}
	idxInTx, err := instrCtx.IndexOfProgramAccountInTransaction(programAccountIdx - 1)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return txCtx.KeyOfAccountAtIndex(idxInTx)
}

func (instrCtx *InstructionCtx) BorrowInstructionAccount(txCtx *TransactionCtx, instrAcctIdx uint64) (*BorrowedAccount, error) {
	idxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(instrAcctIdx)
	if err != nil {
		return nil, err
	}
	return instrCtx.borrowAccount(txCtx, idxInTx, instrAcctIdx+instrCtx.NumberOfProgramAccounts())
}

func (instrCtx *InstructionCtx) BorrowProgramAccount(txCtx *TransactionCtx, programAcctIdx uint64) (*BorrowedAccount, error) {
	idxInTx, err := instrCtx.IndexOfProgramAccountInTransaction(programAcctIdx)
	if err != nil {
		return nil, err
	}
	return instrCtx.borrowAccount(txCtx, idxInTx, programAcctIdx)
}

func (instrCtx *InstructionCtx) BorrowLastProgramAccount(txCtx *TransactionCtx) (*BorrowedAccount, error) {
	numProgramAccts := instrCtx.NumberOfProgramAccounts()
	if numProgramAccts == 0 {
		return nil, InstrErrUnsupportedProgramId
	}
	return instrCtx.BorrowProgramAccount(txCtx, numProgramAccts-1)
}

func (instrCtx *InstructionCtx) borrowAccount(txCtx *TransactionCtx, idxInTx uint64, idxInInstr uint64) (*BorrowedAccount, error) {
	err := txCtx.Accounts.LockAccount(idxInTx)
	if err != nil {
		return nil, err
	}
	acct, err := txCtx.Accounts.GetAccount(idxInTx)
	if err != nil {
		txCtx.Accounts.UnlockAccount(idxInTx)
		return nil, err
	}
	return &BorrowedAccount{
		TxCtx:              txCtx,
		InstrCtx:           instrCtx,
		IndexInTransaction: idxInTx,
		IndexInInstruction: idxInInstr,
		Account:            acct,
	}, nil
}

// Signers collects the pubkeys of all instruction accounts whose
// signer privilege is set.
func (instrCtx *InstructionCtx) Signers(txCtx *TransactionCtx) ([]solana.PublicKey, error) {
	var signers []solana.PublicKey
	for _, instrAcct := range instrCtx.InstructionAccounts {
		if instrAcct.IsSigner {
			key, err := txCtx.KeyOfAccountAtIndex(instrAcct.IndexInTransaction)
			if err != nil {
				return nil, err
			}
			signers = append(signers, key)
		}
	}
	return signers, nil
}
