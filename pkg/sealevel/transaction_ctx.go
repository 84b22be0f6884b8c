package sealevel

import (
	"github.com/gagliardetto/solana-go"

	"github.com/solopool-labs/solopool/pkg/accounts"
)

type TxReturnData struct {
	programId solana.PublicKey
	data      []byte
}

// TransactionAccounts holds the deduplicated account set of a
// transaction. Accounts are borrow-locked while a BorrowedAccount for
// them is live and marked touched upon modification.
type TransactionAccounts struct {
	Accounts []*accounts.Account
	Locked   []bool
	Touched  []bool
}

func NewTransactionAccounts(accts []accounts.Account) *TransactionAccounts {
	transactionAccts := new(TransactionAccounts)
	for idx := range accts {
		transactionAccts.Accounts = append(transactionAccts.Accounts, &accts[idx])
	}
	transactionAccts.Locked = make([]bool, len(accts))
	transactionAccts.Touched = make([]bool, len(accts))
	return transactionAccts
}

func (transactionAccts *TransactionAccounts) Len() uint64 {
	return uint64(len(transactionAccts.Accounts))
}

func (transactionAccts *TransactionAccounts) GetAccount(idx uint64) (*accounts.Account, error) {
	if idx >= transactionAccts.Len() {
		return nil, InstrErrNotEnoughAccountKeys
	}
	return transactionAccts.Accounts[idx], nil
}

func (transactionAccts *TransactionAccounts) LockAccount(idx uint64) error {
	if idx >= transactionAccts.Len() {
		return InstrErrNotEnoughAccountKeys
	}
	if transactionAccts.Locked[idx] {
		return InstrErrAccountBorrowOutstanding
	}
	transactionAccts.Locked[idx] = true
	return nil
}

func (transactionAccts *TransactionAccounts) UnlockAccount(idx uint64) {
	if idx < transactionAccts.Len() {
		transactionAccts.Locked[idx] = false
	}
}

func (transactionAccts *TransactionAccounts) Touch(idx uint64) error {
	if idx >= transactionAccts.Len() {
		return InstrErrNotEnoughAccountKeys
	}
	transactionAccts.Touched[idx] = true
	return nil
}

func (transactionAccts *TransactionAccounts) IsTouched(idx uint64) bool {
	if idx >= transactionAccts.Len() {
		return false
	}
	return transactionAccts.Touched[idx]
}

type TransactionCtx struct {
	Accounts                  TransactionAccounts
	instructionStack          []uint64
	instructionTrace          []InstructionCtx
	maxInstructionStackDepth  uint64
	maxInstructionTraceLength uint64
	returnData                TxReturnData
}

// NewTestTransactionCtx builds a transaction context over the given
// account set. The instruction trace is preallocated to its maximum
// length so that instruction context pointers stay valid across
// nested invocations.
func NewTestTransactionCtx(transactionAccts TransactionAccounts, maxStackDepth uint64, maxTraceLen uint64) *TransactionCtx {
	txCtx := &TransactionCtx{
		Accounts:                  transactionAccts,
		maxInstructionStackDepth:  maxStackDepth,
		maxInstructionTraceLength: maxTraceLen,
	}
	txCtx.instructionTrace = make([]InstructionCtx, 1, maxTraceLen+1)
	return txCtx
}

func (txCtx *TransactionCtx) KeyOfAccountAtIndex(idx uint64) (solana.PublicKey, error) {
	acct, err := txCtx.Accounts.GetAccount(idx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return acct.Key, nil
}

func (txCtx *TransactionCtx) AccountAtIndex(idx uint64) (*accounts.Account, error) {
	return txCtx.Accounts.GetAccount(idx)
}

func (txCtx *TransactionCtx) IndexOfAccount(pubkey solana.PublicKey) (uint64, error) {
	for idx, acct := range txCtx.Accounts.Accounts {
		if acct.Key == pubkey {
			return uint64(idx), nil
		}
	}
	return 0, InstrErrMissingAccount
}

func (txCtx *TransactionCtx) InstructionCtxStackHeight() uint64 {
	return uint64(len(txCtx.instructionStack))
}

func (txCtx *TransactionCtx) InstructionTraceLength() uint64 {
	if len(txCtx.instructionTrace) == 0 {
		return 0
	}
	return uint64(len(txCtx.instructionTrace) - 1)
}

func (txCtx *TransactionCtx) CurrentInstructionCtx() (*InstructionCtx, error) {
	level := txCtx.InstructionCtxStackHeight()
	if level == 0 {
		return nil, InstrErrCallDepth
	}
	return txCtx.InstructionCtxAtNestingLevel(level - 1)
}

// NextInstructionCtx returns the instruction context currently being
// configured, before it is pushed onto the stack.
func (txCtx *TransactionCtx) NextInstructionCtx() (*InstructionCtx, error) {
	if len(txCtx.instructionTrace) == 0 {
		return nil, InstrErrCallDepth
	}
	return &txCtx.instructionTrace[len(txCtx.instructionTrace)-1], nil
}

func (txCtx *TransactionCtx) InstructionCtxAtIndexInTrace(idxInTrace uint64) (*InstructionCtx, error) {
	if idxInTrace >= uint64(len(txCtx.instructionTrace)) {
		return nil, InstrErrCallDepth
	}
	return &txCtx.instructionTrace[idxInTrace], nil
}

func (txCtx *TransactionCtx) InstructionCtxAtNestingLevel(level uint64) (*InstructionCtx, error) {
	if level >= uint64(len(txCtx.instructionStack)) {
		return nil, InstrErrCallDepth
	}
	idxInTrace := txCtx.instructionStack[level]
	return txCtx.InstructionCtxAtIndexInTrace(idxInTrace)
}

func (txCtx *TransactionCtx) Push() error {
	nestingLevel := txCtx.InstructionCtxStackHeight()
	if nestingLevel >= txCtx.maxInstructionStackDepth {
		return InstrErrCallDepth
	}

	idxInTrace := txCtx.InstructionTraceLength()
	if idxInTrace >= txCtx.maxInstructionTraceLength {
		return InstrErrCallDepth
	}

	txCtx.instructionTrace[len(txCtx.instructionTrace)-1].nestingLevel = nestingLevel
	txCtx.instructionTrace = append(txCtx.instructionTrace, InstructionCtx{})
	txCtx.instructionStack = append(txCtx.instructionStack, idxInTrace)

	return nil
}

func (txCtx *TransactionCtx) Pop() error {
	if len(txCtx.instructionStack) == 0 {
		return InstrErrCallDepth
	}
	txCtx.instructionStack = txCtx.instructionStack[:len(txCtx.instructionStack)-1]
	return nil
}

func (txCtx *TransactionCtx) SetReturnData(programId solana.PublicKey, data []byte) {
	txCtx.returnData.programId = programId
	txCtx.returnData.data = data
}

func (txCtx *TransactionCtx) GetReturnData() (solana.PublicKey, []byte) {
	return txCtx.returnData.programId, txCtx.returnData.data
}
