package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/cu"
)

func systemTestExecCtx(t *testing.T, txAccts []accounts.Account) (*ExecutionCtx, *TransactionCtx) {
	transactionAccts := NewTransactionAccounts(txAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := &ExecutionCtx{TransactionContext: txCtx, ComputeMeter: cu.NewComputeMeter(10000000000)}

	execCtx.Accounts = accounts.NewMemAccounts()

	var clock SysvarClock
	clock.Slot = 1234
	clockAcct := accounts.Account{}
	err := execCtx.Accounts.SetAccount(&SysvarClockAddr, &clockAcct)
	assert.NoError(t, err)
	WriteClockSysvar(&execCtx.Accounts, clock)

	var rent SysvarRent
	rent.LamportsPerUint8Year = 1
	rent.ExemptionThreshold = 1
	rent.BurnPercent = 0

	rentAcct := accounts.Account{}
	err = execCtx.Accounts.SetAccount(&SysvarRentAddr, &rentAcct)
	assert.NoError(t, err)
	WriteRentSysvar(&execCtx.Accounts, rent)

	return execCtx, txCtx
}

func TestExecute_Tx_System_Program_CreateAccount_Success(t *testing.T) {

	// system program acct
	systemProgramAcct := accounts.Account{Key: SystemProgramAddr, Lamports: 100000000, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	// funding acct
	fundingAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	fundingPubkey := fundingAcctPrivateKey.PublicKey()
	fundingAcct := accounts.Account{Key: fundingPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	// new acct
	newAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	newPubkey := newAcctPrivateKey.PublicKey()
	newAcct := accounts.Account{Key: newPubkey, Lamports: 0, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	instr := NewCreateAccountInstruction(fundingPubkey, newPubkey, 1234, 200, StakeProgramAddr)

	execCtx, txCtx := systemTestExecCtx(t, []accounts.Account{systemProgramAcct, fundingAcct, newAcct})

	instructionAccts := InstructionAcctsFromAccountMetas(instr.Accounts, txCtx.Accounts)

	err = execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	assert.NoError(t, err)

	newAcctPost, err := txCtx.Accounts.GetAccount(2)
	assert.NoError(t, err)

	// check new account has lamports, space and owner as expected
	assert.Equal(t, uint64(1234), newAcctPost.Lamports)
	assert.Equal(t, uint64(200), uint64(len(newAcctPost.Data)))
	assert.Equal(t, StakeProgramAddr, newAcctPost.Owner)

	fundingAcctPost, err := txCtx.Accounts.GetAccount(1)
	assert.NoError(t, err)

	// check that the funder account balance has changed accordingly
	assert.Equal(t, fundingAcct.Lamports-1234, fundingAcctPost.Lamports)
}

func TestExecute_Tx_System_Program_CreateAccount_Already_In_Use_Failure(t *testing.T) {
	systemProgramAcct := accounts.Account{Key: SystemProgramAddr, Lamports: 100000000, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	fundingAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	fundingPubkey := fundingAcctPrivateKey.PublicKey()
	fundingAcct := accounts.Account{Key: fundingPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	// new acct already carries lamports
	newAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	newPubkey := newAcctPrivateKey.PublicKey()
	newAcct := accounts.Account{Key: newPubkey, Lamports: 1, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	instr := NewCreateAccountInstruction(fundingPubkey, newPubkey, 1234, 200, StakeProgramAddr)

	execCtx, txCtx := systemTestExecCtx(t, []accounts.Account{systemProgramAcct, fundingAcct, newAcct})
	instructionAccts := InstructionAcctsFromAccountMetas(instr.Accounts, txCtx.Accounts)

	err = execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	assert.Equal(t, SystemProgErrAccountAlreadyInUse, err)
}

func TestExecute_Tx_System_Program_CreateAccount_Unsigned_New_Account_Failure(t *testing.T) {
	systemProgramAcct := accounts.Account{Key: SystemProgramAddr, Lamports: 100000000, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	fundingAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	fundingPubkey := fundingAcctPrivateKey.PublicKey()
	fundingAcct := accounts.Account{Key: fundingPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	newAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	newPubkey := newAcctPrivateKey.PublicKey()
	newAcct := accounts.Account{Key: newPubkey, Lamports: 0, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	instr := NewCreateAccountInstruction(fundingPubkey, newPubkey, 1234, 200, StakeProgramAddr)

	// the new account does not sign
	instr.Accounts[1].IsSigner = false

	execCtx, txCtx := systemTestExecCtx(t, []accounts.Account{systemProgramAcct, fundingAcct, newAcct})
	instructionAccts := InstructionAcctsFromAccountMetas(instr.Accounts, txCtx.Accounts)

	err = execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	assert.Equal(t, InstrErrMissingRequiredSignature, err)
}

func TestExecute_Tx_System_Program_CreateAccountWithSeed_Success(t *testing.T) {
	systemProgramAcct := accounts.Account{Key: SystemProgramAddr, Lamports: 100000000, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	fundingAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	fundingPubkey := fundingAcctPrivateKey.PublicKey()
	fundingAcct := accounts.Account{Key: fundingPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	// the derived account signs via its base key, not its own key
	seed := "stake-pool-deposit"
	derivedPubkey, err := solana.CreateWithSeed(fundingPubkey, seed, StakeProgramAddr)
	assert.NoError(t, err)
	derivedAcct := accounts.Account{Key: derivedPubkey, Lamports: 0, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	instr := NewCreateAccountWithSeedInstruction(fundingPubkey, derivedPubkey, fundingPubkey, seed, 1234, 200, StakeProgramAddr)

	execCtx, txCtx := systemTestExecCtx(t, []accounts.Account{systemProgramAcct, fundingAcct, derivedAcct})
	instructionAccts := InstructionAcctsFromAccountMetas(instr.Accounts, txCtx.Accounts)

	err = execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	assert.NoError(t, err)

	derivedAcctPost, err := txCtx.Accounts.GetAccount(2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1234), derivedAcctPost.Lamports)
	assert.Equal(t, uint64(200), uint64(len(derivedAcctPost.Data)))
	assert.Equal(t, StakeProgramAddr, derivedAcctPost.Owner)
}

func TestExecute_Tx_System_Program_CreateAccountWithSeed_Wrong_Address_Failure(t *testing.T) {
	systemProgramAcct := accounts.Account{Key: SystemProgramAddr, Lamports: 100000000, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	fundingAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	fundingPubkey := fundingAcctPrivateKey.PublicKey()
	fundingAcct := accounts.Account{Key: fundingPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	// not the derived address for (base, seed, owner)
	wrongAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	wrongPubkey := wrongAcctPrivateKey.PublicKey()
	wrongAcct := accounts.Account{Key: wrongPubkey, Lamports: 0, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	instr := NewCreateAccountWithSeedInstruction(fundingPubkey, wrongPubkey, fundingPubkey, "stake-pool-deposit", 1234, 200, StakeProgramAddr)

	execCtx, txCtx := systemTestExecCtx(t, []accounts.Account{systemProgramAcct, fundingAcct, wrongAcct})
	instructionAccts := InstructionAcctsFromAccountMetas(instr.Accounts, txCtx.Accounts)

	err = execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	assert.Equal(t, SystemProgErrAddressWithSeedMismatch, err)
}

func TestExecute_Tx_System_Program_Transfer_Success(t *testing.T) {
	systemProgramAcct := accounts.Account{Key: SystemProgramAddr, Lamports: 100000000, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	senderPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	senderPubkey := senderPrivateKey.PublicKey()
	senderAcct := accounts.Account{Key: senderPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	receiverPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	receiverPubkey := receiverPrivateKey.PublicKey()
	receiverAcct := accounts.Account{Key: receiverPubkey, Lamports: 5000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	instr := NewTransferInstruction(senderPubkey, receiverPubkey, 4000)

	execCtx, txCtx := systemTestExecCtx(t, []accounts.Account{systemProgramAcct, senderAcct, receiverAcct})
	instructionAccts := InstructionAcctsFromAccountMetas(instr.Accounts, txCtx.Accounts)

	err = execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	assert.NoError(t, err)

	senderPost, err := txCtx.Accounts.GetAccount(1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(6000), senderPost.Lamports)

	receiverPost, err := txCtx.Accounts.GetAccount(2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(9000), receiverPost.Lamports)
}

func TestExecute_Tx_System_Program_Transfer_Insufficient_Funds_Failure(t *testing.T) {
	systemProgramAcct := accounts.Account{Key: SystemProgramAddr, Lamports: 100000000, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	senderPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	senderPubkey := senderPrivateKey.PublicKey()
	senderAcct := accounts.Account{Key: senderPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	receiverPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	receiverPubkey := receiverPrivateKey.PublicKey()
	receiverAcct := accounts.Account{Key: receiverPubkey, Lamports: 0, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	instr := NewTransferInstruction(senderPubkey, receiverPubkey, 10001)

	execCtx, txCtx := systemTestExecCtx(t, []accounts.Account{systemProgramAcct, senderAcct, receiverAcct})
	instructionAccts := InstructionAcctsFromAccountMetas(instr.Accounts, txCtx.Accounts)

	err = execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	assert.Equal(t, SystemProgErrResultWithNegativeLamports, err)

	// balances are untouched on failure
	senderPost, err := txCtx.Accounts.GetAccount(1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(10000), senderPost.Lamports)
}

func TestExecute_Tx_System_Program_Transfer_Unsigned_Failure(t *testing.T) {
	systemProgramAcct := accounts.Account{Key: SystemProgramAddr, Lamports: 100000000, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	senderPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	senderPubkey := senderPrivateKey.PublicKey()
	senderAcct := accounts.Account{Key: senderPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	receiverPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	receiverPubkey := receiverPrivateKey.PublicKey()
	receiverAcct := accounts.Account{Key: receiverPubkey, Lamports: 0, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	instr := NewTransferInstruction(senderPubkey, receiverPubkey, 4000)
	instr.Accounts[0].IsSigner = false

	execCtx, txCtx := systemTestExecCtx(t, []accounts.Account{systemProgramAcct, senderAcct, receiverAcct})
	instructionAccts := InstructionAcctsFromAccountMetas(instr.Accounts, txCtx.Accounts)

	err = execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	assert.Equal(t, InstrErrMissingRequiredSignature, err)
}

func TestExecute_Tx_System_Program_Allocate_And_Assign_Success(t *testing.T) {
	systemProgramAcct := accounts.Account{Key: SystemProgramAddr, Lamports: 100000000, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	ownedAcctPrivateKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	ownedPubkey := ownedAcctPrivateKey.PublicKey()
	ownedAcct := accounts.Account{Key: ownedPubkey, Lamports: 10000, Data: make([]byte, 0), Owner: SystemProgramAddr, Executable: false, RentEpoch: 100}

	execCtx, txCtx := systemTestExecCtx(t, []accounts.Account{systemProgramAcct, ownedAcct})

	allocInstr := NewAllocateInstruction(ownedPubkey, 165)
	instructionAccts := InstructionAcctsFromAccountMetas(allocInstr.Accounts, txCtx.Accounts)
	err = execCtx.ProcessInstruction(allocInstr.Data, instructionAccts, []uint64{0})
	assert.NoError(t, err)

	assignInstr := NewAssignInstruction(ownedPubkey, TokenProgramAddr)
	instructionAccts = InstructionAcctsFromAccountMetas(assignInstr.Accounts, txCtx.Accounts)
	err = execCtx.ProcessInstruction(assignInstr.Data, instructionAccts, []uint64{0})
	assert.NoError(t, err)

	ownedPost, err := txCtx.Accounts.GetAccount(1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(165), uint64(len(ownedPost.Data)))
	assert.Equal(t, TokenProgramAddr, ownedPost.Owner)
}
