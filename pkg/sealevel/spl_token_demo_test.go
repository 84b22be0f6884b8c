package sealevel

import (
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/cu"
	"github.com/solopool-labs/solopool/pkg/features"
)

func tokenProgramAccount() accounts.Account {
	return accounts.Account{Key: TokenProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}
}

// create new ExecutionCtx (equiv. to InvokeContext in Agave)
func newExecCtx(t *testing.T, log *LogRecorder) *ExecutionCtx {
	accts := accounts.NewMemAccounts()
	execCtx := ExecutionCtx{Log: log, ComputeMeter: cu.NewComputeMeter(10000000000), Accounts: accts}
	f := features.NewFeaturesDefault()
	execCtx.GlobalCtx.Features = *f

	return &execCtx
}

// create a new rent sysvar with default configuration
func newDefaultRentSysvar(accts *accounts.Accounts) accounts.Account {
	rent := SysvarRent{LamportsPerUint8Year: 3480, ExemptionThreshold: 2.0, BurnPercent: 50}

	rentAcct := accounts.Account{Key: SysvarRentAddr, Lamports: 1, Owner: SysvarOwnerAddr}
	(*accts).SetAccount(&SysvarRentAddr, &rentAcct)
	WriteRentSysvar(accts, rent)

	return rentAcct
}

func newRandomAccountWithOwnerAndSizeAndLamports(owner solana.PublicKey, size uint64, lamports uint64) accounts.Account {
	privKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		panic("create random private key failed")
	}
	pubkey := privKey.PublicKey()

	data := make([]byte, size)
	acct := accounts.Account{Key: pubkey, Lamports: lamports, Data: data, Owner: owner, Executable: false, RentEpoch: 100}

	return acct
}

// processTestInstruction executes a single instruction over a fresh
// transaction context and returns the post state of every tx account.
func processTestInstruction(t *testing.T, execCtx *ExecutionCtx, instr *Instruction, txAccts []accounts.Account) ([]accounts.Account, error) {
	transactionAccts := NewTransactionAccounts(txAccts)
	instructionAccts := InstructionAcctsFromAccountMetas(instr.Accounts, *transactionAccts)
	execCtx.TransactionContext = NewTestTransactionCtx(*transactionAccts, 5, 64)

	err := execCtx.ProcessInstruction(instr.Data, instructionAccts, []uint64{0})
	if err != nil {
		return nil, err
	}

	post := make([]accounts.Account, len(txAccts))
	for idx := range txAccts {
		acct, acctErr := execCtx.TransactionContext.Accounts.GetAccount(uint64(idx))
		assert.NoError(t, acctErr)
		post[idx] = *acct
	}
	return post, nil
}

func Test_Spl_Token_Program_Demo(t *testing.T) {
	var log LogRecorder

	tokenProgramAcct := tokenProgramAccount()

	// InitializeMint: the mint account and its authority
	mintAcct := newRandomAccountWithOwnerAndSizeAndLamports(TokenProgramAddr, TokenMintSize, 100000000)
	mintAuthority := newRandomAccountWithOwnerAndSizeAndLamports(SystemProgramAddr, 0, 100000000)

	execCtx := newExecCtx(t, &log)
	rent := newDefaultRentSysvar(&execCtx.Accounts)

	instr := NewTokenInitializeMintInstruction(mintAcct.Key, 6, mintAuthority.Key, nil)
	post, err := processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, mintAcct, rent})
	assert.NoError(t, err)
	mintAcct = post[1]

	mint, err := UnmarshalTokenMint(mintAcct.Data)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), mint.Supply)
	assert.Equal(t, solana.PublicKey(mintAuthority.Key), *mint.MintAuthority)

	// InitializeAccount: token accounts for alice and bob
	aliceTokenAcct := newRandomAccountWithOwnerAndSizeAndLamports(TokenProgramAddr, TokenAccountSize, 10000000)
	aliceOwner := newRandomAccountWithOwnerAndSizeAndLamports(SystemProgramAddr, 0, 10000000)

	execCtx = newExecCtx(t, &log)
	rent = newDefaultRentSysvar(&execCtx.Accounts)

	instr = NewTokenInitializeAccountInstruction(aliceTokenAcct.Key, mintAcct.Key, aliceOwner.Key)
	post, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, aliceTokenAcct, mintAcct, aliceOwner, rent})
	assert.NoError(t, err)
	aliceTokenAcct = post[1]

	bobTokenAcct := newRandomAccountWithOwnerAndSizeAndLamports(TokenProgramAddr, TokenAccountSize, 10000000)
	bobOwner := newRandomAccountWithOwnerAndSizeAndLamports(SystemProgramAddr, 0, 10000000)

	execCtx = newExecCtx(t, &log)
	rent = newDefaultRentSysvar(&execCtx.Accounts)

	instr = NewTokenInitializeAccountInstruction(bobTokenAcct.Key, mintAcct.Key, bobOwner.Key)
	post, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, bobTokenAcct, mintAcct, bobOwner, rent})
	assert.NoError(t, err)
	bobTokenAcct = post[1]

	// MintTo: mint the initial supply to alice
	numTokensToMint := uint64(61616161)

	execCtx = newExecCtx(t, &log)
	instr = NewTokenMintToInstruction(mintAcct.Key, aliceTokenAcct.Key, mintAuthority.Key, numTokensToMint)
	post, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, mintAcct, aliceTokenAcct, mintAuthority})
	assert.NoError(t, err)
	mintAcct = post[1]
	aliceTokenAcct = post[2]

	mint, err = UnmarshalTokenMint(mintAcct.Data)
	assert.NoError(t, err)
	assert.Equal(t, numTokensToMint, mint.Supply)

	// Transfer: alice sends bob some tokens
	numTokensToTransfer := uint64(1337)

	execCtx = newExecCtx(t, &log)
	instr = NewTokenTransferInstruction(aliceTokenAcct.Key, bobTokenAcct.Key, aliceOwner.Key, numTokensToTransfer)
	post, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, aliceTokenAcct, bobTokenAcct, aliceOwner})
	assert.NoError(t, err)
	aliceTokenAcct = post[1]
	bobTokenAcct = post[2]

	aliceToken, err := UnmarshalTokenAccount(aliceTokenAcct.Data)
	assert.NoError(t, err)
	bobToken, err := UnmarshalTokenAccount(bobTokenAcct.Data)
	assert.NoError(t, err)
	assert.Equal(t, numTokensToMint-numTokensToTransfer, aliceToken.Amount)
	assert.Equal(t, numTokensToTransfer, bobToken.Amount)

	// Approve: alice delegates part of her balance
	delegate := newRandomAccountWithOwnerAndSizeAndLamports(SystemProgramAddr, 0, 10000000)

	execCtx = newExecCtx(t, &log)
	instr = NewTokenApproveInstruction(aliceTokenAcct.Key, delegate.Key, aliceOwner.Key, 5000)
	post, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, aliceTokenAcct, delegate, aliceOwner})
	assert.NoError(t, err)
	aliceTokenAcct = post[1]

	// Transfer: the delegate spends from alice's account
	execCtx = newExecCtx(t, &log)
	instr = NewTokenTransferInstruction(aliceTokenAcct.Key, bobTokenAcct.Key, delegate.Key, 2000)
	post, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, aliceTokenAcct, bobTokenAcct, delegate})
	assert.NoError(t, err)
	aliceTokenAcct = post[1]
	bobTokenAcct = post[2]

	aliceToken, err = UnmarshalTokenAccount(aliceTokenAcct.Data)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3000), aliceToken.DelegatedAmount)
	assert.Equal(t, solana.PublicKey(delegate.Key), *aliceToken.Delegate)

	// Revoke: the delegate can no longer spend
	execCtx = newExecCtx(t, &log)
	instr = NewTokenRevokeInstruction(aliceTokenAcct.Key, aliceOwner.Key)
	post, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, aliceTokenAcct, aliceOwner})
	assert.NoError(t, err)
	aliceTokenAcct = post[1]

	execCtx = newExecCtx(t, &log)
	instr = NewTokenTransferInstruction(aliceTokenAcct.Key, bobTokenAcct.Key, delegate.Key, 1)
	_, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, aliceTokenAcct, bobTokenAcct, delegate})
	assert.Equal(t, TokenErrOwnerMismatch, err)

	// Burn: bob burns his whole balance and the supply shrinks
	bobBalance := numTokensToTransfer + 2000

	execCtx = newExecCtx(t, &log)
	instr = NewTokenBurnInstruction(bobTokenAcct.Key, mintAcct.Key, bobOwner.Key, bobBalance)
	post, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, bobTokenAcct, mintAcct, bobOwner})
	assert.NoError(t, err)
	bobTokenAcct = post[1]
	mintAcct = post[2]

	bobToken, err = UnmarshalTokenAccount(bobTokenAcct.Data)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), bobToken.Amount)

	mint, err = UnmarshalTokenMint(mintAcct.Data)
	assert.NoError(t, err)
	aliceToken, err = UnmarshalTokenAccount(aliceTokenAcct.Data)
	assert.NoError(t, err)
	assert.Equal(t, aliceToken.Amount, mint.Supply)

	// CloseAccount: bob's emptied account closes and its rent goes home
	execCtx = newExecCtx(t, &log)
	instr = NewTokenCloseAccountInstruction(bobTokenAcct.Key, bobOwner.Key, bobOwner.Key)
	post, err = processTestInstruction(t, execCtx, instr, []accounts.Account{tokenProgramAcct, bobTokenAcct, bobOwner})
	assert.NoError(t, err)

	assert.Equal(t, uint64(0), post[1].Lamports)
	assert.Equal(t, bobOwner.Lamports+bobTokenAcct.Lamports, post[2].Lamports)

	fmt.Printf("alice tokens after burn: %d\n", aliceToken.Amount)
	fmt.Printf("supply after burn: %d\n", mint.Supply)

	for _, l := range log.Logs {
		fmt.Printf("log: %s\n", l)
	}
}
