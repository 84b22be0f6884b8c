package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/cu"
)

func TestExecute_Tx_Unknown_Program_Failure(t *testing.T) {
	programKey := stakeTestKey(t)
	programAcct := accounts.Account{Key: programKey, Lamports: 1, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	transactionAccts := NewTransactionAccounts([]accounts.Account{programAcct})
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := ExecutionCtx{TransactionContext: txCtx, ComputeMeter: cu.NewComputeMeterDefault()}

	err := execCtx.ProcessInstruction([]byte{}, nil, []uint64{0})
	assert.Equal(t, InstrErrUnsupportedProgramId, err)
}

func TestExecute_Tx_Registered_Program_Dispatch(t *testing.T) {
	programKey := stakeTestKey(t)

	var gotData []byte
	RegisterNativeProgram([32]byte(programKey), func(execCtx *ExecutionCtx) error {
		instrCtx, err := execCtx.TransactionContext.CurrentInstructionCtx()
		if err != nil {
			return err
		}
		gotData = instrCtx.Data
		return nil
	})

	programAcct := accounts.Account{Key: programKey, Lamports: 1, Data: make([]byte, 0), Owner: NativeLoaderAddr, Executable: true, RentEpoch: 100}

	transactionAccts := NewTransactionAccounts([]accounts.Account{programAcct})
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := ExecutionCtx{TransactionContext: txCtx, ComputeMeter: cu.NewComputeMeterDefault()}

	instrData := []byte{0xde, 0xad, 0xbe, 0xef}
	err := execCtx.ProcessInstruction(instrData, nil, []uint64{0})
	require.NoError(t, err)

	assert.Equal(t, instrData, gotData)
}

// A program account owned by a registered builtin routes to the owner's
// processor rather than its own key.
func TestExecute_Tx_Program_Routed_By_Owner(t *testing.T) {
	loaderKey := stakeTestKey(t)
	programKey := stakeTestKey(t)

	invoked := false
	RegisterNativeProgram([32]byte(loaderKey), func(execCtx *ExecutionCtx) error {
		invoked = true
		return nil
	})

	programAcct := accounts.Account{Key: programKey, Lamports: 1, Data: make([]byte, 0), Owner: loaderKey, Executable: true, RentEpoch: 100}

	transactionAccts := NewTransactionAccounts([]accounts.Account{programAcct})
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := ExecutionCtx{TransactionContext: txCtx, ComputeMeter: cu.NewComputeMeterDefault()}

	err := execCtx.ProcessInstruction([]byte{}, nil, []uint64{0})
	require.NoError(t, err)

	assert.True(t, invoked)
}

func Test_Verify_Signer(t *testing.T) {
	authorized := stakeTestKey(t)
	other := stakeTestKey(t)

	assert.NoError(t, verifySigner(authorized, []solana.PublicKey{other, authorized}))
	assert.Equal(t, InstrErrMissingRequiredSignature, verifySigner(authorized, []solana.PublicKey{other}))
}
