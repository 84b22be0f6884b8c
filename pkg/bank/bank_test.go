package bank

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/sealevel"
	"github.com/solopool-labs/solopool/pkg/singlepool"
)

func stakeState(t *testing.T, b *Bank, addr solana.PublicKey) *sealevel.StakeStateV2 {
	acct, ok := b.Account(addr)
	require.True(t, ok, "stake account %s does not exist", addr)

	state, err := sealevel.UnmarshalStakeState(acct.Data)
	require.NoError(t, err)
	return state
}

func tokenBalance(t *testing.T, b *Bank, addr solana.PublicKey) uint64 {
	acct, ok := b.Account(addr)
	require.True(t, ok)

	tokenAcct, err := sealevel.UnmarshalTokenAccount(acct.Data)
	require.NoError(t, err)
	return tokenAcct.Amount
}

func mintSupply(t *testing.T, b *Bank, addr solana.PublicKey) uint64 {
	acct, ok := b.Account(addr)
	require.True(t, ok)

	mint, err := sealevel.UnmarshalTokenMint(acct.Data)
	require.NoError(t, err)
	return mint.Supply
}

// newAccountKey returns a fresh keypair for accounts a transaction has to
// create, since CreateAccount requires the new account's signature.
func newAccountKey(t *testing.T) solana.PrivateKey {
	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return priv
}

func Test_Bank_Genesis(t *testing.T) {
	genesis := DefaultGenesisConfig()
	b, err := NewBank(accounts.NewMemAccounts(), genesis)
	require.NoError(t, err)

	faucetAcct, ok := b.Account(b.Faucet().PublicKey())
	require.True(t, ok)
	assert.Equal(t, genesis.FaucetLamports, faucetAcct.Lamports)

	voteAcct, ok := b.Account(b.VoteAccount())
	require.True(t, ok)
	assert.Equal(t, sealevel.VoteProgramAddr, voteAcct.Owner)

	assert.Equal(t, uint64(0), b.Clock().Epoch)
	assert.Len(t, b.stakeAccounts, 1)
}

func Test_Bank_Transaction_Atomicity(t *testing.T) {
	b, err := NewBank(accounts.NewMemAccounts(), DefaultGenesisConfig())
	require.NoError(t, err)

	sender := newAccountKey(t)
	receiver := newAccountKey(t)
	require.NoError(t, b.FundAccount(sender.PublicKey(), 1000000000))

	// the second transfer overdraws, so the first must not stick either
	err = b.ProcessTransaction([]*sealevel.Instruction{
		sealevel.NewTransferInstruction(sender.PublicKey(), receiver.PublicKey(), 400000000),
		sealevel.NewTransferInstruction(sender.PublicKey(), receiver.PublicKey(), 700000000),
	}, sender)
	require.Error(t, err)

	senderAcct, ok := b.Account(sender.PublicKey())
	require.True(t, ok)
	assert.Equal(t, uint64(1000000000), senderAcct.Lamports)

	_, exists := b.Account(receiver.PublicKey())
	assert.False(t, exists)
}

func Test_Bank_Missing_Signer(t *testing.T) {
	b, err := NewBank(accounts.NewMemAccounts(), DefaultGenesisConfig())
	require.NoError(t, err)

	stranger := newAccountKey(t)
	instr := sealevel.NewTransferInstruction(b.Faucet().PublicKey(), stranger.PublicKey(), 1000000)

	err = b.ProcessTransaction([]*sealevel.Instruction{instr})
	require.Error(t, err)

	_, exists := b.Account(stranger.PublicKey())
	assert.False(t, exists)
}

func Test_Bank_Pool_Lifecycle(t *testing.T) {
	genesis := DefaultGenesisConfig()
	genesis.ExtraPrograms = []solana.PublicKey{singlepool.ProgramAddr}
	b, err := NewBank(accounts.NewMemAccounts(), genesis)
	require.NoError(t, err)

	rent := b.Rent()
	stakeRent := rent.MinimumBalance(sealevel.StakeStateV2Size)
	vote := b.VoteAccount()
	pool := singlepool.FindPoolAddress(vote)
	mainStake := singlepool.FindPoolStakeAddress(pool)
	onRamp := singlepool.FindPoolOnRampAddress(pool)
	mint := singlepool.FindPoolMintAddress(pool)

	depositor := newAccountKey(t)
	wallet := depositor.PublicKey()
	require.NoError(t, b.FundAccount(wallet, 20000000000))

	// the faucet stands the pool up at epoch 0
	err = b.ProcessTransaction(singlepool.InitializeInstructions(vote, b.Faucet().PublicKey(), rent, 1), b.Faucet())
	require.NoError(t, err)

	poolAcct, ok := b.Account(pool)
	require.True(t, ok)
	record, err := singlepool.UnmarshalPool(poolAcct.Data)
	require.NoError(t, err)
	assert.Equal(t, vote, record.VoteAccountAddress)

	// the depositor delegates in the same epoch as the pool
	userStake := singlepool.FindDefaultDepositAddress(pool, wallet)
	err = b.ProcessTransaction(singlepool.CreateAndDelegateUserStakeInstructions(vote, wallet, rent, 5000000000), depositor)
	require.NoError(t, err)

	// both delegations warm up against the bootstrap stake in one epoch
	_, err = b.AdvanceEpoch(0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), b.Clock().Epoch)

	history := b.StakeHistory()
	entry := history.Get(0)
	require.NotNil(t, entry)
	assert.Equal(t, genesis.BootstrapStake, entry.Effective)
	assert.Equal(t, uint64(6000000000), entry.Activating)

	tokenKey := newAccountKey(t)
	userToken := tokenKey.PublicKey()
	err = b.ProcessTransaction([]*sealevel.Instruction{
		sealevel.NewCreateAccountInstruction(wallet, userToken, rent.MinimumBalance(sealevel.TokenAccountSize), sealevel.TokenAccountSize, sealevel.TokenProgramAddr),
		sealevel.NewTokenInitializeAccountInstruction(userToken, mint, wallet),
	}, depositor, tokenKey)
	require.NoError(t, err)

	err = b.ProcessTransaction(singlepool.DepositInstructions(pool, wallet, userStake, userToken, wallet), depositor)
	require.NoError(t, err)

	assert.Equal(t, uint64(5000000000), tokenBalance(t, b, userToken))
	assert.Equal(t, uint64(5000000000), mintSupply(t, b, mint))

	mainState := stakeState(t, b, mainStake)
	assert.Equal(t, uint64(6000000000), mainState.Stake.Stake.Delegation.StakeLamports)

	_, merged := b.Account(userStake)
	assert.False(t, merged, "user stake account should be purged after the deposit merge")

	// one epoch of 1% rewards on the bootstrap and pool delegations
	rewards, err := b.AdvanceEpoch(0.01)
	require.NoError(t, err)
	assert.Equal(t, uint64(100060000000), rewards)

	mainState = stakeState(t, b, mainStake)
	assert.Equal(t, uint64(6060000000), mainState.Stake.Stake.Delegation.StakeLamports)

	// donated lamports sit on the main account until replenish moves them
	// onto the warmup path
	require.NoError(t, b.FundAccount(mainStake, 1000000000))
	err = b.ProcessTransaction([]*sealevel.Instruction{singlepool.NewReplenishPoolInstruction(vote)})
	require.NoError(t, err)

	onRampState := stakeState(t, b, onRamp)
	assert.Equal(t, uint32(sealevel.StakeStateV2StatusStake), onRampState.Status)
	assert.Equal(t, uint64(1000000000), onRampState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, b.Clock().Epoch, onRampState.Stake.Stake.Delegation.ActivationEpoch)

	// next epoch the on-ramp stake is active and folds into the main account
	_, err = b.AdvanceEpoch(0)
	require.NoError(t, err)
	err = b.ProcessTransaction([]*sealevel.Instruction{singlepool.NewReplenishPoolInstruction(vote)})
	require.NoError(t, err)

	mainState = stakeState(t, b, mainStake)
	assert.Equal(t, uint64(7060000000), mainState.Stake.Stake.Delegation.StakeLamports)
	onRampState = stakeState(t, b, onRamp)
	assert.Equal(t, uint32(sealevel.StakeStateV2StatusInitialized), onRampState.Status)

	// withdrawing 1 of 5 tokens redeems at the appreciated rate
	blankKey := newAccountKey(t)
	blankStake := blankKey.PublicKey()
	err = b.ProcessTransaction([]*sealevel.Instruction{
		sealevel.NewCreateAccountInstruction(wallet, blankStake, stakeRent, sealevel.StakeStateV2Size, sealevel.StakeProgramAddr),
	}, depositor, blankKey)
	require.NoError(t, err)

	err = b.ProcessTransaction(singlepool.WithdrawInstructions(pool, wallet, blankStake, userToken, wallet, 1000000000), depositor)
	require.NoError(t, err)

	assert.Equal(t, uint64(4000000000), tokenBalance(t, b, userToken))
	assert.Equal(t, uint64(4000000000), mintSupply(t, b, mint))

	withdrawnState := stakeState(t, b, blankStake)
	assert.Equal(t, uint64(1212000000), withdrawnState.Stake.Stake.Delegation.StakeLamports)
	assert.Equal(t, wallet, withdrawnState.Stake.Meta.Authorized.Staker)
	assert.Equal(t, wallet, withdrawnState.Stake.Meta.Authorized.Withdrawer)

	mainState = stakeState(t, b, mainStake)
	assert.Equal(t, uint64(5848000000), mainState.Stake.Stake.Delegation.StakeLamports)

	// the faucet is the vote account withdrawer, so it may rename the token
	err = b.ProcessTransaction([]*sealevel.Instruction{
		singlepool.NewUpdateTokenMetadataInstruction(vote, b.Faucet().PublicKey(), "Genesis Pool", "GEN", ""),
	}, b.Faucet())
	require.NoError(t, err)

	metadataAcct, ok := b.Account(singlepool.FindMetadataAddress(mint))
	require.True(t, ok)
	assert.True(t, bytes.Contains(metadataAcct.Data, []byte("Genesis Pool")))
}

func Test_Bank_Multi_Epoch_Warmup(t *testing.T) {
	genesis := DefaultGenesisConfig()
	genesis.ExtraPrograms = []solana.PublicKey{singlepool.ProgramAddr}
	b, err := NewBank(accounts.NewMemAccounts(), genesis)
	require.NoError(t, err)

	rent := b.Rent()
	vote := b.VoteAccount()
	pool := singlepool.FindPoolAddress(vote)
	mint := singlepool.FindPoolMintAddress(pool)

	depositor := newAccountKey(t)
	wallet := depositor.PublicKey()
	require.NoError(t, b.FundAccount(wallet, 2100000000000))

	err = b.ProcessTransaction(singlepool.InitializeInstructions(vote, b.Faucet().PublicKey(), rent, 1), b.Faucet())
	require.NoError(t, err)

	_, err = b.AdvanceEpoch(0)
	require.NoError(t, err)

	// a 2000 SOL delegation exceeds the 9% per-epoch warmup budget of the
	// 10000 SOL cluster, so it takes several epochs to become effective
	userStake := singlepool.FindDefaultDepositAddress(pool, wallet)
	err = b.ProcessTransaction(singlepool.CreateAndDelegateUserStakeInstructions(vote, wallet, rent, 2000000000000), depositor)
	require.NoError(t, err)

	tokenKey := newAccountKey(t)
	userToken := tokenKey.PublicKey()
	err = b.ProcessTransaction([]*sealevel.Instruction{
		sealevel.NewCreateAccountInstruction(wallet, userToken, rent.MinimumBalance(sealevel.TokenAccountSize), sealevel.TokenAccountSize, sealevel.TokenProgramAddr),
		sealevel.NewTokenInitializeAccountInstruction(userToken, mint, wallet),
	}, depositor, tokenKey)
	require.NoError(t, err)

	_, err = b.AdvanceEpoch(0)
	require.NoError(t, err)

	history := b.StakeHistory()
	entry := history.Get(1)
	require.NotNil(t, entry)
	assert.Equal(t, uint64(10001000000000), entry.Effective)
	assert.Equal(t, uint64(2000000000000), entry.Activating)

	// partially active stake cannot be deposited; the rejected batch also
	// rolls back its authority handover
	err = b.ProcessTransaction(singlepool.DepositInstructions(pool, wallet, userStake, userToken, wallet), depositor)
	require.Error(t, err)
	assert.ErrorIs(t, err, singlepool.PoolErrWrongStakeStake)

	userState := stakeState(t, b, userStake)
	assert.Equal(t, wallet, userState.Stake.Meta.Authorized.Staker)

	_, err = b.AdvanceEpoch(0)
	require.NoError(t, err)

	history = b.StakeHistory()
	entry = history.Get(2)
	require.NotNil(t, entry)
	assert.Greater(t, entry.Effective, uint64(10001000000000))
	assert.Greater(t, entry.Activating, uint64(0))
	assert.Less(t, entry.Activating, uint64(2000000000000))

	err = b.ProcessTransaction(singlepool.DepositInstructions(pool, wallet, userStake, userToken, wallet), depositor)
	assert.ErrorIs(t, err, singlepool.PoolErrWrongStakeStake)

	// one more boundary finishes the warmup
	_, err = b.AdvanceEpoch(0)
	require.NoError(t, err)

	err = b.ProcessTransaction(singlepool.DepositInstructions(pool, wallet, userStake, userToken, wallet), depositor)
	require.NoError(t, err)

	assert.Equal(t, uint64(2000000000000), tokenBalance(t, b, userToken))
}
