package singlepool

import (
	"github.com/gagliardetto/solana-go"

	"github.com/solopool-labs/solopool/pkg/safemath"
	"github.com/solopool-labs/solopool/pkg/sealevel"
)

func NewInitializePoolInstruction(voteAccount solana.PublicKey) *sealevel.Instruction {
	pool := FindPoolAddress(voteAccount)

	accounts := []sealevel.AccountMeta{
		{Pubkey: voteAccount, IsSigner: false, IsWritable: false},
		{Pubkey: pool, IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolStakeAddress(pool), IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolMintAddress(pool), IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolStakeAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolMintAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SysvarRentAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SysvarClockAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SysvarStakeHistoryAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.StakeProgramConfigAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SystemProgramAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.TokenProgramAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.StakeProgramAddr, IsSigner: false, IsWritable: false}}

	return &sealevel.Instruction{Accounts: accounts, Data: []byte{PoolInstrTypeInitializePool}, ProgramId: ProgramAddr}
}

func NewReplenishPoolInstruction(voteAccount solana.PublicKey) *sealevel.Instruction {
	pool := FindPoolAddress(voteAccount)

	accounts := []sealevel.AccountMeta{
		{Pubkey: voteAccount, IsSigner: false, IsWritable: false},
		{Pubkey: pool, IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolStakeAddress(pool), IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolOnRampAddress(pool), IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolStakeAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SysvarClockAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SysvarStakeHistoryAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.StakeProgramConfigAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.StakeProgramAddr, IsSigner: false, IsWritable: false}}

	return &sealevel.Instruction{Accounts: accounts, Data: []byte{PoolInstrTypeReplenishPool}, ProgramId: ProgramAddr}
}

func NewDepositStakeInstruction(pool solana.PublicKey, userStakeAccount solana.PublicKey, userTokenAccount solana.PublicKey, userLamportAccount solana.PublicKey) *sealevel.Instruction {
	accounts := []sealevel.AccountMeta{
		{Pubkey: pool, IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolStakeAddress(pool), IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolMintAddress(pool), IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolStakeAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolMintAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: userStakeAccount, IsSigner: false, IsWritable: true},
		{Pubkey: userTokenAccount, IsSigner: false, IsWritable: true},
		{Pubkey: userLamportAccount, IsSigner: false, IsWritable: true},
		{Pubkey: sealevel.SysvarClockAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SysvarStakeHistoryAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.TokenProgramAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.StakeProgramAddr, IsSigner: false, IsWritable: false}}

	return &sealevel.Instruction{Accounts: accounts, Data: []byte{PoolInstrTypeDepositStake}, ProgramId: ProgramAddr}
}

func NewWithdrawStakeInstruction(pool solana.PublicKey, userStakeAccount solana.PublicKey, userTokenAccount solana.PublicKey, userStakeAuthority solana.PublicKey, tokenAmount uint64) *sealevel.Instruction {
	withdraw := PoolInstrWithdrawStake{UserStakeAuthority: userStakeAuthority, TokenAmount: tokenAmount}
	instrData, err := marshalWithdrawStakeInstr(&withdraw)
	if err != nil {
		panic("shouldn't fail")
	}

	accounts := []sealevel.AccountMeta{
		{Pubkey: pool, IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolStakeAddress(pool), IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolMintAddress(pool), IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolStakeAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolMintAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: userStakeAccount, IsSigner: false, IsWritable: true},
		{Pubkey: userTokenAccount, IsSigner: false, IsWritable: true},
		{Pubkey: sealevel.SysvarClockAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.TokenProgramAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.StakeProgramAddr, IsSigner: false, IsWritable: false}}

	return &sealevel.Instruction{Accounts: accounts, Data: instrData, ProgramId: ProgramAddr}
}

func NewCreateTokenMetadataInstruction(pool solana.PublicKey, payer solana.PublicKey) *sealevel.Instruction {
	mint := FindPoolMintAddress(pool)

	accounts := []sealevel.AccountMeta{
		{Pubkey: pool, IsSigner: false, IsWritable: false},
		{Pubkey: mint, IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolMintAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolMplAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: payer, IsSigner: true, IsWritable: true},
		{Pubkey: FindMetadataAddress(mint), IsSigner: false, IsWritable: true},
		{Pubkey: sealevel.MetaplexMetadataProgramAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SystemProgramAddr, IsSigner: false, IsWritable: false}}

	return &sealevel.Instruction{Accounts: accounts, Data: []byte{PoolInstrTypeCreateTokenMetadata}, ProgramId: ProgramAddr}
}

func NewUpdateTokenMetadataInstruction(voteAccount solana.PublicKey, authorizedWithdrawer solana.PublicKey, tokenName string, tokenSymbol string, tokenUri string) *sealevel.Instruction {
	update := PoolInstrUpdateTokenMetadata{TokenName: tokenName, TokenSymbol: tokenSymbol, TokenUri: tokenUri}
	instrData, err := marshalUpdateTokenMetadataInstr(&update)
	if err != nil {
		panic("shouldn't fail")
	}

	pool := FindPoolAddress(voteAccount)
	mint := FindPoolMintAddress(pool)

	accounts := []sealevel.AccountMeta{
		{Pubkey: voteAccount, IsSigner: false, IsWritable: false},
		{Pubkey: pool, IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolMplAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: authorizedWithdrawer, IsSigner: true, IsWritable: false},
		{Pubkey: FindMetadataAddress(mint), IsSigner: false, IsWritable: true},
		{Pubkey: sealevel.MetaplexMetadataProgramAddr, IsSigner: false, IsWritable: false}}

	return &sealevel.Instruction{Accounts: accounts, Data: instrData, ProgramId: ProgramAddr}
}

func NewInitializePoolOnRampInstruction(pool solana.PublicKey) *sealevel.Instruction {
	accounts := []sealevel.AccountMeta{
		{Pubkey: pool, IsSigner: false, IsWritable: false},
		{Pubkey: FindPoolOnRampAddress(pool), IsSigner: false, IsWritable: true},
		{Pubkey: FindPoolStakeAuthorityAddress(pool), IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SysvarRentAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.SystemProgramAddr, IsSigner: false, IsWritable: false},
		{Pubkey: sealevel.StakeProgramAddr, IsSigner: false, IsWritable: false}}

	return &sealevel.Instruction{Accounts: accounts, Data: []byte{PoolInstrTypeInitializePoolOnRamp}, ProgramId: ProgramAddr}
}

// InitializeInstructions returns everything needed to stand up a new pool:
// rent funding transfers for the pool record, both stake accounts and the
// mint, then pool initialization, on-ramp initialization and default token
// metadata. The payer covers all rent plus the minimum pool balance, which
// stays delegated in the pool forever.
func InitializeInstructions(voteAccount solana.PublicKey, payer solana.PublicKey, rent sealevel.SysvarRent, minimumDelegation uint64) []*sealevel.Instruction {
	pool := FindPoolAddress(voteAccount)
	stakeRent := rent.MinimumBalance(sealevel.StakeStateV2Size)
	stakeFunding := safemath.SaturatingAddU64(stakeRent, MinimumPoolBalance(minimumDelegation))

	return []*sealevel.Instruction{
		sealevel.NewTransferInstruction(payer, pool, rent.MinimumBalance(PoolAccountSize)),
		sealevel.NewTransferInstruction(payer, FindPoolStakeAddress(pool), stakeFunding),
		sealevel.NewTransferInstruction(payer, FindPoolOnRampAddress(pool), stakeRent),
		sealevel.NewTransferInstruction(payer, FindPoolMintAddress(pool), rent.MinimumBalance(sealevel.TokenMintSize)),
		NewInitializePoolInstruction(voteAccount),
		NewInitializePoolOnRampInstruction(pool),
		NewCreateTokenMetadataInstruction(pool, payer),
	}
}

// CreatePoolOnRampInstructions funds and initializes the on-ramp for a pool
// created before on-ramps existed.
func CreatePoolOnRampInstructions(pool solana.PublicKey, payer solana.PublicKey, rent sealevel.SysvarRent) []*sealevel.Instruction {
	return []*sealevel.Instruction{
		sealevel.NewTransferInstruction(payer, FindPoolOnRampAddress(pool), rent.MinimumBalance(sealevel.StakeStateV2Size)),
		NewInitializePoolOnRampInstruction(pool),
	}
}

// DepositInstructions hands both stake authorities over to the pool and then
// deposits, all in one transaction so the user never loses control of a
// stake account the pool has not yet absorbed.
func DepositInstructions(pool solana.PublicKey, userWallet solana.PublicKey, userStakeAccount solana.PublicKey, userTokenAccount solana.PublicKey, userLamportAccount solana.PublicKey) []*sealevel.Instruction {
	stakeAuthority := FindPoolStakeAuthorityAddress(pool)

	return []*sealevel.Instruction{
		sealevel.NewStakeAuthorizeInstruction(userStakeAccount, userWallet, stakeAuthority, sealevel.StakeAuthorizeStaker, nil),
		sealevel.NewStakeAuthorizeInstruction(userStakeAccount, userWallet, stakeAuthority, sealevel.StakeAuthorizeWithdrawer, nil),
		NewDepositStakeInstruction(pool, userStakeAccount, userTokenAccount, userLamportAccount),
	}
}

// WithdrawInstructions approves the pool's mint authority to burn the tokens
// being redeemed and then withdraws stake into userStakeAccount, a blank
// rent-funded stake account owned by the stake program.
func WithdrawInstructions(pool solana.PublicKey, userWallet solana.PublicKey, userStakeAccount solana.PublicKey, userTokenAccount solana.PublicKey, userStakeAuthority solana.PublicKey, tokenAmount uint64) []*sealevel.Instruction {
	mintAuthority := FindPoolMintAuthorityAddress(pool)

	return []*sealevel.Instruction{
		sealevel.NewTokenApproveInstruction(userTokenAccount, mintAuthority, userWallet, tokenAmount),
		NewWithdrawStakeInstruction(pool, userStakeAccount, userTokenAccount, userStakeAuthority, tokenAmount),
	}
}

// CreateAndDelegateUserStakeInstructions creates a stake account at the
// user's default deposit address for the pool, funds it with stakeAmount on
// top of rent, and delegates it to the pool's vote account. Once active it
// can be deposited.
func CreateAndDelegateUserStakeInstructions(voteAccount solana.PublicKey, userWallet solana.PublicKey, rent sealevel.SysvarRent, stakeAmount uint64) []*sealevel.Instruction {
	pool := FindPoolAddress(voteAccount)
	depositAddress, seed := FindDefaultDepositAddressAndSeed(pool, userWallet)
	lamports := safemath.SaturatingAddU64(rent.MinimumBalance(sealevel.StakeStateV2Size), stakeAmount)

	return []*sealevel.Instruction{
		sealevel.NewCreateAccountWithSeedInstruction(userWallet, depositAddress, userWallet, seed, lamports, sealevel.StakeStateV2Size, sealevel.StakeProgramAddr),
		sealevel.NewStakeInitializeInstruction(depositAddress, userWallet, userWallet, sealevel.StakeLockup{}),
		sealevel.NewStakeDelegateInstruction(depositAddress, voteAccount, userWallet),
	}
}
