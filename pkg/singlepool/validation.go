package singlepool

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"

	"github.com/solopool-labs/solopool/pkg/sealevel"
)

func instructionAcctKey(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64) (solana.PublicKey, error) {
	idxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(instrAcctIdx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return txCtx.KeyOfAccountAtIndex(idxInTx)
}

func checkPoolStakeAccount(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64, pool solana.PublicKey) error {
	key, err := instructionAcctKey(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	if key != FindPoolStakeAddress(pool) {
		klog.V(2).Infof("account %s is not the stake account for pool %s", key, pool)
		return PoolErrInvalidPoolStakeAccount
	}
	return nil
}

func checkPoolOnRampAccount(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64, pool solana.PublicKey) error {
	key, err := instructionAcctKey(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	if key != FindPoolOnRampAddress(pool) {
		klog.V(2).Infof("account %s is not the on-ramp account for pool %s", key, pool)
		return PoolErrInvalidPoolOnRampAccount
	}
	return nil
}

func checkPoolMintAccount(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64, pool solana.PublicKey) error {
	key, err := instructionAcctKey(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	if key != FindPoolMintAddress(pool) {
		klog.V(2).Infof("account %s is not the mint for pool %s", key, pool)
		return PoolErrInvalidPoolMint
	}
	return nil
}

func checkPoolStakeAuthority(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64, pool solana.PublicKey) error {
	key, err := instructionAcctKey(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	if key != FindPoolStakeAuthorityAddress(pool) {
		klog.V(2).Infof("account %s is not the stake authority for pool %s", key, pool)
		return PoolErrInvalidPoolStakeAuthority
	}
	return nil
}

func checkPoolMintAuthority(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64, pool solana.PublicKey) error {
	key, err := instructionAcctKey(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	if key != FindPoolMintAuthorityAddress(pool) {
		klog.V(2).Infof("account %s is not the mint authority for pool %s", key, pool)
		return PoolErrInvalidPoolMintAuthority
	}
	return nil
}

func checkPoolMplAuthority(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64, pool solana.PublicKey) error {
	key, err := instructionAcctKey(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	if key != FindPoolMplAuthorityAddress(pool) {
		klog.V(2).Infof("account %s is not the metadata authority for pool %s", key, pool)
		return PoolErrInvalidPoolMplAuthority
	}
	return nil
}

func checkMetadataAccount(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64, mint solana.PublicKey) error {
	key, err := instructionAcctKey(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	if key != FindMetadataAddress(mint) {
		klog.V(2).Infof("account %s is not the metadata account for mint %s", key, mint)
		return PoolErrInvalidMetadataAccount
	}
	return nil
}

// checkUserStakeAccountUsage rejects the pool's own stake accounts where a
// user stake account is expected; merging the pool into itself or draining
// the on-ramp through deposit would corrupt the accounting.
func checkUserStakeAccountUsage(userStake solana.PublicKey, pool solana.PublicKey) error {
	if userStake == FindPoolStakeAddress(pool) || userStake == FindPoolOnRampAddress(pool) {
		klog.V(2).Infof("account %s is one of the pool's own stake accounts", userStake)
		return PoolErrInvalidPoolStakeAccountUsage
	}
	return nil
}

func checkProgramAccount(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64, programId solana.PublicKey) error {
	key, err := instructionAcctKey(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	if key != programId {
		klog.V(2).Infof("expected program %s at account index %d, got %s", programId, instrAcctIdx, key)
		return sealevel.InstrErrIncorrectProgramId
	}
	return nil
}

func checkSysvarAccount(txCtx *sealevel.TransactionCtx, instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64, sysvarAddr solana.PublicKey) error {
	key, err := instructionAcctKey(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	if key != sysvarAddr {
		return sealevel.InstrErrInvalidArgument
	}
	return nil
}

func checkSignature(instrCtx *sealevel.InstructionCtx, instrAcctIdx uint64) error {
	isSigner, err := instrCtx.IsInstructionAccountSigner(instrAcctIdx)
	if err != nil {
		return err
	}
	if !isSigner {
		return PoolErrSignatureMissing
	}
	return nil
}

// voteWithdrawerFromAccount extracts the authorized withdrawer from a vote
// account. Pre-1.14 vote state stores the withdrawer at a different offset
// and is not supported.
func voteWithdrawerFromAccount(acct *sealevel.BorrowedAccount) (solana.PublicKey, error) {
	if acct.Owner() != sealevel.VoteProgramAddr {
		return solana.PublicKey{}, sealevel.InstrErrIncorrectProgramId
	}

	data := acct.Data()
	if len(data) < 4 {
		return solana.PublicKey{}, PoolErrUnparseableVoteAccount
	}

	switch binary.LittleEndian.Uint32(data) {
	case sealevel.VoteStateVersionV0_23_5:
		return solana.PublicKey{}, PoolErrLegacyVoteAccount
	case sealevel.VoteStateVersionV1_14_11, sealevel.VoteStateVersionCurrent:
		versioned, err := sealevel.UnmarshalVersionedVoteState(data)
		if err != nil {
			return solana.PublicKey{}, PoolErrUnparseableVoteAccount
		}
		return versioned.ConvertToCurrent().AuthorizedWithdrawer, nil
	default:
		return solana.PublicKey{}, PoolErrUnparseableVoteAccount
	}
}
