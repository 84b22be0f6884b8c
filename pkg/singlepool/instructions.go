package singlepool

import (
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"

	"github.com/solopool-labs/solopool/pkg/sealevel"
)

const (
	PoolInstrTypeInitializePool = iota
	PoolInstrTypeReplenishPool
	PoolInstrTypeDepositStake
	PoolInstrTypeWithdrawStake
	PoolInstrTypeCreateTokenMetadata
	PoolInstrTypeUpdateTokenMetadata
	PoolInstrTypeInitializePoolOnRamp
)

// withdrawStakeInstrLen is the exact wire size of a WithdrawStake payload:
// discriminant, authority pubkey, token amount.
const withdrawStakeInstrLen = 1 + 32 + 8

type PoolInstrWithdrawStake struct {
	UserStakeAuthority solana.PublicKey
	TokenAmount        uint64
}

type PoolInstrUpdateTokenMetadata struct {
	TokenName   string
	TokenSymbol string
	TokenUri    string
}

func unmarshalWithdrawStakeInstr(data []byte) (*PoolInstrWithdrawStake, error) {
	if len(data) != withdrawStakeInstrLen {
		return nil, sealevel.InstrErrInvalidInstructionData
	}

	withdraw := new(PoolInstrWithdrawStake)
	err := borsh.Deserialize(withdraw, data[1:])
	if err != nil {
		return nil, sealevel.InstrErrInvalidInstructionData
	}
	return withdraw, nil
}

func unmarshalUpdateTokenMetadataInstr(data []byte) (*PoolInstrUpdateTokenMetadata, error) {
	update := new(PoolInstrUpdateTokenMetadata)
	err := borsh.Deserialize(update, data[1:])
	if err != nil {
		return nil, sealevel.InstrErrInvalidInstructionData
	}

	// borsh strings are u32-length-prefixed; recompute the exact payload
	// size to reject trailing garbage
	expectedLen := 1 + 4 + len(update.TokenName) + 4 + len(update.TokenSymbol) + 4 + len(update.TokenUri)
	if len(data) != expectedLen {
		return nil, sealevel.InstrErrInvalidInstructionData
	}
	return update, nil
}

func marshalWithdrawStakeInstr(withdraw *PoolInstrWithdrawStake) ([]byte, error) {
	payload, err := borsh.Serialize(*withdraw)
	if err != nil {
		return nil, err
	}
	return append([]byte{PoolInstrTypeWithdrawStake}, payload...), nil
}

func marshalUpdateTokenMetadataInstr(update *PoolInstrUpdateTokenMetadata) ([]byte, error) {
	payload, err := borsh.Serialize(*update)
	if err != nil {
		return nil, err
	}
	return append([]byte{PoolInstrTypeUpdateTokenMetadata}, payload...), nil
}
