package singlepool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solopool-labs/solopool/pkg/sealevel"
)

func TestWithdrawStakeInstrRoundTrip(t *testing.T) {
	authority := randomPubkey(t)
	withdraw := PoolInstrWithdrawStake{UserStakeAuthority: authority, TokenAmount: 123456789}

	data, err := marshalWithdrawStakeInstr(&withdraw)
	assert.NoError(t, err)
	assert.Equal(t, withdrawStakeInstrLen, len(data))
	assert.Equal(t, byte(PoolInstrTypeWithdrawStake), data[0])

	decoded, err := unmarshalWithdrawStakeInstr(data)
	assert.NoError(t, err)
	assert.Equal(t, withdraw, *decoded)
}

func TestWithdrawStakeInstrStrictLength(t *testing.T) {
	authority := randomPubkey(t)
	data, err := marshalWithdrawStakeInstr(&PoolInstrWithdrawStake{UserStakeAuthority: authority, TokenAmount: 1})
	assert.NoError(t, err)

	_, err = unmarshalWithdrawStakeInstr(data[:len(data)-1])
	assert.Equal(t, sealevel.InstrErrInvalidInstructionData, err)

	_, err = unmarshalWithdrawStakeInstr(append(data, 0))
	assert.Equal(t, sealevel.InstrErrInvalidInstructionData, err)
}

func TestUpdateTokenMetadataInstrRoundTrip(t *testing.T) {
	update := PoolInstrUpdateTokenMetadata{TokenName: "My Fine Pool", TokenSymbol: "myspl", TokenUri: "https://example.org/pool.json"}

	data, err := marshalUpdateTokenMetadataInstr(&update)
	assert.NoError(t, err)
	assert.Equal(t, byte(PoolInstrTypeUpdateTokenMetadata), data[0])

	decoded, err := unmarshalUpdateTokenMetadataInstr(data)
	assert.NoError(t, err)
	assert.Equal(t, update, *decoded)
}

func TestUpdateTokenMetadataInstrEmptyStrings(t *testing.T) {
	data, err := marshalUpdateTokenMetadataInstr(&PoolInstrUpdateTokenMetadata{})
	assert.NoError(t, err)
	assert.Equal(t, 1+4+4+4, len(data))

	decoded, err := unmarshalUpdateTokenMetadataInstr(data)
	assert.NoError(t, err)
	assert.Equal(t, PoolInstrUpdateTokenMetadata{}, *decoded)
}

func TestUpdateTokenMetadataInstrTrailingGarbage(t *testing.T) {
	data, err := marshalUpdateTokenMetadataInstr(&PoolInstrUpdateTokenMetadata{TokenName: "pool"})
	assert.NoError(t, err)

	_, err = unmarshalUpdateTokenMetadataInstr(append(data, 0xff))
	assert.Equal(t, sealevel.InstrErrInvalidInstructionData, err)
}
