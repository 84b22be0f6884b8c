package sealevel

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/solopool-labs/solopool/pkg/base58"
)

const NativeLoaderAddrStr = "NativeLoader1111111111111111111111111111111"

var NativeLoaderAddr = base58.MustDecodeFromString(NativeLoaderAddrStr)

const ConfigProgramAddrStr = "Config1111111111111111111111111111111111111"

var ConfigProgramAddr = base58.MustDecodeFromString(ConfigProgramAddrStr)

const StakeProgramAddrStr = "Stake11111111111111111111111111111111111111"

var StakeProgramAddr = base58.MustDecodeFromString(StakeProgramAddrStr)

const StakeProgramConfigAddrStr = "StakeConfig11111111111111111111111111111111"

var StakeProgramConfigAddr = base58.MustDecodeFromString(StakeProgramConfigAddrStr)

const VoteProgramAddrStr = "Vote111111111111111111111111111111111111111"

var VoteProgramAddr = base58.MustDecodeFromString(VoteProgramAddrStr)

const SystemProgramAddrStr = "11111111111111111111111111111111"

var SystemProgramAddr = base58.MustDecodeFromString(SystemProgramAddrStr)

const TokenProgramAddrStr = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

var TokenProgramAddr = base58.MustDecodeFromString(TokenProgramAddrStr)

const MetaplexMetadataProgramAddrStr = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

var MetaplexMetadataProgramAddr = base58.MustDecodeFromString(MetaplexMetadataProgramAddrStr)

const SysvarOwnerAddrStr = "Sysvar1111111111111111111111111111111111111"

var SysvarOwnerAddr = base58.MustDecodeFromString(SysvarOwnerAddrStr)

const IncineratorAddrStr = "1nc1nerator11111111111111111111111111111111"

var IncineratorAddr = base58.MustDecodeFromString(IncineratorAddrStr)

var invalidEnumValue = errors.New("invalid enum value")

// nativeProgramRegistry holds processors registered from outside the
// package, keyed by program address.
var nativeProgramRegistry = make(map[[32]byte]func(execCtx *ExecutionCtx) error)

// RegisterNativeProgram installs a native program processor under the
// given address. Programs built on top of the runtime register
// themselves from an init function, in the manner of database/sql
// drivers.
func RegisterNativeProgram(programId [32]byte, fn func(execCtx *ExecutionCtx) error) {
	nativeProgramRegistry[programId] = fn
}

func resolveNativeProgramById(programId [32]byte) (func(ctx *ExecutionCtx) error, error) {

	switch programId {
	case SystemProgramAddr:
		return SystemProgramExecute, nil
	case StakeProgramAddr:
		return StakeProgramExecute, nil
	case TokenProgramAddr:
		return TokenProgramExecute, nil
	case MetaplexMetadataProgramAddr:
		return MetadataProgramExecute, nil
	}

	if fn, ok := nativeProgramRegistry[programId]; ok {
		return fn, nil
	}

	return nil, InstrErrUnsupportedProgramId
}

func verifySigner(authorized solana.PublicKey, signers []solana.PublicKey) error {
	for _, signer := range signers {
		if signer == authorized {
			return nil
		}
	}
	return InstrErrMissingRequiredSignature
}
