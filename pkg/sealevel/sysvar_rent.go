package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/base58"
)

const SysvarRentAddrStr = "SysvarRent111111111111111111111111111111111"

var SysvarRentAddr = base58.MustDecodeFromString(SysvarRentAddrStr)

const SysvarRentStructLen = 17

// accountStorageOverhead is the per-account byte overhead charged for
// rent beyond the data itself.
const accountStorageOverhead = 128

type SysvarRent struct {
	LamportsPerUint8Year uint64
	ExemptionThreshold   float64
	BurnPercent          byte
}

func (sr *SysvarRent) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	lamportsPerUint8Year, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LamportsPerUint8Year when decoding SysvarRent: %w", err)
	}
	sr.LamportsPerUint8Year = lamportsPerUint8Year

	exemptionThreshold, err := decoder.ReadFloat64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read ExemptionThreshold when decoding SysvarRent: %w", err)
	}
	sr.ExemptionThreshold = exemptionThreshold

	burnPercent, err := decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read BurnPercent when decoding SysvarRent: %w", err)
	}
	sr.BurnPercent = burnPercent

	return
}

func (sr *SysvarRent) MustUnmarshalWithDecoder(decoder *bin.Decoder) {
	err := sr.UnmarshalWithDecoder(decoder)
	if err != nil {
		panic(err.Error())
	}
}

func (sr *SysvarRent) MarshalWithEncoder(encoder *bin.Encoder) (err error) {
	err = encoder.WriteUint64(sr.LamportsPerUint8Year, bin.LE)
	if err != nil {
		return fmt.Errorf("failed to serialize LamportsPerUint8Year when encoding SysvarRent: %w", err)
	}

	err = encoder.WriteFloat64(sr.ExemptionThreshold, bin.LE)
	if err != nil {
		return fmt.Errorf("failed to serialize ExemptionThreshold when encoding SysvarRent: %w", err)
	}

	err = encoder.WriteByte(sr.BurnPercent)
	if err != nil {
		return fmt.Errorf("failed to serialize BurnPercent when encoding SysvarRent: %w", err)
	}

	return
}

// MinimumBalance returns the smallest lamport balance at which an
// account with the given data size owes no rent.
func (sr *SysvarRent) MinimumBalance(dataLen uint64) uint64 {
	bytesAndOverhead := accountStorageOverhead + dataLen
	lamportsPerYear := bytesAndOverhead * sr.LamportsPerUint8Year
	return uint64(float64(lamportsPerYear) * sr.ExemptionThreshold)
}

func (sr *SysvarRent) IsExempt(lamports uint64, dataLen uint64) bool {
	return lamports >= sr.MinimumBalance(dataLen)
}

func ReadRentSysvar(accts *accounts.Accounts) SysvarRent {
	rentAcct, err := (*accts).GetAccount(&SysvarRentAddr)
	if err != nil || rentAcct == nil {
		panic("failed to read rent sysvar account")
	}

	dec := bin.NewBinDecoder(rentAcct.Data)

	var rent SysvarRent
	rent.MustUnmarshalWithDecoder(dec)

	return rent
}

func WriteRentSysvar(accts *accounts.Accounts, rent SysvarRent) {
	rentSysvarAcct, err := (*accts).GetAccount(&SysvarRentAddr)
	if err != nil || rentSysvarAcct == nil {
		panic("failed to read rent sysvar account")
	}

	data := new(bytes.Buffer)
	enc := bin.NewBinEncoder(data)

	err = rent.MarshalWithEncoder(enc)
	if err != nil {
		err = fmt.Errorf("failed to serialize Rent sysvar: %w", err)
		panic(err)
	}

	rentSysvarAcct.Data = data.Bytes()

	err = (*accts).SetAccount(&SysvarRentAddr, rentSysvarAcct)
	if err != nil {
		err = fmt.Errorf("failed to write newly serialized Rent sysvar to sysvar account: %w", err)
		panic(err)
	}
}

func checkAcctForRentSysvar(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) error {
	idxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(instrAcctIdx)
	if err != nil {
		return err
	}
	pk, err := txCtx.KeyOfAccountAtIndex(idxInTx)
	if err != nil {
		return err
	}
	if pk == SysvarRentAddr {
		return nil
	} else {
		return InstrErrInvalidArgument
	}
}
