package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/base58"
)

const SysvarClockAddrStr = "SysvarC1ock11111111111111111111111111111111"

var SysvarClockAddr = base58.MustDecodeFromString(SysvarClockAddrStr)

const SysvarClockStructLen = 40

type SysvarClock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

func (sc *SysvarClock) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	slot, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Slot when decoding SysvarClock: %w", err)
	}
	sc.Slot = slot

	epochStartTimestamp, err := decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read EpochStartTimestamp when decoding SysvarClock: %w", err)
	}
	sc.EpochStartTimestamp = epochStartTimestamp

	epoch, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Epoch when decoding SysvarClock: %w", err)
	}
	sc.Epoch = epoch

	leaderScheduleEpoch, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LeaderScheduleEpoch when decoding SysvarClock: %w", err)
	}
	sc.LeaderScheduleEpoch = leaderScheduleEpoch

	unixTimestamp, err := decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read UnixTimestamp when decoding SysvarClock: %w", err)
	}
	sc.UnixTimestamp = unixTimestamp
	return
}

func (sc *SysvarClock) MustUnmarshalWithDecoder(decoder *bin.Decoder) {
	err := sc.UnmarshalWithDecoder(decoder)
	if err != nil {
		panic(err.Error())
	}
}

func (sc *SysvarClock) MarshalWithEncoder(encoder *bin.Encoder) (err error) {
	err = encoder.WriteUint64(sc.Slot, bin.LE)
	if err != nil {
		return fmt.Errorf("failed to serialize Slot when encoding SysvarClock: %w", err)
	}

	err = encoder.WriteInt64(sc.EpochStartTimestamp, bin.LE)
	if err != nil {
		return fmt.Errorf("failed to serialize EpochStartTimestamp when encoding SysvarClock: %w", err)
	}

	err = encoder.WriteUint64(sc.Epoch, bin.LE)
	if err != nil {
		return fmt.Errorf("failed to serialize Epoch when encoding SysvarClock: %w", err)
	}

	err = encoder.WriteUint64(sc.LeaderScheduleEpoch, bin.LE)
	if err != nil {
		return fmt.Errorf("failed to serialize LeaderScheduleEpoch when encoding SysvarClock: %w", err)
	}

	err = encoder.WriteInt64(sc.UnixTimestamp, bin.LE)
	if err != nil {
		return fmt.Errorf("failed to serialize UnixTimestamp when encoding SysvarClock: %w", err)
	}
	return
}

func ReadClockSysvar(accts *accounts.Accounts) SysvarClock {
	clockAccount, err := (*accts).GetAccount(&SysvarClockAddr)
	if err != nil || clockAccount == nil {
		panic("failed to read clock sysvar account")
	}

	dec := bin.NewBinDecoder(clockAccount.Data)

	var clock SysvarClock
	clock.MustUnmarshalWithDecoder(dec)
	return clock
}

func WriteClockSysvar(accts *accounts.Accounts, clock SysvarClock) {
	clockSysvarAcct, err := (*accts).GetAccount(&SysvarClockAddr)
	if err != nil || clockSysvarAcct == nil {
		panic("failed to read clock sysvar account")
	}

	data := new(bytes.Buffer)
	enc := bin.NewBinEncoder(data)

	err = clock.MarshalWithEncoder(enc)
	if err != nil {
		err = fmt.Errorf("failed to serialize Clock sysvar: %w", err)
		panic(err)
	}

	clockSysvarAcct.Data = data.Bytes()

	err = (*accts).SetAccount(&SysvarClockAddr, clockSysvarAcct)
	if err != nil {
		err = fmt.Errorf("failed to write newly serialized Clock sysvar to sysvar account: %w", err)
		panic(err)
	}
}

func checkAcctForClockSysvar(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) error {
	idxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(instrAcctIdx)
	if err != nil {
		return err
	}
	pk, err := txCtx.KeyOfAccountAtIndex(idxInTx)
	if err != nil {
		return err
	}
	if pk == SysvarClockAddr {
		return nil
	} else {
		return InstrErrInvalidArgument
	}
}
