package sealevel

import (
	"bytes"
	"fmt"
	"math/bits"

	bin "github.com/gagliardetto/binary"

	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/base58"
	"github.com/solopool-labs/solopool/pkg/safemath"
)

const SysvarEpochScheduleAddrStr = "SysvarEpochSchedu1e111111111111111111111111"

var SysvarEpochScheduleAddr = base58.MustDecodeFromString(SysvarEpochScheduleAddrStr)

const SysvarEpochScheduleStructLen = 33

// MinimumSlotsPerEpoch is the epoch length at the start of the warmup
// period, doubling each epoch until SlotsPerEpoch is reached.
const MinimumSlotsPerEpoch = 32

type SysvarEpochSchedule struct {
	SlotsPerEpoch            uint64
	LeaderScheduleSlotOffset uint64
	Warmup                   bool
	FirstNormalEpoch         uint64
	FirstNormalSlot          uint64
}

func (ses *SysvarEpochSchedule) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	slotsPerEpoch, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read SlotsPerEpoch when decoding SysvarEpochSchedule: %w", err)
	}
	ses.SlotsPerEpoch = slotsPerEpoch

	leaderScheduleSlotOffset, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LeaderScheduleSlotOffset when decoding SysvarEpochSchedule: %w", err)
	}
	ses.LeaderScheduleSlotOffset = leaderScheduleSlotOffset

	warmup, err := decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read Warmup when decoding SysvarEpochSchedule: %w", err)
	}
	ses.Warmup = warmup

	firstNormalEpoch, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read FirstNormalEpoch when decoding SysvarEpochSchedule: %w", err)
	}
	ses.FirstNormalEpoch = firstNormalEpoch

	firstNormalSlot, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read FirstNormalSlot when decoding SysvarEpochSchedule: %w", err)
	}
	ses.FirstNormalSlot = firstNormalSlot

	return
}

func (ses *SysvarEpochSchedule) MustUnmarshalWithDecoder(decoder *bin.Decoder) {
	err := ses.UnmarshalWithDecoder(decoder)
	if err != nil {
		panic(err.Error())
	}
}

func nextPowerOfTwo(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return uint64(1) << uint(bits.Len64(v-1))
}

// GetEpochAndSlotIndex maps an absolute slot to its epoch and the
// slot's index within that epoch, accounting for the power-of-two
// warmup epochs before FirstNormalSlot.
func (ses *SysvarEpochSchedule) GetEpochAndSlotIndex(slot uint64) (uint64, uint64) {
	if slot < ses.FirstNormalSlot {
		adjusted := nextPowerOfTwo(safemath.SaturatingAddU64(slot, MinimumSlotsPerEpoch+1))
		epoch := uint64(bits.TrailingZeros64(adjusted)) - uint64(bits.TrailingZeros64(MinimumSlotsPerEpoch)) - 1
		epochLen := uint64(1) << uint(epoch+uint64(bits.TrailingZeros64(MinimumSlotsPerEpoch)))
		slotIndex := safemath.SaturatingSubU64(slot, safemath.SaturatingSubU64(epochLen, MinimumSlotsPerEpoch))
		return epoch, slotIndex
	}

	normalSlotIndex := slot - ses.FirstNormalSlot
	normalEpochIndex := uint64(0)
	slotIndex := uint64(0)
	if ses.SlotsPerEpoch != 0 {
		normalEpochIndex = normalSlotIndex / ses.SlotsPerEpoch
		slotIndex = normalSlotIndex % ses.SlotsPerEpoch
	}
	epoch := safemath.SaturatingAddU64(ses.FirstNormalEpoch, normalEpochIndex)
	return epoch, slotIndex
}

func (ses *SysvarEpochSchedule) GetEpoch(slot uint64) uint64 {
	epoch, _ := ses.GetEpochAndSlotIndex(slot)
	return epoch
}

// FirstSlotInEpoch returns the absolute slot at which the given epoch
// begins.
func (ses *SysvarEpochSchedule) FirstSlotInEpoch(epoch uint64) uint64 {
	if epoch <= ses.FirstNormalEpoch {
		return safemath.SaturatingMulU64(safemath.SaturatingSubU64(uint64(1)<<uint(epoch), 1), MinimumSlotsPerEpoch)
	}
	return safemath.SaturatingAddU64(
		safemath.SaturatingMulU64(epoch-ses.FirstNormalEpoch, ses.SlotsPerEpoch),
		ses.FirstNormalSlot)
}

func (ses *SysvarEpochSchedule) SlotsInEpoch(epoch uint64) uint64 {
	if epoch < ses.FirstNormalEpoch {
		return uint64(1) << uint(safemath.SaturatingAddU64(epoch, uint64(bits.TrailingZeros64(MinimumSlotsPerEpoch))))
	}
	return ses.SlotsPerEpoch
}

func ReadEpochScheduleSysvar(accts *accounts.Accounts) SysvarEpochSchedule {
	epochScheduleSysvarAcct, err := (*accts).GetAccount(&SysvarEpochScheduleAddr)
	if err != nil || epochScheduleSysvarAcct == nil {
		panic("failed to read epoch schedule sysvar account")
	}

	dec := bin.NewBinDecoder(epochScheduleSysvarAcct.Data)

	var epochSchedule SysvarEpochSchedule
	epochSchedule.MustUnmarshalWithDecoder(dec)

	return epochSchedule
}

func WriteEpochScheduleSysvar(accts *accounts.Accounts, epochSchedule SysvarEpochSchedule) {

	epochScheduleSysvarAcct, err := (*accts).GetAccount(&SysvarEpochScheduleAddr)
	if err != nil || epochScheduleSysvarAcct == nil {
		panic("failed to read EpochSchedule sysvar account")
	}

	data := new(bytes.Buffer)
	enc := bin.NewBinEncoder(data)

	err = enc.WriteUint64(epochSchedule.SlotsPerEpoch, bin.LE)
	if err != nil {
		err = fmt.Errorf("failed to serialize SlotsPerEpoch for EpochSchedule sysvar: %w", err)
		panic(err)
	}

	err = enc.WriteUint64(epochSchedule.LeaderScheduleSlotOffset, bin.LE)
	if err != nil {
		err = fmt.Errorf("failed to serialize LeaderScheduleSlotOffset for EpochSchedule sysvar: %w", err)
		panic(err)
	}

	err = enc.WriteBool(epochSchedule.Warmup)
	if err != nil {
		err = fmt.Errorf("failed to serialize Warmup for EpochSchedule sysvar: %w", err)
		panic(err)
	}

	err = enc.WriteUint64(epochSchedule.FirstNormalEpoch, bin.LE)
	if err != nil {
		err = fmt.Errorf("failed to serialize FirstNormalEpoch for EpochSchedule sysvar: %w", err)
		panic(err)
	}

	err = enc.WriteUint64(epochSchedule.FirstNormalSlot, bin.LE)
	if err != nil {
		err = fmt.Errorf("failed to serialize FirstNormalSlot for EpochSchedule sysvar: %w", err)
		panic(err)
	}

	epochScheduleSysvarAcct.Data = data.Bytes()

	err = (*accts).SetAccount(&SysvarEpochScheduleAddr, epochScheduleSysvarAcct)
	if err != nil {
		err = fmt.Errorf("failed write newly serialized EpochSchedule sysvar to sysvar account: %w", err)
		panic(err)
	}
}
