package accounts

import (
	"io"

	bin "github.com/gagliardetto/binary"

	"github.com/solopool-labs/solopool/pkg/base58"
)

type Accounts interface {
	GetAccount(pubkey *[32]byte) (*Account, error)
	SetAccount(pubkey *[32]byte, acc *Account) error
}

type Account struct {
	Key        [32]byte
	Lamports   uint64
	Data       []byte
	Owner      [32]byte
	Executable bool
	RentEpoch  uint64
}

var nativeLoaderAddr = base58.MustDecodeFromString("NativeLoader1111111111111111111111111111111")

func (a *Account) IsBuiltin() bool {
	return a.Owner == nativeLoaderAddr
}

func (a *Account) IsExecutable() bool {
	return a.IsBuiltin() || a.Executable
}

func (a *Account) SetData(data []byte) {
	a.Data = data
}

// Resize grows or truncates the account data to the given length,
// zero-filling any newly added bytes.
func (a *Account) Resize(newLen uint64) {
	if newLen <= uint64(len(a.Data)) {
		a.Data = a.Data[:newLen]
		return
	}

	newData := make([]byte, newLen)
	copy(newData, a.Data)
	a.Data = newData
}

func (a *Account) Clone() *Account {
	dataCopy := make([]byte, len(a.Data))
	copy(dataCopy, a.Data)
	return &Account{
		Key:        a.Key,
		Lamports:   a.Lamports,
		Data:       dataCopy,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}
}

func (a *Account) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	a.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	var dataLen uint64
	dataLen, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	if dataLen > uint64(decoder.Remaining()) {
		return io.ErrUnexpectedEOF
	}
	a.Data, err = decoder.ReadNBytes(int(dataLen))
	if err != nil {
		return err
	}
	if err = decoder.Decode(&a.Owner); err != nil {
		return err
	}
	a.Executable, err = decoder.ReadBool()
	if err != nil {
		return err
	}
	a.RentEpoch, err = decoder.ReadUint64(bin.LE)
	return
}

func (a *Account) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(a.Lamports, bin.LE)
	_ = encoder.WriteUint64(uint64(len(a.Data)), bin.LE)
	_ = encoder.WriteBytes(a.Data, false)
	_ = encoder.WriteBytes(a.Owner[:], false)
	_ = encoder.WriteBool(a.Executable)
	return encoder.WriteUint64(a.RentEpoch, bin.LE)
}
