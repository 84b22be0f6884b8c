// Package base58 wraps base58 encoding of account addresses.
package base58

import (
	"fmt"

	"github.com/mr-tron/base58"
)

const AddressLength = 32

func DecodeFromString(s string) ([32]byte, error) {
	var addr [32]byte
	decoded, err := base58.Decode(s)
	if err != nil {
		return addr, err
	}
	if len(decoded) != AddressLength {
		return addr, fmt.Errorf("wrong size for base58 decoded address: %d", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func MustDecodeFromString(s string) [32]byte {
	addr, err := DecodeFromString(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func Encode(b []byte) string {
	return base58.Encode(b)
}
