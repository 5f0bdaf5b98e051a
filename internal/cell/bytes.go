package cell

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// All numeric cell fields are little-endian fixed-width: u64 for native-token
// capacities, u128 for token amounts.

func readUint64LE(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func putUint64LE(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}

func readUint128LE(b []byte) *big.Int {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = b[15-i]
	}
	return new(big.Int).SetBytes(be)
}

func putUint128LE(b []byte, v *big.Int) error {
	if v.Sign() < 0 {
		return fmt.Errorf("u128 encode: negative value %s", v)
	}
	if v.BitLen() > 128 {
		return fmt.Errorf("u128 encode: %s overflows 128 bits", v)
	}
	be := v.FillBytes(make([]byte, 16))
	for i := 0; i < 16; i++ {
		b[i] = be[15-i]
	}
	return nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return out
}

// HexToBytes parses a 0x-prefixed (or bare) hex string.
func HexToBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// BytesToHex renders bytes as a 0x-prefixed hex string.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// HexToUint64 parses a 0x-prefixed hexadecimal quantity (no leading zeros
// required), the encoding the node uses for capacities and indices.
func HexToUint64(s string) (uint64, error) {
	t := strings.TrimPrefix(s, "0x")
	if t == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	var v uint64
	if _, err := fmt.Sscanf(t, "%x", &v); err != nil {
		return 0, fmt.Errorf("bad hex quantity %q: %w", s, err)
	}
	return v, nil
}

// Uint64ToHex renders v the way the node expects quantities: 0x-prefixed,
// minimal digits.
func Uint64ToHex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}
