package cell

import (
	"encoding/binary"
	"fmt"

	"github.com/dchest/blake2b"
)

// ckbHashPersonal is the 16-byte personalization every CKB blake2b-256 hash
// uses, for script hashes and transaction identities alike.
const ckbHashPersonal = "ckb-default-hash"

// Script is a lock or type script: a code reference plus arguments. The hex
// fields use the node's 0x-prefixed encoding.
type Script struct {
	CodeHash string `json:"code_hash"`
	HashType string `json:"hash_type"` // "data", "type" or "data1"
	Args     string `json:"args"`
}

func hashTypeByte(ht string) (byte, error) {
	switch ht {
	case "data":
		return 0, nil
	case "type":
		return 1, nil
	case "data1":
		return 2, nil
	}
	return 0, fmt.Errorf("unknown hash type %q", ht)
}

// ArgsLen returns the byte length of the script's arguments.
func (s Script) ArgsLen() int {
	b, err := HexToBytes(s.Args)
	if err != nil {
		return 0
	}
	return len(b)
}

// OccupiedBytes is the serialized storage footprint of the script body:
// 32-byte code hash, 1-byte hash type, plus the args.
func (s Script) OccupiedBytes() int {
	return 33 + s.ArgsLen()
}

// Serialize produces the canonical molecule table encoding of the script,
// the exact byte layout the chain hashes.
func (s Script) Serialize() ([]byte, error) {
	codeHash, err := HexToBytes(s.CodeHash)
	if err != nil {
		return nil, fmt.Errorf("script code hash: %w", err)
	}
	if len(codeHash) != 32 {
		return nil, fmt.Errorf("script code hash: want 32 bytes, got %d", len(codeHash))
	}
	ht, err := hashTypeByte(s.HashType)
	if err != nil {
		return nil, err
	}
	args, err := HexToBytes(s.Args)
	if err != nil {
		return nil, fmt.Errorf("script args: %w", err)
	}

	// molecule table: full size, three field offsets, then the fields; args
	// is a fixvec with a u32 length prefix.
	header := 4 * 4
	offset0 := header
	offset1 := offset0 + 32
	offset2 := offset1 + 1
	full := offset2 + 4 + len(args)

	out := make([]byte, 0, full)
	out = appendUint32LE(out, uint32(full))
	out = appendUint32LE(out, uint32(offset0))
	out = appendUint32LE(out, uint32(offset1))
	out = appendUint32LE(out, uint32(offset2))
	out = append(out, codeHash...)
	out = append(out, ht)
	out = appendUint32LE(out, uint32(len(args)))
	out = append(out, args...)
	return out, nil
}

// Hash computes the blake2b-256 script hash with the chain's personalization.
func (s Script) Hash() (string, error) {
	ser, err := s.Serialize()
	if err != nil {
		return "", err
	}
	return BytesToHex(CkbBlake256(ser)), nil
}

// CkbBlake256 hashes data with blake2b-256 under the chain's personalization.
func CkbBlake256(chunks ...[]byte) []byte {
	h, err := blake2b.New(&blake2b.Config{Size: 32, Person: []byte(ckbHashPersonal)})
	if err != nil {
		panic(err) // config is constant and valid
	}
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)
}

func appendUint32LE(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}
