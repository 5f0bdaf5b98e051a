package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
)

// Signer holds the matcher's secp256k1 key and produces the recoverable
// signatures the default lock script verifies.
type Signer struct {
	key *secp256k1.PrivateKey
}

// NewSigner parses a 32-byte hex private key.
func NewSigner(hexKey string) (*Signer, error) {
	raw, err := cell.HexToBytes(hexKey)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key: want 32 bytes, got %d", len(raw))
	}
	return &Signer{key: secp256k1.PrivKeyFromBytes(raw)}, nil
}

// LockArgs returns the blake160 of the compressed public key, the args the
// matcher's own lock script carries.
func (s *Signer) LockArgs() string {
	digest := cell.CkbBlake256(s.key.PubKey().SerializeCompressed())
	return cell.BytesToHex(digest[:20])
}

// Sign produces the 65-byte recoverable signature over a 32-byte digest,
// laid out r || s || recovery_id as the chain's lock expects.
func (s *Signer) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("sign: want a 32-byte digest, got %d", len(digest))
	}
	compact := ecdsa.SignCompact(s.key, digest, true)

	// SignCompact leads with a header byte of 27 + recovery id + 4 for a
	// compressed key; the chain wants the recovery id trailing instead
	sig := make([]byte, 65)
	copy(sig[0:64], compact[1:65])
	sig[64] = (compact[0] - 27) & 3
	return sig, nil
}

// SighashAllDigest computes the standard signing message for the witness at
// the signer's input position: the transaction hash, then every witness of
// the script group length-prefixed, with the signature slot zeroed.
func SighashAllDigest(txHash string, emptyLockWitness []byte) ([]byte, error) {
	hash, err := cell.HexToBytes(txHash)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("tx hash %q is not 32 bytes", txHash)
	}
	lenBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenBytes, uint64(len(emptyLockWitness)))
	return cell.CkbBlake256(hash, lenBytes, emptyLockWitness), nil
}
