package tx

import (
	"encoding/binary"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
)

// WitnessArgs carries the per-input witness payload: the lock field holds
// the signature, input_type and output_type are free-form script inputs.
// A nil field serializes as absent.
type WitnessArgs struct {
	Lock       []byte
	InputType  []byte
	OutputType []byte
}

// Serialize renders the molecule table of three optional byte blobs.
func (w WitnessArgs) Serialize() []byte {
	return moleculeTable(
		optionalBytes(w.Lock),
		optionalBytes(w.InputType),
		optionalBytes(w.OutputType),
	)
}

// Hex renders the serialized witness the way the node expects it.
func (w WitnessArgs) Hex() string {
	return cell.BytesToHex(w.Serialize())
}

func optionalBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, 4, 4+len(b))
	binary.LittleEndian.PutUint32(out, uint32(len(b)))
	return append(out, b...)
}

// settlementInputTypeWitness announces how many swap and liquidity requests
// the settlement consumed, the counts the on-chain scripts verify.
func settlementInputTypeWitness(swaps, liquidity uint64) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:8], swaps)
	binary.LittleEndian.PutUint64(out[8:16], liquidity)
	return out
}
