package cell

import "fmt"

// OutPointRef identifies one cell: the transaction that created it and the
// output index within that transaction. It doubles as the dedup key for
// "has this request already been consumed".
type OutPointRef struct {
	TxHash string `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// Key renders the reference in the "{txHash}-{index}" form used by the deal
// ledger and the monitor endpoint.
func (r OutPointRef) Key() string {
	return fmt.Sprintf("%s-0x%x", r.TxHash, r.Index)
}

func (r OutPointRef) String() string { return r.Key() }

// IsZero reports an unset reference.
func (r OutPointRef) IsZero() bool { return r.TxHash == "" }

// RawCell is a scanned on-chain cell before decoding: capacity, scripts and
// opaque data, bound to its outpoint.
type RawCell struct {
	Capacity uint64
	Lock     Script
	Type     *Script
	Data     []byte
	OutPoint OutPointRef
}

// LockHash returns the cell's lock script hash.
func (c *RawCell) LockHash() (string, error) { return c.Lock.Hash() }

// TypeHash returns the cell's type script hash, or "" when the cell has no
// type script.
func (c *RawCell) TypeHash() (string, error) {
	if c.Type == nil {
		return "", nil
	}
	return c.Type.Hash()
}

func (c *RawCell) lockArgs(kind string, wantLen int) ([]byte, error) {
	args, err := HexToBytes(c.Lock.Args)
	if err != nil {
		return nil, decodeErrf(kind, "lock args not hex: %v", err)
	}
	if len(args) != wantLen {
		return nil, decodeErrf(kind, "lock args length %d, want %d", len(args), wantLen)
	}
	return args, nil
}
