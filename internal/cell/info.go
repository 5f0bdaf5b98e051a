package cell

import (
	"math/big"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
)

// Info is the authoritative AMM state of the pair.
//
// cell data, 80 bytes:
//
//	ckb_reserve      u128 le  [0:16]
//	sudt_reserve     u128 le  [16:32]
//	total_liquidity  u128 le  [32:48]
//	lpt_type_hash    32 bytes [48:80], byte-reversed on chain
type Info struct {
	Capacity       uint64
	CkbReserve     *big.Int
	SudtReserve    *big.Int
	TotalLiquidity *big.Int
	LptTypeHash    string

	Ref OutPointRef
}

// ValidateInfo checks the cell against the pair's fixed configuration:
// capacity bucket, type-script hash, lock-script hash and data length.
func ValidateInfo(c *RawCell, ps *PairScripts) bool {
	if c.Capacity != constants.InfoFixedCapacity {
		return false
	}
	if len(c.Data) != constants.InfoDataLen {
		return false
	}
	if hash := BytesToHex(reverseBytes(c.Data[48:80])); hash != ps.LptTypeHash {
		return false
	}
	if th, err := c.TypeHash(); err != nil || th != ps.InfoTypeHash {
		return false
	}
	if lh, err := c.LockHash(); err != nil || lh != ps.InfoLockHash {
		return false
	}
	return !c.OutPoint.IsZero()
}

// DecodeInfo parses the Info cell data.
func DecodeInfo(c *RawCell) (*Info, error) {
	if len(c.Data) != constants.InfoDataLen {
		return nil, decodeErrf("info", "data length %d, want %d", len(c.Data), constants.InfoDataLen)
	}
	return &Info{
		Capacity:       c.Capacity,
		CkbReserve:     readUint128LE(c.Data[0:16]),
		SudtReserve:    readUint128LE(c.Data[16:32]),
		TotalLiquidity: readUint128LE(c.Data[32:48]),
		LptTypeHash:    BytesToHex(reverseBytes(c.Data[48:80])),
		Ref:            c.OutPoint,
	}, nil
}

// EncodeData renders the cell data; DecodeInfo(EncodeData()) round-trips.
func (i *Info) EncodeData() ([]byte, error) {
	out := make([]byte, constants.InfoDataLen)
	if err := putUint128LE(out[0:16], i.CkbReserve); err != nil {
		return nil, err
	}
	if err := putUint128LE(out[16:32], i.SudtReserve); err != nil {
		return nil, err
	}
	if err := putUint128LE(out[32:48], i.TotalLiquidity); err != nil {
		return nil, err
	}
	hash, err := HexToBytes(i.LptTypeHash)
	if err != nil || len(hash) != 32 {
		return nil, decodeErrf("info", "lpt type hash %q is not 32 bytes", i.LptTypeHash)
	}
	copy(out[48:80], reverseBytes(hash))
	return out, nil
}

// WithOrigin returns a deep copy of the value bound to a new cell reference,
// used when reconstructing pool state from a persisted deal snapshot.
func (i *Info) WithOrigin(ref OutPointRef) *Info {
	return &Info{
		Capacity:       i.Capacity,
		CkbReserve:     new(big.Int).Set(i.CkbReserve),
		SudtReserve:    new(big.Int).Set(i.SudtReserve),
		TotalLiquidity: new(big.Int).Set(i.TotalLiquidity),
		LptTypeHash:    i.LptTypeHash,
		Ref:            ref,
	}
}

// Empty reports a pool with no reserves on at least one side, the condition
// that routes the cycle to the bootstrap path.
func (i *Info) Empty() bool {
	return i.CkbReserve.Sign() == 0 || i.SudtReserve.Sign() == 0
}

// ToOutput renders the mutated value back into a transaction output.
func (i *Info) ToOutput(ps *PairScripts) (OutputCell, error) {
	data, err := i.EncodeData()
	if err != nil {
		return OutputCell{}, err
	}
	t := ps.InfoType
	return OutputCell{
		Capacity: i.Capacity,
		Lock:     ps.InfoLock,
		Type:     &t,
		Data:     data,
	}, nil
}
