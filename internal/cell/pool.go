package cell

import (
	"math/big"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
)

// Pool is the reserve mirror cell: it physically holds the pair's escrowed
// native token in its capacity and the alt token in its data. It is kept
// numerically consistent with Info's reserves plus cell-rent overhead.
//
// cell data, 16 bytes: sudt_amount u128 le
type Pool struct {
	Capacity   uint64
	SudtAmount *big.Int

	Ref OutPointRef
}

// ValidatePool checks the cell against the pair's fixed configuration.
func ValidatePool(c *RawCell, ps *PairScripts) bool {
	if c.Capacity < constants.PoolBaseCapacity {
		return false
	}
	if len(c.Data) != constants.PoolDataLen {
		return false
	}
	if th, err := c.TypeHash(); err != nil || th != ps.SudtTypeHash {
		return false
	}
	if lh, err := c.LockHash(); err != nil || lh != ps.InfoLockHash {
		return false
	}
	return !c.OutPoint.IsZero()
}

// DecodePool parses the Pool cell.
func DecodePool(c *RawCell) (*Pool, error) {
	if len(c.Data) != constants.PoolDataLen {
		return nil, decodeErrf("pool", "data length %d, want %d", len(c.Data), constants.PoolDataLen)
	}
	return &Pool{
		Capacity:   c.Capacity,
		SudtAmount: readUint128LE(c.Data),
		Ref:        c.OutPoint,
	}, nil
}

// EncodeData renders the cell data.
func (p *Pool) EncodeData() ([]byte, error) {
	out := make([]byte, constants.PoolDataLen)
	if err := putUint128LE(out, p.SudtAmount); err != nil {
		return nil, err
	}
	return out, nil
}

// WithOrigin returns a deep copy bound to a new cell reference.
func (p *Pool) WithOrigin(ref OutPointRef) *Pool {
	return &Pool{
		Capacity:   p.Capacity,
		SudtAmount: new(big.Int).Set(p.SudtAmount),
		Ref:        ref,
	}
}

// ToOutput renders the mutated value back into a transaction output.
func (p *Pool) ToOutput(ps *PairScripts) (OutputCell, error) {
	data, err := p.EncodeData()
	if err != nil {
		return OutputCell{}, err
	}
	t := ps.SudtType
	return OutputCell{
		Capacity: p.Capacity,
		Lock:     ps.InfoLock,
		Type:     &t,
		Data:     data,
	}, nil
}
