package cell

import (
	"math/big"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
)

// OutputCell is a fully rendered transaction output: capacity, scripts and
// data, ready for the composer.
type OutputCell struct {
	Capacity uint64
	Lock     Script
	Type     *Script
	Data     []byte
}

// MinCkbCellCapacity is the smallest capacity a bare native-token cell locked
// by lock can carry: the fixed base rent plus the lock script's marginal
// storage cost of 33 + len(args) bytes.
func MinCkbCellCapacity(lock Script) uint64 {
	return uint64(constants.CkbCellBaseBytes+constants.ScriptFixedBytes+lock.ArgsLen()) * constants.ShannonPerByte
}

// MinTokenCellCapacity is the smallest capacity a token-carrying cell locked
// by lock can carry; token cells additionally pay rent for the 16-byte amount
// and the 65-byte type script.
func MinTokenCellCapacity(lock Script) uint64 {
	return uint64(constants.TokenCellBaseBytes+constants.ScriptFixedBytes+lock.ArgsLen()) * constants.ShannonPerByte
}

// NewSudtOutput builds an alt-token result cell at its minimum capacity
// unless a larger capacity is given.
func NewSudtOutput(capacity uint64, amount *big.Int, lock Script, ps *PairScripts) (OutputCell, error) {
	return newTokenOutput(capacity, amount, lock, ps.SudtType)
}

// NewLptOutput builds a liquidity-token result cell.
func NewLptOutput(capacity uint64, amount *big.Int, lock Script, ps *PairScripts) (OutputCell, error) {
	return newTokenOutput(capacity, amount, lock, ps.LptType)
}

func newTokenOutput(capacity uint64, amount *big.Int, lock Script, typ Script) (OutputCell, error) {
	data := make([]byte, constants.AmountDataLen)
	if err := putUint128LE(data, amount); err != nil {
		return OutputCell{}, err
	}
	t := typ
	return OutputCell{
		Capacity: capacity,
		Lock:     lock,
		Type:     &t,
		Data:     data,
	}, nil
}

// NewCkbOutput builds a bare native-token result cell.
func NewCkbOutput(capacity uint64, lock Script) OutputCell {
	return OutputCell{Capacity: capacity, Lock: lock}
}

// ToRawCell reinterprets a rendered output as a scanned cell, for round-trip
// checks and for reconstructing state from persisted snapshots.
func (o OutputCell) ToRawCell(ref OutPointRef) *RawCell {
	return &RawCell{
		Capacity: o.Capacity,
		Lock:     o.Lock,
		Type:     o.Type,
		Data:     o.Data,
		OutPoint: ref,
	}
}
