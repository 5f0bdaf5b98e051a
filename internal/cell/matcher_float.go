package cell

import "github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"

// MatcherFloat is the matcher's own escrowed native-token balance: the sink
// for collected tips and the source of per-settlement mining fees. It carries
// no data and no type script.
type MatcherFloat struct {
	Capacity uint64

	Ref OutPointRef
}

// ValidateMatcherFloat checks the cell shape: empty data, no type script,
// the matcher's own lock.
func ValidateMatcherFloat(c *RawCell, ps *PairScripts) bool {
	if len(c.Data) != 0 || c.Type != nil {
		return false
	}
	if c.Capacity < constants.MatcherFloatFixedCapacity {
		return false
	}
	want, err := ps.MatcherLock.Hash()
	if err != nil {
		return false
	}
	if lh, err := c.LockHash(); err != nil || lh != want {
		return false
	}
	return !c.OutPoint.IsZero()
}

// DecodeMatcherFloat parses the matcher float cell.
func DecodeMatcherFloat(c *RawCell) (*MatcherFloat, error) {
	if len(c.Data) != 0 {
		return nil, decodeErrf("matcher float", "unexpected data of %d bytes", len(c.Data))
	}
	return &MatcherFloat{Capacity: c.Capacity, Ref: c.OutPoint}, nil
}

// WithOrigin returns a copy bound to a new cell reference.
func (m *MatcherFloat) WithOrigin(ref OutPointRef) *MatcherFloat {
	return &MatcherFloat{Capacity: m.Capacity, Ref: ref}
}

// MinCapacity is the float's own rent floor; the mining-fee deduction never
// drives the capacity below it.
func (m *MatcherFloat) MinCapacity() uint64 {
	return constants.MatcherFloatFixedCapacity
}

// ToOutput renders the mutated value back into a transaction output.
func (m *MatcherFloat) ToOutput(ps *PairScripts) (OutputCell, error) {
	return OutputCell{
		Capacity: m.Capacity,
		Lock:     ps.MatcherLock,
		Type:     nil,
		Data:     nil,
	}, nil
}
