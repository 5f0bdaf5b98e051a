package cell

import "fmt"

// PairScripts is the fixed script configuration of one trading pair: the
// scripts the singleton cells carry and the lock scripts the request cells
// must match. All hashes are precomputed at construction.
type PairScripts struct {
	InfoType      Script
	InfoLock      Script
	SudtType      Script
	LptType       Script
	SwapLock      Script
	LiquidityLock Script
	MatcherLock   Script

	InfoTypeHash string
	InfoLockHash string
	SudtTypeHash string
	LptTypeHash  string
}

// NewPairScripts computes the pair's script hashes once up front.
func NewPairScripts(infoType, infoLock, sudtType, lptType, swapLock, liquidityLock, matcherLock Script) (*PairScripts, error) {
	p := &PairScripts{
		InfoType:      infoType,
		InfoLock:      infoLock,
		SudtType:      sudtType,
		LptType:       lptType,
		SwapLock:      swapLock,
		LiquidityLock: liquidityLock,
		MatcherLock:   matcherLock,
	}
	var err error
	if p.InfoTypeHash, err = infoType.Hash(); err != nil {
		return nil, fmt.Errorf("info type script: %w", err)
	}
	if p.InfoLockHash, err = infoLock.Hash(); err != nil {
		return nil, fmt.Errorf("info lock script: %w", err)
	}
	if p.SudtTypeHash, err = sudtType.Hash(); err != nil {
		return nil, fmt.Errorf("sudt type script: %w", err)
	}
	if p.LptTypeHash, err = lptType.Hash(); err != nil {
		return nil, fmt.Errorf("lpt type script: %w", err)
	}
	return p, nil
}
