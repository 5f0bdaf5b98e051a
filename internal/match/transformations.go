package match

import (
	"math/big"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
)

// Status tags one request's fate within a settlement round.
type Status int

const (
	// StatusPending marks a request the round never evaluated, such as
	// swaps queued behind an uninitialized pool.
	StatusPending Status = iota
	// StatusRejected marks a request evaluated and skipped; it stays live
	// on chain for a later round.
	StatusRejected
	// StatusComputed marks a request matched into the settlement.
	StatusComputed
)

func (s Status) String() string {
	switch s {
	case StatusRejected:
		return "rejected"
	case StatusComputed:
		return "computed"
	}
	return "pending"
}

// SwapBuyResult is the outcome of pricing one buy request.
type SwapBuyResult struct {
	Request *cell.SwapBuyRequest
	Status  Status
	Reason  string
	CkbIn   uint64
	SudtOut *big.Int
}

// Outputs renders the bought-token cell the settlement pays the user.
func (r *SwapBuyResult) Outputs(ps *cell.PairScripts) ([]cell.OutputCell, error) {
	if r.Status != StatusComputed {
		return nil, nil
	}
	out, err := cell.NewSudtOutput(cell.MinTokenCellCapacity(r.Request.UserLock), r.SudtOut, r.Request.UserLock, ps)
	if err != nil {
		return nil, err
	}
	return []cell.OutputCell{out}, nil
}

// SwapSellResult is the outcome of pricing one sell request.
type SwapSellResult struct {
	Request *cell.SwapSellRequest
	Status  Status
	Reason  string
	SudtIn  *big.Int
	CkbOut  uint64
}

// Outputs renders the native-token cell the settlement pays the user: the
// request's own capacity grown by the proceeds, minus tips.
func (r *SwapSellResult) Outputs(ps *cell.PairScripts) ([]cell.OutputCell, error) {
	if r.Status != StatusComputed {
		return nil, nil
	}
	capacity := r.Request.Capacity + r.CkbOut - r.Request.Tips
	return []cell.OutputCell{cell.NewCkbOutput(capacity, r.Request.UserLock)}, nil
}

// LiquidityAddResult is the outcome of matching one add request. Exactly one
// of SudtChange and CkbChange is meaningful, depending on which escrowed
// asset bound the deposit.
type LiquidityAddResult struct {
	Request   *cell.LiquidityAddRequest
	Status    Status
	Reason    string
	Bootstrap bool

	CkbIn     uint64
	SudtIn    *big.Int
	LptMinted *big.Int

	// change returned to the user from the non-binding side
	SudtChange *big.Int
	CkbChange  uint64
}

// Outputs renders the minted liquidity-token cell plus the change cell.
func (r *LiquidityAddResult) Outputs(ps *cell.PairScripts) ([]cell.OutputCell, error) {
	if r.Status != StatusComputed {
		return nil, nil
	}
	userLock := r.Request.UserLock
	lpt, err := cell.NewLptOutput(cell.MinTokenCellCapacity(userLock), r.LptMinted, userLock, ps)
	if err != nil {
		return nil, err
	}
	if r.Bootstrap {
		return []cell.OutputCell{lpt}, nil
	}
	if r.SudtChange != nil {
		change, err := cell.NewSudtOutput(cell.MinTokenCellCapacity(userLock), r.SudtChange, userLock, ps)
		if err != nil {
			return nil, err
		}
		return []cell.OutputCell{lpt, change}, nil
	}
	return []cell.OutputCell{lpt, cell.NewCkbOutput(r.CkbChange, userLock)}, nil
}

// LiquidityRemoveResult is the outcome of matching one remove request.
type LiquidityRemoveResult struct {
	Request *cell.LiquidityRemoveRequest
	Status  Status
	Reason  string

	LptBurned *big.Int
	SudtOut   *big.Int
	CkbOut    uint64
}

// Outputs renders the withdrawn token cell and the withdrawn native cell.
func (r *LiquidityRemoveResult) Outputs(ps *cell.PairScripts) ([]cell.OutputCell, error) {
	if r.Status != StatusComputed {
		return nil, nil
	}
	userLock := r.Request.UserLock
	minSudt := cell.MinTokenCellCapacity(userLock)
	sudt, err := cell.NewSudtOutput(minSudt, r.SudtOut, userLock, ps)
	if err != nil {
		return nil, err
	}
	capacity := r.Request.Capacity + r.CkbOut - r.Request.Tips - minSudt
	return []cell.OutputCell{sudt, cell.NewCkbOutput(capacity, userLock)}, nil
}
