package match

import (
	"math/big"

	log "github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
)

// State is one scanned snapshot of the pair: the three singleton cells plus
// every live request, in scan order.
type State struct {
	Info  *cell.Info
	Pool  *cell.Pool
	Float *cell.MatcherFloat

	Sells   []*cell.SwapSellRequest
	Buys    []*cell.SwapBuyRequest
	Adds    []*cell.LiquidityAddRequest
	Removes []*cell.LiquidityRemoveRequest
}

// Result is one settlement round: the mutated singleton cells plus the fate
// of every request. Skip means nothing matched and no transaction should be
// sent.
type Result struct {
	Skip bool

	Info  *cell.Info
	Pool  *cell.Pool
	Float *cell.MatcherFloat

	Sells   []*SwapSellResult
	Buys    []*SwapBuyResult
	Adds    []*LiquidityAddResult
	Removes []*LiquidityRemoveResult
}

// Matcher prices scanned requests against the pool and produces the cell
// mutations of one settlement.
type Matcher struct {
	ps       *cell.PairScripts
	minerFee uint64
}

func NewMatcher(ps *cell.PairScripts, minerFee uint64) *Matcher {
	return &Matcher{ps: ps, minerFee: minerFee}
}

// Match runs one settlement round over the snapshot. Requests are evaluated
// in a fixed order, sells then buys then adds then removes, each against the
// reserves as updated by the requests before it. The inputs are never
// mutated.
func (m *Matcher) Match(st *State) *Result {
	res := &Result{
		Info:  st.Info.WithOrigin(st.Info.Ref),
		Pool:  st.Pool.WithOrigin(st.Pool.Ref),
		Float: st.Float.WithOrigin(st.Float.Ref),
	}

	if st.Info.Empty() {
		m.bootstrap(st, res)
	} else {
		for _, req := range st.Sells {
			res.Sells = append(res.Sells, m.matchSell(res, req))
		}
		for _, req := range st.Buys {
			res.Buys = append(res.Buys, m.matchBuy(res, req))
		}
		for _, req := range st.Adds {
			res.Adds = append(res.Adds, m.matchAdd(res, req))
		}
		for _, req := range st.Removes {
			res.Removes = append(res.Removes, m.matchRemove(res, req))
		}
	}

	swaps, liquidity := res.Counts()
	if swaps+liquidity == 0 {
		res.Skip = true
		return res
	}

	// the mining fee comes out of the float, never below its rent floor
	fee := m.minerFee
	if headroom := res.Float.Capacity - res.Float.MinCapacity(); fee > headroom {
		fee = headroom
	}
	res.Float.Capacity -= fee

	log.WithFields(log.Fields{
		"swaps":     swaps,
		"liquidity": liquidity,
		"fee":       fee,
	}).Debug("settlement round matched")
	return res
}

func (m *Matcher) matchSell(res *Result, req *cell.SwapSellRequest) *SwapSellResult {
	r := &SwapSellResult{Request: req, Status: StatusRejected, SudtIn: req.SudtAmount}
	if req.SudtAmount.Sign() <= 0 {
		r.Reason = "empty escrow"
		return r
	}

	ckbOutBig := SwapOutput(req.SudtAmount, res.Info.SudtReserve, res.Info.CkbReserve)
	if ckbOutBig.Cmp(res.Info.CkbReserve) >= 0 {
		r.Reason = "drains native reserve"
		return r
	}
	ckbOut, err := bigToU64(ckbOutBig, "swap proceeds")
	if err != nil {
		r.Reason = err.Error()
		return r
	}
	if ckbOutBig.Cmp(req.AmountOutMin) < 0 {
		r.Reason = "below amount_out_min"
		return r
	}
	if req.Capacity+ckbOut < cell.MinCkbCellCapacity(req.UserLock)+req.Tips {
		r.Reason = "result cell under rent"
		return r
	}

	res.Info.SudtReserve.Add(res.Info.SudtReserve, req.SudtAmount)
	res.Info.CkbReserve.Sub(res.Info.CkbReserve, ckbOutBig)
	res.Pool.SudtAmount.Add(res.Pool.SudtAmount, req.SudtAmount)
	res.Pool.Capacity -= ckbOut
	res.Float.Capacity += req.Tips

	r.Status = StatusComputed
	r.CkbOut = ckbOut
	return r
}

func (m *Matcher) matchBuy(res *Result, req *cell.SwapBuyRequest) *SwapBuyResult {
	r := &SwapBuyResult{Request: req, Status: StatusRejected}

	minCap := cell.MinTokenCellCapacity(req.UserLock)
	if req.Capacity <= req.Tips+minCap {
		r.Reason = "no native input after rent and tips"
		return r
	}
	ckbIn := req.Capacity - req.Tips - minCap

	sudtOut := SwapOutput(u64ToBig(ckbIn), res.Info.CkbReserve, res.Info.SudtReserve)
	if sudtOut.Cmp(res.Info.SudtReserve) >= 0 {
		r.Reason = "drains token reserve"
		return r
	}
	if sudtOut.Cmp(req.AmountOutMin) < 0 {
		r.Reason = "below amount_out_min"
		return r
	}

	res.Info.CkbReserve.Add(res.Info.CkbReserve, u64ToBig(ckbIn))
	res.Info.SudtReserve.Sub(res.Info.SudtReserve, sudtOut)
	res.Pool.Capacity += ckbIn
	res.Pool.SudtAmount.Sub(res.Pool.SudtAmount, sudtOut)
	res.Float.Capacity += req.Tips

	r.Status = StatusComputed
	r.CkbIn = ckbIn
	r.SudtOut = sudtOut
	return r
}

func (m *Matcher) matchAdd(res *Result, req *cell.LiquidityAddRequest) *LiquidityAddResult {
	r := &LiquidityAddResult{Request: req, Status: StatusRejected, SudtIn: req.SudtAmount}

	userLock := req.UserLock
	minToken := cell.MinTokenCellCapacity(userLock)
	minCkb := cell.MinCkbCellCapacity(userLock)

	// rent for the minted lpt cell and the token change cell comes out of
	// the escrowed capacity before any of it can enter the pool
	if req.Capacity <= req.Tips+2*minToken {
		r.Reason = "no native input after rent and tips"
		return r
	}
	ckbAvailable := req.Capacity - req.Tips - 2*minToken
	ckbAvailableBig := u64ToBig(ckbAvailable)

	sudtNeeded := ProRataCeil(ckbAvailableBig, res.Info.SudtReserve, res.Info.CkbReserve)

	if sudtNeeded.Cmp(req.SudtAmount) < 0 {
		// native side binds, token change goes back
		if sudtNeeded.Cmp(req.SudtMin) < 0 {
			r.Reason = "below sudt_min"
			return r
		}
		lpt := ProRataCeil(res.Info.TotalLiquidity, ckbAvailableBig, res.Info.CkbReserve)

		res.Info.CkbReserve.Add(res.Info.CkbReserve, ckbAvailableBig)
		res.Info.SudtReserve.Add(res.Info.SudtReserve, sudtNeeded)
		res.Info.TotalLiquidity.Add(res.Info.TotalLiquidity, lpt)
		res.Pool.Capacity += ckbAvailable
		res.Pool.SudtAmount.Add(res.Pool.SudtAmount, sudtNeeded)
		res.Float.Capacity += req.Tips

		r.Status = StatusComputed
		r.CkbIn = ckbAvailable
		r.SudtIn = sudtNeeded
		r.LptMinted = lpt
		r.SudtChange = new(big.Int).Sub(req.SudtAmount, sudtNeeded)
		return r
	}

	// token side binds, native change goes back
	ckbNeededBig := ProRataCeil(req.SudtAmount, res.Info.CkbReserve, res.Info.SudtReserve)
	ckbNeeded, err := bigToU64(ckbNeededBig, "liquidity charge")
	if err != nil {
		r.Reason = err.Error()
		return r
	}
	if ckbNeeded < req.CkbMin {
		r.Reason = "below ckb_min"
		return r
	}
	if ckbNeeded > req.Capacity-req.Tips-minToken-minCkb {
		r.Reason = "result cells under rent"
		return r
	}
	lpt := ProRataCeil(res.Info.TotalLiquidity, req.SudtAmount, res.Info.SudtReserve)

	res.Info.CkbReserve.Add(res.Info.CkbReserve, ckbNeededBig)
	res.Info.SudtReserve.Add(res.Info.SudtReserve, req.SudtAmount)
	res.Info.TotalLiquidity.Add(res.Info.TotalLiquidity, lpt)
	res.Pool.Capacity += ckbNeeded
	res.Pool.SudtAmount.Add(res.Pool.SudtAmount, req.SudtAmount)
	res.Float.Capacity += req.Tips

	r.Status = StatusComputed
	r.CkbIn = ckbNeeded
	r.LptMinted = lpt
	r.CkbChange = req.Capacity - req.Tips - ckbNeeded - minToken
	return r
}

func (m *Matcher) matchRemove(res *Result, req *cell.LiquidityRemoveRequest) *LiquidityRemoveResult {
	r := &LiquidityRemoveResult{Request: req, Status: StatusRejected, LptBurned: req.LptAmount}

	if req.LptAmount.Sign() <= 0 || req.LptAmount.Cmp(res.Info.TotalLiquidity) > 0 {
		r.Reason = "burn exceeds total liquidity"
		return r
	}

	sudtOut := ProRata(res.Info.SudtReserve, req.LptAmount, res.Info.TotalLiquidity)
	ckbOutBig := ProRata(res.Info.CkbReserve, req.LptAmount, res.Info.TotalLiquidity)
	if sudtOut.Cmp(res.Info.SudtReserve) >= 0 || ckbOutBig.Cmp(res.Info.CkbReserve) >= 0 {
		r.Reason = "drains reserve"
		return r
	}
	ckbOut, err := bigToU64(ckbOutBig, "withdrawal")
	if err != nil {
		r.Reason = err.Error()
		return r
	}
	if sudtOut.Cmp(req.SudtMin) < 0 {
		r.Reason = "below sudt_min"
		return r
	}
	if ckbOut < req.CkbMin {
		r.Reason = "below ckb_min"
		return r
	}
	userLock := req.UserLock
	if req.Capacity+ckbOut < req.Tips+cell.MinTokenCellCapacity(userLock)+cell.MinCkbCellCapacity(userLock) {
		r.Reason = "result cells under rent"
		return r
	}

	res.Info.SudtReserve.Sub(res.Info.SudtReserve, sudtOut)
	res.Info.CkbReserve.Sub(res.Info.CkbReserve, ckbOutBig)
	res.Info.TotalLiquidity.Sub(res.Info.TotalLiquidity, req.LptAmount)
	res.Pool.SudtAmount.Sub(res.Pool.SudtAmount, sudtOut)
	res.Pool.Capacity -= ckbOut
	res.Float.Capacity += req.Tips

	r.Status = StatusComputed
	r.SudtOut = sudtOut
	r.CkbOut = ckbOut
	return r
}

// bootstrap seeds an empty pool from the first add request. Everything else
// waits for the next round.
func (m *Matcher) bootstrap(st *State, res *Result) {
	for _, req := range st.Sells {
		res.Sells = append(res.Sells, &SwapSellResult{Request: req, Status: StatusPending, SudtIn: req.SudtAmount})
	}
	for _, req := range st.Buys {
		res.Buys = append(res.Buys, &SwapBuyResult{Request: req, Status: StatusPending})
	}
	for _, req := range st.Removes {
		res.Removes = append(res.Removes, &LiquidityRemoveResult{Request: req, Status: StatusPending, LptBurned: req.LptAmount})
	}

	for i, req := range st.Adds {
		r := &LiquidityAddResult{Request: req, Status: StatusPending, SudtIn: req.SudtAmount}
		res.Adds = append(res.Adds, r)
		if i > 0 {
			continue
		}

		minToken := cell.MinTokenCellCapacity(req.UserLock)
		if req.Capacity <= req.Tips+minToken {
			r.Status = StatusRejected
			r.Reason = "no native input after rent and tips"
			continue
		}
		ckbAvailable := req.Capacity - req.Tips - minToken
		lpt := Isqrt(new(big.Int).Mul(u64ToBig(ckbAvailable), req.SudtAmount))
		if lpt.Sign() == 0 {
			r.Status = StatusRejected
			r.Reason = "empty genesis deposit"
			continue
		}

		res.Info.CkbReserve = u64ToBig(ckbAvailable)
		res.Info.SudtReserve = new(big.Int).Set(req.SudtAmount)
		res.Info.TotalLiquidity = lpt
		res.Pool.Capacity += ckbAvailable
		res.Pool.SudtAmount.Add(res.Pool.SudtAmount, req.SudtAmount)
		res.Float.Capacity += req.Tips

		r.Status = StatusComputed
		r.Bootstrap = true
		r.CkbIn = ckbAvailable
		r.LptMinted = lpt
	}
}

// Counts returns the matched swap and liquidity request counts, the numbers
// the settlement witness announces.
func (r *Result) Counts() (swaps, liquidity uint64) {
	for _, s := range r.Sells {
		if s.Status == StatusComputed {
			swaps++
		}
	}
	for _, b := range r.Buys {
		if b.Status == StatusComputed {
			swaps++
		}
	}
	for _, a := range r.Adds {
		if a.Status == StatusComputed {
			liquidity++
		}
	}
	for _, rm := range r.Removes {
		if rm.Status == StatusComputed {
			liquidity++
		}
	}
	return swaps, liquidity
}

// ConsumedRefs lists the outpoint keys of every matched request, in the
// settlement's input order.
func (r *Result) ConsumedRefs() []string {
	var refs []string
	for _, s := range r.Sells {
		if s.Status == StatusComputed {
			refs = append(refs, s.Request.Ref.Key())
		}
	}
	for _, b := range r.Buys {
		if b.Status == StatusComputed {
			refs = append(refs, b.Request.Ref.Key())
		}
	}
	for _, a := range r.Adds {
		if a.Status == StatusComputed {
			refs = append(refs, a.Request.Ref.Key())
		}
	}
	for _, rm := range r.Removes {
		if rm.Status == StatusComputed {
			refs = append(refs, rm.Request.Ref.Key())
		}
	}
	return refs
}

// ConsumedInputs lists the outpoints of every matched request, in the
// settlement's input order.
func (r *Result) ConsumedInputs() []cell.OutPointRef {
	var refs []cell.OutPointRef
	for _, s := range r.Sells {
		if s.Status == StatusComputed {
			refs = append(refs, s.Request.Ref)
		}
	}
	for _, b := range r.Buys {
		if b.Status == StatusComputed {
			refs = append(refs, b.Request.Ref)
		}
	}
	for _, a := range r.Adds {
		if a.Status == StatusComputed {
			refs = append(refs, a.Request.Ref)
		}
	}
	for _, rm := range r.Removes {
		if rm.Status == StatusComputed {
			refs = append(refs, rm.Request.Ref)
		}
	}
	return refs
}

// UserOutputs renders the result cells every matched request pays out, in
// the settlement's output order.
func (r *Result) UserOutputs(ps *cell.PairScripts) ([]cell.OutputCell, error) {
	var outs []cell.OutputCell
	for _, s := range r.Sells {
		o, err := s.Outputs(ps)
		if err != nil {
			return nil, err
		}
		outs = append(outs, o...)
	}
	for _, b := range r.Buys {
		o, err := b.Outputs(ps)
		if err != nil {
			return nil, err
		}
		outs = append(outs, o...)
	}
	for _, a := range r.Adds {
		o, err := a.Outputs(ps)
		if err != nil {
			return nil, err
		}
		outs = append(outs, o...)
	}
	for _, rm := range r.Removes {
		o, err := rm.Outputs(ps)
		if err != nil {
			return nil, err
		}
		outs = append(outs, o...)
	}
	return outs, nil
}
