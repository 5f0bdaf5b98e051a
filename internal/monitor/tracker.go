package monitor

import (
	"sync"
	"time"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
)

// Request states the tracker reports.
const (
	StateLive     = "live"     // scanned, waiting to match
	StateRejected = "rejected" // evaluated, conditions not met
	StateMatched  = "matched"  // consumed by an in-flight settlement
)

// RequestState is the externally visible view of one request cell.
type RequestState struct {
	OutPoint  string    `json:"out_point"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	DealTxID  string    `json:"deal_tx_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker keeps the latest per-request state across settlement cycles, keyed
// by outpoint. It only ever reflects the most recent scan.
type Tracker struct {
	mu       sync.RWMutex
	requests map[string]*RequestState
}

func NewTracker() *Tracker {
	return &Tracker{requests: make(map[string]*RequestState)}
}

// BeginCycle drops every request that is no longer live on chain.
func (t *Tracker) BeginCycle(liveKeys map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.requests {
		if !liveKeys[key] {
			delete(t.requests, key)
		}
	}
}

// SetLive records a scanned request waiting for a match.
func (t *Tracker) SetLive(ref cell.OutPointRef, kind string) {
	t.set(&RequestState{OutPoint: ref.Key(), Kind: kind, Status: StateLive})
}

// SetRejected records an evaluated request that did not meet its conditions.
func (t *Tracker) SetRejected(ref cell.OutPointRef, kind, reason string) {
	t.set(&RequestState{OutPoint: ref.Key(), Kind: kind, Status: StateRejected, Reason: reason})
}

// SetMatched records a request consumed by a sent settlement.
func (t *Tracker) SetMatched(ref cell.OutPointRef, kind, dealTxID string) {
	t.set(&RequestState{OutPoint: ref.Key(), Kind: kind, Status: StateMatched, DealTxID: dealTxID})
}

func (t *Tracker) set(state *RequestState) {
	state.UpdatedAt = time.Now().UTC()
	t.mu.Lock()
	t.requests[state.OutPoint] = state
	t.mu.Unlock()
}

// Get returns the state for one outpoint key.
func (t *Tracker) Get(key string) (*RequestState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.requests[key]
	if !ok {
		return nil, false
	}
	cp := *state
	return &cp, true
}

// All returns every tracked request.
func (t *Tracker) All() []*RequestState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*RequestState, 0, len(t.requests))
	for _, state := range t.requests {
		cp := *state
		out = append(out, &cp)
	}
	return out
}
