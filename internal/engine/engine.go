package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/ledger"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/match"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/monitor"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/scanner"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/tx"
)

// ChainClient is the slice of the chain client the engine needs.
type ChainClient interface {
	SendTransaction(ctx context.Context, t *tx.Transaction) (string, error)
	GetTxStatuses(ctx context.Context, txHashes []string) (map[string]string, error)
}

// Snapshotter produces one consistent view of the pair.
type Snapshotter interface {
	Scan(ctx context.Context) (*scanner.Snapshot, error)
}

// Archiver receives settled deals for long-term analytics. Archive failures
// never fail a cycle.
type Archiver interface {
	ArchiveDeal(ctx context.Context, rec *ledger.DealRecord) error
}

// Engine runs the settlement loop: scan the pair, reconcile the in-flight
// deal chain against what the chain actually holds, match the live requests
// against the freshest known pool state, and send the next settlement.
type Engine struct {
	ps       *cell.PairScripts
	scanner  Snapshotter
	matcher  *match.Matcher
	composer *tx.Composer
	chain    ChainClient
	store    ledger.Store
	tracker  *monitor.Tracker
	archiver Archiver
	logger   *logrus.Logger

	running atomic.Bool
}

func New(ps *cell.PairScripts, sc Snapshotter, m *match.Matcher, c *tx.Composer,
	chain ChainClient, store ledger.Store, tracker *monitor.Tracker,
	archiver Archiver, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		ps:       ps,
		scanner:  sc,
		matcher:  m,
		composer: c,
		chain:    chain,
		store:    store,
		tracker:  tracker,
		archiver: archiver,
		logger:   logger,
	}
}

// RunCycle executes one settlement cycle. Overlapping invocations are
// dropped, not queued: a cycle that arrives while another runs is a no-op.
func (e *Engine) RunCycle(ctx context.Context) (err error) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Debug("cycle still running, skipping tick")
		return nil
	}
	defer e.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			e.logger.WithField("panic", r).Error("settlement cycle panicked")
		}
	}()

	snap, err := e.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if e.tracker != nil {
		e.tracker.BeginCycle(snap.Requests)
	}

	if err := e.reconcile(ctx, snap); err != nil {
		return err
	}

	base, excluded, err := e.replaySent(ctx, snap)
	if err != nil {
		return err
	}

	state := buildState(snap, base, excluded)
	res := e.matcher.Match(state)
	e.trackResult(res)
	if res.Skip {
		e.logger.Debug("nothing matched this cycle")
		return nil
	}

	return e.settle(ctx, res, base.Info.Ref.TxHash)
}

// reconcile decides whose settlement chain the scanned info cell belongs to.
// If it is one of ours, every ancestor up the chain is confirmed. If a
// competitor produced it, every in-flight deal is checked against the node
// and the losers are cut off.
func (e *Engine) reconcile(ctx context.Context, snap *scanner.Snapshot) error {
	rec, err := e.store.GetByTxID(ctx, snap.Info.Ref.TxHash)
	switch {
	case err == nil:
		return ledger.MarkAncestryCommitted(ctx, e.store, rec.TxID)
	case errors.Is(err, ledger.ErrNotFound):
		return e.concede(ctx)
	default:
		return fmt.Errorf("look up scanned info deal: %w", err)
	}
}

func (e *Engine) concede(ctx context.Context) error {
	sent, err := e.store.AllSent(ctx)
	if err != nil {
		return fmt.Errorf("list sent deals: %w", err)
	}
	if len(sent) == 0 {
		return nil
	}

	txIDs := make([]string, len(sent))
	for i, rec := range sent {
		txIDs[i] = rec.TxID
	}
	statuses, err := e.chain.GetTxStatuses(ctx, txIDs)
	if err != nil {
		return fmt.Errorf("query sent deal statuses: %w", err)
	}

	for _, rec := range sent {
		status := statuses[rec.TxID]
		var next ledger.Status
		switch status {
		case "committed":
			next = ledger.StatusCommitted
		case "rejected":
			next = ledger.StatusCutOff
		default:
			// pending, proposed or not yet broadcast: still in flight
			continue
		}
		if err := e.store.UpdateStatus(ctx, rec.TxID, next); err != nil {
			return err
		}
		e.logger.WithFields(logrus.Fields{
			"tx":     rec.TxID,
			"status": status,
			"deal":   next,
		}).Info("sent deal resolved against node")
	}
	return nil
}

// baseState is the freshest pool state the next settlement builds on: either
// the scanned cells or the outputs of the newest replayed deal.
type baseState struct {
	Info  *cell.Info
	Pool  *cell.Pool
	Float *cell.MatcherFloat
}

// replaySent walks the surviving in-flight deals oldest first. A deal that
// still chains off the scanned info cell and whose consumed requests are all
// still live is re-broadcast verbatim and its outputs become the new base; a
// deal that lost either anchor or inputs is stale, and everything chained
// after it falls with it.
func (e *Engine) replaySent(ctx context.Context, snap *scanner.Snapshot) (*baseState, map[string]bool, error) {
	base := &baseState{Info: snap.Info, Pool: snap.Pool, Float: snap.Float}
	excluded := make(map[string]bool)

	sent, err := e.store.AllSent(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list sent deals: %w", err)
	}

	cascade := false
	for _, rec := range sent {
		if cascade || rec.ParentTxID != base.Info.Ref.TxHash || !e.dealStillValid(snap, rec) {
			cascade = true
			if err := e.store.UpdateStatus(ctx, rec.TxID, ledger.StatusCutOff); err != nil {
				return nil, nil, err
			}
			e.logger.WithField("tx", rec.TxID).Info("cut off stale deal")
			continue
		}

		e.rebroadcast(ctx, rec)

		for _, key := range rec.ConsumedRefs {
			excluded[key] = true
		}
		if base.Info, err = rec.InfoState(); err != nil {
			return nil, nil, err
		}
		if base.Pool, err = rec.PoolState(); err != nil {
			return nil, nil, err
		}
		if base.Float, err = rec.FloatState(); err != nil {
			return nil, nil, err
		}
	}
	return base, excluded, nil
}

func (e *Engine) dealStillValid(snap *scanner.Snapshot, rec *ledger.DealRecord) bool {
	for _, key := range rec.ConsumedRefs {
		if !snap.HasRequest(key) {
			return false
		}
	}
	return true
}

// rebroadcast resends a still-valid in-flight deal. A transient send failure
// leaves it sent; the next cycle tries again.
func (e *Engine) rebroadcast(ctx context.Context, rec *ledger.DealRecord) {
	var t tx.Transaction
	if err := json.Unmarshal(rec.SerializedTx, &t); err != nil {
		e.logger.WithError(err).WithField("tx", rec.TxID).Error("stored deal does not deserialize")
		return
	}
	if _, err := e.chain.SendTransaction(ctx, &t); err != nil {
		e.logger.WithError(err).WithField("tx", rec.TxID).Warn("re-broadcast failed, will retry next cycle")
		return
	}
	e.logger.WithField("tx", rec.TxID).Debug("re-broadcast in-flight deal")
}

func buildState(snap *scanner.Snapshot, base *baseState, excluded map[string]bool) *match.State {
	st := &match.State{Info: base.Info, Pool: base.Pool, Float: base.Float}
	for _, r := range snap.Sells {
		if !excluded[r.Ref.Key()] {
			st.Sells = append(st.Sells, r)
		}
	}
	for _, r := range snap.Buys {
		if !excluded[r.Ref.Key()] {
			st.Buys = append(st.Buys, r)
		}
	}
	for _, r := range snap.Adds {
		if !excluded[r.Ref.Key()] {
			st.Adds = append(st.Adds, r)
		}
	}
	for _, r := range snap.Removes {
		if !excluded[r.Ref.Key()] {
			st.Removes = append(st.Removes, r)
		}
	}
	return st
}

// settle composes, persists and broadcasts the new settlement. The record is
// saved before the send so a crash in between is replayed, never lost.
func (e *Engine) settle(ctx context.Context, res *match.Result, parentTxID string) error {
	t, txID, err := e.composer.Compose(res)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	serialized, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("serialize settlement: %w", err)
	}

	infoData, err := res.Info.EncodeData()
	if err != nil {
		return err
	}
	poolData, err := res.Pool.EncodeData()
	if err != nil {
		return err
	}

	rec := &ledger.DealRecord{
		TxID:         txID,
		ParentTxID:   parentTxID,
		Info:         ledger.CellSnapshot{Capacity: res.Info.Capacity, Data: cell.BytesToHex(infoData)},
		Pool:         ledger.CellSnapshot{Capacity: res.Pool.Capacity, Data: cell.BytesToHex(poolData)},
		Float:        ledger.CellSnapshot{Capacity: res.Float.Capacity},
		SerializedTx: serialized,
		ConsumedRefs: res.ConsumedRefs(),
		Status:       ledger.StatusSent,
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save deal: %w", err)
	}

	if _, err := e.chain.SendTransaction(ctx, t); err != nil {
		e.logger.WithError(err).WithField("tx", txID).Warn("broadcast failed, deal stays in flight")
	} else {
		e.logger.WithFields(logrus.Fields{
			"tx":       txID,
			"parent":   parentTxID,
			"consumed": len(rec.ConsumedRefs),
		}).Info("settlement sent")
	}

	if e.tracker != nil {
		e.trackSettlement(res, txID)
	}
	if e.archiver != nil {
		if err := e.archiver.ArchiveDeal(ctx, rec); err != nil {
			e.logger.WithError(err).Warn("deal archive insert failed")
		}
	}
	return nil
}

func (e *Engine) trackResult(res *match.Result) {
	if e.tracker == nil {
		return
	}
	for _, r := range res.Sells {
		e.trackRequest(r.Request.Ref, "swap_sell", r.Status, r.Reason)
	}
	for _, r := range res.Buys {
		e.trackRequest(r.Request.Ref, "swap_buy", r.Status, r.Reason)
	}
	for _, r := range res.Adds {
		e.trackRequest(r.Request.Ref, "liquidity_add", r.Status, r.Reason)
	}
	for _, r := range res.Removes {
		e.trackRequest(r.Request.Ref, "liquidity_remove", r.Status, r.Reason)
	}
}

func (e *Engine) trackRequest(ref cell.OutPointRef, kind string, status match.Status, reason string) {
	switch status {
	case match.StatusRejected:
		e.tracker.SetRejected(ref, kind, reason)
	default:
		e.tracker.SetLive(ref, kind)
	}
}

func (e *Engine) trackSettlement(res *match.Result, txID string) {
	for _, r := range res.Sells {
		if r.Status == match.StatusComputed {
			e.tracker.SetMatched(r.Request.Ref, "swap_sell", txID)
		}
	}
	for _, r := range res.Buys {
		if r.Status == match.StatusComputed {
			e.tracker.SetMatched(r.Request.Ref, "swap_buy", txID)
		}
	}
	for _, r := range res.Adds {
		if r.Status == match.StatusComputed {
			e.tracker.SetMatched(r.Request.Ref, "liquidity_add", txID)
		}
	}
	for _, r := range res.Removes {
		if r.Status == match.StatusComputed {
			e.tracker.SetMatched(r.Request.Ref, "liquidity_remove", txID)
		}
	}
}
