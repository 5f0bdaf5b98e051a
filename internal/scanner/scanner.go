package scanner

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/match"
)

// CellSource is the slice of the chain client the scanner needs.
type CellSource interface {
	GetCells(ctx context.Context, script cell.Script, scriptType string) ([]*cell.RawCell, error)
	GetLockScript(ctx context.Context, ref cell.OutPointRef, lockHash string) (cell.Script, bool, error)
}

// Snapshot is one consistent view of the pair: the singleton cells, every
// decodable live request, and the set of request outpoints for replay
// checks.
type Snapshot struct {
	match.State

	// Requests holds the outpoint key of every live request cell, including
	// the ones that failed to decode.
	Requests map[string]bool
}

// HasRequest reports whether the outpoint key was live at scan time.
func (s *Snapshot) HasRequest(key string) bool {
	return s.Requests[key]
}

// Scanner collects the pair's live cells into a snapshot.
type Scanner struct {
	ps     *cell.PairScripts
	source CellSource
	logger *logrus.Logger
}

func NewScanner(ps *cell.PairScripts, source CellSource, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{ps: ps, source: source, logger: logger}
}

// Scan queries the indexer for the pair's cells. Malformed cells are logged
// and dropped; a missing singleton fails the scan.
func (s *Scanner) Scan(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Requests: make(map[string]bool)}

	if err := s.scanSingletons(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.scanSwaps(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.scanLiquidity(ctx, snap); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"sells":   len(snap.Sells),
		"buys":    len(snap.Buys),
		"adds":    len(snap.Adds),
		"removes": len(snap.Removes),
	}).Debug("pair scanned")
	return snap, nil
}

func (s *Scanner) scanSingletons(ctx context.Context, snap *Snapshot) error {
	// info and pool share the pair lock
	cells, err := s.source.GetCells(ctx, s.ps.InfoLock, "lock")
	if err != nil {
		return fmt.Errorf("scan pair cells: %w", err)
	}
	for _, c := range cells {
		switch {
		case snap.Info == nil && cell.ValidateInfo(c, s.ps):
			if snap.Info, err = cell.DecodeInfo(c); err != nil {
				return err
			}
		case snap.Pool == nil && cell.ValidatePool(c, s.ps):
			if snap.Pool, err = cell.DecodePool(c); err != nil {
				return err
			}
		}
	}
	if snap.Info == nil {
		return fmt.Errorf("scan: no live info cell")
	}
	if snap.Pool == nil {
		return fmt.Errorf("scan: no live pool cell")
	}

	floats, err := s.source.GetCells(ctx, s.ps.MatcherLock, "lock")
	if err != nil {
		return fmt.Errorf("scan matcher float: %w", err)
	}
	for _, c := range floats {
		if cell.ValidateMatcherFloat(c, s.ps) {
			if snap.Float, err = cell.DecodeMatcherFloat(c); err != nil {
				return err
			}
			break
		}
	}
	if snap.Float == nil {
		return fmt.Errorf("scan: no live matcher float cell")
	}
	return nil
}

func (s *Scanner) scanSwaps(ctx context.Context, snap *Snapshot) error {
	cells, err := s.source.GetCells(ctx, s.ps.SwapLock, "lock")
	if err != nil {
		return fmt.Errorf("scan swap requests: %w", err)
	}
	for _, c := range cells {
		snap.Requests[c.OutPoint.Key()] = true
		switch {
		case cell.ValidateSwapSell(c, s.ps):
			hash, err := cell.SwapSellUserLockHash(c)
			if err != nil {
				s.dropCell(c, err)
				continue
			}
			lock, ok, err := s.resolveUserLock(ctx, c.OutPoint, hash)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			req, err := cell.DecodeSwapSell(c, lock)
			if err != nil {
				s.dropCell(c, err)
				continue
			}
			snap.Sells = append(snap.Sells, req)
		case cell.ValidateSwapBuy(c):
			hash, err := cell.SwapBuyUserLockHash(c)
			if err != nil {
				s.dropCell(c, err)
				continue
			}
			lock, ok, err := s.resolveUserLock(ctx, c.OutPoint, hash)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			req, err := cell.DecodeSwapBuy(c, lock)
			if err != nil {
				s.dropCell(c, err)
				continue
			}
			snap.Buys = append(snap.Buys, req)
		default:
			s.dropCell(c, fmt.Errorf("not a recognizable swap request"))
		}
	}
	return nil
}

func (s *Scanner) scanLiquidity(ctx context.Context, snap *Snapshot) error {
	cells, err := s.source.GetCells(ctx, s.ps.LiquidityLock, "lock")
	if err != nil {
		return fmt.Errorf("scan liquidity requests: %w", err)
	}
	for _, c := range cells {
		snap.Requests[c.OutPoint.Key()] = true
		switch {
		case cell.ValidateLiquidityAdd(c, s.ps):
			hash, err := cell.LiquidityAddUserLockHash(c)
			if err != nil {
				s.dropCell(c, err)
				continue
			}
			lock, ok, err := s.resolveUserLock(ctx, c.OutPoint, hash)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			req, err := cell.DecodeLiquidityAdd(c, lock)
			if err != nil {
				s.dropCell(c, err)
				continue
			}
			snap.Adds = append(snap.Adds, req)
		case cell.ValidateLiquidityRemove(c, s.ps):
			hash, err := cell.LiquidityRemoveUserLockHash(c)
			if err != nil {
				s.dropCell(c, err)
				continue
			}
			lock, ok, err := s.resolveUserLock(ctx, c.OutPoint, hash)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			req, err := cell.DecodeLiquidityRemove(c, lock)
			if err != nil {
				s.dropCell(c, err)
				continue
			}
			snap.Removes = append(snap.Removes, req)
		default:
			s.dropCell(c, fmt.Errorf("not a recognizable liquidity request"))
		}
	}
	return nil
}

// resolveUserLock recovers a request's original user lock. A request whose
// lock cannot be recovered cannot be paid out, so it stays live untouched.
func (s *Scanner) resolveUserLock(ctx context.Context, ref cell.OutPointRef, lockHash string) (cell.Script, bool, error) {
	lock, ok, err := s.source.GetLockScript(ctx, ref, lockHash)
	if err != nil {
		return cell.Script{}, false, fmt.Errorf("resolve user lock of %s: %w", ref, err)
	}
	if !ok {
		s.logger.WithField("outpoint", ref.Key()).Warn("request user lock not recoverable, leaving it live")
	}
	return lock, ok, nil
}

func (s *Scanner) dropCell(c *cell.RawCell, err error) {
	s.logger.WithFields(logrus.Fields{
		"outpoint": c.OutPoint.Key(),
		"reason":   err.Error(),
	}).Warn("dropping malformed cell")
}
