package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
)

// ErrNotFound is returned when no deal exists for the key.
var ErrNotFound = errors.New("deal not found")

// Status is a deal's lifecycle state. Sent deals are in flight; committed
// and cut-off are terminal.
type Status string

const (
	StatusSent      Status = "sent"
	StatusCommitted Status = "committed"
	StatusCutOff    Status = "cut_off"
)

// Output indices of the singleton cells within every settlement.
const (
	InfoOutputIndex  uint32 = 0
	PoolOutputIndex  uint32 = 1
	FloatOutputIndex uint32 = 2
)

// CellSnapshot preserves one singleton output of a sent settlement, enough
// to rebuild its decoded state without refetching the transaction.
type CellSnapshot struct {
	Capacity uint64 `json:"capacity"`
	Data     string `json:"data"` // cell data, 0x-prefixed hex
}

// DealRecord is one sent settlement: the chain it extends, the cells it
// produced, the requests it consumed, and the raw transaction for replay.
type DealRecord struct {
	TxID       string `json:"tx_id"`
	ParentTxID string `json:"parent_tx_id"`
	Seq        uint64 `json:"seq"`

	Info  CellSnapshot `json:"info"`
	Pool  CellSnapshot `json:"pool"`
	Float CellSnapshot `json:"float"`

	SerializedTx json.RawMessage `json:"serialized_tx"`
	ConsumedRefs []string        `json:"consumed_refs"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// InfoState rebuilds the deal's info output as decoded pool state, bound to
// the outpoint the next settlement would consume.
func (d *DealRecord) InfoState() (*cell.Info, error) {
	data, err := cell.HexToBytes(d.Info.Data)
	if err != nil {
		return nil, fmt.Errorf("deal %s info snapshot: %w", d.TxID, err)
	}
	return cell.DecodeInfo(&cell.RawCell{
		Capacity: d.Info.Capacity,
		Data:     data,
		OutPoint: cell.OutPointRef{TxHash: d.TxID, Index: InfoOutputIndex},
	})
}

// PoolState rebuilds the deal's pool output.
func (d *DealRecord) PoolState() (*cell.Pool, error) {
	data, err := cell.HexToBytes(d.Pool.Data)
	if err != nil {
		return nil, fmt.Errorf("deal %s pool snapshot: %w", d.TxID, err)
	}
	return cell.DecodePool(&cell.RawCell{
		Capacity: d.Pool.Capacity,
		Data:     data,
		OutPoint: cell.OutPointRef{TxHash: d.TxID, Index: PoolOutputIndex},
	})
}

// FloatState rebuilds the deal's matcher float output.
func (d *DealRecord) FloatState() (*cell.MatcherFloat, error) {
	return &cell.MatcherFloat{
		Capacity: d.Float.Capacity,
		Ref:      cell.OutPointRef{TxHash: d.TxID, Index: FloatOutputIndex},
	}, nil
}

// Store persists deal records in insertion order.
type Store interface {
	// Save assigns the record its sequence number and persists it.
	Save(ctx context.Context, rec *DealRecord) error
	// GetByTxID returns the record or ErrNotFound.
	GetByTxID(ctx context.Context, txID string) (*DealRecord, error)
	// AllSent returns every in-flight record, oldest first.
	AllSent(ctx context.Context) ([]*DealRecord, error)
	// UpdateStatus moves one record to the given status.
	UpdateStatus(ctx context.Context, txID string, status Status) error
}

// MarkAncestryCommitted walks the parent chain from txID, confirming every
// still-sent ancestor. The chain ends at the first record the store does not
// hold.
func MarkAncestryCommitted(ctx context.Context, s Store, txID string) error {
	for txID != "" {
		rec, err := s.GetByTxID(ctx, txID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.Status == StatusSent {
			if err := s.UpdateStatus(ctx, rec.TxID, StatusCommitted); err != nil {
				return err
			}
		}
		txID = rec.ParentTxID
	}
	return nil
}
