package chain

import (
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
)

// RPCError is the node's error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type envelope struct {
	Error  *RPCError       `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Transaction statuses the node reports.
const (
	TxStatusPending   = "pending"
	TxStatusProposed  = "proposed"
	TxStatusCommitted = "committed"
	TxStatusRejected  = "rejected"
	TxStatusUnknown   = "unknown"
)

type txStatus struct {
	Status string `json:"status"`
}

type txBody struct {
	Inputs []struct {
		PreviousOutput struct {
			TxHash string `json:"tx_hash"`
			Index  string `json:"index"`
		} `json:"previous_output"`
	} `json:"inputs"`
	Outputs []struct {
		Capacity string       `json:"capacity"`
		Lock     cell.Script  `json:"lock"`
		Type     *cell.Script `json:"type"`
	} `json:"outputs"`
	OutputsData []string `json:"outputs_data"`
}

type txWithStatus struct {
	Transaction *txBody  `json:"transaction"`
	TxStatus    txStatus `json:"tx_status"`
}

// indexer get_cells shapes

type searchKey struct {
	Script     cell.Script `json:"script"`
	ScriptType string      `json:"script_type"`
}

type liveCell struct {
	OutPoint struct {
		TxHash string `json:"tx_hash"`
		Index  string `json:"index"`
	} `json:"out_point"`
	Output struct {
		Capacity string       `json:"capacity"`
		Lock     cell.Script  `json:"lock"`
		Type     *cell.Script `json:"type"`
	} `json:"output"`
	OutputData string `json:"output_data"`
}

type liveCellPage struct {
	LastCursor string     `json:"last_cursor"`
	Objects    []liveCell `json:"objects"`
}

func (lc liveCell) toRawCell() (*cell.RawCell, error) {
	capacity, err := cell.HexToUint64(lc.Output.Capacity)
	if err != nil {
		return nil, fmt.Errorf("live cell capacity: %w", err)
	}
	index, err := cell.HexToUint64(lc.OutPoint.Index)
	if err != nil {
		return nil, fmt.Errorf("live cell index: %w", err)
	}
	data, err := cell.HexToBytes(lc.OutputData)
	if err != nil {
		return nil, fmt.Errorf("live cell data: %w", err)
	}
	return &cell.RawCell{
		Capacity: capacity,
		Lock:     lc.Output.Lock,
		Type:     lc.Output.Type,
		Data:     data,
		OutPoint: cell.OutPointRef{TxHash: lc.OutPoint.TxHash, Index: uint32(index)},
	}, nil
}
