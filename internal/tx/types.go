package tx

import (
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
)

// The JSON shapes below mirror the node's transaction encoding: quantities
// are 0x-prefixed hex strings, byte blobs are 0x-prefixed hex.

type OutPoint struct {
	TxHash string `json:"tx_hash"`
	Index  string `json:"index"`
}

type CellDep struct {
	OutPoint OutPoint `json:"out_point"`
	DepType  string   `json:"dep_type"` // "code" or "dep_group"
}

type CellInput struct {
	PreviousOutput OutPoint `json:"previous_output"`
	Since          string   `json:"since"`
}

type CellOutput struct {
	Capacity string       `json:"capacity"`
	Lock     cell.Script  `json:"lock"`
	Type     *cell.Script `json:"type"`
}

// Transaction is a fully rendered settlement, ready for send_transaction.
type Transaction struct {
	Version     string       `json:"version"`
	CellDeps    []CellDep    `json:"cell_deps"`
	HeaderDeps  []string     `json:"header_deps"`
	Inputs      []CellInput  `json:"inputs"`
	Outputs     []CellOutput `json:"outputs"`
	OutputsData []string     `json:"outputs_data"`
	Witnesses   []string     `json:"witnesses"`
}

func outPointOf(ref cell.OutPointRef) OutPoint {
	return OutPoint{TxHash: ref.TxHash, Index: cell.Uint64ToHex(uint64(ref.Index))}
}
