package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
)

// Canonical molecule serialization of the raw transaction, the exact byte
// layout the chain hashes to derive the transaction identity.
//
//	RawTransaction = table {
//	    version      Uint32
//	    cell_deps    fixvec of 37-byte CellDep
//	    header_deps  fixvec of 32-byte hashes
//	    inputs       fixvec of 44-byte CellInput
//	    outputs      dynvec of CellOutput tables
//	    outputs_data dynvec of length-prefixed blobs
//	}

func serializeOutPoint(p OutPoint) ([]byte, error) {
	hash, err := cell.HexToBytes(p.TxHash)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("outpoint tx hash %q is not 32 bytes", p.TxHash)
	}
	index, err := cell.HexToUint64(p.Index)
	if err != nil {
		return nil, fmt.Errorf("outpoint index: %w", err)
	}
	out := make([]byte, 36)
	copy(out, hash)
	binary.LittleEndian.PutUint32(out[32:], uint32(index))
	return out, nil
}

func serializeCellDep(d CellDep) ([]byte, error) {
	op, err := serializeOutPoint(d.OutPoint)
	if err != nil {
		return nil, err
	}
	var dt byte
	switch d.DepType {
	case "code":
		dt = 0
	case "dep_group":
		dt = 1
	default:
		return nil, fmt.Errorf("unknown dep type %q", d.DepType)
	}
	return append(op, dt), nil
}

func serializeCellInput(in CellInput) ([]byte, error) {
	since, err := cell.HexToUint64(in.Since)
	if err != nil {
		return nil, fmt.Errorf("input since: %w", err)
	}
	op, err := serializeOutPoint(in.PreviousOutput)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 44)
	binary.LittleEndian.PutUint64(out, since)
	return append(out, op...), nil
}

func serializeCellOutput(o CellOutput) ([]byte, error) {
	capacity, err := cell.HexToUint64(o.Capacity)
	if err != nil {
		return nil, fmt.Errorf("output capacity: %w", err)
	}
	capBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(capBytes, capacity)

	lock, err := o.Lock.Serialize()
	if err != nil {
		return nil, fmt.Errorf("output lock: %w", err)
	}
	// type script is optional; absent means a zero-size field
	var typ []byte
	if o.Type != nil {
		if typ, err = o.Type.Serialize(); err != nil {
			return nil, fmt.Errorf("output type: %w", err)
		}
	}
	return moleculeTable(capBytes, lock, typ), nil
}

func serializeRawTransaction(t *Transaction) ([]byte, error) {
	version, err := cell.HexToUint64(t.Version)
	if err != nil {
		return nil, fmt.Errorf("tx version: %w", err)
	}
	versionBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(versionBytes, uint32(version))

	deps := make([]byte, 4)
	binary.LittleEndian.PutUint32(deps, uint32(len(t.CellDeps)))
	for _, d := range t.CellDeps {
		b, err := serializeCellDep(d)
		if err != nil {
			return nil, err
		}
		deps = append(deps, b...)
	}

	headers := make([]byte, 4)
	binary.LittleEndian.PutUint32(headers, uint32(len(t.HeaderDeps)))
	for _, h := range t.HeaderDeps {
		b, err := cell.HexToBytes(h)
		if err != nil || len(b) != 32 {
			return nil, fmt.Errorf("header dep %q is not 32 bytes", h)
		}
		headers = append(headers, b...)
	}

	inputs := make([]byte, 4)
	binary.LittleEndian.PutUint32(inputs, uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		b, err := serializeCellInput(in)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, b...)
	}

	outputItems := make([][]byte, len(t.Outputs))
	for i, o := range t.Outputs {
		if outputItems[i], err = serializeCellOutput(o); err != nil {
			return nil, err
		}
	}

	dataItems := make([][]byte, len(t.OutputsData))
	for i, d := range t.OutputsData {
		blob, err := cell.HexToBytes(d)
		if err != nil {
			return nil, fmt.Errorf("output data %d: %w", i, err)
		}
		item := make([]byte, 4, 4+len(blob))
		binary.LittleEndian.PutUint32(item, uint32(len(blob)))
		dataItems[i] = append(item, blob...)
	}

	return moleculeTable(
		versionBytes,
		deps,
		headers,
		inputs,
		moleculeDynvec(outputItems),
		moleculeDynvec(dataItems),
	), nil
}

// TxHash computes the chain's identity for the transaction: the blake2b-256
// of the raw (witness-free) molecule serialization.
func TxHash(t *Transaction) (string, error) {
	raw, err := serializeRawTransaction(t)
	if err != nil {
		return "", err
	}
	return cell.BytesToHex(cell.CkbBlake256(raw)), nil
}

// moleculeTable lays out fields as a molecule table: full size, one offset
// per field, then the field bodies.
func moleculeTable(fields ...[]byte) []byte {
	header := 4 * (1 + len(fields))
	full := header
	for _, f := range fields {
		full += len(f)
	}
	out := make([]byte, 0, full)
	out = appendUint32LE(out, uint32(full))
	offset := header
	for _, f := range fields {
		out = appendUint32LE(out, uint32(offset))
		offset += len(f)
	}
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}

func moleculeDynvec(items [][]byte) []byte {
	return moleculeTable(items...)
}

func appendUint32LE(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}
