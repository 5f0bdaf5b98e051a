package tx

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/match"
)

// Composer renders a settlement round into a signed transaction. Inputs and
// outputs share one fixed layout: info, pool, matcher float, then every
// matched request in match order.
type Composer struct {
	ps       *cell.PairScripts
	signer   *Signer
	cellDeps []CellDep
}

func NewComposer(ps *cell.PairScripts, signer *Signer, cellDeps []CellDep) *Composer {
	return &Composer{ps: ps, signer: signer, cellDeps: cellDeps}
}

// Compose builds and signs the settlement transaction and returns it with
// its on-chain identity.
func (c *Composer) Compose(res *match.Result) (*Transaction, string, error) {
	if res.Skip {
		return nil, "", fmt.Errorf("compose: nothing matched")
	}

	inputs := []CellInput{
		{PreviousOutput: outPointOf(res.Info.Ref), Since: "0x0"},
		{PreviousOutput: outPointOf(res.Pool.Ref), Since: "0x0"},
		{PreviousOutput: outPointOf(res.Float.Ref), Since: "0x0"},
	}
	for _, ref := range res.ConsumedInputs() {
		inputs = append(inputs, CellInput{PreviousOutput: outPointOf(ref), Since: "0x0"})
	}

	outputs := make([]cell.OutputCell, 0, len(inputs))
	infoOut, err := res.Info.ToOutput(c.ps)
	if err != nil {
		return nil, "", fmt.Errorf("info output: %w", err)
	}
	poolOut, err := res.Pool.ToOutput(c.ps)
	if err != nil {
		return nil, "", fmt.Errorf("pool output: %w", err)
	}
	floatOut, err := res.Float.ToOutput(c.ps)
	if err != nil {
		return nil, "", fmt.Errorf("float output: %w", err)
	}
	outputs = append(outputs, infoOut, poolOut, floatOut)

	userOuts, err := res.UserOutputs(c.ps)
	if err != nil {
		return nil, "", fmt.Errorf("user outputs: %w", err)
	}
	outputs = append(outputs, userOuts...)

	t := &Transaction{
		Version:     "0x0",
		CellDeps:    c.cellDeps,
		HeaderDeps:  []string{},
		Inputs:      inputs,
		Outputs:     make([]CellOutput, len(outputs)),
		OutputsData: make([]string, len(outputs)),
	}
	for i, o := range outputs {
		t.Outputs[i] = CellOutput{
			Capacity: cell.Uint64ToHex(o.Capacity),
			Lock:     o.Lock,
			Type:     o.Type,
		}
		t.OutputsData[i] = cell.BytesToHex(o.Data)
	}

	swaps, liquidity := res.Counts()
	t.Witnesses = make([]string, len(inputs))
	t.Witnesses[0] = WitnessArgs{InputType: settlementInputTypeWitness(swaps, liquidity)}.Hex()
	for i := 1; i < len(inputs); i++ {
		t.Witnesses[i] = "0x"
	}

	txHash, err := TxHash(t)
	if err != nil {
		return nil, "", fmt.Errorf("tx hash: %w", err)
	}

	// the float input is the only cell under the matcher's lock; its
	// witness carries the signature
	placeholder := WitnessArgs{Lock: make([]byte, 65)}.Serialize()
	digest, err := SighashAllDigest(txHash, placeholder)
	if err != nil {
		return nil, "", err
	}
	sig, err := c.signer.Sign(digest)
	if err != nil {
		return nil, "", fmt.Errorf("sign: %w", err)
	}
	t.Witnesses[2] = WitnessArgs{Lock: sig}.Hex()

	log.WithFields(log.Fields{
		"tx":        txHash,
		"inputs":    len(inputs),
		"outputs":   len(outputs),
		"swaps":     swaps,
		"liquidity": liquidity,
	}).Debug("settlement composed")
	return t, txHash, nil
}
