package tx

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/match"
)

const testPrivKey = "0x0101010101010101010101010101010101010101010101010101010101010101"

func testScript(fill string, argBytes int) cell.Script {
	return cell.Script{
		CodeHash: "0x" + strings.Repeat(fill, 32),
		HashType: "type",
		Args:     "0x" + strings.Repeat(fill, argBytes),
	}
}

func testPair(t *testing.T) *cell.PairScripts {
	t.Helper()
	ps, err := cell.NewPairScripts(
		testScript("10", 32),
		testScript("20", 32),
		testScript("30", 32),
		testScript("40", 32),
		testScript("50", constants.SwapArgsLen),
		testScript("60", constants.LiquidityArgsLen),
		testScript("70", 20),
	)
	require.NoError(t, err)
	return ps
}

func testRef(fill string, index uint32) cell.OutPointRef {
	return cell.OutPointRef{TxHash: "0x" + strings.Repeat(fill, 32), Index: index}
}

func testResult(t *testing.T, ps *cell.PairScripts) *match.Result {
	t.Helper()
	reserve := int64(100 * constants.CkbUnit)
	st := &match.State{
		Info: &cell.Info{
			Capacity:       constants.InfoFixedCapacity,
			CkbReserve:     big.NewInt(reserve),
			SudtReserve:    big.NewInt(reserve),
			TotalLiquidity: big.NewInt(reserve),
			LptTypeHash:    ps.LptTypeHash,
			Ref:            testRef("01", 0),
		},
		Pool: &cell.Pool{
			Capacity:   constants.PoolBaseCapacity + uint64(reserve),
			SudtAmount: big.NewInt(reserve),
			Ref:        testRef("01", 1),
		},
		Float: &cell.MatcherFloat{
			Capacity: constants.MatcherFloatFixedCapacity + 10*constants.CkbUnit,
			Ref:      testRef("01", 2),
		},
		Sells: []*cell.SwapSellRequest{{
			Capacity:     constants.SwapSellRequestCapacity,
			SudtAmount:   big.NewInt(int64(constants.CkbUnit)),
			AmountOutMin: big.NewInt(0),
			TipsSudt:     big.NewInt(0),
			UserLock:     testScript("ab", 20),
			Ref:          testRef("11", 0),
		}},
		Adds: []*cell.LiquidityAddRequest{{
			Capacity:   600 * constants.CkbUnit,
			SudtAmount: big.NewInt(400 * int64(constants.CkbUnit)),
			SudtMin:    big.NewInt(0),
			TipsSudt:   big.NewInt(0),
			UserLock:   testScript("ab", 20),
			Ref:        testRef("12", 0),
		}},
	}
	res := match.NewMatcher(ps, constants.DefaultBlockMinerFee).Match(st)
	require.False(t, res.Skip)
	return res
}

func TestWitnessArgsSerialize(t *testing.T) {
	// three absent fields: a 16-byte header pointing at itself
	assert.Equal(t, "0x10000000100000001000000010000000", WitnessArgs{}.Hex())

	// a 65-byte lock: full size 85, a length-prefixed body, later offsets
	// stay at the end
	w := WitnessArgs{Lock: make([]byte, 65)}
	assert.Equal(t,
		"0x55000000100000005500000055000000"+"41000000"+strings.Repeat("00", 65),
		w.Hex())

	// empty-but-present differs from absent
	present := WitnessArgs{InputType: []byte{}}
	absent := WitnessArgs{}
	assert.NotEqual(t, absent.Hex(), present.Hex())
}

func TestSettlementInputTypeWitness(t *testing.T) {
	b := settlementInputTypeWitness(2, 1)
	require.Len(t, b, 16)
	assert.Equal(t, "0x02000000000000000100000000000000", cell.BytesToHex(b))
}

func TestSignerProducesRecoverableSignature(t *testing.T) {
	s, err := NewSigner(testPrivKey)
	require.NoError(t, err)

	digest := cell.CkbBlake256([]byte("settlement"))
	sig, err := s.Sign(digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Less(t, sig[64], byte(4))

	// deterministic nonces make re-signing reproducible
	again, err := s.Sign(digest)
	require.NoError(t, err)
	assert.Equal(t, sig, again)

	_, err = s.Sign([]byte("short"))
	assert.Error(t, err)

	assert.Len(t, s.LockArgs(), 2+40)
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("0x1234")
	assert.Error(t, err)
	_, err = NewSigner("not hex")
	assert.Error(t, err)
}

func TestComposeLayout(t *testing.T) {
	ps := testPair(t)
	res := testResult(t, ps)
	signer, err := NewSigner(testPrivKey)
	require.NoError(t, err)

	deps := []CellDep{{OutPoint: OutPoint{TxHash: "0x" + strings.Repeat("dd", 32), Index: "0x0"}, DepType: "dep_group"}}
	tr, txHash, err := NewComposer(ps, signer, deps).Compose(res)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Len(t, txHash, 2+64)

	// inputs: info, pool, float, then the matched sell and add
	require.Len(t, tr.Inputs, 5)
	assert.Equal(t, "0x"+strings.Repeat("01", 32), tr.Inputs[0].PreviousOutput.TxHash)
	assert.Equal(t, "0x1", tr.Inputs[1].PreviousOutput.Index)
	assert.Equal(t, "0x2", tr.Inputs[2].PreviousOutput.Index)
	assert.Equal(t, "0x"+strings.Repeat("11", 32), tr.Inputs[3].PreviousOutput.TxHash)
	assert.Equal(t, "0x"+strings.Repeat("12", 32), tr.Inputs[4].PreviousOutput.TxHash)

	// outputs mirror: three singletons, the sell payout, the lpt cell and
	// the add change cell
	require.Len(t, tr.Outputs, 6)
	assert.Equal(t, ps.InfoLock, tr.Outputs[0].Lock)
	require.NotNil(t, tr.Outputs[0].Type)
	assert.Equal(t, ps.InfoType, *tr.Outputs[0].Type)
	assert.Equal(t, ps.InfoLock, tr.Outputs[1].Lock)
	assert.Equal(t, ps.MatcherLock, tr.Outputs[2].Lock)
	assert.Nil(t, tr.Outputs[2].Type)
	require.Len(t, tr.OutputsData, 6)
	assert.Len(t, tr.OutputsData[0], 2+2*constants.InfoDataLen)
	assert.Equal(t, "0x", tr.OutputsData[2])

	// witness 0 announces one swap and one liquidity request
	w0 := WitnessArgs{InputType: settlementInputTypeWitness(1, 1)}.Hex()
	assert.Equal(t, w0, tr.Witnesses[0])
	assert.Equal(t, "0x", tr.Witnesses[1])

	// witness 2 carries the 85-byte signed witness
	sigWitness, err := cell.HexToBytes(tr.Witnesses[2])
	require.NoError(t, err)
	assert.Len(t, sigWitness, 85)
	assert.NotEqual(t, WitnessArgs{Lock: make([]byte, 65)}.Hex(), tr.Witnesses[2])

	// the mutated info round-trips through its own data
	infoData, err := cell.HexToBytes(tr.OutputsData[0])
	require.NoError(t, err)
	decoded, err := cell.DecodeInfo(&cell.RawCell{
		Capacity: constants.InfoFixedCapacity,
		Data:     infoData,
		OutPoint: testRef("ff", 0),
	})
	require.NoError(t, err)
	assert.Zero(t, decoded.CkbReserve.Cmp(res.Info.CkbReserve))
}

func TestComposeIsDeterministic(t *testing.T) {
	ps := testPair(t)
	signer, err := NewSigner(testPrivKey)
	require.NoError(t, err)
	c := NewComposer(ps, signer, nil)

	_, h1, err := c.Compose(testResult(t, ps))
	require.NoError(t, err)
	_, h2, err := c.Compose(testResult(t, ps))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestComposeRejectsSkippedRound(t *testing.T) {
	ps := testPair(t)
	signer, err := NewSigner(testPrivKey)
	require.NoError(t, err)

	_, _, err = NewComposer(ps, signer, nil).Compose(&match.Result{Skip: true})
	assert.Error(t, err)
}
