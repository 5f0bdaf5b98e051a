package scanner

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
)

type fakeSource struct {
	cells map[string][]*cell.RawCell // keyed by queried script hash
	locks map[string]cell.Script     // user lock hash -> script
}

func (f *fakeSource) GetCells(_ context.Context, script cell.Script, _ string) ([]*cell.RawCell, error) {
	h, err := script.Hash()
	if err != nil {
		return nil, err
	}
	return f.cells[h], nil
}

func (f *fakeSource) GetLockScript(_ context.Context, _ cell.OutPointRef, lockHash string) (cell.Script, bool, error) {
	lock, ok := f.locks[lockHash]
	return lock, ok, nil
}

func fixScript(fill string, argBytes int) cell.Script {
	return cell.Script{
		CodeHash: "0x" + strings.Repeat(fill, 32),
		HashType: "type",
		Args:     "0x" + strings.Repeat(fill, argBytes),
	}
}

func fixPair(t *testing.T) *cell.PairScripts {
	t.Helper()
	ps, err := cell.NewPairScripts(
		fixScript("10", 32),
		fixScript("20", 32),
		fixScript("30", 32),
		fixScript("40", 32),
		fixScript("50", constants.SwapArgsLen),
		fixScript("60", constants.LiquidityArgsLen),
		fixScript("70", 20),
	)
	require.NoError(t, err)
	return ps
}

func ref(fill string, index uint32) cell.OutPointRef {
	return cell.OutPointRef{TxHash: "0x" + strings.Repeat(fill, 32), Index: index}
}

func mustHash(t *testing.T, s cell.Script) string {
	t.Helper()
	h, err := s.Hash()
	require.NoError(t, err)
	return h
}

func buildFixture(t *testing.T, ps *cell.PairScripts) *fakeSource {
	t.Helper()
	userLock := fixScript("ab", 20)
	userLockHash := mustHash(t, userLock)

	info := &cell.Info{
		Capacity:       constants.InfoFixedCapacity,
		CkbReserve:     big.NewInt(100 * int64(constants.CkbUnit)),
		SudtReserve:    big.NewInt(100 * int64(constants.CkbUnit)),
		TotalLiquidity: big.NewInt(100 * int64(constants.CkbUnit)),
		LptTypeHash:    ps.LptTypeHash,
	}
	infoData, err := info.EncodeData()
	require.NoError(t, err)

	pool := &cell.Pool{SudtAmount: big.NewInt(100 * int64(constants.CkbUnit))}
	poolData, err := pool.EncodeData()
	require.NoError(t, err)

	sellArgs, err := (&cell.SwapSellRequest{
		UserLockHash: userLockHash,
		Version:      1,
		AmountOutMin: big.NewInt(1),
		SudtTypeHash: ps.SudtTypeHash,
		TipsSudt:     big.NewInt(0),
	}).EncodeLockArgs()
	require.NoError(t, err)

	buyArgs, err := (&cell.SwapBuyRequest{
		SudtTypeHash: ps.SudtTypeHash,
		Version:      1,
		AmountOutMin: big.NewInt(1),
		UserLockHash: userLockHash,
		TipsSudt:     big.NewInt(0),
	}).EncodeLockArgs()
	require.NoError(t, err)

	addArgs, err := (&cell.LiquidityAddRequest{
		InfoTypeHash: ps.InfoTypeHash,
		Version:      1,
		SudtMin:      big.NewInt(0),
		UserLockHash: userLockHash,
		TipsSudt:     big.NewInt(0),
	}).EncodeLockArgs()
	require.NoError(t, err)

	removeArgs, err := (&cell.LiquidityRemoveRequest{
		UserLockHash: userLockHash,
		Version:      1,
		SudtMin:      big.NewInt(0),
		InfoTypeHash: ps.InfoTypeHash,
		TipsSudt:     big.NewInt(0),
	}).EncodeLockArgs()
	require.NoError(t, err)

	amount := make([]byte, constants.AmountDataLen)
	amount[0] = 42

	swapLockSell := ps.SwapLock
	swapLockSell.Args = cell.BytesToHex(sellArgs)
	swapLockBuy := ps.SwapLock
	swapLockBuy.Args = cell.BytesToHex(buyArgs)
	liqLockAdd := ps.LiquidityLock
	liqLockAdd.Args = cell.BytesToHex(addArgs)
	liqLockRemove := ps.LiquidityLock
	liqLockRemove.Args = cell.BytesToHex(removeArgs)

	// a swap cell with truncated args should be dropped, not fatal
	swapLockBroken := ps.SwapLock
	swapLockBroken.Args = "0x1234"

	return &fakeSource{
		locks: map[string]cell.Script{userLockHash: userLock},
		cells: map[string][]*cell.RawCell{
			ps.InfoLockHash: {
				{Capacity: constants.InfoFixedCapacity, Lock: ps.InfoLock, Type: &ps.InfoType, Data: infoData, OutPoint: ref("01", 0)},
				{Capacity: constants.PoolBaseCapacity, Lock: ps.InfoLock, Type: &ps.SudtType, Data: poolData, OutPoint: ref("01", 1)},
			},
			mustHash(t, ps.MatcherLock): {
				{Capacity: constants.MatcherFloatFixedCapacity, Lock: ps.MatcherLock, OutPoint: ref("01", 2)},
			},
			mustHash(t, ps.SwapLock): {
				{Capacity: constants.SwapSellRequestCapacity, Lock: swapLockSell, Type: &ps.SudtType, Data: amount, OutPoint: ref("11", 0)},
				{Capacity: constants.SwapBuyRequestCapacity + 10*constants.CkbUnit, Lock: swapLockBuy, OutPoint: ref("12", 0)},
				{Capacity: constants.SwapBuyRequestCapacity, Lock: swapLockBroken, OutPoint: ref("13", 0)},
			},
			mustHash(t, ps.LiquidityLock): {
				{Capacity: constants.LiquidityRequestMinCapacity, Lock: liqLockAdd, Type: &ps.SudtType, Data: amount, OutPoint: ref("14", 0)},
				{Capacity: constants.LiquidityRequestMinCapacity, Lock: liqLockRemove, Type: &ps.LptType, Data: amount, OutPoint: ref("15", 0)},
			},
		},
	}
}

func TestScanCollectsPairState(t *testing.T) {
	ps := fixPair(t)
	src := buildFixture(t, ps)

	snap, err := NewScanner(ps, src, nil).Scan(context.Background())
	require.NoError(t, err)

	require.NotNil(t, snap.Info)
	assert.Equal(t, int64(100*constants.CkbUnit), snap.Info.CkbReserve.Int64())
	require.NotNil(t, snap.Pool)
	require.NotNil(t, snap.Float)

	require.Len(t, snap.Sells, 1)
	assert.Equal(t, int64(42), snap.Sells[0].SudtAmount.Int64())
	require.Len(t, snap.Buys, 1)
	require.Len(t, snap.Adds, 1)
	require.Len(t, snap.Removes, 1)

	// every live request is recorded, even the undecodable one
	assert.True(t, snap.HasRequest(ref("11", 0).Key()))
	assert.True(t, snap.HasRequest(ref("13", 0).Key()))
	assert.False(t, snap.HasRequest(ref("99", 0).Key()))

	// the requests carry their resolved user locks
	assert.Equal(t, "0x"+strings.Repeat("ab", 20), snap.Sells[0].UserLock.Args)
}

func TestScanFailsWithoutSingletons(t *testing.T) {
	ps := fixPair(t)
	src := buildFixture(t, ps)
	src.cells[ps.InfoLockHash] = src.cells[ps.InfoLockHash][1:] // drop info

	_, err := NewScanner(ps, src, nil).Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no live info cell")
}

func TestScanLeavesUnresolvableRequestsLive(t *testing.T) {
	ps := fixPair(t)
	src := buildFixture(t, ps)
	src.locks = map[string]cell.Script{} // user locks not recoverable

	snap, err := NewScanner(ps, src, nil).Scan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, snap.Sells)
	assert.Empty(t, snap.Buys)
	// still live, so a replayed deal that consumed them stays valid
	assert.True(t, snap.HasRequest(ref("11", 0).Key()))
}
