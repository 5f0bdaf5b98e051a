package engine

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/ledger"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/match"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/monitor"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/scanner"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/tx"
)

const testPrivKey = "0x0202020202020202020202020202020202020202020202020202020202020202"

type fakeChain struct {
	sent     []string // tx hashes in broadcast order
	statuses map[string]string
	sendErr  error
}

func (f *fakeChain) SendTransaction(_ context.Context, t *tx.Transaction) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	h, err := tx.TxHash(t)
	if err != nil {
		return "", err
	}
	f.sent = append(f.sent, h)
	return h, nil
}

func (f *fakeChain) GetTxStatuses(_ context.Context, txHashes []string) (map[string]string, error) {
	out := make(map[string]string, len(txHashes))
	for _, h := range txHashes {
		status, ok := f.statuses[h]
		if !ok {
			status = "unknown"
		}
		out[h] = status
	}
	return out, nil
}

type fakeScanner struct {
	snap *scanner.Snapshot
}

func (f *fakeScanner) Scan(context.Context) (*scanner.Snapshot, error) {
	return f.snap, nil
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

func sellReq(refFill string) *cell.SwapSellRequest {
	return &cell.SwapSellRequest{
		Capacity:     constants.SwapSellRequestCapacity,
		SudtAmount:   big.NewInt(10 * int64(constants.CkbUnit)),
		AmountOutMin: big.NewInt(0),
		TipsSudt:     big.NewInt(0),
		UserLock:     fixScript("ab", 20),
		Ref:          ref(refFill, 0),
	}
}

func freshSnapshot(ps *cell.PairScripts, sells ...*cell.SwapSellRequest) *scanner.Snapshot {
	reserve := int64(100 * constants.CkbUnit)
	snap := &scanner.Snapshot{
		State: match.State{
			Info: &cell.Info{
				Capacity:       constants.InfoFixedCapacity,
				CkbReserve:     big.NewInt(reserve),
				SudtReserve:    big.NewInt(reserve),
				TotalLiquidity: big.NewInt(reserve),
				LptTypeHash:    ps.LptTypeHash,
				Ref:            ref("01", 0),
			},
			Pool: &cell.Pool{
				Capacity:   constants.PoolBaseCapacity + uint64(reserve),
				SudtAmount: big.NewInt(reserve),
				Ref:        ref("01", 1),
			},
			Float: &cell.MatcherFloat{
				Capacity: constants.MatcherFloatFixedCapacity + 10*constants.CkbUnit,
				Ref:      ref("01", 2),
			},
			Sells: sells,
		},
		Requests: make(map[string]bool),
	}
	for _, s := range sells {
		snap.Requests[s.Ref.Key()] = true
	}
	return snap
}

func newEngine(t *testing.T, ps *cell.PairScripts, sc Snapshotter, chain ChainClient, store ledger.Store) *Engine {
	t.Helper()
	signer, err := tx.NewSigner(testPrivKey)
	require.NoError(t, err)
	return New(
		ps,
		sc,
		match.NewMatcher(ps, constants.DefaultBlockMinerFee),
		tx.NewComposer(ps, signer, nil),
		chain,
		store,
		monitor.NewTracker(),
		nil,
		nil,
	)
}

func TestCycleSettlesFreshRequests(t *testing.T) {
	ps := fixPair(t)
	chain := &fakeChain{}
	store := ledger.NewMemoryStore()
	snap := freshSnapshot(ps, sellReq("aa"))

	e := newEngine(t, ps, &fakeScanner{snap: snap}, chain, store)
	require.NoError(t, e.RunCycle(context.Background()))

	require.Len(t, chain.sent, 1)
	rec, err := store.GetByTxID(context.Background(), chain.sent[0])
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSent, rec.Status)
	assert.Equal(t, snap.Info.Ref.TxHash, rec.ParentTxID)
	assert.Equal(t, []string{ref("aa", 0).Key()}, rec.ConsumedRefs)

	// the persisted snapshots decode back to the mutated pool state
	info, err := rec.InfoState()
	require.NoError(t, err)
	assert.Equal(t, int64(110*constants.CkbUnit), info.SudtReserve.Int64())
}

func TestCycleSkipsWhenNothingMatches(t *testing.T) {
	ps := fixPair(t)
	chain := &fakeChain{}
	store := ledger.NewMemoryStore()

	e := newEngine(t, ps, &fakeScanner{snap: freshSnapshot(ps)}, chain, store)
	require.NoError(t, e.RunCycle(context.Background()))

	assert.Empty(t, chain.sent)
	sent, err := store.AllSent(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestCycleChainsOnInFlightDeal(t *testing.T) {
	ps := fixPair(t)
	chain := &fakeChain{}
	store := ledger.NewMemoryStore()
	ctx := context.Background()

	// first cycle settles request aa
	first := freshSnapshot(ps, sellReq("aa"))
	sc := &fakeScanner{snap: first}
	e := newEngine(t, ps, sc, chain, store)
	require.NoError(t, e.RunCycle(ctx))
	require.Len(t, chain.sent, 1)
	d1 := chain.sent[0]

	// second cycle: the chain still shows the old cells, aa is still live,
	// and a new request bb arrived
	second := freshSnapshot(ps, sellReq("aa"), sellReq("bb"))
	sc.snap = second
	require.NoError(t, e.RunCycle(ctx))

	// d1 was re-broadcast, then the new settlement followed
	require.Len(t, chain.sent, 3)
	assert.Equal(t, d1, chain.sent[1])
	d2 := chain.sent[2]

	rec, err := store.GetByTxID(ctx, d2)
	require.NoError(t, err)
	assert.Equal(t, d1, rec.ParentTxID)
	// only bb was consumed; aa already belongs to d1
	assert.Equal(t, []string{ref("bb", 0).Key()}, rec.ConsumedRefs)

	// d2 priced bb against d1's reserves, not the scanned ones
	d1rec, err := store.GetByTxID(ctx, d1)
	require.NoError(t, err)
	d1info, err := d1rec.InfoState()
	require.NoError(t, err)
	d2info, err := rec.InfoState()
	require.NoError(t, err)
	assert.Equal(t,
		new(big.Int).Add(d1info.SudtReserve, big.NewInt(10*int64(constants.CkbUnit))),
		d2info.SudtReserve)
}

func TestCycleCascadesCutOff(t *testing.T) {
	ps := fixPair(t)
	chain := &fakeChain{}
	store := ledger.NewMemoryStore()
	ctx := context.Background()

	sc := &fakeScanner{snap: freshSnapshot(ps, sellReq("aa"))}
	e := newEngine(t, ps, sc, chain, store)
	require.NoError(t, e.RunCycle(ctx))
	d1 := chain.sent[0]

	sc.snap = freshSnapshot(ps, sellReq("aa"), sellReq("bb"))
	require.NoError(t, e.RunCycle(ctx))
	d2 := chain.sent[2]

	// third cycle: aa vanished (someone else consumed it), bb is live
	sc.snap = freshSnapshot(ps, sellReq("bb"))
	require.NoError(t, e.RunCycle(ctx))

	// d1 lost its input, and d2 falls with it even though bb survives
	r1, err := store.GetByTxID(ctx, d1)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCutOff, r1.Status)
	r2, err := store.GetByTxID(ctx, d2)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCutOff, r2.Status)

	// bb was settled fresh against the scanned base
	d3 := chain.sent[len(chain.sent)-1]
	r3, err := store.GetByTxID(ctx, d3)
	require.NoError(t, err)
	assert.Equal(t, ref("01", 0).TxHash, r3.ParentTxID)
	assert.Equal(t, []string{ref("bb", 0).Key()}, r3.ConsumedRefs)
}

func TestCycleConfirmsOwnChain(t *testing.T) {
	ps := fixPair(t)
	chain := &fakeChain{}
	store := ledger.NewMemoryStore()
	ctx := context.Background()

	sc := &fakeScanner{snap: freshSnapshot(ps, sellReq("aa"))}
	e := newEngine(t, ps, sc, chain, store)
	require.NoError(t, e.RunCycle(ctx))
	d1 := chain.sent[0]

	// the chain now shows d1's outputs as the live singletons
	rec, err := store.GetByTxID(ctx, d1)
	require.NoError(t, err)
	info, err := rec.InfoState()
	require.NoError(t, err)
	pool, err := rec.PoolState()
	require.NoError(t, err)
	float, err := rec.FloatState()
	require.NoError(t, err)

	confirmed := &scanner.Snapshot{
		State:    match.State{Info: info, Pool: pool, Float: float},
		Requests: make(map[string]bool),
	}
	sc.snap = confirmed
	require.NoError(t, e.RunCycle(ctx))

	got, err := store.GetByTxID(ctx, d1)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCommitted, got.Status)
}

func TestCycleConcedesToCompetitor(t *testing.T) {
	ps := fixPair(t)
	chain := &fakeChain{statuses: map[string]string{}}
	store := ledger.NewMemoryStore()
	ctx := context.Background()

	sc := &fakeScanner{snap: freshSnapshot(ps, sellReq("aa"))}
	e := newEngine(t, ps, sc, chain, store)
	require.NoError(t, e.RunCycle(ctx))
	d1 := chain.sent[0]
	chain.statuses[d1] = "rejected"

	// a foreign info cell appears: the competitor's settlement won
	foreign := freshSnapshot(ps, sellReq("aa"))
	foreign.Info.Ref = ref("ff", 0)
	foreign.Pool.Ref = ref("ff", 1)
	foreign.Float.Ref = ref("ff", 2)
	sc.snap = foreign
	require.NoError(t, e.RunCycle(ctx))

	rec, err := store.GetByTxID(ctx, d1)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCutOff, rec.Status)

	// aa is still live and was settled fresh on the competitor's state
	d2 := chain.sent[len(chain.sent)-1]
	r2, err := store.GetByTxID(ctx, d2)
	require.NoError(t, err)
	assert.Equal(t, ref("ff", 0).TxHash, r2.ParentTxID)
	assert.Equal(t, ledger.StatusSent, r2.Status)
}

func TestCycleKeepsDealOnBroadcastFailure(t *testing.T) {
	ps := fixPair(t)
	chain := &fakeChain{sendErr: assert.AnError}
	store := ledger.NewMemoryStore()
	ctx := context.Background()

	e := newEngine(t, ps, &fakeScanner{snap: freshSnapshot(ps, sellReq("aa"))}, chain, store)
	require.NoError(t, e.RunCycle(ctx))

	// the deal was persisted before the failed send and stays in flight
	sent, err := store.AllSent(ctx)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, ledger.StatusSent, sent[0].Status)

	// once the node recovers, the same deal is re-broadcast verbatim
	chain.sendErr = nil
	e2 := newEngine(t, ps, &fakeScanner{snap: freshSnapshot(ps, sellReq("aa"))}, chain, store)
	require.NoError(t, e2.RunCycle(ctx))
	require.NotEmpty(t, chain.sent)
	assert.Equal(t, sent[0].TxID, chain.sent[0])
}

func TestCycleBootstrapsEmptyPool(t *testing.T) {
	ps := fixPair(t)
	chain := &fakeChain{}
	store := ledger.NewMemoryStore()
	ctx := context.Background()

	snap := freshSnapshot(ps)
	snap.Info.CkbReserve = big.NewInt(0)
	snap.Info.SudtReserve = big.NewInt(0)
	snap.Info.TotalLiquidity = big.NewInt(0)
	snap.Pool.Capacity = constants.PoolBaseCapacity
	snap.Pool.SudtAmount = big.NewInt(0)
	add := &cell.LiquidityAddRequest{
		Capacity:   500 * constants.CkbUnit,
		SudtAmount: big.NewInt(300 * int64(constants.CkbUnit)),
		SudtMin:    big.NewInt(0),
		TipsSudt:   big.NewInt(0),
		UserLock:   fixScript("ab", 20),
		Ref:        ref("aa", 0),
	}
	snap.Adds = []*cell.LiquidityAddRequest{add}
	snap.Requests[add.Ref.Key()] = true

	e := newEngine(t, ps, &fakeScanner{snap: snap}, chain, store)
	require.NoError(t, e.RunCycle(ctx))

	require.Len(t, chain.sent, 1)
	rec, err := store.GetByTxID(ctx, chain.sent[0])
	require.NoError(t, err)
	info, err := rec.InfoState()
	require.NoError(t, err)
	assert.Positive(t, info.TotalLiquidity.Sign())
	assert.Equal(t, int64(300*constants.CkbUnit), info.SudtReserve.Int64())
}
