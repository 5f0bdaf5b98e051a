package ledger

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
)

func testDeal(txID, parent string) *DealRecord {
	return &DealRecord{
		TxID:         txID,
		ParentTxID:   parent,
		Info:         CellSnapshot{Capacity: constants.InfoFixedCapacity},
		Pool:         CellSnapshot{Capacity: constants.PoolBaseCapacity},
		Float:        CellSnapshot{Capacity: constants.MatcherFloatFixedCapacity},
		SerializedTx: []byte(`{}`),
		ConsumedRefs: []string{txID + "-0x0"},
		Status:       StatusSent,
	}
}

func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()

	d1 := testDeal("0xaa", "")
	d2 := testDeal("0xbb", "0xaa")
	d3 := testDeal("0xcc", "0xbb")
	require.NoError(t, store.Save(ctx, d1))
	require.NoError(t, store.Save(ctx, d2))
	require.NoError(t, store.Save(ctx, d3))

	// sequence numbers follow insertion order
	assert.Less(t, d1.Seq, d2.Seq)
	assert.Less(t, d2.Seq, d3.Seq)

	got, err := store.GetByTxID(ctx, "0xbb")
	require.NoError(t, err)
	assert.Equal(t, "0xaa", got.ParentTxID)
	assert.Equal(t, StatusSent, got.Status)
	assert.Equal(t, []string{"0xbb-0x0"}, got.ConsumedRefs)

	_, err = store.GetByTxID(ctx, "0xmissing")
	assert.ErrorIs(t, err, ErrNotFound)

	sent, err := store.AllSent(ctx)
	require.NoError(t, err)
	require.Len(t, sent, 3)
	assert.Equal(t, "0xaa", sent[0].TxID)
	assert.Equal(t, "0xcc", sent[2].TxID)

	require.NoError(t, store.UpdateStatus(ctx, "0xbb", StatusCutOff))
	sent, err = store.AllSent(ctx)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, "0xaa", sent[0].TxID)
	assert.Equal(t, "0xcc", sent[1].TxID)

	assert.ErrorIs(t, store.UpdateStatus(ctx, "0xmissing", StatusCutOff), ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}

func TestRedisStore(t *testing.T) {
	client := setupTestRedis(t)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	}()

	store, err := NewRedisStore(client)
	require.NoError(t, err)
	runStoreSuite(t, store)
}

func TestMarkAncestryCommitted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, testDeal("0xaa", "")))
	require.NoError(t, store.Save(ctx, testDeal("0xbb", "0xaa")))
	require.NoError(t, store.Save(ctx, testDeal("0xcc", "0xbb")))
	require.NoError(t, store.Save(ctx, testDeal("0xdd", ""))) // unrelated chain

	require.NoError(t, MarkAncestryCommitted(ctx, store, "0xcc"))

	for _, txID := range []string{"0xaa", "0xbb", "0xcc"} {
		rec, err := store.GetByTxID(ctx, txID)
		require.NoError(t, err)
		assert.Equal(t, StatusCommitted, rec.Status, txID)
	}
	other, err := store.GetByTxID(ctx, "0xdd")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, other.Status)

	// an ancestry that leaves the store ends the walk quietly
	require.NoError(t, store.Save(ctx, testDeal("0xee", "0xnot-ours")))
	assert.NoError(t, MarkAncestryCommitted(ctx, store, "0xee"))
}

func TestDealSnapshotsRebuildState(t *testing.T) {
	lptHash := "0x" + strings.Repeat("40", 32)
	info := &cell.Info{
		Capacity:       constants.InfoFixedCapacity,
		CkbReserve:     big.NewInt(123),
		SudtReserve:    big.NewInt(456),
		TotalLiquidity: big.NewInt(789),
		LptTypeHash:    lptHash,
	}
	infoData, err := info.EncodeData()
	require.NoError(t, err)

	pool := &cell.Pool{Capacity: constants.PoolBaseCapacity, SudtAmount: big.NewInt(456)}
	poolData, err := pool.EncodeData()
	require.NoError(t, err)

	rec := &DealRecord{
		TxID:  "0x" + strings.Repeat("aa", 32),
		Info:  CellSnapshot{Capacity: info.Capacity, Data: cell.BytesToHex(infoData)},
		Pool:  CellSnapshot{Capacity: pool.Capacity, Data: cell.BytesToHex(poolData)},
		Float: CellSnapshot{Capacity: constants.MatcherFloatFixedCapacity},
	}

	gotInfo, err := rec.InfoState()
	require.NoError(t, err)
	assert.Equal(t, int64(123), gotInfo.CkbReserve.Int64())
	assert.Equal(t, lptHash, gotInfo.LptTypeHash)
	assert.Equal(t, cell.OutPointRef{TxHash: rec.TxID, Index: InfoOutputIndex}, gotInfo.Ref)

	gotPool, err := rec.PoolState()
	require.NoError(t, err)
	assert.Equal(t, int64(456), gotPool.SudtAmount.Int64())
	assert.Equal(t, cell.OutPointRef{TxHash: rec.TxID, Index: PoolOutputIndex}, gotPool.Ref)

	gotFloat, err := rec.FloatState()
	require.NoError(t, err)
	assert.Equal(t, cell.OutPointRef{TxHash: rec.TxID, Index: FloatOutputIndex}, gotFloat.Ref)
}
