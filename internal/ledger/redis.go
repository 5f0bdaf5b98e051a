package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dealPrefix = "deals:"
	orderKey   = "deals:order"
	seqKey     = "deals:seq"
)

// RedisStore persists deal records in redis: one JSON value per deal plus a
// list holding insertion order.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Save(ctx context.Context, rec *DealRecord) error {
	seq, err := s.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return fmt.Errorf("next deal seq: %w", err)
	}
	rec.Seq = uint64(seq)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal deal: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, dealKey(rec.TxID), b, 0)
	pipe.RPush(ctx, orderKey, rec.TxID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save deal: %w", err)
	}
	return nil
}

func (s *RedisStore) GetByTxID(ctx context.Context, txID string) (*DealRecord, error) {
	val, err := s.client.Get(ctx, dealKey(txID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}

	var rec DealRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal deal: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) AllSent(ctx context.Context) ([]*DealRecord, error) {
	txIDs, err := s.client.LRange(ctx, orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list deal order: %w", err)
	}
	if len(txIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(txIDs))
	for i, id := range txIDs {
		keys[i] = dealKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget deals: %w", err)
	}

	var out []*DealRecord
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec DealRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		if rec.Status == StatusSent {
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (s *RedisStore) UpdateStatus(ctx context.Context, txID string, status Status) error {
	rec, err := s.GetByTxID(ctx, txID)
	if err != nil {
		return err
	}
	rec.Status = status

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal deal: %w", err)
	}
	if err := s.client.Set(ctx, dealKey(txID), b, 0).Err(); err != nil {
		return fmt.Errorf("update deal status: %w", err)
	}
	return nil
}

func dealKey(txID string) string {
	return dealPrefix + txID
}
