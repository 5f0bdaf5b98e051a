package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store, used in tests and single-run tooling.
type MemoryStore struct {
	mu    sync.RWMutex
	seq   uint64
	order []string
	deals map[string]*DealRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{deals: make(map[string]*DealRecord)}
}

func (m *MemoryStore) Save(_ context.Context, rec *DealRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	rec.Seq = m.seq
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.deals[rec.TxID]; !exists {
		m.order = append(m.order, rec.TxID)
	}
	cp := *rec
	m.deals[rec.TxID] = &cp
	return nil
}

func (m *MemoryStore) GetByTxID(_ context.Context, txID string) (*DealRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.deals[txID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) AllSent(_ context.Context) ([]*DealRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*DealRecord
	for _, txID := range m.order {
		if rec := m.deals[txID]; rec.Status == StatusSent {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, txID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.deals[txID]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	return nil
}
