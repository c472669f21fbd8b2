package storage

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/pkg/engine"
)

// MemStore is an in-memory engine.Store for tests and ephemeral nodes.
type MemStore struct {
	mu     sync.Mutex
	orders map[engine.OrderID]common.Hash
	pools  map[common.Address]engine.PoolRecord
}

func NewMemStore() *MemStore {
	return &MemStore{
		orders: make(map[engine.OrderID]common.Hash),
		pools:  make(map[common.Address]engine.PoolRecord),
	}
}

func (s *MemStore) PutOrder(id engine.OrderID, dataHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[id] = dataHash
	return nil
}

func (s *MemStore) DeleteOrder(id engine.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

func (s *MemStore) LoadOrders() (map[engine.OrderID]common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[engine.OrderID]common.Hash, len(s.orders))
	for id, h := range s.orders {
		out[id] = h
	}
	return out, nil
}

func (s *MemStore) PutPool(tok common.Address, rec engine.PoolRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.TotalShares = new(big.Int).Set(rec.TotalShares)
	s.pools[tok] = rec
	return nil
}

func (s *MemStore) LoadPools() (map[common.Address]engine.PoolRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[common.Address]engine.PoolRecord, len(s.pools))
	for tok, rec := range s.pools {
		rec.TotalShares = new(big.Int).Set(rec.TotalShares)
		out[tok] = rec
	}
	return out, nil
}

func (s *MemStore) Close() error { return nil }

var _ engine.Store = (*MemStore)(nil)
