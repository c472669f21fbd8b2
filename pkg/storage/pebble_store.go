// Package storage persists engine state to Pebble so a node restart
// recovers every open order hash and per-token pool record.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/pkg/engine"
)

// Key schema:
//
//	ord:<32-byte-id>    → 32-byte order data hash
//	pool:<20-byte-addr> → PoolRecord (JSON)
const (
	prefixOrder = "ord:"
	prefixPool  = "pool:"
)

func orderKey(id engine.OrderID) []byte {
	return append([]byte(prefixOrder), id[:]...)
}

func poolKey(tok common.Address) []byte {
	return append([]byte(prefixPool), tok[:]...)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) PutOrder(id engine.OrderID, dataHash common.Hash) error {
	if err := s.db.Set(orderKey(id), dataHash[:], pebble.Sync); err != nil {
		return fmt.Errorf("put order %s: %w", id.Hex(), err)
	}
	return nil
}

func (s *PebbleStore) DeleteOrder(id engine.OrderID) error {
	if err := s.db.Delete(orderKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("delete order %s: %w", id.Hex(), err)
	}
	return nil
}

func (s *PebbleStore) LoadOrders() (map[engine.OrderID]common.Hash, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	defer iter.Close()

	orders := make(map[engine.OrderID]common.Hash)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(prefix)+common.HashLength {
			continue
		}
		var id engine.OrderID
		copy(id[:], key[len(prefix):])
		var h common.Hash
		copy(h[:], iter.Value())
		orders[id] = h
	}
	return orders, iter.Error()
}

func (s *PebbleStore) PutPool(tok common.Address, rec engine.PoolRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal pool %s: %w", tok.Hex(), err)
	}
	if err := s.db.Set(poolKey(tok), data, pebble.Sync); err != nil {
		return fmt.Errorf("put pool %s: %w", tok.Hex(), err)
	}
	return nil
}

func (s *PebbleStore) LoadPools() (map[common.Address]engine.PoolRecord, error) {
	prefix := []byte(prefixPool)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("scan pools: %w", err)
	}
	defer iter.Close()

	pools := make(map[common.Address]engine.PoolRecord)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(prefix)+common.AddressLength {
			continue
		}
		var tok common.Address
		copy(tok[:], key[len(prefix):])

		var rec engine.PoolRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal pool %s: %w", tok.Hex(), err)
		}
		pools[tok] = rec
	}
	return pools, iter.Error()
}

var _ engine.Store = (*PebbleStore)(nil)
