// Package engine implements the order lifecycle and accounting core:
// order identity, share-based yield accounting over pooled balances,
// buffer rebalancing between idle reserve and yield strategies, fee
// computation, and the create/execute/fill/update/cancel transitions.
package engine

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/yieldswap/yieldswap/pkg/token"
	"github.com/yieldswap/yieldswap/pkg/util"
)

const bpsDenominator = 10000

// Params configures a new Engine.
type Params struct {
	// Self is the address funds are held under, the on-chain contract
	// address analog.
	Self           common.Address
	Owner          common.Address
	EmergencyAdmin common.Address
	Treasury       common.Address // zero disables protocol and cancellation fees
	WrappedNative  common.Address

	ProtocolFeeBps   uint64
	CancellationBps  uint64
	DefaultBufferBps uint64
}

// pool is the per-token accounting state.
type pool struct {
	totalShares *big.Int
	bufferBps   uint64
	strategy    Strategy // nil when no strategy is set
}

// Engine owns all order and pool state. Every operation runs under a
// single mutex: one settlement event at a time, all-or-nothing.
// External interactions (token transfers, strategy and handler calls)
// happen only after the order's existence flag and share totals have
// been updated, and are compensated if a later step fails.
type Engine struct {
	mu    sync.Mutex
	log   *zap.SugaredLogger
	clock util.Clock
	store Store

	tokens *token.Registry
	oracle Oracle

	self           common.Address
	owner          common.Address
	emergencyAdmin common.Address
	treasury       common.Address
	wrappedNative  common.Address

	protocolFeeBps   uint64
	cancellationBps  uint64
	defaultBufferBps uint64
	paused           bool

	whitelisted map[common.Address]bool
	handlers    map[common.Address]Handler
	executors   map[common.Address]bool
	pools       map[common.Address]*pool
	orders      map[OrderID]common.Hash // id -> keccak256(orderData)

	// OnEvent, when set, is invoked for every emitted event while the
	// engine lock is held; keep it fast and non-reentrant.
	OnEvent func(Event)
}

// New creates an engine and restores persisted order hashes and pool
// state from the store. Strategies are not restored; re-attach them
// with SetStrategy/MigrateStrategy after boot.
func New(p Params, tokens *token.Registry, oracle Oracle, store Store, clock util.Clock, logger *zap.SugaredLogger) (*Engine, error) {
	if p.Owner == (common.Address{}) {
		return nil, fmt.Errorf("engine owner: %w", ErrZeroAddress)
	}
	if p.DefaultBufferBps > bpsDenominator {
		return nil, fmt.Errorf("default buffer %d exceeds %d bps", p.DefaultBufferBps, bpsDenominator)
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	e := &Engine{
		log:              logger,
		clock:            clock,
		store:            store,
		tokens:           tokens,
		oracle:           oracle,
		self:             p.Self,
		owner:            p.Owner,
		emergencyAdmin:   p.EmergencyAdmin,
		treasury:         p.Treasury,
		wrappedNative:    p.WrappedNative,
		protocolFeeBps:   p.ProtocolFeeBps,
		cancellationBps:  p.CancellationBps,
		defaultBufferBps: p.DefaultBufferBps,
		whitelisted:      make(map[common.Address]bool),
		handlers:         make(map[common.Address]Handler),
		executors:        make(map[common.Address]bool),
		pools:            make(map[common.Address]*pool),
		orders:           make(map[OrderID]common.Hash),
	}

	if store != nil {
		orders, err := store.LoadOrders()
		if err != nil {
			return nil, fmt.Errorf("restore orders: %w", err)
		}
		e.orders = orders

		pools, err := store.LoadPools()
		if err != nil {
			return nil, fmt.Errorf("restore pools: %w", err)
		}
		for tok, rec := range pools {
			e.pools[tok] = &pool{
				totalShares: new(big.Int).Set(rec.TotalShares),
				bufferBps:   rec.BufferBps,
			}
		}
		if len(orders) > 0 || len(pools) > 0 {
			logger.Infow("engine_state_restored", "orders", len(orders), "pools", len(pools))
		}
	}

	return e, nil
}

// Self returns the address the engine holds pooled funds under.
func (e *Engine) Self() common.Address { return e.self }

func (e *Engine) emit(ev Event) {
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}

// poolFor returns the token's pool, creating it with the default
// buffer on first use.
func (e *Engine) poolFor(tok common.Address) *pool {
	p, ok := e.pools[tok]
	if !ok {
		p = &pool{totalShares: new(big.Int), bufferBps: e.defaultBufferBps}
		e.pools[tok] = p
	}
	return p
}

func (e *Engine) persistPool(tok common.Address) error {
	if e.store == nil {
		return nil
	}
	p := e.pools[tok]
	rec := PoolRecord{
		TotalShares: new(big.Int).Set(p.totalShares),
		BufferBps:   p.bufferBps,
	}
	if p.strategy != nil {
		rec.Strategy = p.strategy.Address()
	}
	return e.store.PutPool(tok, rec)
}

func (e *Engine) putOrder(id OrderID, dataHash common.Hash) error {
	e.orders[id] = dataHash
	if e.store == nil {
		return nil
	}
	return e.store.PutOrder(id, dataHash)
}

func (e *Engine) dropOrder(id OrderID) error {
	delete(e.orders, id)
	if e.store == nil {
		return nil
	}
	return e.store.DeleteOrder(id)
}

// checkOrder validates existence and data round-trip for a referenced
// order. Not-found is reported before mismatch: a raced-away order is
// a state error, not a bad payload.
func (e *Engine) checkOrder(id OrderID, data []byte) (*Order, error) {
	stored, ok := e.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id.Hex())
	}
	if HashOrderData(data) != stored {
		return nil, fmt.Errorf("%w: %s", ErrOrderMismatch, id.Hex())
	}
	return DecodeOrder(data)
}

// TotalUnderlying returns a token's pooled balance: idle on-hand funds
// plus whatever the active strategy reports.
func (e *Engine) TotalUnderlying(tok common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalUnderlyingLocked(tok)
}

func (e *Engine) totalUnderlyingLocked(tok common.Address) (*big.Int, error) {
	erc, err := e.tokens.Token(tok)
	if err != nil {
		return nil, err
	}
	total := erc.BalanceOf(e.self)

	p, ok := e.pools[tok]
	if ok && p.strategy != nil {
		invested, err := p.strategy.TotalUnderlying(tok)
		if err != nil {
			return nil, fmt.Errorf("strategy underlying for %s: %w", tok.Hex(), err)
		}
		total.Add(total, invested)
	}
	return total, nil
}

// TotalShares returns the outstanding share supply for a token.
func (e *Engine) TotalShares(tok common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.pools[tok]; ok {
		return new(big.Int).Set(p.totalShares)
	}
	return new(big.Int)
}

// TokenBuffer returns the token's idle-reserve target in basis points.
func (e *Engine) TokenBuffer(tok common.Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.pools[tok]; ok {
		return p.bufferBps
	}
	return e.defaultBufferBps
}

// StrategyOf returns the address of the token's active strategy, or
// the zero address when none is set.
func (e *Engine) StrategyOf(tok common.Address) common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.pools[tok]; ok && p.strategy != nil {
		return p.strategy.Address()
	}
	return common.Address{}
}

// OrderHash returns the stored data hash for an order id, or false if
// the order does not exist.
func (e *Engine) OrderHash(id OrderID) (common.Hash, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.orders[id]
	return h, ok
}

// Paused reports whether order creation is blocked.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// ensureIdle withdraws from the strategy until at least amount of the
// token sits idle. Accounting is unchanged: funds only move from
// strategy-held to on-hand.
func (e *Engine) ensureIdle(tok common.Address, erc token.ERC20, amount *big.Int) error {
	idle := erc.BalanceOf(e.self)
	if idle.Cmp(amount) >= 0 {
		return nil
	}

	p, ok := e.pools[tok]
	if !ok || p.strategy == nil {
		return fmt.Errorf("insufficient idle balance for %s: have %s, need %s", tok.Hex(), idle, amount)
	}

	shortfall := new(big.Int).Sub(amount, idle)
	if err := p.strategy.Withdraw(tok, shortfall, e.self); err != nil {
		return fmt.Errorf("strategy withdraw %s of %s: %w", shortfall, tok.Hex(), err)
	}
	return nil
}
