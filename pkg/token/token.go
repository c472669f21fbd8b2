// Package token defines the ERC20 collaborator boundary the settlement
// engine operates against, plus in-memory implementations used by the
// devnet node and tests.
package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ERC20 is the narrow token contract surface the engine needs.
// Amounts are absolute token units; implementations must never mutate
// the *big.Int arguments.
type ERC20 interface {
	Address() common.Address
	Decimals() uint8
	BalanceOf(owner common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}

// Wrapped is a wrapped-native token: native coin paid in is minted
// as ERC20 balance to the depositor.
type Wrapped interface {
	ERC20
	Deposit(to common.Address, amount *big.Int) error
}

// Registry resolves token addresses to contract instances.
type Registry struct {
	mu     sync.RWMutex
	tokens map[common.Address]ERC20
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[common.Address]ERC20)}
}

func (r *Registry) Register(t ERC20) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.Address()] = t
}

func (r *Registry) Token(addr common.Address) (ERC20, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("token not registered: %s", addr.Hex())
	}
	return t, nil
}

// Wrapped returns the token at addr if it supports native deposits.
func (r *Registry) Wrapped(addr common.Address) (Wrapped, error) {
	t, err := r.Token(addr)
	if err != nil {
		return nil, err
	}
	w, ok := t.(Wrapped)
	if !ok {
		return nil, fmt.Errorf("token is not wrapped-native: %s", addr.Hex())
	}
	return w, nil
}

// Mock is an in-memory ERC20 ledger. Transfers are ledger-style: the
// caller names the debit account explicitly, allowance bookkeeping is
// out of scope for the engine's contract boundary.
type Mock struct {
	mu       sync.Mutex
	addr     common.Address
	symbol   string
	decimals uint8
	balances map[common.Address]*big.Int
}

func NewMock(addr common.Address, symbol string, decimals uint8) *Mock {
	return &Mock{
		addr:     addr,
		symbol:   symbol,
		decimals: decimals,
		balances: make(map[common.Address]*big.Int),
	}
}

func (m *Mock) Address() common.Address { return m.addr }
func (m *Mock) Symbol() string          { return m.symbol }
func (m *Mock) Decimals() uint8         { return m.decimals }

func (m *Mock) BalanceOf(owner common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (m *Mock) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%s: negative transfer amount", m.symbol)
	}
	if amount.Sign() == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		have := new(big.Int)
		if ok {
			have = bal
		}
		return fmt.Errorf("%s: insufficient balance: have %s, need %s", m.symbol, have, amount)
	}

	bal.Sub(bal, amount)
	m.creditLocked(to, amount)
	return nil
}

// Mint credits freshly minted tokens to an account. Test and devnet
// faucet only.
func (m *Mock) Mint(to common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creditLocked(to, amount)
}

func (m *Mock) creditLocked(to common.Address, amount *big.Int) {
	if b, ok := m.balances[to]; ok {
		b.Add(b, amount)
		return
	}
	m.balances[to] = new(big.Int).Set(amount)
}

// WrappedMock is a Mock that also accepts native-coin deposits,
// minting wrapped balance 1:1.
type WrappedMock struct {
	Mock
}

func NewWrappedMock(addr common.Address, symbol string, decimals uint8) *WrappedMock {
	return &WrappedMock{Mock: Mock{
		addr:     addr,
		symbol:   symbol,
		decimals: decimals,
		balances: make(map[common.Address]*big.Int),
	}}
}

func (w *WrappedMock) Deposit(to common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%s: deposit amount must be positive", w.symbol)
	}
	w.Mint(to, amount)
	return nil
}
