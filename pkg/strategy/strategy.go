// Package strategy holds yield adapters the engine parks idle funds
// into. Each adapter fronts one lending-market integration behind the
// engine.Strategy interface.
package strategy

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/pkg/token"
)

// MockYield is an in-memory strategy for the devnet node and tests.
// Deposited funds sit at the strategy's own address in the token
// ledger; yield is simulated by minting extra balance to that address.
type MockYield struct {
	addr   common.Address
	tokens *token.Registry
}

func NewMockYield(addr common.Address, tokens *token.Registry) *MockYield {
	return &MockYield{addr: addr, tokens: tokens}
}

func (s *MockYield) Address() common.Address { return s.addr }

// Deposit acknowledges funds already transferred to the strategy
// address. The engine moves the tokens before calling.
func (s *MockYield) Deposit(tok common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("strategy deposit: negative amount %s", amount)
	}
	if _, err := s.tokens.Token(tok); err != nil {
		return err
	}
	return nil
}

func (s *MockYield) Withdraw(tok common.Address, amount *big.Int, recipient common.Address) error {
	if amount.Sign() == 0 {
		return nil
	}
	erc, err := s.tokens.Token(tok)
	if err != nil {
		return err
	}
	if err := erc.Transfer(s.addr, recipient, amount); err != nil {
		return fmt.Errorf("strategy withdraw: %w", err)
	}
	return nil
}

func (s *MockYield) TotalUnderlying(tok common.Address) (*big.Int, error) {
	erc, err := s.tokens.Token(tok)
	if err != nil {
		return nil, err
	}
	return erc.BalanceOf(s.addr), nil
}
