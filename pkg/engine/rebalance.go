package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RebalanceTokens moves each token's idle balance toward its buffer
// target, depositing surplus into the strategy or pulling shortfall
// back out. The batch is all-or-nothing: the first token without a
// strategy fails the whole call and no later token is touched.
// Rebalancing never changes share totals or total underlying, only the
// idle/invested split.
func (e *Engine) RebalanceTokens(tokens []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, tok := range tokens {
		if err := e.rebalanceLocked(tok); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) rebalanceLocked(tok common.Address) error {
	p, ok := e.pools[tok]
	if !ok || p.strategy == nil {
		return fmt.Errorf("%w: %s", ErrInvalidStrategy, tok.Hex())
	}

	erc, err := e.tokens.Token(tok)
	if err != nil {
		return err
	}

	underlying, err := e.totalUnderlyingLocked(tok)
	if err != nil {
		return err
	}

	target := new(big.Int).Mul(underlying, new(big.Int).SetUint64(p.bufferBps))
	target.Quo(target, big.NewInt(bpsDenominator))

	idle := erc.BalanceOf(e.self)
	switch idle.Cmp(target) {
	case 1:
		surplus := new(big.Int).Sub(idle, target)
		if err := erc.Transfer(e.self, p.strategy.Address(), surplus); err != nil {
			return fmt.Errorf("fund strategy: %w", err)
		}
		if err := p.strategy.Deposit(tok, surplus); err != nil {
			if rbErr := erc.Transfer(p.strategy.Address(), e.self, surplus); rbErr != nil {
				e.log.Errorw("strategy_fund_unwind_failed", "err", rbErr, "token", tok.Hex())
			}
			return fmt.Errorf("strategy deposit: %w", err)
		}
		e.log.Infow("rebalanced", "token", tok.Hex(), "deposited", surplus.String(), "idle", target.String())
	case -1:
		shortfall := new(big.Int).Sub(target, idle)
		invested, err := p.strategy.TotalUnderlying(tok)
		if err != nil {
			return fmt.Errorf("strategy underlying: %w", err)
		}
		if shortfall.Cmp(invested) > 0 {
			shortfall.Set(invested)
		}
		if shortfall.Sign() == 0 {
			return nil
		}
		if err := p.strategy.Withdraw(tok, shortfall, e.self); err != nil {
			return fmt.Errorf("strategy withdraw: %w", err)
		}
		e.log.Infow("rebalanced", "token", tok.Hex(), "withdrawn", shortfall.String())
	}
	return nil
}
