package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// SetStrategy attaches the first yield strategy for a token. Once one
// is set, changes must go through MigrateStrategy so funds are moved.
func (e *Engine) SetStrategy(caller common.Address, tok common.Address, strat Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if strat == nil {
		return fmt.Errorf("strategy: %w", ErrZeroAddress)
	}

	p := e.poolFor(tok)
	if p.strategy != nil {
		return fmt.Errorf("strategy already set for %s, use MigrateStrategy", tok.Hex())
	}
	p.strategy = strat
	if err := e.persistPool(tok); err != nil {
		e.log.Errorw("pool_persist_failed", "err", err, "token", tok.Hex())
	}

	e.log.Infow("strategy_set", "token", tok.Hex(), "strategy", strat.Address().Hex())
	return nil
}

// MigrateStrategy moves the token's entire invested balance out of the
// current strategy and hands the pool to newStrat (nil removes the
// strategy). The withdraw-all and the strategy swap happen under the
// engine lock, so no order operation can observe funds in neither
// strategy's accounting.
func (e *Engine) MigrateStrategy(caller common.Address, tok common.Address, newStrat Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}

	p, ok := e.pools[tok]
	if !ok || p.strategy == nil {
		return fmt.Errorf("%w: %s", ErrNoExistingStrategy, tok.Hex())
	}
	if newStrat != nil && newStrat.Address() == p.strategy.Address() {
		return fmt.Errorf("%w: %s", ErrSameStrategy, p.strategy.Address().Hex())
	}

	invested, err := p.strategy.TotalUnderlying(tok)
	if err != nil {
		return fmt.Errorf("old strategy underlying: %w", err)
	}
	if invested.Sign() > 0 {
		if err := p.strategy.Withdraw(tok, invested, e.self); err != nil {
			return fmt.Errorf("drain old strategy: %w", err)
		}
	}

	old := p.strategy
	p.strategy = newStrat
	if err := e.persistPool(tok); err != nil {
		e.log.Errorw("pool_persist_failed", "err", err, "token", tok.Hex())
	}

	if newStrat != nil {
		if err := e.rebalanceLocked(tok); err != nil {
			return fmt.Errorf("rebalance into new strategy: %w", err)
		}
		e.log.Infow("strategy_migrated",
			"token", tok.Hex(),
			"old", old.Address().Hex(),
			"new", newStrat.Address().Hex(),
			"moved", invested.String())
	} else {
		e.log.Infow("strategy_removed", "token", tok.Hex(), "old", old.Address().Hex(), "recalled", invested.String())
	}
	return nil
}
