package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Share accounting converts between absolute token amounts and pool
// shares. Division always floors, so the pool can never pay out more
// than it holds: residual dust accrues to remaining share-holders.

// amountToSharesLocked converts a deposit amount to shares against the
// pool balance snapshot taken before the deposit was counted. First
// deposit bootstraps 1:1.
func (e *Engine) amountToSharesLocked(tok common.Address, amount, prevUnderlying *big.Int) (*big.Int, error) {
	p := e.poolFor(tok)
	if p.totalShares.Sign() == 0 {
		return new(big.Int).Set(amount), nil
	}
	if prevUnderlying.Sign() <= 0 {
		return nil, fmt.Errorf("share price undefined for %s: %s shares against empty pool", tok.Hex(), p.totalShares)
	}
	shares := new(big.Int).Mul(amount, p.totalShares)
	return shares.Quo(shares, prevUnderlying), nil
}

// sharesToAmountLocked converts shares back to an absolute amount at
// the current share price.
func (e *Engine) sharesToAmountLocked(tok common.Address, shares *big.Int) (*big.Int, error) {
	p, ok := e.pools[tok]
	if !ok || p.totalShares.Sign() == 0 {
		if shares.Sign() == 0 {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("%w: token %s", ErrNoShares, tok.Hex())
	}

	underlying, err := e.totalUnderlyingLocked(tok)
	if err != nil {
		return nil, err
	}

	amount := new(big.Int).Mul(shares, underlying)
	return amount.Quo(amount, p.totalShares), nil
}

// SharesToAmount is the exported read-only conversion.
func (e *Engine) SharesToAmount(tok common.Address, shares *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sharesToAmountLocked(tok, shares)
}
