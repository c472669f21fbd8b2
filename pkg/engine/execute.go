package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// checkExecutor enforces executor authorization: a named executor must
// be the caller; the wildcard opens the order to any approved executor.
func (e *Engine) checkExecutor(caller common.Address, ord *Order) error {
	if ord.Executor != AnyExecutor {
		if caller != ord.Executor {
			return fmt.Errorf("%w: caller %s, executor %s", ErrExecutorMismatch, caller.Hex(), ord.Executor.Hex())
		}
		return nil
	}
	if !e.executors[caller] {
		return fmt.Errorf("%w: caller %s not an approved executor", ErrExecutorMismatch, caller.Hex())
	}
	return nil
}

// redeemLocked clears the order's existence flag, burns its shares and
// makes the redeemed amount idle. Returns the redeemed amount and an
// undo closure restoring existence and share totals.
func (e *Engine) redeemLocked(id OrderID, dataHash common.Hash, ord *Order) (*big.Int, func(), error) {
	redeemed, err := e.sharesToAmountLocked(ord.InputToken, ord.ShareAmount)
	if err != nil {
		return nil, nil, err
	}

	// effects before interactions: once the existence flag is gone a
	// reentrant or racing call sees OrderNotFound
	if err := e.dropOrder(id); err != nil {
		return nil, nil, fmt.Errorf("clear order: %w", err)
	}
	p := e.poolFor(ord.InputToken)
	p.totalShares.Sub(p.totalShares, ord.ShareAmount)
	if err := e.persistPool(ord.InputToken); err != nil {
		e.log.Errorw("pool_persist_failed", "err", err, "token", ord.InputToken.Hex())
	}

	undo := func() {
		p.totalShares.Add(p.totalShares, ord.ShareAmount)
		if err := e.putOrder(id, dataHash); err != nil {
			e.log.Errorw("order_restore_failed", "err", err, "id", id.Hex())
		}
		if err := e.persistPool(ord.InputToken); err != nil {
			e.log.Errorw("pool_persist_failed", "err", err, "token", ord.InputToken.Hex())
		}
	}

	erc, err := e.tokens.Token(ord.InputToken)
	if err != nil {
		undo()
		return nil, nil, err
	}
	if err := e.ensureIdle(ord.InputToken, erc, redeemed); err != nil {
		undo()
		return nil, nil, err
	}
	return redeemed, undo, nil
}

// ExecuteOrder settles an order through a registered swap handler. The
// redeemed deposit (principal plus accrued yield) is split into the
// execution fee for the caller, the protocol fee for the treasury, and
// the net swap amount handed to the handler, which must deliver at
// least the effective minimum output to the order recipient.
func (e *Engine) ExecuteOrder(caller common.Address, id OrderID, data []byte, handlerAddr common.Address, extraData []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ord, err := e.checkOrder(id, data)
	if err != nil {
		return err
	}
	if err := e.checkExecutor(caller, ord); err != nil {
		return err
	}
	h, ok := e.handlers[handlerAddr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidHandler, handlerAddr.Hex())
	}

	dataHash := HashOrderData(data)
	redeemed, undo, err := e.redeemLocked(id, dataHash, ord)
	if err != nil {
		return err
	}

	protocolFee := e.protocolFeeLocked(ord.InputAmount)
	netForSwap := new(big.Int).Sub(redeemed, ord.ExecutionFee)
	netForSwap.Sub(netForSwap, protocolFee)
	if netForSwap.Sign() <= 0 {
		undo()
		return fmt.Errorf("fees exhaust redeemed amount: redeemed %s, execution fee %s, protocol fee %s",
			redeemed, ord.ExecutionFee, protocolFee)
	}

	quote, err := e.oracle.Get(ord.InputToken, ord.OutputToken, netForSwap)
	if err != nil {
		undo()
		return fmt.Errorf("oracle quote: %w", err)
	}
	minOut := effectiveMinOut(quote.AmountOutWithSlippage, ord.MinReturn, ord.Stoploss)

	erc, err := e.tokens.Token(ord.InputToken)
	if err != nil {
		undo()
		return err
	}

	type payout struct {
		to     common.Address
		amount *big.Int
	}
	var paid []payout
	unwind := func() {
		for i := len(paid) - 1; i >= 0; i-- {
			if err := erc.Transfer(paid[i].to, e.self, paid[i].amount); err != nil {
				e.log.Errorw("payout_unwind_failed", "err", err, "to", paid[i].to.Hex())
			}
		}
		undo()
	}
	pay := func(to common.Address, amount *big.Int) error {
		if amount.Sign() == 0 {
			return nil
		}
		if err := erc.Transfer(e.self, to, amount); err != nil {
			return err
		}
		paid = append(paid, payout{to, amount})
		return nil
	}

	if err := pay(caller, ord.ExecutionFee); err != nil {
		unwind()
		return fmt.Errorf("pay execution fee: %w", err)
	}
	if err := pay(e.treasury, protocolFee); err != nil {
		unwind()
		return fmt.Errorf("pay protocol fee: %w", err)
	}
	if err := pay(handlerAddr, netForSwap); err != nil {
		unwind()
		return fmt.Errorf("fund handler: %w", err)
	}

	if err := h.Handle(ord, minOut, extraData); err != nil {
		unwind()
		return fmt.Errorf("handler %s: %w", handlerAddr.Hex(), err)
	}

	e.log.Infow("order_executed",
		"id", id.Hex(),
		"executor", caller.Hex(),
		"redeemed", redeemed.String(),
		"min_out", minOut.String())

	e.emit(Event{Type: EventOrderExecuted, OrderID: id})
	return nil
}

// FillOrder settles an order against the caller's own liquidity: the
// caller delivers quoteAmount of the output token to the recipient and
// takes the order's principal (minus protocol fee) in return. Accrued
// yield goes to the recipient in the input token. The quote is not
// checked against the oracle; the atomic output transfer is the
// enforcement.
func (e *Engine) FillOrder(caller common.Address, id OrderID, data []byte, quoteAmount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ord, err := e.checkOrder(id, data)
	if err != nil {
		return err
	}
	if err := e.checkExecutor(caller, ord); err != nil {
		return err
	}
	if quoteAmount == nil || quoteAmount.Sign() <= 0 {
		return fmt.Errorf("quote amount: %w", ErrZeroAmount)
	}

	outErC, err := e.tokens.Token(ord.OutputToken)
	if err != nil {
		return err
	}
	inErc, err := e.tokens.Token(ord.InputToken)
	if err != nil {
		return err
	}

	dataHash := HashOrderData(data)
	redeemed, undo, err := e.redeemLocked(id, dataHash, ord)
	if err != nil {
		return err
	}

	// caller's side first: if their liquidity is short, nothing moved
	if err := outErC.Transfer(caller, ord.Recipient, quoteAmount); err != nil {
		undo()
		return fmt.Errorf("deliver quote: %w", err)
	}

	protocolFee := e.protocolFeeLocked(ord.InputAmount)
	yieldEarned := new(big.Int).Sub(redeemed, ord.InputAmount)
	if yieldEarned.Sign() < 0 {
		yieldEarned.SetInt64(0)
	}
	callerTake := new(big.Int).Sub(redeemed, yieldEarned)
	callerTake.Sub(callerTake, protocolFee)

	unwindQuote := func() {
		if err := outErC.Transfer(ord.Recipient, caller, quoteAmount); err != nil {
			e.log.Errorw("quote_unwind_failed", "err", err)
		}
		undo()
	}

	if callerTake.Sign() > 0 {
		if err := inErc.Transfer(e.self, caller, callerTake); err != nil {
			unwindQuote()
			return fmt.Errorf("pay filler: %w", err)
		}
	}
	if protocolFee.Sign() > 0 {
		if err := inErc.Transfer(e.self, e.treasury, protocolFee); err != nil {
			unwindQuote()
			return fmt.Errorf("pay protocol fee: %w", err)
		}
	}
	if yieldEarned.Sign() > 0 {
		if err := inErc.Transfer(e.self, ord.Recipient, yieldEarned); err != nil {
			unwindQuote()
			return fmt.Errorf("pay yield: %w", err)
		}
	}

	e.log.Infow("order_filled",
		"id", id.Hex(),
		"filler", caller.Hex(),
		"quote", quoteAmount.String(),
		"redeemed", redeemed.String())

	e.emit(Event{Type: EventOrderExecuted, OrderID: id})
	return nil
}
