package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CancelOrder tears an order down and returns its funds to the order
// recipient. Anyone may cancel: the payout destination is fixed by the
// order data, so a third-party cancel can only do the recipient a
// favor. Yield earned while deposited is charged the cancellation fee;
// principal is returned in full. Cancellation stays available while
// the engine is paused so users can always exit.
func (e *Engine) CancelOrder(caller common.Address, id OrderID, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ord, err := e.checkOrder(id, data)
	if err != nil {
		return err
	}

	dataHash := HashOrderData(data)
	redeemed, undo, err := e.redeemLocked(id, dataHash, ord)
	if err != nil {
		return err
	}

	yieldEarned := new(big.Int).Sub(redeemed, ord.InputAmount)
	if yieldEarned.Sign() < 0 {
		yieldEarned.SetInt64(0)
	}
	fee := e.cancellationFeeLocked(yieldEarned)
	refund := new(big.Int).Sub(redeemed, fee)

	erc, err := e.tokens.Token(ord.InputToken)
	if err != nil {
		undo()
		return err
	}

	if err := erc.Transfer(e.self, ord.Recipient, refund); err != nil {
		undo()
		return fmt.Errorf("refund recipient: %w", err)
	}
	if fee.Sign() > 0 {
		if err := erc.Transfer(e.self, e.treasury, fee); err != nil {
			if rbErr := erc.Transfer(ord.Recipient, e.self, refund); rbErr != nil {
				e.log.Errorw("refund_unwind_failed", "err", rbErr)
			}
			undo()
			return fmt.Errorf("pay cancellation fee: %w", err)
		}
	}

	e.log.Infow("order_cancelled",
		"id", id.Hex(),
		"caller", caller.Hex(),
		"refund", refund.String(),
		"cancellation_fee", fee.String())

	e.emit(Event{Type: EventOrderCancelled, OrderID: id})
	return nil
}
