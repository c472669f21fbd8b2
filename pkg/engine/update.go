package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UpdateParams are the mutable order fields. Creator, input token,
// input amount and shares are fixed for the life of an order.
type UpdateParams struct {
	Recipient    common.Address
	OutputToken  common.Address
	MinReturn    *big.Int
	Stoploss     *big.Int
	Executor     common.Address
	ExecutionFee *big.Int
}

// UpdateOrder re-derives the order under a new id reflecting the
// changed fields and the current timestamp, carrying the share amount
// over unchanged. Only the order creator may update. The old id is
// cleared and the new one stored in the same step, so no concurrent
// operation can observe both or neither.
func (e *Engine) UpdateOrder(caller common.Address, id OrderID, data []byte, p UpdateParams) (OrderID, []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old, err := e.checkOrder(id, data)
	if err != nil {
		return OrderID{}, nil, err
	}
	if caller != old.Creator {
		return OrderID{}, nil, fmt.Errorf("%w: only creator may update", ErrUnauthorized)
	}

	updated := &Order{
		Creator:      old.Creator,
		Recipient:    p.Recipient,
		InputToken:   old.InputToken,
		OutputToken:  p.OutputToken,
		InputAmount:  old.InputAmount,
		MinReturn:    p.MinReturn,
		Stoploss:     p.Stoploss,
		ShareAmount:  old.ShareAmount,
		Executor:     p.Executor,
		ExecutionFee: p.ExecutionFee,
	}

	cp := CreateParams{
		Recipient:    updated.Recipient,
		InputToken:   updated.InputToken,
		OutputToken:  updated.OutputToken,
		InputAmount:  updated.InputAmount,
		MinReturn:    updated.MinReturn,
		Stoploss:     updated.Stoploss,
		Executor:     updated.Executor,
		ExecutionFee: updated.ExecutionFee,
		Creator:      updated.Creator,
	}
	if err := cp.validate(); err != nil {
		return OrderID{}, nil, err
	}

	timestamp := e.clock.Now().Unix()
	newID, err := OrderIDOf(updated, timestamp)
	if err != nil {
		return OrderID{}, nil, err
	}
	if _, exists := e.orders[newID]; exists {
		return OrderID{}, nil, fmt.Errorf("%w: %s", ErrOrderExists, newID.Hex())
	}

	newData, err := EncodeOrder(updated)
	if err != nil {
		return OrderID{}, nil, err
	}

	if err := e.dropOrder(id); err != nil {
		return OrderID{}, nil, fmt.Errorf("clear old order: %w", err)
	}
	if err := e.putOrder(newID, HashOrderData(newData)); err != nil {
		if rbErr := e.putOrder(id, HashOrderData(data)); rbErr != nil {
			e.log.Errorw("order_restore_failed", "err", rbErr, "id", id.Hex())
		}
		return OrderID{}, nil, fmt.Errorf("store updated order: %w", err)
	}

	e.log.Infow("order_updated", "id", id.Hex(), "new_id", newID.Hex())
	e.emit(Event{Type: EventOrderUpdated, OrderID: id, NewOrderID: newID, Data: newData})
	return newID, newData, nil
}
