package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CreateParams are the caller-supplied fields of a new order. Creator
// may differ from the caller: funds are always pulled from the caller,
// the order is owned by Creator.
type CreateParams struct {
	Recipient    common.Address
	InputToken   common.Address
	OutputToken  common.Address
	InputAmount  *big.Int
	MinReturn    *big.Int
	Stoploss     *big.Int
	Executor     common.Address
	ExecutionFee *big.Int
	Creator      common.Address
}

func (p *CreateParams) validate() error {
	if p.Recipient == zeroAddress || p.Creator == zeroAddress {
		return fmt.Errorf("recipient/creator: %w", ErrZeroAddress)
	}
	if p.InputAmount == nil || p.InputAmount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if p.MinReturn == nil || p.MinReturn.Sign() <= 0 {
		return fmt.Errorf("min return: %w", ErrZeroAmount)
	}
	if p.Stoploss == nil || p.Stoploss.Sign() < 0 {
		return fmt.Errorf("stoploss cannot be negative")
	}
	if p.ExecutionFee == nil || p.ExecutionFee.Sign() < 0 {
		return fmt.Errorf("execution fee cannot be negative")
	}
	if p.ExecutionFee.Sign() != 0 && p.ExecutionFee.Cmp(p.InputAmount) >= 0 {
		return ErrInvalidExecutionFee
	}
	return nil
}

// CreateOrder pulls InputAmount of the input token from caller,
// converts it to pool shares at the pre-deposit share price, and
// stores the new order's existence hash. Returns the order id and the
// opaque order-data payload the caller must retain.
func (e *Engine) CreateOrder(caller common.Address, p CreateParams) (OrderID, []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return OrderID{}, nil, ErrPaused
	}
	if err := p.validate(); err != nil {
		return OrderID{}, nil, err
	}
	if !e.whitelisted[p.InputToken] {
		return OrderID{}, nil, fmt.Errorf("%w: %s", ErrInvalidToken, p.InputToken.Hex())
	}

	erc, err := e.tokens.Token(p.InputToken)
	if err != nil {
		return OrderID{}, nil, err
	}
	if err := erc.Transfer(caller, e.self, p.InputAmount); err != nil {
		return OrderID{}, nil, fmt.Errorf("pull deposit: %w", err)
	}

	id, data, err := e.finishCreateLocked(p)
	if err != nil {
		// return the deposit, nothing else has changed
		if rbErr := erc.Transfer(e.self, caller, p.InputAmount); rbErr != nil {
			e.log.Errorw("deposit_rollback_failed", "err", rbErr, "token", p.InputToken.Hex())
		}
		return OrderID{}, nil, err
	}
	return id, data, nil
}

// CreateNativeOrder accepts the chain-native coin as deposit. value is
// the attached payment; accounting runs against the configured
// wrapped-native token.
func (e *Engine) CreateNativeOrder(caller common.Address, p CreateParams, value *big.Int) (OrderID, []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return OrderID{}, nil, ErrPaused
	}
	p.InputToken = e.wrappedNative
	p.InputAmount = value
	if err := p.validate(); err != nil {
		return OrderID{}, nil, err
	}
	if !e.whitelisted[e.wrappedNative] {
		return OrderID{}, nil, fmt.Errorf("%w: %s", ErrInvalidToken, e.wrappedNative.Hex())
	}

	wtok, err := e.tokens.Wrapped(e.wrappedNative)
	if err != nil {
		return OrderID{}, nil, err
	}
	if err := wtok.Deposit(e.self, value); err != nil {
		return OrderID{}, nil, fmt.Errorf("wrap native deposit: %w", err)
	}

	id, data, err := e.finishCreateLocked(p)
	if err != nil {
		if rbErr := wtok.Transfer(e.self, caller, value); rbErr != nil {
			e.log.Errorw("deposit_rollback_failed", "err", rbErr, "token", e.wrappedNative.Hex())
		}
		return OrderID{}, nil, err
	}
	return id, data, nil
}

// finishCreateLocked runs the shared tail of order creation: share
// conversion against the pre-deposit balance, id derivation, and
// existence storage. The deposit has already arrived at e.self.
func (e *Engine) finishCreateLocked(p CreateParams) (OrderID, []byte, error) {
	underlying, err := e.totalUnderlyingLocked(p.InputToken)
	if err != nil {
		return OrderID{}, nil, err
	}
	prevUnderlying := new(big.Int).Sub(underlying, p.InputAmount)

	shares, err := e.amountToSharesLocked(p.InputToken, p.InputAmount, prevUnderlying)
	if err != nil {
		return OrderID{}, nil, err
	}

	ord := &Order{
		Creator:      p.Creator,
		Recipient:    p.Recipient,
		InputToken:   p.InputToken,
		OutputToken:  p.OutputToken,
		InputAmount:  new(big.Int).Set(p.InputAmount),
		MinReturn:    new(big.Int).Set(p.MinReturn),
		Stoploss:     new(big.Int).Set(p.Stoploss),
		ShareAmount:  shares,
		Executor:     p.Executor,
		ExecutionFee: new(big.Int).Set(p.ExecutionFee),
	}

	timestamp := e.clock.Now().Unix()
	id, err := OrderIDOf(ord, timestamp)
	if err != nil {
		return OrderID{}, nil, err
	}
	if _, exists := e.orders[id]; exists {
		return OrderID{}, nil, fmt.Errorf("%w: %s", ErrOrderExists, id.Hex())
	}

	data, err := EncodeOrder(ord)
	if err != nil {
		return OrderID{}, nil, err
	}

	pl := e.poolFor(p.InputToken)
	pl.totalShares.Add(pl.totalShares, shares)

	if err := e.putOrder(id, HashOrderData(data)); err != nil {
		pl.totalShares.Sub(pl.totalShares, shares)
		return OrderID{}, nil, fmt.Errorf("persist order: %w", err)
	}
	if err := e.persistPool(p.InputToken); err != nil {
		e.log.Errorw("pool_persist_failed", "err", err, "token", p.InputToken.Hex())
	}

	e.log.Infow("order_created",
		"id", id.Hex(),
		"creator", ord.Creator.Hex(),
		"input_token", ord.InputToken.Hex(),
		"input_amount", ord.InputAmount.String(),
		"shares", shares.String())

	e.emit(Event{Type: EventOrderCreated, OrderID: id, Data: data})
	return id, data, nil
}
