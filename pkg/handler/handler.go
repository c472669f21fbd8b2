// Package handler holds swap executors the engine routes order
// settlement through. A handler receives the net input amount at its
// own address and must deliver at least the quoted minimum of the
// output token to the order recipient.
package handler

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/pkg/engine"
	"github.com/yieldswap/yieldswap/pkg/token"
)

// rateDenominator gives rates 18 fractional digits, enough headroom
// to convert between tokens of any decimal spread.
var rateDenominator = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// MockSwap swaps at fixed per-pair rates from its own inventory. The
// output side must be pre-funded; rates are fixed-point over 1e18 and
// apply to raw token units, so they absorb decimal differences.
type MockSwap struct {
	addr   common.Address
	tokens *token.Registry
	rates  map[[2]common.Address]*big.Int
}

func NewMockSwap(addr common.Address, tokens *token.Registry) *MockSwap {
	return &MockSwap{
		addr:   addr,
		tokens: tokens,
		rates:  make(map[[2]common.Address]*big.Int),
	}
}

func (h *MockSwap) Address() common.Address { return h.addr }

// SetRate fixes the in->out conversion rate, scaled by 1e18.
func (h *MockSwap) SetRate(in, out common.Address, rate *big.Int) {
	h.rates[[2]common.Address{in, out}] = new(big.Int).Set(rate)
}

// Handle converts the handler's full input-token balance at the pair
// rate and pays the output to the order recipient. Fails without
// paying if the result lands under minOut.
func (h *MockSwap) Handle(order *engine.Order, minOut *big.Int, extraData []byte) error {
	rate, ok := h.rates[[2]common.Address{order.InputToken, order.OutputToken}]
	if !ok {
		return fmt.Errorf("no rate for pair %s -> %s", order.InputToken.Hex(), order.OutputToken.Hex())
	}

	in, err := h.tokens.Token(order.InputToken)
	if err != nil {
		return err
	}
	out, err := h.tokens.Token(order.OutputToken)
	if err != nil {
		return err
	}

	amountIn := in.BalanceOf(h.addr)
	amountOut := new(big.Int).Mul(amountIn, rate)
	amountOut.Quo(amountOut, rateDenominator)

	if amountOut.Cmp(minOut) < 0 {
		return fmt.Errorf("%w: out %s below minimum %s", engine.ErrSlippage, amountOut, minOut)
	}
	if err := out.Transfer(h.addr, order.Recipient, amountOut); err != nil {
		return fmt.Errorf("handler payout: %w", err)
	}
	return nil
}
