// Package oracle provides swap-pair quotes from per-token USD price
// feeds. Prices carry 8 decimals, matching the Chainlink aggregator
// convention the feed data originates from.
package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/pkg/engine"
)

// ErrNoFeed is returned when a quoted token has no registered price.
var ErrNoFeed = errors.New("no price feed")

// PriceDecimals is the fixed-point precision of registered feeds.
const PriceDecimals = 8

const bpsDenominator = 10000

type feed struct {
	price    *big.Int // USD price, 8 decimals
	decimals uint8    // token decimals
}

// Static quotes pairs from registered USD prices. Quotes include a
// slippage-adjusted floor used as the execution minimum.
type Static struct {
	mu          sync.RWMutex
	feeds       map[common.Address]feed
	slippageBps uint64
}

// NewStatic creates an oracle applying slippageBps to every quote.
func NewStatic(slippageBps uint64) (*Static, error) {
	if slippageBps > bpsDenominator {
		return nil, fmt.Errorf("slippage %d exceeds %d bps", slippageBps, bpsDenominator)
	}
	return &Static{
		feeds:       make(map[common.Address]feed),
		slippageBps: slippageBps,
	}, nil
}

// SetPrice registers or updates a token's USD price feed.
func (s *Static) SetPrice(token common.Address, price *big.Int, decimals uint8) error {
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("price for %s must be positive", token.Hex())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[token] = feed{price: new(big.Int).Set(price), decimals: decimals}
	return nil
}

// Get quotes inputAmount of inputToken in outputToken units:
//
//	out = in * priceIn * 10^decOut / (priceOut * 10^decIn)
//
// floor division throughout, with the slippage floor shaved off the
// result in basis points.
func (s *Static) Get(inputToken, outputToken common.Address, inputAmount *big.Int) (engine.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.feeds[inputToken]
	if !ok {
		return engine.Quote{}, fmt.Errorf("%w: input %s", ErrNoFeed, inputToken.Hex())
	}
	out, ok := s.feeds[outputToken]
	if !ok {
		return engine.Quote{}, fmt.Errorf("%w: output %s", ErrNoFeed, outputToken.Hex())
	}

	// in * priceIn * 10^decOut
	num := new(big.Int).Mul(inputAmount, in.price)
	num.Mul(num, pow10(out.decimals))

	// priceOut * 10^decIn
	den := new(big.Int).Mul(out.price, pow10(in.decimals))

	amountOut := num.Quo(num, den)

	withSlippage := new(big.Int).Mul(amountOut, big.NewInt(int64(bpsDenominator-s.slippageBps)))
	withSlippage.Quo(withSlippage, big.NewInt(bpsDenominator))

	return engine.Quote{
		AmountOut:             amountOut,
		AmountOutWithSlippage: withSlippage,
	}, nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
