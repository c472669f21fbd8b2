package handler

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/pkg/engine"
	"github.com/yieldswap/yieldswap/pkg/token"
)

var (
	swapAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	aliceAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	wethAddr  = common.HexToAddress("0x0000000000000000000000000000000000000e01")
	usdcAddr  = common.HexToAddress("0x0000000000000000000000000000000000000e02")
)

func newSwapFixture(t *testing.T) (*MockSwap, *token.Mock, *token.Mock) {
	t.Helper()
	reg := token.NewRegistry()
	weth := token.NewMock(wethAddr, "WETH", 18)
	usdc := token.NewMock(usdcAddr, "USDC", 6)
	reg.Register(weth)
	reg.Register(usdc)
	return NewMockSwap(swapAddr, reg), weth, usdc
}

func swapOrder() *engine.Order {
	return &engine.Order{
		Creator:     aliceAddr,
		Recipient:   aliceAddr,
		InputToken:  wethAddr,
		OutputToken: usdcAddr,
	}
}

func TestHandleConvertsAcrossDecimals(t *testing.T) {
	swap, weth, usdc := newSwapFixture(t)

	// 1 WETH (18 decimals) at $3000 into USDC (6 decimals).
	swap.SetRate(wethAddr, usdcAddr, big.NewInt(3000_000000))
	weth.Mint(swapAddr, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	usdc.Mint(swapAddr, big.NewInt(10_000_000000))

	if err := swap.Handle(swapOrder(), big.NewInt(2999_000000), nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := usdc.BalanceOf(aliceAddr); got.Cmp(big.NewInt(3000_000000)) != 0 {
		t.Fatalf("recipient got %s usdc, want 3000000000", got)
	}
}

func TestHandleFailsBelowMinOutWithoutPaying(t *testing.T) {
	swap, weth, usdc := newSwapFixture(t)

	swap.SetRate(wethAddr, usdcAddr, big.NewInt(3000_000000))
	weth.Mint(swapAddr, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	usdc.Mint(swapAddr, big.NewInt(10_000_000000))

	err := swap.Handle(swapOrder(), big.NewInt(3001_000000), nil)
	if !errors.Is(err, engine.ErrSlippage) {
		t.Fatalf("want ErrSlippage, got %v", err)
	}
	if got := usdc.BalanceOf(aliceAddr); got.Sign() != 0 {
		t.Fatalf("recipient paid %s despite slippage failure", got)
	}
}

func TestHandleRequiresRateAndInventory(t *testing.T) {
	swap, weth, _ := newSwapFixture(t)

	weth.Mint(swapAddr, big.NewInt(1))
	if err := swap.Handle(swapOrder(), big.NewInt(0), nil); err == nil {
		t.Fatal("expected error for missing pair rate")
	}

	// Rate present but no output inventory to pay from.
	swap.SetRate(wethAddr, usdcAddr, big.NewInt(3000_000000))
	weth.Mint(swapAddr, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	if err := swap.Handle(swapOrder(), big.NewInt(0), nil); err == nil {
		t.Fatal("expected error for unfunded output side")
	}
}
