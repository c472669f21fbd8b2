package engine_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/pkg/engine"
)

func TestExecuteOrderSettlesThroughHandler(t *testing.T) {
	f := newFixture(t)
	f.tkb.Mint(swapAddr, big.NewInt(10_000_000))

	id, data := f.create(t, defaultParams(1_000_000))

	if err := f.eng.ExecuteOrder(bobAddr, id, data, swapAddr, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// handler swapped the full net amount at 2x into the recipient
	if got := f.balance(f.tkb, aliceAddr); got != 2_000_000 {
		t.Fatalf("alice output balance = %d, want 2000000", got)
	}
	if got := f.balance(f.tka, selfAddr); got != 0 {
		t.Fatalf("engine retains input = %d, want 0", got)
	}
	if got := f.eng.TotalShares(tkaAddr).Int64(); got != 0 {
		t.Fatalf("shares after execute = %d, want 0", got)
	}
	if _, ok := f.eng.OrderHash(id); ok {
		t.Fatal("order still exists after execute")
	}

	// settled orders cannot settle twice
	if err := f.eng.ExecuteOrder(bobAddr, id, data, swapAddr, nil); !errors.Is(err, engine.ErrOrderNotFound) {
		t.Fatalf("second execute err = %v, want ErrOrderNotFound", err)
	}
}

func TestExecuteOrderPaysFees(t *testing.T) {
	f := newFixture(t)
	f.tkb.Mint(swapAddr, big.NewInt(10_000_000))

	if err := f.eng.UpdateTreasury(ownerAddr, treasuryAddr); err != nil {
		t.Fatalf("set treasury: %v", err)
	}
	if err := f.eng.UpdateProtocolFee(ownerAddr, 100); err != nil { // 1%
		t.Fatalf("set fee: %v", err)
	}

	p := defaultParams(1_000_000)
	p.ExecutionFee = big.NewInt(10_000)
	// net for swap: 1000000 - 10000 - 10000 = 980000, quoted 2x
	p.MinReturn = big.NewInt(1_960_000)
	id, data := f.create(t, p)

	if err := f.eng.ExecuteOrder(bobAddr, id, data, swapAddr, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got := f.balance(f.tka, bobAddr); got != 10_000 {
		t.Fatalf("executor fee = %d, want 10000", got)
	}
	if got := f.balance(f.tka, treasuryAddr); got != 10_000 {
		t.Fatalf("treasury fee = %d, want 10000", got)
	}
	if got := f.balance(f.tkb, aliceAddr); got != 1_960_000 {
		t.Fatalf("recipient output = %d, want 1960000", got)
	}
}

func TestExecuteOrderIncludesAccruedYield(t *testing.T) {
	f := newFixture(t)
	f.tkb.Mint(swapAddr, big.NewInt(10_000_000))

	p := defaultParams(1_000_000)
	id, data := f.create(t, p)

	// 10% yield lands in the strategy while the order waits
	f.tka.Mint(stratAddr, big.NewInt(100_000))

	if err := f.eng.ExecuteOrder(bobAddr, id, data, swapAddr, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	// redeemed 1100000 swapped at 2x, quote above minReturn passes through
	if got := f.balance(f.tkb, aliceAddr); got != 2_200_000 {
		t.Fatalf("recipient output = %d, want 2200000", got)
	}
}

func TestExecuteHonorsExecutorAuthorization(t *testing.T) {
	f := newFixture(t)
	f.tkb.Mint(swapAddr, big.NewInt(10_000_000))

	// named executor: only bob may settle
	id, data := f.create(t, defaultParams(1_000))
	if err := f.eng.ExecuteOrder(carolAddr, id, data, swapAddr, nil); !errors.Is(err, engine.ErrExecutorMismatch) {
		t.Fatalf("err = %v, want ErrExecutorMismatch", err)
	}
	if err := f.eng.ExecuteOrder(bobAddr, id, data, swapAddr, nil); err != nil {
		t.Fatalf("named executor rejected: %v", err)
	}

	// wildcard executor: any approved executor may settle
	p := defaultParams(1_000)
	p.Executor = engine.AnyExecutor
	id, data = f.create(t, p)
	if err := f.eng.ExecuteOrder(carolAddr, id, data, swapAddr, nil); !errors.Is(err, engine.ErrExecutorMismatch) {
		t.Fatalf("unapproved caller err = %v, want ErrExecutorMismatch", err)
	}
	if err := f.eng.ApproveExecutors(ownerAddr, []common.Address{carolAddr}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.eng.ExecuteOrder(carolAddr, id, data, swapAddr, nil); err != nil {
		t.Fatalf("approved executor rejected: %v", err)
	}
}

func TestExecuteRejectsTamperedData(t *testing.T) {
	f := newFixture(t)
	id, data := f.create(t, defaultParams(1_000))

	tampered := make([]byte, len(data))
	copy(tampered, data)
	tampered[len(tampered)-1] ^= 0x01

	if err := f.eng.ExecuteOrder(bobAddr, id, tampered, swapAddr, nil); !errors.Is(err, engine.ErrOrderMismatch) {
		t.Fatalf("err = %v, want ErrOrderMismatch", err)
	}
}

func TestExecuteRejectsUnknownHandler(t *testing.T) {
	f := newFixture(t)
	id, data := f.create(t, defaultParams(1_000))

	if err := f.eng.ExecuteOrder(bobAddr, id, data, carolAddr, nil); !errors.Is(err, engine.ErrInvalidHandler) {
		t.Fatalf("err = %v, want ErrInvalidHandler", err)
	}
}

func TestExecuteSlippageFailureRestoresOrder(t *testing.T) {
	f := newFixture(t)
	f.tkb.Mint(swapAddr, big.NewInt(10_000_000))

	// quote (2x) sits between stoploss (0 -> never) and a 3x minReturn,
	// so minOut pins to minReturn and the 2x handler cannot satisfy it
	p := defaultParams(1_000_000)
	p.MinReturn = big.NewInt(3_000_000)
	id, data := f.create(t, p)

	err := f.eng.ExecuteOrder(bobAddr, id, data, swapAddr, nil)
	if !errors.Is(err, engine.ErrSlippage) {
		t.Fatalf("err = %v, want ErrSlippage", err)
	}

	// full rollback: order, shares and balances are untouched
	if _, ok := f.eng.OrderHash(id); !ok {
		t.Fatal("order lost after failed execute")
	}
	if got := f.eng.TotalShares(tkaAddr).Int64(); got != 1_000_000 {
		t.Fatalf("shares = %d, want 1000000", got)
	}
	if got := f.balance(f.tka, selfAddr); got != 1_000_000 {
		t.Fatalf("engine balance = %d, want 1000000", got)
	}
	if got := f.balance(f.tkb, aliceAddr); got != 0 {
		t.Fatalf("recipient received output on failure: %d", got)
	}
}

func TestExecuteStoplossAllowsDistressedExit(t *testing.T) {
	f := newFixture(t)
	f.tkb.Mint(swapAddr, big.NewInt(10_000_000))

	// minReturn unreachable at 3x, but stoploss above the 2x quote
	// lets the order exit at the quoted price
	p := defaultParams(1_000_000)
	p.MinReturn = big.NewInt(3_000_000)
	p.Stoploss = big.NewInt(2_500_000)
	id, data := f.create(t, p)

	if err := f.eng.ExecuteOrder(bobAddr, id, data, swapAddr, nil); err != nil {
		t.Fatalf("distressed exit rejected: %v", err)
	}
	if got := f.balance(f.tkb, aliceAddr); got != 2_000_000 {
		t.Fatalf("recipient output = %d, want 2000000", got)
	}
}

func TestFillOrderSwapsAgainstCallerLiquidity(t *testing.T) {
	f := newFixture(t)

	id, data := f.create(t, defaultParams(1_000_000))

	// 10% yield before the fill
	f.tka.Mint(stratAddr, big.NewInt(100_000))

	f.tkb.Mint(bobAddr, big.NewInt(2_000_000))
	if err := f.eng.FillOrder(bobAddr, id, data, big.NewInt(2_000_000)); err != nil {
		t.Fatalf("fill: %v", err)
	}

	// recipient: the quoted output plus the yield in the input token
	if got := f.balance(f.tkb, aliceAddr); got != 2_000_000 {
		t.Fatalf("alice output = %d, want 2000000", got)
	}
	if got := f.balance(f.tka, aliceAddr); got != 100_000 {
		t.Fatalf("alice yield = %d, want 100000", got)
	}
	// filler: the principal
	if got := f.balance(f.tka, bobAddr); got != 1_000_000 {
		t.Fatalf("bob principal = %d, want 1000000", got)
	}
	if got := f.balance(f.tkb, bobAddr); got != 0 {
		t.Fatalf("bob output balance = %d, want 0", got)
	}
	if _, ok := f.eng.OrderHash(id); ok {
		t.Fatal("order still exists after fill")
	}
}

func TestFillOrderShortLiquidityRollsBack(t *testing.T) {
	f := newFixture(t)

	id, data := f.create(t, defaultParams(1_000_000))

	// bob has nothing to deliver
	err := f.eng.FillOrder(bobAddr, id, data, big.NewInt(2_000_000))
	if err == nil {
		t.Fatal("expected fill to fail on missing liquidity")
	}
	if _, ok := f.eng.OrderHash(id); !ok {
		t.Fatal("order lost after failed fill")
	}
	if got := f.eng.TotalShares(tkaAddr).Int64(); got != 1_000_000 {
		t.Fatalf("shares = %d, want 1000000", got)
	}
}

func TestFillOrderRejectsZeroQuote(t *testing.T) {
	f := newFixture(t)
	id, data := f.create(t, defaultParams(1_000))

	if err := f.eng.FillOrder(bobAddr, id, data, big.NewInt(0)); !errors.Is(err, engine.ErrZeroAmount) {
		t.Fatalf("err = %v, want ErrZeroAmount", err)
	}
}
