package engine_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/yieldswap/yieldswap/pkg/engine"
)

func TestCreateOrderPullsDepositAndMintsShares(t *testing.T) {
	f := newFixture(t)

	id, data := f.create(t, defaultParams(1_000_000))

	if got := f.balance(f.tka, aliceAddr); got != 0 {
		t.Fatalf("alice balance after deposit = %d, want 0", got)
	}
	if got := f.balance(f.tka, selfAddr); got != 1_000_000 {
		t.Fatalf("engine balance = %d, want 1000000", got)
	}
	// bootstrap mints shares 1:1
	if got := f.eng.TotalShares(tkaAddr).Int64(); got != 1_000_000 {
		t.Fatalf("total shares = %d, want 1000000", got)
	}

	h, ok := f.eng.OrderHash(id)
	if !ok {
		t.Fatal("order not stored")
	}
	if h != engine.HashOrderData(data) {
		t.Fatal("stored hash does not match order data")
	}

	ord, err := engine.DecodeOrder(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ord.ShareAmount.Int64() != 1_000_000 {
		t.Fatalf("share amount = %s, want 1000000", ord.ShareAmount)
	}
}

func TestCreateSecondDepositConvertsAtSharePrice(t *testing.T) {
	f := newFixture(t)

	f.create(t, defaultParams(1_000_000))

	// double the pool without minting shares: share price is now 2
	f.tka.Mint(selfAddr, big.NewInt(1_000_000))

	_, data := f.create(t, defaultParams(1_000_000))
	ord, err := engine.DecodeOrder(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ord.ShareAmount.Int64() != 500_000 {
		t.Fatalf("second deposit shares = %s, want 500000", ord.ShareAmount)
	}
	if got := f.eng.TotalShares(tkaAddr).Int64(); got != 1_500_000 {
		t.Fatalf("total shares = %d, want 1500000", got)
	}
}

func TestCreateShareFloorDivision(t *testing.T) {
	f := newFixture(t)

	f.create(t, defaultParams(2))

	// huge yield against 2 shares
	f.tka.Mint(selfAddr, big.NewInt(1_000_000_000_000))

	p := defaultParams(1_000_000_000_002)
	_, data := f.create(t, p)
	ord, err := engine.DecodeOrder(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 1000000000002 * 2 / 1000000000002 = 2
	if ord.ShareAmount.Int64() != 2 {
		t.Fatalf("shares = %s, want 2", ord.ShareAmount)
	}
}

func TestCreateRejectsUnknownToken(t *testing.T) {
	f := newFixture(t)

	p := defaultParams(1_000)
	p.InputToken = carolAddr // not a token
	f.tka.Mint(aliceAddr, p.InputAmount)
	if _, _, err := f.eng.CreateOrder(aliceAddr, p); !errors.Is(err, engine.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		mutate func(*engine.CreateParams)
		want   error
	}{
		{"zero amount", func(p *engine.CreateParams) { p.InputAmount = big.NewInt(0) }, engine.ErrZeroAmount},
		{"zero min return", func(p *engine.CreateParams) { p.MinReturn = big.NewInt(0) }, engine.ErrZeroAmount},
		{"zero recipient", func(p *engine.CreateParams) { p.Recipient = zeroAddr() }, engine.ErrZeroAddress},
		{"fee swallows deposit", func(p *engine.CreateParams) { p.ExecutionFee = big.NewInt(1_000) }, engine.ErrInvalidExecutionFee},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := defaultParams(1_000)
			tc.mutate(&p)
			f.tka.Mint(aliceAddr, big.NewInt(1_000))
			if _, _, err := f.eng.CreateOrder(aliceAddr, p); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateDuplicateIDRejected(t *testing.T) {
	f := newFixture(t)

	p := defaultParams(1_000)
	f.create(t, p)

	// identical fields at the identical timestamp derive the same id
	f.tka.Mint(aliceAddr, p.InputAmount)
	_, _, err := f.eng.CreateOrder(aliceAddr, p)
	if !errors.Is(err, engine.ErrOrderExists) {
		t.Fatalf("err = %v, want ErrOrderExists", err)
	}
	// failed create must return the deposit
	if got := f.balance(f.tka, aliceAddr); got != 1_000 {
		t.Fatalf("alice balance after rejected create = %d, want 1000", got)
	}
}

func TestCreatePausedBlocksOnlyCreation(t *testing.T) {
	f := newFixture(t)

	id, data := f.create(t, defaultParams(1_000))

	if err := f.eng.Pause(adminAddr); err != nil {
		t.Fatalf("pause: %v", err)
	}

	p := defaultParams(1_000)
	f.tka.Mint(aliceAddr, p.InputAmount)
	if _, _, err := f.eng.CreateOrder(aliceAddr, p); !errors.Is(err, engine.ErrPaused) {
		t.Fatalf("err = %v, want ErrPaused", err)
	}

	// cancel stays open while paused
	if err := f.eng.CancelOrder(aliceAddr, id, data); err != nil {
		t.Fatalf("cancel while paused: %v", err)
	}

	if err := f.eng.Unpause(ownerAddr); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	f.create(t, defaultParams(1_000))
}

func TestCreateNativeOrderWrapsDeposit(t *testing.T) {
	f := newFixture(t)

	p := engine.CreateParams{
		Creator:      aliceAddr,
		Recipient:    aliceAddr,
		OutputToken:  tkbAddr,
		MinReturn:    big.NewInt(2_000),
		Stoploss:     big.NewInt(0),
		Executor:     bobAddr,
		ExecutionFee: big.NewInt(0),
	}
	f.clock.Advance(time.Second)
	id, data, err := f.eng.CreateNativeOrder(aliceAddr, p, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("create native: %v", err)
	}

	if got := f.weth.BalanceOf(selfAddr).Int64(); got != 1_000 {
		t.Fatalf("wrapped balance = %d, want 1000", got)
	}
	ord, err := engine.DecodeOrder(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ord.InputToken != wethAddr {
		t.Fatalf("input token = %s, want wrapped native", ord.InputToken.Hex())
	}
	if _, ok := f.eng.OrderHash(id); !ok {
		t.Fatal("native order not stored")
	}
}
