package engine_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/pkg/engine"
	"github.com/yieldswap/yieldswap/pkg/handler"
	"github.com/yieldswap/yieldswap/pkg/oracle"
	"github.com/yieldswap/yieldswap/pkg/storage"
	"github.com/yieldswap/yieldswap/pkg/strategy"
	"github.com/yieldswap/yieldswap/pkg/token"
	"github.com/yieldswap/yieldswap/pkg/util"
)

var (
	selfAddr     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	stratAddr    = common.HexToAddress("0x1000000000000000000000000000000000000002")
	strat2Addr   = common.HexToAddress("0x1000000000000000000000000000000000000003")
	swapAddr     = common.HexToAddress("0x1000000000000000000000000000000000000004")
	ownerAddr    = common.HexToAddress("0xe000000000000000000000000000000000000001")
	adminAddr    = common.HexToAddress("0xe000000000000000000000000000000000000002")
	treasuryAddr = common.HexToAddress("0xe000000000000000000000000000000000000003")
	aliceAddr    = common.HexToAddress("0xf000000000000000000000000000000000000001")
	bobAddr      = common.HexToAddress("0xf000000000000000000000000000000000000002")
	carolAddr    = common.HexToAddress("0xf000000000000000000000000000000000000003")

	tkaAddr  = common.HexToAddress("0x2000000000000000000000000000000000000001")
	tkbAddr  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	wethAddr = common.HexToAddress("0x2000000000000000000000000000000000000003")
)

// fixture wires an engine against in-memory tokens, a static oracle
// quoting TKA at twice TKB, a mock strategy on TKA and a mock swap
// handler at the same 2x rate.
type fixture struct {
	eng    *engine.Engine
	tokens *token.Registry
	tka    *token.Mock
	tkb    *token.Mock
	weth   *token.WrappedMock
	strat  *strategy.MockYield
	swap   *handler.MockSwap
	orc    *oracle.Static
	clock  *util.ManualClock
	store  *storage.MemStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens := token.NewRegistry()
	tka := token.NewMock(tkaAddr, "TKA", 6)
	tkb := token.NewMock(tkbAddr, "TKB", 6)
	weth := token.NewWrappedMock(wethAddr, "WETH", 18)
	tokens.Register(tka)
	tokens.Register(tkb)
	tokens.Register(weth)

	orc, err := oracle.NewStatic(0)
	if err != nil {
		t.Fatalf("oracle: %v", err)
	}
	// TKA $2, TKB $1: one TKA unit quotes as two TKB units
	if err := orc.SetPrice(tkaAddr, big.NewInt(2_00000000), 6); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if err := orc.SetPrice(tkbAddr, big.NewInt(1_00000000), 6); err != nil {
		t.Fatalf("set price: %v", err)
	}

	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))
	store := storage.NewMemStore()

	eng, err := engine.New(engine.Params{
		Self:             selfAddr,
		Owner:            ownerAddr,
		EmergencyAdmin:   adminAddr,
		WrappedNative:    wethAddr,
		DefaultBufferBps: 10000, // keep everything idle unless a test rebalances
	}, tokens, orc, store, clock, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	if err := eng.AddWhitelistTokens(ownerAddr, []common.Address{tkaAddr, tkbAddr, wethAddr}); err != nil {
		t.Fatalf("whitelist: %v", err)
	}

	strat := strategy.NewMockYield(stratAddr, tokens)
	if err := eng.SetStrategy(ownerAddr, tkaAddr, strat); err != nil {
		t.Fatalf("set strategy: %v", err)
	}

	swap := handler.NewMockSwap(swapAddr, tokens)
	// raw-unit 2x rate over 1e18
	swap.SetRate(tkaAddr, tkbAddr, new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18)))
	if err := eng.AddHandler(ownerAddr, swap); err != nil {
		t.Fatalf("add handler: %v", err)
	}

	return &fixture{
		eng:    eng,
		tokens: tokens,
		tka:    tka,
		tkb:    tkb,
		weth:   weth,
		strat:  strat,
		swap:   swap,
		orc:    orc,
		clock:  clock,
		store:  store,
	}
}

func zeroAddr() common.Address { return common.Address{} }

func defaultParams(amount int64) engine.CreateParams {
	return engine.CreateParams{
		Creator:      aliceAddr,
		Recipient:    aliceAddr,
		InputToken:   tkaAddr,
		OutputToken:  tkbAddr,
		InputAmount:  big.NewInt(amount),
		MinReturn:    big.NewInt(2 * amount),
		Stoploss:     big.NewInt(0),
		Executor:     bobAddr,
		ExecutionFee: big.NewInt(0),
	}
}

// create funds alice and opens an order, advancing the clock so
// repeated identical orders get distinct ids.
func (f *fixture) create(t *testing.T, p engine.CreateParams) (engine.OrderID, []byte) {
	t.Helper()
	f.clock.Advance(time.Second)
	f.tka.Mint(aliceAddr, p.InputAmount)
	id, data, err := f.eng.CreateOrder(aliceAddr, p)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return id, data
}

func (f *fixture) balance(tok *token.Mock, owner common.Address) int64 {
	return tok.BalanceOf(owner).Int64()
}

func (f *fixture) underlying(t *testing.T, tok common.Address) int64 {
	t.Helper()
	u, err := f.eng.TotalUnderlying(tok)
	if err != nil {
		t.Fatalf("total underlying: %v", err)
	}
	return u.Int64()
}
