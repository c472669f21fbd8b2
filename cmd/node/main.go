package main

import (
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/params"
	"github.com/yieldswap/yieldswap/pkg/api"
	"github.com/yieldswap/yieldswap/pkg/engine"
	"github.com/yieldswap/yieldswap/pkg/handler"
	"github.com/yieldswap/yieldswap/pkg/metrics"
	"github.com/yieldswap/yieldswap/pkg/oracle"
	"github.com/yieldswap/yieldswap/pkg/storage"
	"github.com/yieldswap/yieldswap/pkg/strategy"
	"github.com/yieldswap/yieldswap/pkg/token"
	"github.com/yieldswap/yieldswap/pkg/util"
)

// Devnet addresses. The engine, strategies and handlers each hold
// funds under a fixed ledger address.
var (
	engineAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	strategyAddr = common.HexToAddress("0x1000000000000000000000000000000000000002")
	handlerAddr  = common.HexToAddress("0x1000000000000000000000000000000000000003")

	wethAddr = common.HexToAddress("0x2000000000000000000000000000000000000001")
	usdcAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Token registry: devnet mock tokens ----
	tokens := token.NewRegistry()
	weth := token.NewWrappedMock(wethAddr, "WETH", 18)
	usdc := token.NewMock(usdcAddr, "USDC", 6)
	tokens.Register(weth)
	tokens.Register(usdc)

	if cfg.Engine.WrappedNative == (common.Address{}) {
		cfg.Engine.WrappedNative = wethAddr
	}
	if cfg.Engine.Owner == (common.Address{}) {
		sugar.Fatal("OWNER_ADDRESS not configured")
	}

	// ---- Oracle: static devnet feeds ----
	orc, err := oracle.NewStatic(cfg.Oracle.SlippageBps)
	if err != nil {
		sugar.Fatalw("oracle_init_failed", "err", err)
	}
	// WETH $3000, USDC $1, both with 8-decimal prices
	orc.SetPrice(wethAddr, big.NewInt(3000_00000000), 18)
	orc.SetPrice(usdcAddr, big.NewInt(1_00000000), 6)

	// ---- Persistence ----
	store, err := storage.NewPebbleStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_init_failed", "err", err, "path", cfg.Node.DBPath)
	}
	defer store.Close()

	// ---- Engine ----
	eng, err := engine.New(engine.Params{
		Self:             engineAddr,
		Owner:            cfg.Engine.Owner,
		EmergencyAdmin:   cfg.Engine.EmergencyAdmin,
		Treasury:         cfg.Engine.Treasury,
		WrappedNative:    cfg.Engine.WrappedNative,
		ProtocolFeeBps:   cfg.Engine.ProtocolFeeBps,
		CancellationBps:  cfg.Engine.CancellationBps,
		DefaultBufferBps: cfg.Engine.DefaultBufferBps,
	}, tokens, orc, store, util.RealClock{}, sugar)
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}

	// ---- Devnet wiring: whitelist, strategy, handler ----
	owner := cfg.Engine.Owner
	if err := eng.AddWhitelistTokens(owner, []common.Address{wethAddr, usdcAddr}); err != nil {
		sugar.Fatalw("whitelist_failed", "err", err)
	}

	strat := strategy.NewMockYield(strategyAddr, tokens)
	for _, tok := range []common.Address{wethAddr, usdcAddr} {
		if err := eng.SetStrategy(owner, tok, strat); err != nil {
			sugar.Fatalw("set_strategy_failed", "err", err, "token", tok.Hex())
		}
	}

	swap := handler.NewMockSwap(handlerAddr, tokens)
	// Raw-unit rates over 1e18: 1e18 wei WETH -> 3000e6 USDC units.
	swap.SetRate(wethAddr, usdcAddr, big.NewInt(3000_000000)) // 3000e6/1e18 per wei, scaled
	wethPerUSDC, _ := new(big.Int).SetString("333333333333333333333333333", 10)
	swap.SetRate(usdcAddr, wethAddr, wethPerUSDC)
	if err := eng.AddHandler(owner, swap); err != nil {
		sugar.Fatalw("add_handler_failed", "err", err)
	}

	sugar.Infow("engine_ready",
		"owner", owner.Hex(),
		"treasury", cfg.Engine.Treasury.Hex(),
		"protocol_fee_bps", cfg.Engine.ProtocolFeeBps,
		"buffer_bps", cfg.Engine.DefaultBufferBps)

	// ---- API server ----
	m := metrics.New()
	server := api.NewServer(eng, orc, m, sugar)
	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	sugar.Info("shutting_down")
}
