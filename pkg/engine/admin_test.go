package engine_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldswap/yieldswap/pkg/engine"
)

func TestAdminOwnerGating(t *testing.T) {
	f := newFixture(t)

	if err := f.eng.UpdateProtocolFee(bobAddr, 100); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("fee err = %v, want ErrUnauthorized", err)
	}
	if err := f.eng.UpdateTreasury(bobAddr, treasuryAddr); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("treasury err = %v, want ErrUnauthorized", err)
	}
	if err := f.eng.AddWhitelistTokens(bobAddr, []common.Address{tkbAddr}); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("whitelist err = %v, want ErrUnauthorized", err)
	}
	// emergency admin may pause but not administer
	if err := f.eng.UpdateProtocolFee(adminAddr, 100); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("admin fee err = %v, want ErrUnauthorized", err)
	}
	if err := f.eng.Pause(adminAddr); err != nil {
		t.Fatalf("admin pause: %v", err)
	}
	if err := f.eng.Unpause(adminAddr); err != nil {
		t.Fatalf("admin unpause: %v", err)
	}
	if err := f.eng.Pause(carolAddr); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("outsider pause err = %v, want ErrUnauthorized", err)
	}
}

func TestAdminBpsBounds(t *testing.T) {
	f := newFixture(t)

	if err := f.eng.UpdateProtocolFee(ownerAddr, 10001); err == nil {
		t.Fatal("expected error for protocol fee over 10000 bps")
	}
	if err := f.eng.UpdateCancellationFee(ownerAddr, 10001); err == nil {
		t.Fatal("expected error for cancellation fee over 10000 bps")
	}
	if err := f.eng.UpdateTokensBuffer(ownerAddr, []common.Address{tkaAddr}, []uint64{10001}); err == nil {
		t.Fatal("expected error for buffer over 10000 bps")
	}
	if err := f.eng.UpdateTokensBuffer(ownerAddr, []common.Address{tkaAddr, tkbAddr}, []uint64{100}); err == nil {
		t.Fatal("expected error for mismatched buffer arguments")
	}
}

func TestWhitelistRemovalBlocksNewOrdersOnly(t *testing.T) {
	f := newFixture(t)

	id, data := f.create(t, defaultParams(1_000))

	if err := f.eng.RemoveWhitelistTokens(ownerAddr, []common.Address{tkaAddr}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	p := defaultParams(1_000)
	f.tka.Mint(aliceAddr, p.InputAmount)
	if _, _, err := f.eng.CreateOrder(aliceAddr, p); !errors.Is(err, engine.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	// existing orders still settle
	if err := f.eng.CancelOrder(aliceAddr, id, data); err != nil {
		t.Fatalf("cancel after delist: %v", err)
	}
}

func TestHandlerRegistration(t *testing.T) {
	f := newFixture(t)

	if err := f.eng.RemoveHandler(ownerAddr, swapAddr); err != nil {
		t.Fatalf("remove handler: %v", err)
	}
	id, data := f.create(t, defaultParams(1_000))
	if err := f.eng.ExecuteOrder(bobAddr, id, data, swapAddr, nil); !errors.Is(err, engine.ErrInvalidHandler) {
		t.Fatalf("err = %v, want ErrInvalidHandler", err)
	}
}
