package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	tokAddr = common.HexToAddress("0x2000000000000000000000000000000000000001")
	alice   = common.HexToAddress("0xf000000000000000000000000000000000000001")
	bob     = common.HexToAddress("0xf000000000000000000000000000000000000002")
)

func TestMockTransfer(t *testing.T) {
	m := NewMock(tokAddr, "TKA", 6)
	m.Mint(alice, big.NewInt(1_000))

	if err := m.Transfer(alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := m.BalanceOf(alice).Int64(); got != 600 {
		t.Fatalf("alice = %d, want 600", got)
	}
	if got := m.BalanceOf(bob).Int64(); got != 400 {
		t.Fatalf("bob = %d, want 400", got)
	}

	if err := m.Transfer(alice, bob, big.NewInt(601)); err == nil {
		t.Fatal("expected insufficient balance error")
	}
	if err := m.Transfer(alice, bob, big.NewInt(-1)); err == nil {
		t.Fatal("expected negative amount error")
	}
	// zero transfer is a no-op
	if err := m.Transfer(alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	m := NewMock(tokAddr, "TKA", 6)
	m.Mint(alice, big.NewInt(100))

	b := m.BalanceOf(alice)
	b.SetInt64(0)
	if got := m.BalanceOf(alice).Int64(); got != 100 {
		t.Fatalf("ledger mutated through returned balance: %d", got)
	}
}

func TestWrappedDepositMints(t *testing.T) {
	w := NewWrappedMock(tokAddr, "WETH", 18)
	if err := w.Deposit(alice, big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := w.BalanceOf(alice).Int64(); got != 500 {
		t.Fatalf("balance = %d, want 500", got)
	}
	if err := w.Deposit(alice, big.NewInt(0)); err == nil {
		t.Fatal("expected error for zero deposit")
	}
}

func TestRegistryResolution(t *testing.T) {
	r := NewRegistry()
	m := NewMock(tokAddr, "TKA", 6)
	r.Register(m)

	got, err := r.Token(tokAddr)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if got.Address() != tokAddr {
		t.Fatalf("resolved wrong token: %s", got.Address().Hex())
	}

	if _, err := r.Token(bob); err == nil {
		t.Fatal("expected error for unregistered address")
	}
	// plain mock is not wrapped-native
	if _, err := r.Wrapped(tokAddr); err == nil {
		t.Fatal("expected error resolving plain token as wrapped")
	}

	w := NewWrappedMock(common.HexToAddress("0x2000000000000000000000000000000000000002"), "WETH", 18)
	r.Register(w)
	if _, err := r.Wrapped(w.Address()); err != nil {
		t.Fatalf("wrapped: %v", err)
	}
}
