package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Order payloads use canonical ABI encoding so ids and data stay
// byte-compatible with external tooling that speaks abi.encode.
var (
	addressTy = mustType("address")
	uint256Ty = mustType("uint256")

	// (creator, recipient, inputToken, outputToken, inputAmount,
	//  minReturn, stoploss, shareAmount, executor, executionFee)
	orderDataArgs = abi.Arguments{
		{Type: addressTy}, {Type: addressTy}, {Type: addressTy}, {Type: addressTy},
		{Type: uint256Ty}, {Type: uint256Ty}, {Type: uint256Ty}, {Type: uint256Ty},
		{Type: addressTy}, {Type: uint256Ty},
	}

	// id preimage swaps shareAmount for the creation timestamp
	orderIDArgs = abi.Arguments{
		{Type: addressTy}, {Type: addressTy}, {Type: addressTy}, {Type: addressTy},
		{Type: uint256Ty}, {Type: uint256Ty}, {Type: uint256Ty},
		{Type: addressTy}, {Type: uint256Ty}, {Type: uint256Ty},
	}
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Errorf("abi type %s: %w", name, err))
	}
	return t
}

// EncodeOrder returns the opaque order-data payload the caller must
// supply back verbatim on execute/fill/update/cancel.
func EncodeOrder(o *Order) ([]byte, error) {
	data, err := orderDataArgs.Pack(
		o.Creator, o.Recipient, o.InputToken, o.OutputToken,
		o.InputAmount, o.MinReturn, o.Stoploss, o.ShareAmount,
		o.Executor, o.ExecutionFee,
	)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}
	return data, nil
}

// DecodeOrder parses an order-data payload.
func DecodeOrder(data []byte) (*Order, error) {
	vals, err := orderDataArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &Order{
		Creator:      vals[0].(common.Address),
		Recipient:    vals[1].(common.Address),
		InputToken:   vals[2].(common.Address),
		OutputToken:  vals[3].(common.Address),
		InputAmount:  vals[4].(*big.Int),
		MinReturn:    vals[5].(*big.Int),
		Stoploss:     vals[6].(*big.Int),
		ShareAmount:  vals[7].(*big.Int),
		Executor:     vals[8].(common.Address),
		ExecutionFee: vals[9].(*big.Int),
	}, nil
}

// OrderIDOf derives the deterministic order id from the order fields
// (shareAmount excluded) and the creation timestamp.
func OrderIDOf(o *Order, timestamp int64) (OrderID, error) {
	preimage, err := orderIDArgs.Pack(
		o.Creator, o.Recipient, o.InputToken, o.OutputToken,
		o.InputAmount, o.MinReturn, o.Stoploss,
		o.Executor, o.ExecutionFee, big.NewInt(timestamp),
	)
	if err != nil {
		return OrderID{}, fmt.Errorf("order id preimage: %w", err)
	}
	return crypto.Keccak256Hash(preimage), nil
}

// HashOrderData is the stored existence value for an order id.
func HashOrderData(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}
