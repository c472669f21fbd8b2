package api

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Request and response shapes for the REST surface. Addresses are
// 0x-hex, amounts are decimal strings so precision survives JSON.

// CreateOrderRequest optionally carries an EIP-712 signature over the
// order fields; when present the recovered signer must match Caller.
type CreateOrderRequest struct {
	Caller       string `json:"caller"`
	Recipient    string `json:"recipient"`
	InputToken   string `json:"inputToken"`
	OutputToken  string `json:"outputToken"`
	InputAmount  string `json:"inputAmount"`
	MinReturn    string `json:"minReturn"`
	Stoploss     string `json:"stoploss"`
	Executor     string `json:"executor"`
	ExecutionFee string `json:"executionFee"`
	Nonce        string `json:"nonce,omitempty"`
	Signature    string `json:"signature,omitempty"`
}

// CreateNativeOrderRequest deposits native coin; Value is wrapped and
// becomes the input amount, InputToken is implied.
type CreateNativeOrderRequest struct {
	Caller       string `json:"caller"`
	Recipient    string `json:"recipient"`
	OutputToken  string `json:"outputToken"`
	Value        string `json:"value"`
	MinReturn    string `json:"minReturn"`
	Stoploss     string `json:"stoploss"`
	Executor     string `json:"executor"`
	ExecutionFee string `json:"executionFee"`
}

type CreateOrderResponse struct {
	OrderID   string `json:"orderId"`
	OrderData string `json:"orderData"` // ABI-encoded payload, hex
}

type ExecuteOrderRequest struct {
	Caller    string `json:"caller"`
	OrderID   string `json:"orderId"`
	OrderData string `json:"orderData"`
	Handler   string `json:"handler"`
	ExtraData string `json:"extraData,omitempty"`
}

type FillOrderRequest struct {
	Caller      string `json:"caller"`
	OrderID     string `json:"orderId"`
	OrderData   string `json:"orderData"`
	QuoteAmount string `json:"quoteAmount"`
}

type CancelOrderRequest struct {
	Caller    string `json:"caller"`
	OrderID   string `json:"orderId"`
	OrderData string `json:"orderData"`
	Nonce     string `json:"nonce,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type UpdateOrderRequest struct {
	Caller       string `json:"caller"`
	OrderID      string `json:"orderId"`
	OrderData    string `json:"orderData"`
	Recipient    string `json:"recipient"`
	OutputToken  string `json:"outputToken"`
	MinReturn    string `json:"minReturn"`
	Stoploss     string `json:"stoploss"`
	Executor     string `json:"executor"`
	ExecutionFee string `json:"executionFee"`
}

type UpdateOrderResponse struct {
	OrderID    string `json:"orderId"`
	NewOrderID string `json:"newOrderId"`
	OrderData  string `json:"orderData"`
}

type RebalanceRequest struct {
	Tokens []string `json:"tokens"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId,omitempty"`
}

type PoolInfo struct {
	Token           string `json:"token"`
	TotalShares     string `json:"totalShares"`
	TotalUnderlying string `json:"totalUnderlying"`
	BufferBps       uint64 `json:"bufferBps"`
	Strategy        string `json:"strategy"`
}

type OrderStatus struct {
	OrderID  string `json:"orderId"`
	DataHash string `json:"dataHash"`
	Open     bool   `json:"open"`
}

type QuoteResponse struct {
	AmountOut             string `json:"amountOut"`
	AmountOutWithSlippage string `json:"amountOutWithSlippage"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Paused bool   `json:"paused"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client-to-server subscription control
// frame. Channels follow "orders" or "orders:<address>".
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// OrderEventMessage is the server-to-client event frame.
type OrderEventMessage struct {
	Type       string `json:"type"`
	OrderID    string `json:"orderId"`
	NewOrderID string `json:"newOrderId,omitempty"`
	OrderData  string `json:"orderData,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

// parseAmount accepts a base-10 string; empty means zero.
func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, s)
	}
	return v, nil
}

func parseHash(field, s string) (common.Hash, error) {
	b, err := hexBytes(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s: invalid 32-byte hash %q", field, s)
	}
	return common.BytesToHash(b), nil
}

func hexBytes(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
