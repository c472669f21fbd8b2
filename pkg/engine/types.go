package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var zeroAddress = common.Address{}

// AnyExecutor is the wildcard executor: orders carrying it may be
// executed by any approved executor.
var AnyExecutor = common.Address{}

// Order is the full order record. It is never persisted: only the
// keccak hash of its ABI encoding is stored, keyed by the order id,
// and callers round-trip the encoded payload on every operation.
type Order struct {
	Creator      common.Address
	Recipient    common.Address
	InputToken   common.Address
	OutputToken  common.Address
	InputAmount  *big.Int // absolute input-token units at creation
	MinReturn    *big.Int // minimum acceptable output amount
	Stoploss     *big.Int // distressed-exit floor, 0 disables
	ShareAmount  *big.Int // InputAmount in pool-share units at creation
	Executor     common.Address
	ExecutionFee *big.Int // input-token units, paid to the executing caller
}

// OrderID is the content-derived order identifier.
type OrderID = common.Hash

type EventType string

const (
	EventOrderCreated   EventType = "OrderCreated"
	EventOrderExecuted  EventType = "OrderExecuted"
	EventOrderUpdated   EventType = "OrderUpdated"
	EventOrderCancelled EventType = "OrderCancelled"
)

// Event is emitted on every order state transition for off-chain
// indexers. Data carries the ABI-encoded order payload where the event
// type defines one.
type Event struct {
	Type       EventType   `json:"type"`
	OrderID    OrderID     `json:"orderId"`
	NewOrderID OrderID     `json:"newOrderId,omitempty"`
	Data       []byte      `json:"data,omitempty"`
}

// Quote is a price oracle answer for a given input amount.
type Quote struct {
	AmountOut             *big.Int
	AmountOutWithSlippage *big.Int
}

// Oracle quotes output amounts for a swap pair.
type Oracle interface {
	Get(inputToken, outputToken common.Address, inputAmount *big.Int) (Quote, error)
}

// Strategy is a yield adapter for a single lending-market integration.
// Must tolerate repeated zero-amount calls.
type Strategy interface {
	Address() common.Address
	Deposit(token common.Address, amount *big.Int) error
	Withdraw(token common.Address, amount *big.Int, recipient common.Address) error
	TotalUnderlying(token common.Address) (*big.Int, error)
}

// Handler is an external swap executor. It receives the net input
// amount before Handle is called and must deliver at least minOut of
// the output token to the order recipient, or fail.
type Handler interface {
	Address() common.Address
	Handle(order *Order, minOut *big.Int, extraData []byte) error
}

// PoolRecord is the persisted per-token pool state.
type PoolRecord struct {
	TotalShares *big.Int       `json:"totalShares"`
	BufferBps   uint64         `json:"bufferBps"`
	Strategy    common.Address `json:"strategy"`
}

// Store persists order hashes and pool state across restarts.
// Strategy instances are re-attached at boot; only their address
// survives in the record.
type Store interface {
	PutOrder(id OrderID, dataHash common.Hash) error
	DeleteOrder(id OrderID) error
	LoadOrders() (map[OrderID]common.Hash, error)
	PutPool(token common.Address, rec PoolRecord) error
	LoadPools() (map[common.Address]PoolRecord, error)
	Close() error
}
