package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain separates signatures by protocol, version and chain so
// a signed order cannot replay elsewhere.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:    "YieldSwap",
		Version: "1",
		ChainID: big.NewInt(1337),
	}
}

// CreateOrderEIP712 is the typed payload a creator signs to open an
// order through the API without being trusted on the caller field.
type CreateOrderEIP712 struct {
	Recipient    common.Address
	InputToken   common.Address
	OutputToken  common.Address
	InputAmount  *big.Int
	MinReturn    *big.Int
	Stoploss     *big.Int
	Executor     common.Address
	ExecutionFee *big.Int
	Nonce        *big.Int
}

// CancelOrderEIP712 is the typed payload for authorizing a cancel.
type CancelOrderEIP712 struct {
	OrderID common.Hash
	Nonce   *big.Int
}

// EIP712Signer hashes and verifies typed order payloads for one domain.
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

func (e *EIP712Signer) apiDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              e.domain.Name,
		Version:           e.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

// digest computes keccak256("\x19\x01" || domainSeparator || structHash).
func digest(typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}
	raw := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(structHash)))
	return crypto.Keccak256Hash(raw).Bytes(), nil
}

// HashCreateOrder returns the digest a creator signs for a new order.
func (e *EIP712Signer) HashCreateOrder(req *CreateOrderEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"CreateOrder": []apitypes.Type{
				{Name: "recipient", Type: "address"},
				{Name: "inputToken", Type: "address"},
				{Name: "outputToken", Type: "address"},
				{Name: "inputAmount", Type: "uint256"},
				{Name: "minReturn", Type: "uint256"},
				{Name: "stoploss", Type: "uint256"},
				{Name: "executor", Type: "address"},
				{Name: "executionFee", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
			},
		},
		PrimaryType: "CreateOrder",
		Domain:      e.apiDomain(),
		Message: apitypes.TypedDataMessage{
			"recipient":    req.Recipient.Hex(),
			"inputToken":   req.InputToken.Hex(),
			"outputToken":  req.OutputToken.Hex(),
			"inputAmount":  req.InputAmount.String(),
			"minReturn":    req.MinReturn.String(),
			"stoploss":     req.Stoploss.String(),
			"executor":     req.Executor.Hex(),
			"executionFee": req.ExecutionFee.String(),
			"nonce":        req.Nonce.String(),
		},
	}
	return digest(typedData)
}

// HashCancelOrder returns the digest a creator signs to cancel.
func (e *EIP712Signer) HashCancelOrder(req *CancelOrderEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"CancelOrder": []apitypes.Type{
				{Name: "orderId", Type: "bytes32"},
				{Name: "nonce", Type: "uint256"},
			},
		},
		PrimaryType: "CancelOrder",
		Domain:      e.apiDomain(),
		Message: apitypes.TypedDataMessage{
			"orderId": req.OrderID.Hex(),
			"nonce":   req.Nonce.String(),
		},
	}
	return digest(typedData)
}

// SignCreateOrder signs the typed create payload with signer's key.
func (e *EIP712Signer) SignCreateOrder(signer *Signer, req *CreateOrderEIP712) ([]byte, error) {
	hash, err := e.HashCreateOrder(req)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

// RecoverCreateOrderSigner recovers the address that signed a create
// payload.
func (e *EIP712Signer) RecoverCreateOrderSigner(req *CreateOrderEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashCreateOrder(req)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, signature)
}

// RecoverCancelOrderSigner recovers the address that signed a cancel
// payload.
func (e *EIP712Signer) RecoverCancelOrderSigner(req *CancelOrderEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashCancelOrder(req)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, signature)
}
