package engine

import "math/big"

// Fee policy. All percents are basis points over a 10000 denominator.
// Fees are only charged when a treasury is configured; with no
// treasury the full amount stays in the settlement flow.

// protocolFeeLocked computes the treasury cut of an order's input
// amount at execution or fill time.
func (e *Engine) protocolFeeLocked(inputAmount *big.Int) *big.Int {
	if e.treasury == (zeroAddress) || e.protocolFeeBps == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(inputAmount, new(big.Int).SetUint64(e.protocolFeeBps))
	return fee.Quo(fee, big.NewInt(bpsDenominator))
}

// cancellationFeeLocked computes the treasury cut of yield earned by a
// cancelled order. Principal is never charged.
func (e *Engine) cancellationFeeLocked(yieldEarned *big.Int) *big.Int {
	if e.treasury == (zeroAddress) || e.cancellationBps == 0 || yieldEarned.Sign() <= 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(yieldEarned, new(big.Int).SetUint64(e.cancellationBps))
	return fee.Quo(fee, big.NewInt(bpsDenominator))
}

// effectiveMinOut picks the minimum output a settlement must deliver.
// A quote between stoploss and minReturn passes through unchanged,
// permitting a distressed exit below the limit price; otherwise the
// larger of quote and minReturn governs.
func effectiveMinOut(oracleQuote, minReturn, stoploss *big.Int) *big.Int {
	if oracleQuote.Cmp(stoploss) <= 0 || oracleQuote.Cmp(minReturn) > 0 {
		return new(big.Int).Set(oracleQuote)
	}
	return new(big.Int).Set(minReturn)
}
