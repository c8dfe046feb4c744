package sweepcore

import (
	"math/big"
)

// Skip reasons reported in results and audit records.
const (
	SkipBelowThreshold = "below minimum processing threshold"
	SkipInsufficient   = "insufficient to cover fee and reserve"
)

// FeeEstimate carries the network fee parameters for one plain transfer.
// Either GasPrice is set (legacy chains) or GasFeeCap/GasTipCap are
// (EIP-1559). BufferPct inflates the worst-case fee cost to absorb
// fee-market drift between quoting and inclusion.
type FeeEstimate struct {
	GasUnits  uint64
	GasPrice  *big.Int // legacy; nil on 1559 chains
	GasFeeCap *big.Int
	GasTipCap *big.Int
	BufferPct int64
}

// Legacy reports whether the estimate uses the single gas-price model.
func (f FeeEstimate) Legacy() bool { return f.GasPrice != nil }

// FeeCost returns the unbuffered worst-case wei cost of the transfer.
func (f FeeEstimate) FeeCost() *big.Int {
	gas := new(big.Int).SetUint64(f.GasUnits)
	if f.Legacy() {
		return gas.Mul(gas, f.GasPrice)
	}
	rate := new(big.Int)
	if f.GasFeeCap != nil {
		rate.Add(rate, f.GasFeeCap)
	}
	if f.GasTipCap != nil {
		rate.Add(rate, f.GasTipCap)
	}
	return gas.Mul(gas, rate)
}

// BufferedFeeCost returns FeeCost inflated by BufferPct, rounded up.
// Rounding up means a stale quote can only over-reserve, never underfund.
func (f FeeEstimate) BufferedFeeCost() *big.Int {
	cost := f.FeeCost()
	if f.BufferPct <= 0 {
		return cost
	}
	cost.Mul(cost, big.NewInt(100+f.BufferPct))
	return ceilDiv(cost, big.NewInt(100))
}

// ReservePolicy decides what to leave behind in a swept wallet.
// MinBalance is a cheap pre-filter applied to the raw balance before any
// fee math; InclusiveMin controls whether a balance exactly at the
// threshold is processed (default true: only strictly-below skips).
// When FixedReserve is nil the reserve is fee-derived: nothing is kept
// beyond the buffered fee cost.
type ReservePolicy struct {
	MinBalance   *big.Int
	InclusiveMin bool
	FixedReserve *big.Int // nil => reserve only the buffered fee
}

// Reserve returns the wei amount to leave untouched on top of the fee.
func (p ReservePolicy) Reserve() *big.Int {
	if p.FixedReserve == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(p.FixedReserve)
}

// Decision is the output of Decide: either a skip with a reason or a
// send of an exact wei amount.
type Decision struct {
	Send       bool
	Amount     *big.Int // nil unless Send
	SkipReason string   // empty unless skip
}

// Decide maps (balance, fee estimate, reserve policy) to a sweep decision.
// Pure: no I/O, no hidden state, identical inputs yield identical output.
//
// Two-stage skip check: the raw-balance threshold filters obviously empty
// wallets before any fee arithmetic, then the exact fee-aware check
// guarantees a Send amount that is strictly positive and strictly below
// the balance.
func Decide(balance *big.Int, fee FeeEstimate, policy ReservePolicy) Decision {
	if balance == nil || balance.Sign() <= 0 {
		return Decision{SkipReason: SkipBelowThreshold}
	}
	if min := policy.MinBalance; min != nil && min.Sign() > 0 {
		cmp := balance.Cmp(min)
		if cmp < 0 || (cmp == 0 && !policy.InclusiveMin) {
			return Decision{SkipReason: SkipBelowThreshold}
		}
	}

	spend := new(big.Int).Add(fee.BufferedFeeCost(), policy.Reserve())
	amount := new(big.Int).Sub(balance, spend)
	if amount.Sign() <= 0 {
		return Decision{SkipReason: SkipInsufficient}
	}
	return Decision{Send: true, Amount: amount}
}

// ceilDiv divides rounding toward positive infinity. Inputs are never
// negative here.
func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
