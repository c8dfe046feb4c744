package sweepcore

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// buildTransferTx assembles a plain value transfer. EIP-1559 when the
// quote carries a base fee, legacy otherwise. The fee cap mirrors what
// FeeEstimate charges against the balance so a decided Send always has
// the funds to cover it.
func buildTransferTx(chainID *big.Int, nonce uint64, to common.Address, amount *big.Int, fee FeeEstimate) *types.Transaction {
	if fee.Legacy() {
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: new(big.Int).Set(fee.GasPrice),
			Gas:      fee.GasUnits,
			To:       &to,
			Value:    new(big.Int).Set(amount),
		})
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: new(big.Int).Set(fee.GasTipCap),
		GasFeeCap: new(big.Int).Set(fee.GasFeeCap),
		Gas:       fee.GasUnits,
		To:        &to,
		Value:     new(big.Int).Set(amount),
	})
}

// signTransferTx signs with the latest signer for the chain.
func signTransferTx(tx *types.Transaction, chainID *big.Int, acc Account) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, acc.key)
}

// feeEstimateFromQuote turns a network quote into the engine's fee input.
// On 1559 chains the cap is baseFee doubled plus the tip, which survives
// several consecutive full blocks of base-fee growth.
func feeEstimateFromQuote(q *FeeQuote, gasUnits uint64, bufferPct int64) FeeEstimate {
	fe := FeeEstimate{GasUnits: gasUnits, BufferPct: bufferPct}
	if q.BaseFee == nil {
		fe.GasPrice = new(big.Int).Set(q.GasPrice)
		return fe
	}
	tip := q.TipCap
	if tip == nil {
		tip = new(big.Int)
	}
	fe.GasTipCap = new(big.Int).Set(tip)
	fe.GasFeeCap = new(big.Int).Add(new(big.Int).Mul(q.BaseFee, big.NewInt(2)), tip)
	return fe
}
