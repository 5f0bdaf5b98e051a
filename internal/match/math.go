package match

import (
	"fmt"
	"math/big"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
)

// All pricing follows the constant-product rule with a 3/1000 fee retained
// by the pool. Liquidity math rounds in the pool's favor: amounts charged
// to the user take the floor plus one, withdrawal payouts take the floor.

var (
	feeNumerator   = big.NewInt(constants.FeeNumerator)
	feeDenominator = big.NewInt(constants.FeeDenominator)
	one            = big.NewInt(1)
)

// SwapOutput prices a swap: the amount of the opposite asset paid out for
// amountIn, after the fee. floor(in*997*outR / (inR*1000 + in*997)) + 1.
func SwapOutput(amountIn, inReserve, outReserve *big.Int) *big.Int {
	inWithFee := new(big.Int).Mul(amountIn, feeNumerator)
	num := new(big.Int).Mul(inWithFee, outReserve)
	den := new(big.Int).Mul(inReserve, feeDenominator)
	den.Add(den, inWithFee)
	num.Div(num, den)
	return num.Add(num, one)
}

// ProRata computes amount*share/total rounded down, the payout rule for
// removing liquidity.
func ProRata(amount, share, total *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, share)
	return out.Div(out, total)
}

// ProRataCeil computes amount*share/total rounded down plus one, the
// rounding rule for liquidity charges and lpt minting.
func ProRataCeil(amount, share, total *big.Int) *big.Int {
	out := ProRata(amount, share, total)
	return out.Add(out, one)
}

// Isqrt returns the integer square root of n, the genesis liquidity rule.
func Isqrt(n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sqrt(n)
}

func u64ToBig(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func bigToU64(v *big.Int, what string) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%s %s does not fit a native capacity", what, v)
	}
	return v.Uint64(), nil
}
