package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

var yearSeconds = big.NewRat(int64(365*24*time.Hour/time.Second), 1)

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(value, denom).FloatString(int(decimals))
}

func computeFeeRates(fee0, fee1, tvl0, tvl1 *big.Int) (*string, *string) {
	return rateString(feeRate(fee0, tvl0)), rateString(feeRate(fee1, tvl1))
}

func feeRate(fee, tvl *big.Int) *big.Rat {
	if fee == nil || tvl == nil || tvl.Sign() == 0 {
		return nil
	}
	return new(big.Rat).SetFrac(fee, tvl)
}

func rateString(r *big.Rat) *string {
	if r == nil {
		return nil
	}
	s := r.FloatString(ratioScale)
	return &s
}

// computeAPR annualizes the window fee yield. Both reserves of a pair hold
// equal value at the pool price, so the pair yield is the mean of the two
// side rates. A missing side counts as zero.
func computeAPR(feeRate0, feeRate1 *string, windowSeconds uint64) *string {
	if windowSeconds == 0 || (feeRate0 == nil && feeRate1 == nil) {
		return nil
	}
	sum := new(big.Rat)
	for _, rate := range []*string{feeRate0, feeRate1} {
		if rate == nil {
			continue
		}
		r, ok := new(big.Rat).SetString(*rate)
		if !ok {
			return nil
		}
		sum.Add(sum, r)
	}
	apr := sum.Quo(sum, big.NewRat(2, 1))
	apr.Mul(apr, yearSeconds)
	apr.Quo(apr, big.NewRat(int64(windowSeconds), 1))
	return rateString(apr)
}
