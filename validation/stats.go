package validation

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	zero = decimal.NewFromInt(0)
	one  = decimal.NewFromInt(1)
)

const pValuePrecision int32 = 16

// BinomialPValue computes P(X >= k) for X ~ Binomial(n, p0), one-sided "greater" test.
func BinomialPValue(k, n int, p0 decimal.Decimal, prec int32) (decimal.Decimal, error) {
	if k < 0 || n < 0 || k > n {
		return zero, errors.New("invalid input: requires 0 <= k <= n")
	}
	if p0.LessThanOrEqual(zero) || p0.GreaterThanOrEqual(one) {
		return zero, errors.New("p0 must be in (0, 1)")
	}

	if k == 0 {
		return one, nil
	}

	q0 := one.Sub(p0)
	prob := binomialPMF(k, n, p0, q0, prec)
	sum := prob

	ratio := p0.Div(q0)
	for i := k; i < n; i++ {
		factor := decimal.NewFromInt(int64(n - i)).Div(decimal.NewFromInt(int64(i + 1)))
		prob = prob.Mul(factor).Mul(ratio)
		sum = sum.Add(prob)
	}

	return sum.Round(prec), nil
}

// binomialPMF computes P(X = k) = C(n,k) * p^k * (1-p)^(n-k).
func binomialPMF(k, n int, p, q decimal.Decimal, prec int32) decimal.Decimal {
	if k == 0 {
		return pow(q, n, prec)
	}
	if k == n {
		return pow(p, n, prec)
	}

	coeff := one
	for i := 0; i < k; i++ {
		coeff = coeff.Mul(decimal.NewFromInt(int64(n - i))).Div(decimal.NewFromInt(int64(i + 1)))
	}

	pPowK := pow(p, k, prec)
	qPowNK := pow(q, n-k, prec)
	return coeff.Mul(pPowK).Mul(qPowNK)
}

// pow computes base^exp for non-negative integer exponents.
func pow(base decimal.Decimal, exp int, prec int32) decimal.Decimal {
	if exp == 0 {
		return one
	}
	if exp == 1 {
		return base
	}

	result := one
	b := base
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(b)
		}
		b = b.Mul(b)
		exp >>= 1
	}
	return result.Round(prec)
}
