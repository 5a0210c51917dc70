package num

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimal is an arbitrary precision decimal, used for rates and ratios.
// Money amounts stay in Uint; a Decimal only appears when a rate is applied
// and the result is truncated back into a Uint.
type Decimal = decimal.Decimal

var (
	dzero = decimal.Zero
	done  = decimal.NewFromInt(1)
)

// DecimalZero returns the decimal zero value.
func DecimalZero() Decimal {
	return dzero
}

// DecimalOne returns the decimal one value.
func DecimalOne() Decimal {
	return done
}

// DecimalFromString parses a decimal from its string representation.
func DecimalFromString(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}

// MustDecimalFromString parses a decimal from a string, panicking when the
// string is not a valid decimal. Reserved for statically known values.
func MustDecimalFromString(s string) Decimal {
	d, err := DecimalFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromInt64 returns a decimal with the value of the given int64.
func DecimalFromInt64(i int64) Decimal {
	return decimal.NewFromInt(i)
}

// DecimalFromFloat returns a decimal with the value of the given float.
func DecimalFromFloat(v float64) Decimal {
	return decimal.NewFromFloat(v)
}

// DecimalFromUint returns a decimal with the value of the given Uint.
func DecimalFromUint(u *Uint) Decimal {
	return decimal.NewFromBigInt(u.BigInt(), 0)
}

// DecimalFromBigInt returns a decimal of value×10^exp.
func DecimalFromBigInt(value *big.Int, exp int32) Decimal {
	return decimal.NewFromBigInt(value, exp)
}
