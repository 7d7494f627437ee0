// Package unit converts between base-denomination integers and human-scale
// decimal strings. The reserved max-uint256 value is passed through as the
// literal "unlimited" token, never converted numerically.
package unit

import (
	"fmt"
	"math/big"
	"strings"

	ethmath "github.com/ethereum/go-ethereum/common/math"
)

// UnlimitedToken is the display form of the max-uint256 sentinel
const UnlimitedToken = "unlimited"

// EtherDecimals is the default precision of the chain's native denomination
const EtherDecimals = 18

// IsUnlimited reports whether raw is the max-uint256 sentinel
func IsUnlimited(raw *big.Int) bool {
	return raw != nil && raw.Cmp(ethmath.MaxBig256) == 0
}

// Unlimited returns a fresh copy of the max-uint256 sentinel
func Unlimited() *big.Int {
	return new(big.Int).Set(ethmath.MaxBig256)
}

// ToDisplay renders a base-denomination integer as a decimal string with the
// given precision. No rounding takes place: the full fractional part is kept,
// with trailing zeros trimmed. The sentinel maps to UnlimitedToken.
func ToDisplay(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0"
	}
	if IsUnlimited(raw) {
		return UnlimitedToken
	}

	sign := ""
	abs := new(big.Int).Abs(raw)
	if raw.Sign() < 0 {
		sign = "-"
	}

	scale := pow10(decimals)
	whole, frac := new(big.Int).QuoRem(abs, scale, new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}

	fracStr := strings.TrimRight(fmt.Sprintf("%0*s", decimals, frac.String()), "0")
	return fmt.Sprintf("%s%s.%s", sign, whole.String(), fracStr)
}

// ToRaw parses a decimal display string back into a base-denomination
// integer. UnlimitedToken maps to the sentinel. A fractional part longer
// than decimals cannot be represented and is an error.
func ToRaw(display string, decimals int) (*big.Int, error) {
	display = strings.TrimSpace(display)
	if display == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if display == UnlimitedToken {
		return Unlimited(), nil
	}

	sign := false
	if strings.HasPrefix(display, "-") {
		sign = true
		display = display[1:]
	}

	wholeStr, fracStr, _ := strings.Cut(display, ".")
	if wholeStr == "" {
		wholeStr = "0"
	}
	if len(fracStr) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", display, decimals)
	}

	whole, ok := new(big.Int).SetString(wholeStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", display)
	}
	raw := whole.Mul(whole, pow10(decimals))

	if fracStr != "" {
		frac, ok := new(big.Int).SetString(fracStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", display)
		}
		frac.Mul(frac, pow10(decimals-len(fracStr)))
		raw.Add(raw, frac)
	}

	if sign {
		raw.Neg(raw)
	}
	return raw, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
