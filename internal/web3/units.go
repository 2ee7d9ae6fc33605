package web3

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// FormatUnits renders a raw token amount as a decimal string, trimming
// trailing zeros in the fractional part. FormatUnits(100000000, 6) == "100".
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if decimals <= 0 {
		return amount.String()
	}

	value := new(big.Int).Abs(amount)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(value, scale, new(big.Int))

	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}

	fracDigits := frac.String()
	if len(fracDigits) < decimals {
		fracDigits = strings.Repeat("0", decimals-len(fracDigits)) + fracDigits
	}
	fracPart := strings.TrimRight(fracDigits, "0")
	if fracPart == "" {
		return sign + whole.String()
	}
	return sign + whole.String() + "." + fracPart
}

// ParseUnits converts a decimal string into the token's smallest unit.
func ParseUnits(value string, decimals int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("金额不能为空")
	}
	if decimals < 0 {
		return nil, errors.New("小数位数不能为负")
	}

	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole, frac := value, ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		whole, frac = value[:idx], value[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("金额 %s 超出 %d 位小数精度", value, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	combined := whole + frac
	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("非法的金额: %s", value)
	}
	if negative {
		result.Neg(result)
	}
	return result, nil
}
