package blockchain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const TokenDecimals = 18

// ParseUnits 将十进制字符串按精度转换为链上整数，如 "1.5" -> 1500000000000000000
func ParseUnits(value string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", value)
	}

	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", value, decimals)
	}
	return shifted.BigInt(), nil
}

// FormatUnits 是 ParseUnits 的逆运算
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}
