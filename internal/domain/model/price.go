package model

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// 表示用の通貨プレフィックス（固定）
const PricePrefix = "Rs."

var ErrInvalidPrice = errors.New("invalid price")

// 表示用に整形する（Rs.100.00）
func FormatPrice(d decimal.Decimal) string {
	return PricePrefix + d.StringFixed(2)
}

// 保存データのpriceを読む。プレフィックスは無くてもよい。
// 表示文字列を読み戻すのはストレージの境界だけ。
func ParsePrice(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, PricePrefix)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidPrice
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidPrice
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidPrice
	}
	return d, nil
}
