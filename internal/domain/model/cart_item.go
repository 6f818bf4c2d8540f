package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// 1明細の数量の上限（合計がint64で溢れないように）
const MaxQuantity int64 = math.MaxInt32

// カートの明細
// titleがキー（SKUやIDは無い）。数量は1以上MaxQuantity以下。
type LineItem struct {
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageRef  string          `json:"image_ref"`
	Quantity  int64           `json:"quantity"`
}

// 明細の小計（単価×数量）
func (it LineItem) Amount() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
}
