package usecase

import (
	"cartsync/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 画面に出す明細1行
type RenderedLine struct {
	Title     string `json:"title"`
	ImageRef  string `json:"img_src"`
	UnitPrice string `json:"price"`
	Amount    string `json:"amount"`
	Quantity  int64  `json:"quantity"`
}

// 合計と件数。Countが0ならバッジを隠す。
type Totals struct {
	Total        decimal.Decimal `json:"total_value"`
	TotalDisplay string          `json:"total"`
	Count        int64           `json:"count"`
	ShowCount    bool            `json:"show_count"`
}

// カート1つ分の表示
type View struct {
	Items []RenderedLine `json:"items"`
	Totals
}

// Projector はカートから表示を作るだけ（状態を持たない）。
// 差分は取らず、毎回すべて作り直す。
type Projector struct{}

func (Projector) RenderItems(cart model.Cart) []RenderedLine {
	lines := make([]RenderedLine, 0, len(cart))
	for _, it := range cart {
		lines = append(lines, RenderedLine{
			Title:     it.Title,
			ImageRef:  it.ImageRef,
			UnitPrice: model.FormatPrice(it.UnitPrice),
			Amount:    model.FormatPrice(it.Amount()),
			Quantity:  it.Quantity,
		})
	}
	return lines
}

func (Projector) ComputeTotal(cart model.Cart) Totals {
	total := decimal.Zero
	for _, it := range cart {
		total = total.Add(it.Amount())
	}
	count := cart.Count()

	return Totals{
		Total:        total,
		TotalDisplay: model.FormatPrice(total),
		Count:        count,
		ShowCount:    count > 0,
	}
}

func (p Projector) Project(cart model.Cart) View {
	return View{
		Items:  p.RenderItems(cart),
		Totals: p.ComputeTotal(cart),
	}
}
