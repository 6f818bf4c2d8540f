package usecase

import (
	"encoding/json"
	"errors"
	"fmt"

	"cartsync/internal/domain/model"
)

// ストレージに保存する形（localStorageのcartItemsと同じ）
type storedLineItem struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	ImgSrc   string `json:"imgSrc"`
	Quantity int64  `json:"quantity"`
}

var ErrMalformedCart = errors.New("malformed cart")

// EncodeCart はカートを保存用のJSON文字列にする。
func EncodeCart(cart model.Cart) (string, error) {
	rows := make([]storedLineItem, 0, len(cart))
	for _, it := range cart {
		rows = append(rows, storedLineItem{
			Title:    it.Title,
			Price:    model.FormatPrice(it.UnitPrice),
			ImgSrc:   it.ImageRef,
			Quantity: it.Quantity,
		})
	}

	b, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeCart は保存値を読む。1件でもおかしければカート全体を不正とする。
// "null" は空のカート。
func DecodeCart(raw string) (model.Cart, error) {
	var rows []storedLineItem
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCart, err)
	}

	cart := make(model.Cart, 0, len(rows))
	for i, row := range rows {
		if row.Title == "" {
			return nil, fmt.Errorf("%w: item %d has no title", ErrMalformedCart, i)
		}
		if row.Quantity < 1 || row.Quantity > model.MaxQuantity {
			return nil, fmt.Errorf("%w: item %q has quantity %d", ErrMalformedCart, row.Title, row.Quantity)
		}
		price, err := model.ParsePrice(row.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: item %q price %q", ErrMalformedCart, row.Title, row.Price)
		}
		if cart.Has(row.Title) {
			return nil, fmt.Errorf("%w: duplicate title %q", ErrMalformedCart, row.Title)
		}

		cart = append(cart, model.LineItem{
			Title:     row.Title,
			UnitPrice: price,
			ImageRef:  row.ImgSrc,
			Quantity:  row.Quantity,
		})
	}
	return cart, nil
}
