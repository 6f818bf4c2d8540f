package model

// 1タブにつきCartは1つ。
// 追加した順番を保持し、同じtitleの明細は2つ持たない。
type Cart []LineItem

// titleの位置を返す（無ければ-1）
func (c Cart) IndexOf(title string) int {
	for i, it := range c {
		if it.Title == title {
			return i
		}
	}
	return -1
}

func (c Cart) Has(title string) bool {
	return c.IndexOf(title) >= 0
}

// 呼び出し側が書き換えても元に影響しないようにコピーする
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// 末尾に追加した新しいCartを返す
func (c Cart) Append(it LineItem) Cart {
	out := make(Cart, 0, len(c)+1)
	out = append(out, c...)
	return append(out, it)
}

// titleを除いた新しいCartを返す（無ければそのまま）
func (c Cart) Without(title string) Cart {
	out := make(Cart, 0, len(c))
	for _, it := range c {
		if it.Title != title {
			out = append(out, it)
		}
	}
	return out
}

// titleが重複していないか
func (c Cart) TitlesUnique() bool {
	seen := make(map[string]struct{}, len(c))
	for _, it := range c {
		if _, ok := seen[it.Title]; ok {
			return false
		}
		seen[it.Title] = struct{}{}
	}
	return true
}

// 数量の合計
func (c Cart) Count() int64 {
	var n int64
	for _, it := range c {
		n += it.Quantity
	}
	return n
}

// 中身と順番が同じか
func (c Cart) Equal(other Cart) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		a, b := c[i], other[i]
		if a.Title != b.Title || a.ImageRef != b.ImageRef || a.Quantity != b.Quantity {
			return false
		}
		if !a.UnitPrice.Equal(b.UnitPrice) {
			return false
		}
	}
	return true
}
