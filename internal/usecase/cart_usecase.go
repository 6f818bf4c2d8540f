package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cartsync/internal/domain/model"

	"github.com/shopspring/decimal"
)

const (
	RemoveConfirmPrompt = "Are you sure you want to remove this item?"
	DuplicateItemAlert  = "Product already added to Cart"
)

// 表示を受け取る側（DOMの代わり）
type Renderer interface {
	Render(v View)
}

// 削除前の確認ダイアログ
type Confirmer interface {
	Confirm(prompt string) bool
}

// 関数をConfirmerとして使う
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// alertとトースト
type Notifier interface {
	Alert(msg string)
	Toast(msg string)
}

// 保存先の約束（CartStorageが満たす）
type CartSaver interface {
	Save(ctx context.Context, cart model.Cart) error
}

// CartState は1タブが持つカート。
// 1つのイベント（変更→保存→描画）は他のイベントと混ざらない。
type CartState struct {
	mu    sync.Mutex
	items model.Cart

	saver     CartSaver
	projector Projector
	renderer  Renderer
	notifier  Notifier
	log       *slog.Logger
}

// DI
func NewCartState(initial model.Cart, saver CartSaver, renderer Renderer, notifier Notifier, log *slog.Logger) *CartState {
	if log == nil {
		log = slog.Default()
	}
	return &CartState{
		items:    initial.Clone(),
		saver:    saver,
		renderer: renderer,
		notifier: notifier,
		log:      log,
	}
}

// 追加するときの入力
type AddItemInput struct {
	Title     string
	UnitPrice decimal.Decimal
	ImageRef  string
}

// AddItem は数量1で末尾に追加する。同じtitleがあれば何も変えない。
func (s *CartState) AddItem(ctx context.Context, in AddItemInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidItem)
	}
	if in.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidItem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items.Has(title) {
		if s.notifier != nil {
			s.notifier.Alert(DuplicateItemAlert)
		}
		return ErrDuplicateItem
	}

	s.items = s.items.Append(model.LineItem{
		Title:     title,
		UnitPrice: in.UnitPrice,
		ImageRef:  in.ImageRef,
		Quantity:  1,
	})
	err := s.commitLocked(ctx)

	if s.notifier != nil {
		s.notifier.Toast(fmt.Sprintf("%s has been added to your cart!", title))
	}
	return err
}

// RemoveItem は確認してから消す。断られたらfalse。
// titleが無いのはエラーにしない。
func (s *CartState) RemoveItem(ctx context.Context, title string, confirm Confirmer) (bool, error) {
	if confirm == nil || !confirm.Confirm(RemoveConfirmPrompt) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = s.items.Without(title)
	return true, s.commitLocked(ctx)
}

// SetQuantity はフォームの入力値をそのまま受け取る。
// 数字でない・空・0以下はすべて1にする。
func (s *CartState) SetQuantity(ctx context.Context, title string, raw string) error {
	return s.SetQuantityInt(ctx, title, ParseQuantity(raw))
}

func (s *CartState) SetQuantityInt(ctx context.Context, title string, qty int64) error {
	qty = ClampQuantity(qty)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.items.IndexOf(title)
	if i < 0 {
		return nil
	}

	next := s.items.Clone()
	next[i].Quantity = qty
	s.items = next
	return s.commitLocked(ctx)
}

// ReplaceAll は他タブの変更を取り込む。描画だけで保存はしない（通知がループしないように）。
func (s *CartState) ReplaceAll(items model.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = items.Clone()
	s.renderLocked()
}

// 今のカートのコピー
func (s *CartState) Items() model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Clone()
}

// 今のカートの表示
func (s *CartState) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projector.Project(s.items)
}

// Render は保存せずに描画だけする（タブを開いたとき）。
func (s *CartState) Render() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderLocked()
}

// 保存→描画。保存に失敗してもメモリ上の変更は残す。
func (s *CartState) commitLocked(ctx context.Context) error {
	var saveErr error
	if s.saver != nil {
		if err := s.saver.Save(ctx, s.items); err != nil {
			s.log.Error("cart_save_failed", "error", err)
			saveErr = err
		}
	}
	s.renderLocked()
	return saveErr
}

func (s *CartState) renderLocked() {
	if s.renderer == nil {
		return
	}
	s.renderer.Render(s.projector.Project(s.items))
}

// ParseQuantity はinputの値を読む（先頭の整数部分だけ。読めなければ0、大きすぎればMaxQuantity）。
func ParseQuantity(raw string) int64 {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0
	}

	neg := false
	switch v[0] {
	case '-':
		neg = true
		v = v[1:]
	case '+':
		v = v[1:]
	}

	var n int64
	digits := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			break
		}
		digits++
		//上限を超えたら上限にする（残りの桁は読まない）
		if n > (model.MaxQuantity-int64(r-'0'))/10 {
			n = model.MaxQuantity
			break
		}
		n = n*10 + int64(r-'0')
	}
	if digits == 0 {
		return 0
	}
	if neg {
		return -n
	}
	return n
}

// ClampQuantity は1..MaxQuantityに収める。
func ClampQuantity(q int64) int64 {
	if q < 1 {
		return 1
	}
	if q > model.MaxQuantity {
		return model.MaxQuantity
	}
	return q
}
