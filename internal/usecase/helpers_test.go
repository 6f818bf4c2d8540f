package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cartsync/internal/domain/model"
	repo "cartsync/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =====================
// Mocks / fakes
// =====================

type StorageRepoMock struct{ mock.Mock }

func (m *StorageRepoMock) GetItem(ctx context.Context, origin string, key string) (string, bool, error) {
	args := m.Called(ctx, origin, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *StorageRepoMock) SetItem(ctx context.Context, w repo.Write) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

var _ repo.StorageRepository = (*StorageRepoMock)(nil)

type recordingRenderer struct {
	mu    sync.Mutex
	views []View
}

func (r *recordingRenderer) Render(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recordingRenderer) last() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return View{}
	}
	return r.views[len(r.views)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []string
	toasts []string
}

func (n *recordingNotifier) Alert(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, msg)
}

func (n *recordingNotifier) Toast(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, msg)
}

// 保存された値を覚えるだけ
type memorySaver struct {
	saved []model.Cart
	err   error
}

func (s *memorySaver) Save(_ context.Context, cart model.Cart) error {
	s.saved = append(s.saved, cart.Clone())
	return s.err
}

type seqIDGen struct{ n atomic.Int64 }

func (g *seqIDGen) NewID() string { return fmt.Sprintf("id-%d", g.n.Add(1)) }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(title, p string, qty int64) model.LineItem {
	return model.LineItem{Title: title, UnitPrice: price(p), ImageRef: "img/" + title + ".png", Quantity: qty}
}

func yes() Confirmer { return ConfirmFunc(func(string) bool { return true }) }

func no() Confirmer { return ConfirmFunc(func(string) bool { return false }) }
