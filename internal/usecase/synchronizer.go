package usecase

import (
	"context"
	"log/slog"

	"cartsync/internal/domain/model"
	repo "cartsync/internal/repository"
)

// 読み直し元（CartStorageが満たす）
type CartLoader interface {
	Load(ctx context.Context) model.Cart
	Key() string
}

// 丸ごと差し替える先（CartStateが満たす）
type CartReplacer interface {
	ReplaceAll(items model.Cart)
}

// Synchronizer は他タブの書き込み通知を受けて、このタブのカートを合わせる。
// 状態は「待ち受け中」の1つだけ。
type Synchronizer struct {
	loader CartLoader
	state  CartReplacer
	keys   map[string]struct{}
	log    *slog.Logger
}

// aliasesは保存キー以外で同期のきっかけにするキー
func NewSynchronizer(loader CartLoader, state CartReplacer, aliases []string, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	keys := map[string]struct{}{loader.Key(): {}}
	for _, k := range aliases {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return &Synchronizer{loader: loader, state: state, keys: keys, log: log}
}

// Handle は通知1件を処理する。取り込んだらtrue。
func (s *Synchronizer) Handle(ctx context.Context, ev repo.ChangeEvent) bool {
	if _, ok := s.keys[ev.Key]; !ok {
		return false
	}

	cart := s.loader.Load(ctx)
	s.state.ReplaceAll(cart)

	s.log.Debug("cart_synced", "origin", ev.Origin, "key", ev.Key, "source_tab", ev.SourceTab, "items", len(cart))
	return true
}

// Run はctxが終わるか購読が閉じるまで通知を処理し続ける。
func (s *Synchronizer) Run(ctx context.Context, events <-chan repo.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Handle(ctx, ev)
		}
	}
}
