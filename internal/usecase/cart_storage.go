package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"cartsync/internal/domain/model"
	repo "cartsync/internal/repository"
)

// CartStorage は1タブから見たカートの保存先。
// origin/key/書き手のタブを固定して、StorageRepositoryを包む。
type CartStorage struct {
	storage repo.StorageRepository
	origin  string
	tabID   string
	key     string
	log     *slog.Logger
}

// DI
func NewCartStorage(storage repo.StorageRepository, origin, tabID, key string, log *slog.Logger) *CartStorage {
	if log == nil {
		log = slog.Default()
	}
	return &CartStorage{
		storage: storage,
		origin:  origin,
		tabID:   tabID,
		key:     key,
		log:     log,
	}
}

func (s *CartStorage) Key() string { return s.key }

// Load は失敗しない。キーが無い・読めない・壊れている場合は空のカート。
func (s *CartStorage) Load(ctx context.Context) model.Cart {
	raw, ok, err := s.storage.GetItem(ctx, s.origin, s.key)
	if err != nil {
		s.log.Warn("cart_load_failed", "origin", s.origin, "tab_id", s.tabID, "key", s.key, "error", err)
		return model.Cart{}
	}
	if !ok {
		return model.Cart{}
	}

	cart, err := DecodeCart(raw)
	if err != nil {
		//壊れたデータはユーザーには見せない
		s.log.Warn("cart_load_malformed", "origin", s.origin, "tab_id", s.tabID, "key", s.key, "error", err)
		return model.Cart{}
	}
	return cart
}

// Save は書き込むだけ。他タブへの通知はストレージ側が流す。
func (s *CartStorage) Save(ctx context.Context, cart model.Cart) error {
	raw, err := EncodeCart(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	if err := s.storage.SetItem(ctx, repo.Write{
		Origin:    s.origin,
		Key:       s.key,
		Value:     raw,
		SourceTab: s.tabID,
	}); err != nil {
		return fmt.Errorf("save cart %q: %w", s.key, err)
	}
	return nil
}
