package repository

import (
	"context"
	"sync"

	repo "cartsync/internal/repository"
)

// プロセス内のストレージ。書き込み後にpublisherへ通知する。
type StorageMemoryRepository struct {
	mu   sync.RWMutex
	data map[string]map[string]string
	pub  repo.ChangePublisher
}

// DI
func NewStorageMemoryRepository(pub repo.ChangePublisher) *StorageMemoryRepository {
	return &StorageMemoryRepository{
		data: make(map[string]map[string]string),
		pub:  pub,
	}
}

func (r *StorageMemoryRepository) GetItem(_ context.Context, origin string, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.data[origin][key]
	return v, ok, nil
}

func (r *StorageMemoryRepository) SetItem(_ context.Context, w repo.Write) error {
	r.mu.Lock()
	items, ok := r.data[w.Origin]
	if !ok {
		items = make(map[string]string)
		r.data[w.Origin] = items
	}
	items[w.Key] = w.Value
	r.mu.Unlock()

	//ロックを外してから通知
	r.publish(w)
	return nil
}

func (r *StorageMemoryRepository) publish(w repo.Write) {
	if r.pub == nil {
		return
	}
	r.pub.Publish(repo.ChangeEvent{
		Origin:    w.Origin,
		Key:       w.Key,
		SourceTab: w.SourceTab,
	})
}
