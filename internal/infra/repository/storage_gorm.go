package repository

import (
	"context"
	"errors"
	"time"

	"cartsync/internal/domain/model"
	"cartsync/internal/infra/broadcast"
	repo "cartsync/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgresに保存するストレージ。
// 書き込みと同じトランザクションでpg_notifyを呼ぶので、通知はcommit時に届く。
type StorageGormRepository struct {
	db      *gorm.DB
	channel string
}

// DI
func NewStorageGormRepository(db *gorm.DB, channel string) *StorageGormRepository {
	return &StorageGormRepository{db: db, channel: channel}
}

func (r *StorageGormRepository) GetItem(ctx context.Context, origin string, key string) (string, bool, error) {
	var entry model.StorageEntry

	err := r.db.WithContext(ctx).
		Where("origin_id = ? AND key = ?", origin, key).
		First(&entry).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

// 同じorigin+keyは上書き（last-write-wins）
func (r *StorageGormRepository) SetItem(ctx context.Context, w repo.Write) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		entry := model.StorageEntry{
			OriginID:  w.Origin,
			Key:       w.Key,
			Value:     w.Value,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "origin_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entry).Error; err != nil {
			return err
		}

		return r.notify(tx, repo.ChangeEvent{Origin: w.Origin, Key: w.Key, SourceTab: w.SourceTab})
	})
}

func (r *StorageGormRepository) notify(tx *gorm.DB, ev repo.ChangeEvent) error {
	payload, err := broadcast.EncodeNotification(ev)
	if err != nil {
		return err
	}
	return tx.Exec("SELECT pg_notify(?, ?)", r.channel, payload).Error
}
