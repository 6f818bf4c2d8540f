package model

import "time"

// originごとのkey-valueストレージの1行。
// ブラウザのlocalStorageと同じで、値は文字列のまま保存する。
type StorageEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OriginID  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_storage_origin_key" json:"origin_id"`
	Key       string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_storage_origin_key" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (StorageEntry) TableName() string {
	return "storage_entries"
}
