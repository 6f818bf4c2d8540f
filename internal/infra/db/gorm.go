package db

import (
	"cartsync/internal/config"
	"cartsync/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{}
	//本番ではSQLログを出さない
	if cfg.GoEnv == "prod" {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	return gorm.Open(postgres.Open(cfg.PostgresDSN()), gcfg)
}

// ストレージのテーブルを作る
func Migrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(&model.StorageEntry{})
}
