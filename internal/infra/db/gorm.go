package db

import (
	"cartengine/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
// 一意制約違反は gorm.ErrDuplicatedKey に変換させる
func Connect(cfg config.Config) (*gorm.DB, error) {
	return Open(cfg.DSN(), cfg.IsProd())
}

func Open(dsn string, quiet bool) (*gorm.DB, error) {
	gcfg := &gorm.Config{TranslateError: true}
	if quiet {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	return gorm.Open(postgres.Open(dsn), gcfg)
}
