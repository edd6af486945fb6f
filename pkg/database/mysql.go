// Package database opens the optional MySQL and Redis connections.
package database

import (
	"fmt"
	"io"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"advisor-gpt-go/pkg/log"
)

// InitMySQL connects to dsn, sizes the pool and migrates the given models.
func InitMySQL(dsn string, models ...interface{}) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	log.Info("[Database] MySQL connected")
	return db, nil
}

// Closer exposes the connection pool behind db so shutdown can release it.
func Closer(db *gorm.DB) (io.Closer, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB, nil
}
