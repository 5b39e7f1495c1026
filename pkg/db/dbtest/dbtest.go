// Package dbtest opens throwaway SQLite databases for repository tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
)

// AllModels lists every table the service owns.
func AllModels() []any {
	return []any{
		&models.Customer{},
		&models.Address{},
		&models.Category{},
		&models.Product{},
		&models.Banner{},
		&models.DailyOffer{},
		&models.CartRule{},
		&models.Cart{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns an in-memory database private to t with the schema migrated.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
