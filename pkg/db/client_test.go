package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := newTestDB(t)
	client := FromGorm(conn)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := conn.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := conn.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := FromGorm(conn)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	if err := conn.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic rollback, got %d rows", count)
	}
}

func TestPing(t *testing.T) {
	client := FromGorm(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := newTestDB(t)
	if err := conn.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	err := conn.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected sqlite duplicate to be detected: %v", err)
	}

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_idempotency_key_key"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "orders_idempotency_key_key") {
		t.Fatalf("expected pg unique violation")
	}
	if IsUniqueViolation(pgErr, "carts_pkey") {
		t.Fatalf("constraint mismatch should not match")
	}
	if IsUniqueViolation(errors.New("timeout"), "") {
		t.Fatalf("unrelated error matched")
	}
	if !IsNotFound(fmt.Errorf("load: %w", gorm.ErrRecordNotFound)) {
		t.Fatalf("expected not found")
	}
}

func TestIsTransientConflict(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03"} {
		if !IsTransientConflict(fmt.Errorf("update cart: %w", &pgconn.PgError{Code: code})) {
			t.Fatalf("%s should be retried", code)
		}
	}
	if IsTransientConflict(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violations are not transient")
	}
	if !IsTransientConflict(errors.New("database is locked")) {
		t.Fatalf("busy sqlite should be retried")
	}
	if IsTransientConflict(nil) {
		t.Fatalf("nil matched")
	}
}

func TestSQLiteDSNAddsLocalPragmas(t *testing.T) {
	got := sqliteDSN("file:kirana.db")
	if got != "file:kirana.db?_busy_timeout=5000&_foreign_keys=on" {
		t.Fatalf("unexpected dsn %q", got)
	}
	got = sqliteDSN("file:kirana.db?mode=memory&_busy_timeout=100")
	if got != "file:kirana.db?mode=memory&_busy_timeout=100&_foreign_keys=on" {
		t.Fatalf("explicit pragma should win, got %q", got)
	}
}

func TestQueryLoggerHidesBindValues(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"})
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: queryLogger(context.Background(), logg, time.Nanosecond),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	buf.Reset()
	if err := conn.Create(&testModel{Name: "+919876543210"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(buf.String(), "SLOW SQL") {
		t.Fatalf("expected slow query line, got %s", buf.String())
	}
	if strings.Contains(buf.String(), "9876543210") {
		t.Fatalf("bind value leaked: %s", buf.String())
	}
}
