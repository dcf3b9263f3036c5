package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Встроенные SQL-миграции клиента (SQLite).
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose хранит настройки глобально
var gooseMu sync.Mutex

func init() {
	// modernc регистрирует драйвер под именем "sqlite"
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open открывает (и создаёт при необходимости) файл локальной БД и применяет миграции.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, errors.New("empty client db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	// один writer: upsert'ы сериализуются самим пулом
	db.SetMaxOpenConns(1)
	if err := Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate client db: %w", err)
	}
	return db, nil
}

// Migrate применяет встроенные миграции.
func Migrate(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}
