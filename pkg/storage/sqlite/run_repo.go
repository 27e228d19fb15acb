// Package sqlite ScheduleRunRepository的SQLite实现
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stevelan1995/sched-engine/pkg/storage"
)

// RunRepo 调度轮次Repository的SQLite实现（对外导出）
type RunRepo struct {
	*storage.SQLRunRepo
}

// NewRunRepo 基于已有连接创建Repository实例（对外导出）
func NewRunRepo(db *sqlx.DB) (*RunRepo, error) {
	base, err := storage.NewSQLRunRepo(db, NewSQLiteDialect())
	if err != nil {
		return nil, err
	}
	return &RunRepo{SQLRunRepo: base}, nil
}

// NewRunRepoFromDSN 通过DSN创建Repository实例（对外导出）
func NewRunRepoFromDSN(dsn string) (*RunRepo, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("配置SQLite失败: %w", err)
	}

	return NewRunRepo(db)
}

// configureSQLite 配置SQLite数据库连接
func configureSQLite(db *sqlx.DB) error {
	for _, pragma := range NewSQLiteDialect().ConfigureDB() {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}
