package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/stevelan1995/sched-engine/pkg/storage"
)

// RunRepo 调度轮次Repository的PostgreSQL实现（对外导出）
type RunRepo struct {
	*storage.SQLRunRepo
}

// NewRunRepo 基于已有连接创建Repository实例（对外导出）
func NewRunRepo(db *sqlx.DB) (*RunRepo, error) {
	base, err := storage.NewSQLRunRepo(db, NewPostgresDialect())
	if err != nil {
		return nil, err
	}
	return &RunRepo{SQLRunRepo: base}, nil
}

// NewRunRepoFromDSN 通过DSN创建Repository实例（对外导出）
func NewRunRepoFromDSN(dsn string) (*RunRepo, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	return NewRunRepo(db)
}
