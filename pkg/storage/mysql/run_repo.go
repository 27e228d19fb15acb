package mysql

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/stevelan1995/sched-engine/pkg/storage"
)

// RunRepo 调度轮次Repository的MySQL实现（对外导出）
type RunRepo struct {
	*storage.SQLRunRepo
}

// NewRunRepo 基于已有连接创建Repository实例（对外导出）
func NewRunRepo(db *sqlx.DB) (*RunRepo, error) {
	dialect := NewMySQLDialect()
	for _, stmt := range dialect.ConfigureDB() {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("配置MySQL失败: %w", err)
		}
	}

	base, err := storage.NewSQLRunRepo(db, dialect)
	if err != nil {
		return nil, err
	}
	return &RunRepo{SQLRunRepo: base}, nil
}

// NewRunRepoFromDSN 通过DSN创建Repository实例（对外导出）
// DSN需带parseTime=true以正确扫描时间列
func NewRunRepoFromDSN(dsn string) (*RunRepo, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	return NewRunRepo(db)
}
