// Package factory 按配置的数据库类型创建Repository实例
package factory

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stevelan1995/sched-engine/pkg/storage"
	"github.com/stevelan1995/sched-engine/pkg/storage/mysql"
	"github.com/stevelan1995/sched-engine/pkg/storage/postgres"
	"github.com/stevelan1995/sched-engine/pkg/storage/sqlite"
)

// Options 连接池配置
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewScheduleRunRepository 按数据库类型创建调度轮次Repository（对外导出）
func NewScheduleRunRepository(dbType, dsn string, opts Options) (storage.ScheduleRunRepository, error) {
	switch dbType {
	case "sqlite":
		r, err := sqlite.NewRunRepoFromDSN(dsn)
		if err != nil {
			return nil, err
		}
		applyPool(r.GetDB(), opts)
		return r, nil
	case "mysql":
		r, err := mysql.NewRunRepoFromDSN(dsn)
		if err != nil {
			return nil, err
		}
		applyPool(r.GetDB(), opts)
		return r, nil
	case "postgres", "postgresql":
		r, err := postgres.NewRunRepoFromDSN(dsn)
		if err != nil {
			return nil, err
		}
		applyPool(r.GetDB(), opts)
		return r, nil
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", dbType)
	}
}

// applyPool 应用连接池配置
func applyPool(db *sqlx.DB, opts Options) {
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}
