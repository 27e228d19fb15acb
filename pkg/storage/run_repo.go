package storage

import (
	"context"
	"time"

	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// ScheduleRun 一次完整调度轮次的持久化聚合根（对外导出）
type ScheduleRun struct {
	ID             string             `json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	Makespan       int64              `json:"makespan"`
	ScheduledCount int                `json:"scheduled_count"`
	RejectedCount  int                `json:"rejected_count"`
	Tasks          []types.TaskRecord `json:"tasks"`
	Edges          []types.EdgeRecord `json:"edges"`
}

// ScheduleRunRepository 调度轮次存储接口（对外导出）
type ScheduleRunRepository interface {
	// SaveRun 保存轮次及其全部任务/边记录（对外接口）
	SaveRun(ctx context.Context, run *ScheduleRun) error
	// GetRun 根据轮次ID查询完整聚合（对外接口）
	GetRun(ctx context.Context, runID string) (*ScheduleRun, error)
	// ListRuns 按创建时间倒序列出轮次摘要，不含任务记录（对外接口）
	ListRuns(ctx context.Context, limit int) ([]*ScheduleRun, error)
	// DeleteRun 删除轮次及其级联记录（对外接口）
	DeleteRun(ctx context.Context, runID string) error
	// Close 释放底层连接（对外接口）
	Close() error
}
