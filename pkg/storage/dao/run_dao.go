// Package dao 存储层数据访问对象
package dao

import (
	"database/sql"
	"time"
)

// ScheduleRunDAO schedule_run表的数据访问对象（内部使用）
type ScheduleRunDAO struct {
	ID             string    `db:"id"`
	CreatedAt      time.Time `db:"created_at"`
	Makespan       int64     `db:"makespan"`
	ScheduledCount int       `db:"scheduled_count"`
	RejectedCount  int       `db:"rejected_count"`
}

// TaskRecordDAO task_record表的数据访问对象（内部使用）
// 时间列可空：Started/Finished标记由列的NULL状态还原
type TaskRecordDAO struct {
	RunID    string         `db:"run_id"`
	TaskID   string         `db:"task_id"`
	JobID    string         `db:"job_id"`
	CPU      int64          `db:"cpu"`
	RAM      int64          `db:"ram"`
	Priority int            `db:"priority"`
	Status   string         `db:"status"`
	Machine  sql.NullString `db:"machine"`
	Start    sql.NullInt64  `db:"start_time"`
	Finish   sql.NullInt64  `db:"end_time"`
	Reason   sql.NullString `db:"reason"`
	Duration int64          `db:"duration"`
}

// EdgeRecordDAO edge_record表的数据访问对象（内部使用）
type EdgeRecordDAO struct {
	RunID  string `db:"run_id"`
	Source string `db:"source"`
	Target string `db:"target"`
	Kind   string `db:"kind"`
}
