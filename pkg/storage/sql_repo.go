package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stevelan1995/sched-engine/pkg/core/types"
	"github.com/stevelan1995/sched-engine/pkg/storage/dao"
)

// 基准DDL（SQLite语法），其余数据库由方言转换
var baseSchemas = []string{
	`
	CREATE TABLE IF NOT EXISTS schedule_run (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		makespan INTEGER NOT NULL DEFAULT 0,
		scheduled_count INTEGER NOT NULL DEFAULT 0,
		rejected_count INTEGER NOT NULL DEFAULT 0
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS task_record (
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		job_id TEXT,
		cpu INTEGER NOT NULL DEFAULT 0,
		ram INTEGER NOT NULL DEFAULT 0,
		priority INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		machine TEXT,
		start_time INTEGER,
		end_time INTEGER,
		reason TEXT,
		duration INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, task_id)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS edge_record (
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (run_id, source, target)
	);
	`,
}

// SQLRunRepo 调度轮次Repository的sqlx通用实现（对外导出）
// 数据库差异由Dialect封装，各数据库包只提供驱动与方言
type SQLRunRepo struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewSQLRunRepo 创建Repository实例并初始化表结构（对外导出）
func NewSQLRunRepo(db *sqlx.DB, dialect Dialect) (*SQLRunRepo, error) {
	repo := &SQLRunRepo{db: db, dialect: dialect}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return repo, nil
}

// GetDB 获取底层数据库连接（对外导出）
func (r *SQLRunRepo) GetDB() *sqlx.DB {
	return r.db
}

// Close 关闭数据库连接（对外导出）
func (r *SQLRunRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// initSchema 初始化数据库表结构
func (r *SQLRunRepo) initSchema() error {
	for _, schema := range baseSchemas {
		if _, err := r.db.Exec(r.dialect.CreateTableSQL(schema)); err != nil {
			return fmt.Errorf("执行SQL失败: %w", err)
		}
	}
	return nil
}

// SaveRun 保存轮次及其全部任务/边记录（事务）
func (r *SQLRunRepo) SaveRun(ctx context.Context, run *ScheduleRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("轮次不能为空且必须有ID")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	runColumns := []string{"id", "created_at", "makespan", "scheduled_count", "rejected_count"}
	upsertRunSQL := r.dialect.UpsertSQL("schedule_run", runColumns, "id",
		[]string{"makespan", "scheduled_count", "rejected_count"})
	if _, err := tx.NamedExecContext(ctx, upsertRunSQL, dao.ScheduleRunDAO{
		ID:             run.ID,
		CreatedAt:      createdAt,
		Makespan:       run.Makespan,
		ScheduledCount: run.ScheduledCount,
		RejectedCount:  run.RejectedCount,
	}); err != nil {
		return fmt.Errorf("保存轮次失败: %w", err)
	}

	// 重写式保存：删除旧记录后整体插入
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM task_record WHERE run_id = ?`), run.ID); err != nil {
		return fmt.Errorf("删除旧任务记录失败: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM edge_record WHERE run_id = ?`), run.ID); err != nil {
		return fmt.Errorf("删除旧边记录失败: %w", err)
	}

	insertTaskSQL := `
	INSERT INTO task_record (run_id, task_id, job_id, cpu, ram, priority, status, machine, start_time, end_time, reason, duration)
	VALUES (:run_id, :task_id, :job_id, :cpu, :ram, :priority, :status, :machine, :start_time, :end_time, :reason, :duration)
	`
	for _, rec := range run.Tasks {
		if _, err := tx.NamedExecContext(ctx, insertTaskSQL, taskRecordToDAO(run.ID, rec)); err != nil {
			return fmt.Errorf("保存任务记录 %s 失败: %w", rec.TaskID, err)
		}
	}

	insertEdgeSQL := `
	INSERT INTO edge_record (run_id, source, target, kind)
	VALUES (:run_id, :source, :target, :kind)
	`
	for _, e := range run.Edges {
		if _, err := tx.NamedExecContext(ctx, insertEdgeSQL, dao.EdgeRecordDAO{
			RunID:  run.ID,
			Source: e.Source,
			Target: e.Target,
			Kind:   string(e.Kind),
		}); err != nil {
			return fmt.Errorf("保存边记录 %s->%s 失败: %w", e.Source, e.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// GetRun 根据轮次ID查询完整聚合
func (r *SQLRunRepo) GetRun(ctx context.Context, runID string) (*ScheduleRun, error) {
	var runDAO dao.ScheduleRunDAO
	err := r.db.GetContext(ctx, &runDAO,
		r.db.Rebind(`SELECT * FROM schedule_run WHERE id = ?`), runID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("轮次 %s 不存在", runID)
		}
		return nil, fmt.Errorf("查询轮次失败: %w", err)
	}

	var taskDAOs []dao.TaskRecordDAO
	if err := r.db.SelectContext(ctx, &taskDAOs,
		r.db.Rebind(`SELECT * FROM task_record WHERE run_id = ? ORDER BY task_id`), runID); err != nil {
		return nil, fmt.Errorf("查询任务记录失败: %w", err)
	}

	var edgeDAOs []dao.EdgeRecordDAO
	if err := r.db.SelectContext(ctx, &edgeDAOs,
		r.db.Rebind(`SELECT * FROM edge_record WHERE run_id = ? ORDER BY source, target`), runID); err != nil {
		return nil, fmt.Errorf("查询边记录失败: %w", err)
	}

	run := &ScheduleRun{
		ID:             runDAO.ID,
		CreatedAt:      runDAO.CreatedAt,
		Makespan:       runDAO.Makespan,
		ScheduledCount: runDAO.ScheduledCount,
		RejectedCount:  runDAO.RejectedCount,
		Tasks:          make([]types.TaskRecord, 0, len(taskDAOs)),
		Edges:          make([]types.EdgeRecord, 0, len(edgeDAOs)),
	}
	for _, d := range taskDAOs {
		run.Tasks = append(run.Tasks, daoToTaskRecord(d))
	}
	for _, d := range edgeDAOs {
		run.Edges = append(run.Edges, types.EdgeRecord{
			Source: d.Source,
			Target: d.Target,
			Kind:   types.EdgeKind(d.Kind),
		})
	}
	return run, nil
}

// ListRuns 按创建时间倒序列出轮次摘要（不含任务/边记录）
func (r *SQLRunRepo) ListRuns(ctx context.Context, limit int) ([]*ScheduleRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var runDAOs []dao.ScheduleRunDAO
	if err := r.db.SelectContext(ctx, &runDAOs,
		r.db.Rebind(`SELECT * FROM schedule_run ORDER BY created_at DESC, id LIMIT ?`), limit); err != nil {
		return nil, fmt.Errorf("查询轮次列表失败: %w", err)
	}

	runs := make([]*ScheduleRun, 0, len(runDAOs))
	for _, d := range runDAOs {
		runs = append(runs, &ScheduleRun{
			ID:             d.ID,
			CreatedAt:      d.CreatedAt,
			Makespan:       d.Makespan,
			ScheduledCount: d.ScheduledCount,
			RejectedCount:  d.RejectedCount,
		})
	}
	return runs, nil
}

// DeleteRun 删除轮次及其级联记录
func (r *SQLRunRepo) DeleteRun(ctx context.Context, runID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	// 不依赖外键级联（SQLite默认关闭），显式删除子表
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM task_record WHERE run_id = ?`), runID); err != nil {
		return fmt.Errorf("删除任务记录失败: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM edge_record WHERE run_id = ?`), runID); err != nil {
		return fmt.Errorf("删除边记录失败: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM schedule_run WHERE id = ?`), runID); err != nil {
		return fmt.Errorf("删除轮次失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// taskRecordToDAO 任务记录 -> DAO，变体标记映射为可空列
func taskRecordToDAO(runID string, rec types.TaskRecord) dao.TaskRecordDAO {
	d := dao.TaskRecordDAO{
		RunID:    runID,
		TaskID:   rec.TaskID,
		JobID:    rec.JobID,
		CPU:      rec.CPU,
		RAM:      rec.RAM,
		Priority: rec.Priority,
		Status:   rec.Status,
		Duration: rec.Duration,
	}
	if rec.Machine != "" {
		d.Machine = sql.NullString{String: rec.Machine, Valid: true}
	}
	if rec.Started {
		d.Start = sql.NullInt64{Int64: rec.Start, Valid: true}
	}
	if rec.Finished {
		d.Finish = sql.NullInt64{Int64: rec.Finish, Valid: true}
	}
	if rec.Reason != "" {
		d.Reason = sql.NullString{String: string(rec.Reason), Valid: true}
	}
	return d
}

// daoToTaskRecord DAO -> 任务记录
func daoToTaskRecord(d dao.TaskRecordDAO) types.TaskRecord {
	rec := types.TaskRecord{
		TaskID:   d.TaskID,
		JobID:    d.JobID,
		CPU:      d.CPU,
		RAM:      d.RAM,
		Priority: d.Priority,
		Status:   d.Status,
		Duration: d.Duration,
	}
	if d.Machine.Valid {
		rec.Machine = d.Machine.String
	}
	if d.Start.Valid {
		rec.Started = true
		rec.Start = d.Start.Int64
	}
	if d.Finish.Valid {
		rec.Finished = true
		rec.Finish = d.Finish.Int64
	}
	if d.Reason.Valid {
		rec.Reason = types.RejectReason(d.Reason.String)
	}
	return rec
}

// 确保实现接口
var _ ScheduleRunRepository = (*SQLRunRepo)(nil)
