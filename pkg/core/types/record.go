package types

// RejectedMarker 已拒绝任务在记录中的状态标记字面量
const RejectedMarker = "REJECTED"

// TaskRecord 完全决议后的任务记录（对外导出）
// Started/Finished 为显式变体标记，哨兵数值仅存在于外部序列化层
type TaskRecord struct {
	TaskID   string       `json:"task_id" db:"task_id"`
	JobID    string       `json:"job_id" db:"job_id"`
	CPU      int64        `json:"cpu" db:"cpu"`
	RAM      int64        `json:"ram" db:"ram"`
	Priority int          `json:"priority" db:"priority"`           // 记录优先级（拒绝⇒0）
	Status   string       `json:"status" db:"status"`               // 机器/队列标签，或 RejectedMarker
	Start    int64        `json:"start" db:"start_time"`            // Started=false 时无意义
	Finish   int64        `json:"finish" db:"end_time"`             // Finished=false 时无意义
	Started  bool         `json:"started" db:"started"`             // 是否有开始时间
	Finished bool         `json:"finished" db:"finished"`           // 是否有结束时间（开放窗口为false）
	Reason   RejectReason `json:"reason,omitempty" db:"reason"`     // 拒绝原因（诊断用）
	Machine  string       `json:"machine,omitempty" db:"machine"`   // 调度机器（与Status冗余，便于查询）
	Duration int64        `json:"duration,omitempty" db:"duration"` // 负载模型提供的执行时长
}

// EdgeRecord 依赖边记录，Kind 仅取 imm / non-imm 两值
type EdgeRecord struct {
	Source string   `json:"source" db:"source"`
	Target string   `json:"target" db:"target"`
	Kind   EdgeKind `json:"kind" db:"kind"`
}

// NewTaskRecord 由已决议任务生成记录
func NewTaskRecord(t *Task) TaskRecord {
	rec := TaskRecord{
		TaskID:   t.ID,
		JobID:    t.JobID,
		CPU:      t.CPU,
		RAM:      t.RAM,
		Priority: t.RecordedPriority(),
		Duration: t.Duration,
	}

	switch t.Status() {
	case StatusScheduled:
		w, _ := t.Window()
		rec.Status = t.Machine()
		rec.Machine = t.Machine()
		rec.Started = true
		rec.Start = w.Start
		if !w.Open {
			rec.Finished = true
			rec.Finish = w.Finish
		}
	case StatusRejected:
		rec.Status = RejectedMarker
		rec.Reason = t.Reason()
	}

	return rec
}
