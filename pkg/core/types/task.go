// Package types 调度核心的共享数据模型
package types

import "fmt"

// TaskStatus 任务终态（写一次，不可逆）
type TaskStatus int

const (
	StatusPending   TaskStatus = iota // 未决（尚未调度或拒绝）
	StatusScheduled                   // 已调度（有机器和时间窗口）
	StatusRejected                    // 已拒绝（保留拒绝原因）
)

// String 返回状态的可读名称
func (s TaskStatus) String() string {
	switch s {
	case StatusScheduled:
		return "SCHEDULED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "PENDING"
	}
}

// RejectReason 任务级拒绝原因（可恢复，调度继续处理其余任务）
type RejectReason string

const (
	ReasonUpstreamRejected RejectReason = "UPSTREAM_REJECTED" // 前置任务已被拒绝
	ReasonInfeasibleClaim  RejectReason = "INFEASIBLE_CLAIM"  // 任何机器的总容量都无法满足资源声明
	ReasonNoWindowFound    RejectReason = "NO_WINDOW_FOUND"   // 前瞻范围内找不到可行时间窗口
	ReasonDeadlock         RejectReason = "DEADLOCK"          // 多轮无进展后仍未决
	ReasonNotAdmitted      RejectReason = "NOT_ADMITTED"      // 优先级0为保留的未准入哨兵档
)

// Window 调度时间窗口，语义为半开区间 [Start, Finish)
// Open=true 表示Finish未决（任务仍在运行，来自摄入的运行中轨迹）
type Window struct {
	Start  int64
	Finish int64
	Open   bool
}

// Duration 返回窗口长度；开放窗口无长度语义，返回0
func (w Window) Duration() int64 {
	if w.Open {
		return 0
	}
	return w.Finish - w.Start
}

// Task 调度任务节点
// 输入字段（ID/JobID/CPU/RAM/Priority/Duration）在DAG摄入时填充；
// 终态（status/machine/window/reason）由调度核心写入，且仅写一次。
type Task struct {
	ID       string // 任务唯一ID
	JobID    string // 所属Job ID（纯分组标签）
	CPU      int64  // CPU资源声明（资源单位）
	RAM      int64  // RAM资源声明（资源单位）
	Priority int    // 输入优先级（非负，越大越重要；0为未准入哨兵）
	Duration int64  // 执行时长（抽象时间单位，由负载模型提供）

	status  TaskStatus
	machine string
	window  Window
	reason  RejectReason
}

// Status 返回任务当前状态
func (t *Task) Status() TaskStatus {
	return t.status
}

// Resolved 任务是否已达终态
func (t *Task) Resolved() bool {
	return t.status != StatusPending
}

// Machine 返回已调度任务的机器标签；未调度返回空串
func (t *Task) Machine() string {
	return t.machine
}

// Window 返回已调度任务的时间窗口；第二个返回值指示窗口是否存在
func (t *Task) Window() (Window, bool) {
	if t.status != StatusScheduled {
		return Window{}, false
	}
	return t.window, true
}

// Reason 返回拒绝原因；未拒绝返回空串
func (t *Task) Reason() RejectReason {
	return t.reason
}

// RecordedPriority 返回对外记录的优先级
// 被拒绝的任务一律记录哨兵值0，与状态派生、不可独立设置
func (t *Task) RecordedPriority() int {
	if t.status == StatusRejected {
		return 0
	}
	return t.Priority
}

// MarkScheduled 将任务置为已调度终态（仅允许写一次）
func (t *Task) MarkScheduled(machine string, w Window) error {
	if t.status != StatusPending {
		return fmt.Errorf("任务 %s 已达终态 %s，状态不可重写", t.ID, t.status)
	}
	if machine == "" {
		return fmt.Errorf("任务 %s 调度必须有具体机器", t.ID)
	}
	if !w.Open && w.Finish < w.Start {
		return fmt.Errorf("任务 %s 窗口非法: finish=%d < start=%d", t.ID, w.Finish, w.Start)
	}
	t.status = StatusScheduled
	t.machine = machine
	t.window = w
	return nil
}

// MarkRejected 将任务置为已拒绝终态（仅允许写一次）
// 被拒绝的任务不携带机器/时间字段
func (t *Task) MarkRejected(reason RejectReason) error {
	if t.status != StatusPending {
		return fmt.Errorf("任务 %s 已达终态 %s，状态不可重写", t.ID, t.status)
	}
	t.status = StatusRejected
	t.reason = reason
	t.machine = ""
	t.window = Window{}
	return nil
}
