// Package trace 轨迹编解码：任务/边记录格式的外部协作方
// 核心内部用显式变体类型表示时间，哨兵数值只存在于本层
package trace

// 时间字段哨兵值（与任何真实时间戳不同）
const (
	// SentinelNotFinished 结束时间未决（任务仍在运行）
	SentinelNotFinished int64 = -1
	// SentinelNeverStarted 任务完全未调度（起止字段均用此值）
	SentinelNeverStarted int64 = -2
)

// 规范列名（沿用来源轨迹的列命名，含历史拼写）
const (
	ColTaskID        = "TaskID"
	ColOwnerJobID    = "OwnerJobID"
	ColCPUClaim      = "CPUNeed_Claimed"
	ColRAMClaim      = "RAMNeed_Claimed"
	ColPriority      = "PriorityNo"
	ColExecTime      = "ExecTime"
	ColQueue         = "Queue"
	ColStartTime     = "StartTime"
	ColEndTime       = "EndTime"
	ColReason        = "Reason"
	ColSuccImmediate = "SuccessorsImediate"
	ColSuccNonImm    = "SuccessorsNotImmediate"
)

// DefaultExecTime 缺省执行时长（来源轨迹缺列时的历史默认值）
const DefaultExecTime int64 = 10
