package dto

import (
	"fmt"

	"github.com/stevelan1995/sched-engine/pkg/core/graph"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// TaskSpec 调度请求中的任务声明
type TaskSpec struct {
	ID       string `json:"id" binding:"required"`
	JobID    string `json:"job_id"`
	CPU      int64  `json:"cpu"`
	RAM      int64  `json:"ram"`
	Priority int    `json:"priority"`
	Duration int64  `json:"duration"`
}

// EdgeSpec 调度请求中的依赖边声明
type EdgeSpec struct {
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
	Kind   string `json:"kind"` // imm / non-imm，缺省为non-imm
}

// ScheduleRequest 提交一轮调度的请求体
type ScheduleRequest struct {
	Tasks []TaskSpec `json:"tasks" binding:"required"`
	Edges []EdgeSpec `json:"edges"`
}

// ToGraph 将请求体转换为依赖图
func (r *ScheduleRequest) ToGraph(defaultDuration int64) (*graph.Graph, error) {
	if len(r.Tasks) == 0 {
		return nil, fmt.Errorf("任务列表不能为空")
	}

	g := graph.New()
	for _, spec := range r.Tasks {
		dur := spec.Duration
		if dur <= 0 {
			dur = defaultDuration
		}
		task := &types.Task{
			ID:       spec.ID,
			JobID:    spec.JobID,
			CPU:      spec.CPU,
			RAM:      spec.RAM,
			Priority: spec.Priority,
			Duration: dur,
		}
		if err := g.AddTask(task); err != nil {
			return nil, err
		}
	}

	for _, spec := range r.Edges {
		kind := types.EdgeKind(spec.Kind)
		if spec.Kind == "" {
			kind = types.EdgeNonImmediate
		}
		if err := g.AddEdge(spec.Source, spec.Target, kind); err != nil {
			return nil, err
		}
	}
	return g, nil
}
