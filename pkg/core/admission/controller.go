// Package admission 准入控制：按优先级顺序决定任务准入或永久拒绝
package admission

import (
	"sort"

	"github.com/stevelan1995/sched-engine/pkg/core/allocator"
	"github.com/stevelan1995/sched-engine/pkg/core/graph"
	"github.com/stevelan1995/sched-engine/pkg/core/ledger"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// Decision 准入决定
type Decision int

const (
	// Admit 准入，交给Allocator放置
	Admit Decision = iota
	// Reject 永久拒绝，Reason保留诊断原因
	Reject
)

// Result 准入结果（对外导出）
type Result struct {
	Decision Decision
	Reason   types.RejectReason
}

// Prober 投机放置探查接口（allocator.Allocator实现）
type Prober interface {
	Probe(taskID string) (allocator.Outcome, error)
}

// Controller 准入控制器（对外导出）
type Controller struct {
	graph  *graph.Graph
	ledger *ledger.Ledger
	prober Prober
}

// New 创建准入控制器（对外导出）
func New(g *graph.Graph, l *ledger.Ledger, p Prober) *Controller {
	return &Controller{graph: g, ledger: l, prober: p}
}

// Order 返回准入处理顺序（对外导出）
// 主键：优先级降序；次键：任务ID升序（确定性破平）
func (c *Controller) Order() []string {
	ids := c.graph.TaskIDs()
	tasks := c.graph.Tasks()
	sort.SliceStable(ids, func(i, j int) bool {
		ti, tj := tasks[ids[i]], tasks[ids[j]]
		if ti.Priority != tj.Priority {
			return ti.Priority > tj.Priority
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Decide 对单个任务做准入决定（对外导出）
// 拒绝条件依次为：保留的优先级0哨兵档、上游已拒绝、声明永久不可满足、
// 前瞻范围内投机探查无可行放置
func (c *Controller) Decide(taskID string) (Result, error) {
	t, err := c.graph.Task(taskID)
	if err != nil {
		return Result{}, err
	}

	// 优先级0是"未准入"保留档，不是可调度的优先级层级
	if t.Priority <= 0 {
		return Result{Decision: Reject, Reason: types.ReasonNotAdmitted}, nil
	}

	// 依赖失败传播：任一前置（紧邻或普通）已被拒绝
	preds, err := c.graph.Predecessors(taskID)
	if err != nil {
		return Result{}, err
	}
	for _, predID := range preds {
		pred, err := c.graph.Task(predID)
		if err != nil {
			return Result{}, err
		}
		if pred.Status() == types.StatusRejected {
			return Result{Decision: Reject, Reason: types.ReasonUpstreamRejected}, nil
		}
	}

	// 与时间无关的永久条件：没有任何机器的总容量能满足声明
	if !c.ledger.Fits(t.CPU, t.RAM) {
		return Result{Decision: Reject, Reason: types.ReasonInfeasibleClaim}, nil
	}

	// 投机放置探查：有限前瞻范围内无可行放置则拒绝
	// Pending（前置未决议）不是拒绝，准入后由ScheduleBuilder后续轮次重试
	outcome, err := c.prober.Probe(taskID)
	if err != nil {
		return Result{}, err
	}
	if outcome.Kind == allocator.OutcomeNoWindow {
		return Result{Decision: Reject, Reason: types.ReasonNoWindowFound}, nil
	}

	return Result{Decision: Admit}, nil
}
