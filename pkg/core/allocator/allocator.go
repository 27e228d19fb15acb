// Package allocator 放置器：为已准入任务选择机器和时间窗口并提交预留
package allocator

import (
	"fmt"

	"github.com/stevelan1995/sched-engine/pkg/core/graph"
	"github.com/stevelan1995/sched-engine/pkg/core/ledger"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// OutcomeKind 放置结果类型
type OutcomeKind int

const (
	// OutcomePlaced 放置成功（Probe时表示存在可行放置）
	OutcomePlaced OutcomeKind = iota
	// OutcomePending 前置任务尚未决议，本轮无法放置，后续轮次重试
	OutcomePending
	// OutcomeNoWindow 前瞻范围内无可行放置（硬拒绝）
	OutcomeNoWindow
)

// Outcome 放置结果（对外导出）
type Outcome struct {
	Kind    OutcomeKind
	Machine string
	Window  types.Window
}

// Allocator 放置器（对外导出）
type Allocator struct {
	graph  *graph.Graph
	ledger *ledger.Ledger
}

// New 创建放置器（对外导出）
func New(g *graph.Graph, l *ledger.Ledger) *Allocator {
	return &Allocator{graph: g, ledger: l}
}

// placement 放置约束的中间计算结果
type placement struct {
	notBefore int64  // 所有前置finish的最大值
	forced    bool   // 紧邻前置存在，机器和起点被强制
	machine   string // forced时的强制机器
	start     int64  // forced时的强制起点
	pending   bool   // 存在未决议前置
}

// resolve 计算任务的放置约束
// 普通前置给出notBefore下界；紧邻前置强制机器和起点正好等于其finish
func (a *Allocator) resolve(t *types.Task) (placement, error) {
	var p placement

	preds, err := a.graph.Predecessors(t.ID)
	if err != nil {
		return p, err
	}
	for _, predID := range preds {
		pred, err := a.graph.Task(predID)
		if err != nil {
			return p, err
		}
		if pred.Status() != types.StatusScheduled {
			p.pending = true
			return p, nil
		}
		w, _ := pred.Window()
		if w.Open {
			// finish未决（仍在运行），本轮无法放置
			p.pending = true
			return p, nil
		}
		if w.Finish > p.notBefore {
			p.notBefore = w.Finish
		}
	}

	immPred, hasImm, err := a.graph.ImmediatePredecessor(t.ID)
	if err != nil {
		return p, err
	}
	if hasImm {
		pred, err := a.graph.Task(immPred)
		if err != nil {
			return p, err
		}
		w, ok := pred.Window()
		if !ok || w.Open {
			p.pending = true
			return p, nil
		}
		p.forced = true
		p.machine = pred.Machine()
		p.start = w.Finish
	}

	return p, nil
}

// Probe 试探放置（对外导出，不提交预留）
// AdmissionController用它在有限前瞻范围内做投机可行性判断
func (a *Allocator) Probe(taskID string) (Outcome, error) {
	t, err := a.graph.Task(taskID)
	if err != nil {
		return Outcome{}, err
	}
	if t.Duration <= 0 {
		return Outcome{}, fmt.Errorf("任务 %s 执行时长非法: %d", taskID, t.Duration)
	}

	p, err := a.resolve(t)
	if err != nil {
		return Outcome{}, err
	}
	if p.pending {
		return Outcome{Kind: OutcomePending}, nil
	}

	if p.forced {
		// 强制起点早于其余前置的finish时，邻接与先序无法同时满足
		if p.start < p.notBefore {
			return Outcome{Kind: OutcomeNoWindow}, nil
		}
		ok, err := a.ledger.Feasible(p.machine, p.start, p.start+t.Duration, t.CPU, t.RAM)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			// 邻接约束无法换机器满足
			return Outcome{Kind: OutcomeNoWindow}, nil
		}
		return Outcome{
			Kind:    OutcomePlaced,
			Machine: p.machine,
			Window:  types.Window{Start: p.start, Finish: p.start + t.Duration},
		}, nil
	}

	machine, start, found, err := a.searchEarliest(t, p.notBefore)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		return Outcome{Kind: OutcomeNoWindow}, nil
	}
	return Outcome{
		Kind:    OutcomePlaced,
		Machine: machine,
		Window:  types.Window{Start: start, Finish: start + t.Duration},
	}, nil
}

// Place 放置任务并提交预留（对外导出）
// 只对AdmissionController未拒绝的任务调用；成功时写入任务终态
func (a *Allocator) Place(taskID string) (Outcome, error) {
	t, err := a.graph.Task(taskID)
	if err != nil {
		return Outcome{}, err
	}
	if t.Resolved() {
		return Outcome{}, fmt.Errorf("任务 %s 已达终态，不可重复放置", taskID)
	}
	if t.Duration <= 0 {
		return Outcome{}, fmt.Errorf("任务 %s 执行时长非法: %d", taskID, t.Duration)
	}

	p, err := a.resolve(t)
	if err != nil {
		return Outcome{}, err
	}
	if p.pending {
		return Outcome{Kind: OutcomePending}, nil
	}

	if p.forced {
		// 机器和起点被紧邻前置强制，失败即硬拒绝；
		// 强制起点早于其余前置的finish时，邻接与先序无法同时满足
		if p.start < p.notBefore {
			return Outcome{Kind: OutcomeNoWindow}, nil
		}
		ok, err := a.ledger.ReserveAt(p.machine, t.ID, p.start, p.start+t.Duration, t.CPU, t.RAM)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			return Outcome{Kind: OutcomeNoWindow}, nil
		}
		w := types.Window{Start: p.start, Finish: p.start + t.Duration}
		if err := t.MarkScheduled(p.machine, w); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomePlaced, Machine: p.machine, Window: w}, nil
	}

	// 自由放置：先全局探查最优候选，再在机器锁内原子预留；
	// 并行worker抢占同一窗口时重新探查
	for {
		machine, start, found, err := a.searchEarliest(t, p.notBefore)
		if err != nil {
			return Outcome{}, err
		}
		if !found {
			return Outcome{Kind: OutcomeNoWindow}, nil
		}

		ok, err := a.ledger.ReserveAt(machine, t.ID, start, start+t.Duration, t.CPU, t.RAM)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			continue
		}

		w := types.Window{Start: start, Finish: start + t.Duration}
		if err := t.MarkScheduled(machine, w); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomePlaced, Machine: machine, Window: w}, nil
	}
}

// searchEarliest 按机器ID固定顺序搜索，取全局最早窗口，起点相同时取较小机器ID
func (a *Allocator) searchEarliest(t *types.Task, notBefore int64) (machine string, start int64, found bool, err error) {
	for _, id := range a.ledger.MachineIDs() {
		s, ok, werr := a.ledger.AvailableWindow(id, t.Duration, t.CPU, t.RAM, notBefore)
		if werr != nil {
			return "", 0, false, werr
		}
		if !ok {
			continue
		}
		if !found || s < start {
			found = true
			start = s
			machine = id
		}
	}
	return machine, start, found, nil
}
