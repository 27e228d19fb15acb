// Package ledger 资源账本：按机器跟踪随时间的CPU/RAM承诺量
// 回答可行性查询并提交预留；feasible+commit在同一把机器锁内完成，
// 共享账本的并行worker不会同时观察到同一份剩余容量
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// DefaultLookaheadHorizon 默认前瞻范围（抽象时间单位）
const DefaultLookaheadHorizon int64 = 1_000_000

// OverCommitError 致命错误：commit在可行性不成立时被调用
// 说明调用方漏掉预检查或feasible/commit之间出现竞态，属于程序缺陷
type OverCommitError struct {
	Machine string
	TaskID  string
	Start   int64
	Finish  int64
}

// Error 实现error接口
func (e *OverCommitError) Error() string {
	return fmt.Sprintf("机器 %s 超额提交: 任务 %s 窗口 [%d,%d)", e.Machine, e.TaskID, e.Start, e.Finish)
}

// reservation 单条资源预留 (machine, [start,finish), cpu, ram)
type reservation struct {
	taskID string
	start  int64
	finish int64
	cpu    int64
	ram    int64
}

// machineLedger 单机账本，mu保护该机器的全部预留
type machineLedger struct {
	mu           sync.Mutex
	machine      types.Machine
	reservations []reservation // 按start升序
}

// Ledger 资源账本（对外导出）
// 预留条目为账本独占所有；Allocator只能通过commit类方法请求，不可直接修改
type Ledger struct {
	machines map[string]*machineLedger
	ids      []string // 机器ID升序
	horizon  int64
}

// New 创建资源账本（对外导出）
// fleet为预先配置好的机器集合；horizon<=0时取默认前瞻范围
func New(fleet types.Fleet, horizon int64) (*Ledger, error) {
	if len(fleet) == 0 {
		return nil, fmt.Errorf("机器集合不能为空")
	}
	if horizon <= 0 {
		horizon = DefaultLookaheadHorizon
	}

	machines := make(map[string]*machineLedger, len(fleet))
	for _, m := range fleet {
		if m.ID == "" {
			return nil, fmt.Errorf("机器必须有ID")
		}
		if m.CPU <= 0 || m.RAM <= 0 {
			return nil, fmt.Errorf("机器 %s 容量非法: cpu=%d, ram=%d", m.ID, m.CPU, m.RAM)
		}
		if _, dup := machines[m.ID]; dup {
			return nil, fmt.Errorf("机器 %s 重复", m.ID)
		}
		machines[m.ID] = &machineLedger{machine: m}
	}

	return &Ledger{
		machines: machines,
		ids:      fleet.SortedIDs(),
		horizon:  horizon,
	}, nil
}

// MachineIDs 返回机器ID列表（升序，确定性遍历顺序）
func (l *Ledger) MachineIDs() []string {
	return l.ids
}

// Horizon 返回前瞻范围
func (l *Ledger) Horizon() int64 {
	return l.horizon
}

// Capacity 返回机器总容量（对外导出）
func (l *Ledger) Capacity(machine string) (cpu, ram int64, err error) {
	ml, ok := l.machines[machine]
	if !ok {
		return 0, 0, fmt.Errorf("机器 %s 不存在", machine)
	}
	return ml.machine.CPU, ml.machine.RAM, nil
}

// Fits 资源声明是否在某台机器的总容量之内（与时间无关的永久条件）
func (l *Ledger) Fits(cpu, ram int64) bool {
	for _, id := range l.ids {
		m := l.machines[id].machine
		if cpu <= m.CPU && ram <= m.RAM {
			return true
		}
	}
	return false
}

// Feasible 窗口可行性查询（对外导出）
// 区间内每个时间点上，已承诺量加候选声明都不得超过容量
func (l *Ledger) Feasible(machine string, start, finish, cpu, ram int64) (bool, error) {
	ml, ok := l.machines[machine]
	if !ok {
		return false, fmt.Errorf("机器 %s 不存在", machine)
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return ml.feasibleLocked(start, finish, cpu, ram), nil
}

// Commit 提交资源预留（对外导出）
// 防御性检查：可行性不成立时返回OverCommitError（调用方必须已预检查）
func (l *Ledger) Commit(machine, taskID string, start, finish, cpu, ram int64) error {
	ml, ok := l.machines[machine]
	if !ok {
		return fmt.Errorf("机器 %s 不存在", machine)
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if !ml.feasibleLocked(start, finish, cpu, ram) {
		return &OverCommitError{Machine: machine, TaskID: taskID, Start: start, Finish: finish}
	}
	ml.commitLocked(reservation{taskID: taskID, start: start, finish: finish, cpu: cpu, ram: ram})
	return nil
}

// AvailableWindow 查找最早可行窗口（对外导出）
// 返回的start满足 start >= notBefore 且窗口 [start, start+minDuration) 可行；
// 超出前瞻范围（notBefore+horizon）视为无窗口，ok=false
func (l *Ledger) AvailableWindow(machine string, minDuration, cpu, ram, notBefore int64) (start int64, ok bool, err error) {
	ml, found := l.machines[machine]
	if !found {
		return 0, false, fmt.Errorf("机器 %s 不存在", machine)
	}
	if minDuration <= 0 {
		return 0, false, fmt.Errorf("窗口长度必须为正: %d", minDuration)
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()

	start, ok = ml.earliestWindowLocked(minDuration, cpu, ram, notBefore, l.horizon)
	return start, ok, nil
}

// ReserveEarliest 查找并原子提交最早可行窗口（对外导出）
// 查找与提交在同一把机器锁内，是共享账本并行模式下的安全预留入口
func (l *Ledger) ReserveEarliest(machine, taskID string, minDuration, cpu, ram, notBefore int64) (types.Window, bool, error) {
	ml, found := l.machines[machine]
	if !found {
		return types.Window{}, false, fmt.Errorf("机器 %s 不存在", machine)
	}
	if minDuration <= 0 {
		return types.Window{}, false, fmt.Errorf("窗口长度必须为正: %d", minDuration)
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()

	start, ok := ml.earliestWindowLocked(minDuration, cpu, ram, notBefore, l.horizon)
	if !ok {
		return types.Window{}, false, nil
	}
	ml.commitLocked(reservation{taskID: taskID, start: start, finish: start + minDuration, cpu: cpu, ram: ram})
	return types.Window{Start: start, Finish: start + minDuration}, true, nil
}

// ReserveAt 在指定起点原子预留（对外导出）
// 紧邻邻接的强制放置入口：窗口不可行时返回ok=false（不是错误）
func (l *Ledger) ReserveAt(machine, taskID string, start, finish, cpu, ram int64) (bool, error) {
	ml, found := l.machines[machine]
	if !found {
		return false, fmt.Errorf("机器 %s 不存在", machine)
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if !ml.feasibleLocked(start, finish, cpu, ram) {
		return false, nil
	}
	ml.commitLocked(reservation{taskID: taskID, start: start, finish: finish, cpu: cpu, ram: ram})
	return true, nil
}

// Utilization 返回机器在[0, makespan)内的CPU时间利用率（指标用）
func (l *Ledger) Utilization(machine string, makespan int64) (float64, error) {
	ml, ok := l.machines[machine]
	if !ok {
		return 0, fmt.Errorf("机器 %s 不存在", machine)
	}
	if makespan <= 0 {
		return 0, nil
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var busy int64
	for _, r := range ml.reservations {
		busy += (r.finish - r.start) * r.cpu
	}
	return float64(busy) / float64(makespan*ml.machine.CPU), nil
}

// feasibleLocked 调用方必须持有ml.mu
// 在区间边界事件点上做峰值扫描：承诺量只在预留的start/finish处变化
func (ml *machineLedger) feasibleLocked(start, finish, cpu, ram int64) bool {
	if cpu > ml.machine.CPU || ram > ml.machine.RAM {
		return false
	}
	if finish <= start {
		return false
	}

	// 候选区间内的检查点：start本身 + 所有落在区间内的预留边界
	points := []int64{start}
	for _, r := range ml.reservations {
		if r.start > start && r.start < finish {
			points = append(points, r.start)
		}
	}

	for _, p := range points {
		var usedCPU, usedRAM int64
		for _, r := range ml.reservations {
			if r.start <= p && p < r.finish {
				usedCPU += r.cpu
				usedRAM += r.ram
			}
		}
		if usedCPU+cpu > ml.machine.CPU || usedRAM+ram > ml.machine.RAM {
			return false
		}
	}
	return true
}

// earliestWindowLocked 调用方必须持有ml.mu
// 候选起点 = notBefore 以及其后的每个预留结束点；取第一个可行者
func (ml *machineLedger) earliestWindowLocked(minDuration, cpu, ram, notBefore, horizon int64) (int64, bool) {
	if notBefore < 0 {
		notBefore = 0
	}
	limit := notBefore + horizon

	candidates := []int64{notBefore}
	for _, r := range ml.reservations {
		if r.finish > notBefore && r.finish <= limit {
			candidates = append(candidates, r.finish)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	for _, c := range candidates {
		if c > limit {
			break
		}
		if ml.feasibleLocked(c, c+minDuration, cpu, ram) {
			return c, true
		}
	}
	return 0, false
}

// commitLocked 调用方必须持有ml.mu
func (ml *machineLedger) commitLocked(r reservation) {
	ml.reservations = append(ml.reservations, r)
	sort.Slice(ml.reservations, func(i, j int) bool {
		if ml.reservations[i].start != ml.reservations[j].start {
			return ml.reservations[i].start < ml.reservations[j].start
		}
		return ml.reservations[i].taskID < ml.reservations[j].taskID
	})
}
