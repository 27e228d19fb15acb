package schedule

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/stevelan1995/sched-engine/pkg/core/admission"
	"github.com/stevelan1995/sched-engine/pkg/core/allocator"
	"github.com/stevelan1995/sched-engine/pkg/core/graph"
	"github.com/stevelan1995/sched-engine/pkg/core/ledger"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// Result 一轮调度的完整决议结果（对外导出）
type Result struct {
	RunID   string             `json:"run_id"`
	Tasks   []types.TaskRecord `json:"tasks"`
	Edges   []types.EdgeRecord `json:"edges"`
	Metrics Metrics            `json:"metrics"`
}

// Options 调度编排选项
type Options struct {
	Horizon     int64     // 前瞻范围（<=0取默认值）
	Parallelism int       // 并行worker数（<=1为顺序调度，确定性输出）
	Bus         *EventBus // 可选事件总线
}

// Option 函数式选项
type Option func(*Options)

// WithHorizon 设置前瞻范围
func WithHorizon(horizon int64) Option {
	return func(o *Options) { o.Horizon = horizon }
}

// WithParallelism 设置并行worker数（弱连通分量间并行）
func WithParallelism(n int) Option {
	return func(o *Options) { o.Parallelism = n }
}

// WithEventBus 设置事件总线
func WithEventBus(bus *EventBus) Option {
	return func(o *Options) { o.Bus = bus }
}

// Builder 调度编排器（对外导出）
type Builder struct {
	graph  *graph.Graph
	ledger *ledger.Ledger
	alloc  *allocator.Allocator
	adm    *admission.Controller
	bus    *EventBus
	par    int
	runID  string
}

// NewBuilder 创建调度编排器（对外导出）
func NewBuilder(g *graph.Graph, fleet types.Fleet, opts ...Option) (*Builder, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	l, err := ledger.New(fleet, options.Horizon)
	if err != nil {
		return nil, fmt.Errorf("创建资源账本失败: %w", err)
	}

	alloc := allocator.New(g, l)
	return &Builder{
		graph:  g,
		ledger: l,
		alloc:  alloc,
		adm:    admission.New(g, l, alloc),
		bus:    options.Bus,
		par:    options.Parallelism,
		runID:  uuid.NewString(),
	}, nil
}

// Schedule 调度核心的唯一入口（对外导出）
// 接收依赖图和机器集合，返回完全决议的任务/边记录
func Schedule(g *graph.Graph, fleet types.Fleet, opts ...Option) (*Result, error) {
	b, err := NewBuilder(g, fleet, opts...)
	if err != nil {
		return nil, err
	}
	return b.Run(context.Background())
}

// RunID 返回本轮调度ID
func (b *Builder) RunID() string {
	return b.runID
}

// Run 执行一轮完整调度（对外导出）
// 结构校验失败（环、多紧邻前置）为致命错误，不产出部分结果；
// 任务级失败降级为Rejected并继续
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	// 结构不变量：非自环子图无环、每任务至多一条入向紧邻边
	if _, err := b.graph.TopologicalOrder(); err != nil {
		return nil, err
	}
	if err := b.graph.Validate(); err != nil {
		return nil, err
	}

	b.publish(NewEvent(EventScheduleStarted, b.runID, "", &RunEventPayload{
		TaskCount: len(b.graph.Tasks()),
	}))

	order := b.adm.Order()

	if b.par > 1 {
		if err := b.runParallel(ctx, order); err != nil {
			return nil, err
		}
	} else {
		if err := b.resolvePasses(ctx, order); err != nil {
			return nil, err
		}
	}

	result := b.collect()
	b.publish(NewEvent(EventScheduleCompleted, b.runID, "", &RunEventPayload{
		TaskCount:      len(result.Tasks),
		ScheduledCount: result.Metrics.Scheduled,
		RejectedCount:  result.Metrics.Rejected,
		Makespan:       result.Metrics.Makespan,
	}))
	return result, nil
}

// resolvePasses 多轮遍历直到无进展；剩余未决任务强制拒绝为Deadlock
// order为优先级降序、任务ID升序；前置未决议的任务以Pending留待后续轮次
func (b *Builder) resolvePasses(ctx context.Context, order []string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		progress := false
		pendingLeft := false

		for _, id := range order {
			t, err := b.graph.Task(id)
			if err != nil {
				return err
			}
			// 终态任务不再访问（重跑已决议图为空操作）
			if t.Resolved() {
				continue
			}

			res, err := b.adm.Decide(id)
			if err != nil {
				return err
			}
			if res.Decision == admission.Reject {
				if err := b.reject(t, res.Reason); err != nil {
					return err
				}
				progress = true
				continue
			}

			outcome, err := b.alloc.Place(id)
			if err != nil {
				return err
			}
			switch outcome.Kind {
			case allocator.OutcomePlaced:
				b.publish(NewEvent(EventTaskScheduled, b.runID, id, &TaskEventPayload{
					Machine: outcome.Machine,
					Start:   outcome.Window.Start,
					Finish:  outcome.Window.Finish,
				}))
				progress = true
			case allocator.OutcomeNoWindow:
				if err := b.reject(t, types.ReasonNoWindowFound); err != nil {
					return err
				}
				progress = true
			case allocator.OutcomePending:
				pendingLeft = true
			}
		}

		if !pendingLeft {
			return nil
		}
		if !progress {
			break
		}
	}

	// 无进展且仍有未决任务：前置永远无法决议，强制拒绝
	for _, id := range order {
		t, err := b.graph.Task(id)
		if err != nil {
			return err
		}
		if t.Resolved() {
			continue
		}
		log.Printf("⚠️ [调度编排] 任务 %s 多轮无进展，标记为Deadlock", id)
		if err := b.reject(t, types.ReasonDeadlock); err != nil {
			return err
		}
	}
	return nil
}

// runParallel 弱连通分量间并行调度
// 分量之间无跨边，共享账本下的放置由机器锁内的原子预留保证不超额
func (b *Builder) runParallel(ctx context.Context, order []string) error {
	components := b.graph.Components()

	// order在分量内的投影，保持优先级顺序
	memberOf := make(map[string]int, len(order))
	for ci, comp := range components {
		for _, id := range comp {
			memberOf[id] = ci
		}
	}
	subOrders := make([][]string, len(components))
	for _, id := range order {
		ci := memberOf[id]
		subOrders[ci] = append(subOrders[ci], id)
	}

	workers := b.par
	if workers > len(components) {
		workers = len(components)
	}

	jobs := make(chan []string)
	errs := make([]error, 0)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				if err := b.resolvePasses(ctx, sub); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	for _, sub := range subOrders {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// reject 写入拒绝终态并发布事件
func (b *Builder) reject(t *types.Task, reason types.RejectReason) error {
	if err := t.MarkRejected(reason); err != nil {
		return err
	}
	b.publish(NewEvent(EventTaskRejected, b.runID, t.ID, &TaskEventPayload{Reason: reason}))
	return nil
}

// collect 汇总决议记录（任务按ID升序，确定性输出）
func (b *Builder) collect() *Result {
	tasks := b.graph.Tasks()
	records := make([]types.TaskRecord, 0, len(tasks))
	for _, id := range b.graph.TaskIDs() {
		records = append(records, types.NewTaskRecord(tasks[id]))
	}

	edges := make([]types.EdgeRecord, 0, len(b.graph.Edges()))
	for _, e := range b.graph.Edges() {
		edges = append(edges, types.EdgeRecord{Source: e.Source, Target: e.Target, Kind: e.Kind})
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	return &Result{
		RunID:   b.runID,
		Tasks:   records,
		Edges:   edges,
		Metrics: computeMetrics(records, b.ledger),
	}
}

// publish 尽力发布事件（无总线时为空操作）
func (b *Builder) publish(event *Event) {
	if b.bus == nil {
		return
	}
	if err := b.bus.Publish(event); err != nil {
		log.Printf("⚠️ [调度编排] 发布事件失败: %v", err)
	}
}
