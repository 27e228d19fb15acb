package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/sched-engine/pkg/core/graph"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

func addTask(t *testing.T, g *graph.Graph, id string, priority int, cpu, ram, dur int64) *types.Task {
	t.Helper()
	task := &types.Task{ID: id, JobID: "j1", CPU: cpu, RAM: ram, Priority: priority, Duration: dur}
	require.NoError(t, g.AddTask(task))
	return task
}

func recordByID(t *testing.T, result *Result, id string) types.TaskRecord {
	t.Helper()
	for _, rec := range result.Tasks {
		if rec.TaskID == id {
			return rec
		}
	}
	t.Fatalf("结果中找不到任务 %s", id)
	return types.TaskRecord{}
}

// 场景A：两个无依赖任务，单机容量充足，全部调度成功
func TestSchedule_ScenarioA_TwoIndependentTasks(t *testing.T) {
	g := graph.New()
	addTask(t, g, "t1", 5, 2, 2, 10)
	addTask(t, g, "t2", 5, 2, 2, 10)

	result, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 8, RAM: 16}})
	require.NoError(t, err)

	for _, id := range []string{"t1", "t2"} {
		rec := recordByID(t, result, id)
		assert.True(t, rec.Started, "任务 %s 应该被调度", id)
		assert.NotEqual(t, types.RejectedMarker, rec.Status)
	}
	assert.Equal(t, 2, result.Metrics.Scheduled)
	assert.Equal(t, 0, result.Metrics.Rejected)
}

// 场景B：紧邻依赖X->Y，Y在X的机器上放不下，Y拒绝为NoWindowFound，X仍然调度
func TestSchedule_ScenarioB_ImmediateCapacityExceeded(t *testing.T) {
	g := graph.New()
	addTask(t, g, "x", 9, 2, 2, 10)
	// blocker与x同优先级之下占满x结束后的容量
	addTask(t, g, "blocker", 8, 4, 4, 100)
	y := addTask(t, g, "y", 5, 4, 4, 10)
	require.NoError(t, g.AddEdge("x", "y", types.EdgeImmediate))
	_ = y

	result, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	require.NoError(t, err)

	xRec := recordByID(t, result, "x")
	assert.True(t, xRec.Started, "x应该仍然被调度")

	yRec := recordByID(t, result, "y")
	assert.Equal(t, types.RejectedMarker, yRec.Status)
	assert.Equal(t, types.ReasonNoWindowFound, yRec.Reason)
}

// 场景C：X被拒绝，Y普通依赖X，Y拒绝为UpstreamRejected
func TestSchedule_ScenarioC_UpstreamRejected(t *testing.T) {
	g := graph.New()
	// X声明超过全部机器容量
	addTask(t, g, "x", 9, 100, 100, 10)
	addTask(t, g, "y", 5, 1, 1, 10)
	require.NoError(t, g.AddEdge("x", "y", types.EdgeNonImmediate))

	result, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	require.NoError(t, err)

	xRec := recordByID(t, result, "x")
	assert.Equal(t, types.ReasonInfeasibleClaim, xRec.Reason)

	yRec := recordByID(t, result, "y")
	assert.Equal(t, types.RejectedMarker, yRec.Status)
	assert.Equal(t, types.ReasonUpstreamRejected, yRec.Reason)
}

// 场景D：三节点环，CycleError致命，无任何任务决议
func TestSchedule_ScenarioD_Cycle(t *testing.T) {
	g := graph.New()
	a := addTask(t, g, "a", 5, 1, 1, 10)
	b := addTask(t, g, "b", 5, 1, 1, 10)
	c := addTask(t, g, "c", 5, 1, 1, 10)
	require.NoError(t, g.AddEdge("a", "b", types.EdgeNonImmediate))
	require.NoError(t, g.AddEdge("b", "c", types.EdgeNonImmediate))
	require.NoError(t, g.AddEdge("c", "a", types.EdgeNonImmediate))

	_, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	require.Error(t, err)

	var cycleErr *graph.CycleError
	assert.True(t, errors.As(err, &cycleErr), "应该是CycleError: %v", err)

	// 无部分结果：所有任务保持未决
	for _, task := range []*types.Task{a, b, c} {
		assert.Equal(t, types.StatusPending, task.Status())
	}
}

// 不变量：普通前置的finish <= 后继的start
func TestSchedule_PrecedenceInvariant(t *testing.T) {
	g := graph.New()
	addTask(t, g, "t1", 9, 2, 2, 30)
	addTask(t, g, "t2", 8, 2, 2, 20)
	addTask(t, g, "t3", 7, 2, 2, 10)
	require.NoError(t, g.AddEdge("t1", "t3", types.EdgeNonImmediate))
	require.NoError(t, g.AddEdge("t2", "t3", types.EdgeNonImmediate))

	result, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 8, RAM: 16}})
	require.NoError(t, err)

	t3Rec := recordByID(t, result, "t3")
	require.True(t, t3Rec.Started)
	for _, predID := range []string{"t1", "t2"} {
		predRec := recordByID(t, result, predID)
		require.True(t, predRec.Started)
		assert.LessOrEqual(t, predRec.Finish, t3Rec.Start,
			"前置 %s 必须在t3开始前结束", predID)
	}
}

// 不变量：混合前置（紧邻+普通）下先序仍然成立
// 紧邻强制起点早于普通前置finish时，任务必须拒绝而非提前开始
func TestSchedule_MixedPredecessors(t *testing.T) {
	g := graph.New()
	addTask(t, g, "a", 9, 1, 1, 5)
	addTask(t, g, "b", 8, 1, 1, 10)
	addTask(t, g, "c", 7, 1, 1, 10)
	require.NoError(t, g.AddEdge("a", "c", types.EdgeImmediate))
	require.NoError(t, g.AddEdge("b", "c", types.EdgeNonImmediate))

	result, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 8, RAM: 8}})
	require.NoError(t, err)

	aRec := recordByID(t, result, "a")
	bRec := recordByID(t, result, "b")
	cRec := recordByID(t, result, "c")
	require.True(t, aRec.Started)
	require.True(t, bRec.Started)

	if cRec.Started {
		assert.LessOrEqual(t, bRec.Finish, cRec.Start,
			"普通前置b必须在c开始前结束")
		assert.Equal(t, aRec.Finish, cRec.Start, "紧邻前置a要求零间隙")
	} else {
		assert.Equal(t, types.RejectedMarker, cRec.Status)
		assert.Equal(t, types.ReasonNoWindowFound, cRec.Reason)
	}
	// a.finish=5 < b.finish=10：邻接与先序不可能同时满足，c必然被拒绝
	assert.False(t, cRec.Started)
}

// 不变量：紧邻前置同机且start正好等于finish
func TestSchedule_ImmediateAdjacencyInvariant(t *testing.T) {
	g := graph.New()
	addTask(t, g, "p", 9, 2, 2, 10)
	addTask(t, g, "q", 8, 2, 2, 10)
	require.NoError(t, g.AddEdge("p", "q", types.EdgeImmediate))

	result, err := Schedule(g, types.Fleet{
		{ID: "m1", CPU: 4, RAM: 8},
		{ID: "m2", CPU: 4, RAM: 8},
	})
	require.NoError(t, err)

	pRec := recordByID(t, result, "p")
	qRec := recordByID(t, result, "q")
	require.True(t, pRec.Started)
	require.True(t, qRec.Started)
	assert.Equal(t, pRec.Machine, qRec.Machine)
	assert.Equal(t, pRec.Finish, qRec.Start)
}

// 不变量：拒绝任务记录优先级0且无机器/时间字段
func TestSchedule_RejectedSentinel(t *testing.T) {
	g := graph.New()
	addTask(t, g, "t1", 7, 100, 100, 10)

	result, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	require.NoError(t, err)

	rec := recordByID(t, result, "t1")
	assert.Equal(t, types.RejectedMarker, rec.Status)
	assert.Equal(t, 0, rec.Priority, "拒绝任务记录优先级必须是哨兵值0")
	assert.False(t, rec.Started)
	assert.False(t, rec.Finished)
	assert.Empty(t, rec.Machine)
}

// 不变量：任何机器任何时间点的承诺量不超容量
func TestSchedule_NoOvercommit(t *testing.T) {
	g := graph.New()
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		addTask(t, g, id, 5, 3, 3, 10)
	}

	fleet := types.Fleet{{ID: "m1", CPU: 4, RAM: 8}, {ID: "m2", CPU: 4, RAM: 8}}
	result, err := Schedule(g, fleet)
	require.NoError(t, err)

	// 在每个已调度任务的起点抽查承诺总量
	for _, probe := range result.Tasks {
		if !probe.Started {
			continue
		}
		var cpu, ram int64
		for _, rec := range result.Tasks {
			if !rec.Started || rec.Machine != probe.Machine {
				continue
			}
			if rec.Start <= probe.Start && probe.Start < rec.Finish {
				cpu += rec.CPU
				ram += rec.RAM
			}
		}
		m, _ := fleet.Get(probe.Machine)
		assert.LessOrEqual(t, cpu, m.CPU, "机器 %s 在t=%d CPU超额", probe.Machine, probe.Start)
		assert.LessOrEqual(t, ram, m.RAM, "机器 %s 在t=%d RAM超额", probe.Machine, probe.Start)
	}
}

// 幂等性：对已完全决议的图重跑，所有任务状态不变
func TestSchedule_Idempotent(t *testing.T) {
	g := graph.New()
	t1 := addTask(t, g, "t1", 5, 2, 2, 10)
	t2 := addTask(t, g, "t2", 0, 2, 2, 10)

	fleet := types.Fleet{{ID: "m1", CPU: 4, RAM: 8}}
	first, err := Schedule(g, fleet)
	require.NoError(t, err)

	w1, _ := t1.Window()
	require.Equal(t, types.StatusScheduled, t1.Status())
	require.Equal(t, types.StatusRejected, t2.Status())

	second, err := Schedule(g, fleet)
	require.NoError(t, err)

	assert.Equal(t, types.StatusScheduled, t1.Status())
	w1Again, _ := t1.Window()
	assert.Equal(t, w1, w1Again, "重跑不得改变已调度窗口")
	assert.Equal(t, types.StatusRejected, t2.Status())

	require.Equal(t, len(first.Tasks), len(second.Tasks))
	for i := range first.Tasks {
		assert.Equal(t, first.Tasks[i], second.Tasks[i], "重跑记录必须逐条一致")
	}
}

// 优先级0任务一律拒绝为NotAdmitted
func TestSchedule_PriorityZeroRejected(t *testing.T) {
	g := graph.New()
	addTask(t, g, "t1", 0, 1, 1, 10)
	addTask(t, g, "t2", 5, 1, 1, 10)

	result, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	require.NoError(t, err)

	rec := recordByID(t, result, "t1")
	assert.Equal(t, types.RejectedMarker, rec.Status)
	assert.Equal(t, types.ReasonNotAdmitted, rec.Reason)

	rec2 := recordByID(t, result, "t2")
	assert.True(t, rec2.Started)
	assert.Equal(t, 5, rec2.Priority, "准入任务不得记录哨兵优先级0")
}

// 高优先级任务先拿到更早的窗口
func TestSchedule_PriorityOrdering(t *testing.T) {
	g := graph.New()
	addTask(t, g, "low", 1, 4, 8, 10)
	addTask(t, g, "high", 9, 4, 8, 10)

	result, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	require.NoError(t, err)

	highRec := recordByID(t, result, "high")
	lowRec := recordByID(t, result, "low")
	require.True(t, highRec.Started)
	require.True(t, lowRec.Started)
	assert.Less(t, highRec.Start, lowRec.Start, "高优先级任务应该先放置")
}

// 自环边是退化空操作，不影响调度
func TestSchedule_SelfLoopNoOp(t *testing.T) {
	g := graph.New()
	addTask(t, g, "t1", 5, 1, 1, 10)
	require.NoError(t, g.AddEdge("t1", "t1", types.EdgeImmediate))

	result, err := Schedule(g, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	require.NoError(t, err)

	rec := recordByID(t, result, "t1")
	assert.True(t, rec.Started)

	// 自环边仍然出现在边记录中
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "t1", result.Edges[0].Source)
	assert.Equal(t, "t1", result.Edges[0].Target)
}

// 并行分量调度：结果满足全部不变量
func TestSchedule_ParallelComponents(t *testing.T) {
	g := graph.New()
	// 三个独立分量
	for _, job := range []string{"a", "b", "c"} {
		p := &types.Task{ID: job + "1", JobID: job, CPU: 2, RAM: 2, Priority: 5, Duration: 10}
		q := &types.Task{ID: job + "2", JobID: job, CPU: 2, RAM: 2, Priority: 4, Duration: 10}
		require.NoError(t, g.AddTask(p))
		require.NoError(t, g.AddTask(q))
		require.NoError(t, g.AddEdge(job+"1", job+"2", types.EdgeNonImmediate))
	}

	fleet := types.Fleet{{ID: "m1", CPU: 4, RAM: 8}, {ID: "m2", CPU: 4, RAM: 8}}
	b, err := NewBuilder(g, fleet, WithParallelism(3))
	require.NoError(t, err)

	result, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, result.Metrics.Scheduled)

	for _, job := range []string{"a", "b", "c"} {
		pRec := recordByID(t, result, job+"1")
		qRec := recordByID(t, result, job+"2")
		assert.LessOrEqual(t, pRec.Finish, qRec.Start, "分量 %s 内先序必须保持", job)
	}
}

// 事件总线收到任务级和轮次级事件
func TestSchedule_PublishesEvents(t *testing.T) {
	g := graph.New()
	addTask(t, g, "t1", 5, 1, 1, 10)
	addTask(t, g, "t2", 0, 1, 1, 10)

	bus := NewEventBus()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	_, err = Schedule(g, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}}, WithEventBus(bus))
	require.NoError(t, err)

	seen := make(map[EventType]int)
	for len(seen) < 4 {
		select {
		case e := <-events:
			seen[e.Type]++
		case <-ctx.Done():
			t.Fatal("等待事件超时")
		}
	}
	assert.Equal(t, 1, seen[EventScheduleStarted])
	assert.Equal(t, 1, seen[EventScheduleCompleted])
	assert.Equal(t, 1, seen[EventTaskScheduled])
	assert.Equal(t, 1, seen[EventTaskRejected])
}
