package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/sched-engine/pkg/core/graph"
	"github.com/stevelan1995/sched-engine/pkg/core/ledger"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

func setup(t *testing.T, fleet types.Fleet) (*graph.Graph, *ledger.Ledger, *Allocator) {
	t.Helper()
	g := graph.New()
	l, err := ledger.New(fleet, 0)
	require.NoError(t, err)
	return g, l, New(g, l)
}

func addTask(t *testing.T, g *graph.Graph, id string, cpu, ram int64, dur int64) *types.Task {
	t.Helper()
	task := &types.Task{ID: id, JobID: "j1", CPU: cpu, RAM: ram, Priority: 5, Duration: dur}
	require.NoError(t, g.AddTask(task))
	return task
}

func TestPlace_NoPredecessors(t *testing.T) {
	g, _, a := setup(t, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	task := addTask(t, g, "t1", 2, 2, 10)

	out, err := a.Place("t1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePlaced, out.Kind)
	assert.Equal(t, "m1", out.Machine)
	assert.Equal(t, int64(0), out.Window.Start)
	assert.Equal(t, int64(10), out.Window.Finish)
	assert.Equal(t, types.StatusScheduled, task.Status())
}

func TestPlace_NotBeforePredecessorFinish(t *testing.T) {
	g, _, a := setup(t, types.Fleet{{ID: "m1", CPU: 8, RAM: 8}})
	addTask(t, g, "t1", 1, 1, 20)
	task2 := addTask(t, g, "t2", 1, 1, 10)
	require.NoError(t, g.AddEdge("t1", "t2", types.EdgeNonImmediate))

	_, err := a.Place("t1")
	require.NoError(t, err)

	out, err := a.Place("t2")
	require.NoError(t, err)
	require.Equal(t, OutcomePlaced, out.Kind)
	assert.GreaterOrEqual(t, out.Window.Start, int64(20), "普通前置要求finish-before-start")
	w, _ := task2.Window()
	assert.Equal(t, out.Window, w)
}

func TestPlace_PendingWhenPredecessorUnresolved(t *testing.T) {
	g, _, a := setup(t, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	addTask(t, g, "t1", 1, 1, 10)
	addTask(t, g, "t2", 1, 1, 10)
	require.NoError(t, g.AddEdge("t1", "t2", types.EdgeNonImmediate))

	out, err := a.Place("t2")
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, out.Kind, "前置未决议应该返回Pending而非拒绝")
}

func TestPlace_ImmediateAdjacency(t *testing.T) {
	g, _, a := setup(t, types.Fleet{
		{ID: "m1", CPU: 4, RAM: 8},
		{ID: "m2", CPU: 4, RAM: 8},
	})
	t1 := addTask(t, g, "t1", 2, 2, 10)
	t2 := addTask(t, g, "t2", 2, 2, 15)
	require.NoError(t, g.AddEdge("t1", "t2", types.EdgeImmediate))

	_, err := a.Place("t1")
	require.NoError(t, err)

	out, err := a.Place("t2")
	require.NoError(t, err)
	require.Equal(t, OutcomePlaced, out.Kind)

	// 同机、零间隙
	assert.Equal(t, t1.Machine(), t2.Machine())
	w1, _ := t1.Window()
	w2, _ := t2.Window()
	assert.Equal(t, w1.Finish, w2.Start, "紧邻依赖要求start正好等于前置finish")
}

func TestPlace_ImmediateAdjacency_CapacityExceeded(t *testing.T) {
	g, l, a := setup(t, types.Fleet{
		{ID: "m1", CPU: 4, RAM: 8},
		{ID: "m2", CPU: 8, RAM: 16},
	})
	addTask(t, g, "t1", 2, 2, 10)
	addTask(t, g, "t2", 4, 4, 10)
	require.NoError(t, g.AddEdge("t1", "t2", types.EdgeImmediate))

	_, err := a.Place("t1")
	require.NoError(t, err)

	// t1调度在m1；占满m1在[10,20)的剩余容量，t2的强制放置必然失败
	require.NoError(t, l.Commit("m1", "blocker", 10, 20, 4, 4))

	out, err := a.Place("t2")
	require.NoError(t, err)
	// 即使m2完全空闲，邻接约束也不允许换机器
	assert.Equal(t, OutcomeNoWindow, out.Kind)
}

func TestPlace_MixedPredecessors(t *testing.T) {
	g, _, a := setup(t, types.Fleet{{ID: "m1", CPU: 8, RAM: 8}})
	addTask(t, g, "ta", 1, 1, 10)
	addTask(t, g, "tb", 1, 1, 5)
	addTask(t, g, "tc", 1, 1, 10)
	require.NoError(t, g.AddEdge("ta", "tc", types.EdgeImmediate))
	require.NoError(t, g.AddEdge("tb", "tc", types.EdgeNonImmediate))

	_, err := a.Place("ta")
	require.NoError(t, err)
	_, err = a.Place("tb")
	require.NoError(t, err)

	// 紧邻起点(ta.finish=10)不早于普通前置finish(tb.finish=5)，两类约束同时满足
	out, err := a.Place("tc")
	require.NoError(t, err)
	require.Equal(t, OutcomePlaced, out.Kind)
	assert.Equal(t, "m1", out.Machine)
	assert.Equal(t, int64(10), out.Window.Start)
}

func TestPlace_MixedPredecessors_AdjacencyConflictsPrecedence(t *testing.T) {
	g, _, a := setup(t, types.Fleet{{ID: "m1", CPU: 8, RAM: 8}})
	addTask(t, g, "ta", 1, 1, 5)
	addTask(t, g, "tb", 1, 1, 10)
	tc := addTask(t, g, "tc", 1, 1, 10)
	require.NoError(t, g.AddEdge("ta", "tc", types.EdgeImmediate))
	require.NoError(t, g.AddEdge("tb", "tc", types.EdgeNonImmediate))

	_, err := a.Place("ta")
	require.NoError(t, err)
	_, err = a.Place("tb")
	require.NoError(t, err)

	// 紧邻强制起点(ta.finish=5)早于普通前置finish(tb.finish=10)，邻接与先序无法同时满足
	out, err := a.Place("tc")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoWindow, out.Kind)
	assert.Equal(t, types.StatusPending, tc.Status(), "Place返回NoWindow时不写终态")

	probe, err := a.Probe("tc")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoWindow, probe.Kind, "Probe与Place对冲突约束的判定必须一致")
}

func TestPlace_TieBreakLowestMachineID(t *testing.T) {
	g, _, a := setup(t, types.Fleet{
		{ID: "m2", CPU: 4, RAM: 8},
		{ID: "m1", CPU: 4, RAM: 8},
	})
	addTask(t, g, "t1", 2, 2, 10)

	out, err := a.Place("t1")
	require.NoError(t, err)
	require.Equal(t, OutcomePlaced, out.Kind)
	assert.Equal(t, "m1", out.Machine, "起点相同应取较小机器ID")
}

func TestProbe_DoesNotCommit(t *testing.T) {
	g, l, a := setup(t, types.Fleet{{ID: "m1", CPU: 4, RAM: 8}})
	task := addTask(t, g, "t1", 4, 8, 10)

	out, err := a.Probe("t1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePlaced, out.Kind)
	assert.Equal(t, types.StatusPending, task.Status(), "Probe不应写终态")

	// Probe后账本未变，同一窗口仍然可行
	ok, err := l.Feasible("m1", 0, 10, 4, 8)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPlace_NoWindowWithinHorizon(t *testing.T) {
	g := graph.New()
	l, err := ledger.New(types.Fleet{{ID: "m1", CPU: 4, RAM: 8}}, 50)
	require.NoError(t, err)
	a := New(g, l)

	addTask(t, g, "t1", 2, 2, 10)
	require.NoError(t, l.Commit("m1", "blocker", 0, 200, 4, 8))

	out, err := a.Place("t1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoWindow, out.Kind)
}
