package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/sched-engine/pkg/config"
	"github.com/stevelan1995/sched-engine/pkg/core/graph"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
	"github.com/stevelan1995/sched-engine/pkg/storage/sqlite"
)

func testFleet() types.Fleet {
	return types.Fleet{
		{ID: "m1", CPU: 8, RAM: 16},
		{ID: "m2", CPU: 8, RAM: 16},
	}
}

func testConfig() *config.EngineConfig {
	cfg, _ := config.LoadEngineConfig("/nonexistent.yaml")
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	repo, err := sqlite.NewRunRepoFromDSN(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	eng, err := NewEngine(testConfig(), testFleet(), repo)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { eng.Stop() })
	return eng
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, testFleet(), nil)
	assert.Error(t, err)

	_, err = NewEngine(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestRunSchedule_RequiresStart(t *testing.T) {
	eng, err := NewEngine(testConfig(), testFleet(), nil)
	require.NoError(t, err)

	g := graph.New()
	_, err = eng.RunSchedule(context.Background(), g)
	assert.Error(t, err, "未启动的引擎不接受调度请求")
}

func TestRunSchedule_PersistsRun(t *testing.T) {
	eng := newTestEngine(t)

	g := graph.New()
	require.NoError(t, g.AddTask(&types.Task{ID: "t1", JobID: "j1", CPU: 2, RAM: 2, Priority: 9, Duration: 10}))
	require.NoError(t, g.AddTask(&types.Task{ID: "t2", JobID: "j1", CPU: 1, RAM: 1, Priority: 5, Duration: 20}))
	require.NoError(t, g.AddEdge("t1", "t2", types.EdgeNonImmediate))

	result, err := eng.RunSchedule(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Metrics.Scheduled)
	assert.Zero(t, result.Metrics.Rejected)

	saved, err := eng.Repository().GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.Metrics.Makespan, saved.Makespan)
	assert.Len(t, saved.Tasks, 2)
	assert.Len(t, saved.Edges, 1)
}

func TestRunScheduleFromTrace(t *testing.T) {
	eng := newTestEngine(t)

	tmpDir := t.TempDir()
	tracePath := filepath.Join(tmpDir, "dag.csv")
	traceContent := strings.Join([]string{
		"TaskID,OwnerJobID,CPUNeed_Claimed,RAMNeed_Claimed,PriorityNo,ExecTime,Queue,StartTime,EndTime,SuccessorsImediate,SuccessorsNotImmediate",
		"t1,j1,2,2,9,10,,-2,-2,[t2],",
		"t2,j1,1,1,5,15,,-2,-2,,",
	}, "\n")
	require.NoError(t, os.WriteFile(tracePath, []byte(traceContent), 0644))

	result, err := eng.RunScheduleFromTrace(context.Background(), tracePath)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Metrics.Scheduled)

	// 紧邻依赖在轨迹载入后仍然生效
	var t1, t2 types.TaskRecord
	for _, rec := range result.Tasks {
		switch rec.TaskID {
		case "t1":
			t1 = rec
		case "t2":
			t2 = rec
		}
	}
	assert.Equal(t, t1.Machine, t2.Machine)
	assert.Equal(t, t1.Finish, t2.Start)
}

func TestRunScheduleFromTrace_MissingFile(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.RunScheduleFromTrace(context.Background(), "/nonexistent/dag.csv")
	assert.Error(t, err)
}

func TestCronScheduler_Registration(t *testing.T) {
	eng := newTestEngine(t)
	cs := NewCronScheduler(eng)
	defer cs.Stop()

	src := &TraceSource{Name: "nightly", Path: "/tmp/dag.csv", CronExpr: "0 0 2 * * *"}
	require.NoError(t, cs.RegisterSource(src))
	assert.Equal(t, []string{"nightly"}, cs.RegisteredSources())

	// 重复注册
	assert.Error(t, cs.RegisterSource(src))

	// 非法表达式
	assert.Error(t, cs.RegisterSource(&TraceSource{Name: "bad", Path: "/tmp/x.csv", CronExpr: "not-a-cron"}))

	require.NoError(t, cs.UnregisterSource("nightly"))
	assert.Empty(t, cs.RegisteredSources())
	assert.Error(t, cs.UnregisterSource("nightly"))
}
