package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/sched-engine/pkg/core/types"
	"github.com/stevelan1995/sched-engine/pkg/storage"
)

func newTestRepo(t *testing.T) *RunRepo {
	t.Helper()
	repo, err := NewRunRepoFromDSN(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleRun() *storage.ScheduleRun {
	return &storage.ScheduleRun{
		ID:             "run-1",
		CreatedAt:      time.Now(),
		Makespan:       30,
		ScheduledCount: 2,
		RejectedCount:  1,
		Tasks: []types.TaskRecord{
			{TaskID: "t1", JobID: "j1", CPU: 2, RAM: 4, Priority: 9, Duration: 10,
				Status: "m1", Machine: "m1", Started: true, Start: 0, Finished: true, Finish: 10},
			{TaskID: "t2", JobID: "j1", CPU: 1, RAM: 1, Priority: 5, Duration: 20,
				Status: "m1", Machine: "m1", Started: true, Start: 10, Finished: true, Finish: 30},
			{TaskID: "t3", JobID: "j2", CPU: 1, RAM: 1, Priority: 0, Duration: 10,
				Status: types.RejectedMarker, Reason: types.ReasonNoWindowFound},
		},
		Edges: []types.EdgeRecord{
			{Source: "t1", Target: "t2", Kind: types.EdgeImmediate},
			{Source: "t1", Target: "t3", Kind: types.EdgeNonImmediate},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveRun(ctx, sampleRun()))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.Makespan)
	assert.Equal(t, 2, got.ScheduledCount)
	assert.Equal(t, 1, got.RejectedCount)
	require.Len(t, got.Tasks, 3)
	require.Len(t, got.Edges, 2)

	// 任务记录按ID排序返回
	assert.Equal(t, "t1", got.Tasks[0].TaskID)
	assert.True(t, got.Tasks[0].Started)
	assert.True(t, got.Tasks[0].Finished)
	assert.Equal(t, int64(10), got.Tasks[0].Finish)

	// 拒绝记录：无机器、无时间、保留原因
	rejected := got.Tasks[2]
	assert.Equal(t, types.RejectedMarker, rejected.Status)
	assert.False(t, rejected.Started)
	assert.False(t, rejected.Finished)
	assert.Empty(t, rejected.Machine)
	assert.Equal(t, types.ReasonNoWindowFound, rejected.Reason)
	assert.Equal(t, 0, rejected.Priority)
}

func TestSaveRun_Overwrite(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, repo.SaveRun(ctx, run))

	// 同一轮次重复保存：整体覆盖而非追加
	run.Makespan = 50
	run.Tasks = run.Tasks[:1]
	run.Edges = nil
	require.NoError(t, repo.SaveRun(ctx, run))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Makespan)
	assert.Len(t, got.Tasks, 1)
	assert.Empty(t, got.Edges)
}

func TestGetRun_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetRun(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestListRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := sampleRun()
		run.ID = id
		run.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.SaveRun(ctx, run))
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID, "按创建时间倒序")
	assert.Empty(t, runs[0].Tasks, "列表接口不带任务记录")
}

func TestDeleteRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveRun(ctx, sampleRun()))
	require.NoError(t, repo.DeleteRun(ctx, "run-1"))

	_, err := repo.GetRun(ctx, "run-1")
	assert.Error(t, err)

	// 子表记录同时清空
	var count int
	require.NoError(t, repo.GetDB().Get(&count, `SELECT COUNT(*) FROM task_record WHERE run_id = 'run-1'`))
	assert.Zero(t, count)
}

func TestSaveRun_InvalidInput(t *testing.T) {
	repo := newTestRepo(t)
	assert.Error(t, repo.SaveRun(context.Background(), nil))
	assert.Error(t, repo.SaveRun(context.Background(), &storage.ScheduleRun{}))
}
