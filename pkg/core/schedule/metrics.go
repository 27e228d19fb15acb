package schedule

import (
	"github.com/stevelan1995/sched-engine/pkg/core/ledger"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// Metrics 一轮调度的汇总指标
type Metrics struct {
	Makespan    int64              `json:"makespan"`    // 所有已调度任务的最大finish
	Scheduled   int                `json:"scheduled"`   // 调度成功任务数
	Rejected    int                `json:"rejected"`    // 拒绝任务数
	Utilization map[string]float64 `json:"utilization"` // 机器CPU时间利用率（busy/makespan*cap）
}

// computeMetrics 由决议记录和资源账本计算指标
// 利用率直接取自账本的已提交预留
func computeMetrics(records []types.TaskRecord, l *ledger.Ledger) Metrics {
	m := Metrics{Utilization: make(map[string]float64)}

	for _, rec := range records {
		switch {
		case rec.Status == types.RejectedMarker:
			m.Rejected++
		case rec.Started:
			m.Scheduled++
			if rec.Finished && rec.Finish > m.Makespan {
				m.Makespan = rec.Finish
			}
		}
	}

	for _, id := range l.MachineIDs() {
		u, err := l.Utilization(id, m.Makespan)
		if err != nil {
			u = 0
		}
		m.Utilization[id] = u
	}
	return m
}
