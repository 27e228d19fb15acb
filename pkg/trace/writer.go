package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// Writer 轨迹写入器（对外导出）
// 输出规范格式：括号配对、时间列用显式哨兵值，后继列表用分号分隔
type Writer struct{}

// NewWriter 创建轨迹写入器
func NewWriter() *Writer {
	return &Writer{}
}

// header 规范列顺序
var header = []string{
	ColTaskID, ColOwnerJobID, ColCPUClaim, ColRAMClaim, ColPriority,
	ColExecTime, ColQueue, ColStartTime, ColEndTime, ColReason,
	ColSuccImmediate, ColSuccNonImm,
}

// WriteRecords 将决议记录写出为CSV轨迹（对外导出）
// records需已按任务ID排序；edges提供每个任务的后继列表
func (w *Writer) WriteRecords(dst io.Writer, records []types.TaskRecord, edges []types.EdgeRecord) error {
	succImm := make(map[string][]string)
	succNonImm := make(map[string][]string)
	for _, e := range edges {
		switch e.Kind {
		case types.EdgeImmediate:
			succImm[e.Source] = append(succImm[e.Source], e.Target)
		case types.EdgeNonImmediate:
			succNonImm[e.Source] = append(succNonImm[e.Source], e.Target)
		}
	}

	cw := csv.NewWriter(dst)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("写入轨迹表头失败: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.TaskID,
			rec.JobID,
			strconv.FormatInt(rec.CPU, 10),
			strconv.FormatInt(rec.RAM, 10),
			strconv.Itoa(rec.Priority),
			strconv.FormatInt(rec.Duration, 10),
			rec.Status,
			formatStart(rec),
			formatFinish(rec),
			string(rec.Reason),
			joinSuccessors(succImm[rec.TaskID]),
			joinSuccessors(succNonImm[rec.TaskID]),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("写入任务 %s 的记录失败: %w", rec.TaskID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("写入轨迹失败: %w", err)
	}
	return nil
}

// formatStart 从未调度的任务起始列写 SentinelNeverStarted
func formatStart(rec types.TaskRecord) string {
	if !rec.Started {
		return strconv.FormatInt(SentinelNeverStarted, 10)
	}
	return strconv.FormatInt(rec.Start, 10)
}

// formatFinish 结束列的哨兵语义：
// 从未调度 ⇒ SentinelNeverStarted；开放窗口（已开始未结束）⇒ SentinelNotFinished
func formatFinish(rec types.TaskRecord) string {
	if !rec.Started {
		return strconv.FormatInt(SentinelNeverStarted, 10)
	}
	if !rec.Finished {
		return strconv.FormatInt(SentinelNotFinished, 10)
	}
	return strconv.FormatInt(rec.Finish, 10)
}

func joinSuccessors(succs []string) string {
	if len(succs) == 0 {
		return ""
	}
	return "[" + strings.Join(succs, ";") + "]"
}
