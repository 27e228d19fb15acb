package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/stevelan1995/sched-engine/pkg/core/graph"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// Reader 轨迹读取器（对外导出）
// 按表头定位列，兼容历史轨迹的列缺失与括号噪声
type Reader struct {
	// DefaultDuration ExecTime列缺失或为空时使用的执行时长
	DefaultDuration int64
}

// NewReader 创建轨迹读取器
func NewReader() *Reader {
	return &Reader{DefaultDuration: DefaultExecTime}
}

// ReadGraph 从CSV轨迹构建依赖图（对外导出）
// 两遍扫描：先登记全部任务，再补边（后继可能先于前置出现在文件里）
func (r *Reader) ReadGraph(src io.Reader) (*graph.Graph, error) {
	cr := csv.NewReader(src)
	cr.TrimLeadingSpace = true
	// 历史轨迹行尾列数不齐，逐行按表头宽度截断
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("读取轨迹表头失败: %w", err)
	}
	cols := indexColumns(header)
	if _, ok := cols[ColTaskID]; !ok {
		return nil, fmt.Errorf("轨迹缺少必需列 %s", ColTaskID)
	}

	g := graph.New()
	type pendingEdges struct {
		source string
		imm    []string
		nonImm []string
	}
	var edges []pendingEdges

	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取轨迹第%d行失败: %w", line+1, err)
		}
		line++

		id := field(row, cols, ColTaskID)
		if id == "" {
			log.Printf("⚠️ [轨迹] 第%d行缺少任务ID，跳过", line)
			continue
		}

		task := &types.Task{
			ID:       id,
			JobID:    field(row, cols, ColOwnerJobID),
			Duration: r.DefaultDuration,
		}
		if task.CPU, err = parseInt(field(row, cols, ColCPUClaim), 0); err != nil {
			return nil, fmt.Errorf("第%d行任务 %s 的CPU声明非法: %w", line, id, err)
		}
		if task.RAM, err = parseInt(field(row, cols, ColRAMClaim), 0); err != nil {
			return nil, fmt.Errorf("第%d行任务 %s 的RAM声明非法: %w", line, id, err)
		}
		prio, err := parseInt(field(row, cols, ColPriority), 0)
		if err != nil {
			return nil, fmt.Errorf("第%d行任务 %s 的优先级非法: %w", line, id, err)
		}
		task.Priority = int(prio)
		if dur, err := parseInt(field(row, cols, ColExecTime), r.DefaultDuration); err == nil && dur > 0 {
			task.Duration = dur
		}

		if err := g.AddTask(task); err != nil {
			return nil, fmt.Errorf("第%d行: %w", line, err)
		}

		edges = append(edges, pendingEdges{
			source: id,
			imm:    splitSuccessors(field(row, cols, ColSuccImmediate)),
			nonImm: splitSuccessors(field(row, cols, ColSuccNonImm)),
		})
	}

	for _, pe := range edges {
		for _, succ := range pe.imm {
			if err := g.AddEdge(pe.source, succ, types.EdgeImmediate); err != nil {
				return nil, fmt.Errorf("任务 %s 的紧邻后继非法: %w", pe.source, err)
			}
		}
		for _, succ := range pe.nonImm {
			if err := g.AddEdge(pe.source, succ, types.EdgeNonImmediate); err != nil {
				return nil, fmt.Errorf("任务 %s 的普通后继非法: %w", pe.source, err)
			}
		}
	}

	log.Printf("✅ [轨迹] 已载入 %d 个任务、%d 条依赖边", len(g.TaskIDs()), len(g.Edges()))
	return g, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name != "" {
			cols[name] = i
		}
	}
	return cols
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseInt 解析整数字段，剥离历史轨迹遗留的括号噪声；空值取缺省
func parseInt(s string, def int64) (int64, error) {
	s = normalizeBrackets(s)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// 浮点写法的整数时间（如 "10.0"）
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, err
		}
		return int64(f), nil
	}
	return v, nil
}

// normalizeBrackets 剥离字段两侧的方括号；括号可能不配对，两侧独立处理
func normalizeBrackets(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.TrimSpace(s)
}

// splitSuccessors 解析后继列表，分隔符兼容分号与逗号
func splitSuccessors(s string) []string {
	s = normalizeBrackets(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", ";")
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(normalizeBrackets(p))
		if p != "" && p != "nan" {
			out = append(out, p)
		}
	}
	return out
}
