package graph

import (
	"fmt"
	"strings"
)

// CycleError 致命错误：非自环子图存在循环依赖，输入DAG非法，整轮调度中止
type CycleError struct {
	Path []string // 检测到的循环路径（首尾闭合）
}

// Error 实现error接口
func (e *CycleError) Error() string {
	return fmt.Sprintf("检测到循环依赖: %s", strings.Join(e.Path, " -> "))
}

// MultipleImmediatePredecessorsError 致命错误：任务有多条入向紧邻边
// 一个任务只能与一个前置任务在同一机器上邻接绑定
type MultipleImmediatePredecessorsError struct {
	TaskID       string
	Predecessors []string
}

// Error 实现error接口
func (e *MultipleImmediatePredecessorsError) Error() string {
	return fmt.Sprintf("任务 %s 有多个紧邻前置: %v", e.TaskID, e.Predecessors)
}
