// Package dto API请求/响应数据结构
package dto

import (
	"time"

	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// APIResponse 通用API响应结构
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) APIResponse[any] {
	return APIResponse[any]{
		Code:    code,
		Message: message,
	}
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Total   int  `json:"total"`
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// RunSummary 调度轮次摘要信息
type RunSummary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Makespan       int64     `json:"makespan"`
	ScheduledCount int       `json:"scheduled_count"`
	RejectedCount  int       `json:"rejected_count"`
}

// RunDetail 调度轮次详细信息
type RunDetail struct {
	RunSummary
	Tasks []types.TaskRecord `json:"tasks"`
	Edges []types.EdgeRecord `json:"edges"`
}

// ScheduleResponse 提交调度后的响应
type ScheduleResponse struct {
	RunID       string             `json:"run_id"`
	Makespan    int64              `json:"makespan"`
	Scheduled   int                `json:"scheduled"`
	Rejected    int                `json:"rejected"`
	Utilization map[string]float64 `json:"utilization,omitempty"`
	Tasks       []types.TaskRecord `json:"tasks"`
}

// MachineView 机器视图
type MachineView struct {
	ID  string `json:"id"`
	CPU int64  `json:"cpu"`
	RAM int64  `json:"ram"`
}
