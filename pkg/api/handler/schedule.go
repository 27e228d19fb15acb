package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/sched-engine/pkg/api/dto"
	"github.com/stevelan1995/sched-engine/pkg/core/engine"
	"github.com/stevelan1995/sched-engine/pkg/core/graph"
)

// ScheduleHandler 调度轮次API处理器
type ScheduleHandler struct {
	engine *engine.Engine
}

// NewScheduleHandler 创建ScheduleHandler
func NewScheduleHandler(eng *engine.Engine) *ScheduleHandler {
	return &ScheduleHandler{engine: eng}
}

// Submit 提交依赖图并执行一轮调度
// POST /api/v1/schedules
func (h *ScheduleHandler) Submit(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求体非法: %v", err)))
		return
	}

	g, err := req.ToGraph(h.engine.Config().SchedEngine.Scheduler.DefaultDuration)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("构建依赖图失败: %v", err)))
		return
	}

	result, err := h.engine.RunSchedule(c.Request.Context(), g)
	if err != nil {
		// 结构性错误（环、多紧邻前置）是请求的问题而非服务端故障
		var cycleErr *graph.CycleError
		var immErr *graph.MultipleImmediatePredecessorsError
		if errors.As(err, &cycleErr) || errors.As(err, &immErr) {
			c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(422, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("调度失败: %v", err)))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ScheduleResponse{
		RunID:       result.RunID,
		Makespan:    result.Metrics.Makespan,
		Scheduled:   result.Metrics.Scheduled,
		Rejected:    result.Metrics.Rejected,
		Utilization: result.Metrics.Utilization,
		Tasks:       result.Tasks,
	}))
}

// List 列出历史调度轮次
// GET /api/v1/schedules?limit=20
func (h *ScheduleHandler) List(c *gin.Context) {
	repo := h.engine.Repository()
	if repo == nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, "存储未配置"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("查询轮次失败: %v", err)))
		return
	}

	items := make([]dto.RunSummary, 0, len(runs))
	for _, run := range runs {
		items = append(items, dto.RunSummary{
			ID:             run.ID,
			CreatedAt:      run.CreatedAt,
			Makespan:       run.Makespan,
			ScheduledCount: run.ScheduledCount,
			RejectedCount:  run.RejectedCount,
		})
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.RunSummary]{
		Total:   len(items),
		Items:   items,
		HasMore: len(items) == limit,
	}))
}

// Get 获取调度轮次详情
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) Get(c *gin.Context) {
	repo := h.engine.Repository()
	if repo == nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, "存储未配置"))
		return
	}

	run, err := repo.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, fmt.Sprintf("轮次不存在: %v", err)))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.RunDetail{
		RunSummary: dto.RunSummary{
			ID:             run.ID,
			CreatedAt:      run.CreatedAt,
			Makespan:       run.Makespan,
			ScheduledCount: run.ScheduledCount,
			RejectedCount:  run.RejectedCount,
		},
		Tasks: run.Tasks,
		Edges: run.Edges,
	}))
}

// Delete 删除调度轮次
// DELETE /api/v1/schedules/:id
func (h *ScheduleHandler) Delete(c *gin.Context) {
	repo := h.engine.Repository()
	if repo == nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, "存储未配置"))
		return
	}

	if err := repo.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("删除轮次失败: %v", err)))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]string{"status": "deleted"}))
}

// Fleet 查看机群
// GET /api/v1/fleet
func (h *ScheduleHandler) Fleet(c *gin.Context) {
	fleet := h.engine.Fleet()
	items := make([]dto.MachineView, 0, len(fleet))
	for _, m := range fleet {
		items = append(items, dto.MachineView{ID: m.ID, CPU: m.CPU, RAM: m.RAM})
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.MachineView]{
		Total: len(items),
		Items: items,
	}))
}
