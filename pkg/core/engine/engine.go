// Package engine 调度引擎编排：配置、存储、事件总线与调度核心的装配
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/stevelan1995/sched-engine/pkg/config"
	"github.com/stevelan1995/sched-engine/pkg/core/graph"
	"github.com/stevelan1995/sched-engine/pkg/core/schedule"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
	"github.com/stevelan1995/sched-engine/pkg/storage"
	"github.com/stevelan1995/sched-engine/pkg/trace"
)

// Engine 调度引擎核心结构体（对外导出）
type Engine struct {
	cfg     *config.EngineConfig
	fleet   types.Fleet
	repo    storage.ScheduleRunRepository // 可为nil（不持久化）
	bus     *schedule.EventBus
	running bool
	mu      sync.RWMutex
}

// NewEngine 创建Engine实例（对外导出的工厂方法）
func NewEngine(cfg *config.EngineConfig, fleet types.Fleet, repo storage.ScheduleRunRepository) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if err := config.ValidateEngineConfig(cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	if len(fleet) == 0 {
		return nil, fmt.Errorf("机群不能为空")
	}

	return &Engine{
		cfg:   cfg,
		fleet: fleet,
		repo:  repo,
		bus:   schedule.NewEventBus(),
	}, nil
}

// Start 启动引擎（对外导出）
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	e.running = true
	log.Println("✅ 集群任务调度引擎已启动")
	return nil
}

// Stop 停止引擎（对外导出）
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.running = false
	if err := e.bus.Close(); err != nil {
		return fmt.Errorf("关闭事件总线失败: %w", err)
	}
	log.Println("✅ 集群任务调度引擎已停止")
	return nil
}

// EventBus 获取引擎事件总线（对外导出，供API事件流订阅）
func (e *Engine) EventBus() *schedule.EventBus {
	return e.bus
}

// Config 获取引擎配置（对外导出）
func (e *Engine) Config() *config.EngineConfig {
	return e.cfg
}

// Fleet 获取机群（对外导出）
func (e *Engine) Fleet() types.Fleet {
	return e.fleet
}

// Repository 获取轮次存储（对外导出，可为nil）
func (e *Engine) Repository() storage.ScheduleRunRepository {
	return e.repo
}

// RunSchedule 对给定依赖图执行一轮完整调度（对外导出）
// 调度结果按配置持久化后返回
func (e *Engine) RunSchedule(ctx context.Context, g *graph.Graph) (*schedule.Result, error) {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		return nil, fmt.Errorf("引擎未启动")
	}

	sched := e.cfg.SchedEngine.Scheduler
	builder, err := schedule.NewBuilder(g, e.fleet,
		schedule.WithHorizon(sched.LookaheadHorizon),
		schedule.WithParallelism(sched.Parallelism),
		schedule.WithEventBus(e.bus),
	)
	if err != nil {
		return nil, err
	}
	result, err := builder.Run(ctx)
	if err != nil {
		return nil, err
	}

	if e.repo != nil {
		if err := e.repo.SaveRun(ctx, ResultToRun(result)); err != nil {
			// 调度已完成，持久化失败不吞掉结果
			log.Printf("⚠️ [引擎] 持久化调度轮次失败: RunID=%s, Error=%v", result.RunID, err)
		}
	}

	log.Printf("✅ [引擎] 调度轮次完成: RunID=%s, 已调度=%d, 已拒绝=%d, Makespan=%d",
		result.RunID, result.Metrics.Scheduled, result.Metrics.Rejected, result.Metrics.Makespan)
	return result, nil
}

// RunScheduleFromTrace 从CSV轨迹文件载入依赖图并执行一轮调度（对外导出）
func (e *Engine) RunScheduleFromTrace(ctx context.Context, path string) (*schedule.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开轨迹文件失败: %w", err)
	}
	defer f.Close()

	reader := trace.NewReader()
	reader.DefaultDuration = e.cfg.SchedEngine.Scheduler.DefaultDuration
	g, err := reader.ReadGraph(f)
	if err != nil {
		return nil, fmt.Errorf("载入轨迹失败: %w", err)
	}

	return e.RunSchedule(ctx, g)
}

// ResultToRun 调度结果 -> 持久化聚合根（对外导出）
func ResultToRun(result *schedule.Result) *storage.ScheduleRun {
	return &storage.ScheduleRun{
		ID:             result.RunID,
		Makespan:       result.Metrics.Makespan,
		ScheduledCount: result.Metrics.Scheduled,
		RejectedCount:  result.Metrics.Rejected,
		Tasks:          result.Tasks,
		Edges:          result.Edges,
	}
}
