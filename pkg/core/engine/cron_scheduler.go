package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// TraceSource 周期调度的轨迹来源
type TraceSource struct {
	Name     string // 来源名（注册键）
	Path     string // 轨迹文件路径
	CronExpr string // 触发表达式（支持秒级精度）
}

// CronScheduler 定时调度器（对外导出）
// 按Cron表达式周期性地从轨迹来源重新载图并执行调度轮次
type CronScheduler struct {
	cron    *cron.Cron
	engine  *Engine
	sources map[string]*TraceSource
	entries map[string]cron.EntryID
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewCronScheduler 创建定时调度器（对外导出）
func NewCronScheduler(eng *Engine) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron:    cron.New(cron.WithSeconds()), // 支持秒级精度
		engine:  eng,
		sources: make(map[string]*TraceSource),
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RegisterSource 注册轨迹来源到定时调度器（对外导出）
func (cs *CronScheduler) RegisterSource(src *TraceSource) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if src == nil || src.Name == "" {
		return fmt.Errorf("轨迹来源必须有名称")
	}
	if _, exists := cs.sources[src.Name]; exists {
		return fmt.Errorf("轨迹来源 %s 已注册到定时调度器", src.Name)
	}
	if src.Path == "" {
		return fmt.Errorf("轨迹来源 %s 未设置文件路径", src.Name)
	}
	if src.CronExpr == "" {
		return fmt.Errorf("轨迹来源 %s 未设置Cron表达式", src.Name)
	}

	// 验证Cron表达式（使用Parser支持秒级精度）
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(src.CronExpr); err != nil {
		return fmt.Errorf("轨迹来源 %s 的Cron表达式无效: %w", src.Name, err)
	}

	entryID, err := cs.cron.AddFunc(src.CronExpr, func() {
		cs.triggerSource(src)
	})
	if err != nil {
		return fmt.Errorf("添加Cron任务失败: %w", err)
	}

	cs.sources[src.Name] = src
	cs.entries[src.Name] = entryID

	log.Printf("✅ [Cron调度器] 已注册轨迹来源: Name=%s, Path=%s, CronExpr=%s", src.Name, src.Path, src.CronExpr)
	return nil
}

// UnregisterSource 取消注册轨迹来源（对外导出）
func (cs *CronScheduler) UnregisterSource(name string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entryID, exists := cs.entries[name]
	if !exists {
		return fmt.Errorf("轨迹来源 %s 未注册到定时调度器", name)
	}

	cs.cron.Remove(entryID)
	delete(cs.sources, name)
	delete(cs.entries, name)

	log.Printf("✅ [Cron调度器] 已取消注册轨迹来源: Name=%s", name)
	return nil
}

// triggerSource 触发一轮轨迹调度（内部方法）
func (cs *CronScheduler) triggerSource(src *TraceSource) {
	log.Printf("🕐 [Cron调度器] 触发调度轮次: Source=%s, Path=%s", src.Name, src.Path)

	result, err := cs.engine.RunScheduleFromTrace(cs.ctx, src.Path)
	if err != nil {
		log.Printf("❌ [Cron调度器] 调度轮次失败: Source=%s, Error=%v", src.Name, err)
		return
	}
	log.Printf("✅ [Cron调度器] 调度轮次完成: Source=%s, RunID=%s", src.Name, result.RunID)
}

// Start 启动定时调度器（对外导出）
func (cs *CronScheduler) Start() {
	cs.cron.Start()
	log.Println("✅ [Cron调度器] 已启动")
}

// Stop 停止定时调度器（对外导出）
func (cs *CronScheduler) Stop() {
	cs.cron.Stop()
	cs.cancel()
	log.Println("✅ [Cron调度器] 已停止")
}

// RegisteredSources 获取已注册的轨迹来源名列表（对外导出）
func (cs *CronScheduler) RegisteredSources() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	names := make([]string, 0, len(cs.sources))
	for name := range cs.sources {
		names = append(names, name)
	}
	return names
}
