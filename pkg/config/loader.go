package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stevelan1995/sched-engine/pkg/core/ledger"
	"github.com/stevelan1995/sched-engine/pkg/trace"
)

// LoadEngineConfig 加载引擎框架配置（对外导出）
// 文件不存在时返回默认配置；${VAR}形式的值先做环境变量展开
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cfg := &EngineConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults 填充未设置字段的默认值
func applyDefaults(cfg *EngineConfig) {
	e := &cfg.SchedEngine
	if e.General.InstanceName == "" {
		e.General.InstanceName = "sched-engine"
	}
	if e.General.LogLevel == "" {
		e.General.LogLevel = "info"
	}
	if e.General.Env == "" {
		e.General.Env = "dev"
	}
	if e.HTTP.Port == 0 {
		e.HTTP.Port = 8080
	}
	if e.Storage.Database.Type == "" {
		e.Storage.Database.Type = "sqlite"
	}
	if e.Storage.Database.DSN == "" {
		e.Storage.Database.DSN = "./sched-engine.db"
	}
	if e.Storage.Database.MaxOpenConns <= 0 {
		e.Storage.Database.MaxOpenConns = 10
	}
	if e.Storage.Database.MaxIdleConns <= 0 {
		e.Storage.Database.MaxIdleConns = 5
	}
	if e.Scheduler.LookaheadHorizon <= 0 {
		e.Scheduler.LookaheadHorizon = ledger.DefaultLookaheadHorizon
	}
	if e.Scheduler.Parallelism <= 0 {
		e.Scheduler.Parallelism = 1
	}
	if e.Scheduler.DefaultDuration <= 0 {
		e.Scheduler.DefaultDuration = trace.DefaultExecTime
	}
}

// LoadFleetConfig 加载机群配置（对外导出）
func LoadFleetConfig(path string) (*FleetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取机群配置失败: %w", err)
	}

	var cfg FleetConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("解析机群配置失败: %w", err)
	}
	return &cfg, nil
}

// ParseDuration 解析时长字符串，空串返回0
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
