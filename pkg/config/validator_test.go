package config

import (
	"strings"
	"testing"
)

func validEngineConfig() *EngineConfig {
	cfg := &EngineConfig{}
	applyDefaults(cfg)
	return cfg
}

func TestValidateEngineConfig(t *testing.T) {
	if err := ValidateEngineConfig(validEngineConfig()); err != nil {
		t.Errorf("默认配置应通过校验: %v", err)
	}

	if err := ValidateEngineConfig(nil); err == nil {
		t.Error("nil配置应校验失败")
	}
}

func TestValidateEngineConfig_BadLogLevel(t *testing.T) {
	cfg := validEngineConfig()
	cfg.SchedEngine.General.LogLevel = "verbose"
	err := ValidateEngineConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("非法log_level应校验失败，实际: %v", err)
	}
}

func TestValidateEngineConfig_BadDBType(t *testing.T) {
	cfg := validEngineConfig()
	cfg.SchedEngine.Storage.Database.Type = "oracle"
	if err := ValidateEngineConfig(cfg); err == nil {
		t.Error("不支持的数据库类型应校验失败")
	}
}

func TestValidateEngineConfig_CronWithoutTrace(t *testing.T) {
	cfg := validEngineConfig()
	cfg.SchedEngine.Scheduler.CronSpec = "0 * * * *"
	err := ValidateEngineConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "trace_path") {
		t.Errorf("配置cron但缺少轨迹路径应校验失败，实际: %v", err)
	}
}

func TestValidateEngineConfig_BadScheduler(t *testing.T) {
	cfg := validEngineConfig()
	cfg.SchedEngine.Scheduler.Parallelism = 0
	if err := ValidateEngineConfig(cfg); err == nil {
		t.Error("parallelism为0应校验失败")
	}

	cfg = validEngineConfig()
	cfg.SchedEngine.Scheduler.LookaheadHorizon = -1
	if err := ValidateEngineConfig(cfg); err == nil {
		t.Error("负的lookahead_horizon应校验失败")
	}
}

func TestValidateFleetConfig(t *testing.T) {
	cfg := &FleetConfig{}
	if err := ValidateFleetConfig(cfg); err == nil {
		t.Error("空机群应校验失败")
	}

	cfg.Fleet.Machines = []MachineDefinition{
		{ID: "m1", CPU: 4, RAM: 8},
		{ID: "m2", CPU: 8, RAM: 16},
	}
	if err := ValidateFleetConfig(cfg); err != nil {
		t.Errorf("合法机群应通过校验: %v", err)
	}
}

func TestValidateFleetConfig_DuplicateID(t *testing.T) {
	cfg := &FleetConfig{}
	cfg.Fleet.Machines = []MachineDefinition{
		{ID: "m1", CPU: 4, RAM: 8},
		{ID: "m1", CPU: 8, RAM: 16},
	}
	err := ValidateFleetConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "重复") {
		t.Errorf("重复机器ID应校验失败，实际: %v", err)
	}
}

func TestValidateFleetConfig_BadCapacity(t *testing.T) {
	cfg := &FleetConfig{}
	cfg.Fleet.Machines = []MachineDefinition{{ID: "m1", CPU: 0, RAM: 8}}
	if err := ValidateFleetConfig(cfg); err == nil {
		t.Error("CPU容量为0应校验失败")
	}
}
