package config

import "fmt"

// ValidateEngineConfig 校验引擎配置合法性（对外导出）
func ValidateEngineConfig(cfg *EngineConfig) error {
	if cfg == nil {
		return fmt.Errorf("配置不能为空")
	}

	e := &cfg.SchedEngine

	// 校验General
	if e.General.InstanceName == "" {
		return fmt.Errorf("instance_name不能为空")
	}
	if e.General.LogLevel != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[e.General.LogLevel] {
			return fmt.Errorf("log_level必须是debug/info/warn/error之一")
		}
	}

	// 校验Storage.Database
	validDBTypes := map[string]bool{
		"sqlite":     true,
		"postgres":   true,
		"postgresql": true,
		"mysql":      true,
	}
	if !validDBTypes[e.Storage.Database.Type] {
		return fmt.Errorf("database.type必须是sqlite/postgres/mysql之一")
	}
	if e.Storage.Database.DSN == "" {
		return fmt.Errorf("database.dsn不能为空")
	}
	if e.Storage.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns必须大于0")
	}
	if e.Storage.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns不能为负数")
	}

	// 校验Scheduler
	if e.Scheduler.LookaheadHorizon <= 0 {
		return fmt.Errorf("scheduler.lookahead_horizon必须大于0")
	}
	if e.Scheduler.Parallelism <= 0 {
		return fmt.Errorf("scheduler.parallelism必须大于0")
	}
	if e.Scheduler.DefaultDuration <= 0 {
		return fmt.Errorf("scheduler.default_duration必须大于0")
	}
	if e.Scheduler.CronSpec != "" && e.Scheduler.TracePath == "" {
		return fmt.Errorf("配置了cron_spec时trace_path不能为空")
	}

	return nil
}

// ValidateFleetConfig 校验机群配置合法性（对外导出）
func ValidateFleetConfig(cfg *FleetConfig) error {
	if cfg == nil {
		return fmt.Errorf("配置不能为空")
	}
	if len(cfg.Fleet.Machines) == 0 {
		return fmt.Errorf("fleet.machines不能为空")
	}

	idMap := make(map[string]bool)
	for i, m := range cfg.Fleet.Machines {
		if m.ID == "" {
			return fmt.Errorf("machines[%d].id不能为空", i)
		}
		if idMap[m.ID] {
			return fmt.Errorf("machines中存在重复的id: %s", m.ID)
		}
		idMap[m.ID] = true

		if m.CPU <= 0 {
			return fmt.Errorf("machines[%d].cpu必须大于0", i)
		}
		if m.RAM <= 0 {
			return fmt.Errorf("machines[%d].ram必须大于0", i)
		}
	}
	return nil
}
