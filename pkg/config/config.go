// Package config 调度引擎配置：YAML加载、默认值填充与校验
package config

import (
	"time"

	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// EngineConfig 引擎框架配置（对外导出）
type EngineConfig struct {
	SchedEngine struct {
		General struct {
			InstanceName string `yaml:"instance_name"`
			LogLevel     string `yaml:"log_level"`
			Env          string `yaml:"env"`
		} `yaml:"general"`
		HTTP struct {
			Port int `yaml:"port"`
		} `yaml:"http"`
		Storage struct {
			Database struct {
				Type            string        `yaml:"type"`
				DSN             string        `yaml:"dsn"`
				MaxOpenConns    int           `yaml:"max_open_conns"`
				MaxIdleConns    int           `yaml:"max_idle_conns"`
				ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
				ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
			} `yaml:"database"`
		} `yaml:"storage"`
		Scheduler struct {
			LookaheadHorizon int64  `yaml:"lookahead_horizon"`
			Parallelism      int    `yaml:"parallelism"`
			DefaultDuration  int64  `yaml:"default_duration"`
			CronSpec         string `yaml:"cron_spec"`  // 空表示不启用周期调度
			TracePath        string `yaml:"trace_path"` // 周期调度的轨迹来源
		} `yaml:"scheduler"`
	} `yaml:"sched-engine"`
}

// FleetConfig 机群配置（对外导出），与框架配置分文件
type FleetConfig struct {
	Fleet struct {
		Machines []MachineDefinition `yaml:"machines"`
	} `yaml:"fleet"`
}

// MachineDefinition 机器定义
type MachineDefinition struct {
	ID  string `yaml:"id"`
	CPU int64  `yaml:"cpu"`
	RAM int64  `yaml:"ram"`
}

// GetDatabaseType 获取数据库类型
func (c *EngineConfig) GetDatabaseType() string {
	return c.SchedEngine.Storage.Database.Type
}

// GetDatabaseDSN 获取数据库DSN
func (c *EngineConfig) GetDatabaseDSN() string {
	return c.SchedEngine.Storage.Database.DSN
}

// ToFleet 将机群配置转换为调度核心的机群模型
func (c *FleetConfig) ToFleet() types.Fleet {
	fleet := make(types.Fleet, 0, len(c.Fleet.Machines))
	for _, m := range c.Fleet.Machines {
		fleet = append(fleet, types.Machine{ID: m.ID, CPU: m.CPU, RAM: m.RAM})
	}
	return fleet
}
