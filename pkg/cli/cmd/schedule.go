package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stevelan1995/sched-engine/pkg/cli/output"
	"github.com/stevelan1995/sched-engine/pkg/config"
	"github.com/stevelan1995/sched-engine/pkg/core/engine"
	"github.com/stevelan1995/sched-engine/pkg/core/types"
	"github.com/stevelan1995/sched-engine/pkg/storage"
	"github.com/stevelan1995/sched-engine/pkg/storage/factory"
	"github.com/stevelan1995/sched-engine/pkg/trace"
)

var (
	tracePath string
	fleetPath string
	outPath   string
	noStore   bool
	listLimit int
)

// scheduleCmd schedule子命令
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "调度管理命令",
	Long:  `执行调度轮次、查询历史轮次。`,
}

// scheduleRunCmd 从轨迹执行一轮调度
var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "从CSV轨迹执行一轮调度",
	Long: `从CSV轨迹载入依赖图，对配置的机群执行一轮完整调度。

示例：
  # 执行调度并打印结果
  sched-engine schedule run --trace ./dag.csv --fleet ./fleet.yaml

  # 结果写出为决议轨迹
  sched-engine schedule run --trace ./dag.csv --fleet ./fleet.yaml --output ./resolved.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tracePath == "" {
			output.Error("必须通过 --trace 指定轨迹文件")
			return fmt.Errorf("trace file not specified")
		}

		eng, cleanup, err := buildEngine(!noStore)
		if err != nil {
			output.Error("创建Engine失败: %v", err)
			return err
		}
		defer cleanup()

		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			return err
		}
		defer eng.Stop()

		result, err := eng.RunScheduleFromTrace(ctx, tracePath)
		if err != nil {
			output.Error("调度失败: %v", err)
			return err
		}

		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				output.Error("创建输出文件失败: %v", err)
				return err
			}
			defer f.Close()
			if err := trace.NewWriter().WriteRecords(f, result.Tasks, result.Edges); err != nil {
				output.Error("写出决议轨迹失败: %v", err)
				return err
			}
			output.Info("决议轨迹已写出: %s", outPath)
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		printTaskRecords(result.Tasks)
		output.Success("轮次 %s 完成: 已调度=%d, 已拒绝=%d, Makespan=%d",
			result.RunID, result.Metrics.Scheduled, result.Metrics.Rejected, result.Metrics.Makespan)
		return nil
	},
}

// scheduleListCmd 列出历史轮次
var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出历史调度轮次",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := buildRepo()
		if err != nil {
			output.Error("打开存储失败: %v", err)
			return err
		}
		defer repo.Close()

		runs, err := repo.ListRuns(context.Background(), listLimit)
		if err != nil {
			output.Error("查询轮次失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(runs)
		}

		table := output.NewTable([]string{"RUN ID", "CREATED AT", "MAKESPAN", "SCHEDULED", "REJECTED"})
		for _, run := range runs {
			table.AddRow([]string{
				run.ID,
				run.CreatedAt.Format("2006-01-02 15:04:05"),
				strconv.FormatInt(run.Makespan, 10),
				strconv.Itoa(run.ScheduledCount),
				strconv.Itoa(run.RejectedCount),
			})
		}
		table.Render()
		return nil
	},
}

// scheduleShowCmd 查看轮次详情
var scheduleShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "查看调度轮次详情",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := buildRepo()
		if err != nil {
			output.Error("打开存储失败: %v", err)
			return err
		}
		defer repo.Close()

		run, err := repo.GetRun(context.Background(), args[0])
		if err != nil {
			output.Error("查询轮次失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(run)
		}

		printTaskRecords(run.Tasks)
		output.Info("轮次 %s: Makespan=%d, 已调度=%d, 已拒绝=%d",
			run.ID, run.Makespan, run.ScheduledCount, run.RejectedCount)
		return nil
	},
}

// printTaskRecords 以表格打印任务决议记录
func printTaskRecords(records []types.TaskRecord) {
	table := output.NewTable([]string{"TASK", "JOB", "PRIO", "STATUS", "MACHINE", "START", "END", "REASON"})
	for _, rec := range records {
		start, end := "-", "-"
		if rec.Started {
			start = strconv.FormatInt(rec.Start, 10)
		}
		if rec.Finished {
			end = strconv.FormatInt(rec.Finish, 10)
		}
		table.AddRow([]string{
			rec.TaskID,
			rec.JobID,
			strconv.Itoa(rec.Priority),
			rec.Status,
			rec.Machine,
			start,
			end,
			string(rec.Reason),
		})
	}
	table.Render()
}

// loadConfigs 加载引擎与机群配置
func loadConfigs() (*config.EngineConfig, types.Fleet, error) {
	cfg, err := config.LoadEngineConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	var fleet types.Fleet
	if fleetPath != "" {
		fleetCfg, err := config.LoadFleetConfig(fleetPath)
		if err != nil {
			return nil, nil, err
		}
		if err := config.ValidateFleetConfig(fleetCfg); err != nil {
			return nil, nil, err
		}
		fleet = fleetCfg.ToFleet()
	} else {
		// 无机群配置时给单机默认，便于本地试跑
		fleet = types.Fleet{{ID: "m1", CPU: 16, RAM: 64}}
		output.Warning("未指定 --fleet，使用单机默认机群")
	}
	return cfg, fleet, nil
}

// buildRepo 按配置打开轮次存储
func buildRepo() (storage.ScheduleRunRepository, error) {
	cfg, err := config.LoadEngineConfig(configPath)
	if err != nil {
		return nil, err
	}
	db := cfg.SchedEngine.Storage.Database
	return factory.NewScheduleRunRepository(db.Type, db.DSN, factory.Options{
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		ConnMaxIdleTime: db.ConnMaxIdleTime,
	})
}

// buildEngine 装配Engine；withStore=false时跳过持久化
func buildEngine(withStore bool) (*engine.Engine, func(), error) {
	cfg, fleet, err := loadConfigs()
	if err != nil {
		return nil, nil, err
	}

	var repo storage.ScheduleRunRepository
	cleanup := func() {}
	if withStore {
		repo, err = buildRepo()
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { repo.Close() }
	}

	eng, err := engine.NewEngine(cfg, fleet, repo)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return eng, cleanup, nil
}

func init() {
	scheduleRunCmd.Flags().StringVarP(&tracePath, "trace", "t", "", "输入轨迹CSV路径")
	scheduleRunCmd.Flags().StringVarP(&fleetPath, "fleet", "f", "", "机群配置YAML路径")
	scheduleRunCmd.Flags().StringVarP(&outPath, "output", "o", "", "决议轨迹输出路径")
	scheduleRunCmd.Flags().BoolVar(&noStore, "no-store", false, "不持久化本轮结果")

	scheduleListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "返回轮次数量上限")

	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
}
